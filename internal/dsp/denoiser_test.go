package dsp_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/realtalk/realtalk/internal/dsp"
	"github.com/realtalk/realtalk/pkg/audio"
)

func TestDenoiser_PassthroughWithoutProfile(t *testing.T) {
	t.Parallel()
	d := dsp.NewDenoiser(dsp.DenoiserConfig{FrameSamples: frameSamples})
	in := toneFrame(2000)

	out, err := d.Process(in, dsp.NoiseProfile{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !bytes.Equal(out.Data, in.Data) {
		t.Error("frame modified despite empty noise profile")
	}
}

func TestDenoiser_FrameSizeMismatch(t *testing.T) {
	t.Parallel()
	d := dsp.NewDenoiser(dsp.DenoiserConfig{FrameSamples: frameSamples})

	short := audio.AudioFrame{Data: make([]byte, 10), SampleRate: 16000}
	if _, err := d.Process(short, dsp.NoiseProfile{}); !errors.Is(err, dsp.ErrFrameSize) {
		t.Errorf("Process(short frame) error = %v, want ErrFrameSize", err)
	}
}

func TestDenoiser_SuppressesStationaryNoise(t *testing.T) {
	t.Parallel()

	noise := toneFrame(2000)

	// Train the profile to full confidence on the exact noise signal.
	p := dsp.NewProfiler(dsp.ProfilerConfig{
		FrameSamples:  frameSamples,
		WarmupFrames:  10,
		MaxConfidence: 10,
	})
	for i := 0; i < 10; i++ {
		p.Observe(noise, true)
	}
	profile := p.Snapshot()
	if profile.Gain != 1.0 {
		t.Fatalf("profile gain = %v, want 1.0", profile.Gain)
	}

	d := dsp.NewDenoiser(dsp.DenoiserConfig{FrameSamples: frameSamples})
	out, err := d.Process(noise, profile)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	inEnergy := audio.MeanAbs(audio.DecodePCM16(noise.Data))
	outEnergy := audio.MeanAbs(audio.DecodePCM16(out.Data))
	if outEnergy >= inEnergy/5 {
		t.Errorf("noise energy %v only reduced to %v; want at least 5x suppression", inEnergy, outEnergy)
	}
}

func TestDenoiser_SpectralFloorKeepsResidual(t *testing.T) {
	t.Parallel()

	noise := toneFrame(2000)
	p := dsp.NewProfiler(dsp.ProfilerConfig{
		FrameSamples:  frameSamples,
		WarmupFrames:  10,
		MaxConfidence: 10,
	})
	for i := 0; i < 10; i++ {
		p.Observe(noise, true)
	}

	// Over-subtraction would drive bins negative; the floor must keep a
	// small residual instead of zeroing the frame.
	d := dsp.NewDenoiser(dsp.DenoiserConfig{
		FrameSamples: frameSamples,
		Subtraction:  2.0,
		Floor:        0.05,
	})
	out, err := d.Process(noise, p.Snapshot())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := audio.MeanAbs(audio.DecodePCM16(out.Data)); got == 0 {
		t.Error("over-subtraction zeroed the frame; spectral floor not applied")
	}
}

func TestDenoiser_PreservesFrameMetadata(t *testing.T) {
	t.Parallel()

	noise := constFrame(50)
	p := dsp.NewProfiler(dsp.ProfilerConfig{FrameSamples: frameSamples, WarmupFrames: 5})
	for i := 0; i < 5; i++ {
		p.Observe(noise, true)
	}

	d := dsp.NewDenoiser(dsp.DenoiserConfig{FrameSamples: frameSamples})
	in := toneFrame(3000)
	in.Timestamp = 1234567
	out, err := d.Process(in, p.Snapshot())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Timestamp != in.Timestamp {
		t.Errorf("timestamp = %v, want %v", out.Timestamp, in.Timestamp)
	}
	if out.SampleRate != in.SampleRate {
		t.Errorf("sample rate = %d, want %d", out.SampleRate, in.SampleRate)
	}
	if out.Samples() != frameSamples {
		t.Errorf("output has %d samples, want %d", out.Samples(), frameSamples)
	}
}
