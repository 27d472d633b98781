package dsp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/realtalk/realtalk/pkg/audio"
)

const (
	// defaultSubtraction scales the noise estimate before subtraction.
	defaultSubtraction = 1.0

	// defaultFloor keeps each bin's residual magnitude at or above this
	// fraction of the original, preventing musical-noise artifacts.
	defaultFloor = 0.02

	// defaultGainCap limits post-subtraction peak normalization so a near
	// silent frame is not amplified into noise.
	defaultGainCap = 3.0
)

// ErrFrameSize is returned when a frame does not match the configured length.
var ErrFrameSize = errors.New("dsp: frame size mismatch")

// DenoiserConfig holds the tuning knobs for a [Denoiser]. Zero values select
// the documented defaults.
type DenoiserConfig struct {
	// FrameSamples is the fixed frame length in samples. Required, and must
	// match the profiler feeding it.
	FrameSamples int

	// Subtraction scales the noise spectrum before subtraction. Values
	// above 1 over-subtract for noisier environments.
	Subtraction float64

	// Floor is the spectral floor as a fraction of the original bin
	// magnitude, in (0, 1).
	Floor float64

	// GainCap limits the peak normalization factor. Set below 1 to disable
	// normalization entirely.
	GainCap float64

	// Normalize enables post-subtraction peak normalization.
	Normalize bool
}

func (c *DenoiserConfig) applyDefaults() {
	if c.Subtraction <= 0 {
		c.Subtraction = defaultSubtraction
	}
	if c.Floor <= 0 || c.Floor >= 1 {
		c.Floor = defaultFloor
	}
	if c.GainCap <= 0 {
		c.GainCap = defaultGainCap
	}
}

// Denoiser applies spectral subtraction to audio frames. Process is a pure
// function of (frame, profile) — the only state is the reused FFT plan and
// scratch buffers, so the denoiser must stay on a single goroutine.
type Denoiser struct {
	cfg     DenoiserConfig
	fft     *fourier.FFT
	fftSize int

	seq    []float64
	coeffs []complex128
}

// NewDenoiser creates a Denoiser for the given frame geometry. The FFT length
// matches what [NewProfiler] selects for the same frame size.
func NewDenoiser(cfg DenoiserConfig) *Denoiser {
	cfg.applyDefaults()
	size := fftSizeFor(cfg.FrameSamples)
	return &Denoiser{
		cfg:     cfg,
		fft:     fourier.NewFFT(size),
		fftSize: size,
		seq:     make([]float64, size),
		coeffs:  make([]complex128, size/2+1),
	}
}

// Process returns a denoised copy of frame using the given profile snapshot.
// The input frame is never mutated. A profile that is not ready (or has zero
// gain) passes the frame through unchanged.
//
// Returns [ErrFrameSize] when the frame length does not match the configured
// geometry; callers treat that as a skip-frame fault, not a pipeline error.
func (d *Denoiser) Process(frame audio.AudioFrame, profile NoiseProfile) (audio.AudioFrame, error) {
	samples := audio.DecodePCM16(frame.Data)
	if len(samples) != d.cfg.FrameSamples {
		return audio.AudioFrame{}, fmt.Errorf("%w: got %d samples, want %d", ErrFrameSize, len(samples), d.cfg.FrameSamples)
	}

	if !profile.Ready() || profile.Gain <= 0 {
		return frame, nil
	}
	if len(profile.Bins) != d.fftSize/2+1 {
		return audio.AudioFrame{}, fmt.Errorf("%w: profile has %d bins, want %d", ErrFrameSize, len(profile.Bins), d.fftSize/2+1)
	}

	// Forward transform, zero-padded to the FFT length.
	for i := range d.seq {
		d.seq[i] = 0
	}
	for i, s := range samples {
		d.seq[i] = float64(s)
	}
	coeffs := d.fft.Coefficients(d.coeffs, d.seq)

	// Subtract the scaled noise magnitude from each bin, preserving phase
	// and clamping at the spectral floor.
	strength := d.cfg.Subtraction * profile.Gain
	for i, c := range coeffs {
		mag := cmplxAbs(c)
		if mag == 0 {
			continue
		}
		cleaned := mag - strength*profile.Bins[i]
		if floor := d.cfg.Floor * mag; cleaned < floor {
			cleaned = floor
		}
		scale := cleaned / mag
		coeffs[i] = complex(real(c)*scale, imag(c)*scale)
	}

	// Inverse transform. Gonum's Sequence is unnormalized: divide by the
	// transform length.
	restored := d.fft.Sequence(nil, coeffs)
	inv := 1 / float64(d.fftSize)

	out := make([]int16, d.cfg.FrameSamples)
	var peak float64
	for i := range out {
		v := restored[i] * inv
		if a := abs64(v); a > peak {
			peak = a
		}
		out[i] = audio.ClampInt16(v)
	}

	if d.cfg.Normalize && peak > 0 {
		gain := 32767 / peak
		if gain > d.cfg.GainCap {
			gain = d.cfg.GainCap
		}
		if gain > 1 {
			for i := range out {
				out[i] = audio.ClampInt16(float64(out[i]) * gain)
			}
		}
	}

	return audio.AudioFrame{
		Data:       audio.EncodePCM16(out),
		SampleRate: frame.SampleRate,
		Timestamp:  frame.Timestamp,
	}, nil
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
