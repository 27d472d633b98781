package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/realtalk/realtalk/pkg/audio"
)

const (
	// defaultWarmupFrames is the number of initial frames always treated as
	// silence regardless of VAD output (~2 s of 20 ms frames).
	defaultWarmupFrames = 100

	// defaultSmoothing is the exponential smoothing factor applied to the
	// spectrum estimate on each silence frame.
	defaultSmoothing = 0.1

	// defaultMaxConfidence is the silence-frame count at which the profile
	// is fully trusted (subtraction gain reaches 1.0).
	defaultMaxConfidence = 50

	// defaultThresholdFloor is the minimum initial speech threshold in mean
	// absolute sample amplitude. Guards against a dead-quiet calibration
	// producing a hair-trigger VAD.
	defaultThresholdFloor = 300
)

// ProfilerConfig holds the tuning knobs for a [Profiler]. The zero value
// selects the defaults documented on each field's constant.
type ProfilerConfig struct {
	// FrameSamples is the fixed frame length in samples. Required.
	FrameSamples int

	// WarmupFrames is the length of the explicit calibration window at
	// pipeline start. Frames inside the window always update the profile.
	WarmupFrames int

	// Smoothing is the exponential smoothing factor in (0, 1].
	Smoothing float64

	// MaxConfidence caps the confidence counter.
	MaxConfidence int

	// ThresholdFloor is the minimum initial VAD threshold.
	ThresholdFloor float64
}

func (c *ProfilerConfig) applyDefaults() {
	if c.WarmupFrames <= 0 {
		c.WarmupFrames = defaultWarmupFrames
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = defaultSmoothing
	}
	if c.MaxConfidence <= 0 {
		c.MaxConfidence = defaultMaxConfidence
	}
	if c.ThresholdFloor <= 0 {
		c.ThresholdFloor = defaultThresholdFloor
	}
}

// Profiler estimates the ambient noise spectrum. It has two modes: during the
// warm-up window every frame updates the estimate; afterwards only frames the
// VAD classified as silence do. The VAD classification it consumes is that of
// the previous frame (a one-frame lag, fed back by the orchestrator), so the
// profiler never sits upstream of the VAD in the chain.
//
// Not safe for concurrent use; owned by the consumer goroutine.
type Profiler struct {
	cfg     ProfilerConfig
	fft     *fourier.FFT
	fftSize int

	bins       []float64
	confidence int
	seen       int

	// Welford accumulators over warm-up frame energies, used to derive the
	// initial adaptive VAD threshold the way the original calibration did:
	// mean + 2·stddev, floored.
	energyMean float64
	energyM2   float64
}

// NewProfiler creates a Profiler for the given frame geometry.
func NewProfiler(cfg ProfilerConfig) *Profiler {
	cfg.applyDefaults()
	size := fftSizeFor(cfg.FrameSamples)
	return &Profiler{
		cfg:     cfg,
		fft:     fourier.NewFFT(size),
		fftSize: size,
		bins:    make([]float64, size/2+1),
	}
}

// Warming reports whether the profiler is still inside its warm-up window.
func (p *Profiler) Warming() bool {
	return p.seen < p.cfg.WarmupFrames
}

// Observe feeds one frame into the estimate. prevWasSilence is the VAD's
// classification of the previous frame; it is ignored during warm-up, where
// every frame is treated as silence.
func (p *Profiler) Observe(frame audio.AudioFrame, prevWasSilence bool) {
	warming := p.Warming()
	p.seen++

	samples := audio.DecodePCM16(frame.Data)

	if warming {
		// Track energy statistics for the initial threshold.
		energy := audio.MeanAbs(samples)
		delta := energy - p.energyMean
		p.energyMean += delta / float64(p.seen)
		p.energyM2 += delta * (energy - p.energyMean)
	} else if !prevWasSilence {
		return
	}

	mags := p.magnitudes(samples)
	alpha := p.cfg.Smoothing
	if p.confidence == 0 {
		copy(p.bins, mags)
	} else {
		for i := range p.bins {
			p.bins[i] = (1-alpha)*p.bins[i] + alpha*mags[i]
		}
	}
	if p.confidence < p.cfg.MaxConfidence {
		p.confidence++
	}
}

// Snapshot returns a copy of the current profile for the denoiser. The copy
// is safe to hold across subsequent Observe calls.
func (p *Profiler) Snapshot() NoiseProfile {
	bins := make([]float64, len(p.bins))
	copy(bins, p.bins)
	return NoiseProfile{
		Bins:       bins,
		Confidence: p.confidence,
		Gain:       float64(p.confidence) / float64(p.cfg.MaxConfidence),
	}
}

// InitialThreshold derives the starting VAD speech threshold from the
// warm-up energy statistics: mean + 2·stddev, floored at ThresholdFloor.
func (p *Profiler) InitialThreshold() float64 {
	var std float64
	if p.seen > 1 {
		std = math.Sqrt(p.energyM2 / float64(p.seen-1))
	}
	t := p.energyMean + 2*std
	if t < p.cfg.ThresholdFloor {
		t = p.cfg.ThresholdFloor
	}
	return t
}

// Reset clears the estimate and restarts the warm-up window. Use when the
// capture device or environment changes.
func (p *Profiler) Reset() {
	for i := range p.bins {
		p.bins[i] = 0
	}
	p.confidence = 0
	p.seen = 0
	p.energyMean = 0
	p.energyM2 = 0
}

// FFTSize returns the transform length used for the spectrum estimate. The
// denoiser must use the same length so bins line up.
func (p *Profiler) FFTSize() int {
	return p.fftSize
}

// magnitudes computes the magnitude spectrum of samples, zero-padded to the
// FFT length.
func (p *Profiler) magnitudes(samples []int16) []float64 {
	seq := make([]float64, p.fftSize)
	n := len(samples)
	if n > p.fftSize {
		n = p.fftSize
	}
	for i := 0; i < n; i++ {
		seq[i] = float64(samples[i])
	}
	coeffs := p.fft.Coefficients(nil, seq)
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = cmplxAbs(c)
	}
	return mags
}

// fftSizeFor returns the smallest power of two ≥ n, with a sane minimum.
func fftSizeFor(n int) int {
	size := 64
	for size < n {
		size <<= 1
	}
	return size
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
