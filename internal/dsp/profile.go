// Package dsp implements the noise-estimation and spectral-subtraction stages
// of the RealTalk frame chain.
//
// The NoiseProfiler maintains a per-frequency-bin estimate of the ambient
// noise spectrum, learned during an explicit warm-up window at pipeline start
// and refined continuously on frames the VAD classified as silence. The
// Denoiser subtracts that estimate from each frame in the frequency domain,
// clamped to a spectral floor so residual magnitudes are never driven to zero
// (which produces musical-noise artifacts).
//
// Both stages run synchronously on the single consumer goroutine; neither is
// safe for concurrent use and neither needs to be.
package dsp

// NoiseProfile is a read-only snapshot of the ambient noise spectrum.
// It is produced by [Profiler.Snapshot] and consumed by [Denoiser.Process];
// only the profiler mutates the underlying estimate.
type NoiseProfile struct {
	// Bins holds the magnitude estimate per frequency bin
	// (length fftSize/2 + 1).
	Bins []float64

	// Confidence counts how many silence frames contributed to the
	// estimate, capped at the profiler's confidence ceiling.
	Confidence int

	// Gain is the subtraction strength gate in [0, 1] derived from
	// Confidence: a young profile is trusted less so speech is not
	// over-suppressed before the estimate stabilizes.
	Gain float64
}

// Ready reports whether the profile has seen at least one frame.
func (p NoiseProfile) Ready() bool {
	return p.Confidence > 0 && len(p.Bins) > 0
}
