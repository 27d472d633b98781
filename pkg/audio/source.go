package audio

import "context"

// Source is the abstraction over an audio input device. The pipeline treats
// device acquisition as opaque: a Source delivers fixed-size frames at a
// fixed sample rate for as long as the stream is open.
//
// This lives under pkg/ because platform adapter packages (ALSA, network
// taps, file replay) are expected to implement it.
type Source interface {
	// Start opens the device and returns a read-only channel of captured
	// frames. The channel is closed when the stream ends or ctx is
	// cancelled. Frames must arrive at the device's real-time rate; the
	// caller is responsible for never blocking the channel (see RingBuffer).
	Start(ctx context.Context) (<-chan AudioFrame, error)

	// Format reports the sample rate (Hz) and frame size (samples) the
	// source produces.
	Format() (sampleRate, frameSamples int)

	// Close releases the device. Calling Close more than once is safe.
	Close() error
}
