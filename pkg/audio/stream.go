package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Compile-time interface assertion.
var _ Source = (*StreamSource)(nil)

// StreamSource adapts an io.Reader of raw 16-bit little-endian mono PCM into
// a frame [Source]. It is the capture path for piped audio (arecord, sox, a
// network tap) and for file replay in development.
//
// Frames are paced at the real-time rate by default so the downstream chain
// sees device-like timing; pacing can be disabled for faster-than-real-time
// replay.
type StreamSource struct {
	r            io.Reader
	sampleRate   int
	frameSamples int
	paced        bool

	closeOnce sync.Once
	closed    chan struct{}
}

// StreamOption is a functional option for configuring a [StreamSource].
type StreamOption func(*StreamSource)

// WithoutPacing disables real-time pacing so frames are delivered as fast as
// the reader produces them.
func WithoutPacing() StreamOption {
	return func(s *StreamSource) {
		s.paced = false
	}
}

// NewStreamSource creates a StreamSource over r with the given frame
// geometry.
func NewStreamSource(r io.Reader, sampleRate, frameSamples int, opts ...StreamOption) (*StreamSource, error) {
	if sampleRate <= 0 || frameSamples <= 0 {
		return nil, fmt.Errorf("audio: invalid stream geometry %d Hz / %d samples", sampleRate, frameSamples)
	}
	s := &StreamSource{
		r:            r,
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
		paced:        true,
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Format implements [Source].
func (s *StreamSource) Format() (sampleRate, frameSamples int) {
	return s.sampleRate, s.frameSamples
}

// Start implements [Source]. The returned channel closes on EOF, on ctx
// cancellation, or after [StreamSource.Close]. A trailing partial frame at
// EOF is discarded.
func (s *StreamSource) Start(ctx context.Context) (<-chan AudioFrame, error) {
	out := make(chan AudioFrame)
	frameDur := time.Duration(s.frameSamples) * time.Second / time.Duration(s.sampleRate)

	go func() {
		defer close(out)

		var ticker *time.Ticker
		if s.paced {
			ticker = time.NewTicker(frameDur)
			defer ticker.Stop()
		}

		var timestamp time.Duration
		frameBytes := s.frameSamples * 2

		for {
			buf := make([]byte, frameBytes)
			if _, err := io.ReadFull(s.r, buf); err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					// Reader failure ends the stream; the pipeline treats a
					// closed frame channel as end of capture.
					slog.Warn("audio stream read failed, ending capture",
						"error", err)
				}
				return
			}

			if ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				case <-s.closed:
					return
				}
			}

			frame := AudioFrame{
				Data:       buf,
				SampleRate: s.sampleRate,
				Timestamp:  timestamp,
			}
			timestamp += frameDur

			select {
			case out <- frame:
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			}
		}
	}()

	return out, nil
}

// Close implements [Source]. It stops the frame goroutine; the underlying
// reader is owned by the caller and is not closed here.
func (s *StreamSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
