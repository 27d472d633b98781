// Package mock provides an in-memory implementation of [audio.Source] for
// use in unit tests and end-to-end pipeline tests.
//
// The mock replays a scripted sequence of frames at either full speed
// (default) or paced at the real-time frame rate. It records call counts so
// tests can assert on lifecycle behavior.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/realtalk/realtalk/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

// Source is a scripted mock implementation of [audio.Source].
// Set the exported fields before calling Start; inspect the Call* fields
// after the test.
type Source struct {
	mu sync.Mutex

	// Frames is the scripted frame sequence delivered by Start.
	Frames []audio.AudioFrame

	// SampleRate and FrameSamples are reported by Format.
	// Defaults: 16000 Hz, 320 samples.
	SampleRate   int
	FrameSamples int

	// Paced delivers frames at the real-time frame rate instead of as fast
	// as the consumer reads.
	Paced bool

	// StartError is returned by Start when non-nil.
	StartError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Start implements [audio.Source]. It replays the scripted frames on a
// background goroutine and closes the returned channel when the script is
// exhausted or ctx is cancelled.
func (s *Source) Start(ctx context.Context) (<-chan audio.AudioFrame, error) {
	s.mu.Lock()
	s.CallCountStart++
	frames := make([]audio.AudioFrame, len(s.Frames))
	copy(frames, s.Frames)
	paced := s.Paced
	err := s.StartError
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make(chan audio.AudioFrame)
	go func() {
		defer close(out)
		var tick *time.Ticker
		if paced {
			rate, samples := s.Format()
			tick = time.NewTicker(time.Duration(samples) * time.Second / time.Duration(rate))
			defer tick.Stop()
		}
		for _, f := range frames {
			if tick != nil {
				select {
				case <-tick.C:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Format implements [audio.Source].
func (s *Source) Format() (sampleRate, frameSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rate, samples := s.SampleRate, s.FrameSamples
	if rate == 0 {
		rate = 16000
	}
	if samples == 0 {
		samples = 320
	}
	return rate, samples
}

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return nil
}
