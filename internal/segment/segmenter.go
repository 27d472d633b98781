// Package segment accumulates VAD-classified frames into complete utterances.
//
// The segmenter buffers frames between SpeechStart and SpeechEnd boundaries,
// prepends a short pre-roll of the frames that triggered the onset debounce
// (so the first phonemes are not lost), and finalizes each utterance exactly
// once — on the end boundary or when the maximum duration is reached,
// whichever comes first. Utterances shorter than the minimum duration floor
// (a cough, a door slam) are discarded and counted rather than forwarded.
package segment

import (
	"time"

	"github.com/realtalk/realtalk/internal/vad"
	"github.com/realtalk/realtalk/pkg/audio"
)

const (
	// defaultMinDuration is the floor below which a segment is rejected.
	defaultMinDuration = 200 * time.Millisecond

	// defaultMaxDuration force-finalizes a segment that never goes quiet.
	defaultMaxDuration = 15 * time.Second

	// defaultPreRoll is how many trailing silence frames are prepended to
	// a new utterance. Matches the VAD's onset debounce depth so the
	// frames consumed by the debounce still reach recognition.
	defaultPreRoll = 3
)

// Config holds the tuning knobs for a [Segmenter]. Zero values select the
// documented defaults.
type Config struct {
	// MinDuration rejects segments shorter than this floor.
	MinDuration time.Duration

	// MaxDuration force-finalizes segments that exceed it.
	MaxDuration time.Duration

	// PreRoll is the number of pre-onset frames prepended to each segment.
	PreRoll int
}

func (c *Config) applyDefaults() {
	if c.MinDuration <= 0 {
		c.MinDuration = defaultMinDuration
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = defaultMaxDuration
	}
	if c.PreRoll <= 0 {
		c.PreRoll = defaultPreRoll
	}
}

// Segmenter turns the per-frame VAD decision stream into finalized
// utterances with strictly increasing sequence numbers. Owned by the
// consumer goroutine; not safe for concurrent use.
type Segmenter struct {
	cfg Config

	preRoll []audio.AudioFrame
	current []audio.AudioFrame
	active  bool

	nextSeq  uint64
	rejected uint64
	forced   uint64
}

// New creates a Segmenter.
func New(cfg Config) *Segmenter {
	cfg.applyDefaults()
	return &Segmenter{
		cfg:     cfg,
		preRoll: make([]audio.AudioFrame, 0, cfg.PreRoll),
	}
}

// Process feeds one denoised frame plus its VAD state. It returns a
// finalized utterance when the frame completes one, or nil.
func (s *Segmenter) Process(frame audio.AudioFrame, state vad.State) *audio.Utterance {
	switch state {
	case vad.Silence:
		s.pushPreRoll(frame)
		return nil

	case vad.SpeechStart:
		s.current = s.current[:0]
		s.current = append(s.current, s.preRoll...)
		s.current = append(s.current, frame)
		s.preRoll = s.preRoll[:0]
		s.active = true
		return s.finalizeIfOverMax()

	case vad.Speech:
		if !s.active {
			// Continuation after a forced max-duration split: the frame
			// opens a fresh segment without a new SpeechStart marker.
			s.active = true
			s.current = s.current[:0]
		}
		s.current = append(s.current, frame)
		return s.finalizeIfOverMax()

	case vad.SpeechEnd:
		if !s.active {
			return nil
		}
		s.current = append(s.current, frame)
		return s.finalize(false)
	}
	return nil
}

// Rejected returns how many segments were discarded for being shorter than
// the minimum duration.
func (s *Segmenter) Rejected() uint64 {
	return s.rejected
}

// Forced returns how many segments were finalized by the maximum-duration
// timeout rather than a silence boundary.
func (s *Segmenter) Forced() uint64 {
	return s.forced
}

// NextSeq returns the sequence number the next emitted utterance will get.
func (s *Segmenter) NextSeq() uint64 {
	return s.nextSeq
}

// Reset discards any in-progress segment and the pre-roll history. Sequence
// numbering continues; resetting never reuses a number.
func (s *Segmenter) Reset() {
	s.preRoll = s.preRoll[:0]
	s.current = s.current[:0]
	s.active = false
}

func (s *Segmenter) pushPreRoll(frame audio.AudioFrame) {
	if len(s.preRoll) == s.cfg.PreRoll {
		copy(s.preRoll, s.preRoll[1:])
		s.preRoll = s.preRoll[:len(s.preRoll)-1]
	}
	s.preRoll = append(s.preRoll, frame)
}

func (s *Segmenter) finalizeIfOverMax() *audio.Utterance {
	if len(s.current) == 0 {
		return nil
	}
	dur := s.current[len(s.current)-1].Timestamp +
		s.current[len(s.current)-1].Duration() - s.current[0].Timestamp
	if dur < s.cfg.MaxDuration {
		return nil
	}
	s.forced++
	return s.finalize(true)
}

// finalize emits the buffered segment exactly once. Segments under the
// minimum floor are rejected and counted. After a forced finalize the
// segmenter stays ready to open a continuation segment on the next speech
// frame.
func (s *Segmenter) finalize(keepOpen bool) *audio.Utterance {
	frames := make([]audio.AudioFrame, len(s.current))
	copy(frames, s.current)
	s.current = s.current[:0]
	s.active = keepOpen

	if len(frames) == 0 {
		return nil
	}

	start := frames[0].Timestamp
	end := frames[len(frames)-1].Timestamp + frames[len(frames)-1].Duration()
	if end-start < s.cfg.MinDuration {
		s.rejected++
		return nil
	}

	utt := &audio.Utterance{
		Seq:    s.nextSeq,
		Frames: frames,
		Start:  start,
		End:    end,
	}
	s.nextSeq++
	return utt
}
