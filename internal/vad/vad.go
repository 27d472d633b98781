// Package vad implements adaptive energy-based voice activity detection.
//
// The detector is a four-state machine over {Silence, SpeechStart, Speech,
// SpeechEnd} with consecutive-frame debounce on entry (so transient noise
// does not trigger speech) and a hangover on exit (so trailing phonemes are
// not clipped). The speech threshold adapts to slowly changing ambient noise
// by tracking an exponential moving average of silence-frame energy; under
// continuous speech the threshold freezes at its last value instead of
// drifting toward zero.
//
// Detection is synchronous and allocation-free per frame, suitable for the
// real-time consumer loop. A Detector is owned by a single goroutine.
package vad

import "github.com/realtalk/realtalk/pkg/audio"

// State enumerates the detector's frame classifications.
type State int

const (
	// Silence: no speech activity.
	Silence State = iota

	// SpeechStart: the first frame of a new speech segment. Emitted for
	// exactly one frame before transitioning to Speech.
	SpeechStart

	// Speech: ongoing speech activity.
	Speech

	// SpeechEnd: the final frame of a speech segment. Emitted for exactly
	// one frame before transitioning to Silence.
	SpeechEnd
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case Silence:
		return "silence"
	case SpeechStart:
		return "speech-start"
	case Speech:
		return "speech"
	case SpeechEnd:
		return "speech-end"
	default:
		return "unknown"
	}
}

// IsSpeech reports whether the state carries speech audio that belongs in
// the current utterance.
func (s State) IsSpeech() bool {
	return s == SpeechStart || s == Speech || s == SpeechEnd
}

// Decision is the per-frame output of [Detector.Process].
type Decision struct {
	// State is the classification of this frame.
	State State

	// Energy is the frame's mean absolute amplitude.
	Energy float64

	// Threshold is the adaptive threshold in effect for this frame.
	Threshold float64

	// Forced is set on a SpeechEnd caused by the maximum speech duration
	// rather than observed silence.
	Forced bool
}

const (
	// defaultSpeechFrames (K) is the consecutive above-threshold frame
	// count required to enter speech.
	defaultSpeechFrames = 3

	// defaultHangoverFrames (M) is the consecutive below-threshold frame
	// count required to leave speech.
	defaultHangoverFrames = 5

	// defaultMargin multiplies the adaptive threshold in the trigger test.
	defaultMargin = 1.2

	// defaultOffset is the fixed margin added to the silence-energy EMA
	// when the threshold is recomputed.
	defaultOffset = 100

	// defaultSmoothing is the EMA factor for silence-frame energy.
	defaultSmoothing = 0.05

	// Zero-crossing band accepted as plausible speech. Frames outside the
	// band (subsonic thumps, broadband hiss) never count toward the
	// speech debounce.
	defaultMinZCR = 0.005
	defaultMaxZCR = 0.75
)

// Config holds the tuning knobs for a [Detector]. Zero values select the
// documented defaults.
type Config struct {
	// SpeechFrames is the debounce count K.
	SpeechFrames int

	// HangoverFrames is the hangover count M.
	HangoverFrames int

	// Margin multiplies the threshold when testing for speech onset.
	Margin float64

	// Offset is added to the silence-energy EMA to form the threshold.
	Offset float64

	// Smoothing is the EMA factor over silence-frame energy, in (0, 1].
	Smoothing float64

	// MinZCR and MaxZCR bound the zero-crossing rate accepted as speech.
	MinZCR float64
	MaxZCR float64

	// MaxSpeechFrames forces a SpeechEnd once a segment reaches this many
	// frames. Zero disables the limit (the segmenter still enforces its
	// own maximum duration).
	MaxSpeechFrames int
}

func (c *Config) applyDefaults() {
	if c.SpeechFrames <= 0 {
		c.SpeechFrames = defaultSpeechFrames
	}
	if c.HangoverFrames <= 0 {
		c.HangoverFrames = defaultHangoverFrames
	}
	if c.Margin <= 0 {
		c.Margin = defaultMargin
	}
	if c.Offset < 0 {
		c.Offset = defaultOffset
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = defaultSmoothing
	}
	if c.MinZCR <= 0 {
		c.MinZCR = defaultMinZCR
	}
	if c.MaxZCR <= 0 {
		c.MaxZCR = defaultMaxZCR
	}
}

// Detector is the adaptive VAD state machine. Create one per stream with
// [New]; it is not safe for concurrent use.
type Detector struct {
	cfg Config

	state        State
	threshold    float64
	silenceEMA   float64
	emaSeen      bool
	aboveCount   int
	belowCount   int
	speechFrames int
}

// New creates a Detector starting in Silence with the given initial
// threshold, typically [dsp.Profiler.InitialThreshold] after warm-up.
func New(cfg Config, initialThreshold float64) *Detector {
	cfg.applyDefaults()
	return &Detector{
		cfg:       cfg,
		state:     Silence,
		threshold: initialThreshold,
	}
}

// Process classifies one denoised frame and advances the state machine.
func (d *Detector) Process(frame audio.AudioFrame) Decision {
	samples := audio.DecodePCM16(frame.Data)
	energy := audio.MeanAbs(samples)
	zcr := audio.ZeroCrossingRate(samples)

	voiced := energy > d.threshold*d.cfg.Margin &&
		zcr >= d.cfg.MinZCR && zcr <= d.cfg.MaxZCR

	switch d.state {
	case Silence, SpeechEnd:
		// SpeechEnd → Silence is immediate; both states accept onsets.
		d.state = Silence
		if !voiced {
			// Only quiet frames feed the EMA; debounce frames that are
			// loud but not yet speech would inflate the threshold.
			d.adaptThreshold(energy)
		}
		if voiced {
			d.aboveCount++
			if d.aboveCount >= d.cfg.SpeechFrames {
				d.state = SpeechStart
				d.aboveCount = 0
				d.belowCount = 0
				d.speechFrames = 1
			}
		} else {
			d.aboveCount = 0
		}

	case SpeechStart:
		// Immediate transition, one frame after the start marker.
		d.state = Speech
		d.speechFrames++
		d.trackHangover(voiced)

	case Speech:
		d.speechFrames++
		if d.cfg.MaxSpeechFrames > 0 && d.speechFrames >= d.cfg.MaxSpeechFrames {
			d.state = SpeechEnd
			d.belowCount = 0
			return Decision{State: SpeechEnd, Energy: energy, Threshold: d.threshold, Forced: true}
		}
		if d.trackHangover(voiced) {
			d.state = SpeechEnd
		}
	}

	return Decision{State: d.state, Energy: energy, Threshold: d.threshold}
}

// Reset returns the detector to Silence with a fresh initial threshold.
func (d *Detector) Reset(initialThreshold float64) {
	d.state = Silence
	d.threshold = initialThreshold
	d.silenceEMA = 0
	d.emaSeen = false
	d.aboveCount = 0
	d.belowCount = 0
	d.speechFrames = 0
}

// Threshold returns the current adaptive threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// adaptThreshold updates the silence-energy EMA and recomputes the threshold.
// Called only on silence frames, so the threshold freezes while speech is
// continuous.
func (d *Detector) adaptThreshold(energy float64) {
	if !d.emaSeen {
		d.silenceEMA = energy
		d.emaSeen = true
	} else {
		a := d.cfg.Smoothing
		d.silenceEMA = (1-a)*d.silenceEMA + a*energy
	}
	d.threshold = d.silenceEMA + d.cfg.Offset
}

// trackHangover counts consecutive unvoiced frames during speech and reports
// whether the hangover has elapsed.
func (d *Detector) trackHangover(voiced bool) bool {
	if voiced {
		d.belowCount = 0
		return false
	}
	d.belowCount++
	return d.belowCount >= d.cfg.HangoverFrames
}
