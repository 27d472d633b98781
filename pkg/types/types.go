// Package types defines the shared types used across all RealTalk packages.
//
// These types form the lingua franca between the capture layer, the DSP
// chain, the pipeline orchestrator, and the stage providers. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// Language is a BCP-47 style language tag as understood by the recognition,
// translation, and synthesis providers (e.g. "hi", "en").
type Language string

const (
	// LangHindi is Devanagari-script Hindi.
	LangHindi Language = "hi"

	// LangEnglish is English.
	LangEnglish Language = "en"
)

// IsValid reports whether l is a language the pipeline can route.
func (l Language) IsValid() bool {
	return l == LangHindi || l == LangEnglish
}

// Transcript represents a speech recognition result for one utterance.
type Transcript struct {
	// Text is the recognized speech content.
	Text string

	// Language is the language the recognizer was configured for.
	Language Language

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// Duration is the length of the recognized audio.
	Duration time.Duration
}

// Translation represents a machine translation result.
type Translation struct {
	// Text is the translated text.
	Text string

	// Source and Target are the language pair the translation was
	// performed over.
	Source Language
	Target Language
}

// AudioClip is a finished block of synthesized audio returned by a TTS
// provider. Unlike pipeline frames, clips are variable-length.
type AudioClip struct {
	// PCM is 16-bit little-endian mono audio data.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int
}

// Duration returns the playback length of the clip. Returns zero for clips
// with an unset sample rate.
func (c AudioClip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	samples := len(c.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// DetectLanguage classifies text as Hindi or English by script: any
// Devanagari code point marks the text as Hindi, everything else is treated
// as English. The pipeline uses this to flip translation direction in
// bidirectional mode.
func DetectLanguage(text string) Language {
	for _, r := range text {
		if r >= 0x0900 && r <= 0x097F {
			return LangHindi
		}
	}
	return LangEnglish
}

// Opposite returns the other half of the hi↔en pair. Unknown languages map
// to Hindi, matching the default capture language.
func (l Language) Opposite() Language {
	if l == LangHindi {
		return LangEnglish
	}
	return LangHindi
}
