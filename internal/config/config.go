// Package config provides the configuration schema and loader for the
// RealTalk speech-translation service.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/realtalk/realtalk/pkg/types"
)

// Duration is a [time.Duration] that unmarshals from YAML strings like
// "250ms" or "15s". Bare integers are read as nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats the duration like time.Duration does.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// LogLevel controls log verbosity for the RealTalk server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for RealTalk.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Denoise   DenoiseConfig   `yaml:"denoise"`
	VAD       VADConfig       `yaml:"vad"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Languages LanguagesConfig `yaml:"languages"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds network and logging settings for the RealTalk server.
type ServerConfig struct {
	// ListenAddr is the TCP address the health and metrics endpoints listen
	// on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds capture-format and buffering settings.
type AudioConfig struct {
	// SampleRate is the capture rate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameMillis is the capture frame length in milliseconds. Default: 20.
	FrameMillis int `yaml:"frame_millis"`

	// RingCapacity is the number of frames the capture ring buffer holds
	// before overwriting the oldest. Default: 256.
	RingCapacity int `yaml:"ring_capacity"`
}

// FrameSamples returns the number of samples per capture frame.
func (a AudioConfig) FrameSamples() int {
	return a.SampleRate * a.FrameMillis / 1000
}

// DenoiseConfig holds noise-profiling and spectral-subtraction settings.
type DenoiseConfig struct {
	// WarmupFrames is the number of initial frames treated as ambient noise
	// for calibration. Default: 100.
	WarmupFrames int `yaml:"warmup_frames"`

	// Subtraction scales how aggressively the noise spectrum is subtracted.
	// Default: 1.0.
	Subtraction float64 `yaml:"subtraction"`

	// Normalize enables peak normalization of denoised frames.
	Normalize bool `yaml:"normalize"`
}

// VADConfig holds voice-activity-detection settings.
type VADConfig struct {
	// SpeechFrames is the number of consecutive voiced frames required to
	// enter speech (debounce). Default: 3.
	SpeechFrames int `yaml:"speech_frames"`

	// HangoverFrames is the number of consecutive unvoiced frames required
	// to leave speech. Default: 5.
	HangoverFrames int `yaml:"hangover_frames"`

	// Margin multiplies the adaptive threshold when classifying a frame.
	// Default: 1.2.
	Margin float64 `yaml:"margin"`
}

// SegmenterConfig holds utterance-boundary settings.
type SegmenterConfig struct {
	// MinDuration rejects utterances shorter than this. Default: 200ms.
	MinDuration Duration `yaml:"min_duration"`

	// MaxDuration force-finalizes utterances longer than this. Default: 15s.
	MaxDuration Duration `yaml:"max_duration"`

	// PreRollFrames is how many pre-speech frames are prepended to each
	// utterance. Default: 3.
	PreRollFrames int `yaml:"pre_roll_frames"`
}

// PipelineConfig holds orchestrator concurrency and resilience settings.
type PipelineConfig struct {
	// Workers is the maximum number of utterances processed concurrently.
	// Default: 4.
	Workers int `yaml:"workers"`

	// QueueSize is the capacity of the pending-utterance queue. Default: 32.
	QueueSize int `yaml:"queue_size"`

	// StageTimeout bounds each stage call (per attempt). Default: 10s.
	StageTimeout Duration `yaml:"stage_timeout"`

	// StallTimeout is how long the dispatch queue may stay full before the
	// pipeline halts as fatally wedged. Default: 30s.
	StallTimeout Duration `yaml:"stall_timeout"`

	// RetryBackoff is the pause before the single retry of a failed stage
	// call. Default: 250ms.
	RetryBackoff Duration `yaml:"retry_backoff"`

	// BreakerEnabled wires a circuit breaker around each stage.
	BreakerEnabled bool `yaml:"breaker_enabled"`
}

// LanguagesConfig selects the translation route. When Detect is true, the
// source language is detected per utterance from the transcript script and
// translated to its opposite.
type LanguagesConfig struct {
	// Source is the expected spoken language ("hi" or "en").
	Source types.Language `yaml:"source"`

	// Target is the translation target ("hi" or "en").
	Target types.Language `yaml:"target"`

	// Detect enables per-utterance script-based language detection,
	// overriding Source/Target per transcript.
	Detect bool `yaml:"detect"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage.
type ProvidersConfig struct {
	ASR       ProviderEntry `yaml:"asr"`
	Translate ProviderEntry `yaml:"translate"`
	TTS       ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "vosk", "openai",
	// "marian").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint, or is the server
	// address for self-hosted providers (vosk, marian).
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "tts-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}
