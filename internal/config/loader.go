package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/realtalk/realtalk/pkg/types"
)

// ValidProviderNames lists known provider names per pipeline stage.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":       {"vosk", "openai", "mock"},
	"translate": {"openai", "marian", "mock"},
	"tts":       {"openai", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.FrameMillis == 0 {
		cfg.Audio.FrameMillis = 20
	}
	if cfg.Audio.RingCapacity == 0 {
		cfg.Audio.RingCapacity = 256
	}
	if cfg.Denoise.WarmupFrames == 0 {
		cfg.Denoise.WarmupFrames = 100
	}
	if cfg.Denoise.Subtraction == 0 {
		cfg.Denoise.Subtraction = 1.0
	}
	if cfg.VAD.SpeechFrames == 0 {
		cfg.VAD.SpeechFrames = 3
	}
	if cfg.VAD.HangoverFrames == 0 {
		cfg.VAD.HangoverFrames = 5
	}
	if cfg.VAD.Margin == 0 {
		cfg.VAD.Margin = 1.2
	}
	if cfg.Segmenter.MinDuration == 0 {
		cfg.Segmenter.MinDuration = Duration(200 * time.Millisecond)
	}
	if cfg.Segmenter.MaxDuration == 0 {
		cfg.Segmenter.MaxDuration = Duration(15 * time.Second)
	}
	if cfg.Segmenter.PreRollFrames == 0 {
		cfg.Segmenter.PreRollFrames = 3
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 32
	}
	if cfg.Pipeline.StageTimeout == 0 {
		cfg.Pipeline.StageTimeout = Duration(10 * time.Second)
	}
	if cfg.Pipeline.StallTimeout == 0 {
		cfg.Pipeline.StallTimeout = Duration(30 * time.Second)
	}
	if cfg.Pipeline.RetryBackoff == 0 {
		cfg.Pipeline.RetryBackoff = Duration(250 * time.Millisecond)
	}
	if cfg.Languages.Source == "" {
		cfg.Languages.Source = types.LangHindi
	}
	if cfg.Languages.Target == "" {
		cfg.Languages.Target = types.LangEnglish
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is below the 8000 Hz minimum", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMillis < 5 || cfg.Audio.FrameMillis > 100 {
		errs = append(errs, fmt.Errorf("audio.frame_millis %d is out of range [5, 100]", cfg.Audio.FrameMillis))
	}
	if cfg.Audio.RingCapacity < 2 {
		errs = append(errs, fmt.Errorf("audio.ring_capacity %d must be at least 2", cfg.Audio.RingCapacity))
	}

	if cfg.Denoise.Subtraction < 0 || cfg.Denoise.Subtraction > 3 {
		errs = append(errs, fmt.Errorf("denoise.subtraction %.2f is out of range [0, 3]", cfg.Denoise.Subtraction))
	}

	if cfg.VAD.SpeechFrames < 1 {
		errs = append(errs, fmt.Errorf("vad.speech_frames %d must be at least 1", cfg.VAD.SpeechFrames))
	}
	if cfg.VAD.HangoverFrames < 1 {
		errs = append(errs, fmt.Errorf("vad.hangover_frames %d must be at least 1", cfg.VAD.HangoverFrames))
	}
	if cfg.VAD.Margin < 1 {
		errs = append(errs, fmt.Errorf("vad.margin %.2f must be at least 1.0", cfg.VAD.Margin))
	}

	if cfg.Segmenter.MinDuration >= cfg.Segmenter.MaxDuration {
		errs = append(errs, fmt.Errorf("segmenter.min_duration %s must be less than segmenter.max_duration %s",
			cfg.Segmenter.MinDuration, cfg.Segmenter.MaxDuration))
	}

	if cfg.Pipeline.Workers < 1 {
		errs = append(errs, fmt.Errorf("pipeline.workers %d must be at least 1", cfg.Pipeline.Workers))
	}
	if cfg.Pipeline.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.queue_size %d must be at least 1", cfg.Pipeline.QueueSize))
	}

	if !cfg.Languages.Source.IsValid() {
		errs = append(errs, fmt.Errorf("languages.source %q is invalid; valid values: hi, en", cfg.Languages.Source))
	}
	if !cfg.Languages.Target.IsValid() {
		errs = append(errs, fmt.Errorf("languages.target %q is invalid; valid values: hi, en", cfg.Languages.Target))
	}
	if cfg.Languages.Source.IsValid() && cfg.Languages.Source == cfg.Languages.Target {
		errs = append(errs, fmt.Errorf("languages.source and languages.target are both %q; the route must translate between languages", cfg.Languages.Source))
	}

	validateProviderName("asr", cfg.Providers.ASR.Name)
	validateProviderName("translate", cfg.Providers.Translate.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.ASR.Name == "" {
		errs = append(errs, errors.New("providers.asr.name is required"))
	}
	if cfg.Providers.Translate.Name == "" {
		errs = append(errs, errors.New("providers.translate.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
