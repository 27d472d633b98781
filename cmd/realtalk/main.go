// Command realtalk runs the real-time speech-translation pipeline: raw PCM
// audio in, recognized / translated / synthesized utterance records out, in
// strict capture order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/realtalk/realtalk/internal/config"
	"github.com/realtalk/realtalk/internal/dsp"
	"github.com/realtalk/realtalk/internal/health"
	"github.com/realtalk/realtalk/internal/observe"
	"github.com/realtalk/realtalk/internal/pipeline"
	"github.com/realtalk/realtalk/internal/resilience"
	"github.com/realtalk/realtalk/internal/segment"
	"github.com/realtalk/realtalk/internal/vad"
	"github.com/realtalk/realtalk/pkg/audio"
	"github.com/realtalk/realtalk/pkg/provider/asr"
	asropenai "github.com/realtalk/realtalk/pkg/provider/asr/openai"
	"github.com/realtalk/realtalk/pkg/provider/asr/vosk"
	"github.com/realtalk/realtalk/pkg/provider/translate"
	"github.com/realtalk/realtalk/pkg/provider/translate/marian"
	tropenai "github.com/realtalk/realtalk/pkg/provider/translate/openai"
	"github.com/realtalk/realtalk/pkg/provider/tts"
	ttsopenai "github.com/realtalk/realtalk/pkg/provider/tts/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	inputPath := flag.String("input", "-", `raw PCM input: "-" for stdin or a file path`)
	outDir := flag.String("out", "", "directory for synthesized utterance PCM (disabled when empty)")
	replay := flag.Bool("replay", false, "deliver file input faster than real time")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "realtalk: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "realtalk: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("realtalk starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "realtalk",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	recognizer, err := buildASR(cfg.Providers.ASR)
	if err != nil {
		slog.Error("failed to build asr provider", "err", err)
		return 1
	}
	translator, err := buildTranslate(cfg.Providers.Translate)
	if err != nil {
		slog.Error("failed to build translate provider", "err", err)
		return 1
	}
	synthesizer, err := buildTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to build tts provider", "err", err)
		return 1
	}

	// ── Audio input ───────────────────────────────────────────────────────────
	source, cleanup, err := openInput(*inputPath, cfg.Audio, *replay)
	if err != nil {
		slog.Error("failed to open audio input", "err", err)
		return 1
	}
	defer cleanup()

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch := pipeline.New(pipeline.Config{
		SampleRate:   cfg.Audio.SampleRate,
		FrameSamples: cfg.Audio.FrameSamples(),
		RingCapacity: cfg.Audio.RingCapacity,
		Profiler: dsp.ProfilerConfig{
			WarmupFrames: cfg.Denoise.WarmupFrames,
		},
		Denoiser: dsp.DenoiserConfig{
			Subtraction: cfg.Denoise.Subtraction,
			Normalize:   cfg.Denoise.Normalize,
		},
		VAD: vad.Config{
			SpeechFrames:   cfg.VAD.SpeechFrames,
			HangoverFrames: cfg.VAD.HangoverFrames,
			Margin:         cfg.VAD.Margin,
		},
		Segmenter: segment.Config{
			MinDuration: cfg.Segmenter.MinDuration.Std(),
			MaxDuration: cfg.Segmenter.MaxDuration.Std(),
			PreRoll:     cfg.Segmenter.PreRollFrames,
		},
		Workers:        cfg.Pipeline.Workers,
		QueueSize:      cfg.Pipeline.QueueSize,
		StageTimeout:   cfg.Pipeline.StageTimeout.Std(),
		StallTimeout:   cfg.Pipeline.StallTimeout.Std(),
		Retry:          resilience.RetryConfig{Backoff: cfg.Pipeline.RetryBackoff.Std()},
		BreakerEnabled: cfg.Pipeline.BreakerEnabled,
		SourceLang:     cfg.Languages.Source,
		TargetLang:     cfg.Languages.Target,
		DetectLanguage: cfg.Languages.Detect,
	}, source, recognizer, translator, synthesizer)

	// ── Health and metrics server ─────────────────────────────────────────────
	mux := http.NewServeMux()
	health.New(health.Checker{
		Name: "calibration",
		Check: func(context.Context) error {
			if !orch.Calibrated() {
				return errors.New("noise calibration in progress")
			}
			return nil
		},
	}).Register(mux)

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server error", "err", err)
		}
	}()

	// ── Record consumer ───────────────────────────────────────────────────────
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumeRecords(orch.Output(), *outDir)
	}()

	slog.Info("pipeline ready — press Ctrl+C to shut down")

	runErr := orch.Run(ctx)
	<-done

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("health server shutdown error", "err", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("pipeline error", "err", runErr)
		return 1
	}
	slog.Info("goodbye", "frames_dropped", orch.Drops())
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildASR(entry config.ProviderEntry) (asr.Provider, error) {
	switch entry.Name {
	case "vosk":
		var opts []vosk.Option
		return vosk.New(entry.BaseURL, opts...)
	case "openai":
		var opts []asropenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, asropenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, asropenai.WithModel(entry.Model))
		}
		return asropenai.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown asr provider %q", entry.Name)
	}
}

func buildTranslate(entry config.ProviderEntry) (translate.Provider, error) {
	switch entry.Name {
	case "marian":
		return marian.New(entry.BaseURL)
	case "openai":
		var opts []tropenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, tropenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, tropenai.WithModel(entry.Model))
		}
		return tropenai.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown translate provider %q", entry.Name)
	}
}

func buildTTS(entry config.ProviderEntry) (tts.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []ttsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, ttsopenai.WithVoice(voice))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
}

// ── Audio input ───────────────────────────────────────────────────────────────

func openInput(path string, cfg config.AudioConfig, replay bool) (audio.Source, func(), error) {
	var r io.Reader
	cleanup := func() {}

	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		r = f
		cleanup = func() { f.Close() }
	}

	var opts []audio.StreamOption
	if replay {
		opts = append(opts, audio.WithoutPacing())
	}
	src, err := audio.NewStreamSource(r, cfg.SampleRate, cfg.FrameSamples(), opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return src, cleanup, nil
}

// ── Record output ─────────────────────────────────────────────────────────────

// consumeRecords logs each emitted record and optionally writes synthesized
// audio to outDir as seq-numbered raw PCM files.
func consumeRecords(records <-chan pipeline.Record, outDir string) {
	for rec := range records {
		switch {
		case rec.Failed():
			slog.Warn("utterance failed",
				"seq", rec.Seq,
				"stage", rec.FailedStage,
				"err", rec.Err)
		case rec.Empty():
			slog.Debug("utterance produced no text", "seq", rec.Seq)
		default:
			slog.Info("utterance",
				"seq", rec.Seq,
				"text", rec.Transcript.Text,
				"translation", rec.Translation.Text,
				"route", fmt.Sprintf("%s→%s", rec.Translation.Source, rec.Translation.Target),
				"audio", rec.Audio.Duration())

			if outDir != "" && len(rec.Audio.PCM) > 0 {
				name := filepath.Join(outDir, fmt.Sprintf("utterance-%06d.pcm", rec.Seq))
				if err := os.WriteFile(name, rec.Audio.PCM, 0o644); err != nil {
					slog.Warn("failed to write audio", "seq", rec.Seq, "err", err)
				}
			}
		}
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
