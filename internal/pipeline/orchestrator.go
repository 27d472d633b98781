// Package pipeline contains the orchestrator that drives the RealTalk
// processing chain: capture frames flow through the ring buffer into the
// noise profiler, spectral denoiser, voice activity detector, and utterance
// segmenter on a single consumer goroutine; finalized utterances are then
// processed concurrently through the recognize → translate → synthesize
// stages by a bounded worker pool, and the resulting records are re-sequenced
// so output order always matches capture order.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/realtalk/realtalk/internal/dsp"
	"github.com/realtalk/realtalk/internal/observe"
	"github.com/realtalk/realtalk/internal/resilience"
	"github.com/realtalk/realtalk/internal/segment"
	"github.com/realtalk/realtalk/internal/vad"
	"github.com/realtalk/realtalk/pkg/audio"
	"github.com/realtalk/realtalk/pkg/provider/asr"
	"github.com/realtalk/realtalk/pkg/provider/translate"
	"github.com/realtalk/realtalk/pkg/provider/tts"
	"github.com/realtalk/realtalk/pkg/types"
)

const (
	defaultWorkers      = 4
	defaultQueueSize    = 32
	defaultRingCapacity = 256
	defaultStageTimeout = 10 * time.Second
	defaultStallTimeout = 30 * time.Second
)

// Config holds the orchestrator's tuning knobs. Component sub-configs keep
// their own defaults; zero values on the orchestrator's own fields select the
// documented defaults.
type Config struct {
	// SampleRate and FrameSamples describe the capture frame geometry.
	// Required; FrameSamples is propagated into the DSP sub-configs.
	SampleRate   int
	FrameSamples int

	// RingCapacity sizes the capture ring buffer in frames.
	RingCapacity int

	// Profiler, Denoiser, VAD, and Segmenter configure the frame chain.
	Profiler  dsp.ProfilerConfig
	Denoiser  dsp.DenoiserConfig
	VAD       vad.Config
	Segmenter segment.Config

	// Workers bounds how many utterances are processed concurrently.
	Workers int

	// QueueSize bounds the pending-utterance queue. When it fills, the
	// consumer goroutine blocks and the ring buffer absorbs (and eventually
	// drops) capture overflow.
	QueueSize int

	// StageTimeout bounds each stage attempt.
	StageTimeout time.Duration

	// StallTimeout bounds how long the consumer may block on a full
	// utterance queue before the pipeline halts with [ErrPipelineFatal].
	StallTimeout time.Duration

	// Retry is the orchestrator's retry policy per stage call.
	Retry resilience.RetryConfig

	// BreakerEnabled wires a circuit breaker around each stage.
	BreakerEnabled bool

	// SourceLang and TargetLang fix the translation route.
	SourceLang types.Language
	TargetLang types.Language

	// DetectLanguage flips the route per utterance based on the transcript
	// script, enabling bidirectional conversation on a single stream.
	DetectLanguage bool
}

func (c *Config) applyDefaults() {
	if c.RingCapacity <= 0 {
		c.RingCapacity = defaultRingCapacity
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = defaultStageTimeout
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = defaultStallTimeout
	}
	if c.SourceLang == "" {
		c.SourceLang = types.LangHindi
	}
	if c.TargetLang == "" {
		c.TargetLang = c.SourceLang.Opposite()
	}
	c.Profiler.FrameSamples = c.FrameSamples
	c.Denoiser.FrameSamples = c.FrameSamples
}

// task carries a finalized utterance to the worker pool.
type task struct {
	utt       audio.Utterance
	finalized time.Time
}

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// WithMetrics overrides the default metrics instance. Tests use this with an
// isolated meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// Orchestrator drives one capture stream end to end. Create with [New], start
// with [Run], and consume records from [Output]. An Orchestrator runs once.
type Orchestrator struct {
	cfg Config

	source    audio.Source
	ring      *audio.RingBuffer
	profiler  *dsp.Profiler
	denoiser  *dsp.Denoiser
	detector  *vad.Detector
	segmenter *segment.Segmenter

	recognizer  asr.Provider
	translator  translate.Provider
	synthesizer tts.Provider

	recognize  *stage
	translate  *stage
	synthesize *stage

	queue   chan task
	results chan Record
	out     chan Record
	sem     *semaphore.Weighted

	log     *slog.Logger
	metrics *observe.Metrics

	started    atomic.Bool
	calibrated atomic.Bool

	// frame-chain state owned by the consumer goroutine
	prevSilence  bool
	lastDrops    uint64
	lastRejected uint64
	lastForced   uint64
}

// New creates an Orchestrator over the given source and stage providers.
func New(cfg Config, src audio.Source, rec asr.Provider, tr translate.Provider, synth tts.Provider, opts ...Option) *Orchestrator {
	cfg.applyDefaults()

	o := &Orchestrator{
		cfg:         cfg,
		source:      src,
		ring:        audio.NewRingBuffer(cfg.RingCapacity),
		profiler:    dsp.NewProfiler(cfg.Profiler),
		denoiser:    dsp.NewDenoiser(cfg.Denoiser),
		segmenter:   segment.New(cfg.Segmenter),
		recognizer:  rec,
		translator:  tr,
		synthesizer: synth,
		recognize:   newStage(StageRecognize, cfg.StageTimeout, cfg.BreakerEnabled),
		translate:   newStage(StageTranslate, cfg.StageTimeout, cfg.BreakerEnabled),
		synthesize:  newStage(StageSynthesize, cfg.StageTimeout, cfg.BreakerEnabled),
		queue:       make(chan task, cfg.QueueSize),
		results:     make(chan Record, cfg.Workers),
		out:         make(chan Record, cfg.QueueSize),
		sem:         semaphore.NewWeighted(int64(cfg.Workers)),
		log:         slog.Default(),
		prevSilence: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Output returns the ordered record stream. The channel is closed when Run
// returns. Records arrive in strict sequence order with no gaps.
func (o *Orchestrator) Output() <-chan Record {
	return o.out
}

// Calibrated reports whether the noise-calibration warm-up has completed and
// speech detection is live. Safe to call from any goroutine; used as a
// readiness check.
func (o *Orchestrator) Calibrated() bool {
	return o.calibrated.Load()
}

// Drops returns the total capture frames dropped by ring-buffer overwrite.
func (o *Orchestrator) Drops() uint64 {
	return o.ring.Drops()
}

// Run starts the capture stream and blocks until the source ends or ctx is
// cancelled, then drains in-flight utterances and closes [Output]. Run may
// only be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return ErrClosed
	}

	frames, err := o.source.Start(ctx)
	if err != nil {
		close(o.out)
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.capture(frames) })
	g.Go(func() error { return o.consume(ctx) })
	g.Go(func() error { return o.dispatch(ctx) })
	g.Go(func() error { return o.collect(ctx) })

	err = g.Wait()
	if cerr := o.source.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// capture moves frames from the source channel into the ring buffer. Push
// never blocks, so this goroutine keeps pace with the device no matter how
// slow the chain downstream is.
func (o *Orchestrator) capture(frames <-chan audio.AudioFrame) error {
	defer o.ring.Close()
	for frame := range frames {
		o.ring.Push(frame)
	}
	return nil
}

// consume is the single-threaded frame chain: profiler, denoiser, VAD, and
// segmenter. It parks on the ring doorbell between bursts and closes the
// utterance queue when the stream ends.
func (o *Orchestrator) consume(ctx context.Context) error {
	defer close(o.queue)

	for {
		if err := o.drainRing(ctx); err != nil {
			return err
		}

		select {
		case <-o.ring.Ready():
		case <-o.ring.Closed():
			return o.drainRing(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) drainRing(ctx context.Context) error {
	for {
		frame, ok := o.ring.Pop()
		if !ok {
			break
		}
		if err := o.handleFrame(ctx, frame); err != nil {
			return err
		}
	}
	if drops := o.ring.Drops(); drops > o.lastDrops {
		o.metrics.FrameDrops.Add(ctx, int64(drops-o.lastDrops))
		o.log.Warn("capture overflow, oldest frames dropped",
			"dropped", drops-o.lastDrops,
			"total", drops)
		o.lastDrops = drops
	}
	return nil
}

// handleFrame advances the frame chain by one frame. The profiler sees the
// raw frame together with the VAD's classification of the previous frame;
// denoising and detection then run on the current one. The only error it
// returns is fatal: a dispatch stall past the stall timeout.
func (o *Orchestrator) handleFrame(ctx context.Context, frame audio.AudioFrame) error {
	o.profiler.Observe(frame, o.prevSilence)

	if o.profiler.Warming() {
		o.prevSilence = true
		return nil
	}

	if o.detector == nil {
		threshold := o.profiler.InitialThreshold()
		o.detector = vad.New(o.cfg.VAD, threshold)
		o.calibrated.Store(true)
		o.log.Info("noise calibration complete",
			"initial_threshold", threshold)
	}

	denoised, err := o.denoiser.Process(frame, o.profiler.Snapshot())
	if err != nil {
		o.metrics.FrameFaults.Add(ctx, 1)
		o.log.Warn("skipping malformed frame", "error", err)
		return nil
	}

	decision := o.detector.Process(denoised)
	o.prevSilence = decision.State == vad.Silence

	utt := o.segmenter.Process(denoised, decision.State)
	o.syncSegmentCounters(ctx)
	if utt == nil {
		return nil
	}

	o.metrics.Utterances.Add(ctx, 1)
	o.log.Debug("utterance finalized",
		"seq", utt.Seq,
		"duration", utt.Duration(),
		"frames", len(utt.Frames))

	// Blocking here is intended: the ring buffer upstream absorbs capture
	// overflow while the worker pool catches up. A stall longer than the
	// stall timeout means the pool is wedged, and the pipeline halts.
	stall := time.NewTimer(o.cfg.StallTimeout)
	defer stall.Stop()
	select {
	case o.queue <- task{utt: *utt, finalized: time.Now()}:
		return nil
	case <-stall.C:
		o.log.Error("utterance queue stalled, halting pipeline",
			"seq", utt.Seq,
			"stall_timeout", o.cfg.StallTimeout,
			"queue_size", cap(o.queue))
		return ErrPipelineFatal
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) syncSegmentCounters(ctx context.Context) {
	if rej := o.segmenter.Rejected(); rej > o.lastRejected {
		o.metrics.RejectedSegments.Add(ctx, int64(rej-o.lastRejected))
		o.lastRejected = rej
	}
	if forced := o.segmenter.Forced(); forced > o.lastForced {
		o.metrics.ForcedSegments.Add(ctx, int64(forced-o.lastForced))
		o.lastForced = forced
	}
}

// dispatch feeds the worker pool from the utterance queue, bounding
// concurrency with the semaphore, and closes the result channel once every
// worker has finished.
func (o *Orchestrator) dispatch(ctx context.Context) error {
	var wg sync.WaitGroup
	var err error

	for t := range o.queue {
		if aerr := o.sem.Acquire(ctx, 1); aerr != nil {
			err = aerr
			break
		}
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			defer o.sem.Release(1)

			rec := o.process(ctx, t)
			select {
			case o.results <- rec:
			case <-ctx.Done():
			}
		}(t)
	}

	wg.Wait()
	close(o.results)
	return err
}

// collect re-sequences worker results and emits them in capture order.
func (o *Orchestrator) collect(ctx context.Context) error {
	defer close(o.out)

	buf := newReorderBuffer(0)
	for rec := range o.results {
		for _, r := range buf.Add(rec) {
			o.metrics.UtteranceDuration.Record(ctx, time.Since(r.finalized).Seconds())
			if r.Failed() {
				o.log.Warn("utterance failed",
					"seq", r.Seq,
					"stage", r.FailedStage,
					"error", r.Err)
			}
			select {
			case o.out <- r:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if n := buf.Pending(); n > 0 {
		o.log.Warn("discarding records stranded by shutdown",
			"pending", n,
			"watermark", buf.Watermark())
	}
	return nil
}

// process runs one utterance through the three stages and always returns a
// record, failed or not, so the output sequence never skips a number. Each
// utterance gets one span covering all of its stage calls.
func (o *Orchestrator) process(ctx context.Context, t task) Record {
	ctx, span := observe.StartSpan(ctx, "pipeline.utterance",
		trace.WithAttributes(
			attribute.Int64("utterance.seq", int64(t.utt.Seq)),
			attribute.Int64("utterance.frames", int64(len(t.utt.Frames))),
		))
	defer span.End()

	rec := Record{
		Seq:       t.utt.Seq,
		Start:     t.utt.Start,
		End:       t.utt.End,
		finalized: t.finalized,
	}

	o.metrics.InFlight.Add(ctx, 1)
	defer o.metrics.InFlight.Add(ctx, -1)

	source, target := o.cfg.SourceLang, o.cfg.TargetLang

	if err := o.runStage(ctx, o.recognize, func(ctx context.Context) error {
		tr, err := o.recognizer.Recognize(ctx, t.utt, source)
		if err == nil {
			rec.Transcript = tr
		}
		return err
	}); err != nil {
		rec.Err, rec.FailedStage = err, StageRecognize
		return rec
	}

	if rec.Transcript.Text == "" {
		return rec
	}

	if o.cfg.DetectLanguage {
		source = types.DetectLanguage(rec.Transcript.Text)
		target = source.Opposite()
	}

	if err := o.runStage(ctx, o.translate, func(ctx context.Context) error {
		tr, err := o.translator.Translate(ctx, rec.Transcript.Text, source, target)
		if err == nil {
			rec.Translation = tr
		}
		return err
	}); err != nil {
		rec.Err, rec.FailedStage = err, StageTranslate
		return rec
	}

	if err := o.runStage(ctx, o.synthesize, func(ctx context.Context) error {
		clip, err := o.synthesizer.Synthesize(ctx, rec.Translation.Text, target)
		if err == nil {
			rec.Audio = clip
		}
		return err
	}); err != nil {
		rec.Err, rec.FailedStage = err, StageSynthesize
		return rec
	}

	return rec
}

// runStage applies the orchestrator's retry policy around one stage call and
// records latency and failure metrics.
func (o *Orchestrator) runStage(ctx context.Context, s *stage, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := resilience.Retry(ctx, o.cfg.Retry, func(ctx context.Context) error {
		return s.run(ctx, fn)
	})
	o.metrics.RecordStageDuration(ctx, s.name, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordStageFailure(ctx, s.name, failureReason(err))
		trace.SpanFromContext(ctx).RecordError(err)
		observe.Logger(ctx).Warn("stage call failed",
			"stage", s.name,
			"error", err)
	}
	return err
}
