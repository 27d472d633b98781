package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/realtalk/realtalk/internal/pipeline"
	"github.com/realtalk/realtalk/pkg/audio"
	audiomock "github.com/realtalk/realtalk/pkg/audio/mock"
	asrmock "github.com/realtalk/realtalk/pkg/provider/asr/mock"
	trmock "github.com/realtalk/realtalk/pkg/provider/translate/mock"
	ttsmock "github.com/realtalk/realtalk/pkg/provider/tts/mock"
	"github.com/realtalk/realtalk/pkg/types"
)

const (
	frameSamples = 320
	sampleRate   = 16000
	warmupFrames = 10
)

// quietFrame is a near-silent frame for calibration and inter-utterance gaps.
func quietFrame(i int) audio.AudioFrame {
	return audio.AudioFrame{
		Data:       make([]byte, frameSamples*2),
		SampleRate: sampleRate,
		Timestamp:  time.Duration(i) * 20 * time.Millisecond,
	}
}

// speechFrame is a loud square wave with a speech-plausible crossing rate.
func speechFrame(i int) audio.AudioFrame {
	samples := make([]int16, frameSamples)
	for j := range samples {
		if (j/20)%2 == 0 {
			samples[j] = 4000
		} else {
			samples[j] = -4000
		}
	}
	return audio.AudioFrame{
		Data:       audio.EncodePCM16(samples),
		SampleRate: sampleRate,
		Timestamp:  time.Duration(i) * 20 * time.Millisecond,
	}
}

// script builds a capture sequence: the calibration warm-up followed by the
// given number of speech bursts, each long enough to clear the minimum
// utterance duration and bounded by enough silence to trip the hangover.
func script(bursts int) []audio.AudioFrame {
	var frames []audio.AudioFrame
	i := 0
	push := func(speech bool) {
		if speech {
			frames = append(frames, speechFrame(i))
		} else {
			frames = append(frames, quietFrame(i))
		}
		i++
	}

	for j := 0; j < warmupFrames; j++ {
		push(false)
	}
	for b := 0; b < bursts; b++ {
		for j := 0; j < 3; j++ {
			push(false)
		}
		for j := 0; j < 25; j++ {
			push(true)
		}
		for j := 0; j < 8; j++ {
			push(false)
		}
	}
	return frames
}

// testConfig is the orchestrator configuration shared by the tests: a short
// calibration window and otherwise default chain behavior.
func testConfig() pipeline.Config {
	cfg := pipeline.Config{
		SampleRate:   sampleRate,
		FrameSamples: frameSamples,
		SourceLang:   types.LangHindi,
		TargetLang:   types.LangEnglish,
	}
	cfg.Profiler.WarmupFrames = warmupFrames
	return cfg
}

// runPipeline drives the orchestrator over the scripted frames and returns
// the emitted records in order.
func runPipeline(t *testing.T, cfg pipeline.Config, frames []audio.AudioFrame,
	rec *asrmock.Provider, tr *trmock.Provider, synth *ttsmock.Provider) []pipeline.Record {
	t.Helper()

	src := &audiomock.Source{
		Frames:       frames,
		SampleRate:   sampleRate,
		FrameSamples: frameSamples,
	}
	orch := pipeline.New(cfg, src, rec, tr, synth)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- orch.Run(ctx) }()

	var records []pipeline.Record
	for r := range orch.Output() {
		records = append(records, r)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	return records
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	t.Parallel()

	rec := &asrmock.Provider{Result: types.Transcript{Text: "नमस्ते"}}
	tr := &trmock.Provider{Result: "hello"}
	synth := &ttsmock.Provider{}

	cfg := testConfig()
	cfg.DetectLanguage = true

	records := runPipeline(t, cfg, script(1), rec, tr, synth)

	if len(records) != 1 {
		t.Fatalf("emitted %d records, want 1", len(records))
	}
	r := records[0]
	if r.Failed() {
		t.Fatalf("record failed: stage %s: %v", r.FailedStage, r.Err)
	}
	if r.Seq != 0 {
		t.Errorf("Seq = %d, want 0", r.Seq)
	}
	if r.Transcript.Text != "नमस्ते" {
		t.Errorf("transcript = %q, want %q", r.Transcript.Text, "नमस्ते")
	}
	if r.Translation.Text != "hello" {
		t.Errorf("translation = %q, want %q", r.Translation.Text, "hello")
	}

	// Devanagari transcript flips the route to hi→en regardless of config.
	if r.Translation.Source != types.LangHindi || r.Translation.Target != types.LangEnglish {
		t.Errorf("route = %s→%s, want hi→en", r.Translation.Source, r.Translation.Target)
	}
	if len(r.Audio.PCM) == 0 {
		t.Error("no synthesized audio")
	}

	if got := rec.CallCount(); got != 1 {
		t.Errorf("asr calls = %d, want 1", got)
	}
	if got := tr.CallCount(); got != 1 {
		t.Errorf("translate calls = %d, want 1", got)
	}
	if got := synth.CallCount(); got != 1 {
		t.Errorf("tts calls = %d, want 1", got)
	}
}

func TestOrchestrator_EmitsInCaptureOrder(t *testing.T) {
	t.Parallel()

	// Recognition latency decreases with the sequence number, so later
	// utterances finish first and the reorder buffer must hold them.
	rec := &asrmock.Provider{
		RecognizeFn: func(ctx context.Context, utt audio.Utterance, lang types.Language) (types.Transcript, error) {
			delay := time.Duration(3-utt.Seq) * 80 * time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return types.Transcript{}, ctx.Err()
			}
			return types.Transcript{Text: fmt.Sprintf("utterance %d", utt.Seq), Language: lang}, nil
		},
	}
	tr := &trmock.Provider{Result: "translated"}
	synth := &ttsmock.Provider{}

	records := runPipeline(t, testConfig(), script(3), rec, tr, synth)

	if len(records) != 3 {
		t.Fatalf("emitted %d records, want 3", len(records))
	}
	for i, r := range records {
		if r.Seq != uint64(i) {
			t.Fatalf("record %d has Seq %d; output must follow capture order", i, r.Seq)
		}
		if want := fmt.Sprintf("utterance %d", i); r.Transcript.Text != want {
			t.Errorf("record %d transcript = %q, want %q", i, r.Transcript.Text, want)
		}
	}
}

func TestOrchestrator_FailureDoesNotSkipSequenceNumbers(t *testing.T) {
	t.Parallel()

	boom := errors.New("recognizer exploded")
	var mu sync.Mutex
	callsBySeq := map[uint64]int{}

	rec := &asrmock.Provider{
		RecognizeFn: func(ctx context.Context, utt audio.Utterance, lang types.Language) (types.Transcript, error) {
			mu.Lock()
			callsBySeq[utt.Seq]++
			mu.Unlock()
			if utt.Seq == 1 {
				return types.Transcript{}, boom
			}
			return types.Transcript{Text: fmt.Sprintf("utterance %d", utt.Seq)}, nil
		},
	}
	tr := &trmock.Provider{Result: "translated"}
	synth := &ttsmock.Provider{}

	records := runPipeline(t, testConfig(), script(3), rec, tr, synth)

	if len(records) != 3 {
		t.Fatalf("emitted %d records, want 3", len(records))
	}
	for i, r := range records {
		if r.Seq != uint64(i) {
			t.Fatalf("record %d has Seq %d; failures must not create gaps", i, r.Seq)
		}
	}

	if !records[1].Failed() {
		t.Fatal("record 1 not marked failed")
	}
	if records[1].FailedStage != pipeline.StageRecognize {
		t.Errorf("failed stage = %q, want %q", records[1].FailedStage, pipeline.StageRecognize)
	}
	if !errors.Is(records[1].Err, boom) {
		t.Errorf("record error = %v, want the recognizer error", records[1].Err)
	}
	if records[0].Failed() || records[2].Failed() {
		t.Error("neighbouring utterances affected by the failure")
	}

	// Default policy: one retry for the failing utterance.
	mu.Lock()
	defer mu.Unlock()
	if got := callsBySeq[1]; got != 2 {
		t.Errorf("recognize calls for seq 1 = %d, want 2 (initial + retry)", got)
	}

	// Later stages never run for the failed utterance.
	if got := tr.CallCount(); got != 2 {
		t.Errorf("translate calls = %d, want 2", got)
	}
}

func TestOrchestrator_TranslateFailureRetainsTranscript(t *testing.T) {
	t.Parallel()

	rec := &asrmock.Provider{
		RecognizeFn: func(ctx context.Context, utt audio.Utterance, lang types.Language) (types.Transcript, error) {
			return types.Transcript{Text: fmt.Sprintf("utterance %d", utt.Seq)}, nil
		},
	}
	boom := errors.New("translation backend down")
	tr := &trmock.Provider{
		TranslateFn: func(ctx context.Context, text string, source, target types.Language) (types.Translation, error) {
			if text == "utterance 2" {
				return types.Translation{}, boom
			}
			return types.Translation{Text: "translated " + text, Source: source, Target: target}, nil
		},
	}
	synth := &ttsmock.Provider{}

	cfg := testConfig()
	cfg.Retry.Backoff = time.Millisecond

	records := runPipeline(t, cfg, script(5), rec, tr, synth)

	if len(records) != 5 {
		t.Fatalf("emitted %d records, want 5", len(records))
	}
	for i, r := range records {
		if r.Seq != uint64(i) {
			t.Fatalf("record %d has Seq %d; failures must not create gaps", i, r.Seq)
		}
	}

	failed := records[2]
	if !failed.Failed() {
		t.Fatal("record 2 not marked failed")
	}
	if failed.FailedStage != pipeline.StageTranslate {
		t.Errorf("failed stage = %q, want %q", failed.FailedStage, pipeline.StageTranslate)
	}
	if !errors.Is(failed.Err, boom) {
		t.Errorf("record error = %v, want the translation error", failed.Err)
	}

	// The transcript recognized before the failing stage stays on the record.
	if failed.Transcript.Text != "utterance 2" {
		t.Errorf("failed record transcript = %q, want %q", failed.Transcript.Text, "utterance 2")
	}
	if failed.Translation.Text != "" || len(failed.Audio.PCM) != 0 {
		t.Error("failed record carries output from stages past the failure")
	}

	for _, i := range []int{0, 1, 3, 4} {
		if records[i].Failed() {
			t.Errorf("record %d affected by the failure", i)
		}
	}

	// Synthesis never runs for the failed utterance.
	if got := synth.CallCount(); got != 4 {
		t.Errorf("tts calls = %d, want 4", got)
	}
}

func TestOrchestrator_DispatchStallHaltsPipeline(t *testing.T) {
	t.Parallel()

	// One worker wedged far past the stall timeout and a single queue slot.
	// The dispatcher holds one task while waiting for the worker, so the
	// fourth utterance's enqueue cannot complete and must abort the run
	// instead of blocking forever.
	rec := &asrmock.Provider{
		Result: types.Transcript{Text: "hi"},
		Delay:  time.Minute,
	}
	tr := &trmock.Provider{Result: "hello"}
	synth := &ttsmock.Provider{}

	cfg := testConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	cfg.StallTimeout = 50 * time.Millisecond

	src := &audiomock.Source{
		Frames:       script(4),
		SampleRate:   sampleRate,
		FrameSamples: frameSamples,
	}
	orch := pipeline.New(cfg, src, rec, tr, synth)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- orch.Run(ctx) }()
	for range orch.Output() {
	}

	if err := <-errc; !errors.Is(err, pipeline.ErrPipelineFatal) {
		t.Fatalf("Run error = %v, want ErrPipelineFatal", err)
	}
}

func TestOrchestrator_RetryRecoversTransientFailure(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	attempts := 0
	rec := &asrmock.Provider{
		RecognizeFn: func(ctx context.Context, utt audio.Utterance, lang types.Language) (types.Transcript, error) {
			mu.Lock()
			attempts++
			first := attempts == 1
			mu.Unlock()
			if first {
				return types.Transcript{}, errors.New("transient")
			}
			return types.Transcript{Text: "recovered"}, nil
		},
	}
	tr := &trmock.Provider{Result: "translated"}
	synth := &ttsmock.Provider{}

	cfg := testConfig()
	cfg.Retry.Backoff = time.Millisecond

	records := runPipeline(t, cfg, script(1), rec, tr, synth)

	if len(records) != 1 {
		t.Fatalf("emitted %d records, want 1", len(records))
	}
	if records[0].Failed() {
		t.Fatalf("record failed despite successful retry: %v", records[0].Err)
	}
	if records[0].Transcript.Text != "recovered" {
		t.Errorf("transcript = %q, want %q", records[0].Transcript.Text, "recovered")
	}
}

func TestOrchestrator_EmptyTranscriptSkipsLaterStages(t *testing.T) {
	t.Parallel()

	rec := &asrmock.Provider{Result: types.Transcript{Text: ""}}
	tr := &trmock.Provider{Result: "should never appear"}
	synth := &ttsmock.Provider{}

	records := runPipeline(t, testConfig(), script(1), rec, tr, synth)

	if len(records) != 1 {
		t.Fatalf("emitted %d records, want 1", len(records))
	}
	if !records[0].Empty() {
		t.Error("record not marked empty")
	}
	if got := tr.CallCount(); got != 0 {
		t.Errorf("translate calls = %d, want 0", got)
	}
	if got := synth.CallCount(); got != 0 {
		t.Errorf("tts calls = %d, want 0", got)
	}
}

func TestOrchestrator_RunsOnce(t *testing.T) {
	t.Parallel()

	rec := &asrmock.Provider{Result: types.Transcript{Text: "hi"}}
	tr := &trmock.Provider{Result: "hello"}
	synth := &ttsmock.Provider{}

	src := &audiomock.Source{
		Frames:       script(0),
		SampleRate:   sampleRate,
		FrameSamples: frameSamples,
	}
	orch := pipeline.New(testConfig(), src, rec, tr, synth)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- orch.Run(ctx) }()
	for range orch.Output() {
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := orch.Run(ctx); !errors.Is(err, pipeline.ErrClosed) {
		t.Errorf("second Run error = %v, want ErrClosed", err)
	}
}

func TestOrchestrator_CalibratedAfterWarmup(t *testing.T) {
	t.Parallel()

	rec := &asrmock.Provider{Result: types.Transcript{Text: "hi"}}
	tr := &trmock.Provider{Result: "hello"}
	synth := &ttsmock.Provider{}

	src := &audiomock.Source{
		Frames:       script(1),
		SampleRate:   sampleRate,
		FrameSamples: frameSamples,
	}
	orch := pipeline.New(testConfig(), src, rec, tr, synth)

	if orch.Calibrated() {
		t.Error("orchestrator calibrated before Run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- orch.Run(ctx) }()
	for range orch.Output() {
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !orch.Calibrated() {
		t.Error("orchestrator not calibrated after processing the warm-up")
	}
}
