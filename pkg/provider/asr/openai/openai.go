// Package openai provides an ASR provider backed by the OpenAI audio
// transcription API (Whisper). It implements the asr.Provider interface.
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/realtalk/realtalk/pkg/audio"
	"github.com/realtalk/realtalk/pkg/provider/asr"
	"github.com/realtalk/realtalk/pkg/types"
)

// Compile-time interface assertion.
var _ asr.Provider = (*Provider)(nil)

const defaultModel = oai.AudioModelWhisper1

// Option is a functional option for configuring the Provider.
type Option func(*config)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   oai.AudioModel
	timeout time.Duration
}

// WithBaseURL overrides the default OpenAI API base URL, for use with
// API-compatible local servers.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel overrides the transcription model.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = oai.AudioModel(model)
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements asr.Provider using the OpenAI transcription endpoint.
type Provider struct {
	client oai.Client
	model  oai.AudioModel
}

// New constructs a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai asr: apiKey must not be empty")
	}
	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Recognize implements asr.Provider. The utterance PCM is wrapped in a WAV
// container because the transcription endpoint requires a file upload.
func (p *Provider) Recognize(ctx context.Context, utt audio.Utterance, lang types.Language) (types.Transcript, error) {
	rate := defaultRate(utt)
	wav := wrapWAV(utt.PCM(), rate)

	resp, err := p.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		Model:    p.model,
		File:     oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Language: oai.String(string(lang)),
	})
	if err != nil {
		return types.Transcript{}, fmt.Errorf("openai asr: transcribe: %w", err)
	}

	return types.Transcript{
		Text:     resp.Text,
		Language: lang,
		Duration: utt.Duration(),
	}, nil
}

func defaultRate(utt audio.Utterance) int {
	if len(utt.Frames) > 0 && utt.Frames[0].SampleRate > 0 {
		return utt.Frames[0].SampleRate
	}
	return 16000
}

// wrapWAV prepends a canonical 44-byte RIFF/WAVE header describing 16-bit
// little-endian mono PCM at the given rate.
func wrapWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	write := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	write(uint32(36 + len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	write(uint32(16))          // chunk size
	write(uint16(1))           // PCM format
	write(uint16(1))           // mono
	write(uint32(sampleRate))  // sample rate
	write(uint32(sampleRate * 2)) // byte rate
	write(uint16(2))           // block align
	write(uint16(16))          // bits per sample

	buf.WriteString("data")
	write(uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
