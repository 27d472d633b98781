// Package vosk provides an ASR provider backed by a vosk-server instance
// speaking its WebSocket protocol. It implements the asr.Provider interface.
//
// Each Recognize call opens a fresh connection, sends a configuration
// message, streams the utterance PCM in fixed-size binary chunks, terminates
// with the EOF marker, and reads server messages until the final result
// arrives. vosk-server runs one recognizer per connection, so per-call
// connections also give concurrent utterances isolated recognizer state.
//
// Typical usage:
//
//	p, err := vosk.New("ws://localhost:2700",
//	    vosk.WithSampleRate(16000),
//	)
//	transcript, err := p.Recognize(ctx, utterance, types.LangHindi)
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/realtalk/realtalk/pkg/audio"
	"github.com/realtalk/realtalk/pkg/provider/asr"
	"github.com/realtalk/realtalk/pkg/types"
)

// Compile-time interface assertion.
var _ asr.Provider = (*Provider)(nil)

const (
	defaultSampleRate = 16000

	// chunkBytes is the binary message size PCM is streamed in. vosk-server
	// buffers internally; 8 KiB (~250 ms at 16 kHz) keeps message overhead
	// low without delaying the final result.
	chunkBytes = 8192
)

// ErrNoResult is returned when the server closes without a final result.
var ErrNoResult = errors.New("vosk: connection closed before final result")

// Option is a functional option for configuring the vosk Provider.
type Option func(*Provider)

// WithSampleRate sets the PCM sample rate declared to the server.
// Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// Provider implements asr.Provider backed by a vosk-server WebSocket
// endpoint. The server's loaded model determines the recognition language;
// run one server per language and register each under its language tag.
type Provider struct {
	url        string
	sampleRate int
}

// New creates a vosk Provider for the given WebSocket URL
// (e.g. "ws://localhost:2700").
func New(url string, opts ...Option) (*Provider, error) {
	if url == "" {
		return nil, errors.New("vosk: url must not be empty")
	}
	p := &Provider{
		url:        url,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// configMessage is the per-connection recognizer configuration.
type configMessage struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
	} `json:"config"`
}

// serverResult is the subset of vosk-server's JSON output the provider
// consumes. Partial messages carry "partial"; the final message carries
// "text".
type serverResult struct {
	Text    string  `json:"text"`
	Partial *string `json:"partial"`
}

// Recognize implements asr.Provider.
func (p *Provider) Recognize(ctx context.Context, utt audio.Utterance, lang types.Language) (types.Transcript, error) {
	conn, _, err := websocket.Dial(ctx, p.url, nil)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("vosk: dial %s: %w", p.url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var cfg configMessage
	cfg.Config.SampleRate = p.sampleRate
	if err := wsjson.Write(ctx, conn, cfg); err != nil {
		return types.Transcript{}, fmt.Errorf("vosk: send config: %w", err)
	}

	pcm := utt.PCM()
	for off := 0; off < len(pcm); off += chunkBytes {
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return types.Transcript{}, fmt.Errorf("vosk: send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"eof" : 1}`)); err != nil {
		return types.Transcript{}, fmt.Errorf("vosk: send eof: %w", err)
	}

	// Drain partials until the final result. The server answers every
	// audio chunk; only the post-EOF message carries the committed text.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return types.Transcript{}, ctx.Err()
			}
			return types.Transcript{}, fmt.Errorf("%w: %v", ErrNoResult, err)
		}

		var res serverResult
		if err := json.Unmarshal(data, &res); err != nil {
			return types.Transcript{}, fmt.Errorf("vosk: decode result: %w", err)
		}
		if res.Partial != nil {
			continue
		}
		return types.Transcript{
			Text:     res.Text,
			Language: lang,
			Duration: utt.Duration(),
		}, nil
	}
}
