// Package openai provides a translation provider backed by the OpenAI chat
// completions API. It implements the translate.Provider interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/realtalk/realtalk/pkg/provider/translate"
	"github.com/realtalk/realtalk/pkg/types"
)

// Compile-time interface assertion.
var _ translate.Provider = (*Provider)(nil)

const defaultModel = oai.ChatModelGPT4oMini

// languageNames maps tags to the names used in the system prompt.
var languageNames = map[types.Language]string{
	types.LangHindi:   "Hindi",
	types.LangEnglish: "English",
}

// Option is a functional option for configuring the Provider.
type Option func(*config)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   oai.ChatModel
	timeout time.Duration
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel overrides the chat model used for translation.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = oai.ChatModel(model)
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements translate.Provider using a chat model constrained to
// emit only the translation.
type Provider struct {
	client oai.Client
	model  oai.ChatModel
}

// New constructs a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai translate: apiKey must not be empty")
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

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text string, source, target types.Language) (types.Translation, error) {
	src, ok := languageNames[source]
	if !ok {
		src = string(source)
	}
	dst, ok := languageNames[target]
	if !ok {
		dst = string(target)
	}

	system := fmt.Sprintf(
		"You are a translation engine. Translate the user's %s text into %s. "+
			"Reply with the translation only — no commentary, no quotes.",
		src, dst,
	)

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(text),
		},
	})
	if err != nil {
		return types.Translation{}, fmt.Errorf("openai translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return types.Translation{}, errors.New("openai translate: empty response")
	}

	return types.Translation{
		Text:   strings.TrimSpace(resp.Choices[0].Message.Content),
		Source: source,
		Target: target,
	}, nil
}
