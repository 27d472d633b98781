// Package marian provides a translation provider backed by a self-hosted
// MarianMT REST server exposing the Helsinki-NLP opus-mt models (e.g.
// opus-mt-hi-en and opus-mt-en-hi). It implements the translate.Provider
// interface.
//
// The server is expected to accept
//
//	POST /translate
//	{"text": "...", "source": "hi", "target": "en"}
//
// and answer {"translation": "..."}. One server instance serves both
// directions by loading the model pair for the requested route.
//
// Typical usage:
//
//	p, err := marian.New("http://localhost:5000",
//	    marian.WithTimeout(10*time.Second),
//	)
package marian

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/realtalk/realtalk/pkg/provider/translate"
	"github.com/realtalk/realtalk/pkg/types"
)

// Compile-time interface assertion.
var _ translate.Provider = (*Provider)(nil)

const (
	defaultTimeout    = 30 * time.Second
	translateEndpoint = "/translate"
)

// Option is a functional option for configuring a marian Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements translate.Provider against a MarianMT REST server.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a marian Provider for the given server base URL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("marian: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	Translation string `json:"translation"`
	Error       string `json:"error,omitempty"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text string, source, target types.Language) (types.Translation, error) {
	body, err := json.Marshal(translateRequest{
		Text:   text,
		Source: string(source),
		Target: string(target),
	})
	if err != nil {
		return types.Translation{}, fmt.Errorf("marian: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+translateEndpoint, bytes.NewReader(body))
	if err != nil {
		return types.Translation{}, fmt.Errorf("marian: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Translation{}, fmt.Errorf("marian: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.Translation{}, fmt.Errorf("marian: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.Translation{}, fmt.Errorf("marian: decode response: %w", err)
	}
	if out.Error != "" {
		return types.Translation{}, fmt.Errorf("marian: %s", out.Error)
	}

	return types.Translation{
		Text:   out.Translation,
		Source: source,
		Target: target,
	}, nil
}
