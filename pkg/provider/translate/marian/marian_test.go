package marian_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/realtalk/realtalk/pkg/provider/translate/marian"
	"github.com/realtalk/realtalk/pkg/types"
)

func TestTranslate_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/translate" {
			t.Errorf("request = %s %s, want POST /translate", r.Method, r.URL.Path)
		}
		var req struct {
			Text   string `json:"text"`
			Source string `json:"source"`
			Target string `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "नमस्ते" || req.Source != "hi" || req.Target != "en" {
			t.Errorf("request body = %+v, want नमस्ते hi→en", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"translation": "hello"})
	}))
	defer srv.Close()

	p, err := marian.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Translate(context.Background(), "नमस्ते", types.LangHindi, types.LangEnglish)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("Text = %q, want %q", got.Text, "hello")
	}
	if got.Source != types.LangHindi || got.Target != types.LangEnglish {
		t.Errorf("route = %s→%s, want hi→en", got.Source, got.Target)
	}
}

func TestTranslate_ServerErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model pair not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := marian.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Translate(context.Background(), "hello", types.LangEnglish, types.LangHindi)
	if err == nil {
		t.Fatal("Translate succeeded against a 500 response")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "model pair not loaded") {
		t.Errorf("error = %v, want status and body snippet", err)
	}
}

func TestTranslate_ErrorField(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "unsupported route"})
	}))
	defer srv.Close()

	p, err := marian.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Translate(context.Background(), "hello", types.LangEnglish, types.LangHindi)
	if err == nil || !strings.Contains(err.Error(), "unsupported route") {
		t.Fatalf("error = %v, want the server's error field", err)
	}
}

func TestTranslate_ContextCancellation(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p, err := marian.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Translate(ctx, "hello", types.LangEnglish, types.LangHindi); err == nil {
		t.Fatal("Translate succeeded with a cancelled context")
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	t.Parallel()
	if _, err := marian.New(""); err == nil {
		t.Fatal("New accepted an empty base URL")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("path = %q, want /translate", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"translation": "ok"})
	}))
	defer srv.Close()

	p, err := marian.New(srv.URL + "/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Translate(context.Background(), "x", types.LangEnglish, types.LangHindi); err != nil {
		t.Fatalf("Translate: %v", err)
	}
}
