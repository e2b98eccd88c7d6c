package transcribe_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

func TestResolve_FixedTable(t *testing.T) {
	tests := []struct {
		id        transcribe.ID
		wantURL   string
		wantModel string
	}{
		{transcribe.Local, "http://localhost:4444/v1", "base"},
		{transcribe.OpenAI, "https://api.openai.com/v1", "whisper-1"},
		{transcribe.Groq, "https://api.groq.com/openai/v1", "whisper-large-v3"},
	}
	for _, tc := range tests {
		t.Run(string(tc.id), func(t *testing.T) {
			cfg, err := transcribe.Resolve(tc.id, "test-key", "", "")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if cfg.BaseURL != tc.wantURL {
				t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, tc.wantURL)
			}
			if cfg.Model != tc.wantModel {
				t.Errorf("Model = %q, want %q", cfg.Model, tc.wantModel)
			}
			if cfg.Provider != tc.id {
				t.Errorf("Provider = %q, want %q", cfg.Provider, tc.id)
			}
		})
	}
}

func TestResolve_LocalEndpointOverride(t *testing.T) {
	cfg, err := transcribe.Resolve(transcribe.Local, "k", "", "http://127.0.0.1:9999/")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := cfg.BaseURL, "http://127.0.0.1:9999/v1"; got != want {
		t.Errorf("BaseURL = %q, want %q", got, want)
	}
}

func TestResolve_ModelOverride(t *testing.T) {
	cfg, err := transcribe.Resolve(transcribe.OpenAI, "k", "whisper-large-v3-turbo", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Model != "whisper-large-v3-turbo" {
		t.Errorf("Model = %q, want override", cfg.Model)
	}
}

func TestResolve_MissingAPIKey_NoRequestIssued(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	for _, id := range []transcribe.ID{transcribe.Local, transcribe.OpenAI, transcribe.Groq} {
		_, err := transcribe.Resolve(id, "", "", srv.URL)
		if !errors.Is(err, transcribe.ErrMissingAPIKey) {
			t.Errorf("Resolve(%s) error = %v, want ErrMissingAPIKey", id, err)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no network request, got %d", n)
	}
}

func TestResolve_UnknownProvider(t *testing.T) {
	_, err := transcribe.Resolve(transcribe.ID("deepgram"), "k", "", "")
	if !errors.Is(err, transcribe.ErrUnknownProvider) {
		t.Fatalf("error = %v, want ErrUnknownProvider", err)
	}
}

func TestID_IsValid(t *testing.T) {
	for _, id := range []transcribe.ID{transcribe.Local, transcribe.OpenAI, transcribe.Groq} {
		if !id.IsValid() {
			t.Errorf("%q should be valid", id)
		}
	}
	if transcribe.ID("").IsValid() {
		t.Error("empty ID should be invalid")
	}
}
