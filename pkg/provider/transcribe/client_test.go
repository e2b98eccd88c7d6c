package transcribe_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/voxnote/voxnote/pkg/provider/transcribe"
	"github.com/voxnote/voxnote/pkg/types"
)

// writeTestWAV writes a small placeholder audio file and returns its path.
// The stub servers never inspect the payload, so the content is arbitrary.
func writeTestWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.wav")
	if err := os.WriteFile(path, []byte("RIFF fake audio"), 0o644); err != nil {
		t.Fatalf("write test wav: %v", err)
	}
	return path
}

// stubConfig builds a Config pointing at the given test server.
func stubConfig(srvURL string, id transcribe.ID) transcribe.Config {
	return transcribe.Config{
		Provider: id,
		BaseURL:  srvURL,
		APIKey:   "test-key",
		Model:    "whisper-1",
	}
}

func TestTranscribe_NormalizesVerboseResponse(t *testing.T) {
	var gotModel, gotLanguage, gotFormat, gotAuth string
	var gotFile bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		gotAuth = r.Header.Get("Authorization")
		_, _, err := r.FormFile("file")
		gotFile = err == nil

		// A provider response carrying "seek" and omitting tokens and
		// temperature on the segment.
		_, _ = w.Write([]byte(`{
			"text": "hello world",
			"language": "en",
			"segments": [{"id": 0, "seek": 42, "start": 0.0, "end": 1.2, "text": "hello world"}]
		}`))
	}))
	defer srv.Close()

	c := transcribe.NewClient()
	tr, err := c.Transcribe(context.Background(), writeTestWAV(t), stubConfig(srv.URL, transcribe.OpenAI))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotModel != "whisper-1" {
		t.Errorf("model field = %q, want whisper-1", gotModel)
	}
	if gotLanguage != "en" {
		t.Errorf("language field = %q, want en", gotLanguage)
	}
	if gotFormat != "verbose_json" {
		t.Errorf("response_format field = %q, want verbose_json", gotFormat)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
	if !gotFile {
		t.Error("request carried no file field")
	}

	want := &types.Transcription{
		Text:     "hello world",
		Language: "en",
		Segments: []types.Segment{{
			ID:          0,
			Start:       0.0,
			End:         1.2,
			Text:        "hello world",
			Tokens:      []int{},
			Temperature: 0,
		}},
	}
	if !reflect.DeepEqual(tr, want) {
		t.Errorf("transcription = %+v, want %+v", tr, want)
	}
}

func TestTranscribe_EmptyTextIsNoSpeechSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "", "language": "en", "segments": []any{}})
	}))
	defer srv.Close()

	c := transcribe.NewClient()
	_, err := c.Transcribe(context.Background(), writeTestWAV(t), stubConfig(srv.URL, transcribe.OpenAI))
	if !errors.Is(err, transcribe.ErrNoSpeech) {
		t.Fatalf("error = %v, want ErrNoSpeech", err)
	}
}

func TestTranscribe_MissingFile_NoRequestIssued(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := transcribe.NewClient()
	_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), stubConfig(srv.URL, transcribe.OpenAI))
	if !errors.Is(err, transcribe.ErrAudioMissing) {
		t.Fatalf("error = %v, want ErrAudioMissing", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

func TestTranscribe_SanitizesProviderErrorText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Error: invalid audio format"}}`))
	}))
	defer srv.Close()

	c := transcribe.NewClient()
	_, err := c.Transcribe(context.Background(), writeTestWAV(t), stubConfig(srv.URL, transcribe.OpenAI))
	if err == nil {
		t.Fatal("expected error for HTTP 400")
	}
	if strings.Contains(err.Error(), "Error:") {
		t.Errorf("error %q retains the generic Error prefix", err)
	}
	if !strings.Contains(err.Error(), "invalid audio format") {
		t.Errorf("error %q lost the provider message", err)
	}
}

func TestTranscribe_LocalFailureCarriesServiceHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := transcribe.NewClient()
	_, err := c.Transcribe(context.Background(), writeTestWAV(t), stubConfig(srv.URL, transcribe.Local))
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if !strings.Contains(err.Error(), "local transcription service") {
		t.Errorf("error %q lacks the local-service hint", err)
	}
}

func TestTranscribe_SingleRequestOnFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := transcribe.NewClient()
	_, err := c.Transcribe(context.Background(), writeTestWAV(t), stubConfig(srv.URL, transcribe.Groq))
	if err == nil {
		t.Fatal("expected error for HTTP 503")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("request count = %d, want exactly 1 (no retries)", n)
	}
}
