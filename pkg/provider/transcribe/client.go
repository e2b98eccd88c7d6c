package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/voxnote/voxnote/pkg/types"
)

const (
	// uploadTimeout bounds the whole upload-and-parse cycle. There are no
	// automatic retries: a stale recording must not silently reattempt
	// against a possibly-unavailable provider, and replaying a multipart
	// upload mid-stream is unsafe.
	uploadTimeout = 30 * time.Second

	// closeSettleDelay is the wait inserted after closing the audio read
	// stream on Windows, which can delay releasing the underlying handle.
	closeSettleDelay = 500 * time.Millisecond

	// defaultLanguage is sent with every upload unless overridden.
	defaultLanguage = "en"

	// responseFormat requests the verbose structured response so that
	// per-segment timing is available for the sidecar file.
	responseFormat = "verbose_json"
)

// ErrNoSpeech is the sentinel returned when the provider answered
// successfully but produced an empty transcript. It is a defined outcome,
// not a failure; callers must not paste or persist an empty transcript.
var ErrNoSpeech = errors.New("transcribe: no speech detected")

// ErrAudioMissing is returned when the audio file does not exist at the
// time of the transcribe call.
var ErrAudioMissing = errors.New("transcribe: audio file not found")

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Tests use this to point
// the upload at an httptest server transport; production callers normally
// keep the default, which carries the fixed 30-second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLanguage overrides the language code sent with every upload.
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// Client performs exactly one upload-and-parse cycle per Transcribe call
// against an OpenAI-compatible audio transcription endpoint. It holds no
// per-call state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	language   string

	// goos selects platform-specific settle behaviour; overridden in tests.
	goos string
}

// NewClient creates a Client with the fixed upload timeout and default
// language.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: uploadTimeout},
		language:   defaultLanguage,
		goos:       runtime.GOOS,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Transcribe uploads the audio file at path to the provider described by
// cfg and returns the normalised transcription.
//
// The file must exist; its read handle is closed regardless of outcome. A
// provider response whose text is empty yields [ErrNoSpeech]. Failures for
// the local provider carry a hint to check that the local service is
// running, since connection refusal is the dominant failure mode there.
func (c *Client) Transcribe(ctx context.Context, path string, cfg Config) (*types.Transcription, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAudioMissing, path)
	}

	tr, err := c.upload(ctx, path, cfg)
	if c.goos == "windows" {
		// The read handle was closed inside upload; give the OS time to
		// release it before the caller touches the file again.
		time.Sleep(closeSettleDelay)
	}
	if err != nil {
		if cfg.Provider == Local {
			err = fmt.Errorf("%w: verify the local transcription service is running at %s", err, cfg.BaseURL)
		}
		return nil, err
	}

	if tr.Text == "" {
		return nil, ErrNoSpeech
	}
	return tr, nil
}

// verboseSegment mirrors one segment of the provider's verbose_json
// response. The "seek" field is intentionally absent; it is not part of
// the canonical schema.
type verboseSegment struct {
	ID          int     `json:"id"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Text        string  `json:"text"`
	Tokens      []int   `json:"tokens"`
	Temperature float64 `json:"temperature"`
}

// verboseResponse mirrors the provider's verbose_json response body.
type verboseResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []verboseSegment `json:"segments"`
}

// apiError mirrors the OpenAI-style error envelope.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// upload issues the single multipart request and parses the response.
func (c *Client) upload(ctx context.Context, path string, cfg Config) (*types.Transcription, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transcribe: open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", cfg.Model); err != nil {
		return nil, fmt.Errorf("transcribe: write model field: %w", err)
	}
	if err := mw.WriteField("language", c.language); err != nil {
		return nil, fmt.Errorf("transcribe: write language field: %w", err)
	}
	if err := mw.WriteField("response_format", responseFormat); err != nil {
		return nil, fmt.Errorf("transcribe: write response_format field: %w", err)
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("transcribe: create file field: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("transcribe: read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("transcribe: close multipart writer: %w", err)
	}

	endpoint := cfg.BaseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("transcribe: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %s request: %w", cfg.Provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transcribe: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcribe: %s returned HTTP %d: %s",
			cfg.Provider, resp.StatusCode, sanitizeProviderError(extractErrorMessage(data)))
	}

	var vr verboseResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, fmt.Errorf("transcribe: parse response: %w", err)
	}
	return normalize(vr), nil
}

// normalize maps the provider's verbose response onto the canonical
// [types.Transcription]: tokens default to an empty slice, temperature to 0,
// and the segment slice is never nil.
func normalize(vr verboseResponse) *types.Transcription {
	segs := make([]types.Segment, 0, len(vr.Segments))
	for _, s := range vr.Segments {
		tokens := s.Tokens
		if tokens == nil {
			tokens = []int{}
		}
		segs = append(segs, types.Segment{
			ID:          s.ID,
			Start:       s.Start,
			End:         s.End,
			Text:        s.Text,
			Tokens:      tokens,
			Temperature: s.Temperature,
		})
	}
	return &types.Transcription{
		Text:     strings.TrimSpace(vr.Text),
		Language: vr.Language,
		Segments: segs,
	}
}

// extractErrorMessage pulls the message out of an OpenAI-style error
// envelope, falling back to the raw body.
func extractErrorMessage(body []byte) string {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
		return ae.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// sanitizeProviderError strips the generic leading "Error" token some
// providers prepend, so the message reads cleanly when rendered to the user.
func sanitizeProviderError(msg string) string {
	trimmed := strings.TrimSpace(msg)
	for _, prefix := range []string{"Error:", "Error"} {
		if strings.HasPrefix(trimmed, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
	}
	return trimmed
}
