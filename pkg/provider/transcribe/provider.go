// Package transcribe provides the provider registry and upload client for
// speech-to-text backends that speak the OpenAI-compatible audio
// transcription API.
//
// Three backends are supported: a local whisper service, OpenAI, and Groq.
// The set is closed; each provider carries its fixed endpoint and
// default model so the mapping is exhaustive and checkable at compile time.
package transcribe

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultLocalEndpoint is the base address of the local transcription
// service when no endpoint is configured.
const DefaultLocalEndpoint = "http://localhost:4444"

// ID identifies a transcription backend. The zero value is invalid.
type ID string

const (
	// Local is a self-hosted whisper service exposing the OpenAI audio API.
	Local ID = "local"

	// OpenAI is the hosted OpenAI transcription API.
	OpenAI ID = "openai"

	// Groq is the Groq-hosted OpenAI-compatible transcription API.
	Groq ID = "groq"
)

// IsValid reports whether id names a known provider.
func (id ID) IsValid() bool {
	switch id {
	case Local, OpenAI, Groq:
		return true
	}
	return false
}

// DefaultModel returns the model used when the configuration does not name
// one explicitly.
func (id ID) DefaultModel() string {
	switch id {
	case Local:
		return "base"
	case OpenAI:
		return "whisper-1"
	case Groq:
		return "whisper-large-v3"
	}
	return ""
}

// baseURL returns the versioned API base for id. localEndpoint is only
// consulted for the Local provider; when empty, DefaultLocalEndpoint is used.
func (id ID) baseURL(localEndpoint string) string {
	switch id {
	case Local:
		ep := localEndpoint
		if ep == "" {
			ep = DefaultLocalEndpoint
		}
		return strings.TrimRight(ep, "/") + "/v1"
	case OpenAI:
		return "https://api.openai.com/v1"
	case Groq:
		return "https://api.groq.com/openai/v1"
	}
	return ""
}

// ErrMissingAPIKey is returned by [Resolve] when no API key is configured
// for the requested provider. The local provider uses the key only as a
// placeholder credential, but it must still be present.
var ErrMissingAPIKey = errors.New("transcribe: api key is not set")

// ErrUnknownProvider is returned by [Resolve] for provider IDs outside the
// supported set.
var ErrUnknownProvider = errors.New("transcribe: unknown provider")

// Config is the fully resolved configuration for one transcribe call. It is
// immutable once returned by [Resolve].
type Config struct {
	// Provider is the backend this config was resolved for.
	Provider ID

	// BaseURL is the versioned API base (e.g. "https://api.openai.com/v1").
	BaseURL string

	// APIKey is the bearer credential sent with the upload. Never empty.
	APIKey string

	// Model is the model name sent with the upload. Never empty.
	Model string
}

// Resolve builds the immutable [Config] for a transcribe call against the
// given provider. model overrides the provider default when non-empty.
// localEndpoint overrides the default local service address and is ignored
// for cloud providers.
//
// A missing API key is a configuration fault detected here, before any
// network attempt.
func Resolve(id ID, apiKey, model, localEndpoint string) (Config, error) {
	if !id.IsValid() {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	if apiKey == "" {
		return Config{}, fmt.Errorf("%w (provider %q)", ErrMissingAPIKey, id)
	}
	if model == "" {
		model = id.DefaultModel()
	}
	return Config{
		Provider: id,
		BaseURL:  id.baseURL(localEndpoint),
		APIKey:   apiKey,
		Model:    model,
	}, nil
}
