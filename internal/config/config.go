// Package config provides the configuration schema and loader for the
// voxnote dictation tool.
package config

import "github.com/voxnote/voxnote/pkg/provider/transcribe"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxnote.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Recorder RecorderConfig `yaml:"recorder"`
}

// ServerConfig holds network and logging settings for the admin server.
type ServerConfig struct {
	// ListenAddr is the TCP address the admin server listens on
	// (e.g., ":8080"). Empty disables the admin server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProviderConfig selects and configures the transcription backend.
type ProviderConfig struct {
	// Name selects the transcription provider: "local", "openai", or "groq".
	Name transcribe.ID `yaml:"name"`

	// APIKey authenticates against the provider's API. When empty it is
	// read from the provider's conventional environment variable
	// (OPENAI_API_KEY, GROQ_API_KEY, or VOXNOTE_LOCAL_API_KEY).
	APIKey string `yaml:"api_key"`

	// Model overrides the provider's default transcription model.
	Model string `yaml:"model"`

	// Endpoint is the base address of the local transcription service.
	// Only consulted when Name is "local".
	Endpoint string `yaml:"endpoint"`

	// Language hints the spoken language of the recording (ISO 639-1).
	// Defaults to "en".
	Language string `yaml:"language"`
}

// RecorderConfig controls how audio is captured.
type RecorderConfig struct {
	// Command is a custom capture command template. It must contain the
	// {output} placeholder, which is replaced by the quoted WAV path.
	// Empty selects the built-in sox invocation.
	Command string `yaml:"command"`
}
