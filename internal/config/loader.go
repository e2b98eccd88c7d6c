package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/voxnote/voxnote/internal/recorder"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
	"gopkg.in/yaml.v3"
)

// apiKeyEnvVars maps each provider to the environment variable consulted
// when provider.api_key is not set in the config file.
var apiKeyEnvVars = map[transcribe.ID]string{
	transcribe.Local:  "VOXNOTE_LOCAL_API_KEY",
	transcribe.OpenAI: "OPENAI_API_KEY",
	transcribe.Groq:   "GROQ_API_KEY",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// environment fallbacks, and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = transcribe.Local
	}
	if cfg.Provider.Language == "" {
		cfg.Provider.Language = "en"
	}
	if cfg.Provider.APIKey == "" {
		if env, ok := apiKeyEnvVars[cfg.Provider.Name]; ok {
			cfg.Provider.APIKey = os.Getenv(env)
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if !cfg.Provider.Name.IsValid() {
		errs = append(errs, fmt.Errorf("provider.name %q is invalid; valid values: local, openai, groq", cfg.Provider.Name))
	}

	if cmd := cfg.Recorder.Command; cmd != "" && !strings.Contains(cmd, recorder.OutputPlaceholder) {
		errs = append(errs, fmt.Errorf("recorder.command must contain the %s placeholder", recorder.OutputPlaceholder))
	}

	// A missing key is not fatal here: it fails the transcription
	// pre-flight instead, after the recording has been captured.
	if cfg.Provider.APIKey == "" && cfg.Provider.Name != transcribe.Local && cfg.Provider.Name.IsValid() {
		slog.Warn("no API key configured; transcription will fail its pre-flight check",
			"provider", cfg.Provider.Name,
			"env", apiKeyEnvVars[cfg.Provider.Name],
		)
	}

	return errors.Join(errs...)
}
