package config_test

import (
	"strings"
	"testing"

	"github.com/voxnote/voxnote/internal/config"
)

func TestValidate_UnknownProviderName(t *testing.T) {
	t.Parallel()
	yaml := `
provider:
  name: deepgram
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown provider name, got nil")
	}
	if !strings.Contains(err.Error(), "provider.name") {
		t.Errorf("error should mention provider.name, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
provider:
  name: local
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "server.log_level") {
		t.Errorf("error should mention server.log_level, got: %v", err)
	}
}

func TestValidate_CustomCommandRequiresPlaceholder(t *testing.T) {
	t.Parallel()
	yaml := `
provider:
  name: local
recorder:
  command: "arecord -f S16_LE out.wav"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for command without placeholder, got nil")
	}
	if !strings.Contains(err.Error(), "{output}") {
		t.Errorf("error should name the placeholder, got: %v", err)
	}
}

func TestValidate_MultipleErrorsJoined(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
provider:
  name: deepgram
recorder:
  command: "arecord out.wav"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"server.log_level", "provider.name", "{output}"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestApplyDefaults_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-from-env")
	yaml := `
provider:
  name: groq
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "gsk-from-env" {
		t.Errorf("api_key = %q, want value from GROQ_API_KEY", cfg.Provider.APIKey)
	}
}

func TestApplyDefaults_ConfigKeyWinsOverEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	yaml := `
provider:
  name: openai
  api_key: sk-from-file
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "sk-from-file" {
		t.Errorf("api_key = %q, want sk-from-file", cfg.Provider.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/voxnote.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("error should mention open, got: %v", err)
	}
}
