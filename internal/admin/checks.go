package admin

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"

	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// RecorderToolCheck reports whether the capture executable is on PATH.
// For a custom command template the first word is treated as the tool;
// an empty template checks the built-in default.
func RecorderToolCheck(commandTemplate, defaultTool string) Checker {
	tool := defaultTool
	if fields := strings.Fields(commandTemplate); len(fields) > 0 {
		tool = fields[0]
	}
	return Checker{
		Name: "recorder",
		Check: func(context.Context) error {
			if _, err := exec.LookPath(tool); err != nil {
				return fmt.Errorf("%s not found on PATH", tool)
			}
			return nil
		},
	}
}

// ProviderCheck reports whether the transcription provider answers HTTP at
// all. Any response counts as reachable, including auth failures; only
// transport errors fail the check.
func ProviderCheck(cfg transcribe.Config, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: "provider",
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/models", nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			if cfg.APIKey != "" {
				req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("%s unreachable: %w", cfg.Provider, err)
			}
			resp.Body.Close()
			return nil
		},
	}
}
