// Package artifact owns the temp-file lifecycle for a session's audio
// recording and its JSON transcript sidecar.
//
// Both files live in a private temp directory owned by one Manager instance.
// Deletion tolerates OS-level file locks by retrying with a linear backoff;
// readability checks compensate for platforms that release write handles
// late.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/pkg/types"
)

const (
	// DefaultMaxDeleteAttempts is the delete retry budget when the caller
	// passes a non-positive value.
	DefaultMaxDeleteAttempts = 3

	// deleteBackoffUnit scales linearly with the attempt number: the wait
	// after the n-th failed attempt is n × deleteBackoffUnit.
	deleteBackoffUnit = 500 * time.Millisecond

	// readablePollInterval and readablePollAttempts bound the Windows
	// write-handle release poll.
	readablePollInterval = 100 * time.Millisecond
	readablePollAttempts = 20
)

// Manager owns the private temp directory holding one session's WAV
// recording and JSON sidecar. Create it with [NewManager] and dispose of it
// with [Manager.PurgeAll].
type Manager struct {
	dir     string
	session string
	metrics *observe.Metrics

	// goos, remove and sleep are swapped in tests.
	goos   string
	remove func(string) error
	sleep  func(time.Duration)
}

// Option is a functional option for configuring a Manager.
type Option func(*Manager)

// WithMetrics enables delete-retry instrumentation.
func WithMetrics(m *observe.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager creates a private temp directory and returns a Manager whose
// artifact paths use session as the fixed file-name slot.
func NewManager(session string, opts ...Option) (*Manager, error) {
	if session == "" {
		return nil, errors.New("artifact: session name must not be empty")
	}
	dir, err := os.MkdirTemp("", "voxnote-")
	if err != nil {
		return nil, fmt.Errorf("artifact: create temp dir: %w", err)
	}
	m := &Manager{
		dir:     dir,
		session: session,
		goos:    runtime.GOOS,
		remove:  os.Remove,
		sleep:   time.Sleep,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Dir returns the private temp directory.
func (m *Manager) Dir() string {
	return m.dir
}

// WAVPath returns the recorder output path for this session.
func (m *Manager) WAVPath() string {
	return filepath.Join(m.dir, m.session+".wav")
}

// SidecarPath returns the JSON transcript path for this session.
func (m *Manager) SidecarPath() string {
	return filepath.Join(m.dir, m.session+".json")
}

// EnsureReadable waits for the write handle on path to be released. On
// Windows it polls by opening and immediately closing the file in read mode;
// elsewhere handles are released synchronously with process exit and no wait
// is needed.
//
// Exhausting the poll is non-fatal: the subsequent read may still succeed or
// fail with a useful error, so only a warning is logged.
func (m *Manager) EnsureReadable(path string) {
	if m.goos != "windows" {
		return
	}
	for attempt := 0; attempt < readablePollAttempts; attempt++ {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			return
		}
		m.sleep(readablePollInterval)
	}
	slog.Warn("file still locked after readability poll, proceeding anyway", "path", path)
}

// DeleteWithRetry unlinks path, retrying on failure with a backoff of
// 500 ms × attempt number. A file that does not exist counts as success.
// maxAttempts defaults to [DefaultMaxDeleteAttempts] when non-positive; the
// returned error carries the last failure after all attempts are spent.
func (m *Manager) DeleteWithRetry(path string, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxDeleteAttempts
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := m.remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		lastErr = err
		slog.Debug("delete attempt failed", "path", path, "attempt", attempt, "err", err)
		if m.metrics != nil {
			m.metrics.DeleteRetries.Add(context.Background(), 1)
		}
		if attempt < maxAttempts {
			m.sleep(time.Duration(attempt) * deleteBackoffUnit)
		}
	}
	return fmt.Errorf("artifact: delete %s after %d attempts: %w", path, maxAttempts, lastErr)
}

// WriteSidecar serialises the canonical transcription to the sidecar path as
// pretty-printed JSON, overwriting any prior content.
func (m *Manager) WriteSidecar(tr *types.Transcription) error {
	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encode sidecar: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(m.SidecarPath(), data, 0o600); err != nil {
		return fmt.Errorf("artifact: write sidecar: %w", err)
	}
	return nil
}

// PurgeAll removes the entire temp directory. Used on teardown; best-effort,
// it logs failures and never returns them; a leftover temp file is
// preferable to failing shutdown.
func (m *Manager) PurgeAll() {
	if err := os.RemoveAll(m.dir); err != nil {
		slog.Warn("failed to purge artifact directory", "dir", m.dir, "err", err)
	}
}
