// Package session sequences one voice-capture cycle: start the recorder,
// drive its shutdown protocol, hand the closed audio file to the
// transcription client, persist the result, and clean up.
//
// The orchestrator's state machine is what guarantees the artifact file is
// owned by exactly one component at a time, in strict sequence: recorder
// (write), artifact manager (lock check), transcription client (read),
// artifact manager (delete). Filesystem locking is never relied on.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
	"github.com/voxnote/voxnote/pkg/types"
)

// State is the lifecycle phase of the session slot.
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateTranscribing State = "transcribing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// ErrSessionActive is returned by Start while the slot holds a session that
// has not been cleaned up, including one still transcribing. Starting over
// an active session is a usage error, never a silent overwrite.
var ErrSessionActive = errors.New("session: a session is already active")

// ErrNotStopped is returned by Transcribe unless the recorder shutdown
// protocol has fully completed. Reading the artifact before then yields
// truncated audio.
var ErrNotStopped = errors.New("session: transcribe requires a fully stopped recording")

// Recorder is the process supervisor interface the orchestrator drives.
// Stop must block until the full shutdown protocol, settle periods
// included, has run.
type Recorder interface {
	Start(outputPath string) error
	Stop()
}

// Transcriber performs one upload-and-parse cycle.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, cfg transcribe.Config) (*types.Transcription, error)
}

// Artifacts is the file-lifecycle interface the orchestrator hands the
// audio path through.
type Artifacts interface {
	WAVPath() string
	SidecarPath() string
	EnsureReadable(path string)
	DeleteWithRetry(path string, maxAttempts int) error
	WriteSidecar(tr *types.Transcription) error
	PurgeAll()
}

// ConfigResolver produces the immutable provider config for one transcribe
// call. Resolution happens per call so configuration faults surface before
// any network attempt.
type ConfigResolver func() (transcribe.Config, error)

// Orchestrator owns one session slot and the resources behind it: the
// recorder process handle and the artifact temp directory live and die with
// this instance. All exported methods are safe for concurrent use, but the
// design intent is sequential: start → stop → transcribe → cleanup.
type Orchestrator struct {
	rec     Recorder
	store   Artifacts
	client  Transcriber
	resolve ConfigResolver
	metrics *observe.Metrics

	mu        sync.Mutex
	state     State
	startedAt time.Time

	// gaugeHeld tracks whether this slot has incremented ActiveSessions and
	// not yet released it.
	gaugeHeld bool
}

// New creates an Orchestrator in the Idle state. metrics may be nil, in
// which case no instruments are recorded.
func New(rec Recorder, store Artifacts, client Transcriber, resolve ConfigResolver, metrics *observe.Metrics) *Orchestrator {
	return &Orchestrator{
		rec:     rec,
		store:   store,
		client:  client,
		resolve: resolve,
		metrics: metrics,
		state:   StateIdle,
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start spawns the recorder writing into the artifact manager's WAV path.
// Only valid from Idle; any other state is a usage error.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "session.start")
	defer span.End()

	if o.state != StateIdle {
		return fmt.Errorf("%w (state %s)", ErrSessionActive, o.state)
	}

	if err := o.rec.Start(o.store.WAVPath()); err != nil {
		o.state = StateFailed
		o.recordSession(ctx, "failed")
		return fmt.Errorf("session: start recorder: %w", err)
	}

	o.state = StateRecording
	o.startedAt = time.Now()
	if o.metrics != nil {
		o.metrics.ActiveSessions.Add(ctx, 1)
		o.gaugeHeld = true
	}
	observe.Logger(ctx).Info("recording started", "path", o.store.WAVPath())
	return nil
}

// Stop drives the recorder's shutdown protocol to completion and verifies
// the artifact is readable. A Stop with no recording in progress is a
// no-op, not an error.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "session.stop")
	defer span.End()

	if o.state != StateRecording {
		return
	}

	o.state = StateStopping
	// The full protocol (interrupt, grace wait, kill, settle) must finish
	// before anything reads the file.
	o.rec.Stop()
	o.store.EnsureReadable(o.store.WAVPath())
	o.state = StateStopped

	if o.metrics != nil {
		o.metrics.RecordingDuration.Record(ctx, time.Since(o.startedAt).Seconds())
	}
	observe.Logger(ctx).Info("recording stopped", "elapsed", time.Since(o.startedAt).Round(time.Millisecond))
}

// Transcribe resolves the provider configuration, uploads the stopped
// recording, and persists the canonical result to the sidecar file.
//
// An empty transcript surfaces as [transcribe.ErrNoSpeech] with the session
// ending in Done: it is a defined outcome and the sidecar is left
// untouched. Any other failure ends the session in Failed; the slot can be
// reset with Cleanup and a fresh session started.
func (o *Orchestrator) Transcribe(ctx context.Context) (*types.Transcription, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "session.transcribe")
	defer span.End()

	if o.state != StateStopped {
		return nil, fmt.Errorf("%w (state %s)", ErrNotStopped, o.state)
	}

	cfg, err := o.resolve()
	if err != nil {
		o.state = StateFailed
		o.recordSession(ctx, "failed")
		return nil, err
	}

	o.state = StateTranscribing
	start := time.Now()
	tr, err := o.client.Transcribe(ctx, o.store.WAVPath(), cfg)
	if o.metrics != nil {
		failed := err != nil && !errors.Is(err, transcribe.ErrNoSpeech)
		o.metrics.RecordTranscribe(ctx, string(cfg.Provider), time.Since(start), failed)
	}

	switch {
	case errors.Is(err, transcribe.ErrNoSpeech):
		// No actionable output; success for lifecycle purposes but the
		// sidecar must not be overwritten with an empty transcript.
		o.state = StateDone
		o.recordSession(ctx, "no_speech")
		observe.Logger(ctx).Info("no speech detected")
		return nil, err
	case err != nil:
		o.state = StateFailed
		o.recordSession(ctx, "failed")
		return nil, err
	}

	if err := o.store.WriteSidecar(tr); err != nil {
		o.state = StateFailed
		o.recordSession(ctx, "failed")
		return nil, err
	}

	o.state = StateDone
	o.recordSession(ctx, "done")
	observe.Logger(ctx).Info("transcription complete",
		"provider", cfg.Provider,
		"language", tr.Language,
		"segments", len(tr.Segments),
	)
	return tr, nil
}

// Cleanup deletes the WAV and sidecar files and resets the slot to Idle. It
// may be called from any state. Deletion is best-effort: the two files are
// removed independently so a lock on one cannot block the other, and
// filesystem faults are logged, never propagated; a leftover temp file is
// preferable to failing the host.
func (o *Orchestrator) Cleanup(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "session.cleanup")
	defer span.End()

	if o.state == StateRecording || o.state == StateStopping {
		// Never delete a file the recorder may still be writing.
		o.rec.Stop()
	}

	var g errgroup.Group
	for _, path := range []string{o.store.WAVPath(), o.store.SidecarPath()} {
		g.Go(func() error {
			return o.store.DeleteWithRetry(path, 0)
		})
	}
	if err := g.Wait(); err != nil {
		observe.Logger(ctx).Warn("cleanup left artifacts behind", "err", err)
	}

	o.releaseGauge(ctx)
	o.state = StateIdle
}

// Close tears down the orchestrator, removing the artifact directory
// entirely. The instance must not be used afterwards.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRecording || o.state == StateStopping {
		o.rec.Stop()
	}
	o.store.PurgeAll()
	o.state = StateIdle
}

func (o *Orchestrator) recordSession(ctx context.Context, status string) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordSession(ctx, status)
	o.releaseGauge(ctx)
}

// releaseGauge decrements ActiveSessions once per held increment.
func (o *Orchestrator) releaseGauge(ctx context.Context) {
	if o.metrics != nil && o.gaugeHeld {
		o.metrics.ActiveSessions.Add(ctx, -1)
		o.gaugeHeld = false
	}
}
