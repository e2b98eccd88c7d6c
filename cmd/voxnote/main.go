// Command voxnote records a voice note through an external capture tool and
// prints its transcription.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/voxnote/voxnote/internal/admin"
	"github.com/voxnote/voxnote/internal/artifact"
	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/recorder"
	"github.com/voxnote/voxnote/internal/session"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	duration := flag.Duration("duration", 0, "stop recording after this long (0 records until Ctrl+C)")
	keep := flag.Bool("keep", false, "keep the WAV and sidecar files instead of deleting them")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	// API keys may live in a .env file next to the binary; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "voxnote: config file %q not found, using defaults\n", *configPath)
		cfg, err = config.LoadFromReader(strings.NewReader(""))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxnote: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxnote starting",
		"version", version,
		"provider", cfg.Provider.Name,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Session wiring ────────────────────────────────────────────────────────
	resolve := func() (transcribe.Config, error) {
		return transcribe.Resolve(cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.Model, cfg.Provider.Endpoint)
	}

	store, err := artifact.NewManager(time.Now().Format("20060102-150405"), artifact.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to create artifact directory", "err", err)
		return 1
	}

	var recOpts []recorder.Option
	if cfg.Recorder.Command != "" {
		recOpts = append(recOpts, recorder.WithCommandTemplate(cfg.Recorder.Command))
	}
	sup := recorder.New(recOpts...)

	client := transcribe.NewClient(transcribe.WithLanguage(cfg.Provider.Language))
	orch := session.New(sup, store, client, resolve, metrics)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// The admin server must also wind down when the cycle ends without a
	// signal (the -duration path).
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ── Admin server (optional) ───────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	if addr := cfg.Server.ListenAddr; addr != "" {
		// The admin endpoints need the provider address even when the key is
		// not configured yet; the placeholder credential is never used for
		// transcription itself.
		adminCfg, err := resolve()
		if err != nil {
			adminCfg, _ = transcribe.Resolve(cfg.Provider.Name, "unset", cfg.Provider.Model, cfg.Provider.Endpoint)
		}
		srv := admin.New(addr, adminCfg, metrics,
			admin.RecorderToolCheck(cfg.Recorder.Command, recorder.DefaultTool),
			admin.ProviderCheck(adminCfg, nil),
		)
		g.Go(func() error { return srv.Run(gctx) })
	}

	// ── One recording cycle ───────────────────────────────────────────────────
	code := record(ctx, orch, *duration, *keep)

	stop()
	cancel()
	if err := g.Wait(); err != nil {
		slog.Warn("admin server error", "err", err)
	}

	if *keep {
		slog.Info("artifacts kept", "wav", store.WAVPath(), "sidecar", store.SidecarPath())
	} else {
		orch.Close()
	}
	return code
}

// record drives one start → wait → stop → transcribe → cleanup cycle and
// returns the process exit code.
func record(ctx context.Context, orch *session.Orchestrator, duration time.Duration, keep bool) int {
	if err := orch.Start(ctx); err != nil {
		slog.Error("failed to start recording", "err", err)
		return 1
	}
	fmt.Fprintln(os.Stderr, "voxnote: recording, press Ctrl+C to stop")

	if duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(duration):
		}
	} else {
		<-ctx.Done()
	}

	// The interrupt already went to us; from here on use a fresh context so
	// shutdown steps are not cut short.
	bg := context.Background()
	orch.Stop(bg)

	tr, err := orch.Transcribe(bg)
	switch {
	case errors.Is(err, transcribe.ErrNoSpeech):
		fmt.Fprintln(os.Stderr, "voxnote: no speech detected")
	case err != nil:
		slog.Error("transcription failed", "err", err)
		if !keep {
			orch.Cleanup(bg)
		}
		return 1
	default:
		fmt.Println(tr.Text)
	}

	if !keep {
		orch.Cleanup(bg)
	}
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
