package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"storyreel/internal/config"
	"storyreel/internal/draftstore"
	"storyreel/internal/export"
	"storyreel/internal/httpapi"
	"storyreel/internal/logging"
	"storyreel/internal/logs"
	"storyreel/internal/notifications"
	"storyreel/internal/preflight"
	"storyreel/internal/preview"
)

// Daemon serves preview sessions and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	drafts  *draftstore.Store
	spool   *export.Spool
	manager *preview.Manager
	api     *httpapi.Server
	notify  notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	Sessions     int    `json:"sessions"`
	DraftDBPath  string `json:"draftDbPath"`
	SpoolDir     string `json:"spoolDir"`
	LockFilePath string `json:"lockFilePath"`
	APIAddress   string `json:"apiAddress,omitempty"`
}

// New constructs a daemon. shared supplies the collaborators every session
// uses; Synthesizer is required.
func New(cfg *config.Config, logger *slog.Logger, shared preview.Collaborators) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if shared.Synthesizer == nil {
		return nil, errors.New("daemon requires a speech synthesizer")
	}

	drafts, err := draftstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open draft store: %w", err)
	}
	spool, err := export.NewSpool(cfg.Paths.SpoolDir, logger)
	if err != nil {
		drafts.Close()
		return nil, fmt.Errorf("open export spool: %w", err)
	}

	opts := preview.OptionsFromConfig(cfg, logger)
	opts.AutoPrepare = true
	manager := preview.NewManager(opts, shared)
	notify := notifications.NewService(cfg)

	api, err := httpapi.New(httpapi.Deps{
		Manager:  manager,
		Drafts:   drafts,
		Spool:    spool,
		Notifier: notify,
	}, httpapi.Options{
		Bind:     cfg.Paths.APIBind,
		Token:    cfg.Paths.APIToken,
		Defaults: cfg.TimelineDefaults(),
		Logger:   logger,
		LogPath:  logs.Path(cfg.Paths.LogDir),
	})
	if err != nil {
		drafts.Close()
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.StateDir, "storyreeld.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		drafts:   drafts,
		spool:    spool,
		manager:  manager,
		api:      api,
		notify:   notify,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and opens the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another storyreel daemon instance is already running")
	}

	d.runPreflight(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start api: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("storyreel daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.Addr()),
	)
	d.publish(ctx, notifications.EventDaemonStarted, notifications.Payload{"address": d.api.Addr()})
	return nil
}

// runPreflight logs failed readiness checks. Sessions still start: narration
// degrades to silence without the speech service.
func (d *Daemon) runPreflight(ctx context.Context) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run storyreel doctor for details"),
			logging.String(logging.FieldImpact, "previews may play without narration or fonts"),
		)
	}
}

func (d *Daemon) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.notify.Publish(ctx, event, payload); err != nil {
		d.logger.Warn("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

// Stop closes every session, shuts the API down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	sessions := len(d.manager.List())
	d.api.Stop()
	d.manager.CloseAll()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("storyreel daemon stopped")
	d.publish(context.Background(), notifications.EventDaemonStopped, notifications.Payload{"sessions": sessions})
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.drafts != nil {
		return d.drafts.Close()
	}
	return nil
}

// Status reports runtime information.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Sessions:     len(d.manager.List()),
		DraftDBPath:  d.drafts.Path(),
		SpoolDir:     d.spool.Dir(),
		LockFilePath: d.lockPath,
	}
	if status.Running {
		status.APIAddress = d.api.Addr()
	}
	return status
}

// Manager exposes the session manager.
func (d *Daemon) Manager() *preview.Manager { return d.manager }
