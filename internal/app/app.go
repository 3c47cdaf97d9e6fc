// Package app assembles the daemon: logging, settings, the server tree
// store, the send audit and the IRC connection manager, supervised as one
// unit with a clean shutdown order.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"github.com/wolfdex/idjc/internal/config"
	"github.com/wolfdex/idjc/internal/irc"
	"github.com/wolfdex/idjc/internal/runtime/supervisor"
	"github.com/wolfdex/idjc/internal/storage"
	"github.com/wolfdex/idjc/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store  *config.Store
	audit  storage.Store
	pruner *cron.Cron
	mgr    *irc.Manager
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	// Send audit (optional)
	var audit storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		audit = st
		log.Info("send audit enabled", logx.String("driver", sc.Driver))
	}

	store := config.NewStore(cfg.ServerFilePath(), log.With(logx.String("comp", "tree")))
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("server tree: %w", err)
	}

	mgr := irc.NewManager(store, audit,
		cfg.Pacing.RatePerSec, cfg.Pacing.Burst,
		log.With(logx.String("comp", "irc")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		audit:   audit,
		mgr:     mgr,
	}, nil
}

// IRC exposes the connection manager for the host's control feed.
func (a *App) IRC() *irc.Manager { return a.mgr }

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	// Settings hot reload: only logging is applied live; storage, pacing and
	// the tree path need a restart.
	updates := a.cfgm.Subscribe(4)
	a.sup.Go0("config.apply", func(ctx context.Context) {
		defer a.cfgm.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
				a.log.Info("settings reloaded")
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sup.Go("tree.run", a.store.Run)
	a.sup.Go("tree.watch", a.store.Watch)

	if a.audit != nil {
		retention := time.Duration(a.cfgm.Get().Storage.RetentionDays) * 24 * time.Hour
		a.pruner = storage.StartPruner(a.audit, retention, a.log.With(logx.String("comp", "prune")))
	}

	a.notifySystemd()
	a.log.Info("started")
	return nil
}

// notifySystemd reports readiness and services the watchdog when the daemon
// runs under a systemd unit. A no-op everywhere else.
func (a *App) notifySystemd() {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("systemd notified ready")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(ctx context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	var firstErr error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	// Connections close after the control loop is down, so no more events or
	// posted closures race the teardown.
	a.mgr.CloseAll()

	if a.pruner != nil {
		a.pruner.Stop()
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return firstErr
}

func mapStorageConfig(cfg *config.AppConfig) (storage.Config, bool, error) {
	driver := cfg.Storage.Driver
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	sc := storage.Config{
		Driver: driver,
		Path:   cfg.Storage.Path,
	}
	if cfg.Storage.BusyTimeout != "" {
		d, err := time.ParseDuration(cfg.Storage.BusyTimeout)
		if err != nil {
			return storage.Config{}, false, fmt.Errorf("storage.busy_timeout: %w", err)
		}
		sc.BusyTimeout = d
	}
	return sc, true, nil
}
