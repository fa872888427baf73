// Package app wires the sync pipeline together: durable store, gateway,
// sync engine with its scheduler, and the interaction recorder. The UI
// layer talks only to the Recorder and the Scheduler.
package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rahulv/skilltrack/internal/auth"
	"github.com/rahulv/skilltrack/internal/config"
	"github.com/rahulv/skilltrack/internal/gateway"
	"github.com/rahulv/skilltrack/internal/logging"
	"github.com/rahulv/skilltrack/internal/recorder"
	"github.com/rahulv/skilltrack/internal/store"
	"github.com/rahulv/skilltrack/internal/syncer"
)

// App owns the pipeline's components and their lifecycle.
type App struct {
	Store     *store.Store
	Gateway   *gateway.Client
	Engine    *syncer.Engine
	Scheduler *syncer.Scheduler
	Recorder  *recorder.Recorder
	Log       *zap.Logger

	mu      sync.Mutex
	started bool
}

// Options tunes construction beyond the config file.
type Options struct {
	// DBPath overrides the default database location.
	DBPath string
	// OnMastery receives direct-path mastery feedback for the UI.
	OnMastery func(skillID string, mastery float64)
	// OnFatalSync is told when sync breaks permanently (auth/schema);
	// the app should prompt for re-login or an update.
	OnFatalSync func(error)
}

// New builds the pipeline from configuration. Call Start to begin syncing
// and Close to shut everything down.
func New(cfg *config.Config, opts Options) (*App, error) {
	log := logging.New(logging.Options{File: cfg.Log.File, Debug: cfg.Log.Debug})

	dbPath := opts.DBPath
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}

	st, err := store.Open(dbPath, cfg.Sync.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	gw := gateway.New(
		cfg.Server.BaseURL,
		auth.EnvTokenSource(cfg.Server.TokenEnv),
		cfg.Server.RequestTimeout(),
	)

	engine := syncer.New(st, gw, cfg.Sync.SchemaVersion, log.Named("syncer"))

	schedCfg := syncer.DefaultSchedulerConfig()
	schedCfg.Interval = cfg.Sync.Interval()
	schedCfg.MaxAttempts = cfg.Sync.MaxRetryAttempts
	sched := syncer.NewScheduler(engine, schedCfg, opts.OnFatalSync, log.Named("syncer"))

	rec := recorder.New(recorder.Options{
		Appender:    st,
		Direct:      gw,
		RequestSync: sched.Request,
		OnMastery:   opts.OnMastery,
		Log:         log.Named("recorder"),
	})

	return &App{
		Store:     st,
		Gateway:   gw,
		Engine:    engine,
		Scheduler: sched,
		Recorder:  rec,
		Log:       log,
	}, nil
}

// Start launches background syncing. The scheduler immediately requests a
// first cycle, covering the app-foreground trigger.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.Scheduler.Start(ctx)
	a.started = true
}

// Close drains the recorder, stops the scheduler, and releases the store
// and gateway.
func (a *App) Close() error {
	a.Recorder.Close()
	a.mu.Lock()
	started := a.started
	a.started = false
	a.mu.Unlock()
	if started {
		a.Scheduler.Stop()
	}
	if err := a.Gateway.Close(); err != nil {
		a.Log.Warn("closing gateway", zap.Error(err))
	}
	err := a.Store.Close()
	_ = a.Log.Sync()
	return err
}
