package syncer

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/rahulv/skilltrack/internal/gateway"
)

// SchedulerConfig bounds the scheduler's retry and polling behavior.
type SchedulerConfig struct {
	// Interval between periodic sync attempts while running.
	Interval time.Duration
	// MaxAttempts per trigger, counting the first try.
	MaxAttempts uint
	// InitialDelay seeds the exponential backoff between attempts.
	InitialDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// MaxJitter is added on top of each delay.
	MaxJitter time.Duration
}

// DefaultSchedulerConfig returns the scheduling defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:     5 * time.Minute,
		MaxAttempts:  5,
		InitialDelay: 2 * time.Second,
		MaxDelay:     2 * time.Minute,
		MaxJitter:    time.Second,
	}
}

// Scheduler funnels all sync triggers (foreground, post-append, periodic)
// into coalesced RunSync calls and retries transient failures with capped
// exponential backoff plus jitter. Fatal failures are reported once through
// OnFatal and never retried automatically.
type Scheduler struct {
	engine  *Engine
	cfg     SchedulerConfig
	log     *zap.Logger
	onFatal func(error)

	requests chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a scheduler for the engine. onFatal may be nil.
func NewScheduler(engine *Engine, cfg SchedulerConfig, onFatal func(error), log *zap.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		cfg:      cfg,
		log:      log,
		onFatal:  onFatal,
		requests: make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Request asks for a sync soon. It never blocks; a request made while one
// is already queued coalesces with it.
func (s *Scheduler) Request() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// Start launches the scheduling loop and requests an immediate first sync
// (the app-foreground trigger).
func (s *Scheduler) Start(ctx context.Context) {
	s.Request()
	go s.loop(ctx)
}

// Stop terminates the loop and waits for any in-progress attempt to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.syncWithRetry(ctx)
		case <-s.requests:
			s.syncWithRetry(ctx)
		}
	}
}

// syncWithRetry runs one sync, retrying transient failures. Exact curve is
// backoff doubling from InitialDelay, capped at MaxDelay, with up to
// MaxJitter of random extra delay per attempt.
func (s *Scheduler) syncWithRetry(ctx context.Context) {
	err := retry.Do(
		func() error {
			_, err := s.engine.RunSync(ctx)
			if err != nil && !gateway.IsTransient(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.MaxAttempts),
		retry.Delay(s.cfg.InitialDelay),
		retry.MaxDelay(s.cfg.MaxDelay),
		retry.MaxJitter(s.cfg.MaxJitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return
	}

	if gateway.IsFatal(err) {
		// Auth or schema problem: sync stays broken until the app or the
		// user intervenes, so don't burn retries on it.
		s.log.Error("sync failed permanently for this session", zap.Error(err))
		if s.onFatal != nil {
			s.onFatal(err)
		}
		return
	}
	s.log.Warn("sync failed, will retry on next trigger", zap.Error(err))
}
