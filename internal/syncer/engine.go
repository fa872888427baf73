// Package syncer orchestrates the bidirectional sync protocol: pull server
// changes since the last checkpoint, apply them locally, then push locally
// pending interactions. Pull always precedes push, the checkpoint advances
// only on a fully applied pull, and at most one cycle runs at a time.
package syncer

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rahulv/skilltrack/internal/store"
)

// Phase is the engine's position in the current cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePulling
	PhaseApplying
	PhasePushing
)

func (p Phase) String() string {
	switch p {
	case PhasePulling:
		return "pulling"
	case PhaseApplying:
		return "applying"
	case PhasePushing:
		return "pushing"
	default:
		return "idle"
	}
}

// Store is the slice of the durable event store the engine needs.
type Store interface {
	GetCheckpoint(ctx context.Context) (store.Checkpoint, error)
	ApplyPull(ctx context.Context, changes []store.Interaction, cp store.Checkpoint) error
	ListPending(ctx context.Context) ([]store.Interaction, error)
	MarkSynced(ctx context.Context, ids []string) error
}

// Gateway is the remote boundary the engine drives.
type Gateway interface {
	Pull(ctx context.Context, since string, schemaVersion int) ([]store.Interaction, string, error)
	Push(ctx context.Context, records []store.Interaction, since string) ([]string, error)
}

// Result summarizes a completed cycle.
type Result struct {
	Pulled     int    // server changes applied locally
	Pushed     int    // pending records sent
	Acked      int    // records the server acknowledged
	Checkpoint string // token after the cycle
}

// Engine runs sync cycles against one local store instance.
type Engine struct {
	store         Store
	gw            Gateway
	schemaVersion int
	log           *zap.Logger

	flight singleflight.Group
	phase  atomic.Int32
}

// New creates a sync engine. schemaVersion is this build's local schema
// version, sent with every pull so the server can refuse incompatible
// clients instead of returning data the client would misapply.
func New(st Store, gw Gateway, schemaVersion int, log *zap.Logger) *Engine {
	return &Engine{
		store:         st,
		gw:            gw,
		schemaVersion: schemaVersion,
		log:           log,
	}
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

// RunSync executes one pull-then-push cycle. Overlapping calls coalesce:
// a call made while a cycle is in flight does not start a second cycle, it
// waits for and shares the in-flight cycle's result. The in-flight cycle
// keeps the context of the call that started it.
func (e *Engine) RunSync(ctx context.Context) (Result, error) {
	v, err, shared := e.flight.Do("sync", func() (any, error) {
		return e.cycle(ctx)
	})
	if shared {
		e.log.Debug("sync request coalesced into in-flight cycle")
	}
	res, _ := v.(Result)
	return res, err
}

func (e *Engine) cycle(ctx context.Context) (Result, error) {
	defer e.phase.Store(int32(PhaseIdle))

	cp, err := e.store.GetCheckpoint(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read checkpoint: %w", err)
	}

	// Pull. Any failure here leaves the checkpoint untouched.
	e.phase.Store(int32(PhasePulling))
	changes, token, err := e.gw.Pull(ctx, cp.LastPulledAt, e.schemaVersion)
	if err != nil {
		e.log.Warn("sync pull failed", zap.Error(err))
		return Result{}, fmt.Errorf("pull: %w", err)
	}

	// Apply the pulled batch and advance the checkpoint as one unit.
	e.phase.Store(int32(PhaseApplying))
	newCP := store.Checkpoint{LastPulledAt: token, SchemaVersion: e.schemaVersion}
	if err := e.store.ApplyPull(ctx, changes, newCP); err != nil {
		e.log.Error("applying pulled changes failed", zap.Error(err))
		return Result{}, fmt.Errorf("apply: %w", err)
	}

	res := Result{Pulled: len(changes), Checkpoint: token}

	// Push whatever is still pending. A stale-checkpoint rejection aborts
	// the push leg with nothing marked synced; the next cycle's pull
	// fetches the authoritative state first.
	e.phase.Store(int32(PhasePushing))
	pending, err := e.store.ListPending(ctx)
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		e.log.Debug("sync cycle complete, nothing to push", zap.Int("pulled", res.Pulled))
		return res, nil
	}

	acked, err := e.gw.Push(ctx, pending, token)
	if err != nil {
		e.log.Warn("sync push failed", zap.Int("pending", len(pending)), zap.Error(err))
		return res, fmt.Errorf("push: %w", err)
	}
	res.Pushed = len(pending)

	// The server may ack out of order or partially; only acked ids
	// transition. The rest stay pending and ride the next cycle.
	if err := e.store.MarkSynced(ctx, acked); err != nil {
		return res, fmt.Errorf("mark synced: %w", err)
	}
	res.Acked = len(acked)

	e.log.Info("sync cycle complete",
		zap.Int("pulled", res.Pulled),
		zap.Int("pushed", res.Pushed),
		zap.Int("acked", res.Acked),
		zap.String("checkpoint", res.Checkpoint),
	)
	return res, nil
}
