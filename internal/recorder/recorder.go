// Package recorder is the write path for learning events. Every answered
// question is written to the durable local store first (so it survives
// offline periods and crashes), then opportunistically sent straight to the
// server for low-latency mastery feedback. Only the sync engine's push
// phase can mark a record synced; the direct call never does.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rahulv/skilltrack/internal/gateway"
	"github.com/rahulv/skilltrack/internal/store"
)

// Event is one answered question as the UI reports it.
type Event struct {
	UserID           string
	SkillID          string
	Subject          string
	Topic            string
	QuestionID       string
	SessionID        string
	Correct          bool
	Confidence       store.Confidence
	TimeSpentSeconds int
	HintsUsed        int
}

// Appender is the slice of the durable store the recorder needs.
type Appender interface {
	Append(ctx context.Context, in *store.Interaction) error
}

// DirectLogger is the opportunistic remote path.
type DirectLogger interface {
	LogInteraction(ctx context.Context, ev gateway.LogEvent) (*float64, error)
}

// Options configures a Recorder. Appender and Log are required; everything
// else may be nil.
type Options struct {
	Appender Appender
	Direct   DirectLogger
	// RequestSync is invoked after every successful durable append.
	RequestSync func()
	// OnMastery receives the direct call's skill-mastery feedback.
	OnMastery func(skillID string, mastery float64)
	// OnLost is told about events the durable store refused. There is no
	// secondary durability layer; the event is gone.
	OnLost func(ev Event, err error)
	// DirectTimeout bounds the opportunistic remote call.
	DirectTimeout time.Duration
	Log           *zap.Logger
}

// Recorder accepts events fire-and-forget and processes them on a single
// worker goroutine, so writes stay sequential without blocking the caller.
type Recorder struct {
	opts   Options
	events chan Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

const defaultDirectTimeout = 5 * time.Second

// New creates a Recorder and starts its worker.
func New(opts Options) *Recorder {
	if opts.DirectTimeout <= 0 {
		opts.DirectTimeout = defaultDirectTimeout
	}
	r := &Recorder{
		opts:   opts,
		events: make(chan Event, 128),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues an event for processing. The caller gets no error; append
// failures are logged and surfaced through OnLost. After Close the event
// is dropped.
func (r *Recorder) Record(ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.opts.Log.Warn("event dropped: recorder closed",
			zap.String("skill_id", ev.SkillID),
			zap.String("question_id", ev.QuestionID),
		)
		return
	}
	r.events <- ev
}

// Close drains queued events and stops the worker. Safe to call more
// than once.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.events {
		r.process(ev)
	}
}

func (r *Recorder) process(ev Event) {
	in := &store.Interaction{
		ID:               uuid.NewString(),
		UserID:           ev.UserID,
		SkillID:          ev.SkillID,
		Subject:          ev.Subject,
		Topic:            ev.Topic,
		QuestionID:       ev.QuestionID,
		SessionID:        ev.SessionID,
		Correct:          ev.Correct,
		Confidence:       ev.Confidence,
		TimeSpentSeconds: ev.TimeSpentSeconds,
		HintsUsed:        ev.HintsUsed,
		CreatedAt:        time.Now().UTC(),
		SyncStatus:       store.SyncPending,
	}

	if err := r.opts.Appender.Append(context.Background(), in); err != nil {
		// No retry queue in front of the store; the store is the retry
		// queue. A failed append means the event is lost.
		r.opts.Log.Error("interaction lost: durable append failed",
			zap.String("skill_id", ev.SkillID),
			zap.String("question_id", ev.QuestionID),
			zap.Error(err),
		)
		if r.opts.OnLost != nil {
			r.opts.OnLost(ev, err)
		}
	} else if r.opts.RequestSync != nil {
		r.opts.RequestSync()
	}

	// The direct call runs regardless of the append's outcome. Its failure
	// is swallowed: the sync engine is the durability backstop, this path
	// only buys immediate mastery feedback while online.
	if r.opts.Direct == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.DirectTimeout)
	defer cancel()

	mastery, err := r.opts.Direct.LogInteraction(ctx, gateway.LogEvent{
		Subject:          ev.Subject,
		Topic:            ev.Topic,
		SkillID:          ev.SkillID,
		QuestionID:       ev.QuestionID,
		Correct:          ev.Correct,
		Confidence:       string(ev.Confidence),
		TimeSpentSeconds: ev.TimeSpentSeconds,
		HintsUsed:        ev.HintsUsed,
		SessionID:        ev.SessionID,
	})
	if err != nil {
		r.opts.Log.Debug("direct interaction log failed", zap.Error(err))
		return
	}
	if mastery != nil && r.opts.OnMastery != nil {
		r.opts.OnMastery(ev.SkillID, *mastery)
	}
}
