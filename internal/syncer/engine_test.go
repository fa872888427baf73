package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rahulv/skilltrack/internal/gateway"
	"github.com/rahulv/skilltrack/internal/store"
)

const testSchemaVersion = 3

// fakeGateway is an in-memory stand-in for the remote sync API.
type fakeGateway struct {
	pullFn func(ctx context.Context, since string, schemaVersion int) ([]store.Interaction, string, error)
	pushFn func(ctx context.Context, records []store.Interaction, since string) ([]string, error)

	pullCalls atomic.Int32
	pushCalls atomic.Int32
}

func (g *fakeGateway) Pull(ctx context.Context, since string, schemaVersion int) ([]store.Interaction, string, error) {
	g.pullCalls.Add(1)
	if g.pullFn != nil {
		return g.pullFn(ctx, since, schemaVersion)
	}
	return nil, "tok-next", nil
}

func (g *fakeGateway) Push(ctx context.Context, records []store.Interaction, since string) ([]string, error) {
	g.pushCalls.Add(1)
	if g.pushFn != nil {
		return g.pushFn(ctx, records, since)
	}
	acked := make([]string, len(records))
	for i := range records {
		acked[i] = records[i].ID
	}
	return acked, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("file::memory:?cache=shared", testSchemaVersion)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func appendN(t *testing.T, s *store.Store, n int) []string {
	t.Helper()
	base := time.Now().UTC().Truncate(time.Second)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		in := &store.Interaction{
			ID:         uuid.NewString(),
			UserID:     "user-1",
			SkillID:    "decimals-mult",
			Subject:    "math",
			QuestionID: uuid.NewString(),
			SessionID:  "sess-1",
			Correct:    i%2 == 0,
			Confidence: store.ConfidenceHigh,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		if err := s.Append(context.Background(), in); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		ids = append(ids, in.ID)
	}
	return ids
}

func newTestEngine(s *store.Store, gw Gateway) *Engine {
	return New(s, gw, testSchemaVersion, zap.NewNop())
}

func TestRunSyncOfflineThenReconnect(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Three answers recorded while offline.
	appendN(t, s, 3)
	pending, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("len(pending) = %d, want 3 before sync", len(pending))
	}

	gw := &fakeGateway{}
	res, err := newTestEngine(s, gw).RunSync(ctx)
	if err != nil {
		t.Fatalf("run sync: %v", err)
	}
	if res.Pushed != 3 || res.Acked != 3 {
		t.Errorf("result = %+v, want 3 pushed, 3 acked", res)
	}

	pending, err = s.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending after sync: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("len(pending) = %d after sync, want 0", len(pending))
	}

	cp, err := s.GetCheckpoint(ctx)
	if err != nil {
		t.Fatalf("get checkpoint: %v", err)
	}
	if cp.LastPulledAt != "tok-next" {
		t.Errorf("checkpoint = %q, want server token tok-next", cp.LastPulledAt)
	}
}

func TestRunSyncPartialAck(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ids := appendN(t, s, 5)
	gw := &fakeGateway{
		pushFn: func(_ context.Context, records []store.Interaction, _ string) ([]string, error) {
			// Server acks 3 of 5, out of creation order.
			return []string{ids[4], ids[0], ids[2]}, nil
		},
	}

	res, err := newTestEngine(s, gw).RunSync(ctx)
	if err != nil {
		t.Fatalf("run sync: %v", err)
	}
	if res.Pushed != 5 || res.Acked != 3 {
		t.Errorf("result = %+v, want 5 pushed, 3 acked", res)
	}

	pending, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2 left for next cycle", len(pending))
	}
	stillPending := map[string]bool{pending[0].ID: true, pending[1].ID: true}
	if !stillPending[ids[1]] || !stillPending[ids[3]] {
		t.Errorf("pending ids = %v, want exactly the unacked %v", stillPending, []string{ids[1], ids[3]})
	}
}

func TestRunSyncPullFailureLeavesCheckpoint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetCheckpoint(ctx, store.Checkpoint{LastPulledAt: "tok-5", SchemaVersion: testSchemaVersion}); err != nil {
		t.Fatalf("set checkpoint: %v", err)
	}
	appendN(t, s, 2)

	gw := &fakeGateway{
		pullFn: func(context.Context, string, int) ([]store.Interaction, string, error) {
			return nil, "", gateway.NewTransientError("pull", errors.New("connection refused"))
		},
	}

	_, err := newTestEngine(s, gw).RunSync(ctx)
	if err == nil {
		t.Fatal("expected pull failure")
	}
	if !gateway.IsTransient(err) {
		t.Errorf("err = %v, want transient classification to survive wrapping", err)
	}
	if got := gw.pushCalls.Load(); got != 0 {
		t.Errorf("pushCalls = %d, want 0 (pull precedes push)", got)
	}

	cp, err := s.GetCheckpoint(ctx)
	if err != nil {
		t.Fatalf("get checkpoint: %v", err)
	}
	if cp.LastPulledAt != "tok-5" {
		t.Errorf("checkpoint = %q after failed pull, want unchanged tok-5", cp.LastPulledAt)
	}
	pending, _ := s.ListPending(ctx)
	if len(pending) != 2 {
		t.Errorf("len(pending) = %d, want unchanged 2", len(pending))
	}
}

func TestRunSyncSchemaMismatchIsFatal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	appendN(t, s, 1)

	gw := &fakeGateway{
		pullFn: func(context.Context, string, int) ([]store.Interaction, string, error) {
			return nil, "", gateway.NewFatalError("pull", gateway.ErrSchemaUnsupported)
		},
	}

	_, err := newTestEngine(s, gw).RunSync(ctx)
	if !errors.Is(err, gateway.ErrSchemaUnsupported) {
		t.Fatalf("err = %v, want ErrSchemaUnsupported", err)
	}
	if !gateway.IsFatal(err) {
		t.Error("schema mismatch must classify as non-retryable")
	}

	cp, _ := s.GetCheckpoint(ctx)
	if cp.LastPulledAt != "" {
		t.Errorf("checkpoint = %q, want untouched", cp.LastPulledAt)
	}
	pending, _ := s.ListPending(ctx)
	if len(pending) != 1 {
		t.Errorf("len(pending) = %d, want untouched 1", len(pending))
	}
}

func TestRunSyncStaleCheckpointAbortsPush(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	appendN(t, s, 2)

	gw := &fakeGateway{
		pushFn: func(context.Context, []store.Interaction, string) ([]string, error) {
			return nil, gateway.NewTransientError("push", gateway.ErrStaleCheckpoint)
		},
	}

	_, err := newTestEngine(s, gw).RunSync(ctx)
	if !errors.Is(err, gateway.ErrStaleCheckpoint) {
		t.Fatalf("err = %v, want ErrStaleCheckpoint", err)
	}

	// Nothing marked synced; records ride the next cycle.
	pending, _ := s.ListPending(ctx)
	if len(pending) != 2 {
		t.Errorf("len(pending) = %d, want 2", len(pending))
	}
	// The pull leg completed, so its checkpoint advance stands.
	cp, _ := s.GetCheckpoint(ctx)
	if cp.LastPulledAt != "tok-next" {
		t.Errorf("checkpoint = %q, want tok-next from the applied pull", cp.LastPulledAt)
	}
}

func TestRunSyncAppliesRemoteChanges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	remote := store.Interaction{
		ID:         "remote-1",
		UserID:     "user-1",
		SkillID:    "fractions-add",
		Subject:    "math",
		QuestionID: "q-9",
		SessionID:  "other-device",
		Correct:    true,
		Confidence: store.ConfidenceLow,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		SyncStatus: store.SyncSynced,
	}
	gw := &fakeGateway{
		pullFn: func(context.Context, string, int) ([]store.Interaction, string, error) {
			return []store.Interaction{remote}, "tok-9", nil
		},
	}

	res, err := newTestEngine(s, gw).RunSync(ctx)
	if err != nil {
		t.Fatalf("run sync: %v", err)
	}
	if res.Pulled != 1 {
		t.Errorf("Pulled = %d, want 1", res.Pulled)
	}
	if got := gw.pushCalls.Load(); got != 0 {
		t.Errorf("pushCalls = %d, want 0 (nothing pending)", got)
	}

	var n int
	if err := s.DB().Get(&n, `SELECT COUNT(*) FROM interactions WHERE id = 'remote-1' AND sync_status = 'synced'`); err != nil {
		t.Fatalf("query merged record: %v", err)
	}
	if n != 1 {
		t.Error("pulled record not merged as synced")
	}
}

func TestRunSyncSingleFlight(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	appendN(t, s, 1)

	release := make(chan struct{})
	gw := &fakeGateway{
		pullFn: func(context.Context, string, int) ([]store.Interaction, string, error) {
			<-release
			return nil, "tok-sf", nil
		},
	}
	e := newTestEngine(s, gw)

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.RunSync(ctx)
		}(i)
	}

	// Let all callers pile up on the in-flight cycle, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := gw.pullCalls.Load(); got != 1 {
		t.Errorf("pullCalls = %d, want exactly 1 (coalesced)", got)
	}
	if got := gw.pushCalls.Load(); got != 1 {
		t.Errorf("pushCalls = %d, want exactly 1 (coalesced)", got)
	}
	if e.Phase() != PhaseIdle {
		t.Errorf("Phase = %s after cycle, want idle", e.Phase())
	}
}

func TestPhaseStrings(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhasePulling, "pulling"},
		{PhaseApplying, "applying"},
		{PhasePushing, "pushing"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}
