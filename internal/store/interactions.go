package store

import (
	"context"
	"fmt"
	"time"
)

const insertInteraction = `
INSERT INTO interactions (
	id, user_id, skill_id, subject, topic, question_id, session_id,
	correct, confidence, time_spent_seconds, hints_used, created_at, sync_status
) VALUES (
	:id, :user_id, :skill_id, :subject, :topic, :question_id, :session_id,
	:correct, :confidence, :time_spent_seconds, :hints_used, :created_at, :sync_status
)`

// Append durably inserts a new interaction. The record is always stored
// as pending regardless of the SyncStatus on the argument; only the sync
// engine transitions records to synced.
func (s *Store) Append(ctx context.Context, in *Interaction) error {
	rec := *in
	rec.SyncStatus = SyncPending
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if _, err := s.db.NamedExecContext(ctx, insertInteraction, rec); err != nil {
		return fmt.Errorf("%w: append interaction %s: %v", ErrWriteFailed, rec.ID, err)
	}
	return nil
}

// ListPending returns all interactions still awaiting server acknowledgment,
// in creation order.
func (s *Store) ListPending(ctx context.Context) ([]Interaction, error) {
	var out []Interaction
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM interactions WHERE sync_status = ? ORDER BY created_at, id`,
		SyncPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return out, nil
}

// MarkSynced transitions the given interactions to synced in a single
// transaction. Ids that are unknown or already synced are skipped, so the
// operation is idempotent.
func (s *Store) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin mark synced: %v", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE interactions SET sync_status = 'synced' WHERE id = ? AND sync_status = 'pending'`,
	)
	if err != nil {
		return fmt.Errorf("%w: prepare mark synced: %v", ErrWriteFailed, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("%w: mark synced %s: %v", ErrWriteFailed, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit mark synced: %v", ErrWriteFailed, err)
	}
	return nil
}

const upsertInteraction = `
INSERT INTO interactions (
	id, user_id, skill_id, subject, topic, question_id, session_id,
	correct, confidence, time_spent_seconds, hints_used, created_at, sync_status
) VALUES (
	:id, :user_id, :skill_id, :subject, :topic, :question_id, :session_id,
	:correct, :confidence, :time_spent_seconds, :hints_used, :created_at, :sync_status
)
ON CONFLICT (id) DO UPDATE SET
	user_id            = excluded.user_id,
	skill_id           = excluded.skill_id,
	subject            = excluded.subject,
	topic              = excluded.topic,
	question_id        = excluded.question_id,
	session_id         = excluded.session_id,
	correct            = excluded.correct,
	confidence         = excluded.confidence,
	time_spent_seconds = excluded.time_spent_seconds,
	hints_used         = excluded.hints_used,
	created_at         = excluded.created_at,
	sync_status        = 'synced'`

// ApplyPull merges server-side changes into the store (insert-or-update by
// id, last-writer-wins) and advances the checkpoint, all in one transaction.
// A crash therefore leaves either the pre-pull or the post-pull state, never
// a checkpoint that skips unapplied changes. Records the server sends back
// are by definition known to it, so the merge also settles them as synced.
func (s *Store) ApplyPull(ctx context.Context, changes []Interaction, cp Checkpoint) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin apply pull: %v", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	for i := range changes {
		if _, err := tx.NamedExecContext(ctx, upsertInteraction, changes[i]); err != nil {
			return fmt.Errorf("%w: apply change %s: %v", ErrWriteFailed, changes[i].ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sync_checkpoint SET last_pulled_at = ?, schema_version = ? WHERE id = 1`,
		cp.LastPulledAt, cp.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("%w: advance checkpoint: %v", ErrWriteFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit apply pull: %v", ErrWriteFailed, err)
	}
	return nil
}

// CountBySyncStatus returns the number of pending and synced interactions.
func (s *Store) CountBySyncStatus(ctx context.Context) (pending, synced int, err error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT sync_status, COUNT(*) FROM interactions GROUP BY sync_status`,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("count by sync status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return 0, 0, fmt.Errorf("scan sync status count: %w", err)
		}
		switch SyncStatus(status) {
		case SyncPending:
			pending = n
		case SyncSynced:
			synced = n
		}
	}
	return pending, synced, rows.Err()
}
