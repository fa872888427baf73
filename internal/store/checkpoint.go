package store

import (
	"context"
	"fmt"
)

// GetCheckpoint reads the singleton sync checkpoint.
func (s *Store) GetCheckpoint(ctx context.Context) (Checkpoint, error) {
	var cp Checkpoint
	err := s.db.GetContext(ctx, &cp,
		`SELECT last_pulled_at, schema_version FROM sync_checkpoint WHERE id = 1`,
	)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// SetCheckpoint replaces the singleton checkpoint atomically.
func (s *Store) SetCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_checkpoint SET last_pulled_at = ?, schema_version = ? WHERE id = 1`,
		cp.LastPulledAt, cp.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("%w: set checkpoint: %v", ErrWriteFailed, err)
	}
	return nil
}

// ResetCheckpoint clears the pulled high-water mark, forcing the next sync
// cycle to perform a full initial pull. The schema version is preserved.
// This is the logout/re-install path; it is the only sanctioned way to move
// the checkpoint backwards.
func (s *Store) ResetCheckpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_checkpoint SET last_pulled_at = '' WHERE id = 1`,
	)
	if err != nil {
		return fmt.Errorf("%w: reset checkpoint: %v", ErrWriteFailed, err)
	}
	return nil
}
