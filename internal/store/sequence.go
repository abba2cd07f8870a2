package store

import (
	"context"
	"fmt"
	"strings"
)

// NextSequence allocates the next issue number for a project in its own
// transaction. The number is consumed even if no issue ever uses it.
func (s *SQLiteStore) NextSequence(ctx context.Context, projectID string) (int, error) {
	if strings.TrimSpace(projectID) == "" {
		return 0, validationErr("project is required")
	}
	var seq int
	err := s.withTx(ctx, func(q querier) error {
		var err error
		seq, err = nextSequence(ctx, q, projectID)
		return err
	})
	return seq, err
}

// nextSequence bumps the project's counter row and returns the new value.
// A missing row is seeded from the highest existing sequence_id, so the
// counter never hands out a number already in use. Must run inside withTx.
func nextSequence(ctx context.Context, q querier, projectID string) (int, error) {
	var seq int
	err := q.QueryRowContext(ctx, `
		INSERT INTO project_sequences (project_id, last_value)
		VALUES (?, (SELECT COALESCE(MAX(sequence_id), 0) + 1 FROM issues WHERE project_id = ?))
		ON CONFLICT (project_id) DO UPDATE SET last_value = last_value + 1
		RETURNING last_value`,
		projectID, projectID,
	).Scan(&seq)
	if err != nil {
		return 0, wrapDBError("allocate sequence", err)
	}
	if seq < 1 {
		return 0, fmt.Errorf("allocate sequence for %s: got %d: %w", projectID, seq, ErrIntegrity)
	}
	return seq, nil
}
