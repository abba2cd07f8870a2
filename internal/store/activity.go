package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joescharf/plane/internal/models"
)

func insertActivity(ctx context.Context, q querier, issueID, user string, action models.ActivityAction, field string, oldValue, newValue *string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO issue_activity (issue_id, user, action, field, old_value, new_value, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		issueID, user, string(action), field, ptrToNull(oldValue), ptrToNull(newValue), formatTime(at),
	)
	if err != nil {
		return wrapDBError("record activity", err)
	}
	return nil
}

func ptrToNull(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// ListActivity returns an issue's audit trail, oldest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, issueID string) ([]*models.ActivityRecord, error) {
	exists, err := issueExists(ctx, s.db, issueID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFound("issue", issueID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_id, user, action, field, old_value, new_value, timestamp
		FROM issue_activity WHERE issue_id = ? ORDER BY id ASC`, issueID)
	if err != nil {
		return nil, wrapDBError("list activity", err)
	}
	defer func() { _ = rows.Close() }()

	records := []*models.ActivityRecord{}
	for rows.Next() {
		r := &models.ActivityRecord{}
		var action, ts string
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&r.ID, &r.IssueID, &r.User, &action, &r.Field, &oldValue, &newValue, &ts); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		r.Action = models.ActivityAction(action)
		r.OldValue = nullToPtr(oldValue)
		r.NewValue = nullToPtr(newValue)
		if r.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
