package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/plane/internal/models"
)

// AddComment inserts a comment and recomputes the issue's comment_count from
// the comment rows in the same transaction.
func (s *SQLiteStore) AddComment(ctx context.Context, issueID, user, body string) (int64, error) {
	if strings.TrimSpace(body) == "" {
		return 0, validationErr("comment body is required")
	}

	var id int64
	err := s.withTx(ctx, func(q querier) error {
		exists, err := issueExists(ctx, q, issueID)
		if err != nil {
			return err
		}
		if !exists {
			return notFound("issue", issueID)
		}

		result, err := q.ExecContext(ctx,
			`INSERT INTO comments (issue_id, user, body, created_at) VALUES (?, ?, ?, ?)`,
			issueID, user, body, formatTime(s.now()))
		if err != nil {
			return wrapDBError("insert comment", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return wrapDBError("get comment id", err)
		}

		_, err = q.ExecContext(ctx,
			`UPDATE issues SET comment_count = (SELECT COUNT(*) FROM comments WHERE issue_id = ?) WHERE id = ?`,
			issueID, issueID)
		if err != nil {
			return wrapDBError("update comment count", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListComments returns an issue's comments, oldest first. An issue without
// comments yields an empty slice.
func (s *SQLiteStore) ListComments(ctx context.Context, issueID string) ([]*models.Comment, error) {
	exists, err := issueExists(ctx, s.db, issueID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFound("issue", issueID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_id, user, body, created_at
		FROM comments WHERE issue_id = ? ORDER BY created_at ASC, id ASC`, issueID)
	if err != nil {
		return nil, wrapDBError("list comments", err)
	}
	defer func() { _ = rows.Close() }()

	comments := []*models.Comment{}
	for rows.Next() {
		c := &models.Comment{}
		var createdAt string
		if err := rows.Scan(&c.ID, &c.IssueID, &c.User, &c.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
