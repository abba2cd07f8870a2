package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joescharf/plane/internal/models"
)

const issueColumns = `id, workspace_id, project_id, sequence_id, title, description, type, status, priority,
	assignees, labels, cycle_id, module_id, created_by, created_at, updated_at, due_date, estimate_points,
	link_count, attachment_count, comment_count`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(sc rowScanner) (*models.Issue, error) {
	issue := &models.Issue{}
	var issueType, status, priority, assignees, labels, createdAt, updatedAt string
	var cycleID, moduleID, dueDate sql.NullString
	var estimate sql.NullInt64

	if err := sc.Scan(&issue.ID, &issue.WorkspaceID, &issue.ProjectID, &issue.SequenceID,
		&issue.Title, &issue.Description, &issueType, &status, &priority,
		&assignees, &labels, &cycleID, &moduleID, &issue.CreatedBy,
		&createdAt, &updatedAt, &dueDate, &estimate,
		&issue.LinkCount, &issue.AttachmentCount, &issue.CommentCount); err != nil {
		return nil, err
	}

	issue.Type = models.IssueType(issueType)
	issue.Status = models.IssueStatus(status)
	issue.Priority = models.IssuePriority(priority)
	issue.CycleID = cycleID.String
	issue.ModuleID = moduleID.String

	if err := json.Unmarshal([]byte(assignees), &issue.Assignees); err != nil {
		return nil, fmt.Errorf("decode assignees of %s: %w", issue.ID, err)
	}
	if err := json.Unmarshal([]byte(labels), &issue.Labels); err != nil {
		return nil, fmt.Errorf("decode labels of %s: %w", issue.ID, err)
	}

	var err error
	if issue.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if issue.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if issue.DueDate, err = parseNullTime(dueDate); err != nil {
		return nil, err
	}
	if estimate.Valid {
		v := int(estimate.Int64)
		issue.EstimatePoints = &v
	}
	return issue, nil
}

func encodeSet(set models.StringSet) string {
	data, _ := json.Marshal(models.NewStringSet(set...))
	return string(data)
}

// --- Issues ---

// CreateIssue validates and inserts a new issue, allocating its sequence ID in
// the same transaction. Status, timestamps and counters are always reset.
func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	issue.Status = ""
	issue.ApplyDefaults()
	if err := issue.Validate(); err != nil {
		return fmt.Errorf("create issue: %w: %v", ErrValidation, err)
	}
	if issue.ID == "" {
		issue.ID = newULID()
	}
	if issue.WorkspaceID == "" {
		issue.WorkspaceID = s.workspace
	}
	now := s.now().UTC()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	issue.LinkCount, issue.AttachmentCount, issue.CommentCount = 0, 0, 0

	return s.withTx(ctx, func(q querier) error {
		if issue.CycleID != "" {
			if err := checkMembership(ctx, q, "cycles", "cycle", issue.CycleID, issue.ProjectID); err != nil {
				return fmt.Errorf("create issue: %w", err)
			}
		}
		if issue.ModuleID != "" {
			if err := checkMembership(ctx, q, "modules", "module", issue.ModuleID, issue.ProjectID); err != nil {
				return fmt.Errorf("create issue: %w", err)
			}
		}

		seq, err := nextSequence(ctx, q, issue.ProjectID)
		if err != nil {
			return err
		}
		issue.SequenceID = seq

		_, err = q.ExecContext(ctx,
			`INSERT INTO issues (`+issueColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, issue.WorkspaceID, issue.ProjectID, issue.SequenceID,
			issue.Title, issue.Description, string(issue.Type), string(issue.Status), string(issue.Priority),
			encodeSet(issue.Assignees), encodeSet(issue.Labels),
			nullString(issue.CycleID), nullString(issue.ModuleID), issue.CreatedBy,
			formatTime(issue.CreatedAt), formatTime(issue.UpdatedAt), formatNullTime(issue.DueDate), nullInt(issue.EstimatePoints),
			0, 0, 0,
		)
		if err != nil {
			return wrapDBError("create issue", err)
		}

		key := issue.Key()
		if err := insertActivity(ctx, q, issue.ID, issue.CreatedBy, models.ActivityCreated, "issue", nil, &key, now); err != nil {
			return err
		}
		if err := refreshCycleCounters(ctx, q, s.doneStatuses, issue.CycleID); err != nil {
			return err
		}
		return refreshModuleCounters(ctx, q, issue.ModuleID)
	})
}

// GetIssue returns the issue with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	return getIssue(ctx, s.db, id)
}

func getIssue(ctx context.Context, q querier, id string) (*models.Issue, error) {
	issue, err := scanIssue(q.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("issue", id)
	}
	if err != nil {
		return nil, wrapDBError("get issue", err)
	}
	return issue, nil
}

func issueExists(ctx context.Context, q querier, id string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, wrapDBError("check issue existence", err)
	}
	return exists, nil
}

// ListIssues returns a project's issues in ascending sequence order. The
// query is a single statement, so it reads one consistent snapshot.
func (s *SQLiteStore) ListIssues(ctx context.Context, projectID string, filter IssueFilter) ([]*models.Issue, error) {
	conditions := []string{"project_id = ?"}
	args := []any{projectID}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Assignee != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM json_each(issues.assignees) WHERE json_each.value = ?)")
		args = append(args, filter.Assignee)
	}
	if filter.Label != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM json_each(issues.labels) WHERE json_each.value = ?)")
		args = append(args, filter.Label)
	}
	if filter.CycleID != "" {
		conditions = append(conditions, "cycle_id = ?")
		args = append(args, filter.CycleID)
	}
	if filter.ModuleID != "" {
		conditions = append(conditions, "module_id = ?")
		args = append(args, filter.ModuleID)
	}

	query := `SELECT ` + issueColumns + ` FROM issues WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY sequence_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list issues", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// UpdateIssue applies upd to one issue and records an activity entry for each
// field whose value actually changed. It returns false without error when the
// issue does not exist or when nothing differs; use GetIssue first to tell
// those apart.
func (s *SQLiteStore) UpdateIssue(ctx context.Context, id string, upd models.IssueUpdate, actor string) (bool, error) {
	if err := upd.Validate(); err != nil {
		return false, fmt.Errorf("update issue: %w: %v", ErrValidation, err)
	}
	var changed bool
	err := s.withTx(ctx, func(q querier) error {
		issue, err := getIssue(ctx, q, id)
		if IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		changed, err = s.applyUpdate(ctx, q, issue, upd, actor)
		return err
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// BulkUpdateIssues applies the same update to every listed issue in one
// transaction. Missing IDs are skipped. The count covers issues that existed
// and changed. On failure everything is rolled back and a *BulkError is
// returned with a count of 0.
func (s *SQLiteStore) BulkUpdateIssues(ctx context.Context, ids []string, upd models.IssueUpdate, actor string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := upd.Validate(); err != nil {
		return 0, fmt.Errorf("bulk update: %w: %v", ErrValidation, err)
	}

	affected := 0
	err := s.withTx(ctx, func(q querier) error {
		seen := make(map[string]bool, len(ids))
		processed := 0
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true

			issue, err := getIssue(ctx, q, id)
			if IsNotFound(err) {
				continue
			}
			if err != nil {
				return &BulkError{IssueID: id, Processed: processed, Err: err}
			}
			changed, err := s.applyUpdate(ctx, q, issue, upd, actor)
			if err != nil {
				return &BulkError{IssueID: id, Processed: processed, Err: err}
			}
			processed++
			if changed {
				affected++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug("bulk update", "requested", len(ids), "affected", affected)
	return affected, nil
}
