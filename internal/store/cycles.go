package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/joescharf/plane/internal/models"
)

const cycleColumns = `id, project_id, name, status, start_date, end_date, issues_count, completed_count, progress`

func scanCycle(sc rowScanner) (*models.Cycle, error) {
	c := &models.Cycle{}
	var status, start, end string
	if err := sc.Scan(&c.ID, &c.ProjectID, &c.Name, &status, &start, &end,
		&c.IssuesCount, &c.CompletedCount, &c.Progress); err != nil {
		return nil, err
	}
	c.Status = models.CycleStatus(status)
	var err error
	if c.StartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if c.EndDate, err = parseTime(end); err != nil {
		return nil, err
	}
	return c, nil
}

// --- Cycles ---

func (s *SQLiteStore) CreateCycle(ctx context.Context, c *models.Cycle) error {
	if strings.TrimSpace(c.ProjectID) == "" {
		return validationErr("project is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return validationErr("cycle name is required")
	}
	if !c.EndDate.After(c.StartDate) {
		return validationErr("cycle end %s must be after start %s", formatTime(c.EndDate), formatTime(c.StartDate))
	}
	if c.Status == "" {
		c.Status = models.CycleStatusPlanned
	}
	if !c.Status.IsValid() {
		return validationErr("invalid cycle status: %q", c.Status)
	}
	if c.ID == "" {
		c.ID = newULID()
	}
	c.IssuesCount, c.CompletedCount, c.Progress = 0, 0, 0

	return s.withTx(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO cycles (`+cycleColumns+`) VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0)`,
			c.ID, c.ProjectID, c.Name, string(c.Status), formatTime(c.StartDate), formatTime(c.EndDate))
		if err != nil {
			return wrapDBError("create cycle", err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetCycle(ctx context.Context, id string) (*models.Cycle, error) {
	return getCycle(ctx, s.db, id)
}

func getCycle(ctx context.Context, q querier, id string) (*models.Cycle, error) {
	c, err := scanCycle(q.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("cycle", id)
	}
	if err != nil {
		return nil, wrapDBError("get cycle", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListCycles(ctx context.Context, projectID string) ([]*models.Cycle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cycleColumns+` FROM cycles WHERE project_id = ? ORDER BY start_date ASC, id ASC`, projectID)
	if err != nil {
		return nil, wrapDBError("list cycles", err)
	}
	defer func() { _ = rows.Close() }()

	var cycles []*models.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func (s *SQLiteStore) UpdateCycleStatus(ctx context.Context, id string, status models.CycleStatus) error {
	if !status.IsValid() {
		return validationErr("invalid cycle status: %q (use planned, active, paused, completed)", status)
	}
	return s.withTx(ctx, func(q querier) error {
		result, err := q.ExecContext(ctx, `UPDATE cycles SET status = ? WHERE id = ?`, string(status), id)
		if err != nil {
			return wrapDBError("update cycle status", err)
		}
		n, _ := result.RowsAffected()
		if n == 0 {
			return notFound("cycle", id)
		}
		return nil
	})
}

// AddToCycle moves an issue into a cycle through the regular update path, so
// the change is logged and both cycles' counters are recomputed.
func (s *SQLiteStore) AddToCycle(ctx context.Context, issueID, cycleID string) (bool, error) {
	err := s.withTx(ctx, func(q querier) error {
		issue, err := getIssue(ctx, q, issueID)
		if err != nil {
			return err
		}
		if _, err := getCycle(ctx, q, cycleID); err != nil {
			return err
		}
		_, err = s.applyUpdate(ctx, q, issue, models.IssueUpdate{CycleID: &cycleID}, s.systemActor)
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// refreshCycleCounters recomputes a cycle's derived counters from its member
// issues. An empty id is a no-op.
func refreshCycleCounters(ctx context.Context, q querier, done map[string]bool, cycleID string) error {
	if cycleID == "" {
		return nil
	}
	total, completed, _, err := memberCounts(ctx, q, done, "cycle_id", cycleID)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`UPDATE cycles SET issues_count = ?, completed_count = ?, progress = ? WHERE id = ?`,
		total, completed, models.Percent(completed, total), cycleID)
	if err != nil {
		return wrapDBError("refresh cycle counters", err)
	}
	return nil
}

// memberCounts returns the number of issues whose column equals id, how many
// of them are done, and the estimate points left on the rest.
func memberCounts(ctx context.Context, q querier, done map[string]bool, column, id string) (total, completed, remainingPoints int, err error) {
	statuses := doneList(done)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")

	args := make([]any, 0, 2*len(statuses)+1)
	for _, st := range statuses {
		args = append(args, st)
	}
	for _, st := range statuses {
		args = append(args, st)
	}
	args = append(args, id)

	// column is "cycle_id" or "module_id", fixed by the callers.
	query := fmt.Sprintf(`SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status IN (%[1]s) THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status NOT IN (%[1]s) THEN COALESCE(estimate_points, 0) ELSE 0 END), 0)
		FROM issues WHERE %[2]s = ?`, placeholders, column)

	if err = q.QueryRowContext(ctx, query, args...).Scan(&total, &completed, &remainingPoints); err != nil {
		return 0, 0, 0, wrapDBError("count members", err)
	}
	return total, completed, remainingPoints, nil
}

func doneList(done map[string]bool) []string {
	out := make([]string, 0, len(done))
	for st := range done {
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}
