package store

import (
	"context"
	"fmt"

	"github.com/joescharf/plane/internal/models"
)

// integrityCheck is one read-only query whose every result row is a problem.
// Each query selects a label and a detail column.
type integrityCheck struct {
	name  string
	query string
}

var integrityChecks = []integrityCheck{
	{
		name: "comment_count",
		query: `SELECT i.id, printf('comment_count %d, %d comments', i.comment_count, COUNT(c.id))
			FROM issues i LEFT JOIN comments c ON c.issue_id = i.id
			GROUP BY i.id HAVING i.comment_count != COUNT(c.id)`,
	},
	{
		name: "cycle issues_count",
		query: `SELECT c.id, printf('issues_count %d, %d member issues', c.issues_count, COUNT(i.id))
			FROM cycles c LEFT JOIN issues i ON i.cycle_id = c.id
			GROUP BY c.id HAVING c.issues_count != COUNT(i.id)`,
	},
	{
		name: "module issues_count",
		query: `SELECT m.id, printf('issues_count %d, %d member issues', m.issues_count, COUNT(i.id))
			FROM modules m LEFT JOIN issues i ON i.module_id = m.id
			GROUP BY m.id HAVING m.issues_count != COUNT(i.id)`,
	},
	{
		name: "duplicate sequence",
		query: `SELECT project_id, printf('sequence %d used by %d issues', sequence_id, COUNT(*))
			FROM issues GROUP BY project_id, sequence_id HAVING COUNT(*) > 1`,
	},
	{
		name: "sequence counter",
		query: `SELECT s.project_id, printf('counter at %d, highest issue %d', s.last_value, MAX(i.sequence_id))
			FROM project_sequences s JOIN issues i ON i.project_id = s.project_id
			GROUP BY s.project_id HAVING s.last_value < MAX(i.sequence_id)`,
	},
	{
		name: "cross-project cycle",
		query: `SELECT i.id, printf('in cycle %s of project %s', c.id, c.project_id)
			FROM issues i JOIN cycles c ON c.id = i.cycle_id
			WHERE c.project_id != i.project_id`,
	},
	{
		name: "cross-project module",
		query: `SELECT i.id, printf('in module %s of project %s', m.id, m.project_id)
			FROM issues i JOIN modules m ON m.id = i.module_id
			WHERE m.project_id != i.project_id`,
	},
}

// CheckIntegrity scans the database for broken invariants and describes each
// one found. It never modifies anything; an empty result means the data is
// consistent.
func (s *SQLiteStore) CheckIntegrity(ctx context.Context) ([]string, error) {
	problems := []string{}
	for _, check := range integrityChecks {
		found, err := runIntegrityCheck(ctx, s.db, check)
		if err != nil {
			return nil, err
		}
		problems = append(problems, found...)
	}

	// completed_count depends on the configured done statuses, so it is
	// compared against a live count rather than in SQL.
	stale, err := s.staleCycleProgress(ctx)
	if err != nil {
		return nil, err
	}
	problems = append(problems, stale...)

	if len(problems) > 0 {
		s.log.Warn("integrity check found problems", "count", len(problems))
	}
	return problems, nil
}

func runIntegrityCheck(ctx context.Context, q querier, check integrityCheck) ([]string, error) {
	rows, err := q.QueryContext(ctx, check.query)
	if err != nil {
		return nil, wrapDBError("integrity check "+check.name, err)
	}
	defer func() { _ = rows.Close() }()

	var found []string
	for rows.Next() {
		var subject, detail string
		if err := rows.Scan(&subject, &detail); err != nil {
			return nil, fmt.Errorf("scan %s: %w", check.name, err)
		}
		found = append(found, fmt.Sprintf("%s: %s: %s", check.name, subject, detail))
	}
	return found, rows.Err()
}

func (s *SQLiteStore) staleCycleProgress(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, completed_count, progress FROM cycles ORDER BY id`)
	if err != nil {
		return nil, wrapDBError("integrity check cycle progress", err)
	}
	type stored struct {
		id                  string
		completed, progress int
	}
	defer func() { _ = rows.Close() }()

	var cycles []stored
	for rows.Next() {
		var c stored
		if err := rows.Scan(&c.id, &c.completed, &c.progress); err != nil {
			return nil, fmt.Errorf("scan cycle progress: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("integrity check cycle progress", err)
	}

	var found []string
	for _, c := range cycles {
		total, completed, _, err := memberCounts(ctx, s.db, s.doneStatuses, "cycle_id", c.id)
		if err != nil {
			return nil, err
		}
		if completed != c.completed || models.Percent(completed, total) != c.progress {
			found = append(found, fmt.Sprintf("cycle progress: %s: completed_count %d progress %d, live %d of %d",
				c.id, c.completed, c.progress, completed, total))
		}
	}
	return found, nil
}
