package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/plane/internal/models"
)

// CycleAnalytics computes progress for a cycle live from its member issues.
func (s *SQLiteStore) CycleAnalytics(ctx context.Context, cycleID string) (*models.CycleAnalytics, error) {
	if _, err := getCycle(ctx, s.db, cycleID); err != nil {
		return nil, err
	}
	total, completed, remainingPoints, err := memberCounts(ctx, s.db, s.doneStatuses, "cycle_id", cycleID)
	if err != nil {
		return nil, err
	}
	return &models.CycleAnalytics{
		CycleID:         cycleID,
		TotalIssues:     total,
		Completed:       completed,
		Remaining:       total - completed,
		ProgressPct:     models.Percent(completed, total),
		RemainingPoints: remainingPoints,
	}, nil
}

// ModuleProgress breaks a module's issues down by status.
func (s *SQLiteStore) ModuleProgress(ctx context.Context, moduleID string) (*models.ModuleProgress, error) {
	if _, err := getModule(ctx, s.db, moduleID); err != nil {
		return nil, err
	}
	byStatus, err := s.countBy(ctx, "status", "module_id", moduleID)
	if err != nil {
		return nil, err
	}

	total, completed := 0, 0
	for status, n := range byStatus {
		total += n
		if s.doneStatuses[status] {
			completed += n
		}
	}
	return &models.ModuleProgress{
		ModuleID:      moduleID,
		Total:         total,
		ByStatus:      byStatus,
		CompletionPct: models.Percent(completed, total),
	}, nil
}

// ProjectAnalytics reports velocity over completed cycles and the priority
// and status distributions of every issue in the project.
func (s *SQLiteStore) ProjectAnalytics(ctx context.Context, projectID string) (*models.ProjectAnalytics, error) {
	statuses := doneList(s.doneStatuses)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses)+2)
	for _, st := range statuses {
		args = append(args, st)
	}
	args = append(args, projectID, string(models.CycleStatusCompleted))

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT c.id, c.name, COUNT(i.id)
		FROM cycles c
		LEFT JOIN issues i ON i.cycle_id = c.id AND i.status IN (%s)
		WHERE c.project_id = ? AND c.status = ?
		GROUP BY c.id, c.name, c.end_date
		ORDER BY c.end_date ASC, c.id ASC`, placeholders), args...)
	if err != nil {
		return nil, wrapDBError("query velocity", err)
	}
	defer func() { _ = rows.Close() }()

	pa := &models.ProjectAnalytics{ProjectID: projectID, CycleVelocity: []models.CycleVelocity{}}
	sum := 0
	for rows.Next() {
		var cv models.CycleVelocity
		if err := rows.Scan(&cv.CycleID, &cv.Name, &cv.Completed); err != nil {
			return nil, fmt.Errorf("scan velocity: %w", err)
		}
		sum += cv.Completed
		pa.CycleVelocity = append(pa.CycleVelocity, cv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("query velocity", err)
	}
	if n := len(pa.CycleVelocity); n > 0 {
		pa.Velocity = float64(sum) / float64(n)
	}

	if pa.PriorityDistribution, err = s.countBy(ctx, "priority", "project_id", projectID); err != nil {
		return nil, err
	}
	if pa.StatusDistribution, err = s.countBy(ctx, "status", "project_id", projectID); err != nil {
		return nil, err
	}
	return pa, nil
}

// countBy groups issues matching column = id by the group column. Both column
// names are fixed by the callers.
func (s *SQLiteStore) countBy(ctx context.Context, group, column, id string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM issues WHERE %[2]s = ? GROUP BY %[1]s`, group, column), id)
	if err != nil {
		return nil, wrapDBError("count issues by "+group, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan %s count: %w", group, err)
		}
		out[key] = n
	}
	return out, rows.Err()
}
