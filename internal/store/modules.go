package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joescharf/plane/internal/models"
)

const moduleColumns = `id, project_id, name, description, status, lead, members, issues_count`

func scanModule(sc rowScanner) (*models.Module, error) {
	m := &models.Module{}
	var status, members string
	if err := sc.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Description, &status, &m.Lead, &members, &m.IssuesCount); err != nil {
		return nil, err
	}
	m.Status = models.ModuleStatus(status)
	if err := json.Unmarshal([]byte(members), &m.Members); err != nil {
		return nil, fmt.Errorf("decode members of %s: %w", m.ID, err)
	}
	return m, nil
}

// --- Modules ---

func (s *SQLiteStore) CreateModule(ctx context.Context, m *models.Module) error {
	if strings.TrimSpace(m.ProjectID) == "" {
		return validationErr("project is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return validationErr("module name is required")
	}
	if m.Status == "" {
		m.Status = models.ModuleStatusPlanned
	}
	if !m.Status.IsValid() {
		return validationErr("invalid module status: %q (use planned, in_progress, completed)", m.Status)
	}
	if m.ID == "" {
		m.ID = newULID()
	}
	m.Members = models.NewStringSet(m.Members...)
	m.IssuesCount = 0

	return s.withTx(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO modules (`+moduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
			m.ID, m.ProjectID, m.Name, m.Description, string(m.Status), m.Lead, encodeSet(m.Members))
		if err != nil {
			return wrapDBError("create module", err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetModule(ctx context.Context, id string) (*models.Module, error) {
	return getModule(ctx, s.db, id)
}

func getModule(ctx context.Context, q querier, id string) (*models.Module, error) {
	m, err := scanModule(q.QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM modules WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("module", id)
	}
	if err != nil {
		return nil, wrapDBError("get module", err)
	}
	return m, nil
}

func (s *SQLiteStore) ListModules(ctx context.Context, projectID string) ([]*models.Module, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE project_id = ? ORDER BY name ASC, id ASC`, projectID)
	if err != nil {
		return nil, wrapDBError("list modules", err)
	}
	defer func() { _ = rows.Close() }()

	var modules []*models.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// AddToModule attaches an issue to a module through the regular update path.
func (s *SQLiteStore) AddToModule(ctx context.Context, issueID, moduleID string) (bool, error) {
	err := s.withTx(ctx, func(q querier) error {
		issue, err := getIssue(ctx, q, issueID)
		if err != nil {
			return err
		}
		if _, err := getModule(ctx, q, moduleID); err != nil {
			return err
		}
		_, err = s.applyUpdate(ctx, q, issue, models.IssueUpdate{ModuleID: &moduleID}, s.systemActor)
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// refreshModuleCounters recomputes a module's issues_count. An empty id is a no-op.
func refreshModuleCounters(ctx context.Context, q querier, moduleID string) error {
	if moduleID == "" {
		return nil
	}
	_, err := q.ExecContext(ctx,
		`UPDATE modules SET issues_count = (SELECT COUNT(*) FROM issues WHERE module_id = ?) WHERE id = ?`,
		moduleID, moduleID)
	if err != nil {
		return wrapDBError("refresh module counters", err)
	}
	return nil
}
