package store

import (
	"context"

	"github.com/joescharf/plane/internal/models"
)

// IssueFilter narrows ListIssues. Empty fields place no constraint; set fields
// combine with AND.
type IssueFilter struct {
	Status   models.IssueStatus
	Priority models.IssuePriority
	Type     models.IssueType
	Assignee string
	Label    string
	CycleID  string
	ModuleID string
}

// Store defines the persistence interface for plane.
type Store interface {
	// Sequences
	NextSequence(ctx context.Context, projectID string) (int, error)

	// Issues
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	ListIssues(ctx context.Context, projectID string, filter IssueFilter) ([]*models.Issue, error)
	UpdateIssue(ctx context.Context, id string, upd models.IssueUpdate, actor string) (bool, error)
	BulkUpdateIssues(ctx context.Context, ids []string, upd models.IssueUpdate, actor string) (int, error)

	// Activity
	ListActivity(ctx context.Context, issueID string) ([]*models.ActivityRecord, error)

	// Comments
	AddComment(ctx context.Context, issueID, user, body string) (int64, error)
	ListComments(ctx context.Context, issueID string) ([]*models.Comment, error)

	// Cycles
	CreateCycle(ctx context.Context, c *models.Cycle) error
	GetCycle(ctx context.Context, id string) (*models.Cycle, error)
	ListCycles(ctx context.Context, projectID string) ([]*models.Cycle, error)
	UpdateCycleStatus(ctx context.Context, id string, status models.CycleStatus) error
	AddToCycle(ctx context.Context, issueID, cycleID string) (bool, error)

	// Modules
	CreateModule(ctx context.Context, m *models.Module) error
	GetModule(ctx context.Context, id string) (*models.Module, error)
	ListModules(ctx context.Context, projectID string) ([]*models.Module, error)
	AddToModule(ctx context.Context, issueID, moduleID string) (bool, error)

	// Analytics
	CycleAnalytics(ctx context.Context, cycleID string) (*models.CycleAnalytics, error)
	ModuleProgress(ctx context.Context, moduleID string) (*models.ModuleProgress, error)
	ProjectAnalytics(ctx context.Context, projectID string) (*models.ProjectAnalytics, error)

	// Lifecycle
	CheckIntegrity(ctx context.Context) ([]string, error)
	Migrate(ctx context.Context) error
	Close() error
}
