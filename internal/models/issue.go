package models

import (
	"fmt"
	"strings"
	"time"
)

// IssueStatus names a workflow state. Statuses are open-ended; the constants
// below are the ones the CLI and analytics know about.
type IssueStatus string

const (
	IssueStatusBacklog    IssueStatus = "backlog"
	IssueStatusTodo       IssueStatus = "todo"
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusDone       IssueStatus = "done"
	IssueStatusCancelled  IssueStatus = "cancelled"
)

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityUrgent IssuePriority = "urgent"
	IssuePriorityHigh   IssuePriority = "high"
	IssuePriorityMedium IssuePriority = "medium"
	IssuePriorityLow    IssuePriority = "low"
	IssuePriorityNone   IssuePriority = "none"
)

// IsValid reports whether p is a recognized priority.
func (p IssuePriority) IsValid() bool {
	switch p {
	case IssuePriorityUrgent, IssuePriorityHigh, IssuePriorityMedium, IssuePriorityLow, IssuePriorityNone:
		return true
	}
	return false
}

// IssueType represents the kind of work an issue tracks.
type IssueType string

const (
	IssueTypeBug         IssueType = "bug"
	IssueTypeFeature     IssueType = "feature"
	IssueTypeTask        IssueType = "task"
	IssueTypeStory       IssueType = "story"
	IssueTypeImprovement IssueType = "improvement"
)

// IsValid reports whether t is a recognized issue type.
func (t IssueType) IsValid() bool {
	switch t {
	case IssueTypeBug, IssueTypeFeature, IssueTypeTask, IssueTypeStory, IssueTypeImprovement:
		return true
	}
	return false
}

// Issue represents a tracked issue within a project.
type Issue struct {
	ID              string
	WorkspaceID     string
	ProjectID       string
	SequenceID      int
	Title           string
	Description     string
	Type            IssueType
	Status          IssueStatus
	Priority        IssuePriority
	Assignees       StringSet
	Labels          StringSet
	CycleID         string // "" = no cycle
	ModuleID        string // "" = no module
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DueDate         *time.Time
	EstimatePoints  *int
	LinkCount       int
	AttachmentCount int
	CommentCount    int
}

// Key returns the human-facing identifier, e.g. PROJ-12.
func (i *Issue) Key() string {
	return fmt.Sprintf("%s-%d", strings.ToUpper(i.ProjectID), i.SequenceID)
}

// ApplyDefaults fills the fields a caller may leave empty on creation.
func (i *Issue) ApplyDefaults() {
	if i.Type == "" {
		i.Type = IssueTypeTask
	}
	if i.Priority == "" {
		i.Priority = IssuePriorityMedium
	}
	if i.Status == "" {
		i.Status = IssueStatusBacklog
	}
	i.Assignees = NewStringSet(i.Assignees...)
	i.Labels = NewStringSet(i.Labels...)
}

// Validate checks the fields required for a new issue.
func (i *Issue) Validate() error {
	if strings.TrimSpace(i.ProjectID) == "" {
		return fmt.Errorf("project is required")
	}
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !i.Type.IsValid() {
		return fmt.Errorf("invalid issue type: %q (use bug, feature, task, story, improvement)", i.Type)
	}
	if !i.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %q (use urgent, high, medium, low, none)", i.Priority)
	}
	if i.EstimatePoints != nil && *i.EstimatePoints < 0 {
		return fmt.Errorf("estimate_points cannot be negative")
	}
	return nil
}
