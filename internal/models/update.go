package models

import (
	"fmt"
	"strings"
	"time"
)

// IssueUpdate is a partial change to an issue. A nil field is left alone.
//
// CycleID and ModuleID pointing at "" detach the issue. ClearDueDate and
// ClearEstimate null their column and take precedence over DueDate and
// EstimatePoints.
type IssueUpdate struct {
	Title          *string
	Description    *string
	Status         *IssueStatus
	Priority       *IssuePriority
	Assignees      *StringSet
	Labels         *StringSet
	CycleID        *string
	ModuleID       *string
	DueDate        *time.Time
	ClearDueDate   bool
	EstimatePoints *int
	ClearEstimate  bool
}

// IsEmpty reports whether the update names no field at all.
func (u IssueUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && u.Priority == nil &&
		u.Assignees == nil && u.Labels == nil && u.CycleID == nil && u.ModuleID == nil &&
		u.DueDate == nil && !u.ClearDueDate && u.EstimatePoints == nil && !u.ClearEstimate
}

// Validate checks the values carried by the update.
func (u IssueUpdate) Validate() error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if u.Status != nil && strings.TrimSpace(string(*u.Status)) == "" {
		return fmt.Errorf("status cannot be empty")
	}
	if u.Priority != nil && !u.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %q (use urgent, high, medium, low, none)", *u.Priority)
	}
	if u.EstimatePoints != nil && !u.ClearEstimate && *u.EstimatePoints < 0 {
		return fmt.Errorf("estimate_points cannot be negative")
	}
	return nil
}
