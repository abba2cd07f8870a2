package models

import "time"

// CycleStatus represents the state of a cycle.
type CycleStatus string

const (
	CycleStatusPlanned   CycleStatus = "planned"
	CycleStatusActive    CycleStatus = "active"
	CycleStatusPaused    CycleStatus = "paused"
	CycleStatusCompleted CycleStatus = "completed"
)

// IsValid reports whether s is a recognized cycle status.
func (s CycleStatus) IsValid() bool {
	switch s {
	case CycleStatusPlanned, CycleStatusActive, CycleStatusPaused, CycleStatusCompleted:
		return true
	}
	return false
}

// Cycle is a time-boxed grouping of issues. IssuesCount, CompletedCount and
// Progress are derived from member issues and written by the store only.
type Cycle struct {
	ID             string
	ProjectID      string
	Name           string
	Status         CycleStatus
	StartDate      time.Time
	EndDate        time.Time
	IssuesCount    int
	CompletedCount int
	Progress       int
}
