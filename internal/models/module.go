package models

// ModuleStatus represents the state of a module.
type ModuleStatus string

const (
	ModuleStatusPlanned    ModuleStatus = "planned"
	ModuleStatusInProgress ModuleStatus = "in_progress"
	ModuleStatusCompleted  ModuleStatus = "completed"
)

// IsValid reports whether s is a recognized module status.
func (s ModuleStatus) IsValid() bool {
	switch s {
	case ModuleStatusPlanned, ModuleStatusInProgress, ModuleStatusCompleted:
		return true
	}
	return false
}

// Module groups issues by feature or component, without a time box.
type Module struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	Status      ModuleStatus
	Lead        string
	Members     StringSet
	IssuesCount int
}
