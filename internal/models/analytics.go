package models

// CycleAnalytics summarizes progress within one cycle.
type CycleAnalytics struct {
	CycleID         string `json:"cycle_id"`
	TotalIssues     int    `json:"total_issues"`
	Completed       int    `json:"completed"`
	Remaining       int    `json:"remaining"`
	ProgressPct     int    `json:"progress_pct"`
	RemainingPoints int    `json:"remaining_points"`
}

// ModuleProgress summarizes the status breakdown of a module.
type ModuleProgress struct {
	ModuleID      string         `json:"module_id"`
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	CompletionPct int            `json:"completion_pct"`
}

// CycleVelocity is the completed-issue count of one completed cycle.
type CycleVelocity struct {
	CycleID   string `json:"cycle_id"`
	Name      string `json:"name"`
	Completed int    `json:"completed"`
}

// ProjectAnalytics holds project-wide throughput and distributions.
type ProjectAnalytics struct {
	ProjectID            string          `json:"project_id"`
	Velocity             float64         `json:"velocity"`
	CycleVelocity        []CycleVelocity `json:"cycle_velocity"`
	PriorityDistribution map[string]int  `json:"priority_distribution"`
	StatusDistribution   map[string]int  `json:"status_distribution"`
}

// Percent returns round(100*part/total), or 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*part + total) / (2 * total)
}
