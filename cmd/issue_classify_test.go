package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/plane/internal/models"
)

func TestClassifyIssueType(t *testing.T) {
	tests := []struct {
		title    string
		expected models.IssueType
	}{
		// Bug keywords
		{"Fix login bug", models.IssueTypeBug},
		{"fix broken authentication", models.IssueTypeBug},
		{"Crash on startup", models.IssueTypeBug},
		{"Error handling in API", models.IssueTypeBug},
		{"Login fails intermittently", models.IssueTypeBug},
		{"Issue with dashboard loading", models.IssueTypeBug},
		{"Upload not working", models.IssueTypeBug},

		// Improvement keywords
		{"Refactor database layer", models.IssueTypeImprovement},
		{"Cleanup old migrations", models.IssueTypeImprovement},
		{"Update dependencies to latest", models.IssueTypeImprovement},
		{"Upgrade Go to 1.25", models.IssueTypeImprovement},
		{"Speed up issue listing", models.IssueTypeImprovement},

		// Story and task
		{"As a PM I want cycle burndown", models.IssueTypeStory},
		{"Document the bulk update flags", models.IssueTypeTask},
		{"Lint configuration updates", models.IssueTypeTask},

		// Feature (default)
		{"Add dark mode", models.IssueTypeFeature},
		{"Support CSV export", models.IssueTypeFeature},

		// Case insensitivity
		{"FIX the broken thing", models.IssueTypeBug},
		{"REFACTOR the module", models.IssueTypeImprovement},

		// "fix" at end of string
		{"Minor cosmetic button fix", models.IssueTypeBug},
		// No false positive on "fixtures"
		{"Clean up test fixtures", models.IssueTypeImprovement},

		// Bug takes precedence over improvement
		{"Fix the migration script", models.IssueTypeBug},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyIssueType(tt.title))
		})
	}
}

func TestClassifyIssuePriority(t *testing.T) {
	tests := []struct {
		title    string
		expected models.IssuePriority
	}{
		// Urgent
		{"Urgent fix needed for auth", models.IssuePriorityUrgent},
		{"Blocker for release", models.IssuePriorityUrgent},
		{"Data loss when saving forms", models.IssuePriorityUrgent},
		{"P0: system outage", models.IssuePriorityUrgent},

		// High
		{"Critical: database corruption", models.IssuePriorityHigh},
		{"App crash on login", models.IssuePriorityHigh},
		{"Security vulnerability in API", models.IssuePriorityHigh},
		{"P1: degraded performance", models.IssuePriorityHigh},

		// Low
		{"Minor UI alignment issue", models.IssuePriorityLow},
		{"Nice to have: dark mode toggle animation", models.IssuePriorityLow},
		{"Trivial typo in tooltip", models.IssuePriorityLow},
		{"Clean up old log files", models.IssuePriorityLow},

		// Medium (default)
		{"Add user profiles", models.IssuePriorityMedium},
		{"Refactor auth module", models.IssuePriorityMedium},

		// Case insensitivity and precedence
		{"CRITICAL outage", models.IssuePriorityHigh},
		{"Critical cleanup needed", models.IssuePriorityHigh},
		{"Urgent but minor", models.IssuePriorityUrgent},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyIssuePriority(tt.title))
		})
	}
}
