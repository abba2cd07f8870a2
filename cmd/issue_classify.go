package cmd

import (
	"strings"

	"github.com/joescharf/plane/internal/models"
)

// classifyIssueType infers the issue type from the title using keyword heuristics.
// Bug keywords are checked before improvement keywords (e.g., "fix the migration" = bug).
// Defaults to feature if no keywords match.
func classifyIssueType(title string) models.IssueType {
	lower := strings.ToLower(title)

	// Multi-word phrases checked first, then single words with common variants.
	bugPhrases := []string{
		"issue with", "not working",
	}
	for _, kw := range bugPhrases {
		if strings.Contains(lower, kw) {
			return models.IssueTypeBug
		}
	}

	bugWords := []string{
		"fix ", "fix:", "fixed", "fixes", "fixing",
		"bug", "broken", "crash", "error",
		"regression", "fail", "fault", "defect",
	}
	for _, kw := range bugWords {
		if strings.Contains(lower, kw) {
			return models.IssueTypeBug
		}
	}
	// "fix" at end of string
	if strings.HasSuffix(lower, "fix") {
		return models.IssueTypeBug
	}

	improvementKeywords := []string{
		"refactor", "cleanup", "clean up", "update dep", "migrate",
		"upgrade", "rename", "reorganize", "improve", "speed up",
	}
	for _, kw := range improvementKeywords {
		if strings.Contains(lower, kw) {
			return models.IssueTypeImprovement
		}
	}

	if strings.HasPrefix(lower, "as a ") {
		return models.IssueTypeStory
	}

	taskKeywords := []string{"chore", "lint", "document", "write ", "investigate"}
	for _, kw := range taskKeywords {
		if strings.Contains(lower, kw) {
			return models.IssueTypeTask
		}
	}

	return models.IssueTypeFeature
}

// classifyIssuePriority infers the issue priority from the title using keyword heuristics.
// Urgent keywords win over high, high over low. Defaults to medium.
func classifyIssuePriority(title string) models.IssuePriority {
	lower := strings.ToLower(title)

	urgentKeywords := []string{
		"urgent", "blocker", "data loss", "production down", "p0",
	}
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			return models.IssuePriorityUrgent
		}
	}

	highKeywords := []string{
		"critical", "crash", "security", "p1",
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			return models.IssuePriorityHigh
		}
	}

	lowKeywords := []string{
		"minor", "nice to have", "cosmetic", "trivial",
		"low priority", "cleanup", "clean up",
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			return models.IssuePriorityLow
		}
	}

	return models.IssuePriorityMedium
}
