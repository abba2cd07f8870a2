package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/store"
)

func TestParseMarkdownIssues(t *testing.T) {
	t.Run("numbered list with project headings", func(t *testing.T) {
		md := `# Quick Issues

## Project web

1. Dashboard: click on project name should open the board
2. Import issues from a markdown file

## Project api

1. Add deployment pipeline
2. Fix login bug
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 4)

		assert.Equal(t, "web", issues[0].Project)
		assert.Equal(t, "Dashboard: click on project name should open the board", issues[0].Title)
		assert.Equal(t, models.IssueTypeFeature, issues[0].Type)
		assert.Equal(t, models.IssuePriorityMedium, issues[0].Priority)
		assert.Equal(t, "web", issues[1].Project)

		assert.Equal(t, "api", issues[2].Project)
		assert.Equal(t, "Add deployment pipeline", issues[2].Title)
		assert.Equal(t, "api", issues[3].Project)
		assert.Equal(t, models.IssueTypeBug, issues[3].Type)
	})

	t.Run("classification through parser", func(t *testing.T) {
		md := `## Project test

1. Fix critical crash on startup
2. Refactor database layer
3. Add dark mode support
4. Minor cosmetic button fix
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 4)

		assert.Equal(t, models.IssueTypeBug, issues[0].Type)
		assert.Equal(t, models.IssuePriorityHigh, issues[0].Priority)

		assert.Equal(t, models.IssueTypeImprovement, issues[1].Type)
		assert.Equal(t, models.IssuePriorityMedium, issues[1].Priority)

		assert.Equal(t, models.IssueTypeFeature, issues[2].Type)

		assert.Equal(t, models.IssueTypeBug, issues[3].Type)
		assert.Equal(t, models.IssuePriorityLow, issues[3].Priority)
	})

	t.Run("bulleted list", func(t *testing.T) {
		md := `## Project test

- Item one
- Item two
* Item three
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 3)
		assert.Equal(t, "Item one", issues[0].Title)
		assert.Equal(t, "Item three", issues[2].Title)
		assert.Equal(t, "- Item one", issues[0].Description)
	})

	t.Run("no project heading", func(t *testing.T) {
		issues := parseMarkdownIssues("# Issues\n\n1. First issue\n2. Second issue\n")
		require.Len(t, issues, 2)
		assert.Equal(t, "", issues[0].Project)
		assert.Equal(t, "First issue", issues[0].Title)
	})

	t.Run("sub-issues include parent line in description", func(t *testing.T) {
		md := `## Project test

1. Authentication system
1.1 Add login form
1.2. Add password reset

2. Database improvements
2.1 Add connection pooling
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 5)

		assert.Equal(t, "1. Authentication system", issues[0].Description)
		assert.Equal(t, "Add login form", issues[1].Title)
		assert.Equal(t, "1. Authentication system\n1.1 Add login form", issues[1].Description)
		assert.Equal(t, "Add password reset", issues[2].Title)
		assert.Equal(t, "1. Authentication system\n1.2. Add password reset", issues[2].Description)
		assert.Equal(t, "2. Database improvements\n2.1 Add connection pooling", issues[4].Description)
		assert.Equal(t, "test", issues[4].Project)
	})

	t.Run("orphan sub-issue", func(t *testing.T) {
		issues := parseMarkdownIssues("## Project test\n\n1.1 Orphan sub-issue\n")
		require.Len(t, issues, 1)
		assert.Equal(t, "Orphan sub-issue", issues[0].Title)
		assert.Equal(t, "1.1 Orphan sub-issue", issues[0].Description)
	})

	t.Run("heading resets parent", func(t *testing.T) {
		issues := parseMarkdownIssues("## Project a\n\n1. Parent\n\n## Project b\n\n1.1 Child\n")
		require.Len(t, issues, 2)
		assert.Equal(t, "b", issues[1].Project)
		assert.Equal(t, "1.1 Child", issues[1].Description)
	})

	t.Run("empty and prose only", func(t *testing.T) {
		assert.Empty(t, parseMarkdownIssues(""))
		assert.Empty(t, parseMarkdownIssues("# Title\n\nSome prose without list items.\n"))
	})
}

func TestParseSubIssueNumber(t *testing.T) {
	tests := []struct {
		line  string
		title string
		ok    bool
	}{
		{"1.1 Add login form", "Add login form", true},
		{"12.3. Trailing dot", "Trailing dot", true},
		{"1. Regular item", "", false},
		{"1.1", "", false},
		{"1.1   ", "", false},
		{"v1.1 release", "", false},
		{"- bullet", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			title, ok := parseSubIssueNumber(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.title, title)
		})
	}
}

func writeImportFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "issues.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIssueImport_CreatesAndDedups(t *testing.T) {
	testEnv(t)
	seedIssues(t, "Fix login bug")
	out, errOut := captureOutput(t)

	path := writeImportFile(t, `## Project web

1. Fix login bug
2. Add dark mode
3. add dark mode

## Project api

- Urgent: rotate credentials
`)
	require.NoError(t, issueImportRun(path))
	assert.Contains(t, out.String(), "Created 2 issues across 2 projects")
	assert.Contains(t, errOut.String(), "Skipped 2 issues")

	web, err := dataStore.ListIssues(context.Background(), "web", store.IssueFilter{})
	require.NoError(t, err)
	require.Len(t, web, 2)
	assert.Equal(t, "Add dark mode", web[1].Title)
	assert.Equal(t, "WEB-2", web[1].Key())
	assert.Equal(t, models.IssueTypeFeature, web[1].Type)
	assert.Equal(t, "tester", web[1].CreatedBy)

	api, err := dataStore.ListIssues(context.Background(), "api", store.IssueFilter{})
	require.NoError(t, err)
	require.Len(t, api, 1)
	assert.Equal(t, models.IssuePriorityUrgent, api[0].Priority)
	assert.Equal(t, models.IssueStatusBacklog, api[0].Status)

	// A second import creates nothing new.
	out.Reset()
	require.NoError(t, issueImportRun(path))
	assert.Contains(t, out.String(), "Created 0 issues across 0 projects")
}

func TestIssueImport_ProjectFlagOverridesHeadings(t *testing.T) {
	testEnv(t)
	out, _ := captureOutput(t)

	issueProject = "ops"
	path := writeImportFile(t, "## Project web\n\n1. One\n\n# Loose\n\n- Two\n")
	require.NoError(t, issueImportRun(path))
	assert.Contains(t, out.String(), "Created 2 issues across 1 projects")

	issues, err := dataStore.ListIssues(context.Background(), "ops", store.IssueFilter{})
	require.NoError(t, err)
	assert.Len(t, issues, 2)
}

func TestIssueImport_SkipsIssuesWithoutProject(t *testing.T) {
	testEnv(t)
	out, errOut := captureOutput(t)

	path := writeImportFile(t, "1. Nowhere to go\n")
	require.NoError(t, issueImportRun(path))
	assert.Contains(t, out.String(), "Created 0 issues")
	assert.Contains(t, errOut.String(), "no project")
}

func TestIssueImport_DryRun(t *testing.T) {
	testEnv(t)
	out, errOut := captureOutput(t)
	ui.DryRun = true
	dryRun = true

	path := writeImportFile(t, "## Project web\n\n1. Preview only\n")
	require.NoError(t, issueImportRun(path))
	assert.Contains(t, out.String(), "Preview only")
	assert.Contains(t, errOut.String(), "Would import 1 issues")

	issues, err := mustStore(t).ListIssues(context.Background(), "web", store.IssueFilter{})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestIssueImport_FileErrors(t *testing.T) {
	testEnv(t)
	out, _ := captureOutput(t)

	err := issueImportRun(filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")

	err = issueImportRun(writeImportFile(t, "  \n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file is empty")

	require.NoError(t, issueImportRun(writeImportFile(t, "just prose\n")))
	assert.Contains(t, out.String(), "No issues found in file.")
}

func mustStore(t *testing.T) store.Store {
	t.Helper()
	s, err := getStore()
	require.NoError(t, err)
	return s
}
