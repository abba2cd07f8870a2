package cmd

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/store"
)

// seedIssues creates issues titled as given in project web.
func seedIssues(t *testing.T, titles ...string) []*models.Issue {
	t.Helper()
	s, err := getStore()
	require.NoError(t, err)

	var issues []*models.Issue
	for _, title := range titles {
		issue := &models.Issue{ProjectID: "web", Title: title, Type: models.IssueTypeTask}
		require.NoError(t, s.CreateIssue(context.Background(), issue))
		issues = append(issues, issue)
	}
	return issues
}

func mustGetIssue(t *testing.T, id string) *models.Issue {
	t.Helper()
	s, err := getStore()
	require.NoError(t, err)
	issue, err := s.GetIssue(context.Background(), id)
	require.NoError(t, err)
	return issue
}

func TestCreate_AssignsKeyAndDefaults(t *testing.T) {
	testEnv(t)
	out, _ := captureOutput(t)

	createPriority = "high"
	createAssignees = []string{"bob", "alice", "bob"}
	createLabels = []string{"ui"}
	createEstimate = 3
	require.NoError(t, createRun("web", "bug", "Login fails"))
	assert.Contains(t, out.String(), "Created WEB-1: Login fails")

	require.NoError(t, createRun("web", "task", "Second"))
	assert.Contains(t, out.String(), "Created WEB-2: Second")

	s, err := getStore()
	require.NoError(t, err)
	issues, err := s.ListIssues(context.Background(), "web", store.IssueFilter{})
	require.NoError(t, err)
	require.Len(t, issues, 2)

	first := issues[0]
	assert.Equal(t, models.IssueTypeBug, first.Type)
	assert.Equal(t, models.IssuePriorityHigh, first.Priority)
	assert.Equal(t, models.IssueStatusBacklog, first.Status)
	assert.Equal(t, models.StringSet{"alice", "bob"}, first.Assignees)
	assert.Equal(t, "tester", first.CreatedBy)
	require.NotNil(t, first.EstimatePoints)
	assert.Equal(t, 3, *first.EstimatePoints)
}

func TestCreate_InvalidType(t *testing.T) {
	testEnv(t)
	captureOutput(t)

	err := createRun("web", "epic", "Nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestCreate_DryRun(t *testing.T) {
	testEnv(t)
	_, errOut := captureOutput(t)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, createRun("web", "bug", "Not yet"))
	assert.Contains(t, errOut.String(), "Would create bug issue in web: Not yet")

	s, err := getStore()
	require.NoError(t, err)
	issues, err := s.ListIssues(context.Background(), "web", store.IssueFilter{})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestIssues_ListsAndFilters(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "Alpha", "Beta")

	s, err := getStore()
	require.NoError(t, err)
	status := models.IssueStatusDone
	_, err = s.UpdateIssue(context.Background(), seeded[1].ID, models.IssueUpdate{Status: &status}, "tester")
	require.NoError(t, err)

	out, _ := captureOutput(t)
	issueProject = "web"
	require.NoError(t, issuesRun())
	assert.Contains(t, out.String(), "WEB-1")
	assert.Contains(t, out.String(), "WEB-2")

	out.Reset()
	issueStatus = "done"
	require.NoError(t, issuesRun())
	assert.NotContains(t, out.String(), "Alpha")
	assert.Contains(t, out.String(), "Beta")

	out.Reset()
	issueProject = "api"
	issueStatus = ""
	require.NoError(t, issuesRun())
	assert.Contains(t, out.String(), "No issues found.")
}

func TestIssueShow(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "Show me")
	out, _ := captureOutput(t)

	require.NoError(t, issueShowRun(seeded[0].ID))
	assert.Contains(t, out.String(), "WEB-1")
	assert.Contains(t, out.String(), "Show me")
	assert.Contains(t, out.String(), "Comments:   0")
	assert.Contains(t, out.String(), seeded[0].ID)
}

func TestFindIssue(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "One", "Two")
	s, err := getStore()
	require.NoError(t, err)
	ctx := context.Background()

	got, err := findIssue(ctx, s, seeded[1].ID, "")
	require.NoError(t, err)
	assert.Equal(t, seeded[1].ID, got.ID)

	got, err = findIssue(ctx, s, "web-2", "web")
	require.NoError(t, err)
	assert.Equal(t, seeded[1].ID, got.ID)

	got, err = findIssue(ctx, s, "1", "web")
	require.NoError(t, err)
	assert.Equal(t, seeded[0].ID, got.ID)

	_, err = findIssue(ctx, s, "WEB-2", "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = findIssue(ctx, s, "WEB-9", "web")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIssueUpdate_ByKeyRecordsActivity(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "Fix header")
	out, _ := captureOutput(t)
	issueProject = "web"

	require.NoError(t, issueUpdateRun("WEB-1", map[string]any{"status": "in_progress", "labels": []string{"ui"}}))
	assert.Contains(t, out.String(), "Updated WEB-1")

	got := mustGetIssue(t, seeded[0].ID)
	assert.Equal(t, models.IssueStatusInProgress, got.Status)
	assert.Equal(t, models.StringSet{"ui"}, got.Labels)

	out.Reset()
	require.NoError(t, issueActivityRun("WEB-1"))
	assert.Contains(t, out.String(), "created")
	assert.Contains(t, out.String(), "status")
	assert.Contains(t, out.String(), "in_progress")
	assert.Contains(t, out.String(), "tester")
}

func TestIssueUpdate_NoChange(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "Same")
	out, _ := captureOutput(t)

	require.NoError(t, issueUpdateRun(seeded[0].ID, map[string]any{"status": "backlog"}))
	assert.Contains(t, out.String(), "No changes to WEB-1")
}

func TestIssueUpdate_Errors(t *testing.T) {
	testEnv(t)
	seedIssues(t, "Target")
	captureOutput(t)

	err := issueUpdateRun("WEB-1", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no updates specified")

	err = issueUpdateRun("WEB-1", map[string]any{"priority": "asap"})
	assert.ErrorIs(t, err, store.ErrValidation)

	err = issueUpdateRun("missing", map[string]any{"status": "done"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIssueUpdate_DryRun(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "Untouched")
	_, errOut := captureOutput(t)
	dryRun = true
	ui.DryRun = true

	require.NoError(t, issueUpdateRun(seeded[0].ID, map[string]any{"status": "done", "title": "Changed"}))
	assert.Contains(t, errOut.String(), "Would update WEB-1 (status, title)")

	got := mustGetIssue(t, seeded[0].ID)
	assert.Equal(t, "Untouched", got.Title)
}

func TestIssueBulk_SkipsMissing(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "A", "B", "C")
	out, _ := captureOutput(t)
	issueProject = "web"

	require.NoError(t, issueBulkRun([]string{"WEB-1", "WEB-3", "WEB-99"}, map[string]any{"status": "done"}))
	assert.Contains(t, out.String(), "Updated 2 of 3 issues")

	assert.Equal(t, models.IssueStatusDone, mustGetIssue(t, seeded[0].ID).Status)
	assert.Equal(t, models.IssueStatusBacklog, mustGetIssue(t, seeded[1].ID).Status)
	assert.Equal(t, models.IssueStatusDone, mustGetIssue(t, seeded[2].ID).Status)
}

func TestIssueBulk_RollsBack(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "A", "B")
	captureOutput(t)

	err := issueBulkRun([]string{seeded[0].ID, seeded[1].ID}, map[string]any{"status": "done", "cycle_id": "no-such-cycle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rolled back at issue "+seeded[0].ID)

	for _, issue := range seeded {
		got := mustGetIssue(t, issue.ID)
		assert.Equal(t, models.IssueStatusBacklog, got.Status)
		assert.Empty(t, got.CycleID)
	}
}

func TestUpdateFieldsFromFlags(t *testing.T) {
	c := &cobra.Command{Use: "update"}
	addUpdateFlags(c)
	require.NoError(t, c.Flags().Set("status", "done"))
	require.NoError(t, c.Flags().Set("desc", "new text"))
	require.NoError(t, c.Flags().Set("assignee", "amy"))
	require.NoError(t, c.Flags().Set("cycle", ""))
	require.NoError(t, c.Flags().Set("estimate", "5"))
	require.NoError(t, c.Flags().Set("clear-due", "true"))

	fields, err := updateFieldsFromFlags(c)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"status":          "done",
		"description":     "new text",
		"assignees":       []string{"amy"},
		"cycle_id":        "",
		"estimate_points": 5,
		"due_date":        nil,
	}, fields)

	upd, err := store.ParseIssueUpdate(fields)
	require.NoError(t, err)
	assert.True(t, upd.ClearDueDate)
	require.NotNil(t, upd.CycleID)
	assert.Empty(t, *upd.CycleID)
}

func TestUpdateFieldsFromFlags_NoneSet(t *testing.T) {
	c := &cobra.Command{Use: "update"}
	addUpdateFlags(c)

	fields, err := updateFieldsFromFlags(c)
	require.NoError(t, err)
	assert.Empty(t, fields)
}
