package cmd

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/plane/internal/models"
)

// createTestCycle creates a cycle in project web through the command and returns it.
func createTestCycle(t *testing.T, name string) *models.Cycle {
	t.Helper()
	cycleStart, cycleEnd = "2026-03-02", "2026-03-16"
	require.NoError(t, cycleCreateRun("web", name))

	s, err := getStore()
	require.NoError(t, err)
	cycles, err := s.ListCycles(context.Background(), "web")
	require.NoError(t, err)
	for _, c := range cycles {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cycle %s not created", name)
	return nil
}

func TestCycleCreateAndList(t *testing.T) {
	testEnv(t)
	out, _ := captureOutput(t)

	c := createTestCycle(t, "Sprint 1")
	assert.Contains(t, out.String(), "Created cycle "+c.ID)
	assert.Equal(t, models.CycleStatusPlanned, c.Status)
	assert.Equal(t, "2026-03-02", c.StartDate.Format("2006-01-02"))

	out.Reset()
	require.NoError(t, cycleListRun("web"))
	assert.Contains(t, out.String(), "Sprint 1")
	assert.Contains(t, out.String(), "0%")

	out.Reset()
	require.NoError(t, cycleListRun("api"))
	assert.Contains(t, out.String(), "No cycles found.")
}

func TestCycleCreate_Errors(t *testing.T) {
	testEnv(t)
	captureOutput(t)

	cycleStart, cycleEnd = "03/02/2026", "2026-03-16"
	err := cycleCreateRun("web", "Bad date")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --start date")

	cycleStart, cycleEnd = "2026-03-16", "2026-03-02"
	err = cycleCreateRun("web", "Backwards")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be after start")
}

func TestCycleAddAndAnalytics(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "Open work", "Finished work")
	out, _ := captureOutput(t)
	c := createTestCycle(t, "Sprint 1")

	issueProject = "web"
	require.NoError(t, cycleAddRun("WEB-1", c.ID))
	require.NoError(t, cycleAddRun("WEB-2", c.ID))
	assert.Contains(t, out.String(), "Moved WEB-1 into cycle "+c.ID)

	out.Reset()
	require.NoError(t, cycleAddRun("WEB-1", c.ID))
	assert.Contains(t, out.String(), "already in cycle")

	require.NoError(t, issueUpdateRun(seeded[1].ID, map[string]any{"status": "done"}))

	out.Reset()
	cycleJSON = true
	require.NoError(t, cycleAnalyticsRun(c.ID))

	var a models.CycleAnalytics
	require.NoError(t, json.Unmarshal(out.Bytes(), &a))
	assert.Equal(t, models.CycleAnalytics{
		CycleID:     c.ID,
		TotalIssues: 2,
		Completed:   1,
		Remaining:   1,
		ProgressPct: 50,
	}, a)

	out.Reset()
	cycleJSON = false
	require.NoError(t, cycleAnalyticsRun(c.ID))
	assert.Contains(t, out.String(), "[##########----------] 50%")

	activity, err := dataStore.ListActivity(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	last := activity[len(activity)-1]
	assert.Equal(t, "cycle_id", last.Field)
	assert.Equal(t, "tester", last.User)
}

func TestCycleStatus(t *testing.T) {
	testEnv(t)
	out, _ := captureOutput(t)
	c := createTestCycle(t, "Sprint 1")

	require.NoError(t, cycleStatusRun(c.ID, "active"))
	assert.Contains(t, out.String(), "is now active")

	got, err := dataStore.GetCycle(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusActive, got.Status)

	err = cycleStatusRun(c.ID, "finished")
	require.Error(t, err)

	err = cycleStatusRun("missing", "active")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
