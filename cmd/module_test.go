package cmd

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/plane/internal/models"
)

func TestModuleCreateListAddProgress(t *testing.T) {
	testEnv(t)
	seeded := seedIssues(t, "Login page", "Signup page", "Reset page")
	out, _ := captureOutput(t)

	moduleLead = "amy"
	moduleMembers = []string{"bob", "amy"}
	require.NoError(t, moduleCreateRun("web", "Auth"))

	modules, err := dataStore.ListModules(context.Background(), "web")
	require.NoError(t, err)
	require.Len(t, modules, 1)
	m := modules[0]
	assert.Contains(t, out.String(), "Created module "+m.ID)
	assert.Equal(t, models.StringSet{"amy", "bob"}, m.Members)

	issueProject = "web"
	for _, key := range []string{"WEB-1", "WEB-2", "WEB-3"} {
		require.NoError(t, moduleAddRun(key, m.ID))
	}
	require.NoError(t, issueUpdateRun(seeded[0].ID, map[string]any{"status": "done"}))
	require.NoError(t, issueUpdateRun(seeded[1].ID, map[string]any{"status": "done"}))

	out.Reset()
	require.NoError(t, moduleListRun("web"))
	assert.Contains(t, out.String(), "Auth")
	assert.Contains(t, out.String(), "amy, bob")

	out.Reset()
	moduleJSON = true
	require.NoError(t, moduleProgressRun(m.ID))
	var p models.ModuleProgress
	require.NoError(t, json.Unmarshal(out.Bytes(), &p))
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 67, p.CompletionPct)
	assert.Equal(t, map[string]int{"done": 2, "backlog": 1}, p.ByStatus)

	out.Reset()
	moduleJSON = false
	require.NoError(t, moduleProgressRun(m.ID))
	assert.Contains(t, out.String(), "3 issues, 67% complete")
}

func TestModuleCreate_InvalidStatus(t *testing.T) {
	testEnv(t)
	captureOutput(t)

	moduleStatus = "active"
	err := moduleCreateRun("web", "Auth")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid module status")
}

func TestSortedCountKeys(t *testing.T) {
	counts := map[string]int{"low": 1, "high": 3, "medium": 3, "none": 0}
	assert.Equal(t, []string{"high", "medium", "low", "none"}, sortedCountKeys(counts))
}
