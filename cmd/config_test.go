package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/plane/internal/output"
)

// testEnv sets up isolated config dir, viper, database and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Reset viper
	viper.Reset()
	setDefaults()
	viper.Set("user", "tester")

	// Initialize output and logging
	ui = output.New()
	logger = newLogger(io.Discard, false)

	// Fresh database per test
	closeDeps()
	t.Cleanup(closeDeps)

	resetFlags(t)
	return dir
}

// resetFlags restores flag-bound globals to their defaults.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		dryRun, verbose, configForce = false, false, false
		issueProject, issueStatus, issuePriority, issueType = "", "", "", ""
		issueAssignee, issueLabel, issueCycle, issueModule = "", "", "", ""
		createDesc, createPriority = "", "medium"
		createAssignees, createLabels = nil, nil
		createCycle, createModule, createEstimate = "", "", -1
		cycleStart, cycleEnd, cycleStatus, cycleJSON = "", "", "planned", false
		moduleDesc, moduleStatus, moduleLead, moduleMembers, moduleJSON = "", "planned", "", nil, false
		analyticsJSON = false
		reportFormat, exportType, exportProject = "json", "issues", ""
	}
	reset()
	t.Cleanup(reset)
}

// captureOutput redirects the UI to buffers and returns (stdout, stderr).
func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	ui.Out = &out
	ui.ErrOut = &errOut
	return &out, &errOut
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)
	captureOutput(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "plane configuration")
	assert.Contains(t, string(data), "done_statuses")
}

func TestConfigInit_FileRoundTrips(t *testing.T) {
	dir := testEnv(t)
	captureOutput(t)
	viper.Set("analytics.done_statuses", []string{"done", "cancelled"})
	viper.Set("store.busy_timeout_ms", 750)

	require.NoError(t, configInitRun())

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, v.ReadInConfig())

	assert.Equal(t, filepath.Join(dir, "plane.db"), v.GetString("db_path"))
	assert.Equal(t, "default", v.GetString("workspace"))
	assert.Equal(t, "tester", v.GetString("user"))
	assert.Equal(t, []string{"done", "cancelled"}, v.GetStringSlice("analytics.done_statuses"))
	assert.Equal(t, 750, v.GetInt("store.busy_timeout_ms"))
	assert.False(t, v.GetBool("telemetry.enabled"))
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)
	captureOutput(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "plane configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)
	out, _ := captureOutput(t)

	err := configShowRun()
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "(none)")
	assert.Contains(t, out.String(), "store.busy_timeout_ms")
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)
	out, _ := captureOutput(t)

	// Create config first
	require.NoError(t, configInitRun())
	out.Reset()

	err := configShowRun()
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "(file)")
}

func TestConfigShow_EnvSource(t *testing.T) {
	testEnv(t)
	out, _ := captureOutput(t)
	t.Setenv("PLANE_WORKSPACE", "acme")

	require.NoError(t, configShowRun())
	assert.Contains(t, out.String(), "(env: PLANE_WORKSPACE)")
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo") // harmless command

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	// From env
	t.Setenv("PLANE_TEST_KEY", "val")
	assert.Contains(t, detectSource("test_key", "PLANE_TEST_KEY", fileValues), "env")

	// From file
	assert.Contains(t, detectSource("key_a", "PLANE_KEY_A_NONEXISTENT", fileValues), "file")

	// Default
	assert.Contains(t, detectSource("key_b", "PLANE_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"top": "val",
		"nested": map[string]any{
			"a": "1",
			"b": "2",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	captureOutput(t)
	dryRun = true
	ui.DryRun = true

	err := configInitRun()
	require.NoError(t, err)

	// File should NOT have been created
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	quiet := newLogger(&buf, false)
	quiet.Debug("hidden")
	quiet.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	newLogger(&buf, true).Debug("lock retry")
	assert.Contains(t, buf.String(), "lock retry")
}

func TestBusyTimeout(t *testing.T) {
	testEnv(t)
	assert.Equal(t, "5s", busyTimeout().String())

	viper.Set("store.busy_timeout_ms", 250)
	assert.Equal(t, "250ms", busyTimeout().String())

	viper.Set("store.busy_timeout_ms", 0)
	viper.Set("telemetry.stdout", true)
	assert.Equal(t, "5s", busyTimeout().String())
}

func TestConfigCheck_DefaultsAndInitFileAreClean(t *testing.T) {
	testEnv(t)
	out, errOut := captureOutput(t)

	require.NoError(t, configCheckRun())
	assert.Contains(t, out.String(), "Config OK")

	require.NoError(t, configInitRun())
	out.Reset()
	require.NoError(t, configCheckRun())
	assert.Contains(t, out.String(), "Config OK")
	assert.Empty(t, errOut.String())
}

func TestConfigCheck_ReportsProblems(t *testing.T) {
	dir := testEnv(t)
	_, errOut := captureOutput(t)

	cfg := "telemetry:\n  enable: true\n  stdout: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644))
	viper.Set("analytics.done_statuses", []string{"Done", "shipped"})
	viper.Set("store.busy_timeout_ms", 0)
	viper.Set("telemetry.stdout", true)

	err := configCheckRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 config problems found")
	assert.Contains(t, errOut.String(), `unknown key "telemetry.enable"`)
	assert.Contains(t, errOut.String(), `done status "Done" is not lowercase`)
	assert.Contains(t, errOut.String(), `done status "shipped" is not a built-in status`)
	assert.Contains(t, errOut.String(), "busy_timeout_ms must be positive")
	assert.Contains(t, errOut.String(), "telemetry.stdout has no effect")
}

func TestCheckConfig_EmptyValues(t *testing.T) {
	testEnv(t)
	viper.Set("analytics.done_statuses", []string{})
	viper.Set("user", " ")
	viper.Set("workspace", "")

	problems, warnings := checkConfig(map[string]bool{"db_path": true})
	assert.Len(t, problems, 3)
	assert.Empty(t, warnings)
}
