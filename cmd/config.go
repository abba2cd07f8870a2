package cmd

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/plane/internal/models"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "plane"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage plane configuration.

Running bare 'plane config' is the same as 'plane config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the effective configuration for mistakes",
	Long: `Check the effective configuration for mistakes.

Reports keys in the config file that plane does not read (usually typos),
an empty done-status list, a non-positive busy timeout and an empty user
or workspace. Done statuses outside the built-in workflow are allowed but
reported as warnings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configCheckRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# plane configuration
# See: plane config show (for effective values and sources)

# SQLite database path (default: ~/.config/plane/plane.db)
db_path: "{{ .DBPath }}"

# Workspace stamped onto new issues (default: "default")
workspace: "{{ .Workspace }}"

# Name recorded on activity and comments (default: $USER)
user: "{{ .User }}"

analytics:
  # Issue statuses that count as completed in cycle, module and project analytics
  done_statuses:
{{- range .DoneStatuses }}
    - "{{ . }}"
{{- end }}

store:
  # How long a writer waits for the database lock, in milliseconds
  busy_timeout_ms: {{ .BusyTimeoutMS }}

telemetry:
  # Record spans and metrics for store operations (default: false)
  enabled: {{ .TelemetryEnabled }}

  # Print spans and metrics to stderr when enabled (default: false)
  stdout: {{ .TelemetryStdout }}
`

type configTemplateData struct {
	DBPath           string
	Workspace        string
	User             string
	DoneStatuses     []string
	BusyTimeoutMS    int
	TelemetryEnabled bool
	TelemetryStdout  bool
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		DBPath:           viper.GetString("db_path"),
		Workspace:        viper.GetString("workspace"),
		User:             viper.GetString("user"),
		DoneStatuses:     viper.GetStringSlice("analytics.done_statuses"),
		BusyTimeoutMS:    viper.GetInt("store.busy_timeout_ms"),
		TelemetryEnabled: viper.GetBool("telemetry.enabled"),
		TelemetryStdout:  viper.GetBool("telemetry.stdout"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "db_path", EnvVar: "PLANE_DB_PATH"},
	{Key: "workspace", EnvVar: "PLANE_WORKSPACE"},
	{Key: "user", EnvVar: "PLANE_USER"},
	{Key: "analytics.done_statuses", EnvVar: "PLANE_ANALYTICS_DONE_STATUSES"},
	{Key: "store.busy_timeout_ms", EnvVar: "PLANE_STORE_BUSY_TIMEOUT_MS"},
	{Key: "telemetry.enabled", EnvVar: "PLANE_TELEMETRY_ENABLED"},
	{Key: "telemetry.stdout", EnvVar: "PLANE_TELEMETRY_STDOUT"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		switch val.(type) {
		case []string, []any:
			val = strings.Join(viper.GetStringSlice(k.Key), ", ")
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-25s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'plane config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}

var knownStatuses = []models.IssueStatus{
	models.IssueStatusBacklog,
	models.IssueStatusTodo,
	models.IssueStatusOpen,
	models.IssueStatusInProgress,
	models.IssueStatusDone,
	models.IssueStatusCancelled,
}

// checkConfig returns hard problems and soft warnings for the effective
// configuration. fileKeys are the dotted keys present in the config file.
func checkConfig(fileKeys map[string]bool) (problems, warnings []string) {
	for _, key := range slices.Sorted(maps.Keys(fileKeys)) {
		if !slices.ContainsFunc(configKeys, func(k configKeyInfo) bool { return k.Key == key }) {
			problems = append(problems, fmt.Sprintf("unknown key %q in config file", key))
		}
	}

	done := viper.GetStringSlice("analytics.done_statuses")
	if len(done) == 0 {
		problems = append(problems, "analytics.done_statuses is empty; no issue would ever count as completed")
	}
	for _, status := range done {
		switch {
		case strings.TrimSpace(status) == "":
			problems = append(problems, "analytics.done_statuses contains an empty status")
		case status != strings.ToLower(status):
			problems = append(problems, fmt.Sprintf("done status %q is not lowercase and will never match", status))
		case !slices.Contains(knownStatuses, models.IssueStatus(status)):
			warnings = append(warnings, fmt.Sprintf("done status %q is not a built-in status", status))
		}
	}

	if viper.GetInt("store.busy_timeout_ms") <= 0 {
		problems = append(problems, fmt.Sprintf("store.busy_timeout_ms must be positive (using %d ms)", busyTimeout().Milliseconds()))
	}
	if strings.TrimSpace(viper.GetString("user")) == "" {
		problems = append(problems, "user is empty; activity and comments would have no author")
	}
	if strings.TrimSpace(viper.GetString("workspace")) == "" {
		problems = append(problems, "workspace is empty")
	}
	if viper.GetBool("telemetry.stdout") && !viper.GetBool("telemetry.enabled") {
		warnings = append(warnings, "telemetry.stdout has no effect while telemetry.enabled is false")
	}
	return problems, warnings
}

func configCheckRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	problems, warnings := checkConfig(readConfigFileValues(cfgPath))
	for _, w := range warnings {
		ui.Warning("%s", w)
	}
	for _, p := range problems {
		ui.Error("%s", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d config problems found", len(problems))
	}
	ui.Success("Config OK")
	return nil
}
