package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/plane/internal/output"
	"github.com/joescharf/plane/internal/store"
	"github.com/joescharf/plane/internal/telemetry"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *slog.Logger
	dataStore store.Store

	verbose bool
	dryRun  bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "plane",
	Short: "Plane - local issue tracking with cycles, modules and analytics",
	Long: `plane tracks issues for your projects in a local SQLite database.
Issues get per-project keys (WEB-12), can be grouped into time-boxed
cycles and feature modules, and every change is recorded in an
activity log.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeDeps()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/plane/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PLANE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers the default for every config key.
func setDefaults() {
	dir, _ := configDirFunc()

	user := os.Getenv("USER")
	if user == "" {
		user = "anonymous"
	}

	viper.SetDefault("db_path", filepath.Join(dir, "plane.db"))
	viper.SetDefault("workspace", "default")
	viper.SetDefault("user", user)
	viper.SetDefault("analytics.done_statuses", []string{"done"})
	viper.SetDefault("store.busy_timeout_ms", 5000)
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.stdout", false)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	logger = newLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	cfg := telemetry.Config{
		Enabled: viper.GetBool("telemetry.enabled"),
		Stdout:  viper.GetBool("telemetry.stdout"),
	}
	if err := telemetry.Init(context.Background(), "plane", buildVersion, cfg); err != nil {
		logger.Warn("telemetry init failed", "error", err)
	}

	// The store is opened lazily, only when commands actually need it.
	// This allows config/version commands to run without a db.
}

// newLogger returns the diagnostics logger: debug level when verbose, warnings only otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func closeDeps() {
	if dataStore != nil {
		if err := dataStore.Close(); err != nil && logger != nil {
			logger.Warn("close database", "error", err)
		}
		dataStore = nil
	}
	if telemetry.Enabled() {
		telemetry.Shutdown(context.Background())
	}
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	s, err := openStore(context.Background(), viper.GetString("db_path"))
	if err != nil {
		return nil, err
	}
	dataStore = s
	return dataStore, nil
}

// openStore opens and migrates the database at dbPath with options taken from config.
func openStore(ctx context.Context, dbPath string) (store.Store, error) {
	s, err := store.NewSQLiteStore(dbPath,
		store.WithLogger(logger),
		store.WithBusyTimeout(busyTimeout()),
		store.WithWorkspace(viper.GetString("workspace")),
		store.WithSystemActor(currentUser()),
		store.WithDoneStatuses(viper.GetStringSlice("analytics.done_statuses")...),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return telemetry.WrapStore(s), nil
}

func busyTimeout() time.Duration {
	ms := viper.GetInt("store.busy_timeout_ms")
	if ms <= 0 {
		ms = 5000
	}
	return time.Duration(ms) * time.Millisecond
}

// currentUser is the name recorded on activity and comments.
func currentUser() string {
	if u := viper.GetString("user"); u != "" {
		return u
	}
	return "anonymous"
}

// withRetry runs a write, retrying while the database stays locked by another process.
func withRetry(ctx context.Context, fn func() error) error {
	return store.Retry(ctx, 2*busyTimeout(), fn)
}
