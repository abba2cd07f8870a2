package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/output"
)

var (
	cycleStart  string
	cycleEnd    string
	cycleStatus string
	cycleJSON   bool
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Manage cycles (time-boxed iterations)",
}

var cycleCreateCmd = &cobra.Command{
	Use:   "create <project> <name>",
	Short: "Create a cycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cycleCreateRun(args[0], args[1])
	},
}

var cycleListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List a project's cycles",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cycleListRun(args[0])
	},
}

var cycleAddCmd = &cobra.Command{
	Use:   "add <issue> <cycle>",
	Short: "Move an issue into a cycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cycleAddRun(args[0], args[1])
	},
}

var cycleStatusCmd = &cobra.Command{
	Use:   "status <cycle> <status>",
	Short: "Set a cycle's status (planned, active, paused, completed)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cycleStatusRun(args[0], args[1])
	},
}

var cycleAnalyticsCmd = &cobra.Command{
	Use:   "analytics <cycle>",
	Short: "Show progress of a cycle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cycleAnalyticsRun(args[0])
	},
}

func init() {
	cycleCreateCmd.Flags().StringVar(&cycleStart, "start", "", "Start date YYYY-MM-DD (required)")
	cycleCreateCmd.Flags().StringVar(&cycleEnd, "end", "", "End date YYYY-MM-DD (required)")
	cycleCreateCmd.Flags().StringVar(&cycleStatus, "status", "planned", "Status: planned, active, paused, completed")
	_ = cycleCreateCmd.MarkFlagRequired("start")
	_ = cycleCreateCmd.MarkFlagRequired("end")

	cycleAddCmd.Flags().StringVarP(&issueProject, "project", "p", "", "Project used to resolve issue keys")
	cycleAnalyticsCmd.Flags().BoolVar(&cycleJSON, "json", false, "Print as JSON")

	cycleCmd.AddCommand(cycleCreateCmd)
	cycleCmd.AddCommand(cycleListCmd)
	cycleCmd.AddCommand(cycleAddCmd)
	cycleCmd.AddCommand(cycleStatusCmd)
	cycleCmd.AddCommand(cycleAnalyticsCmd)
	rootCmd.AddCommand(cycleCmd)
}

func cycleCreateRun(project, name string) error {
	start, err := parseDay("start", cycleStart)
	if err != nil {
		return err
	}
	end, err := parseDay("end", cycleEnd)
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	c := &models.Cycle{
		ProjectID: project,
		Name:      name,
		Status:    models.CycleStatus(cycleStatus),
		StartDate: start,
		EndDate:   end,
	}

	if dryRun {
		ui.DryRunMsg("Would create cycle %s in %s (%s to %s)", name, project, cycleStart, cycleEnd)
		return nil
	}

	if err := withRetry(ctx, func() error { return s.CreateCycle(ctx, c) }); err != nil {
		return fmt.Errorf("create cycle: %w", err)
	}

	ui.Success("Created cycle %s: %s", output.Cyan(c.ID), c.Name)
	return nil
}

func cycleListRun(project string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	cycles, err := s.ListCycles(ctx, project)
	if err != nil {
		return err
	}

	if len(cycles) == 0 {
		ui.Info("No cycles found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Status", "Start", "End", "Issues", "Done", "Progress"})
	for _, c := range cycles {
		_ = table.Append([]string{
			c.ID,
			c.Name,
			output.StatusColor(string(c.Status)),
			c.StartDate.Format(time.DateOnly),
			c.EndDate.Format(time.DateOnly),
			strconv.Itoa(c.IssuesCount),
			strconv.Itoa(c.CompletedCount),
			output.ProgressColor(c.Progress),
		})
	}
	_ = table.Render()
	return nil
}

func cycleAddRun(issueRef, cycleID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := findIssue(ctx, s, issueRef, issueProject)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would move %s into cycle %s", issue.Key(), cycleID)
		return nil
	}

	var changed bool
	err = withRetry(ctx, func() error {
		var err error
		changed, err = s.AddToCycle(ctx, issue.ID, cycleID)
		return err
	})
	if err != nil {
		return fmt.Errorf("add to cycle: %w", err)
	}

	if !changed {
		ui.Info("%s is already in cycle %s", output.Cyan(issue.Key()), cycleID)
		return nil
	}
	ui.Success("Moved %s into cycle %s", output.Cyan(issue.Key()), cycleID)
	return nil
}

func cycleStatusRun(cycleID, status string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if dryRun {
		ui.DryRunMsg("Would set cycle %s to %s", cycleID, status)
		return nil
	}

	err = withRetry(ctx, func() error {
		return s.UpdateCycleStatus(ctx, cycleID, models.CycleStatus(status))
	})
	if err != nil {
		return fmt.Errorf("update cycle: %w", err)
	}

	ui.Success("Cycle %s is now %s", output.Cyan(cycleID), output.StatusColor(status))
	return nil
}

func cycleAnalyticsRun(cycleID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := s.CycleAnalytics(ctx, cycleID)
	if err != nil {
		return err
	}

	if cycleJSON {
		return printJSON(a)
	}

	fmt.Fprintf(ui.Out, "Cycle %s\n", output.Cyan(a.CycleID))
	fmt.Fprintf(ui.Out, "  Issues:            %d\n", a.TotalIssues)
	fmt.Fprintf(ui.Out, "  Completed:         %d\n", a.Completed)
	fmt.Fprintf(ui.Out, "  Remaining:         %d\n", a.Remaining)
	fmt.Fprintf(ui.Out, "  Progress:          %s %s\n", output.ProgressBar(a.ProgressPct, 20), output.ProgressColor(a.ProgressPct))
	fmt.Fprintf(ui.Out, "  Remaining points:  %d\n", a.RemainingPoints)
	return nil
}

// parseDay parses a YYYY-MM-DD flag value as a UTC day.
func parseDay(name, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q (use YYYY-MM-DD)", name, value)
	}
	return t, nil
}
