package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/plane/internal/output"
)

var analyticsJSON bool

var analyticsCmd = &cobra.Command{
	Use:   "analytics <project>",
	Short: "Show project velocity and issue distributions",
	Long: `Show project analytics: velocity (average issues completed per
completed cycle), completed issues per cycle, and the priority and status
distributions of all issues.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return analyticsRun(args[0])
	},
}

func init() {
	analyticsCmd.Flags().BoolVar(&analyticsJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(analyticsCmd)
}

func analyticsRun(project string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := s.ProjectAnalytics(ctx, project)
	if err != nil {
		return err
	}

	if analyticsJSON {
		return printJSON(a)
	}

	fmt.Fprintf(ui.Out, "Project %s\n", output.Cyan(a.ProjectID))
	fmt.Fprintf(ui.Out, "  Velocity: %.2f issues per completed cycle\n\n", a.Velocity)

	if len(a.CycleVelocity) > 0 {
		table := ui.Table([]string{"Cycle", "Completed"})
		for _, cv := range a.CycleVelocity {
			_ = table.Append([]string{cv.Name, strconv.Itoa(cv.Completed)})
		}
		_ = table.Render()
		fmt.Fprintln(ui.Out)
	}

	printDistribution("Priority", a.PriorityDistribution)
	fmt.Fprintln(ui.Out)
	printDistribution("Status", a.StatusDistribution)
	return nil
}
