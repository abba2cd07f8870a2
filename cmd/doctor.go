package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the database for counter drift and duplicate keys",
	Long: `Recompute every stored counter (comment counts, cycle and module
issue counts, cycle progress, sequence counters) and report any that
disagree with the underlying rows. Exits non-zero when problems are found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorRun()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	problems, err := s.CheckIntegrity(ctx)
	if err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}

	if len(problems) == 0 {
		ui.Success("No integrity problems found")
		return nil
	}

	for _, p := range problems {
		ui.Warning("%s", p)
	}
	return fmt.Errorf("%d integrity problems found", len(problems))
}
