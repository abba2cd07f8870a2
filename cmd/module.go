package cmd

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/output"
)

var (
	moduleDesc    string
	moduleStatus  string
	moduleLead    string
	moduleMembers []string
	moduleJSON    bool
)

var moduleCmd = &cobra.Command{
	Use:   "module",
	Short: "Manage modules (feature groupings)",
}

var moduleCreateCmd = &cobra.Command{
	Use:   "create <project> <name>",
	Short: "Create a module",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return moduleCreateRun(args[0], args[1])
	},
}

var moduleListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List a project's modules",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return moduleListRun(args[0])
	},
}

var moduleAddCmd = &cobra.Command{
	Use:   "add <issue> <module>",
	Short: "Move an issue into a module",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return moduleAddRun(args[0], args[1])
	},
}

var moduleProgressCmd = &cobra.Command{
	Use:   "progress <module>",
	Short: "Show a module's status breakdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return moduleProgressRun(args[0])
	},
}

func init() {
	moduleCreateCmd.Flags().StringVar(&moduleDesc, "desc", "", "Module description")
	moduleCreateCmd.Flags().StringVar(&moduleStatus, "status", "planned", "Status: planned, in_progress, completed")
	moduleCreateCmd.Flags().StringVar(&moduleLead, "lead", "", "Module lead")
	moduleCreateCmd.Flags().StringSliceVar(&moduleMembers, "member", nil, "Member (repeatable)")

	moduleAddCmd.Flags().StringVarP(&issueProject, "project", "p", "", "Project used to resolve issue keys")
	moduleProgressCmd.Flags().BoolVar(&moduleJSON, "json", false, "Print as JSON")

	moduleCmd.AddCommand(moduleCreateCmd)
	moduleCmd.AddCommand(moduleListCmd)
	moduleCmd.AddCommand(moduleAddCmd)
	moduleCmd.AddCommand(moduleProgressCmd)
	rootCmd.AddCommand(moduleCmd)
}

func moduleCreateRun(project, name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	m := &models.Module{
		ProjectID:   project,
		Name:        name,
		Description: moduleDesc,
		Status:      models.ModuleStatus(moduleStatus),
		Lead:        moduleLead,
		Members:     models.NewStringSet(moduleMembers...),
	}

	if dryRun {
		ui.DryRunMsg("Would create module %s in %s", name, project)
		return nil
	}

	if err := withRetry(ctx, func() error { return s.CreateModule(ctx, m) }); err != nil {
		return fmt.Errorf("create module: %w", err)
	}

	ui.Success("Created module %s: %s", output.Cyan(m.ID), m.Name)
	return nil
}

func moduleListRun(project string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	modules, err := s.ListModules(ctx, project)
	if err != nil {
		return err
	}

	if len(modules) == 0 {
		ui.Info("No modules found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Status", "Lead", "Members", "Issues"})
	for _, m := range modules {
		lead := m.Lead
		if lead == "" {
			lead = "-"
		}
		_ = table.Append([]string{
			m.ID,
			m.Name,
			output.StatusColor(string(m.Status)),
			lead,
			joinSet(m.Members),
			strconv.Itoa(m.IssuesCount),
		})
	}
	_ = table.Render()
	return nil
}

func moduleAddRun(issueRef, moduleID string) error {
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
		ui.DryRunMsg("Would move %s into module %s", issue.Key(), moduleID)
		return nil
	}

	var changed bool
	err = withRetry(ctx, func() error {
		var err error
		changed, err = s.AddToModule(ctx, issue.ID, moduleID)
		return err
	})
	if err != nil {
		return fmt.Errorf("add to module: %w", err)
	}

	if !changed {
		ui.Info("%s is already in module %s", output.Cyan(issue.Key()), moduleID)
		return nil
	}
	ui.Success("Moved %s into module %s", output.Cyan(issue.Key()), moduleID)
	return nil
}

func moduleProgressRun(moduleID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := s.ModuleProgress(ctx, moduleID)
	if err != nil {
		return err
	}

	if moduleJSON {
		return printJSON(p)
	}

	fmt.Fprintf(ui.Out, "Module %s: %d issues, %s complete %s\n",
		output.Cyan(p.ModuleID), p.Total, output.ProgressColor(p.CompletionPct), output.ProgressBar(p.CompletionPct, 20))
	printDistribution("Status", p.ByStatus)
	return nil
}

// printDistribution renders counts keyed by value, highest count first.
func printDistribution(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	table := ui.Table([]string{label, "Issues"})
	for _, k := range sortedCountKeys(counts) {
		_ = table.Append([]string{k, strconv.Itoa(counts[k])})
	}
	_ = table.Render()
}

// sortedCountKeys orders keys by descending count, then by name.
func sortedCountKeys(counts map[string]int) []string {
	keys := slices.Collect(maps.Keys(counts))
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return keys
}
