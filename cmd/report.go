package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/store"
)

var (
	reportFormat  string
	exportType    string
	exportProject string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export a project's issues, cycles, or modules in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "Project (required)")
	exportCmd.Flags().StringVar(&reportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "issues", "Data type: issues, cycles, modules")
	_ = exportCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(exportCmd)
}

func exportRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch exportType {
	case "issues":
		return exportIssues(ctx, s)
	case "cycles":
		return exportCycles(ctx, s)
	case "modules":
		return exportModules(ctx, s)
	default:
		return fmt.Errorf("unknown export type: %s (use: issues, cycles, modules)", exportType)
	}
}

// exportedIssue is the flat, stable shape issues are exported in.
type exportedIssue struct {
	Key            string   `json:"key"`
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Type           string   `json:"type"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	Assignees      []string `json:"assignees"`
	Labels         []string `json:"labels"`
	CycleID        string   `json:"cycle_id,omitempty"`
	ModuleID       string   `json:"module_id,omitempty"`
	DueDate        string   `json:"due_date,omitempty"`
	EstimatePoints *int     `json:"estimate_points,omitempty"`
	CommentCount   int      `json:"comment_count"`
	CreatedBy      string   `json:"created_by"`
	CreatedAt      string   `json:"created_at"`
}

func toExportedIssue(i *models.Issue) exportedIssue {
	e := exportedIssue{
		Key:            i.Key(),
		ID:             i.ID,
		Title:          i.Title,
		Type:           string(i.Type),
		Status:         string(i.Status),
		Priority:       string(i.Priority),
		Assignees:      models.NewStringSet(i.Assignees...),
		Labels:         models.NewStringSet(i.Labels...),
		CycleID:        i.CycleID,
		ModuleID:       i.ModuleID,
		EstimatePoints: i.EstimatePoints,
		CommentCount:   i.CommentCount,
		CreatedBy:      i.CreatedBy,
		CreatedAt:      i.CreatedAt.UTC().Format(time.RFC3339),
	}
	if i.DueDate != nil {
		e.DueDate = i.DueDate.Format(time.DateOnly)
	}
	return e
}

func exportIssues(ctx context.Context, s store.Store) error {
	issues, err := s.ListIssues(ctx, exportProject, store.IssueFilter{})
	if err != nil {
		return err
	}

	rows := make([]exportedIssue, 0, len(issues))
	for _, i := range issues {
		rows = append(rows, toExportedIssue(i))
	}

	switch reportFormat {
	case "json":
		return printJSON(rows)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"Key", "ID", "Title", "Type", "Status", "Priority", "Assignees", "Labels", "Cycle", "Module", "Due", "Estimate", "Comments", "Created"})
		for _, r := range rows {
			estimate := ""
			if r.EstimatePoints != nil {
				estimate = strconv.Itoa(*r.EstimatePoints)
			}
			_ = w.Write([]string{r.Key, r.ID, r.Title, r.Type, r.Status, r.Priority,
				strings.Join(r.Assignees, ";"), strings.Join(r.Labels, ";"),
				r.CycleID, r.ModuleID, r.DueDate, estimate, strconv.Itoa(r.CommentCount), r.CreatedAt})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintf(ui.Out, "# Issues: %s\n", exportProject)
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Key | Title | Type | Status | Priority | Assignees |")
		fmt.Fprintln(ui.Out, "|-----|-------|------|--------|----------|-----------|")
		for _, r := range rows {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s | %s | %s |\n",
				r.Key, markdownCell(r.Title), r.Type, r.Status, r.Priority, strings.Join(r.Assignees, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func exportCycles(ctx context.Context, s store.Store) error {
	cycles, err := s.ListCycles(ctx, exportProject)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		type exportedCycle struct {
			ID             string `json:"id"`
			Name           string `json:"name"`
			Status         string `json:"status"`
			StartDate      string `json:"start_date"`
			EndDate        string `json:"end_date"`
			IssuesCount    int    `json:"issues_count"`
			CompletedCount int    `json:"completed_count"`
			Progress       int    `json:"progress"`
		}
		rows := make([]exportedCycle, 0, len(cycles))
		for _, c := range cycles {
			rows = append(rows, exportedCycle{c.ID, c.Name, string(c.Status),
				c.StartDate.Format(time.DateOnly), c.EndDate.Format(time.DateOnly),
				c.IssuesCount, c.CompletedCount, c.Progress})
		}
		return printJSON(rows)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "Name", "Status", "Start", "End", "Issues", "Completed", "Progress"})
		for _, c := range cycles {
			_ = w.Write([]string{c.ID, c.Name, string(c.Status), c.StartDate.Format(time.DateOnly), c.EndDate.Format(time.DateOnly),
				strconv.Itoa(c.IssuesCount), strconv.Itoa(c.CompletedCount), strconv.Itoa(c.Progress)})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintf(ui.Out, "# Cycles: %s\n", exportProject)
		fmt.Fprintln(ui.Out)
		writeCycleTable(cycles)
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func exportModules(ctx context.Context, s store.Store) error {
	modules, err := s.ListModules(ctx, exportProject)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		type exportedModule struct {
			ID          string   `json:"id"`
			Name        string   `json:"name"`
			Description string   `json:"description,omitempty"`
			Status      string   `json:"status"`
			Lead        string   `json:"lead,omitempty"`
			Members     []string `json:"members"`
			IssuesCount int      `json:"issues_count"`
		}
		rows := make([]exportedModule, 0, len(modules))
		for _, m := range modules {
			rows = append(rows, exportedModule{m.ID, m.Name, m.Description, string(m.Status), m.Lead,
				models.NewStringSet(m.Members...), m.IssuesCount})
		}
		return printJSON(rows)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write([]string{"ID", "Name", "Status", "Lead", "Members", "Issues"})
		for _, m := range modules {
			_ = w.Write([]string{m.ID, m.Name, string(m.Status), m.Lead, strings.Join(m.Members, ";"), strconv.Itoa(m.IssuesCount)})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintf(ui.Out, "# Modules: %s\n", exportProject)
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Name | Status | Lead | Issues |")
		fmt.Fprintln(ui.Out, "|------|--------|------|--------|")
		for _, m := range modules {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %d |\n", markdownCell(m.Name), m.Status, m.Lead, m.IssuesCount)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

var reportCmd = &cobra.Command{
	Use:   "report <project>",
	Short: "Generate a markdown status report for a project",
	Long:  "Generate a markdown summary of a project: velocity, cycles, modules and open work.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func reportRun(project string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := s.ProjectAnalytics(ctx, project)
	if err != nil {
		return err
	}
	cycles, err := s.ListCycles(ctx, project)
	if err != nil {
		return err
	}
	modules, err := s.ListModules(ctx, project)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "# Report: %s\n", project)
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "Velocity: %.2f issues per completed cycle\n", a.Velocity)

	total := 0
	for _, n := range a.StatusDistribution {
		total += n
	}
	fmt.Fprintf(ui.Out, "Issues: %d\n", total)
	fmt.Fprintln(ui.Out)

	if len(cycles) > 0 {
		fmt.Fprintln(ui.Out, "## Cycles")
		fmt.Fprintln(ui.Out)
		writeCycleTable(cycles)
		fmt.Fprintln(ui.Out)
	}

	if len(modules) > 0 {
		fmt.Fprintln(ui.Out, "## Modules")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Module | Status | Issues | Complete |")
		fmt.Fprintln(ui.Out, "|--------|--------|--------|----------|")
		for _, m := range modules {
			p, err := s.ModuleProgress(ctx, m.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(ui.Out, "| %s | %s | %d | %d%% |\n", markdownCell(m.Name), m.Status, p.Total, p.CompletionPct)
		}
		fmt.Fprintln(ui.Out)
	}

	if len(a.StatusDistribution) > 0 {
		fmt.Fprintln(ui.Out, "## Status")
		fmt.Fprintln(ui.Out)
		for _, status := range sortedCountKeys(a.StatusDistribution) {
			fmt.Fprintf(ui.Out, "- %s: %d\n", status, a.StatusDistribution[status])
		}
	}
	return nil
}

func writeCycleTable(cycles []*models.Cycle) {
	fmt.Fprintln(ui.Out, "| Cycle | Status | Dates | Issues | Progress |")
	fmt.Fprintln(ui.Out, "|-------|--------|-------|--------|----------|")
	for _, c := range cycles {
		fmt.Fprintf(ui.Out, "| %s | %s | %s to %s | %d/%d | %d%% |\n",
			markdownCell(c.Name), c.Status, c.StartDate.Format(time.DateOnly), c.EndDate.Format(time.DateOnly),
			c.CompletedCount, c.IssuesCount, c.Progress)
	}
}

// markdownCell escapes pipes so a value stays inside its table cell.
func markdownCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func printJSON(v any) error {
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
