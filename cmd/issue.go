package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/output"
	"github.com/joescharf/plane/internal/store"
)

var (
	issueProject  string
	issueStatus   string
	issuePriority string
	issueType     string
	issueAssignee string
	issueLabel    string
	issueCycle    string
	issueModule   string

	createDesc      string
	createPriority  string
	createAssignees []string
	createLabels    []string
	createCycle     string
	createModule    string
	createEstimate  int
)

var issuesCmd = &cobra.Command{
	Use:     "issues",
	Aliases: []string{"ls"},
	Short:   "List issues in a project",
	Long:    "List a project's issues in key order. Filters combine with AND.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issuesRun()
	},
}

var createCmd = &cobra.Command{
	Use:   "create <project> <type> <title>",
	Short: "Create an issue",
	Long: `Create an issue in backlog. The issue gets the next key in the project (e.g. WEB-13).

Types: bug, feature, task, story, improvement.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createRun(args[0], args[1], args[2])
	},
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Show, update and inspect single issues",
	Long: `Show, update and inspect issues.

An issue can be referenced by its full ID, or with --project by its key
(WEB-12) or a unique ID prefix.`,
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue>",
	Short: "Update an issue",
	Long: `Update fields of an issue. Only the flags you pass are changed, and
each changed field is recorded in the issue's activity log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := updateFieldsFromFlags(cmd)
		if err != nil {
			return err
		}
		return issueUpdateRun(args[0], fields)
	},
}

var issueBulkCmd = &cobra.Command{
	Use:   "bulk <issue>...",
	Short: "Apply one update to many issues",
	Long: `Apply the same update to several issues in a single transaction.
Issues that do not exist are skipped. If any update fails, none is applied.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := updateFieldsFromFlags(cmd)
		if err != nil {
			return err
		}
		return issueBulkRun(args, fields)
	},
}

var issueActivityCmd = &cobra.Command{
	Use:   "activity <issue>",
	Short: "Show the change history of an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueActivityRun(args[0])
	},
}

func init() {
	issuesCmd.Flags().StringVarP(&issueProject, "project", "p", "", "Project (required)")
	issuesCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status")
	issuesCmd.Flags().StringVar(&issuePriority, "priority", "", "Filter by priority: urgent, high, medium, low, none")
	issuesCmd.Flags().StringVar(&issueType, "type", "", "Filter by type")
	issuesCmd.Flags().StringVar(&issueAssignee, "assignee", "", "Filter by assignee")
	issuesCmd.Flags().StringVar(&issueLabel, "label", "", "Filter by label")
	issuesCmd.Flags().StringVar(&issueCycle, "cycle", "", "Filter by cycle ID")
	issuesCmd.Flags().StringVar(&issueModule, "module", "", "Filter by module ID")
	_ = issuesCmd.MarkFlagRequired("project")

	createCmd.Flags().StringVar(&createDesc, "desc", "", "Issue description")
	createCmd.Flags().StringVar(&createPriority, "priority", "medium", "Priority: urgent, high, medium, low, none")
	createCmd.Flags().StringSliceVar(&createAssignees, "assignee", nil, "Assignee (repeatable)")
	createCmd.Flags().StringSliceVar(&createLabels, "label", nil, "Label (repeatable)")
	createCmd.Flags().StringVar(&createCycle, "cycle", "", "Cycle ID")
	createCmd.Flags().StringVar(&createModule, "module", "", "Module ID")
	createCmd.Flags().IntVar(&createEstimate, "estimate", -1, "Estimate points (-1 for none)")

	issueCmd.PersistentFlags().StringVarP(&issueProject, "project", "p", "", "Project used to resolve keys and ID prefixes")
	addUpdateFlags(issueUpdateCmd)
	addUpdateFlags(issueBulkCmd)

	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueBulkCmd)
	issueCmd.AddCommand(issueActivityCmd)
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(issueCmd)
}

// addUpdateFlags registers the flags shared by issue update and issue bulk.
func addUpdateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("title", "", "New title")
	f.String("desc", "", "New description")
	f.String("status", "", "New status")
	f.String("priority", "", "New priority")
	f.StringSlice("assignee", nil, "Replace assignees (repeatable, empty clears)")
	f.StringSlice("label", nil, "Replace labels (repeatable, empty clears)")
	f.String("cycle", "", "Move to cycle (empty detaches)")
	f.String("module", "", "Move to module (empty detaches)")
	f.String("due", "", "Due date (YYYY-MM-DD)")
	f.Int("estimate", 0, "Estimate points")
	f.Bool("clear-due", false, "Remove the due date")
	f.Bool("clear-estimate", false, "Remove the estimate")
}

// updateFieldsFromFlags collects the update flags that were explicitly set,
// keyed by issue field name.
func updateFieldsFromFlags(cmd *cobra.Command) (map[string]any, error) {
	f := cmd.Flags()
	fields := make(map[string]any)

	stringFlags := []struct{ flag, field string }{
		{"title", "title"},
		{"desc", "description"},
		{"status", "status"},
		{"priority", "priority"},
		{"cycle", "cycle_id"},
		{"module", "module_id"},
		{"due", "due_date"},
	}
	for _, sf := range stringFlags {
		if !f.Changed(sf.flag) {
			continue
		}
		v, err := f.GetString(sf.flag)
		if err != nil {
			return nil, err
		}
		fields[sf.field] = v
	}

	for flag, field := range map[string]string{"assignee": "assignees", "label": "labels"} {
		if !f.Changed(flag) {
			continue
		}
		v, err := f.GetStringSlice(flag)
		if err != nil {
			return nil, err
		}
		fields[field] = v
	}

	if f.Changed("estimate") {
		v, err := f.GetInt("estimate")
		if err != nil {
			return nil, err
		}
		fields["estimate_points"] = v
	}
	if v, _ := f.GetBool("clear-due"); v {
		fields["due_date"] = nil
	}
	if v, _ := f.GetBool("clear-estimate"); v {
		fields["estimate_points"] = nil
	}
	return fields, nil
}

func issuesRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	filter := store.IssueFilter{
		Status:   models.IssueStatus(issueStatus),
		Priority: models.IssuePriority(issuePriority),
		Type:     models.IssueType(issueType),
		Assignee: issueAssignee,
		Label:    issueLabel,
		CycleID:  issueCycle,
		ModuleID: issueModule,
	}

	issues, err := s.ListIssues(ctx, issueProject, filter)
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"Key", "Title", "Type", "Status", "Priority", "Assignees", "Points"})
	for _, issue := range issues {
		_ = table.Append([]string{
			issue.Key(),
			issue.Title,
			string(issue.Type),
			output.StatusColor(string(issue.Status)),
			output.PriorityColor(string(issue.Priority)),
			joinSet(issue.Assignees),
			formatEstimate(issue.EstimatePoints),
		})
	}
	_ = table.Render()
	return nil
}

func createRun(project, issueTypeArg, title string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue := &models.Issue{
		ProjectID:   project,
		Title:       title,
		Description: createDesc,
		Type:        models.IssueType(issueTypeArg),
		Priority:    models.IssuePriority(createPriority),
		Assignees:   models.NewStringSet(createAssignees...),
		Labels:      models.NewStringSet(createLabels...),
		CycleID:     createCycle,
		ModuleID:    createModule,
		CreatedBy:   currentUser(),
	}
	if createEstimate >= 0 {
		points := createEstimate
		issue.EstimatePoints = &points
	}

	if dryRun {
		ui.DryRunMsg("Would create %s issue in %s: %s", issueTypeArg, project, title)
		return nil
	}

	if err := withRetry(ctx, func() error { return s.CreateIssue(ctx, issue) }); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}

	ui.Success("Created %s: %s", output.Cyan(issue.Key()), issue.Title)
	ui.VerboseLog("ID %s", issue.ID)
	return nil
}

func issueShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := findIssue(ctx, s, ref, issueProject)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(issue.Key()), issue.Title)
	fmt.Fprintf(ui.Out, "  Type:       %s\n", issue.Type)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(issue.Status)))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(string(issue.Priority)))
	if issue.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", issue.Description)
	}
	if len(issue.Assignees) > 0 {
		fmt.Fprintf(ui.Out, "  Assignees:  %s\n", joinSet(issue.Assignees))
	}
	if len(issue.Labels) > 0 {
		fmt.Fprintf(ui.Out, "  Labels:     %s\n", joinSet(issue.Labels))
	}
	if issue.CycleID != "" {
		fmt.Fprintf(ui.Out, "  Cycle:      %s\n", issue.CycleID)
	}
	if issue.ModuleID != "" {
		fmt.Fprintf(ui.Out, "  Module:     %s\n", issue.ModuleID)
	}
	if issue.DueDate != nil {
		fmt.Fprintf(ui.Out, "  Due:        %s\n", issue.DueDate.Format(time.DateOnly))
	}
	if issue.EstimatePoints != nil {
		fmt.Fprintf(ui.Out, "  Estimate:   %d\n", *issue.EstimatePoints)
	}
	fmt.Fprintf(ui.Out, "  Comments:   %d\n", issue.CommentCount)
	fmt.Fprintf(ui.Out, "  Created:    %s by %s\n", issue.CreatedAt.Format(time.RFC3339), issue.CreatedBy)
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", issue.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", issue.ID)

	return nil
}

func issueUpdateRun(ref string, fields map[string]any) error {
	upd, err := store.ParseIssueUpdate(fields)
	if err != nil {
		return err
	}
	if upd.IsEmpty() {
		return fmt.Errorf("no updates specified (use --status, --priority, --title, --desc, --assignee, --label, --cycle, --module, --due or --estimate)")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := findIssue(ctx, s, ref, issueProject)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would update %s (%s)", issue.Key(), strings.Join(sortedKeys(fields), ", "))
		return nil
	}

	var changed bool
	err = withRetry(ctx, func() error {
		var err error
		changed, err = s.UpdateIssue(ctx, issue.ID, upd, currentUser())
		return err
	})
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}

	if !changed {
		ui.Info("No changes to %s", output.Cyan(issue.Key()))
		return nil
	}
	ui.Success("Updated %s", output.Cyan(issue.Key()))
	return nil
}

func issueBulkRun(refs []string, fields map[string]any) error {
	upd, err := store.ParseIssueUpdate(fields)
	if err != nil {
		return err
	}
	if upd.IsEmpty() {
		return fmt.Errorf("no updates specified")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	ids, err := resolveIssueIDs(ctx, s, refs, issueProject)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would update %d issues (%s)", len(ids), strings.Join(sortedKeys(fields), ", "))
		return nil
	}

	var count int
	err = withRetry(ctx, func() error {
		var err error
		count, err = s.BulkUpdateIssues(ctx, ids, upd, currentUser())
		return err
	})
	if err != nil {
		var bulkErr *store.BulkError
		if errors.As(err, &bulkErr) {
			return fmt.Errorf("bulk update rolled back at issue %s: %w", bulkErr.IssueID, bulkErr.Err)
		}
		return fmt.Errorf("bulk update: %w", err)
	}

	ui.Success("Updated %d of %d issues", count, len(refs))
	return nil
}

func issueActivityRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := findIssue(ctx, s, ref, issueProject)
	if err != nil {
		return err
	}

	records, err := s.ListActivity(ctx, issue.ID)
	if err != nil {
		return err
	}

	table := ui.Table([]string{"Time", "User", "Action", "Field", "Old", "New"})
	for _, r := range records {
		_ = table.Append([]string{
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.User,
			string(r.Action),
			r.Field,
			formatValue(r.OldValue),
			formatValue(r.NewValue),
		})
	}
	_ = table.Render()
	return nil
}

// findIssue finds an issue by full ID, or within project by key or unique ID prefix.
func findIssue(ctx context.Context, s store.Store, ref, project string) (*models.Issue, error) {
	issue, err := s.GetIssue(ctx, ref)
	if err == nil {
		return issue, nil
	}
	if !store.IsNotFound(err) {
		return nil, err
	}
	if project == "" {
		return nil, fmt.Errorf("issue %s: %w (use --project to look up keys and ID prefixes)", ref, store.ErrNotFound)
	}

	issues, err := s.ListIssues(ctx, project, store.IssueFilter{})
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(ref)
	var matches []*models.Issue
	for _, issue := range issues {
		if issue.Key() == upper || strconv.Itoa(issue.SequenceID) == ref {
			return issue, nil
		}
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue %s: %w", ref, store.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: ambiguous issue ID %s matches %d issues", store.ErrValidation, ref, len(matches))
	}
}

// resolveIssueIDs maps refs to issue IDs. Refs that match no issue are passed
// through unchanged so the bulk update skips them.
func resolveIssueIDs(ctx context.Context, s store.Store, refs []string, project string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		issue, err := findIssue(ctx, s, ref, project)
		switch {
		case err == nil:
			ids = append(ids, issue.ID)
		case store.IsNotFound(err):
			ui.VerboseLog("skipping unknown issue %s", ref)
			ids = append(ids, ref)
		default:
			return nil, err
		}
	}
	return ids, nil
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

func joinSet(s models.StringSet) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}

func formatEstimate(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func formatValue(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}
