package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/plane/internal/output"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Add and list issue comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <issue> <body>...",
	Short: "Add a comment to an issue",
	Long:  "Add a markdown comment to an issue. Remaining arguments are joined with spaces.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentAddRun(args[0], strings.Join(args[1:], " "))
	},
}

var commentListCmd = &cobra.Command{
	Use:     "list <issue>",
	Aliases: []string{"ls"},
	Short:   "List an issue's comments, oldest first",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentListRun(args[0])
	},
}

func init() {
	commentCmd.PersistentFlags().StringVarP(&issueProject, "project", "p", "", "Project used to resolve issue keys")
	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentListCmd)
	rootCmd.AddCommand(commentCmd)
}

func commentAddRun(issueRef, body string) error {
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
		ui.DryRunMsg("Would comment on %s as %s", issue.Key(), currentUser())
		return nil
	}

	var id int64
	err = withRetry(ctx, func() error {
		var err error
		id, err = s.AddComment(ctx, issue.ID, currentUser(), body)
		return err
	})
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}

	ui.Success("Added comment #%d to %s", id, output.Cyan(issue.Key()))
	return nil
}

func commentListRun(issueRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	issue, err := findIssue(ctx, s, issueRef, issueProject)
	if err != nil {
		return err
	}

	comments, err := s.ListComments(ctx, issue.ID)
	if err != nil {
		return err
	}

	if len(comments) == 0 {
		ui.Info("No comments on %s.", issue.Key())
		return nil
	}

	for _, c := range comments {
		fmt.Fprintf(ui.Out, "%s %s  %s\n", output.Cyan(fmt.Sprintf("#%d", c.ID)), c.User, c.CreatedAt.Local().Format(time.DateTime))
		fmt.Fprintf(ui.Out, "%s\n\n", c.Body)
	}
	return nil
}
