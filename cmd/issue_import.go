package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/store"
)

// parsedIssue is one issue read from a markdown list.
type parsedIssue struct {
	Project     string
	Title       string
	Description string // raw source lines for this issue
	Type        models.IssueType
	Priority    models.IssuePriority
}

var issueImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import issues from a markdown file",
	Long: `Import issues from a markdown file.

The file should contain issues as numbered or bulleted lists, optionally
grouped under "## Project <id>" headings. Sub-items such as "1.2 text"
become their own issues with the parent line in the description. Type and
priority are guessed from keywords in the title.

With --project, every issue goes to that project. Issues whose title
already exists in the project are skipped, so importing twice is safe.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueImportRun(args[0])
	},
}

func init() {
	issueCmd.AddCommand(issueImportCmd)
}

func issueImportRun(file string) error {
	// Read the markdown file
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("file is empty: %s", file)
	}

	issues := parseMarkdownIssues(content)
	if len(issues) == 0 {
		ui.Info("No issues found in file.")
		return nil
	}
	if issueProject != "" {
		for i := range issues {
			issues[i].Project = issueProject
		}
	}

	// Preview table
	table := ui.Table([]string{"#", "Project", "Title", "Type", "Priority"})
	for i, e := range issues {
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			e.Project,
			e.Title,
			string(e.Type),
			string(e.Priority),
		})
	}
	_ = table.Render()

	if dryRun {
		ui.DryRunMsg("Would import %d issues", len(issues))
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	return createParsedIssues(context.Background(), s, issues)
}

// parseSubIssueNumber checks if a line starts with a sub-issue number like "1.1" or "2.3."
// Returns the title text and true if it's a sub-issue, or empty and false otherwise.
func parseSubIssueNumber(line string) (title string, ok bool) {
	// Pattern: digits.digits[.] space text (e.g., "1.1 text" or "1.1. text")
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) || line[i] != '.' {
		return "", false
	}
	i++ // skip first dot
	start := i
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == start {
		return "", false // a regular "1. text" item
	}
	if i < len(line) && line[i] == '.' {
		i++
	}
	if i >= len(line) || line[i] != ' ' {
		return "", false
	}
	title = strings.TrimSpace(line[i:])
	if title == "" {
		return "", false
	}
	return title, true
}

// listItemTitle returns the text of a "1. text", "- text" or "* text" line.
func listItemTitle(line string) (title string, numbered bool) {
	if len(line) <= 2 {
		return "", false
	}
	for i, c := range line {
		if c == '.' && i > 0 && i < 4 {
			return strings.TrimSpace(line[i+1:]), true
		}
		if c < '0' || c > '9' {
			break
		}
	}
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return strings.TrimSpace(line[2:]), false
	}
	return "", false
}

// parseMarkdownIssues extracts numbered and bulleted items from markdown.
func parseMarkdownIssues(content string) []parsedIssue {
	var issues []parsedIssue
	currentProject := ""
	lastParentLine := "" // raw line of the last top-level numbered item

	add := func(title, description string) {
		issues = append(issues, parsedIssue{
			Project:     currentProject,
			Title:       title,
			Description: description,
			Type:        classifyIssueType(title),
			Priority:    classifyIssuePriority(title),
		})
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		// Project heading: ## Project <id>
		if strings.HasPrefix(line, "## ") {
			heading := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			if strings.HasPrefix(strings.ToLower(heading), "project ") {
				currentProject = strings.TrimSpace(heading[len("project "):])
			}
			lastParentLine = ""
			continue
		}

		if subTitle, ok := parseSubIssueNumber(line); ok {
			description := line
			if lastParentLine != "" {
				description = lastParentLine + "\n" + line
			}
			add(subTitle, description)
			continue
		}

		title, numbered := listItemTitle(line)
		if title == "" {
			continue
		}
		// Only numbered items can be parents of sub-issues
		if numbered {
			lastParentLine = line
		}
		add(title, line)
	}

	return issues
}

// createParsedIssues creates the issues that do not already exist, matching
// on title within the project.
func createParsedIssues(ctx context.Context, s store.Store, parsed []parsedIssue) error {
	existing := make(map[string]map[string]bool) // project -> normalized title
	created, skipped := 0, 0
	projects := make(map[string]bool)

	for _, p := range parsed {
		if p.Project == "" {
			ui.Warning("Skipping issue %q: no project (add a \"## Project <id>\" heading or use --project)", p.Title)
			skipped++
			continue
		}

		titles, ok := existing[p.Project]
		if !ok {
			current, err := s.ListIssues(ctx, p.Project, store.IssueFilter{})
			if err != nil {
				return err
			}
			titles = make(map[string]bool, len(current))
			for _, issue := range current {
				titles[normalizeTitle(issue.Title)] = true
			}
			existing[p.Project] = titles
		}

		key := normalizeTitle(p.Title)
		if titles[key] {
			ui.VerboseLog("Skipping existing issue %q in %s", p.Title, p.Project)
			skipped++
			continue
		}

		issue := &models.Issue{
			ProjectID:   p.Project,
			Title:       p.Title,
			Description: p.Description,
			Type:        p.Type,
			Priority:    p.Priority,
			CreatedBy:   currentUser(),
		}
		if err := withRetry(ctx, func() error { return s.CreateIssue(ctx, issue) }); err != nil {
			if store.IsRetryable(err) {
				return fmt.Errorf("import stopped after %d issues: %w", created, err)
			}
			ui.Warning("Failed to create issue %q: %v", p.Title, err)
			skipped++
			continue
		}
		titles[key] = true
		projects[p.Project] = true
		created++
	}

	ui.Success("Created %d issues across %d projects", created, len(projects))
	if skipped > 0 {
		ui.Warning("Skipped %d issues", skipped)
	}
	return nil
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
