package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/plane/internal/models"
	"github.com/joescharf/plane/internal/store"
)

// Server wraps the plane data engine and exposes it as MCP tools.
type Server struct {
	store   store.Store
	user    string
	version string
}

// NewServer creates the MCP server wrapper. user is recorded as the author of
// changes whose tool call names no actor.
func NewServer(s store.Store, user, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{store: s, user: user, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("plane", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.bulkUpdateTool())
	srv.AddTool(s.addCommentTool())
	srv.AddTool(s.cycleAnalyticsTool())
	srv.AddTool(s.moduleProgressTool())
	srv.AddTool(s.projectAnalyticsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// updateFields are the tool arguments that map onto models.IssueUpdate.
var updateFields = []string{
	"title", "description", "status", "priority", "assignees", "labels",
	"cycle_id", "module_id", "due_date", "estimate_points",
}

type issueOut struct {
	ID             string   `json:"id"`
	Key            string   `json:"key"`
	ProjectID      string   `json:"project_id"`
	SequenceID     int      `json:"sequence_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
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
	CreatedBy      string   `json:"created_by,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toIssueOut(issue *models.Issue) issueOut {
	out := issueOut{
		ID:             issue.ID,
		Key:            issue.Key(),
		ProjectID:      issue.ProjectID,
		SequenceID:     issue.SequenceID,
		Title:          issue.Title,
		Description:    issue.Description,
		Type:           string(issue.Type),
		Status:         string(issue.Status),
		Priority:       string(issue.Priority),
		Assignees:      models.NewStringSet(issue.Assignees...),
		Labels:         models.NewStringSet(issue.Labels...),
		CycleID:        issue.CycleID,
		ModuleID:       issue.ModuleID,
		EstimatePoints: issue.EstimatePoints,
		CommentCount:   issue.CommentCount,
		CreatedBy:      issue.CreatedBy,
		CreatedAt:      issue.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      issue.UpdatedAt.Format(time.RFC3339),
	}
	if issue.DueDate != nil {
		out.DueDate = issue.DueDate.Format(time.DateOnly)
	}
	return out
}

func jsonResult(v any, what string) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal %s: %v", what, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult describes err with its class so the caller can tell bad input
// from missing data from a transient lock.
func errorResult(action string, err error) *mcp.CallToolResult {
	kind := "error"
	switch {
	case store.IsValidation(err):
		kind = "invalid input"
	case store.IsNotFound(err):
		kind = "not found"
	case store.IsRetryable(err):
		kind = "database busy, retry"
	case store.IsIntegrity(err):
		kind = "integrity violation"
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s (%s): %v", action, kind, err))
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// plane_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plane_list_issues",
		mcp.WithDescription("List a project's issues in sequence order, optionally filtered. Filters combine with AND. Returns a JSON array of issues with id, key (e.g. WEB-12), title, status, priority, type, assignees, labels, cycle_id and module_id."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("status", mcp.Description("Status filter, e.g. backlog, todo, in_progress, done")),
		mcp.WithString("priority", mcp.Description("Priority filter: urgent, high, medium, low, none")),
		mcp.WithString("type", mcp.Description("Type filter: bug, feature, task, story, improvement")),
		mcp.WithString("assignee", mcp.Description("Only issues assigned to this user")),
		mcp.WithString("label", mcp.Description("Only issues carrying this label")),
		mcp.WithString("cycle_id", mcp.Description("Only issues in this cycle")),
		mcp.WithString("module_id", mcp.Description("Only issues in this module")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	filter := store.IssueFilter{
		Status:   models.IssueStatus(request.GetString("status", "")),
		Priority: models.IssuePriority(request.GetString("priority", "")),
		Type:     models.IssueType(request.GetString("type", "")),
		Assignee: request.GetString("assignee", ""),
		Label:    request.GetString("label", ""),
		CycleID:  request.GetString("cycle_id", ""),
		ModuleID: request.GetString("module_id", ""),
	}

	issues, err := s.store.ListIssues(ctx, project, filter)
	if err != nil {
		return errorResult("list issues", err), nil
	}

	out := make([]issueOut, len(issues))
	for i, issue := range issues {
		out[i] = toIssueOut(issue)
	}
	return jsonResult(out, "issues")
}

// plane_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plane_create_issue",
		mcp.WithDescription("Create a new issue in a project. The issue starts in backlog and gets the project's next sequence number. Returns the created issue as JSON."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Description("Issue description (markdown)")),
		mcp.WithString("type", mcp.Description("Issue type: bug, feature, task, story, improvement (default: task)")),
		mcp.WithString("priority", mcp.Description("Issue priority: urgent, high, medium, low, none (default: medium)")),
		mcp.WithArray("assignees", mcp.WithStringItems(), mcp.Description("Users assigned to the issue")),
		mcp.WithArray("labels", mcp.WithStringItems(), mcp.Description("Labels for the issue")),
		mcp.WithString("cycle_id", mcp.Description("Cycle to place the issue in")),
		mcp.WithString("module_id", mcp.Description("Module to place the issue in")),
		mcp.WithNumber("estimate_points", mcp.Description("Estimate in points")),
		mcp.WithString("created_by", mcp.Description("Author (default: the configured user)")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	issue := &models.Issue{
		ProjectID:   project,
		Title:       title,
		Description: request.GetString("description", ""),
		Type:        models.IssueType(request.GetString("type", "")),
		Priority:    models.IssuePriority(request.GetString("priority", "")),
		Assignees:   models.NewStringSet(request.GetStringSlice("assignees", nil)...),
		Labels:      models.NewStringSet(request.GetStringSlice("labels", nil)...),
		CycleID:     request.GetString("cycle_id", ""),
		ModuleID:    request.GetString("module_id", ""),
		CreatedBy:   request.GetString("created_by", s.user),
	}
	if _, ok := request.GetArguments()["estimate_points"]; ok {
		points := request.GetInt("estimate_points", 0)
		issue.EstimatePoints = &points
	}

	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return errorResult("create issue", err), nil
	}
	return jsonResult(toIssueOut(issue), "issue")
}

// plane_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plane_update_issue",
		mcp.WithDescription("Update fields of one issue. Only the fields provided are changed, and every changed field is recorded in the activity log. Pass null for due_date or estimate_points to clear them, or an empty cycle_id/module_id to detach. Returns the issue as JSON with a changed flag."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID, unique ID prefix, or key such as WEB-12 (prefix and key need project)")),
		mcp.WithString("project", mcp.Description("Project ID, used to resolve a key or ID prefix")),
		mcp.WithString("actor", mcp.Description("User making the change (default: the configured user)")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Description("New status")),
		mcp.WithString("priority", mcp.Description("New priority: urgent, high, medium, low, none")),
		mcp.WithArray("assignees", mcp.WithStringItems(), mcp.Description("Replacement set of assignees")),
		mcp.WithArray("labels", mcp.WithStringItems(), mcp.Description("Replacement set of labels")),
		mcp.WithString("cycle_id", mcp.Description("Cycle ID, empty to detach")),
		mcp.WithString("module_id", mcp.Description("Module ID, empty to detach")),
		mcp.WithString("due_date", mcp.Description("Due date, YYYY-MM-DD")),
		mcp.WithNumber("estimate_points", mcp.Description("Estimate in points")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	upd, err := parseUpdateArgs(request)
	if err != nil {
		return errorResult("update issue", err), nil
	}
	if upd.IsEmpty() {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: " + strings.Join(updateFields, ", ")), nil
	}

	issue, err := s.findIssue(ctx, issueID, request.GetString("project", ""))
	if err != nil {
		return errorResult("update issue", err), nil
	}

	changed, err := s.store.UpdateIssue(ctx, issue.ID, upd, request.GetString("actor", s.user))
	if err != nil {
		return errorResult("update issue", err), nil
	}

	issue, err = s.store.GetIssue(ctx, issue.ID)
	if err != nil {
		return errorResult("reload issue", err), nil
	}
	return jsonResult(struct {
		issueOut
		Changed bool `json:"changed"`
	}{toIssueOut(issue), changed}, "issue")
}

// plane_bulk_update
func (s *Server) bulkUpdateTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plane_bulk_update",
		mcp.WithDescription("Apply the same field changes to many issues in one transaction. Unknown IDs are skipped. If any issue fails, nothing is changed. Returns the number of issues that changed."),
		mcp.WithArray("issue_ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Issue IDs to update")),
		mcp.WithString("actor", mcp.Description("User making the change (default: the configured user)")),
		mcp.WithString("status", mcp.Description("New status")),
		mcp.WithString("priority", mcp.Description("New priority: urgent, high, medium, low, none")),
		mcp.WithArray("assignees", mcp.WithStringItems(), mcp.Description("Replacement set of assignees")),
		mcp.WithArray("labels", mcp.WithStringItems(), mcp.Description("Replacement set of labels")),
		mcp.WithString("cycle_id", mcp.Description("Cycle ID, empty to detach")),
		mcp.WithString("module_id", mcp.Description("Module ID, empty to detach")),
	)
	return tool, s.handleBulkUpdate
}

func (s *Server) handleBulkUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := request.RequireStringSlice("issue_ids")
	if err != nil || len(ids) == 0 {
		return mcp.NewToolResultError("missing required parameter: issue_ids"), nil
	}

	upd, err := parseUpdateArgs(request)
	if err != nil {
		return errorResult("bulk update", err), nil
	}
	if upd.IsEmpty() {
		return mcp.NewToolResultError("no fields provided to update"), nil
	}

	n, err := s.store.BulkUpdateIssues(ctx, ids, upd, request.GetString("actor", s.user))
	if err != nil {
		var bulkErr *store.BulkError
		if errors.As(err, &bulkErr) {
			return mcp.NewToolResultError(fmt.Sprintf("bulk update rolled back at issue %s: %v", bulkErr.IssueID, bulkErr.Err)), nil
		}
		return errorResult("bulk update", err), nil
	}
	return jsonResult(map[string]any{"requested": len(ids), "updated": n}, "result")
}

// plane_add_comment
func (s *Server) addCommentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plane_add_comment",
		mcp.WithDescription("Add a markdown comment to an issue. Returns the comment ID and the issue's new comment count."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Comment text (markdown)")),
		mcp.WithString("user", mcp.Description("Comment author (default: the configured user)")),
	)
	return tool, s.handleAddComment
}

func (s *Server) handleAddComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	body, err := request.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: body"), nil
	}

	id, err := s.store.AddComment(ctx, issueID, request.GetString("user", s.user), body)
	if err != nil {
		return errorResult("add comment", err), nil
	}
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return errorResult("reload issue", err), nil
	}
	return jsonResult(map[string]any{
		"comment_id":    id,
		"issue_id":      issueID,
		"comment_count": issue.CommentCount,
	}, "comment")
}

// plane_cycle_analytics
func (s *Server) cycleAnalyticsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plane_cycle_analytics",
		mcp.WithDescription("Progress of a cycle: total issues, completed, remaining, progress percentage and remaining estimate points."),
		mcp.WithString("cycle_id", mcp.Required(), mcp.Description("Cycle ID")),
	)
	return tool, s.handleCycleAnalytics
}

func (s *Server) handleCycleAnalytics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cycleID, err := request.RequireString("cycle_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: cycle_id"), nil
	}
	a, err := s.store.CycleAnalytics(ctx, cycleID)
	if err != nil {
		return errorResult("compute cycle analytics", err), nil
	}
	return jsonResult(a, "cycle analytics")
}

// plane_module_progress
func (s *Server) moduleProgressTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plane_module_progress",
		mcp.WithDescription("Status breakdown and completion percentage of a module."),
		mcp.WithString("module_id", mcp.Required(), mcp.Description("Module ID")),
	)
	return tool, s.handleModuleProgress
}

func (s *Server) handleModuleProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	moduleID, err := request.RequireString("module_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: module_id"), nil
	}
	p, err := s.store.ModuleProgress(ctx, moduleID)
	if err != nil {
		return errorResult("compute module progress", err), nil
	}
	return jsonResult(p, "module progress")
}

// plane_project_analytics
func (s *Server) projectAnalyticsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("plane_project_analytics",
		mcp.WithDescription("Project-wide analytics: velocity (average completed issues per completed cycle, plus the per-cycle sequence) and priority and status distributions."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project ID")),
	)
	return tool, s.handleProjectAnalytics
}

func (s *Server) handleProjectAnalytics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	a, err := s.store.ProjectAnalytics(ctx, project)
	if err != nil {
		return errorResult("compute project analytics", err), nil
	}
	return jsonResult(a, "project analytics")
}

// parseUpdateArgs picks the update fields out of the tool arguments.
func parseUpdateArgs(request mcp.CallToolRequest) (models.IssueUpdate, error) {
	args := request.GetArguments()
	fields := make(map[string]any)
	for _, key := range updateFields {
		if v, ok := args[key]; ok {
			fields[key] = v
		}
	}
	return store.ParseIssueUpdate(fields)
}

// findIssue finds an issue by full ID, or within project by key or unique ID prefix.
func (s *Server) findIssue(ctx context.Context, id, project string) (*models.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err == nil {
		return issue, nil
	}
	if project == "" || !store.IsNotFound(err) {
		return nil, err
	}

	issues, err := s.store.ListIssues(ctx, project, store.IssueFilter{})
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(id)
	var matches []*models.Issue
	for _, issue := range issues {
		if issue.Key() == upper {
			return issue, nil
		}
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue %s: %w", id, store.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: ambiguous issue ID %s matches %d issues", store.ErrValidation, id, len(matches))
	}
}
