package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/plane/internal/models"
)

// fieldChange is one column whose value an update alters.
type fieldChange struct {
	field    string // activity field name, also the column name
	value    any    // new column value
	oldValue *string
	newValue *string
}

func strPtr(s string) *string { return &s }

func refValue(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func setValue(set models.StringSet) *string {
	return strPtr(encodeSet(set))
}

func timeValue(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return strPtr(formatTime(*t))
}

func intValue(p *int) *string {
	if p == nil {
		return nil
	}
	return strPtr(strconv.Itoa(*p))
}

// diffIssue lists the changes upd makes to issue, in a fixed field order.
func diffIssue(issue *models.Issue, upd models.IssueUpdate) []fieldChange {
	var changes []fieldChange
	add := func(field string, value any, oldV, newV *string) {
		changes = append(changes, fieldChange{field: field, value: value, oldValue: oldV, newValue: newV})
	}

	if upd.Title != nil && *upd.Title != issue.Title {
		add("title", *upd.Title, strPtr(issue.Title), strPtr(*upd.Title))
	}
	if upd.Description != nil && *upd.Description != issue.Description {
		add("description", *upd.Description, strPtr(issue.Description), strPtr(*upd.Description))
	}
	if upd.Status != nil && *upd.Status != issue.Status {
		add("status", string(*upd.Status), strPtr(string(issue.Status)), strPtr(string(*upd.Status)))
	}
	if upd.Priority != nil && *upd.Priority != issue.Priority {
		add("priority", string(*upd.Priority), strPtr(string(issue.Priority)), strPtr(string(*upd.Priority)))
	}
	if upd.Assignees != nil && !upd.Assignees.Equal(issue.Assignees) {
		next := models.NewStringSet(*upd.Assignees...)
		add("assignees", encodeSet(next), setValue(issue.Assignees), setValue(next))
	}
	if upd.Labels != nil && !upd.Labels.Equal(issue.Labels) {
		next := models.NewStringSet(*upd.Labels...)
		add("labels", encodeSet(next), setValue(issue.Labels), setValue(next))
	}
	if upd.CycleID != nil && *upd.CycleID != issue.CycleID {
		add("cycle_id", nullString(*upd.CycleID), refValue(issue.CycleID), refValue(*upd.CycleID))
	}
	if upd.ModuleID != nil && *upd.ModuleID != issue.ModuleID {
		add("module_id", nullString(*upd.ModuleID), refValue(issue.ModuleID), refValue(*upd.ModuleID))
	}

	switch {
	case upd.ClearDueDate:
		if issue.DueDate != nil {
			add("due_date", sql.NullString{}, timeValue(issue.DueDate), nil)
		}
	case upd.DueDate != nil:
		next := upd.DueDate.UTC()
		if issue.DueDate == nil || !issue.DueDate.Equal(next) {
			add("due_date", formatNullTime(&next), timeValue(issue.DueDate), timeValue(&next))
		}
	}

	switch {
	case upd.ClearEstimate:
		if issue.EstimatePoints != nil {
			add("estimate_points", sql.NullInt64{}, intValue(issue.EstimatePoints), nil)
		}
	case upd.EstimatePoints != nil:
		if issue.EstimatePoints == nil || *issue.EstimatePoints != *upd.EstimatePoints {
			add("estimate_points", nullInt(upd.EstimatePoints), intValue(issue.EstimatePoints), intValue(upd.EstimatePoints))
		}
	}
	return changes
}

// applyUpdate writes the changes upd makes to issue, logs one activity record
// per changed field and recomputes the derived counters of every cycle and
// module the change touches. All records share one timestamp. Must run inside
// withTx.
func (s *SQLiteStore) applyUpdate(ctx context.Context, q querier, issue *models.Issue, upd models.IssueUpdate, actor string) (bool, error) {
	changes := diffIssue(issue, upd)
	if len(changes) == 0 {
		return false, nil
	}

	if upd.CycleID != nil && *upd.CycleID != "" && *upd.CycleID != issue.CycleID {
		if err := checkMembership(ctx, q, "cycles", "cycle", *upd.CycleID, issue.ProjectID); err != nil {
			return false, err
		}
	}
	if upd.ModuleID != nil && *upd.ModuleID != "" && *upd.ModuleID != issue.ModuleID {
		if err := checkMembership(ctx, q, "modules", "module", *upd.ModuleID, issue.ProjectID); err != nil {
			return false, err
		}
	}

	now := s.now().UTC()
	setClauses := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+2)
	for _, c := range changes {
		setClauses = append(setClauses, c.field+" = ?")
		args = append(args, c.value)
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, formatTime(now), issue.ID)

	// Column names come from diffIssue, never from caller input.
	query := fmt.Sprintf("UPDATE issues SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return false, wrapDBError("update issue", err)
	}

	for _, c := range changes {
		if err := insertActivity(ctx, q, issue.ID, actor, models.ActivityUpdated, c.field, c.oldValue, c.newValue, now); err != nil {
			return false, err
		}
	}

	cycles := map[string]bool{issue.CycleID: true}
	modules := map[string]bool{issue.ModuleID: true}
	if upd.CycleID != nil {
		cycles[*upd.CycleID] = true
	}
	if upd.ModuleID != nil {
		modules[*upd.ModuleID] = true
	}
	for id := range cycles {
		if err := refreshCycleCounters(ctx, q, s.doneStatuses, id); err != nil {
			return false, err
		}
	}
	for id := range modules {
		if err := refreshModuleCounters(ctx, q, id); err != nil {
			return false, err
		}
	}
	return true, nil
}

// checkMembership verifies that a cycle or module exists and belongs to the
// issue's project.
func checkMembership(ctx context.Context, q querier, table, kind, id, projectID string) error {
	var owner string
	// table is one of two constants chosen by the caller.
	err := q.QueryRowContext(ctx, "SELECT project_id FROM "+table+" WHERE id = ?", id).Scan(&owner)
	if err == sql.ErrNoRows {
		return notFound(kind, id)
	}
	if err != nil {
		return wrapDBError("get "+kind, err)
	}
	if owner != projectID {
		return validationErr("%s %s belongs to project %s, not %s", kind, id, owner, projectID)
	}
	return nil
}
