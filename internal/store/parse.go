package store

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/plane/internal/models"
)

// ParseIssueUpdate turns map-shaped input, such as decoded JSON or MCP tool
// arguments, into an IssueUpdate. A null due_date or estimate_points clears
// the field; a null or empty cycle_id or module_id detaches the issue.
// Unknown keys and wrongly typed values wrap ErrValidation.
func ParseIssueUpdate(fields map[string]any) (models.IssueUpdate, error) {
	var upd models.IssueUpdate

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := fields[key]
		var err error
		switch key {
		case "title":
			upd.Title, err = parseString(key, raw)
		case "description":
			upd.Description, err = parseString(key, raw)
		case "status":
			var v *string
			if v, err = parseString(key, raw); err == nil {
				st := models.IssueStatus(*v)
				upd.Status = &st
			}
		case "priority":
			var v *string
			if v, err = parseString(key, raw); err == nil {
				p := models.IssuePriority(*v)
				upd.Priority = &p
			}
		case "assignees":
			upd.Assignees, err = parseSet(key, raw)
		case "labels":
			upd.Labels, err = parseSet(key, raw)
		case "cycle_id":
			upd.CycleID, err = parseRef(key, raw)
		case "module_id":
			upd.ModuleID, err = parseRef(key, raw)
		case "due_date":
			if raw == nil {
				upd.ClearDueDate = true
				continue
			}
			upd.DueDate, err = parseDate(key, raw)
		case "estimate_points":
			if raw == nil {
				upd.ClearEstimate = true
				continue
			}
			upd.EstimatePoints, err = parseInt(key, raw)
		default:
			err = validationErr("unknown field %q", key)
		}
		if err != nil {
			return models.IssueUpdate{}, err
		}
	}

	if err := upd.Validate(); err != nil {
		return models.IssueUpdate{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return upd, nil
}

func parseString(key string, raw any) (*string, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, validationErr("%s must be a string, got %T", key, raw)
	}
	return &s, nil
}

func parseRef(key string, raw any) (*string, error) {
	if raw == nil {
		empty := ""
		return &empty, nil
	}
	return parseString(key, raw)
}

func parseSet(key string, raw any) (*models.StringSet, error) {
	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, validationErr("%s must contain only strings, got %T", key, item)
			}
			items = append(items, s)
		}
	case string:
		// Comma-separated, as typed on a command line.
		items = strings.Split(v, ",")
	case nil:
	default:
		return nil, validationErr("%s must be a list of strings, got %T", key, raw)
	}
	set := models.NewStringSet(items...)
	return &set, nil
}

func parseInt(key string, raw any) (*int, error) {
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, validationErr("%s must be a whole number, got %v", key, v)
		}
		n = int(v)
	default:
		return nil, validationErr("%s must be a number, got %T", key, raw)
	}
	return &n, nil
}

// Dates are accepted as RFC 3339 timestamps or plain YYYY-MM-DD days.
func parseDate(key string, raw any) (*time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return &v, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
			if t, err := time.Parse(layout, v); err == nil {
				return &t, nil
			}
		}
		return nil, validationErr("%s %q is not a date (use YYYY-MM-DD or RFC 3339)", key, v)
	default:
		return nil, validationErr("%s must be a date string, got %T", key, raw)
	}
}
