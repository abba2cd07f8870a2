package models

import "time"

// Comment is a markdown note left on an issue.
type Comment struct {
	ID        int64
	IssueID   string
	User      string
	Body      string
	CreatedAt time.Time
}

// ActivityAction is the kind of change an activity record captures.
type ActivityAction string

const (
	ActivityCreated ActivityAction = "created"
	ActivityUpdated ActivityAction = "updated"
)

// ActivityRecord captures one field's before/after value for one mutation.
// OldValue and NewValue are nil when the field had no value.
type ActivityRecord struct {
	ID        int64
	IssueID   string
	User      string
	Action    ActivityAction
	Field     string
	OldValue  *string
	NewValue  *string
	Timestamp time.Time
}
