// Package schema defines universal data structures shared between the
// Flowdeck daemon, the SDK, and the CLI.
package schema

import (
	"strings"
	"time"
)

// Status is the workflow column a task currently sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inprogress"
	StatusDone       Status = "done"
)

// Columns lists the board columns in display order.
var Columns = []Column{
	{ID: StatusTodo, Name: "Todo"},
	{ID: StatusInProgress, Name: "In Progress"},
	{ID: StatusDone, Name: "Done"},
}

// Column pairs a status ID with its display name.
type Column struct {
	ID   Status `json:"id"`
	Name string `json:"name"`
}

// ValidStatus reports whether s is one of the board columns.
func ValidStatus(s Status) bool {
	for _, c := range Columns {
		if c.ID == s {
			return true
		}
	}
	return false
}

// ColumnName returns the display name for a status, falling back to the
// raw value for anything unknown.
func ColumnName(s Status) string {
	for _, c := range Columns {
		if c.ID == s {
			return c.Name
		}
	}
	return string(s)
}

// IsColumnName reports whether title matches a column ID or display name,
// ignoring case. Such titles are reserved.
func IsColumnName(title string) bool {
	for _, c := range Columns {
		if strings.EqualFold(title, string(c.ID)) || strings.EqualFold(title, c.Name) {
			return true
		}
	}
	return false
}

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriority reports whether p is a known priority level.
func ValidPriority(p Priority) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task is a single card on the board.
//
// Version is the optimistic-concurrency token: it starts at 1 and is
// incremented exactly once per successful mutation. Clients echo the
// version they last saw when submitting an update; a mismatch means
// someone else got there first.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	CreatorID   string    `json:"creator_id"`
	EditorID    string    `json:"editor_id,omitempty"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// Action classifies what an activity record describes.
type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionDeleted  Action = "deleted"
	ActionMoved    Action = "moved"
	ActionAssigned Action = "assigned"
)

// Activity is an immutable audit entry describing one completed mutation.
// Records are append-only; nothing ever edits or deletes one.
type Activity struct {
	ID          string         `json:"id"`
	Action      Action         `json:"action"`
	UserID      string         `json:"user_id"`
	UserName    string         `json:"user_name"`
	TaskID      string         `json:"task_id,omitempty"`
	TaskTitle   string         `json:"task_title,omitempty"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
