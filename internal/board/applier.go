package board

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/flowdeck-dev/flowdeck/internal/store"
	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
)

// Notifier pushes an event to every connected client session.
// Delivery is best-effort; the applier never learns about failures.
type Notifier interface {
	Broadcast(event schema.Event)
}

// Applier is the single writer path for task mutations. Every route that
// changes a task funnels through it: it validates, applies the change
// with a version-checked store update, writes exactly one activity
// record, and broadcasts the result.
type Applier struct {
	store    store.BoardStore
	notifier Notifier
}

// NewApplier wires a mutation applier to its collaborators.
func NewApplier(s store.BoardStore, n Notifier) *Applier {
	return &Applier{store: s, notifier: n}
}

// CreateInput is the caller-supplied state of a new task. Status and
// Priority default to todo/medium when empty.
type CreateInput struct {
	Title       string
	Description string
	Status      schema.Status
	Priority    schema.Priority
	AssigneeID  string
}

// Changes is a partial update: nil fields are left untouched. An
// AssigneeID pointing at the empty string unassigns the task.
type Changes struct {
	Title       *string
	Description *string
	Status      *schema.Status
	Priority    *schema.Priority
	AssigneeID  *string
}

// Create validates and stores a new task at version 1, records a
// "created" activity, and broadcasts taskCreated.
func (a *Applier) Create(actor *schema.User, in CreateInput) (*schema.Task, error) {
	if in.Status == "" {
		in.Status = schema.StatusTodo
	}
	if in.Priority == "" {
		in.Priority = schema.PriorityMedium
	}

	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}
	if !schema.ValidStatus(in.Status) {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown status %q", in.Status)}
	}
	if !schema.ValidPriority(in.Priority) {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown priority %q", in.Priority)}
	}
	if in.AssigneeID != "" {
		if _, err := a.store.GetUser(in.AssigneeID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	task := &schema.Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
		AssigneeID:  in.AssigneeID,
		CreatorID:   actor.ID,
		EditorID:    actor.ID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := a.store.InsertTask(task); err != nil {
		if errors.Is(err, store.ErrDuplicateTitle) {
			return nil, &ValidationError{Message: "task title must be unique"}
		}
		return nil, err
	}

	a.broadcast(schema.EventTaskCreated, task)
	a.recordActivity(schema.ActionCreated, actor, task, fmt.Sprintf("created task %q", task.Title), nil)
	return task, nil
}

// Update applies a partial edit against the version the caller observed.
// A non-zero expectedVersion that no longer matches the stored version
// yields a ConflictError carrying both candidate snapshots; the store is
// left untouched. On success the version advances by exactly one and a
// single activity record is derived from what actually changed.
func (a *Applier) Update(actor *schema.User, taskID string, changes Changes, expectedVersion int) (*schema.Task, error) {
	if err := validateChanges(changes); err != nil {
		return nil, err
	}
	if changes.AssigneeID != nil && *changes.AssigneeID != "" {
		if _, err := a.store.GetUser(*changes.AssigneeID); err != nil {
			return nil, err
		}
	}

	var oldStatus schema.Status
	var oldAssignee string

	updated, err := a.store.UpdateTask(taskID, expectedVersion, func(t *schema.Task) error {
		oldStatus = t.Status
		oldAssignee = t.AssigneeID
		applyChanges(t, changes)
		t.EditorID = actor.ID
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionMismatch) {
			// updated holds the stored task; replay the rejected edit on
			// top of it so the caller sees both candidates.
			proposed := updated.Clone()
			applyChanges(proposed, changes)
			proposed.EditorID = actor.ID
			proposed.Version = expectedVersion
			return nil, &ConflictError{Current: updated, Proposed: proposed}
		}
		if errors.Is(err, store.ErrDuplicateTitle) {
			return nil, &ValidationError{Message: "task title must be unique"}
		}
		return nil, err
	}

	a.broadcast(schema.EventTaskUpdated, updated)

	action, description := deriveActivity(updated, oldStatus, oldAssignee, a.assigneeName(updated.AssigneeID))
	a.recordActivity(action, actor, updated, description, nil)
	return updated, nil
}

// Delete removes a task, records a "deleted" activity, and broadcasts
// taskDeleted with the task ID.
func (a *Applier) Delete(actor *schema.User, taskID string) error {
	t, err := a.store.DeleteTask(taskID)
	if err != nil {
		return err
	}

	a.broadcast(schema.EventTaskDeleted, schema.DeletedTask{ID: t.ID})
	a.recordActivity(schema.ActionDeleted, actor, t, fmt.Sprintf("deleted task %q", t.Title), nil)
	return nil
}

// SmartAssign hands the task to the least-loaded active user. The
// assignment goes through the normal update path, so it bumps the
// version and produces an "assigned" activity record.
func (a *Applier) SmartAssign(actor *schema.User, taskID string) (*schema.Task, error) {
	if _, err := a.store.GetTask(taskID); err != nil {
		return nil, err
	}

	candidates, err := a.store.ListUsers(true)
	if err != nil {
		return nil, err
	}
	tasks, err := a.store.ListTasks()
	if err != nil {
		return nil, err
	}
	active := make([]*schema.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != schema.StatusDone {
			active = append(active, t)
		}
	}

	chosenID, err := Pick(candidates, active)
	if err != nil {
		return nil, err
	}

	updated, err := a.store.UpdateTask(taskID, 0, func(t *schema.Task) error {
		t.AssigneeID = chosenID
		t.EditorID = actor.ID
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.broadcast(schema.EventTaskUpdated, updated)
	a.recordActivity(schema.ActionAssigned, actor, updated,
		fmt.Sprintf("smart-assigned task %q to %s", updated.Title, a.assigneeName(chosenID)), nil)
	return updated, nil
}

// Resolve commits a conflict resolution: the chosen full snapshot
// overwrites the stored task regardless of its current version, still
// passing through the version-increment path. Resolving always advances
// the version, even when the chosen snapshot matches the stored state.
func (a *Applier) Resolve(actor *schema.User, taskID string, chosen *schema.Task) (*schema.Task, error) {
	if err := validateTitle(chosen.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(chosen.Description); err != nil {
		return nil, err
	}
	if !schema.ValidStatus(chosen.Status) {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown status %q", chosen.Status)}
	}
	if !schema.ValidPriority(chosen.Priority) {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown priority %q", chosen.Priority)}
	}

	updated, err := a.store.UpdateTask(taskID, 0, func(t *schema.Task) error {
		t.Title = strings.TrimSpace(chosen.Title)
		t.Description = strings.TrimSpace(chosen.Description)
		t.Status = chosen.Status
		t.Priority = chosen.Priority
		t.AssigneeID = chosen.AssigneeID
		t.EditorID = actor.ID
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTitle) {
			return nil, &ValidationError{Message: "task title must be unique"}
		}
		return nil, err
	}

	a.broadcast(schema.EventTaskUpdated, updated)
	a.recordActivity(schema.ActionUpdated, actor, updated,
		fmt.Sprintf("resolved conflict for task %q", updated.Title), nil)
	return updated, nil
}

// deriveActivity picks one action for an update by precedence: a status
// change wins, then an assignee change, then a generic update.
func deriveActivity(t *schema.Task, oldStatus schema.Status, oldAssignee, assigneeName string) (schema.Action, string) {
	if oldStatus != t.Status {
		return schema.ActionMoved, fmt.Sprintf("moved task %q from %s to %s", t.Title, oldStatus, t.Status)
	}
	if oldAssignee != t.AssigneeID {
		return schema.ActionAssigned, fmt.Sprintf("assigned task %q to %s", t.Title, assigneeName)
	}
	return schema.ActionUpdated, fmt.Sprintf("updated task %q", t.Title)
}

// recordActivity appends the audit entry and broadcasts it. A storage
// failure here is logged but never fails the mutation that already
// committed.
func (a *Applier) recordActivity(action schema.Action, actor *schema.User, t *schema.Task, description string, metadata map[string]any) {
	activity := &schema.Activity{
		ID:          uuid.NewString(),
		Action:      action,
		UserID:      actor.ID,
		UserName:    actor.Name,
		TaskID:      t.ID,
		TaskTitle:   t.Title,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.AppendActivity(activity); err != nil {
		slog.Warn("could not record activity", slog.String("action", string(action)), slog.String("error", err.Error()))
		return
	}
	a.broadcast(schema.EventActivityAdded, activity)
}

func (a *Applier) broadcast(kind schema.EventKind, payload any) {
	if a.notifier == nil {
		return
	}
	ev, err := schema.NewEvent(kind, payload)
	if err != nil {
		slog.Warn("could not encode event", slog.String("event", string(kind)), slog.String("error", err.Error()))
		return
	}
	a.notifier.Broadcast(ev)
}

// assigneeName resolves a user ID to a display name for activity text.
func (a *Applier) assigneeName(id string) string {
	if id == "" {
		return "unassigned"
	}
	u, err := a.store.GetUser(id)
	if err != nil {
		return "unassigned"
	}
	return u.Name
}

func applyChanges(t *schema.Task, c Changes) {
	if c.Title != nil {
		t.Title = strings.TrimSpace(*c.Title)
	}
	if c.Description != nil {
		t.Description = strings.TrimSpace(*c.Description)
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.AssigneeID != nil {
		t.AssigneeID = *c.AssigneeID
	}
}

func validateChanges(c Changes) error {
	if c.Title != nil {
		if err := validateTitle(*c.Title); err != nil {
			return err
		}
	}
	if c.Description != nil {
		if err := validateDescription(*c.Description); err != nil {
			return err
		}
	}
	if c.Status != nil && !schema.ValidStatus(*c.Status) {
		return &ValidationError{Message: fmt.Sprintf("unknown status %q", *c.Status)}
	}
	if c.Priority != nil && !schema.ValidPriority(*c.Priority) {
		return &ValidationError{Message: fmt.Sprintf("unknown priority %q", *c.Priority)}
	}
	return nil
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Message: "task title is required"}
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return &ValidationError{Message: fmt.Sprintf("title cannot exceed %d characters", maxTitleLen)}
	}
	if schema.IsColumnName(title) {
		return &ValidationError{Message: "task title cannot match column names"}
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return &ValidationError{Message: fmt.Sprintf("description cannot exceed %d characters", maxDescriptionLen)}
	}
	return nil
}
