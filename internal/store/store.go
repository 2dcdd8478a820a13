// Package store implements the document store backing the board: task,
// activity, and user records kept in memory with JSON snapshot persistence.
package store

import (
	"errors"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

var (
	// ErrTaskNotFound is returned when a requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrUserNotFound is returned when a requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrVersionMismatch is returned by a version-checked update whose
	// expected version no longer matches the stored one.
	ErrVersionMismatch = errors.New("task version mismatch")
	// ErrDuplicateTitle is returned when a task title collides with another
	// task's title, compared case-insensitively.
	ErrDuplicateTitle = errors.New("task title must be unique")
	// ErrDuplicateEmail is returned when a user email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// BoardStore is the persistence contract the board core depends on.
// Implementations must make UpdateTask an atomic read-modify-write: the
// version check, the mutation, and the version bump happen as one step.
type BoardStore interface {
	// GetTask returns a copy of the task with the given ID.
	GetTask(id string) (*schema.Task, error)
	// ListTasks returns copies of all tasks, newest first.
	ListTasks() ([]*schema.Task, error)
	// InsertTask stores a new task, enforcing the unique-title constraint.
	InsertTask(t *schema.Task) error
	// UpdateTask applies mutate to the stored task under the store lock.
	// When expected is non-zero and differs from the stored version, it
	// returns a copy of the stored task together with ErrVersionMismatch.
	// On success the version is incremented by one and the updated copy
	// returned.
	UpdateTask(id string, expected int, mutate func(*schema.Task) error) (*schema.Task, error)
	// DeleteTask removes a task and returns its final state.
	DeleteTask(id string) (*schema.Task, error)

	// AppendActivity stores an immutable activity record.
	AppendActivity(a *schema.Activity) error
	// ListActivities returns up to limit records, newest first.
	// A non-positive limit returns everything.
	ListActivities(limit int) ([]*schema.Activity, error)

	// GetUser returns the user with the given ID.
	GetUser(id string) (*schema.User, error)
	// GetUserByEmail returns the user registered under email.
	GetUserByEmail(email string) (*schema.User, error)
	// ListUsers returns all users sorted by name. With activeOnly set,
	// deactivated accounts are skipped.
	ListUsers(activeOnly bool) ([]*schema.User, error)
	// InsertUser stores a new user, enforcing the unique-email constraint.
	InsertUser(u *schema.User) error
}
