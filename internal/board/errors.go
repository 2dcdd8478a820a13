// Package board implements the synchronization core of the task board:
// version-checked mutations, activity derivation, and smart assignment.
package board

import (
	"errors"
	"fmt"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

// ErrNoCandidates is returned by smart assignment when no active users
// exist to choose from.
var ErrNoCandidates = errors.New("no available users for assignment")

// ValidationError reports a rejected mutation: bad field, duplicate
// title, or a title colliding with a column name. No state changed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError reports a version mismatch. It carries both candidate
// snapshots so the caller can present a choice: Current is what the
// store holds, Proposed is the rejected edit replayed on top of it.
type ConflictError struct {
	Current  *schema.Task
	Proposed *schema.Task
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s was modified by someone else (stored version %d)", e.Current.ID, e.Current.Version)
}
