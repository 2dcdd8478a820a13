package sdk

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

// ResolverState is where the conflict flow currently stands.
type ResolverState int

const (
	// StateIdle: no conflict pending.
	StateIdle ResolverState = iota
	// StateDetected: a conflict is waiting for the user's choice.
	StateDetected
	// StateResolving: the chosen snapshot is being submitted.
	StateResolving
)

func (s ResolverState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetected:
		return "detected"
	case StateResolving:
		return "resolving"
	default:
		return "unknown"
	}
}

// Choice selects one of the two candidate snapshots. There is no
// field-level merge; the user keeps one version whole.
type Choice int

const (
	// ChoiceCurrent keeps the server's version.
	ChoiceCurrent Choice = iota
	// ChoiceProposed keeps the user's rejected edit.
	ChoiceProposed
)

var (
	// ErrNoConflict is returned when Resolve is called with nothing
	// detected.
	ErrNoConflict = errors.New("no conflict to resolve")
	// ErrConflictPending is returned when Detect is called while an
	// earlier conflict is still unresolved.
	ErrConflictPending = errors.New("a conflict is already pending")
)

// conflictSubmitter is the slice of the API the resolver needs.
type conflictSubmitter interface {
	ResolveConflict(taskID string, chosen *schema.Task, conflictID string) (*schema.Task, error)
}

// Resolver drives the pick-one-of-two conflict flow:
// Idle -> Detected (a mutation came back as a conflict) -> Resolving
// (the user confirmed a choice) -> Idle on success, or back to Detected
// with the error surfaced on failure.
type Resolver struct {
	mu         sync.Mutex
	client     conflictSubmitter
	state      ResolverState
	taskID     string
	conflictID string
	conflict   *schema.ConflictPayload

	// cooldownUntil is a UI debounce after a resolution, keeping the
	// user from immediately re-editing before the refreshed state lands.
	// It has no bearing on server-side correctness.
	cooldownUntil time.Time
	cooldown      time.Duration
}

// NewResolver creates a resolver submitting through client.
func NewResolver(client conflictSubmitter) *Resolver {
	return &Resolver{client: client, cooldown: 2 * time.Second}
}

// State returns the current flow state.
func (r *Resolver) State() ResolverState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Conflict returns the pending conflict payload, or nil when idle.
func (r *Resolver) Conflict() *schema.ConflictPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflict
}

// Detect records a conflict returned by a mutation attempt and moves
// the flow to Detected.
func (r *Resolver) Detect(conflict *Conflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return ErrConflictPending
	}
	r.state = StateDetected
	r.taskID = conflict.TaskID
	r.conflictID = uuid.NewString()
	r.conflict = &conflict.Payload
	return nil
}

// Dismiss abandons the pending conflict without resolving it. The
// server's version stays canonical.
func (r *Resolver) Dismiss() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = StateIdle
	r.taskID = ""
	r.conflictID = ""
	r.conflict = nil
}

// Resolve submits the chosen snapshot. The version the rejected edit
// was based on is irrelevant here: the server reconciles against
// whatever is current and always advances the version, even when the
// chosen snapshot matches the stored state.
func (r *Resolver) Resolve(choice Choice) (*schema.Task, error) {
	r.mu.Lock()
	if r.state != StateDetected {
		r.mu.Unlock()
		return nil, ErrNoConflict
	}
	chosen := r.conflict.Current
	if choice == ChoiceProposed {
		chosen = r.conflict.Proposed
	}
	taskID, conflictID := r.taskID, r.conflictID
	r.state = StateResolving
	r.mu.Unlock()

	task, err := r.client.ResolveConflict(taskID, chosen, conflictID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = StateDetected
		return nil, err
	}
	r.state = StateIdle
	r.taskID = ""
	r.conflictID = ""
	r.conflict = nil
	r.cooldownUntil = time.Now().Add(r.cooldown)
	return task, nil
}

// InCooldown reports whether the post-resolution debounce is still
// active.
func (r *Resolver) InCooldown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Now().Before(r.cooldownUntil)
}
