package sdk

import (
	"encoding/json"
	"sync"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

// activityFeedLimit is how many activity records the local feed keeps.
// Trimming here is a display policy, not a storage limit.
const activityFeedLimit = 20

// BoardState is the client's local copy of the board. Load establishes
// the baseline from a full fetch; Apply merges incremental events on
// top of it.
type BoardState struct {
	mu         sync.RWMutex
	tasks      map[string]*schema.Task
	activities []*schema.Activity // newest first
}

// NewBoardState creates an empty local board.
func NewBoardState() *BoardState {
	return &BoardState{tasks: make(map[string]*schema.Task)}
}

// Load replaces the local state with a freshly fetched baseline.
func (b *BoardState) Load(tasks []*schema.Task, activities []*schema.Activity) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tasks = make(map[string]*schema.Task, len(tasks))
	for _, t := range tasks {
		b.tasks[t.ID] = t.Clone()
	}
	b.activities = b.activities[:0]
	for i, a := range activities {
		if i == activityFeedLimit {
			break
		}
		cp := *a
		b.activities = append(b.activities, &cp)
	}
}

// Apply merges one push event into the local state. A task event
// carrying a version at or below the one already held is ignored: the
// monotonic per-task version exposes out-of-order or duplicate
// delivery.
func (b *BoardState) Apply(ev schema.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Kind {
	case schema.EventTaskCreated, schema.EventTaskUpdated:
		var t schema.Task
		if err := json.Unmarshal(ev.Data, &t); err != nil {
			return err
		}
		if known, ok := b.tasks[t.ID]; ok && t.Version <= known.Version {
			return nil
		}
		b.tasks[t.ID] = &t
	case schema.EventTaskDeleted:
		var d schema.DeletedTask
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return err
		}
		delete(b.tasks, d.ID)
	case schema.EventActivityAdded:
		var a schema.Activity
		if err := json.Unmarshal(ev.Data, &a); err != nil {
			return err
		}
		b.activities = append([]*schema.Activity{&a}, b.activities...)
		if len(b.activities) > activityFeedLimit {
			b.activities = b.activities[:activityFeedLimit]
		}
	}
	return nil
}

// Task returns the local copy of a task.
func (b *BoardState) Task(id string) (*schema.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Column returns the tasks currently in a workflow column.
func (b *BoardState) Column(status schema.Status) []*schema.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*schema.Task
	for _, t := range b.tasks {
		if t.Status == status {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Activities returns the local feed, newest first.
func (b *BoardState) Activities() []*schema.Activity {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*schema.Activity, 0, len(b.activities))
	for _, a := range b.activities {
		cp := *a
		out = append(out, &cp)
	}
	return out
}
