package schema

import "encoding/json"

// EventKind names a push notification sent to connected clients.
type EventKind string

const (
	EventTaskCreated   EventKind = "taskCreated"
	EventTaskUpdated   EventKind = "taskUpdated"
	EventTaskDeleted   EventKind = "taskDeleted"
	EventActivityAdded EventKind = "activityAdded"
)

// Event is the wire envelope pushed over the websocket. Data holds the
// kind-specific payload: a Task for taskCreated/taskUpdated, a
// DeletedTask for taskDeleted, an Activity for activityAdded.
type Event struct {
	Kind EventKind       `json:"event"`
	Data json.RawMessage `json:"data"`
}

// DeletedTask is the payload of a taskDeleted event.
type DeletedTask struct {
	ID string `json:"id"`
}

// NewEvent marshals payload into an Event envelope.
func NewEvent(kind EventKind, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: kind, Data: data}, nil
}

// ConflictPayload is the body of a 409 response: both candidate versions
// of a task whose update lost the race. Current is what the server holds
// now; Proposed is the caller's attempted edit replayed on top of it.
type ConflictPayload struct {
	Message  string `json:"message"`
	Current  *Task  `json:"current"`
	Proposed *Task  `json:"proposed"`
}
