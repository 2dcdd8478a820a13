package board

import (
	"errors"
	"testing"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

func users(ids ...string) []*schema.User {
	out := make([]*schema.User, len(ids))
	for i, id := range ids {
		out[i] = &schema.User{ID: id, Active: true}
	}
	return out
}

func assigned(counts map[string]int) []*schema.Task {
	var out []*schema.Task
	for id, n := range counts {
		for i := 0; i < n; i++ {
			out = append(out, &schema.Task{AssigneeID: id, Status: schema.StatusTodo})
		}
	}
	return out
}

func TestPick_LeastLoaded(t *testing.T) {
	got, err := Pick(users("u1", "u2", "u3"), assigned(map[string]int{"u2": 2}))
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	// u1 and u3 both have zero; the first in enumeration order wins.
	if got != "u1" {
		t.Errorf("Expected u1, got %s", got)
	}
}

func TestPick_TieGoesToFirst(t *testing.T) {
	got, err := Pick(users("u1", "u2", "u3"), assigned(map[string]int{"u1": 1, "u2": 1, "u3": 1}))
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	if got != "u1" {
		t.Errorf("Expected first candidate on tie, got %s", got)
	}
}

func TestPick_SkipsDoneAndUnassignedCounting(t *testing.T) {
	// Caller filters done tasks out; unassigned tasks count for no one.
	tasks := []*schema.Task{
		{AssigneeID: "u1", Status: schema.StatusTodo},
		{AssigneeID: "", Status: schema.StatusTodo},
	}
	got, err := Pick(users("u1", "u2"), tasks)
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	if got != "u2" {
		t.Errorf("Expected u2, got %s", got)
	}
}

func TestPick_NoCandidates(t *testing.T) {
	if _, err := Pick(nil, nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Expected ErrNoCandidates, got %v", err)
	}
}
