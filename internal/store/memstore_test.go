package store

import (
	"errors"
	"testing"
	"time"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

func newTask(id, title string, version int) *schema.Task {
	now := time.Now().UTC()
	return &schema.Task{
		ID:        id,
		Title:     title,
		Status:    schema.StatusTodo,
		Priority:  schema.PriorityMedium,
		CreatorID: "u1",
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestUpdateTask_VersionCheck(t *testing.T) {
	m := NewMemStore(nil, nil)
	if err := m.InsertTask(newTask("t1", "Write docs", 1)); err != nil {
		t.Fatalf("InsertTask failed: %v", err)
	}

	// Matching expected version succeeds and bumps by exactly one.
	updated, err := m.UpdateTask("t1", 1, func(task *schema.Task) error {
		task.Status = schema.StatusInProgress
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Expected version 2, got %d", updated.Version)
	}

	// Stale expected version is rejected and returns the stored task.
	stale, err := m.UpdateTask("t1", 1, func(task *schema.Task) error {
		task.Status = schema.StatusDone
		return nil
	})
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("Expected ErrVersionMismatch, got %v", err)
	}
	if stale == nil || stale.Version != 2 {
		t.Errorf("Expected stored task at version 2, got %+v", stale)
	}

	// The rejected mutation must not have touched the stored task.
	got, _ := m.GetTask("t1")
	if got.Status != schema.StatusInProgress || got.Version != 2 {
		t.Errorf("Stored task changed by rejected update: %+v", got)
	}
}

func TestUpdateTask_ZeroExpectedSkipsCheck(t *testing.T) {
	m := NewMemStore(nil, nil)
	m.InsertTask(newTask("t1", "Write docs", 5))

	updated, err := m.UpdateTask("t1", 0, func(task *schema.Task) error { return nil })
	if err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if updated.Version != 6 {
		t.Errorf("Expected version 6, got %d", updated.Version)
	}
}

func TestDuplicateTitle(t *testing.T) {
	m := NewMemStore(nil, nil)
	m.InsertTask(newTask("t1", "Write docs", 1))

	// Insert with a case-insensitive duplicate.
	err := m.InsertTask(newTask("t2", "WRITE DOCS", 1))
	if !errors.Is(err, ErrDuplicateTitle) {
		t.Errorf("Expected ErrDuplicateTitle, got %v", err)
	}

	// Update renaming onto an existing title.
	m.InsertTask(newTask("t3", "Ship release", 1))
	_, err = m.UpdateTask("t3", 0, func(task *schema.Task) error {
		task.Title = "write docs"
		return nil
	})
	if !errors.Is(err, ErrDuplicateTitle) {
		t.Errorf("Expected ErrDuplicateTitle on rename, got %v", err)
	}

	// Keeping your own title is fine.
	if _, err := m.UpdateTask("t1", 0, func(task *schema.Task) error { return nil }); err != nil {
		t.Errorf("Self-titled update failed: %v", err)
	}

	// Deleting frees the title for reuse.
	if _, err := m.DeleteTask("t1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if err := m.InsertTask(newTask("t4", "Write docs", 1)); err != nil {
		t.Errorf("Title should be free after delete, got %v", err)
	}
}

func TestDeleteTask_NotFound(t *testing.T) {
	m := NewMemStore(nil, nil)
	if _, err := m.DeleteTask("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestListActivities_NewestFirstAndLimited(t *testing.T) {
	m := NewMemStore(nil, nil)
	for i := 0; i < 5; i++ {
		m.AppendActivity(&schema.Activity{
			ID:          string(rune('a' + i)),
			Action:      schema.ActionUpdated,
			Description: "x",
			CreatedAt:   time.Now().UTC(),
		})
	}

	got, err := m.ListActivities(3)
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	if got[0].ID != "e" || got[2].ID != "c" {
		t.Errorf("Expected newest first [e d c], got [%s %s %s]", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestUsers(t *testing.T) {
	m := NewMemStore(nil, nil)
	m.InsertUser(&schema.User{ID: "u1", Name: "Bea", Email: "bea@example.com", Active: true})
	m.InsertUser(&schema.User{ID: "u2", Name: "Al", Email: "al@example.com", Active: false})

	if err := m.InsertUser(&schema.User{ID: "u3", Name: "Other", Email: "BEA@example.com"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Expected ErrDuplicateEmail, got %v", err)
	}

	active, _ := m.ListUsers(true)
	if len(active) != 1 || active[0].ID != "u1" {
		t.Errorf("Expected only u1 active, got %v", active)
	}

	all, _ := m.ListUsers(false)
	if len(all) != 2 || all[0].Name != "Al" {
		t.Errorf("Expected [Al Bea] sorted by name, got %v", all)
	}

	u, err := m.GetUserByEmail("al@example.com")
	if err != nil || u.ID != "u2" {
		t.Errorf("GetUserByEmail failed: %v %v", u, err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersistence(dir)
	if err != nil {
		t.Fatalf("NewPersistence failed: %v", err)
	}

	m := NewMemStore(nil, p)
	m.InsertTask(newTask("t1", "Write docs", 1))
	m.InsertUser(&schema.User{ID: "u1", Name: "Bea", Email: "bea@example.com", Active: true})
	m.AppendActivity(&schema.Activity{ID: "a1", Action: schema.ActionCreated, Description: "created"})
	m.Wait()

	snap, err := p.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	m2 := NewMemStore(snap, nil)
	task, err := m2.GetTask("t1")
	if err != nil || task.Title != "Write docs" || task.Version != 1 {
		t.Errorf("Task did not survive round trip: %v %v", task, err)
	}
	if _, err := m2.GetUser("u1"); err != nil {
		t.Errorf("User did not survive round trip: %v", err)
	}
	acts, _ := m2.ListActivities(0)
	if len(acts) != 1 {
		t.Errorf("Expected 1 activity after reload, got %d", len(acts))
	}

	// The rebuilt title index must still enforce uniqueness.
	if err := m2.InsertTask(newTask("t9", "write docs", 1)); !errors.Is(err, ErrDuplicateTitle) {
		t.Errorf("Expected ErrDuplicateTitle after reload, got %v", err)
	}
}
