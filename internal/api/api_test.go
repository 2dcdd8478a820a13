package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowdeck-dev/flowdeck/internal/auth"
	"github.com/flowdeck-dev/flowdeck/internal/board"
	"github.com/flowdeck-dev/flowdeck/internal/hub"
	"github.com/flowdeck-dev/flowdeck/internal/store"
	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := store.NewMemStore(nil, nil)
	eventHub := hub.New()
	h := &Handler{
		Store:   m,
		Applier: board.NewApplier(m, eventHub),
		Hub:     eventHub,
		Auth:    auth.NewManager("test-secret", time.Hour, m),
	}
	r := gin.New()
	h.Mount(r)
	return r, h
}

func request(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// registerUser signs up a user and returns the session token.
func registerUser(t *testing.T, r *gin.Engine, name, email string) string {
	t.Helper()
	w := request(r, "POST", "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "hunter22",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Register failed with %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	json.Unmarshal(w.Body.Bytes(), &out)
	return out.Token
}

func createTask(t *testing.T, r *gin.Engine, token, title string) schema.Task {
	t.Helper()
	w := request(r, "POST", "/api/tasks", token, map[string]string{"title": title})
	if w.Code != http.StatusCreated {
		t.Fatalf("CreateTask failed with %d: %s", w.Code, w.Body.String())
	}
	var task schema.Task
	json.Unmarshal(w.Body.Bytes(), &task)
	return task
}

func TestHealth(t *testing.T) {
	r, _ := setupTestRouter(t)
	w := request(r, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	r, _ := setupTestRouter(t)
	registerUser(t, r, "Alice", "alice@example.com")

	// Duplicate email
	w := request(r, "POST", "/api/auth/register", "", map[string]string{
		"name": "Alice again", "email": "alice@example.com", "password": "hunter22",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for duplicate email, got %d", w.Code)
	}

	// Login
	w = request(r, "POST", "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "hunter22",
	})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	// Wrong password
	w = request(r, "POST", "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := request(r, "GET", "/api/tasks", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", w.Code)
	}

	// The websocket endpoint rejects unauthenticated handshakes too.
	w = request(r, "GET", "/ws", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for ws without token, got %d", w.Code)
	}
}

func TestCreateTask(t *testing.T) {
	r, _ := setupTestRouter(t)
	token := registerUser(t, r, "Alice", "alice@example.com")

	task := createTask(t, r, token, "Write docs")
	if task.Version != 1 || task.Status != schema.StatusTodo {
		t.Errorf("Unexpected task: %+v", task)
	}

	// Duplicate title
	w := request(r, "POST", "/api/tasks", token, map[string]string{"title": "write DOCS"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for duplicate title, got %d", w.Code)
	}

	// Column name as title
	w = request(r, "POST", "/api/tasks", token, map[string]string{"title": "In Progress"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for column-name title, got %d", w.Code)
	}
}

func TestUpdateTask_ConflictResponse(t *testing.T) {
	r, _ := setupTestRouter(t)
	token := registerUser(t, r, "Alice", "alice@example.com")
	task := createTask(t, r, token, "Write docs")

	// First edit at version 1 succeeds.
	w := request(r, "PUT", "/api/tasks/"+task.ID, token, map[string]any{
		"status": "inprogress", "version": 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	// Second edit still claiming version 1 comes back as 409 with both
	// candidate snapshots.
	w = request(r, "PUT", "/api/tasks/"+task.ID, token, map[string]any{
		"status": "done", "version": 1,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d: %s", w.Code, w.Body.String())
	}

	var payload schema.ConflictPayload
	json.Unmarshal(w.Body.Bytes(), &payload)
	if payload.Current == nil || payload.Current.Version != 2 {
		t.Errorf("Expected current snapshot at version 2, got %+v", payload.Current)
	}
	if payload.Proposed == nil || payload.Proposed.Status != schema.StatusDone {
		t.Errorf("Expected proposed snapshot with the attempted edit, got %+v", payload.Proposed)
	}
}

func TestUpdateTask_NotFound(t *testing.T) {
	r, _ := setupTestRouter(t)
	token := registerUser(t, r, "Alice", "alice@example.com")

	w := request(r, "PUT", "/api/tasks/missing", token, map[string]any{"status": "done"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestResolveConflict(t *testing.T) {
	r, _ := setupTestRouter(t)
	token := registerUser(t, r, "Alice", "alice@example.com")
	task := createTask(t, r, token, "Write docs")

	// Resolution always advances the version, even resubmitting the
	// current snapshot unchanged.
	w := request(r, "POST", "/api/tasks/"+task.ID+"/resolve-conflict", token, map[string]any{
		"resolved": task, "conflict_id": "c1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resolved schema.Task
	json.Unmarshal(w.Body.Bytes(), &resolved)
	if resolved.Version != task.Version+1 {
		t.Errorf("Expected version %d, got %d", task.Version+1, resolved.Version)
	}
}

func TestSmartAssign(t *testing.T) {
	r, _ := setupTestRouter(t)
	token := registerUser(t, r, "Alice", "alice@example.com")
	registerUser(t, r, "Bob", "bob@example.com")
	task := createTask(t, r, token, "Fresh task")

	w := request(r, "POST", "/api/tasks/"+task.ID+"/smart-assign", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated schema.Task
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.AssigneeID == "" {
		t.Error("Expected an assignee to be picked")
	}
	if updated.Version != task.Version+1 {
		t.Errorf("Expected version bump, got %d", updated.Version)
	}
}

func TestDeleteTask(t *testing.T) {
	r, _ := setupTestRouter(t)
	token := registerUser(t, r, "Alice", "alice@example.com")
	task := createTask(t, r, token, "Write docs")

	w := request(r, "DELETE", "/api/tasks/"+task.ID, token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	w = request(r, "DELETE", "/api/tasks/"+task.ID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", w.Code)
	}
}

func TestActivitiesFeed(t *testing.T) {
	r, _ := setupTestRouter(t)
	token := registerUser(t, r, "Alice", "alice@example.com")

	for i := 0; i < 25; i++ {
		createTask(t, r, token, fmt.Sprintf("Task %d", i))
	}

	w := request(r, "GET", "/api/activities", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var feed []*schema.Activity
	json.Unmarshal(w.Body.Bytes(), &feed)
	if len(feed) != 20 {
		t.Errorf("Expected feed capped at 20, got %d", len(feed))
	}
	if feed[0].Description != `created task "Task 24"` {
		t.Errorf("Expected newest first, got %s", feed[0].Description)
	}
}

func TestListUsers(t *testing.T) {
	r, _ := setupTestRouter(t)
	token := registerUser(t, r, "Bea", "bea@example.com")
	registerUser(t, r, "Al", "al@example.com")

	w := request(r, "GET", "/api/users", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var users []*schema.User
	json.Unmarshal(w.Body.Bytes(), &users)
	if len(users) != 2 || users[0].Name != "Al" {
		t.Errorf("Expected [Al Bea], got %v", users)
	}
	// Password hashes never leave the server.
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Error("Response leaked password material")
	}
}
