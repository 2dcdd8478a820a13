// Package sdk provides the client-side library for the Flowdeck board:
// REST calls, the live event subscription, local board state, and the
// conflict-resolution flow.
package sdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Conflict is returned by UpdateTask when the edit lost a version race.
// It carries both candidate snapshots for the resolver to choose from.
type Conflict struct {
	TaskID  string
	Payload schema.ConflictPayload
}

func (e *Conflict) Error() string {
	return fmt.Sprintf("task %s was modified by another user", e.TaskID)
}

// Client is a REST client for a Flowdeck daemon.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the daemon at baseURL, e.g.
// "http://localhost:7300".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs the session token used on every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register creates an account and signs the client in.
func (c *Client) Register(name, email, password string) (*schema.User, error) {
	return c.authenticate("/api/auth/register", map[string]string{
		"name": name, "email": email, "password": password,
	})
}

// Login signs the client in; the returned token is kept for later calls.
func (c *Client) Login(email, password string) (*schema.User, error) {
	return c.authenticate("/api/auth/login", map[string]string{
		"email": email, "password": password,
	})
}

func (c *Client) authenticate(path string, body map[string]string) (*schema.User, error) {
	var out struct {
		Token string       `json:"token"`
		User  *schema.User `json:"user"`
	}
	if err := c.do(http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return out.User, nil
}

// Me returns the signed-in user.
func (c *Client) Me() (*schema.User, error) {
	var out struct {
		User *schema.User `json:"user"`
	}
	if err := c.do(http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Tasks fetches all tasks, newest first. Together with Activities this
// is the baseline fetch clients do at connect time before relying on
// incremental events.
func (c *Client) Tasks() ([]*schema.Task, error) {
	var out []*schema.Task
	if err := c.do(http.MethodGet, "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TaskDraft is the body of a create request.
type TaskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	AssigneeID  string `json:"assignee_id,omitempty"`
}

// CreateTask creates a new task.
func (c *Client) CreateTask(draft TaskDraft) (*schema.Task, error) {
	var out schema.Task
	if err := c.do(http.MethodPost, "/api/tasks", draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TaskUpdate is a partial edit. Nil fields are left untouched; Version
// must carry the version the caller last saw for conflict detection.
type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	Version     int     `json:"version"`
}

// UpdateTask submits an edit. A version race comes back as a *Conflict
// error carrying both snapshots.
func (c *Client) UpdateTask(id string, update TaskUpdate) (*schema.Task, error) {
	var out schema.Task
	if err := c.do(http.MethodPut, "/api/tasks/"+id, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(id string) error {
	return c.do(http.MethodDelete, "/api/tasks/"+id, nil, nil)
}

// SmartAssign asks the server to hand the task to the least-loaded
// active user.
func (c *Client) SmartAssign(id string) (*schema.Task, error) {
	var out schema.Task
	if err := c.do(http.MethodPost, "/api/tasks/"+id+"/smart-assign", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveConflict submits the chosen snapshot as the authoritative state
// of the task. The server reconciles against whatever version is current
// and always advances it.
func (c *Client) ResolveConflict(taskID string, chosen *schema.Task, conflictID string) (*schema.Task, error) {
	body := map[string]any{"resolved": chosen, "conflict_id": conflictID}
	var out schema.Task
	if err := c.do(http.MethodPost, "/api/tasks/"+taskID+"/resolve-conflict", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Users fetches all active users.
func (c *Client) Users() ([]*schema.User, error) {
	var out []*schema.User
	if err := c.do(http.MethodGet, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Activities fetches the most recent activity records, newest first.
func (c *Client) Activities() ([]*schema.Activity, error) {
	var out []*schema.Activity
	if err := c.do(http.MethodGet, "/api/activities", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		var payload schema.ConflictPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: "conflict"}
		}
		taskID := ""
		if payload.Current != nil {
			taskID = payload.Current.ID
		}
		return &Conflict{TaskID: taskID, Payload: payload}
	}
	if resp.StatusCode >= 400 {
		var msg struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&msg)
		return &APIError{StatusCode: resp.StatusCode, Message: msg.Message}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
