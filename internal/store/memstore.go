package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

// MemStore is the thread-safe in-memory board store.
type MemStore struct {
	mu         sync.RWMutex
	tasks      map[string]*schema.Task
	titles     map[string]string // lower(title) -> task ID
	activities []*schema.Activity
	users      map[string]*schema.User
	emails     map[string]string // lower(email) -> user ID
	persister  *Persistence
	wg         sync.WaitGroup
}

// NewMemStore initializes a store from a loaded snapshot (nil for empty)
// and an optional persister for background snapshot writes.
func NewMemStore(initial *Snapshot, p *Persistence) *MemStore {
	m := &MemStore{
		tasks:     make(map[string]*schema.Task),
		titles:    make(map[string]string),
		users:     make(map[string]*schema.User),
		emails:    make(map[string]string),
		persister: p,
	}
	if initial != nil {
		for id, t := range initial.Tasks {
			m.tasks[id] = t.Clone()
			m.titles[strings.ToLower(t.Title)] = id
		}
		m.activities = append(m.activities, initial.Activities...)
		for id, u := range initial.Users {
			cp := *u
			m.users[id] = &cp
			m.emails[strings.ToLower(u.Email)] = id
		}
	}
	return m
}

// Wait blocks until all background snapshot writes have completed.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// --- Tasks ---

func (m *MemStore) GetTask(id string) (*schema.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (m *MemStore) ListTasks() ([]*schema.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*schema.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemStore) InsertTask(t *schema.Task) error {
	m.mu.Lock()

	key := strings.ToLower(t.Title)
	if other, taken := m.titles[key]; taken && other != t.ID {
		m.mu.Unlock()
		return ErrDuplicateTitle
	}
	m.tasks[t.ID] = t.Clone()
	m.titles[key] = t.ID

	snapshot := m.copyTasks()
	m.mu.Unlock()

	m.saveTasks(snapshot)
	return nil
}

func (m *MemStore) UpdateTask(id string, expected int, mutate func(*schema.Task) error) (*schema.Task, error) {
	m.mu.Lock()

	current, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	if expected != 0 && current.Version != expected {
		stale := current.Clone()
		m.mu.Unlock()
		return stale, ErrVersionMismatch
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	key := strings.ToLower(next.Title)
	if other, taken := m.titles[key]; taken && other != id {
		m.mu.Unlock()
		return nil, ErrDuplicateTitle
	}

	next.Version = current.Version + 1
	delete(m.titles, strings.ToLower(current.Title))
	m.titles[key] = id
	m.tasks[id] = next

	result := next.Clone()
	snapshot := m.copyTasks()
	m.mu.Unlock()

	m.saveTasks(snapshot)
	return result, nil
}

func (m *MemStore) DeleteTask(id string) (*schema.Task, error) {
	m.mu.Lock()

	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	delete(m.tasks, id)
	delete(m.titles, strings.ToLower(t.Title))

	result := t.Clone()
	snapshot := m.copyTasks()
	m.mu.Unlock()

	m.saveTasks(snapshot)
	return result, nil
}

// copyTasks deep-copies the task map for a safe background save.
// It MUST be called while holding m.mu.
func (m *MemStore) copyTasks() map[string]*schema.Task {
	cp := make(map[string]*schema.Task, len(m.tasks))
	for id, t := range m.tasks {
		cp[id] = t.Clone()
	}
	return cp
}

func (m *MemStore) saveTasks(snapshot map[string]*schema.Task) {
	if m.persister == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.persister.SaveTasks(snapshot)
	}()
}

// --- Activities ---

func (m *MemStore) AppendActivity(a *schema.Activity) error {
	m.mu.Lock()
	cp := *a
	m.activities = append(m.activities, &cp)

	snapshot := make([]*schema.Activity, len(m.activities))
	copy(snapshot, m.activities)
	m.mu.Unlock()

	if m.persister != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.persister.SaveActivities(snapshot)
		}()
	}
	return nil
}

func (m *MemStore) ListActivities(limit int) ([]*schema.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.activities)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*schema.Activity, 0, limit)
	// Stored oldest first; walk backwards for newest-first output.
	for i := n - 1; i >= n-limit; i-- {
		cp := *m.activities[i]
		out = append(out, &cp)
	}
	return out, nil
}

// --- Users ---

func (m *MemStore) GetUser(id string) (*schema.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) GetUserByEmail(email string) (*schema.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemStore) ListUsers(activeOnly bool) ([]*schema.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*schema.User, 0, len(m.users))
	for _, u := range m.users {
		if activeOnly && !u.Active {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) InsertUser(u *schema.User) error {
	m.mu.Lock()

	key := strings.ToLower(u.Email)
	if _, taken := m.emails[key]; taken {
		m.mu.Unlock()
		return ErrDuplicateEmail
	}
	cp := *u
	m.users[u.ID] = &cp
	m.emails[key] = u.ID

	snapshot := make(map[string]*schema.User, len(m.users))
	for id, usr := range m.users {
		ucp := *usr
		snapshot[id] = &ucp
	}
	m.mu.Unlock()

	if m.persister != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.persister.SaveUsers(snapshot)
		}()
	}
	return nil
}
