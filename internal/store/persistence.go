package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

const (
	tasksFile      = "tasks.json"
	activitiesFile = "activities.json"
	usersFile      = "users.json"
)

// Snapshot is the on-disk shape of the board, split across one JSON file
// per collection.
type Snapshot struct {
	Tasks      map[string]*schema.Task
	Activities []*schema.Activity
	Users      map[string]*schema.User
}

// Persistence handles the disk I/O for the MemStore.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler, creating the data
// directory if needed.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir}, nil
}

// SaveTasks writes the task collection to disk atomically.
func (p *Persistence) SaveTasks(tasks map[string]*schema.Task) error {
	return p.save(tasksFile, tasks)
}

// SaveActivities writes the activity log to disk atomically.
func (p *Persistence) SaveActivities(activities []*schema.Activity) error {
	return p.save(activitiesFile, activities)
}

// SaveUsers writes the user collection to disk atomically.
func (p *Persistence) SaveUsers(users map[string]*schema.User) error {
	return p.save(usersFile, users)
}

// save marshals v and writes it via a temp file plus atomic rename, so a
// crash mid-write leaves either the old snapshot or the new one, never a
// torn file.
func (p *Persistence) save(name string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := filepath.Join(p.DataDir, name)
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, filePath)
}

// LoadAll reads whatever snapshot files exist in the data directory.
// Missing or unreadable files are skipped with a warning; a fresh data
// directory simply yields an empty snapshot.
func (p *Persistence) LoadAll() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &Snapshot{
		Tasks: make(map[string]*schema.Task),
		Users: make(map[string]*schema.User),
	}
	loadJSON(filepath.Join(p.DataDir, tasksFile), &snap.Tasks)
	loadJSON(filepath.Join(p.DataDir, activitiesFile), &snap.Activities)
	loadJSON(filepath.Join(p.DataDir, usersFile), &snap.Users)
	return snap, nil
}

func loadJSON(path string, v any) {
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("could not read snapshot file", slog.String("path", path), slog.String("error", err.Error()))
		}
		return
	}
	if err := json.Unmarshal(content, v); err != nil {
		slog.Warn("could not parse snapshot file", slog.String("path", path), slog.String("error", err.Error()))
	}
}
