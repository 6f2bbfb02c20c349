// Package storage defines persistence contracts for device executor state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Task stores one prioritized task with its Eisenhower placement.
type Task struct {
	ID          string
	Name        string
	Description string
	Importance  int
	Urgency     int
	Quadrant    int
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// Session stores one finished focus session.
type Session struct {
	ID              string
	TaskName        string
	TaskID          string
	DurationMinutes int
	StartedAt       time.Time
	EndedAt         time.Time
	Completed       bool
}

// Stats aggregates finished sessions and completed tasks over a window.
type Stats struct {
	CompletedPomodoros int
	TotalFocusMinutes  int
	CompletedTasks     int
}

// TaskStore persists prioritized tasks.
type TaskStore interface {
	PutTask(ctx context.Context, task Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context) ([]Task, error)
}

// SettingsStore persists executor settings as opaque values.
type SettingsStore interface {
	PutSetting(ctx context.Context, key string, value string) error
	ListSettings(ctx context.Context) (map[string]string, error)
}

// SessionStore records finished sessions and answers aggregate queries.
type SessionStore interface {
	RecordSession(ctx context.Context, session Session) error
	StatsSince(ctx context.Context, since time.Time) (Stats, error)
}

// Store is the full persistence surface the device executor depends on.
type Store interface {
	TaskStore
	SettingsStore
	SessionStore
}
