// Package sqlite provides a SQLite-backed device storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fourquadrant/focusbridge/internal/platform/storage/sqlitemigrate"
	"github.com/fourquadrant/focusbridge/internal/services/device/storage"
	"github.com/fourquadrant/focusbridge/internal/services/device/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists device executor state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite device store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutTask upserts one task record.
func (s *Store) PutTask(ctx context.Context, task storage.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(task.ID) == "" {
		return fmt.Errorf("task id is required")
	}
	if strings.TrimSpace(task.Name) == "" {
		return fmt.Errorf("task name is required")
	}

	completed := 0
	if task.Completed {
		completed = 1
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO tasks (id, name, description, importance, urgency, quadrant, completed, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   importance = excluded.importance,
		   urgency = excluded.urgency,
		   quadrant = excluded.quadrant,
		   completed = excluded.completed,
		   updated_at = excluded.updated_at,
		   completed_at = excluded.completed_at`,
		task.ID,
		task.Name,
		task.Description,
		task.Importance,
		task.Urgency,
		task.Quadrant,
		completed,
		toMillis(task.CreatedAt),
		toMillis(task.UpdatedAt),
		toMillis(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

// GetTask returns one task record by id.
func (s *Store) GetTask(ctx context.Context, id string) (storage.Task, error) {
	if err := ctx.Err(); err != nil {
		return storage.Task{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Task{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Task{}, fmt.Errorf("task id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, description, importance, urgency, quadrant, completed, created_at, updated_at, completed_at
		 FROM tasks
		 WHERE id = ?`,
		id,
	)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Task{}, storage.ErrNotFound
		}
		return storage.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// DeleteTask removes one task record by id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("task id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListTasks returns all task records ordered by creation time.
func (s *Store) ListTasks(ctx context.Context) ([]storage.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, description, importance, urgency, quadrant, completed, created_at, updated_at, completed_at
		 FROM tasks
		 ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []storage.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// PutSetting upserts one setting value.
func (s *Store) PutSetting(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("setting key is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO settings (key, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at`,
		key,
		value,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

// ListSettings returns all stored settings.
func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return settings, nil
}

// RecordSession appends one finished focus session.
func (s *Store) RecordSession(ctx context.Context, session storage.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	completed := 0
	if session.Completed {
		completed = 1
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (id, task_name, task_id, duration_minutes, started_at, ended_at, completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.TaskName,
		session.TaskID,
		session.DurationMinutes,
		toMillis(session.StartedAt),
		toMillis(session.EndedAt),
		completed,
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// StatsSince aggregates finished sessions and completed tasks ending at or
// after since. A zero since covers all recorded history.
func (s *Store) StatsSince(ctx context.Context, since time.Time) (storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return storage.Stats{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Stats{}, fmt.Errorf("storage is not configured")
	}

	sinceMillis := toMillis(since)

	var stats storage.Stats
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0)
		 FROM sessions
		 WHERE completed = 1 AND ended_at >= ?`,
		sinceMillis,
	)
	if err := row.Scan(&stats.CompletedPomodoros, &stats.TotalFocusMinutes); err != nil {
		return storage.Stats{}, fmt.Errorf("session stats: %w", err)
	}

	row = s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*)
		 FROM tasks
		 WHERE completed = 1 AND completed_at >= ?`,
		sinceMillis,
	)
	if err := row.Scan(&stats.CompletedTasks); err != nil {
		return storage.Stats{}, fmt.Errorf("task stats: %w", err)
	}

	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (storage.Task, error) {
	var task storage.Task
	var completed int
	var createdAt, updatedAt, completedAt int64
	if err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Description,
		&task.Importance,
		&task.Urgency,
		&task.Quadrant,
		&completed,
		&createdAt,
		&updatedAt,
		&completedAt,
	); err != nil {
		return storage.Task{}, err
	}
	task.Completed = completed != 0
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updatedAt)
	task.CompletedAt = fromMillis(completedAt)
	return task, nil
}
