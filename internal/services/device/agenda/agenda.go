// Package agenda implements the device-side command set: focus sessions,
// breaks, prioritized tasks, statistics, and executor settings.
//
// Sessions and breaks are in-memory and single-owner; tasks, settings, and
// finished sessions persist through the storage layer. All state behind one
// mutex, commands are short and never block on the network.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fourquadrant/focusbridge/internal/services/device/router"
	"github.com/fourquadrant/focusbridge/internal/services/device/storage"
)

const (
	defaultFocusMinutes = 25
	shortBreakMinutes   = 5
)

// Session lifecycle states.
const (
	stateIdle    = "idle"
	stateRunning = "running"
	statePaused  = "paused"
)

var errNoSession = errors.New("no pomodoro session is running")

type session struct {
	id          string
	taskName    string
	taskID      string
	minutes     int
	startedAt   time.Time
	endsAt      time.Time
	state       string
	pausedAt    time.Time
	pausedTotal time.Duration
}

type breakState struct {
	kind      string
	minutes   int
	startedAt time.Time
}

// Agenda owns the executor state reachable from the command surface.
type Agenda struct {
	mu           sync.Mutex
	store        storage.Store
	now          func() time.Time
	session      *session
	activeBreak  *breakState
	lastActivity time.Time
}

// New returns an agenda backed by the given store.
func New(store storage.Store) *Agenda {
	return &Agenda{
		store: store,
		now:   time.Now,
	}
}

// Features reports the command families this executor answers. The relay
// exposes the map on its status route.
func (a *Agenda) Features() map[string]bool {
	return map[string]bool{
		"pomodoro_control": true,
		"break_management": true,
		"task_management":  true,
		"statistics":       true,
		"settings":         true,
	}
}

// Register binds every agenda command to the router.
func (a *Agenda) Register(r *router.Router) error {
	bindings := []struct {
		name    string
		schema  router.Schema
		handler router.Handler
	}{
		{
			name: "start_pomodoro",
			schema: router.Schema{
				Required: []string{"task_name"},
				Fields: map[string]router.Kind{
					"task_name": router.String,
					"duration":  router.Number,
					"task_id":   router.String,
				},
			},
			handler: a.startPomodoro,
		},
		{
			name: "control_pomodoro",
			schema: router.Schema{
				Required: []string{"action"},
				Fields: map[string]router.Kind{
					"action": router.String,
					"reason": router.String,
				},
			},
			handler: a.controlPomodoro,
		},
		{
			name: "manage_break",
			schema: router.Schema{
				Required: []string{"action"},
				Fields:   map[string]router.Kind{"action": router.String},
			},
			handler: a.manageBreak,
		},
		{
			name: "manage_tasks",
			schema: router.Schema{
				Required: []string{"action"},
				Fields: map[string]router.Kind{
					"action":    router.String,
					"task_id":   router.String,
					"task_data": router.Object,
				},
			},
			handler: a.manageTasks,
		},
		{
			name: "get_statistics",
			schema: router.Schema{
				Required: []string{"type"},
				Fields:   map[string]router.Kind{"type": router.String},
			},
			handler: a.getStatistics,
		},
		{name: "update_settings", handler: a.updateSettings},
		{name: "check_status", handler: a.checkStatus},
		{name: "ping", handler: a.ping},
	}

	for _, binding := range bindings {
		if err := r.RegisterWithSchema(binding.name, binding.schema, binding.handler); err != nil {
			return fmt.Errorf("register %s: %w", binding.name, err)
		}
	}
	return nil
}

func (a *Agenda) startPomodoro(args map[string]any) (router.Result, error) {
	taskName := stringArg(args, "task_name")
	if taskName == "" {
		return router.Result{}, errors.New("task_name must not be blank")
	}
	minutes := intArg(args, "duration", defaultFocusMinutes)
	if minutes <= 0 {
		return router.Result{}, errors.New("duration must be positive")
	}
	taskID := stringArg(args, "task_id")

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.reapLocked(now)
	if a.session != nil {
		return router.Result{}, fmt.Errorf("a pomodoro session is already running for %s", a.session.taskName)
	}

	s := &session{
		id:        fmt.Sprintf("session_%d", now.UnixNano()),
		taskName:  taskName,
		taskID:    taskID,
		minutes:   minutes,
		startedAt: now,
		endsAt:    now.Add(time.Duration(minutes) * time.Minute),
		state:     stateRunning,
	}
	a.session = s
	a.lastActivity = now

	data := map[string]any{
		"session_id": s.id,
		"task_name":  s.taskName,
		"duration":   s.minutes,
		"start_time": s.startedAt.UnixMilli(),
		"end_time":   s.endsAt.UnixMilli(),
	}
	if taskID != "" {
		data["task_id"] = taskID
	}
	return router.Result{
		Message: fmt.Sprintf("Started pomodoro for %s (%d minutes)", taskName, minutes),
		Data:    data,
	}, nil
}

func (a *Agenda) controlPomodoro(args map[string]any) (router.Result, error) {
	action := stringArg(args, "action")

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.reapLocked(now)
	a.lastActivity = now

	switch action {
	case "pause":
		if a.session == nil {
			return router.Result{}, errNoSession
		}
		if a.session.state == statePaused {
			return router.Result{}, errors.New("pomodoro session is already paused")
		}
		a.session.state = statePaused
		a.session.pausedAt = now
		return router.Result{
			Message: "Pomodoro paused",
			Data:    map[string]any{"state": statePaused, "session_id": a.session.id},
		}, nil

	case "resume":
		if a.session == nil {
			return router.Result{}, errNoSession
		}
		if a.session.state != statePaused {
			return router.Result{}, errors.New("pomodoro session is not paused")
		}
		paused := now.Sub(a.session.pausedAt)
		a.session.pausedTotal += paused
		a.session.endsAt = a.session.endsAt.Add(paused)
		a.session.state = stateRunning
		return router.Result{
			Message: "Pomodoro resumed",
			Data:    map[string]any{"state": stateRunning, "session_id": a.session.id},
		}, nil

	case "stop":
		if a.session == nil {
			return router.Result{}, errNoSession
		}
		s := a.session
		a.session = nil
		a.recordSessionLocked(s, now, false)
		return router.Result{
			Message: fmt.Sprintf("Stopped pomodoro for %s", s.taskName),
			Data:    map[string]any{"session_id": s.id, "task_name": s.taskName},
		}, nil

	case "status":
		if a.session == nil {
			return router.Result{
				Message: "No active pomodoro session",
				Data:    map[string]any{"state": stateIdle, "remaining_time": 0},
			}, nil
		}
		remaining := a.session.endsAt.Sub(now)
		if a.session.state == statePaused {
			remaining = a.session.endsAt.Sub(a.session.pausedAt)
		}
		if remaining < 0 {
			remaining = 0
		}
		return router.Result{
			Message: fmt.Sprintf("Pomodoro %s for %s", a.session.state, a.session.taskName),
			Data: map[string]any{
				"state":          a.session.state,
				"session_id":     a.session.id,
				"task_name":      a.session.taskName,
				"remaining_time": int(remaining.Seconds()),
			},
		}, nil
	}

	return router.Result{}, fmt.Errorf("invalid action: %s (expected pause, resume, stop, or status)", action)
}

func (a *Agenda) manageBreak(args map[string]any) (router.Result, error) {
	action := stringArg(args, "action")

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.lastActivity = now

	switch action {
	case "start":
		b := &breakState{kind: "short_break", minutes: shortBreakMinutes, startedAt: now}
		a.activeBreak = b
		return router.Result{
			Message: fmt.Sprintf("Started %d minute break", b.minutes),
			Data: map[string]any{
				"break_type": b.kind,
				"duration":   b.minutes,
				"start_time": b.startedAt.UnixMilli(),
			},
		}, nil
	case "skip":
		a.activeBreak = nil
		return router.Result{Message: "Break skipped"}, nil
	}

	return router.Result{}, fmt.Errorf("invalid action: %s (expected start or skip)", action)
}

func (a *Agenda) checkStatus(map[string]any) (router.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.reapLocked(now)

	features := make([]string, 0, 5)
	for feature, available := range a.Features() {
		if available {
			features = append(features, feature)
		}
	}
	lastActivity := a.lastActivity
	if lastActivity.IsZero() {
		lastActivity = now
	}
	return router.Result{
		Message: "Server is running",
		Data: map[string]any{
			"server_running":     true,
			"features_available": features,
			"last_activity":      lastActivity.UnixMilli(),
		},
	}, nil
}

func (a *Agenda) ping(map[string]any) (router.Result, error) {
	return router.Result{Message: "pong"}, nil
}

// reapLocked retires a running session whose end time has passed, recording
// it as completed. Callers must hold the mutex.
func (a *Agenda) reapLocked(now time.Time) {
	if a.session == nil || a.session.state != stateRunning {
		return
	}
	if now.Before(a.session.endsAt) {
		return
	}
	s := a.session
	a.session = nil
	a.recordSessionLocked(s, s.endsAt, true)
}

func (a *Agenda) recordSessionLocked(s *session, endedAt time.Time, completed bool) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := a.store.RecordSession(ctx, storage.Session{
		ID:              s.id,
		TaskName:        s.taskName,
		TaskID:          s.taskID,
		DurationMinutes: s.minutes,
		StartedAt:       s.startedAt,
		EndedAt:         endedAt,
		Completed:       completed,
	})
	if err != nil {
		log.Printf("agenda: record session %s: %v", s.id, err)
	}
}

func stringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

func intArg(args map[string]any, key string, fallback int) int {
	switch value := args[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	case int64:
		return int(value)
	}
	return fallback
}
