package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fourquadrant/focusbridge/internal/platform/id"
	"github.com/fourquadrant/focusbridge/internal/services/device/router"
	"github.com/fourquadrant/focusbridge/internal/services/device/storage"
)

const (
	minPriority = 1
	maxPriority = 4

	// Importance or urgency at or above this value counts as high when
	// placing a task on the Eisenhower matrix.
	highPriorityThreshold = 3

	storeTimeout = 2 * time.Second
)

// quadrant places a task on the Eisenhower matrix: Q1 important and
// urgent, Q2 important only, Q3 urgent only, Q4 neither.
func quadrant(importance, urgency int) int {
	important := importance >= highPriorityThreshold
	urgent := urgency >= highPriorityThreshold
	switch {
	case important && urgent:
		return 1
	case important:
		return 2
	case urgent:
		return 3
	}
	return 4
}

func (a *Agenda) manageTasks(args map[string]any) (router.Result, error) {
	if a.store == nil {
		return router.Result{}, errors.New("task storage is not configured")
	}
	action := stringArg(args, "action")

	a.mu.Lock()
	a.lastActivity = a.now()
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	switch action {
	case "create":
		return a.createTask(ctx, args)
	case "update":
		return a.updateTask(ctx, args)
	case "delete":
		return a.deleteTask(ctx, args)
	case "complete":
		return a.completeTask(ctx, args)
	case "list":
		return a.listTasks(ctx)
	}
	return router.Result{}, fmt.Errorf("invalid action: %s (expected create, update, delete, complete, or list)", action)
}

func (a *Agenda) createTask(ctx context.Context, args map[string]any) (router.Result, error) {
	taskData, ok := args["task_data"].(map[string]any)
	if !ok {
		return router.Result{}, errors.New("task_data is required for create")
	}
	name := stringArg(taskData, "name")
	if name == "" {
		return router.Result{}, errors.New("task name must not be blank")
	}
	importance := intArg(taskData, "importance", 2)
	urgency := intArg(taskData, "urgency", 2)
	if importance < minPriority || importance > maxPriority {
		return router.Result{}, fmt.Errorf("importance must be between %d and %d", minPriority, maxPriority)
	}
	if urgency < minPriority || urgency > maxPriority {
		return router.Result{}, fmt.Errorf("urgency must be between %d and %d", minPriority, maxPriority)
	}

	taskID, err := id.NewID()
	if err != nil {
		return router.Result{}, fmt.Errorf("generate task id: %w", err)
	}
	now := a.now()
	task := storage.Task{
		ID:          taskID,
		Name:        name,
		Description: stringArg(taskData, "description"),
		Importance:  importance,
		Urgency:     urgency,
		Quadrant:    quadrant(importance, urgency),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.PutTask(ctx, task); err != nil {
		return router.Result{}, fmt.Errorf("create task: %w", err)
	}
	return router.Result{
		Message: fmt.Sprintf("Created task %s in quadrant %d", task.Name, task.Quadrant),
		Data:    map[string]any{"task": taskFields(task)},
	}, nil
}

func (a *Agenda) updateTask(ctx context.Context, args map[string]any) (router.Result, error) {
	taskID := stringArg(args, "task_id")
	if taskID == "" {
		return router.Result{}, errors.New("task_id is required for update")
	}
	taskData, ok := args["task_data"].(map[string]any)
	if !ok {
		return router.Result{}, errors.New("task_data is required for update")
	}

	task, err := a.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return router.Result{}, fmt.Errorf("task not found: %s", taskID)
		}
		return router.Result{}, fmt.Errorf("update task: %w", err)
	}

	if name := stringArg(taskData, "name"); name != "" {
		task.Name = name
	}
	if _, ok := taskData["description"]; ok {
		task.Description = stringArg(taskData, "description")
	}
	task.Importance = intArg(taskData, "importance", task.Importance)
	task.Urgency = intArg(taskData, "urgency", task.Urgency)
	if task.Importance < minPriority || task.Importance > maxPriority {
		return router.Result{}, fmt.Errorf("importance must be between %d and %d", minPriority, maxPriority)
	}
	if task.Urgency < minPriority || task.Urgency > maxPriority {
		return router.Result{}, fmt.Errorf("urgency must be between %d and %d", minPriority, maxPriority)
	}
	task.Quadrant = quadrant(task.Importance, task.Urgency)
	task.UpdatedAt = a.now()

	if err := a.store.PutTask(ctx, task); err != nil {
		return router.Result{}, fmt.Errorf("update task: %w", err)
	}
	return router.Result{
		Message: fmt.Sprintf("Updated task %s", task.Name),
		Data:    map[string]any{"task": taskFields(task)},
	}, nil
}

func (a *Agenda) deleteTask(ctx context.Context, args map[string]any) (router.Result, error) {
	taskID := stringArg(args, "task_id")
	if taskID == "" {
		return router.Result{}, errors.New("task_id is required for delete")
	}
	if err := a.store.DeleteTask(ctx, taskID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return router.Result{}, fmt.Errorf("task not found: %s", taskID)
		}
		return router.Result{}, fmt.Errorf("delete task: %w", err)
	}
	return router.Result{
		Message: "Deleted task",
		Data:    map[string]any{"task_id": taskID},
	}, nil
}

func (a *Agenda) completeTask(ctx context.Context, args map[string]any) (router.Result, error) {
	taskID := stringArg(args, "task_id")
	if taskID == "" {
		return router.Result{}, errors.New("task_id is required for complete")
	}
	task, err := a.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return router.Result{}, fmt.Errorf("task not found: %s", taskID)
		}
		return router.Result{}, fmt.Errorf("complete task: %w", err)
	}
	if task.Completed {
		return router.Result{}, fmt.Errorf("task is already completed: %s", taskID)
	}

	now := a.now()
	task.Completed = true
	task.CompletedAt = now
	task.UpdatedAt = now
	if err := a.store.PutTask(ctx, task); err != nil {
		return router.Result{}, fmt.Errorf("complete task: %w", err)
	}
	return router.Result{
		Message: fmt.Sprintf("Completed task %s", task.Name),
		Data:    map[string]any{"task": taskFields(task)},
	}, nil
}

func (a *Agenda) listTasks(ctx context.Context) (router.Result, error) {
	tasks, err := a.store.ListTasks(ctx)
	if err != nil {
		return router.Result{}, fmt.Errorf("list tasks: %w", err)
	}
	items := make([]any, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskFields(task))
	}
	return router.Result{
		Message: fmt.Sprintf("Found %d tasks", len(tasks)),
		Data:    map[string]any{"tasks": items, "count": len(tasks)},
	}, nil
}

func taskFields(task storage.Task) map[string]any {
	fields := map[string]any{
		"id":         task.ID,
		"name":       task.Name,
		"importance": task.Importance,
		"urgency":    task.Urgency,
		"quadrant":   task.Quadrant,
		"completed":  task.Completed,
		"created_at": task.CreatedAt.UnixMilli(),
		"updated_at": task.UpdatedAt.UnixMilli(),
	}
	if task.Description != "" {
		fields["description"] = task.Description
	}
	if !task.CompletedAt.IsZero() {
		fields["completed_at"] = task.CompletedAt.UnixMilli()
	}
	return fields
}
