package agenda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fourquadrant/focusbridge/internal/services/device/router"
)

func (a *Agenda) getStatistics(args map[string]any) (router.Result, error) {
	if a.store == nil {
		return router.Result{}, errors.New("statistics storage is not configured")
	}
	statsType := stringArg(args, "type")
	since, err := statsWindow(statsType, a.now())
	if err != nil {
		return router.Result{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	stats, err := a.store.StatsSince(ctx, since)
	if err != nil {
		return router.Result{}, fmt.Errorf("get statistics: %w", err)
	}

	return router.Result{
		Message: fmt.Sprintf("Statistics (%s)", statsType),
		Data: map[string]any{
			"type":                statsType,
			"completed_pomodoros": stats.CompletedPomodoros,
			"total_focus_time":    stats.TotalFocusMinutes,
			"completed_tasks":     stats.CompletedTasks,
			"productivity_score":  productivityScore(stats.CompletedPomodoros, stats.CompletedTasks),
		},
	}, nil
}

// statsWindow maps a statistics type to the start of its reporting window.
// A zero time covers all recorded history.
func statsWindow(statsType string, now time.Time) (time.Time, error) {
	switch statsType {
	case "general", "pomodoro", "tasks":
		return time.Time{}, nil
	case "daily":
		year, month, day := now.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), nil
	case "weekly":
		return now.AddDate(0, 0, -7), nil
	case "monthly":
		return now.AddDate(0, -1, 0), nil
	}
	return time.Time{}, fmt.Errorf("invalid statistics type: %s", statsType)
}

// productivityScore weights finished pomodoros over completed tasks and
// caps the result at 100.
func productivityScore(pomodoros, tasks int) int {
	score := pomodoros*10 + tasks*5
	if score > 100 {
		score = 100
	}
	return score
}

func (a *Agenda) updateSettings(args map[string]any) (router.Result, error) {
	if a.store == nil {
		return router.Result{}, errors.New("settings storage is not configured")
	}
	if len(args) == 0 {
		return router.Result{}, errors.New("no settings provided")
	}

	a.mu.Lock()
	a.lastActivity = a.now()
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	updated := make([]string, 0, len(args))
	for key, value := range args {
		encoded, err := json.Marshal(value)
		if err != nil {
			return router.Result{}, fmt.Errorf("encode setting %s: %w", key, err)
		}
		if err := a.store.PutSetting(ctx, key, string(encoded)); err != nil {
			return router.Result{}, fmt.Errorf("update setting %s: %w", key, err)
		}
		updated = append(updated, key)
	}
	sort.Strings(updated)

	return router.Result{
		Message: fmt.Sprintf("Updated %d settings", len(updated)),
		Data:    map[string]any{"updated": updated},
	}, nil
}
