package achievements

import (
	"context"
	"encoding/json"
	"fmt"
)

// conditionFunc evaluates one condition type against a user's history.
type conditionFunc func(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error)

// conditions is the closed dispatch table mapping condition-type tags to
// evaluators. Unknown tags are handled (logged, evaluated to false) by
// the engine, never here.
var conditions = map[string]conditionFunc{
	"task_count":       evalTaskCount,
	"time_based_tasks": evalTimeBasedTasks,
	"streak_tasks":     evalStreakTasks,
	"streak_days":      evalStreakDays,
	"streak_perfect":   evalStreakPerfect,
	"module_count":     evalModuleCount,
	"first_day_tasks":  evalFirstDayTasks,
	"perfect_tasks":    evalPerfectTasks,
	"no_hints_tasks":   evalNoHintsTasks,
}

type countCondition struct {
	Count int `json:"count"`
}

type timeRangeCondition struct {
	Count     int `json:"count"`
	TimeRange struct {
		Start int `json:"start"`
		End   int `json:"end"`
	} `json:"time_range"`
}

func parseCount(raw json.RawMessage) (int, error) {
	var c countCondition
	if err := json.Unmarshal(raw, &c); err != nil {
		return 0, fmt.Errorf("invalid condition value: %w", err)
	}
	if c.Count <= 0 {
		return 0, fmt.Errorf("condition count must be positive, got %d", c.Count)
	}
	return c.Count, nil
}

func evalTaskCount(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error) {
	threshold, err := parseCount(raw)
	if err != nil {
		return false, err
	}
	n, err := r.CountSuccessfulAttempts(ctx, userID)
	if err != nil {
		return false, err
	}
	return n >= threshold, nil
}

func evalTimeBasedTasks(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error) {
	var c timeRangeCondition
	if err := json.Unmarshal(raw, &c); err != nil {
		return false, fmt.Errorf("invalid condition value: %w", err)
	}
	if c.Count <= 0 {
		return false, fmt.Errorf("condition count must be positive, got %d", c.Count)
	}
	if c.TimeRange.Start < 0 || c.TimeRange.Start > 23 || c.TimeRange.End < 0 || c.TimeRange.End > 24 {
		return false, fmt.Errorf("time range out of bounds: [%d, %d)", c.TimeRange.Start, c.TimeRange.End)
	}
	n, err := r.CountSuccessfulAttemptsInHours(ctx, userID, c.TimeRange.Start, c.TimeRange.End)
	if err != nil {
		return false, err
	}
	return n >= c.Count, nil
}

// Streak conditions are volume proxies, not true consecutive-run checks:
// streak_tasks counts successful attempts, streak_days counts distinct
// active days, streak_perfect counts first-try solves.
func evalStreakTasks(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error) {
	return evalTaskCount(ctx, r, userID, raw)
}

func evalStreakDays(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error) {
	threshold, err := parseCount(raw)
	if err != nil {
		return false, err
	}
	n, err := r.CountActiveDays(ctx, userID)
	if err != nil {
		return false, err
	}
	return n >= threshold, nil
}

func evalStreakPerfect(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error) {
	return evalPerfectTasks(ctx, r, userID, raw)
}

func evalModuleCount(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error) {
	threshold, err := parseCount(raw)
	if err != nil {
		return false, err
	}
	n, err := r.CountCompletedModules(ctx, userID)
	if err != nil {
		return false, err
	}
	return n >= threshold, nil
}

func evalFirstDayTasks(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error) {
	threshold, err := parseCount(raw)
	if err != nil {
		return false, err
	}
	n, err := r.CountFirstDayAttempts(ctx, userID)
	if err != nil {
		return false, err
	}
	return n >= threshold, nil
}

func evalPerfectTasks(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error) {
	threshold, err := parseCount(raw)
	if err != nil {
		return false, err
	}
	n, err := r.CountPerfectSolvedTasks(ctx, userID)
	if err != nil {
		return false, err
	}
	return n >= threshold, nil
}

func evalNoHintsTasks(ctx context.Context, r ProgressReader, userID string, raw json.RawMessage) (bool, error) {
	threshold, err := parseCount(raw)
	if err != nil {
		return false, err
	}
	n, err := r.CountNoHintAttempts(ctx, userID)
	if err != nil {
		return false, err
	}
	return n >= threshold, nil
}
