package models

import (
	"encoding/json"
	"time"
)

// AchievementDefinition is a catalog entry describing one unlockable
// milestone. Authored externally; read-only to the engine.
type AchievementDefinition struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	ConditionType  string          `json:"condition_type"`
	ConditionValue json.RawMessage `json:"condition_value"`
	XPReward       int             `json:"xp_reward"`
	IsActive       bool            `json:"is_active"`
}

// UserAchievement is the append-only unlock record. At most one row may
// exist per (UserID, AchievementID); existence is the unlock predicate.
type UserAchievement struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at"`
}

// UserProgress holds the cumulative per-user counters. CurrentLevel is
// always recomputed from TotalXP on every XP mutation, never stored
// independently of a recompute step.
type UserProgress struct {
	UserID       string    `json:"user_id"`
	TotalXP      int       `json:"total_xp"`
	CurrentLevel int       `json:"current_level"`
	UpdatedAt    time.Time `json:"updated_at"`
}
