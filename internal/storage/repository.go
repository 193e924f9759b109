package storage

import (
	"context"
	"time"

	"github.com/terra-clan/grading-engine/internal/models"
)

// Repository defines the persistence interface of the grading engine.
//
// Lookup methods return (nil, nil) when the row does not exist; callers
// distinguish "missing" from "broken" without sentinel errors.
type Repository interface {
	// Users and progress
	EnsureUser(ctx context.Context, userID string) error
	GetProgress(ctx context.Context, userID string) (*models.UserProgress, error)
	AddXP(ctx context.Context, userID string, amount int) (int, error)
	SetLevel(ctx context.Context, userID string, level int) error

	// Attempts
	CreateAttempt(ctx context.Context, attempt *models.AttemptRecord) error
	ListAttempts(ctx context.Context, userID string, limit, offset int) ([]*models.AttemptRecord, error)
	CountAttempts(ctx context.Context, userID, taskID string) (int, error)
	HasSuccessfulAttempt(ctx context.Context, userID, taskID string) (bool, error)
	AverageExecutionTime(ctx context.Context, taskID string) (int64, error)
	ListSolvedTasks(ctx context.Context, userID string) ([]string, error)
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)

	// Modules
	MarkModuleCompleted(ctx context.Context, userID, moduleID string) error
	CountCompletedModules(ctx context.Context, userID string) (int, error)

	// Achievements
	ListActiveAchievements(ctx context.Context) ([]*models.AchievementDefinition, error)
	ListUnlockedAchievementIDs(ctx context.Context, userID string) ([]string, error)
	ListUserAchievements(ctx context.Context, userID string) ([]*models.UserAchievement, error)
	CreateUserAchievement(ctx context.Context, ua *models.UserAchievement) (bool, error)

	// Condition counts
	CountSuccessfulAttempts(ctx context.Context, userID string) (int, error)
	CountSuccessfulAttemptsInHours(ctx context.Context, userID string, start, end int) (int, error)
	CountActiveDays(ctx context.Context, userID string) (int, error)
	CountFirstDayAttempts(ctx context.Context, userID string) (int, error)
	CountPerfectSolvedTasks(ctx context.Context, userID string) (int, error)
	CountNoHintAttempts(ctx context.Context, userID string) (int, error)

	// API clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
