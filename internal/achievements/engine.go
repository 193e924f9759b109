// Package achievements evaluates the catalog of unlockable milestones
// against a user's attempt history. Unlocking is monotonic and permanent:
// the only transition is locked to unlocked, guarded by the uniqueness
// constraint on (user_id, achievement_id).
package achievements

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/grading-engine/internal/models"
)

// ProgressReader provides the aggregate counts conditions are evaluated
// against. Implemented by the storage repository.
type ProgressReader interface {
	// CountSuccessfulAttempts counts successful attempt rows, not
	// distinct tasks: re-solving the same exercise keeps counting.
	CountSuccessfulAttempts(ctx context.Context, userID string) (int, error)
	// CountSuccessfulAttemptsInHours counts successful attempts whose
	// hour-of-day falls in [start, end), wrapping past midnight when
	// start > end.
	CountSuccessfulAttemptsInHours(ctx context.Context, userID string, start, end int) (int, error)
	CountActiveDays(ctx context.Context, userID string) (int, error)
	CountCompletedModules(ctx context.Context, userID string) (int, error)
	// CountFirstDayAttempts counts successful attempts within 24 hours of
	// the user's registration instant.
	CountFirstDayAttempts(ctx context.Context, userID string) (int, error)
	// CountPerfectSolvedTasks counts distinct exercises whose first-ever
	// attempt was successful.
	CountPerfectSolvedTasks(ctx context.Context, userID string) (int, error)
	// CountNoHintAttempts counts successful attempt rows made without a
	// hint. Row-level like CountSuccessfulAttempts.
	CountNoHintAttempts(ctx context.Context, userID string) (int, error)
}

// Store provides catalog and unlock persistence. Implemented by the
// storage repository.
type Store interface {
	ListActiveAchievements(ctx context.Context) ([]*models.AchievementDefinition, error)
	ListUnlockedAchievementIDs(ctx context.Context, userID string) ([]string, error)
	// CreateUserAchievement records an unlock. Returns false without error
	// when the row already exists: a duplicate insert is a benign no-op.
	CreateUserAchievement(ctx context.Context, ua *models.UserAchievement) (bool, error)
}

// XPLedger credits achievement rewards through the same cumulative-XP
// path used for task awards.
type XPLedger interface {
	AwardXP(ctx context.Context, userID string, amount int) (newTotal, newLevel int, err error)
}

// Engine is the rule evaluator.
type Engine struct {
	reader ProgressReader
	store  Store
	ledger XPLedger
	now    func() time.Time
}

// NewEngine creates an achievement engine.
func NewEngine(reader ProgressReader, store Store, ledger XPLedger) *Engine {
	return &Engine{reader: reader, store: store, ledger: ledger, now: time.Now}
}

// Evaluate checks every active, not-yet-unlocked achievement definition
// for the user and records the ones whose condition now holds.
//
// Failures are isolated per definition: a collaborator error while
// evaluating one definition is logged and that definition is simply
// treated as not-yet-unlocked this round; the rest still evaluate.
func (e *Engine) Evaluate(ctx context.Context, userID string) ([]*models.AchievementDefinition, error) {
	defs, err := e.store.ListActiveAchievements(ctx)
	if err != nil {
		return nil, err
	}

	unlockedIDs, err := e.store.ListUnlockedAchievementIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocked := make(map[string]bool, len(unlockedIDs))
	for _, id := range unlockedIDs {
		unlocked[id] = true
	}

	var newly []*models.AchievementDefinition

	for _, def := range defs {
		if unlocked[def.ID] {
			continue
		}

		eval, ok := conditions[def.ConditionType]
		if !ok {
			slog.Warn("unknown achievement condition type",
				"achievement", def.ID,
				"condition_type", def.ConditionType,
			)
			continue
		}

		met, err := eval(ctx, e.reader, userID, def.ConditionValue)
		if err != nil {
			slog.Error("achievement condition evaluation failed",
				"achievement", def.ID,
				"user", userID,
				"error", err,
			)
			continue
		}
		if !met {
			continue
		}

		inserted, err := e.store.CreateUserAchievement(ctx, &models.UserAchievement{
			UserID:        userID,
			AchievementID: def.ID,
			EarnedAt:      e.now(),
		})
		if err != nil {
			slog.Error("failed to record achievement unlock",
				"achievement", def.ID,
				"user", userID,
				"error", err,
			)
			continue
		}
		if !inserted {
			// lost a race against a concurrent grading completion;
			// the other writer owns the XP credit
			continue
		}

		if def.XPReward > 0 {
			if _, _, err := e.ledger.AwardXP(ctx, userID, def.XPReward); err != nil {
				slog.Error("failed to credit achievement XP",
					"achievement", def.ID,
					"user", userID,
					"error", err,
				)
			}
		}

		slog.Info("achievement unlocked",
			"achievement", def.ID,
			"user", userID,
			"xp_reward", def.XPReward,
		)
		newly = append(newly, def)
	}

	return newly, nil
}
