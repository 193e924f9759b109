// Package sweep periodically re-evaluates achievements for recently
// active users. Time-window conditions (night owl, first day) can start
// holding without a new attempt being made; the sweeper catches those.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/terra-clan/grading-engine/internal/models"
)

// Evaluator re-checks achievement conditions for one user.
type Evaluator interface {
	Evaluate(ctx context.Context, userID string) ([]*models.AchievementDefinition, error)
}

// ActivitySource lists users worth re-evaluating.
type ActivitySource interface {
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)
}

// Sweeper is the periodic achievement re-evaluation worker.
type Sweeper struct {
	source    ActivitySource
	evaluator Evaluator
	interval  time.Duration
	lookback  time.Duration
}

// NewSweeper creates a sweep worker. interval defaults to 10 minutes,
// lookback to 24 hours.
func NewSweeper(source ActivitySource, evaluator Evaluator, interval, lookback time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}

	return &Sweeper{
		source:    source,
		evaluator: evaluator,
		interval:  interval,
		lookback:  lookback,
	}
}

// Start begins the sweep worker in a goroutine
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

// run is the main loop for the sweep worker
func (s *Sweeper) run(ctx context.Context) {
	slog.Info("achievement sweeper started", "interval", s.interval, "lookback", s.lookback)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("achievement sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep re-evaluates every recently active user
func (s *Sweeper) sweep(ctx context.Context) {
	slog.Debug("running achievement sweep")

	users, err := s.source.ListActiveUserIDs(ctx, time.Now().Add(-s.lookback))
	if err != nil {
		slog.Error("failed to list active users", "error", err)
		return
	}

	if len(users) == 0 {
		slog.Debug("no recently active users")
		return
	}

	unlocked := 0
	for _, userID := range users {
		newly, err := s.evaluator.Evaluate(ctx, userID)
		if err != nil {
			slog.Error("sweep evaluation failed", "user", userID, "error", err)
			continue
		}
		unlocked += len(newly)
	}

	slog.Info("achievement sweep finished", "users", len(users), "unlocked", unlocked)
}
