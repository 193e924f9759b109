package progression

import (
	"context"

	"github.com/terra-clan/grading-engine/internal/scoring"
)

// XPStore is the persistence surface the ledger mutates. Implemented by
// the storage repository.
type XPStore interface {
	// AddXP atomically increments the user's cumulative XP and returns
	// the new total.
	AddXP(ctx context.Context, userID string, amount int) (int, error)
	SetLevel(ctx context.Context, userID string, level int) error
}

// Ledger is the single write path for experience points. Task awards and
// achievement rewards both flow through it, so the level recompute can
// never be skipped.
type Ledger struct {
	store XPStore
}

// NewLedger creates an XP ledger over the given store.
func NewLedger(store XPStore) *Ledger {
	return &Ledger{store: store}
}

// AwardXP credits amount to the user and recomputes their level from the
// new cumulative total.
func (l *Ledger) AwardXP(ctx context.Context, userID string, amount int) (newTotal, newLevel int, err error) {
	newTotal, err = l.store.AddXP(ctx, userID, amount)
	if err != nil {
		return 0, 0, err
	}
	newLevel = scoring.LevelFor(newTotal)
	if err := l.store.SetLevel(ctx, userID, newLevel); err != nil {
		return 0, 0, err
	}
	return newTotal, newLevel, nil
}
