// Package scoring converts a suite verdict plus attempt metadata into a
// deterministic experience-point award. Pure functions only: no I/O, no
// clock, no randomness.
package scoring

import (
	"fmt"
	"math"
)

// Difficulty-indexed base XP defaults, used when the exercise does not
// define its own base.
const (
	defaultEasyXP   = 10
	defaultMediumXP = 20
	defaultHardXP   = 30
)

// Bonus amounts. Additive and independent of each other.
const (
	perfectBonus = 5
	noHintBonus  = 3
	speedBonus   = 2
)

// speedThreshold: an attempt earns the speed bonus when its execution
// time is below this fraction of the population average.
const speedThreshold = 0.7

// Input carries everything the award computation depends on.
type Input struct {
	// BaseXP is the exercise-defined base award. Zero or negative falls
	// back to the difficulty default.
	BaseXP     int
	Difficulty string
	// AttemptNumber is 1-indexed.
	AttemptNumber int
	UsedHint      bool
	// IsFirstAttempt is true only if this is the first successful attempt
	// ever for this exercise by this user.
	IsFirstAttempt bool
	// ExecutionTimeMs is the suite wall-clock time; zero means unknown.
	ExecutionTimeMs int64
	// AverageExecutionTimeMs is the population baseline; zero means unknown.
	AverageExecutionTimeMs int64
}

// Breakdown is the transient award computation result. Only TotalXP is
// ever folded into persistent state; the rest exists for transparency.
type Breakdown struct {
	BaseXP             int      `json:"base_xp"`
	Multiplier         float64  `json:"attempt_multiplier"`
	HintPenaltyApplied bool     `json:"hint_penalty_applied"`
	PerfectBonus       int      `json:"perfect_bonus"`
	NoHintBonus        int      `json:"no_hint_bonus"`
	SpeedBonus         int      `json:"speed_bonus"`
	TotalXP            int      `json:"total_xp"`
	Lines              []string `json:"breakdown"`
}

// Calculate computes the XP award for one successful attempt.
//
// The attempt multiplier decays 1.0 / 0.7 / 0.5 for attempts 1 / 2 / 3+.
// A used hint overrides the multiplier to 0.5 outright; the hint penalty
// takes precedence over attempt decay, it does not stack with it.
func Calculate(in Input) Breakdown {
	b := Breakdown{}

	b.BaseXP = in.BaseXP
	if b.BaseXP <= 0 {
		b.BaseXP = defaultBase(in.Difficulty)
	}
	b.Lines = append(b.Lines, fmt.Sprintf("base XP: %d", b.BaseXP))

	switch {
	case in.UsedHint:
		b.Multiplier = 0.5
		b.HintPenaltyApplied = true
		b.Lines = append(b.Lines, "attempt multiplier: x0.50 (hint used)")
	case in.AttemptNumber <= 1:
		b.Multiplier = 1.0
		b.Lines = append(b.Lines, "attempt multiplier: x1.00 (attempt 1)")
	case in.AttemptNumber == 2:
		b.Multiplier = 0.7
		b.Lines = append(b.Lines, "attempt multiplier: x0.70 (attempt 2)")
	default:
		b.Multiplier = 0.5
		b.Lines = append(b.Lines, fmt.Sprintf("attempt multiplier: x0.50 (attempt %d)", in.AttemptNumber))
	}

	subtotal := int(math.Round(float64(b.BaseXP) * b.Multiplier))
	b.Lines = append(b.Lines, fmt.Sprintf("subtotal: %d", subtotal))

	if in.IsFirstAttempt && in.AttemptNumber == 1 && !in.UsedHint {
		b.PerfectBonus = perfectBonus
		b.Lines = append(b.Lines, fmt.Sprintf("perfect solution bonus: +%d", perfectBonus))
	}
	if !in.UsedHint {
		b.NoHintBonus = noHintBonus
		b.Lines = append(b.Lines, fmt.Sprintf("no hints bonus: +%d", noHintBonus))
	}
	if in.ExecutionTimeMs > 0 && in.AverageExecutionTimeMs > 0 &&
		float64(in.ExecutionTimeMs) < speedThreshold*float64(in.AverageExecutionTimeMs) {
		b.SpeedBonus = speedBonus
		b.Lines = append(b.Lines, fmt.Sprintf("speed bonus: +%d (%dms vs %dms average)",
			speedBonus, in.ExecutionTimeMs, in.AverageExecutionTimeMs))
	}

	b.TotalXP = subtotal + b.PerfectBonus + b.NoHintBonus + b.SpeedBonus
	b.Lines = append(b.Lines, fmt.Sprintf("total XP: %d", b.TotalXP))

	return b
}

func defaultBase(difficulty string) int {
	switch difficulty {
	case "medium":
		return defaultMediumXP
	case "hard":
		return defaultHardXP
	default:
		return defaultEasyXP
	}
}

// LevelFor is the level curve: level n starts at 100*(n-1)^2 XP, so
// levelOf(xp) = 1 + floor(sqrt(xp/100)). Every XP mutation recomputes the
// level through this function; it is never stored independently.
func LevelFor(totalXP int) int {
	if totalXP <= 0 {
		return 1
	}
	return 1 + int(math.Sqrt(float64(totalXP)/100.0))
}
