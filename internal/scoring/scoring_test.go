package scoring

import (
	"strings"
	"testing"
)

func TestCalculatePerfectFirstAttempt(t *testing.T) {
	b := Calculate(Input{
		BaseXP:         10,
		Difficulty:     "easy",
		AttemptNumber:  1,
		UsedHint:       false,
		IsFirstAttempt: true,
	})

	// 10*1.0 + 5 (perfect) + 3 (no hints) = 18
	if b.TotalXP != 18 {
		t.Errorf("TotalXP = %d, want 18", b.TotalXP)
	}
	if b.PerfectBonus != 5 || b.NoHintBonus != 3 || b.SpeedBonus != 0 {
		t.Errorf("bonuses = %d/%d/%d, want 5/3/0", b.PerfectBonus, b.NoHintBonus, b.SpeedBonus)
	}
	if b.HintPenaltyApplied {
		t.Error("HintPenaltyApplied = true, want false")
	}
}

func TestCalculateSecondAttempt(t *testing.T) {
	b := Calculate(Input{
		BaseXP:        10,
		AttemptNumber: 2,
	})

	// round(10*0.7) + 3 = 10
	if b.TotalXP != 10 {
		t.Errorf("TotalXP = %d, want 10", b.TotalXP)
	}
	if b.Multiplier != 0.7 {
		t.Errorf("Multiplier = %v, want 0.7", b.Multiplier)
	}
}

func TestCalculateHintOverridesMultiplier(t *testing.T) {
	b := Calculate(Input{
		BaseXP:         10,
		AttemptNumber:  1,
		UsedHint:       true,
		IsFirstAttempt: true,
	})

	// hint forces x0.5 and forfeits both bonuses: 10*0.5 = 5
	if !b.HintPenaltyApplied {
		t.Error("HintPenaltyApplied = false, want true")
	}
	if b.PerfectBonus != 0 {
		t.Errorf("PerfectBonus = %d, want 0 (hint used)", b.PerfectBonus)
	}
	if b.TotalXP != 5 {
		t.Errorf("TotalXP = %d, want 5", b.TotalXP)
	}
}

func TestCalculateThirdAttemptDecay(t *testing.T) {
	b := Calculate(Input{BaseXP: 30, AttemptNumber: 5})
	// round(30*0.5) + 3 = 18
	if b.TotalXP != 18 {
		t.Errorf("TotalXP = %d, want 18", b.TotalXP)
	}
}

func TestCalculateSpeedBonus(t *testing.T) {
	with := Calculate(Input{
		BaseXP:                 10,
		AttemptNumber:          1,
		ExecutionTimeMs:        600,
		AverageExecutionTimeMs: 1000,
	})
	if with.SpeedBonus != 2 {
		t.Errorf("SpeedBonus = %d, want 2 (600 < 0.7*1000)", with.SpeedBonus)
	}

	without := Calculate(Input{
		BaseXP:                 10,
		AttemptNumber:          1,
		ExecutionTimeMs:        800,
		AverageExecutionTimeMs: 1000,
	})
	if without.SpeedBonus != 0 {
		t.Errorf("SpeedBonus = %d, want 0 (800 >= 0.7*1000)", without.SpeedBonus)
	}

	unknown := Calculate(Input{BaseXP: 10, AttemptNumber: 1, ExecutionTimeMs: 600})
	if unknown.SpeedBonus != 0 {
		t.Errorf("SpeedBonus = %d, want 0 (no baseline)", unknown.SpeedBonus)
	}
}

func TestCalculateDifficultyDefaults(t *testing.T) {
	tests := []struct {
		difficulty string
		wantBase   int
	}{
		{"easy", 10},
		{"medium", 20},
		{"hard", 30},
		{"", 10},
	}
	for _, tt := range tests {
		b := Calculate(Input{Difficulty: tt.difficulty, AttemptNumber: 1, UsedHint: true})
		if b.BaseXP != tt.wantBase {
			t.Errorf("difficulty %q: BaseXP = %d, want %d", tt.difficulty, b.BaseXP, tt.wantBase)
		}
	}
}

func TestCalculateBreakdownLines(t *testing.T) {
	b := Calculate(Input{
		BaseXP:         10,
		AttemptNumber:  1,
		IsFirstAttempt: true,
	})

	joined := strings.Join(b.Lines, "\n")
	for _, want := range []string{
		"base XP: 10",
		"attempt multiplier: x1.00 (attempt 1)",
		"subtotal: 10",
		"perfect solution bonus: +5",
		"no hints bonus: +3",
		"total XP: 18",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("breakdown missing line %q in:\n%s", want, joined)
		}
	}
}

func TestCalculateDeterminism(t *testing.T) {
	in := Input{BaseXP: 20, AttemptNumber: 2, ExecutionTimeMs: 500, AverageExecutionTimeMs: 900}
	a := Calculate(in)
	b := Calculate(in)
	if a.TotalXP != b.TotalXP || len(a.Lines) != len(b.Lines) {
		t.Error("Calculate must be deterministic")
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{-5, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{900, 4},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.xp); got != tt.want {
			t.Errorf("LevelFor(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}
