package models

// GradeRequest is the caller-facing grading input.
type GradeRequest struct {
	UserID        string `json:"user_id"`
	TaskID        string `json:"task_id"`
	Code          string `json:"code"`
	UsedHint      bool   `json:"used_hint"`
	SolvingTimeMs int64  `json:"solving_time_ms,omitempty"`
}

// Feedback is the advisory review produced by the AI feedback service.
// Never gates XP or pass/fail.
type Feedback struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// GradeResponse is the caller-facing grading outcome.
type GradeResponse struct {
	SuiteResult   *SuiteResult             `json:"suite_result"`
	XPAwarded     int                      `json:"xp_awarded"`
	XPBreakdown   []string                 `json:"xp_breakdown,omitempty"`
	NewTotalXP    int                      `json:"new_total_xp"`
	NewLevel      int                      `json:"new_level"`
	NewlyUnlocked []*AchievementDefinition `json:"newly_unlocked_achievements"`
	Feedback      *Feedback                `json:"feedback,omitempty"`
	AttemptNumber int                      `json:"attempt_number"`
	AlreadySolved bool                     `json:"already_solved"`
}
