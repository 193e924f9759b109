package models

import (
	"time"
)

// TestCaseCategory classifies a test case for reporting purposes.
// Category never affects grading.
type TestCaseCategory string

const (
	CategoryBasic TestCaseCategory = "basic"
	CategoryEdge  TestCaseCategory = "edge"
	CategoryError TestCaseCategory = "error"
)

// TestCase is one authored input/expected-output pair for an exercise.
// Input keys become keyword arguments of the submission's entry point.
// IsVisible controls what is shown to the learner, never what is graded.
type TestCase struct {
	ID          string           `yaml:"id" json:"id"`
	Description string           `yaml:"description" json:"description"`
	Input       map[string]any   `yaml:"input" json:"input"`
	Expected    any              `yaml:"expected" json:"expected"`
	Category    TestCaseCategory `yaml:"category" json:"category"`
	IsVisible   bool             `yaml:"visible" json:"is_visible"`
}

// TestResult is the outcome of one test case in one suite run.
// Never persisted on its own; always folded into a SuiteResult.
type TestResult struct {
	TestCaseID      string `json:"test_case_id"`
	Passed          bool   `json:"passed"`
	Actual          any    `json:"actual_output,omitempty"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// SuiteResult aggregates all test results of one grading attempt.
// Immutable once built. ExecutionTimeMs is the wall-clock sum across tests.
type SuiteResult struct {
	Results         []TestResult `json:"results"`
	PassedCount     int          `json:"passed_count"`
	TotalCount      int          `json:"total_count"`
	AllPassed       bool         `json:"all_passed"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
}

// AttemptRecord is one grading invocation by a user against one exercise.
// Append-only: records are never mutated or deleted.
type AttemptRecord struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	TaskID        string       `json:"task_id"`
	Code          string       `json:"code"`
	SuiteResult   *SuiteResult `json:"suite_result"`
	IsSuccessful  bool         `json:"is_successful"`
	UsedHint      bool         `json:"used_hint"`
	SolvingTimeMs int64        `json:"solving_time_ms"`
	CreatedAt     time.Time    `json:"created_at"`
}
