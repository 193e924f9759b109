package models

// Module groups related exercises in the catalog hierarchy.
type Module struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ExerciseCount int    `json:"exercise_count"`
}

// Exercise is one programming task in the catalog. EntryPoint is the
// required structured contract: the author names the function the
// grading engine invokes, so the engine never has to sniff it out of
// submitted source (regex extraction remains only as a fallback).
type Exercise struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	ModuleID    string     `json:"module_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  string     `json:"difficulty"`
	EntryPoint  string     `json:"entry_point"`
	BaseXP      int        `json:"base_xp"`
	TimeoutMs   int        `json:"timeout_ms"`
	TestCases   []TestCase `json:"test_cases,omitempty"`
}

// VisibleTestCases returns only the test cases shown to learners.
func (e *Exercise) VisibleTestCases() []TestCase {
	visible := make([]TestCase, 0, len(e.TestCases))
	for _, tc := range e.TestCases {
		if tc.IsVisible {
			visible = append(visible, tc)
		}
	}
	return visible
}
