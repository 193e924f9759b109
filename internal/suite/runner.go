// Package suite turns one submission plus N test cases into a single
// suite verdict.
package suite

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/terra-clan/grading-engine/internal/codec"
	"github.com/terra-clan/grading-engine/internal/models"
	"github.com/terra-clan/grading-engine/internal/sandbox"
)

// NoCallableDiagnostic is the uniform per-test error reported when a
// submission contains no extractable entry point. In that case no sandbox
// invocation happens at all.
const NoCallableDiagnostic = "no callable definition found"

// temporary bindings spliced around each test invocation
const (
	resultBinding = "__tc_result"
	passedBinding = "__tc_passed"
)

// defPattern is the fallback extractor for submissions whose exercise
// metadata does not carry an explicit entry point. The structured
// contract (Exercise.EntryPoint) is the primary path; keep this only for
// compatibility with exercises authored before entry points were required.
var defPattern = regexp.MustCompile(`(?m)^\s*def\s+([A-Za-z_]\w*)\s*\(`)

// Executor runs source in the shared sandbox. Satisfied by *sandbox.Runtime.
type Executor interface {
	Execute(ctx context.Context, source string, timeout time.Duration) (*sandbox.ExecResult, error)
}

// Submission is one candidate solution under grading.
type Submission struct {
	Source string
	// EntryPoint is the function name supplied by exercise metadata.
	// Empty means fall back to pattern extraction from the source.
	EntryPoint string
}

// Options tunes one suite run.
type Options struct {
	// Timeout bounds each individual test execution.
	Timeout time.Duration
	// OnResult, if set, is invoked once per completed test result, in
	// order. Used to stream progress to clients.
	OnResult func(models.TestResult)
}

// Runner executes test suites against an injected sandbox executor.
type Runner struct {
	exec Executor
}

// NewRunner creates a suite runner bound to a sandbox executor.
func NewRunner(exec Executor) *Runner {
	return &Runner{exec: exec}
}

// Run executes every test case in the supplied order against the
// submission and aggregates the verdict. Test cases never run in
// parallel and a failing test never short-circuits the rest: the learner
// sees every failing case.
//
// The returned error is reserved for host-level failures (the sandbox
// never initialized); per-test problems are folded into the verdict.
func (r *Runner) Run(ctx context.Context, sub Submission, cases []models.TestCase, opts Options) (*models.SuiteResult, error) {
	entry := sub.EntryPoint
	if entry == "" {
		entry = extractEntryPoint(sub.Source)
	}

	if entry == "" {
		return failAll(cases, NoCallableDiagnostic, opts), nil
	}

	results := make([]models.TestResult, 0, len(cases))
	var totalMs int64

	for _, tc := range cases {
		tr := r.runCase(ctx, sub.Source, entry, tc, opts.Timeout)
		if tr == nil {
			// host-level failure: surface once for the whole attempt
			return nil, fmt.Errorf("suite: sandbox unavailable while running test %s", tc.ID)
		}

		totalMs += tr.ExecutionTimeMs
		results = append(results, *tr)
		if opts.OnResult != nil {
			opts.OnResult(*tr)
		}
	}

	return aggregate(results, totalMs), nil
}

// runCase executes one test case. A nil return means the sandbox itself
// failed at the host level.
func (r *Runner) runCase(ctx context.Context, source, entry string, tc models.TestCase, timeout time.Duration) *models.TestResult {
	tr := &models.TestResult{TestCaseID: tc.ID}

	script, err := buildTestScript(source, entry, tc)
	if err != nil {
		tr.Error = fmt.Sprintf("invalid test fixture: %v", err)
		return tr
	}

	res, err := r.exec.Execute(ctx, script, timeout)
	if err != nil {
		slog.Error("sandbox execution failed", "test_case", tc.ID, "error", err)
		return nil
	}

	tr.ExecutionTimeMs = res.DurationMs

	if res.Err != "" {
		tr.Error = res.Err
		return tr
	}

	// Extract the three host-observable outputs, then drop the temporary
	// bindings so nothing leaks into later inspection of the globals.
	if passed, ok := res.Globals[passedBinding].(bool); ok {
		tr.Passed = passed
	}
	if actual, ok := res.Globals[resultBinding]; ok {
		tr.Actual = actual
	}
	delete(res.Globals, passedBinding)
	delete(res.Globals, resultBinding)

	return tr
}

// buildTestScript splices the submission, the keyword-argument invocation
// and the in-sandbox equivalence check into one executable source so that
// any exception raised by user code is attributable to this test case.
func buildTestScript(source, entry string, tc models.TestCase) (string, error) {
	keys := make([]string, 0, len(tc.Input))
	for k := range tc.Input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		lit, err := codec.EncodeLiteral(tc.Input[k])
		if err != nil {
			return "", fmt.Errorf("input %q: %w", k, err)
		}
		args = append(args, k+"="+lit)
	}

	expected, err := codec.EncodeLiteral(tc.Expected)
	if err != nil {
		return "", fmt.Errorf("expected output: %w", err)
	}

	var b strings.Builder
	b.WriteString(source)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s = %s(%s)\n", resultBinding, entry, strings.Join(args, ", "))
	fmt.Fprintf(&b, "%s = %s(%s, %s)\n", passedBinding, sandbox.CheckBuiltinName, resultBinding, expected)
	return b.String(), nil
}

// extractEntryPoint sniffs the first function definition out of the
// submission source. Fallback path only.
func extractEntryPoint(source string) string {
	m := defPattern.FindStringSubmatch(source)
	if m == nil {
		return ""
	}
	return m[1]
}

func failAll(cases []models.TestCase, diagnostic string, opts Options) *models.SuiteResult {
	results := make([]models.TestResult, 0, len(cases))
	for _, tc := range cases {
		tr := models.TestResult{TestCaseID: tc.ID, Error: diagnostic}
		results = append(results, tr)
		if opts.OnResult != nil {
			opts.OnResult(tr)
		}
	}
	return aggregate(results, 0)
}

func aggregate(results []models.TestResult, totalMs int64) *models.SuiteResult {
	passed := 0
	for _, tr := range results {
		if tr.Passed {
			passed++
		}
	}
	return &models.SuiteResult{
		Results:         results,
		PassedCount:     passed,
		TotalCount:      len(results),
		AllPassed:       len(results) > 0 && passed == len(results),
		ExecutionTimeMs: totalMs,
	}
}
