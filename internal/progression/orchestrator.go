// Package progression orchestrates one grading attempt end to end:
// catalog lookup, suite execution, attempt persistence, XP award, module
// completion and achievement evaluation.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/grading-engine/internal/models"
	"github.com/terra-clan/grading-engine/internal/scoring"
	"github.com/terra-clan/grading-engine/internal/suite"
)

// ErrExerciseNotFound is returned when the grading request names a task
// that is not in the catalog.
var ErrExerciseNotFound = errors.New("exercise not found")

// DefaultTestTimeout bounds a single test execution when the exercise
// does not define its own limit.
const DefaultTestTimeout = 5 * time.Second

// Catalog is the read-only exercise source.
type Catalog interface {
	Exercise(id string) (*models.Exercise, bool)
	ModuleExercises(moduleID string) []*models.Exercise
}

// Repository is the persistence surface of the orchestrator.
type Repository interface {
	EnsureUser(ctx context.Context, userID string) error
	CreateAttempt(ctx context.Context, attempt *models.AttemptRecord) error
	CountAttempts(ctx context.Context, userID, taskID string) (int, error)
	HasSuccessfulAttempt(ctx context.Context, userID, taskID string) (bool, error)
	// AverageExecutionTime returns the mean suite execution time across
	// all successful attempts for the task, 0 when there are none.
	AverageExecutionTime(ctx context.Context, taskID string) (int64, error)
	ListSolvedTasks(ctx context.Context, userID string) ([]string, error)
	MarkModuleCompleted(ctx context.Context, userID, moduleID string) error
	GetProgress(ctx context.Context, userID string) (*models.UserProgress, error)
}

// SuiteRunner executes a submission against its test cases. Satisfied by
// *suite.Runner.
type SuiteRunner interface {
	Run(ctx context.Context, sub suite.Submission, cases []models.TestCase, opts suite.Options) (*models.SuiteResult, error)
}

// AchievementEvaluator re-checks unlock conditions after an attempt.
// Satisfied by *achievements.Engine.
type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID string) ([]*models.AchievementDefinition, error)
}

// Reviewer produces advisory AI feedback for a graded submission.
// Optional; a nil Reviewer disables feedback entirely.
type Reviewer interface {
	Review(ctx context.Context, ex *models.Exercise, code string, verdict *models.SuiteResult) (*models.Feedback, error)
}

// Orchestrator ties the grading pipeline together.
type Orchestrator struct {
	catalog        Catalog
	repo           Repository
	runner         SuiteRunner
	ledger         *Ledger
	achievements   AchievementEvaluator
	reviewer       Reviewer
	defaultTimeout time.Duration
}

// NewOrchestrator creates the grading orchestrator. reviewer may be nil.
func NewOrchestrator(
	catalog Catalog,
	repo Repository,
	runner SuiteRunner,
	ledger *Ledger,
	evaluator AchievementEvaluator,
	reviewer Reviewer,
) *Orchestrator {
	return &Orchestrator{
		catalog:        catalog,
		repo:           repo,
		runner:         runner,
		ledger:         ledger,
		achievements:   evaluator,
		reviewer:       reviewer,
		defaultTimeout: DefaultTestTimeout,
	}
}

// SetDefaultTimeout overrides the per-test timeout used when an exercise
// does not define its own. Non-positive values are ignored.
func (o *Orchestrator) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		o.defaultTimeout = d
	}
}

// Grade runs the full pipeline for one submission. onResult, when
// non-nil, receives each test result as it completes, in suite order;
// used by the streaming endpoint.
//
// The suite verdict is authoritative and always persisted. Everything
// downstream of persistence (achievements, feedback) degrades to a log
// line on failure rather than failing the attempt.
func (o *Orchestrator) Grade(ctx context.Context, req *models.GradeRequest, onResult func(models.TestResult)) (*models.GradeResponse, error) {
	ex, ok := o.catalog.Exercise(req.TaskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExerciseNotFound, req.TaskID)
	}

	if err := o.repo.EnsureUser(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	priorAttempts, err := o.repo.CountAttempts(ctx, req.UserID, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	attemptNumber := priorAttempts + 1

	alreadySolved, err := o.repo.HasSuccessfulAttempt(ctx, req.UserID, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("check prior success: %w", err)
	}

	// population baseline sampled before this attempt is recorded
	avgMs, err := o.repo.AverageExecutionTime(ctx, req.TaskID)
	if err != nil {
		slog.Warn("average execution time unavailable", "task", req.TaskID, "error", err)
		avgMs = 0
	}

	timeout := o.defaultTimeout
	if ex.TimeoutMs > 0 {
		timeout = time.Duration(ex.TimeoutMs) * time.Millisecond
	}

	verdict, err := o.runner.Run(ctx, suite.Submission{
		Source:     req.Code,
		EntryPoint: ex.EntryPoint,
	}, ex.TestCases, suite.Options{
		Timeout:  timeout,
		OnResult: onResult,
	})
	if err != nil {
		return nil, fmt.Errorf("run suite: %w", err)
	}

	attempt := &models.AttemptRecord{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		TaskID:        req.TaskID,
		Code:          req.Code,
		SuiteResult:   verdict,
		IsSuccessful:  verdict.AllPassed,
		UsedHint:      req.UsedHint,
		SolvingTimeMs: req.SolvingTimeMs,
		CreatedAt:     time.Now(),
	}
	if err := o.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	resp := &models.GradeResponse{
		SuiteResult:   verdict,
		AttemptNumber: attemptNumber,
		AlreadySolved: alreadySolved,
	}

	if verdict.AllPassed && !alreadySolved {
		breakdown := scoring.Calculate(scoring.Input{
			BaseXP:                 ex.BaseXP,
			Difficulty:             ex.Difficulty,
			AttemptNumber:          attemptNumber,
			UsedHint:               req.UsedHint,
			IsFirstAttempt:         attemptNumber == 1,
			ExecutionTimeMs:        verdict.ExecutionTimeMs,
			AverageExecutionTimeMs: avgMs,
		})

		total, level, err := o.ledger.AwardXP(ctx, req.UserID, breakdown.TotalXP)
		if err != nil {
			return nil, fmt.Errorf("award XP: %w", err)
		}

		resp.XPAwarded = breakdown.TotalXP
		resp.XPBreakdown = breakdown.Lines
		resp.NewTotalXP = total
		resp.NewLevel = level

		o.checkModuleCompletion(ctx, req.UserID, ex.ModuleID)
	}

	if o.achievements != nil {
		newly, err := o.achievements.Evaluate(ctx, req.UserID)
		if err != nil {
			slog.Error("achievement evaluation failed", "user", req.UserID, "error", err)
		}
		resp.NewlyUnlocked = newly
	}

	// achievements may have credited more XP; report the settled totals
	if progress, err := o.repo.GetProgress(ctx, req.UserID); err != nil {
		slog.Warn("progress read failed", "user", req.UserID, "error", err)
	} else if progress != nil {
		resp.NewTotalXP = progress.TotalXP
		resp.NewLevel = progress.CurrentLevel
	}

	if o.reviewer != nil {
		fb, err := o.reviewer.Review(ctx, ex, req.Code, verdict)
		if err != nil {
			slog.Warn("feedback unavailable", "task", req.TaskID, "error", err)
		} else {
			resp.Feedback = fb
		}
	}

	slog.Info("attempt graded",
		"user", req.UserID,
		"task", req.TaskID,
		"attempt", attemptNumber,
		"passed", verdict.PassedCount,
		"total", verdict.TotalCount,
		"xp_awarded", resp.XPAwarded,
	)

	return resp, nil
}

// checkModuleCompletion marks the module completed once every exercise
// in it has a successful attempt. Failures degrade to a log line; the
// next successful attempt in the module retries naturally.
func (o *Orchestrator) checkModuleCompletion(ctx context.Context, userID, moduleID string) {
	exercises := o.catalog.ModuleExercises(moduleID)
	if len(exercises) == 0 {
		return
	}

	solvedList, err := o.repo.ListSolvedTasks(ctx, userID)
	if err != nil {
		slog.Warn("solved task list unavailable", "user", userID, "error", err)
		return
	}
	solved := make(map[string]bool, len(solvedList))
	for _, id := range solvedList {
		solved[id] = true
	}

	for _, ex := range exercises {
		if !solved[ex.ID] {
			return
		}
	}

	if err := o.repo.MarkModuleCompleted(ctx, userID, moduleID); err != nil {
		slog.Warn("module completion write failed", "user", userID, "module", moduleID, "error", err)
		return
	}
	slog.Info("module completed", "user", userID, "module", moduleID)
}
