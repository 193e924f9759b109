// Package client is a Go SDK for the grading-engine HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a Go SDK for grading-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new grading-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GradeRequest is a grading submission
type GradeRequest struct {
	UserID        string `json:"user_id"`
	TaskID        string `json:"task_id"`
	Code          string `json:"code"`
	UsedHint      bool   `json:"used_hint"`
	SolvingTimeMs int64  `json:"solving_time_ms,omitempty"`
}

// TestResult is the outcome of one test case
type TestResult struct {
	TestCaseID      string `json:"test_case_id"`
	Passed          bool   `json:"passed"`
	Actual          any    `json:"actual_output,omitempty"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// SuiteResult aggregates all test results of one attempt
type SuiteResult struct {
	Results         []TestResult `json:"results"`
	PassedCount     int          `json:"passed_count"`
	TotalCount      int          `json:"total_count"`
	AllPassed       bool         `json:"all_passed"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
}

// Achievement is an unlockable milestone definition
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	XPReward    int    `json:"xp_reward"`
}

// Feedback is the advisory AI review of a submission
type Feedback struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// GradeResponse is the grading outcome
type GradeResponse struct {
	SuiteResult   *SuiteResult   `json:"suite_result"`
	XPAwarded     int            `json:"xp_awarded"`
	XPBreakdown   []string       `json:"xp_breakdown,omitempty"`
	NewTotalXP    int            `json:"new_total_xp"`
	NewLevel      int            `json:"new_level"`
	NewlyUnlocked []*Achievement `json:"newly_unlocked_achievements"`
	Feedback      *Feedback      `json:"feedback,omitempty"`
	AttemptNumber int            `json:"attempt_number"`
	AlreadySolved bool           `json:"already_solved"`
}

// Module is a group of exercises
type Module struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ExerciseCount int    `json:"exercise_count"`
}

// TestCase is a learner-visible test case
type TestCase struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Input       map[string]any `json:"input"`
	Expected    any            `json:"expected"`
	Category    string         `json:"category"`
}

// Exercise is the learner-facing exercise view
type Exercise struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	ModuleID     string     `json:"module_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Difficulty   string     `json:"difficulty"`
	BaseXP       int        `json:"base_xp"`
	VisibleTests []TestCase `json:"visible_test_cases"`
	HiddenCount  int        `json:"hidden_test_count"`
}

// Progress holds a user's cumulative counters
type Progress struct {
	UserID       string    `json:"user_id"`
	TotalXP      int       `json:"total_xp"`
	CurrentLevel int       `json:"current_level"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EarnedAchievement is one unlock record
type EarnedAchievement struct {
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at"`
}

// Attempt is one grading attempt record
type Attempt struct {
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

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Grade submits code for grading
func (c *Client) Grade(ctx context.Context, req GradeRequest) (*GradeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/grade", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool           `json:"success"`
		Data    *GradeResponse `json:"data"`
		Error   *apiErrorBody  `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// ListModules retrieves all catalog modules
func (c *Client) ListModules(ctx context.Context) ([]*Module, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/modules", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Modules []*Module `json:"modules"`
			Total   int       `json:"total"`
		} `json:"data"`
		Error *apiErrorBody `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Modules, nil
}

// ListExercises retrieves all exercises of a module
func (c *Client) ListExercises(ctx context.Context, moduleID string) ([]*Exercise, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/modules/%s/exercises", moduleID), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Exercises []*Exercise `json:"exercises"`
			Total     int         `json:"total"`
		} `json:"data"`
		Error *apiErrorBody `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Exercises, nil
}

// GetExercise retrieves the learner-facing view of one exercise
func (c *Client) GetExercise(ctx context.Context, moduleID, code string) (*Exercise, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/modules/%s/exercises/%s", moduleID, code), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool          `json:"success"`
		Data    *Exercise     `json:"data"`
		Error   *apiErrorBody `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// GetProgress retrieves a user's XP and level
func (c *Client) GetProgress(ctx context.Context, userID string) (*Progress, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/users/%s/progress", userID), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool          `json:"success"`
		Data    *Progress     `json:"data"`
		Error   *apiErrorBody `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data, nil
}

// ListAttempts retrieves a user's attempt history, newest first
func (c *Client) ListAttempts(ctx context.Context, userID string, limit, offset int) ([]*Attempt, error) {
	path := fmt.Sprintf("/api/v1/users/%s/attempts?", userID)
	if limit > 0 {
		path += fmt.Sprintf("limit=%d&", limit)
	}
	if offset > 0 {
		path += fmt.Sprintf("offset=%d&", offset)
	}

	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Attempts []*Attempt `json:"attempts"`
			Total    int        `json:"total"`
		} `json:"data"`
		Error *apiErrorBody `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Attempts, nil
}

// ListAchievements retrieves the achievement catalog
func (c *Client) ListAchievements(ctx context.Context) ([]*Achievement, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/achievements", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Achievements []*Achievement `json:"achievements"`
			Total        int            `json:"total"`
		} `json:"data"`
		Error *apiErrorBody `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Achievements, nil
}

// ListUserAchievements retrieves a user's unlocked achievements
func (c *Client) ListUserAchievements(ctx context.Context, userID string) ([]*EarnedAchievement, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/users/%s/achievements", userID), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Achievements []*EarnedAchievement `json:"achievements"`
			Total        int                  `json:"total"`
		} `json:"data"`
		Error *apiErrorBody `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
	}

	return result.Data.Achievements, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil)
	return err
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
