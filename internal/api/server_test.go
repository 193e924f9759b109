package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/terra-clan/grading-engine/internal/catalog"
	"github.com/terra-clan/grading-engine/internal/config"
	"github.com/terra-clan/grading-engine/internal/models"
	"github.com/terra-clan/grading-engine/internal/progression"
)

// stubRepo implements storage.Repository with canned data.
type stubRepo struct {
	client   *models.ApiClient
	progress *models.UserProgress
	attempts []*models.AttemptRecord
	defs     []*models.AchievementDefinition
	earned   []*models.UserAchievement
}

func (s *stubRepo) EnsureUser(context.Context, string) error { return nil }
func (s *stubRepo) GetProgress(context.Context, string) (*models.UserProgress, error) {
	return s.progress, nil
}
func (s *stubRepo) AddXP(context.Context, string, int) (int, error) { return 0, nil }
func (s *stubRepo) SetLevel(context.Context, string, int) error { return nil }
func (s *stubRepo) CreateAttempt(context.Context, *models.AttemptRecord) error { return nil }
func (s *stubRepo) ListAttempts(context.Context, string, int, int) ([]*models.AttemptRecord, error) {
	return s.attempts, nil
}
func (s *stubRepo) CountAttempts(context.Context, string, string) (int, error) { return 0, nil }
func (s *stubRepo) HasSuccessfulAttempt(context.Context, string, string) (bool, error) {
	return false, nil
}
func (s *stubRepo) AverageExecutionTime(context.Context, string) (int64, error) { return 0, nil }
func (s *stubRepo) ListSolvedTasks(context.Context, string) ([]string, error) { return nil, nil }
func (s *stubRepo) ListActiveUserIDs(context.Context, time.Time) ([]string, error) {
	return nil, nil
}
func (s *stubRepo) MarkModuleCompleted(context.Context, string, string) error { return nil }
func (s *stubRepo) CountCompletedModules(context.Context, string) (int, error) { return 0, nil }
func (s *stubRepo) ListActiveAchievements(context.Context) ([]*models.AchievementDefinition, error) {
	return s.defs, nil
}
func (s *stubRepo) ListUnlockedAchievementIDs(context.Context, string) ([]string, error) {
	return nil, nil
}
func (s *stubRepo) ListUserAchievements(context.Context, string) ([]*models.UserAchievement, error) {
	return s.earned, nil
}
func (s *stubRepo) CreateUserAchievement(context.Context, *models.UserAchievement) (bool, error) {
	return true, nil
}
func (s *stubRepo) CountSuccessfulAttempts(context.Context, string) (int, error) { return 0, nil }
func (s *stubRepo) CountSuccessfulAttemptsInHours(context.Context, string, int, int) (int, error) {
	return 0, nil
}
func (s *stubRepo) CountActiveDays(context.Context, string) (int, error) { return 0, nil }
func (s *stubRepo) CountFirstDayAttempts(context.Context, string) (int, error) { return 0, nil }
func (s *stubRepo) CountPerfectSolvedTasks(context.Context, string) (int, error) { return 0, nil }
func (s *stubRepo) CountNoHintAttempts(context.Context, string) (int, error) { return 0, nil }
func (s *stubRepo) GetClientByApiKey(_ context.Context, apiKey string) (*models.ApiClient, error) {
	if s.client != nil && s.client.ApiKey == apiKey {
		return s.client, nil
	}
	return nil, nil
}
func (s *stubRepo) UpdateClientLastUsed(context.Context, string) error { return nil }
func (s *stubRepo) Ping(context.Context) error { return nil }
func (s *stubRepo) Close() error { return nil }

// stubGrader returns a canned response.
type stubGrader struct {
	resp *models.GradeResponse
	err  error
}

func (g *stubGrader) Grade(_ context.Context, _ *models.GradeRequest, _ func(models.TestResult)) (*models.GradeResponse, error) {
	return g.resp, g.err
}

func testClient() *models.ApiClient {
	return &models.ApiClient{
		ID:          1,
		Name:        "platform",
		ApiKey:      "gk_test_key_12345",
		IsActive:    true,
		Permissions: []string{"grade:*", "catalog:read", "progress:read"},
	}
}

func testServer(grader Grader, repo *stubRepo) *Server {
	loader := catalog.NewLoader()
	loader.Add(&models.Exercise{
		ID:         "basics/add",
		Code:       "add",
		ModuleID:   "basics",
		Title:      "Addition",
		EntryPoint: "add",
		BaseXP:     10,
		TestCases: []models.TestCase{
			{ID: "t1", Input: map[string]any{"a": 1}, Expected: 1, IsVisible: true},
			{ID: "t2", Input: map[string]any{"a": 2}, Expected: 2},
		},
	})
	return NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8080}, grader, loader, repo, nil)
}

func authedRequest(method, path string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer gk_test_key_12345")
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthIsPublic(t *testing.T) {
	s := testServer(&stubGrader{}, &stubRepo{})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGradeRequiresAuth(t *testing.T) {
	s := testServer(&stubGrader{}, &stubRepo{client: testClient()})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/grade", bytes.NewReader([]byte(`{}`))))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGradeRejectsUnknownKey(t *testing.T) {
	s := testServer(&stubGrader{}, &stubRepo{client: testClient()})

	req := httptest.NewRequest("POST", "/api/v1/grade", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Authorization", "Bearer wrong_key")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGradeSuccess(t *testing.T) {
	grader := &stubGrader{resp: &models.GradeResponse{
		SuiteResult:   &models.SuiteResult{PassedCount: 2, TotalCount: 2, AllPassed: true},
		XPAwarded:     18,
		AttemptNumber: 1,
	}}
	s := testServer(grader, &stubRepo{client: testClient()})

	body, _ := json.Marshal(models.GradeRequest{
		UserID: "u1",
		TaskID: "basics/add",
		Code:   "def add(a):\n    return a\n",
	})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/api/v1/grade", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool                 `json:"success"`
		Data    models.GradeResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || resp.Data.XPAwarded != 18 {
		t.Errorf("response = %+v, want success with 18 XP", resp)
	}
}

func TestGradeValidation(t *testing.T) {
	s := testServer(&stubGrader{}, &stubRepo{client: testClient()})

	tests := []struct {
		name string
		body string
	}{
		{"missing user", `{"task_id": "basics/add", "code": "def f(): pass"}`},
		{"missing task", `{"user_id": "u1", "code": "def f(): pass"}`},
		{"missing code", `{"user_id": "u1", "task_id": "basics/add"}`},
		{"invalid json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, authedRequest("POST", "/api/v1/grade", []byte(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGradeUnknownExercise(t *testing.T) {
	grader := &stubGrader{err: progression.ErrExerciseNotFound}
	s := testServer(grader, &stubRepo{client: testClient()})

	body := []byte(`{"user_id": "u1", "task_id": "nope/nope", "code": "def f(): pass"}`)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/api/v1/grade", body))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetExerciseHidesTestCases(t *testing.T) {
	s := testServer(&stubGrader{}, &stubRepo{client: testClient()})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("GET", "/api/v1/modules/basics/exercises/add", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data publicExercise `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Data.VisibleTests) != 1 {
		t.Errorf("visible tests = %d, want 1", len(resp.Data.VisibleTests))
	}
	if resp.Data.HiddenCount != 1 {
		t.Errorf("hidden count = %d, want 1", resp.Data.HiddenCount)
	}
}

func TestPermissionDenied(t *testing.T) {
	client := testClient()
	client.Permissions = []string{"catalog:read"}
	s := testServer(&stubGrader{}, &stubRepo{client: client})

	body := []byte(`{"user_id": "u1", "task_id": "basics/add", "code": "def f(): pass"}`)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("POST", "/api/v1/grade", body))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestGetUserProgressZeroState(t *testing.T) {
	s := testServer(&stubGrader{}, &stubRepo{client: testClient()})

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, authedRequest("GET", "/api/v1/users/u1/progress", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data models.UserProgress `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.CurrentLevel != 1 || resp.Data.TotalXP != 0 {
		t.Errorf("zero state = %+v, want level 1 with 0 XP", resp.Data)
	}
}
