// Package feedback produces advisory AI code reviews for graded
// submissions through an OpenAI-compatible chat completions API. The
// review never gates pass/fail or XP; every failure here degrades to
// "no feedback".
package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/terra-clan/grading-engine/internal/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 20 * time.Second
)

const systemPrompt = `You are a concise programming mentor reviewing a learner's solution.
Respond with a single JSON object and nothing else:
{"score": <float 0.0-1.0 for code quality>, "feedback": "<2-4 sentences: what is good, what to improve>"}`

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the base URL of the OpenAI-compatible API.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the model used for reviews.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a feedback client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Review asks the model for an advisory review of one graded submission.
func (c *Client) Review(ctx context.Context, ex *models.Exercise, code string, verdict *models.SuiteResult) (*models.Feedback, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(ex, code, verdict)},
		},
		MaxTokens:   400,
		Temperature: 0.3,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feedback api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return parseReview(chat.Choices[0].Message.Content)
}

func buildPrompt(ex *models.Exercise, code string, verdict *models.SuiteResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Exercise: %s\n", ex.Title)
	if ex.Description != "" {
		fmt.Fprintf(&b, "Task: %s\n", ex.Description)
	}
	fmt.Fprintf(&b, "Test results: %d/%d passed\n\n", verdict.PassedCount, verdict.TotalCount)
	fmt.Fprintf(&b, "Submitted solution:\n```\n%s\n```", code)
	return b.String()
}

// parseReview extracts the JSON review from model output, tolerating
// markdown code fences around it. The score is clamped to [0, 1].
func parseReview(content string) (*models.Feedback, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	var fb models.Feedback
	if err := json.Unmarshal([]byte(content), &fb); err != nil {
		return nil, fmt.Errorf("unparseable review: %w", err)
	}
	if fb.Feedback == "" {
		return nil, fmt.Errorf("review has no feedback text")
	}
	if fb.Score < 0 {
		fb.Score = 0
	}
	if fb.Score > 1 {
		fb.Score = 1
	}
	return &fb, nil
}
