package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"formrunner/internal/model"
)

// SurveyAPI is the upstream survey platform as seen by the runner. The
// interface exists so services can be exercised against a stub.
type SurveyAPI interface {
	FetchQuizDocument(ctx context.Context, quizID int64) (*model.QuizDocument, error)
	StartInterview(ctx context.Context, quizID int64, source string) (int64, error)
	// InterviewExists probes the interview record. A definite 404 returns
	// (false, nil); transport-level failures return an error so callers can
	// treat "unreachable" differently from "gone".
	InterviewExists(ctx context.Context, interviewID int64) (bool, error)
	SubmitAnswer(ctx context.Context, interviewID int64, sub *model.AnswerSubmission) error
	FinalizeInterview(ctx context.Context, interviewID int64, fin *model.FinalizeSubmission) error
}

// UpstreamError is an HTTP-level error from the upstream API
type UpstreamError struct {
	Status int
	URL    string
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream API error %d at %s: %s", e.Status, e.URL, e.Body)
}

// IsNotFound reports whether err is a definite upstream 404
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusNotFound
}

// UpstreamClient calls the survey platform's REST API. No retry or backoff:
// the per-answer path swallows failures and the finalize path surfaces them.
type UpstreamClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewUpstreamClient(baseURL string) *UpstreamClient {
	return &UpstreamClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *UpstreamClient) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		return nil, &UpstreamError{
			Status: resp.StatusCode,
			URL:    url,
			Body:   string(respBody),
		}
	}

	return respBody, nil
}

// FetchQuizDocument gets the full quiz definition for a quiz id
func (c *UpstreamClient) FetchQuizDocument(ctx context.Context, quizID int64) (*model.QuizDocument, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/quiz-public/%d/full", quizID), nil)
	if err != nil {
		return nil, err
	}

	var doc model.QuizDocument
	if err := json.Unmarshal(respBody, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse quiz document: %w", err)
	}

	return &doc, nil
}

// StartInterview creates the server-side interview record
func (c *UpstreamClient) StartInterview(ctx context.Context, quizID int64, source string) (int64, error) {
	payload := map[string]interface{}{
		"quiz_id": quizID,
		"source":  source,
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/interviews/start", payload)
	if err != nil {
		return 0, err
	}

	var result struct {
		Interview struct {
			ID int64 `json:"id"`
		} `json:"interview"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("failed to parse interview response: %w", err)
	}

	return result.Interview.ID, nil
}

// InterviewExists probes the interview's answer listing as an existence check
func (c *UpstreamClient) InterviewExists(ctx context.Context, interviewID int64) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/interviews/%d/answers", interviewID), nil)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SubmitAnswer sends one recorded answer
func (c *UpstreamClient) SubmitAnswer(ctx context.Context, interviewID int64, sub *model.AnswerSubmission) error {
	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/interviews/%d/answers", interviewID), sub)
	return err
}

// FinalizeInterview sends the blocking final submission
func (c *UpstreamClient) FinalizeInterview(ctx context.Context, interviewID int64, fin *model.FinalizeSubmission) error {
	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/interviews/%d/finalize", interviewID), fin)
	return err
}
