package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/insight-api/internal/model"
)

// apiClient talks to a running insight-api server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type submitResult struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type statusResult struct {
	AnalysisID   string          `json:"analysis_id"`
	Status       model.JobStatus `json:"status"`
	Progress     int             `json:"progress"`
	CurrentStep  string          `json:"current_step"`
	ErrorMessage string          `json:"error_message"`
}

type jobList struct {
	Jobs []struct {
		AnalysisID string          `json:"analysis_id"`
		Question   string          `json:"research_question"`
		Status     model.JobStatus `json:"status"`
		Progress   int             `json:"progress"`
		CreatedAt  time.Time       `json:"created_at"`
	} `json:"jobs"`
}

func (c *apiClient) submit(ctx context.Context, question string) (*submitResult, error) {
	body, _ := json.Marshal(map[string]string{"research_question": question})

	var out submitResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/analyze", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) status(ctx context.Context, id string) (*statusResult, error) {
	var out statusResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/analyze/"+id+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) result(ctx context.Context, id string) (*model.FinalReport, error) {
	var out model.FinalReport
	if err := c.do(ctx, http.MethodGet, "/api/v1/analyze/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) list(ctx context.Context, status string, limit int) (*jobList, error) {
	path := fmt.Sprintf("/api/v1/analyze?limit=%d", limit)
	if status != "" {
		path += "&status=" + status
	}
	var out jobList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error   string `json:"error"`
			Details struct {
				Message string `json:"message"`
			} `json:"details"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return eris.Errorf("%s: %s", apiErr.Error, apiErr.Details.Message)
		}
		return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
