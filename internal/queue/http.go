package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Nukesor/encarne/internal/logging"
)

// HTTP talks to a remote job runner exposing a small JSON API:
//
//	GET  /api/v1/jobs  -> {"jobs": [{"id": 1, "command": "...", "status": "running"}]}
//	POST /api/v1/jobs  <- {"command": "...", "directory": "..."}
type HTTP struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTP creates a client with retries for transient failures.
func NewHTTP(baseURL string) *HTTP {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	return &HTTP{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: retryClient.StandardClient(),
	}
}

type httpJob struct {
	ID      int64  `json:"id"`
	Command string `json:"command"`
	Status  string `json:"status"`
}

type httpJobList struct {
	Jobs []httpJob `json:"jobs"`
}

type httpAddRequest struct {
	Command   string `json:"command"`
	Directory string `json:"directory"`
}

// Jobs fetches the remote job list.
func (c *HTTP) Jobs(ctx context.Context) (jobs []Job, err error) {
	defer func() { recordRequest("http", "status", err) }()

	var list httpJobList
	if err = c.doRequest(ctx, http.MethodGet, "/api/v1/jobs", nil, &list); err != nil {
		return nil, err
	}

	jobs = make([]Job, 0, len(list.Jobs))
	for _, j := range list.Jobs {
		status, serr := pueueStatusName(j.Status)
		if serr != nil {
			err = fmt.Errorf("%w: job %d: %v", ErrQueueUnavailable, j.ID, serr)
			return nil, err
		}
		jobs = append(jobs, Job{ID: j.ID, Command: j.Command, Status: status})
	}
	return jobs, nil
}

// Add submits a job to the remote runner.
func (c *HTTP) Add(ctx context.Context, command, dir string) (err error) {
	defer func() { recordRequest("http", "add", err) }()

	logging.Info("Submitting job to %s:\n %s", c.baseURL, command)
	return c.doRequest(ctx, http.MethodPost, "/api/v1/jobs", httpAddRequest{Command: command, Directory: dir}, nil)
}

func (c *HTTP) doRequest(ctx context.Context, method, path string, payload, response interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s %s returned status %d", ErrQueueUnavailable, method, path, resp.StatusCode)
	}

	if response != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", ErrQueueUnavailable, err)
		}
	}
	return nil
}
