// Package optimizer calls the external AI optimization service that
// tailors a CV to a job description. The whole service is one opaque call
// from this side: submit, get back a score, a document location, and a
// sent flag.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jobpilot/jobpilot/internal/model"
)

// Client talks to the optimization service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a client; per-attempt calls are bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type tailorRequest struct {
	CVURL          string `json:"cv_url"`
	JobDescription string `json:"job_description"`
}

// Tailor submits the CV and job text. Transport failures and 5xx answers
// are retried with bounded fibonacci backoff; a 4xx is final.
func (c *Client) Tailor(ctx context.Context, cvURL, jobDescription string) (*model.TailorResult, error) {
	body, err := json.Marshal(tailorRequest{CVURL: cvURL, JobDescription: jobDescription})
	if err != nil {
		return nil, err
	}

	var result model.TailorResult
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/optimize", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(&result)
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("optimizer status %d", resp.StatusCode))
		default:
			return fmt.Errorf("optimizer status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("tailor cv: %w", err)
	}
	return &result, nil
}
