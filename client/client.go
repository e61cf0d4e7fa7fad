// Package client provides a Go client for a remote runway deployment.
//
// Usage:
//
//	c := client.New("https://tune.example.com", client.WithAPIKey("..."))
//
//	// Submit a fine-tune job.
//	rec, err := c.FineTune(ctx, client.FineTuneRequest{
//	    JobID:     "nightly-7b",
//	    BaseModel: "meta-llama/Llama-2-7b",
//	    Dataset:   datasetReader,
//	})
//
//	// Poll until it finishes.
//	rec, err = c.WaitForJob(ctx, rec.JobID, 5*time.Second)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	runway "github.com/inferent/runway"
	"github.com/inferent/runway/job"
)

// Client talks to a runway API server.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FineTuneRequest describes a fine-tune submission.
type FineTuneRequest struct {
	// JobID is optional; the server generates one when empty.
	JobID     string
	BaseModel string
	Dataset   io.Reader
}

// FineTune submits a fine-tune job and returns its initial record.
func (c *Client) FineTune(ctx context.Context, req FineTuneRequest) (*job.Record, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("api_key", c.apiKey); err != nil {
		return nil, fmt.Errorf("client: build form: %w", err)
	}
	if req.JobID != "" {
		if err := mw.WriteField("job_id", req.JobID); err != nil {
			return nil, fmt.Errorf("client: build form: %w", err)
		}
	}
	if err := mw.WriteField("base_model", req.BaseModel); err != nil {
		return nil, fmt.Errorf("client: build form: %w", err)
	}
	fw, err := mw.CreateFormFile("dataset", "dataset.json")
	if err != nil {
		return nil, fmt.Errorf("client: build form: %w", err)
	}
	if req.Dataset != nil {
		if _, err := io.Copy(fw, req.Dataset); err != nil {
			return nil, fmt.Errorf("client: read dataset: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("client: build form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fine-tune", &buf)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var rec job.Record
	if err := c.do(httpReq, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// JobStatus fetches the current record for one of the caller's jobs.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*job.Record, error) {
	u := fmt.Sprintf("%s/job-status/%s?api_key=%s",
		c.baseURL, url.PathEscape(jobID), url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}

	var rec job.Record
	if err := c.do(httpReq, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListJobs fetches all of the caller's job records.
func (c *Client) ListJobs(ctx context.Context) ([]*job.Record, error) {
	u := c.baseURL + "/list-all-jobs?api_key=" + url.QueryEscape(c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}

	var recs []*job.Record
	if err := c.do(httpReq, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Register obtains a new API key and installs it on the client.
func (c *Client) Register(ctx context.Context, email string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return "", fmt.Errorf("client: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("client: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp struct {
		APIKey string `json:"api_key"`
	}
	if err := c.do(httpReq, &resp); err != nil {
		return "", err
	}
	c.apiKey = resp.APIKey
	return resp.APIKey, nil
}

// WaitForJob polls until the job reaches a terminal state or the context
// ends. The returned record is the terminal one.
func (c *Client) WaitForJob(ctx context.Context, jobID string, interval time.Duration) (*job.Record, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		rec, err := c.JobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if rec.Status.IsTerminal() {
			return rec, nil
		}

		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-ticker.C:
		}
	}
}

// do executes the request and decodes the JSON response into out,
// translating HTTP error statuses back into the package sentinels.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error == "" {
		body.Error = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", runway.ErrUnauthorized, body.Error)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", runway.ErrInvalidInput, body.Error)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", runway.ErrJobNotFound, body.Error)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", runway.ErrJobActive, body.Error)
	default:
		return errors.New("client: " + body.Error)
	}
}
