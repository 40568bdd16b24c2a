// Package agentkit is a Go client for the AgentKit HTTP API.
package agentkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Chat calls run a whole agent loop, so it is longer than a typical API timeout.
const DefaultHTTPTimeout = 2 * time.Minute

// DefaultPollInterval is how often WaitForTask polls when no interval is given.
const DefaultPollInterval = time.Second

// Task statuses reported by the server.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrTaskFailed is returned by WaitForTask when a task fails with no retries left.
var ErrTaskFailed = errors.New("agentkit: task failed")

// Client wraps the HTTP interactions with the AgentKit REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// ActionSpec describes one published action.
type ActionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// InvokeResult is the output of a direct action invocation.
type InvokeResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// Step is one action the agent ran while working on a goal.
type Step struct {
	Action      string          `json:"action"`
	Arguments   json.RawMessage `json:"arguments"`
	Observation string          `json:"observation"`
}

// ChatRequest asks the agent to work on a goal, synchronously or as a task.
type ChatRequest struct {
	ID       string         `json:"id,omitempty"`
	Goal     string         `json:"goal"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChatResult is the agent's answer to a synchronous chat.
type ChatResult struct {
	Goal          string `json:"goal"`
	Reply         string `json:"reply"`
	Steps         []Step `json:"steps,omitempty"`
	Network       string `json:"network,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// TaskResult is stored on a task once it succeeds.
type TaskResult struct {
	Reply         string `json:"reply"`
	Steps         []Step `json:"steps,omitempty"`
	Network       string `json:"network,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// Task is the server's view of an asynchronous goal.
type Task struct {
	ID         string         `json:"id"`
	Goal       string         `json:"goal"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Status     string         `json:"status"`
	Attempts   int            `json:"attempts"`
	MaxRetries int            `json:"max_retries"`
	LastError  string         `json:"last_error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Result     *TaskResult    `json:"result,omitempty"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
}

// Terminal reports whether the task will not change any more.
func (t Task) Terminal() bool {
	return t.Status == StatusSucceeded || (t.Status == StatusFailed && t.Attempts >= t.MaxRetries)
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("agentkit api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("agentkit api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the AgentKit API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SetAccessToken sets the bearer token sent with every request.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// ListActions returns the actions currently exposed by the server.
func (c *Client) ListActions(ctx context.Context) ([]ActionSpec, error) {
	var out struct {
		Actions []ActionSpec `json:"actions"`
	}
	if err := c.get(ctx, "/api/v1/actions", nil, &out); err != nil {
		return nil, err
	}
	return out.Actions, nil
}

// InvokeAction runs one action by name.
func (c *Client) InvokeAction(ctx context.Context, name string, args map[string]any) (InvokeResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	var out InvokeResult
	payload := map[string]any{"name": name, "args": args}
	if err := c.post(ctx, "/api/v1/actions/invoke", payload, &out); err != nil {
		return InvokeResult{}, err
	}
	return out, nil
}

// Chat runs the agent loop synchronously.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	var out ChatResult
	if err := c.post(ctx, "/api/v1/chat", req, &out); err != nil {
		return ChatResult{}, err
	}
	return out, nil
}

// SubmitTask queues a goal for asynchronous execution.
func (c *Client) SubmitTask(ctx context.Context, req ChatRequest) (Task, error) {
	var out Task
	if err := c.post(ctx, "/api/v1/tasks", req, &out); err != nil {
		return Task{}, err
	}
	return out, nil
}

// GetTask fetches task details by identifier.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var out Task
	if err := c.get(ctx, "/api/v1/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return Task{}, err
	}
	return out, nil
}

// TaskFilter narrows ListTasks. Zero values are omitted.
type TaskFilter struct {
	Statuses []string
	Limit    int
	Offset   int
	Query    string
}

func (f TaskFilter) values() url.Values {
	q := url.Values{}
	if len(f.Statuses) > 0 {
		q.Set("status", strings.Join(f.Statuses, ","))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	return q
}

// ListTasks returns tasks matching f, most recently updated first.
func (c *Client) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	var out struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.get(ctx, "/api/v1/tasks", f.values(), &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// WaitForTask polls until the task is terminal or ctx is done. A task that
// failed for good is returned together with ErrTaskFailed.
func (c *Client) WaitForTask(ctx context.Context, id string, interval time.Duration) (Task, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		t, err := c.GetTask(ctx, id)
		if err != nil {
			return Task{}, err
		}
		if t.Terminal() {
			if t.Status == StatusFailed {
				return t, fmt.Errorf("%w: %s", ErrTaskFailed, t.LastError)
			}
			return t, nil
		}
		select {
		case <-ctx.Done():
			return t, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: apiErr})
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
