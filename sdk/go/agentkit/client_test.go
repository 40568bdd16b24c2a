package agentkit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestInvokeActionSendsTokenAndArgs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/actions/invoke" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("expected bearer token, got %q", got)
		}
		var body struct {
			Name string         `json:"name"`
			Args map[string]any `json:"args"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Name != "PythActionProvider_fetch_price" || body.Args["token_symbol"] != "BTC" {
			t.Fatalf("unexpected body: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(InvokeResult{Name: body.Name, Result: "97000.12"})
	})
	client.SetAccessToken("token")

	res, err := client.InvokeAction(context.Background(), "PythActionProvider_fetch_price", map[string]any{"token_symbol": "BTC"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Result != "97000.12" {
		t.Fatalf("unexpected result %q", res.Result)
	}
}

func TestListActions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Fatalf("no token was set")
		}
		_, _ = w.Write([]byte(`{"actions":[{"name":"a","description":"d","parameters":{"type":"object"}}]}`))
	})
	actions, err := client.ListActions(context.Background())
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(actions) != 1 || actions[0].Name != "a" || string(actions[0].Parameters) != `{"type":"object"}` {
		t.Fatalf("unexpected actions: %+v", actions)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"ACTION_NOT_FOUND","message":"未找到动作 nope","metadata":{"action":"nope"}}}`))
	})
	_, err := client.InvokeAction(context.Background(), "nope", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "ACTION_NOT_FOUND" || apiErr.Metadata["action"] != "nope" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestPlainTextErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	_, err := client.GetTask(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "bad gateway" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListTasksQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "pending,failed" || q.Get("limit") != "5" || q.Get("q") != "swap" || q.Has("offset") {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tasks": []Task{{ID: "t1", Status: StatusPending}}})
	})
	tasks, err := client.ListTasks(context.Background(), TaskFilter{Statuses: []string{StatusPending, StatusFailed}, Limit: 5, Query: "swap"})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestWaitForTaskPollsUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks/task-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		task := Task{ID: "task-1", Status: StatusRunning, Attempts: 1, MaxRetries: 3}
		switch polls.Add(1) {
		case 1:
		case 2:
			task.Status = StatusFailed
			task.LastError = "rpc timeout"
		default:
			task.Status = StatusSucceeded
			task.Attempts = 2
			task.Result = &TaskResult{Reply: "sent 0.1 ETH"}
		}
		_ = json.NewEncoder(w).Encode(task)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := client.WaitForTask(ctx, "task-1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if task.Result == nil || task.Result.Reply != "sent 0.1 ETH" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if polls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", polls.Load())
	}
}

func TestWaitForTaskTerminalFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Task{ID: "t", Status: StatusFailed, Attempts: 3, MaxRetries: 3, LastError: "insufficient funds"})
	})
	task, err := client.WaitForTask(context.Background(), "t", time.Millisecond)
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("expected ErrTaskFailed, got %v", err)
	}
	if task.LastError != "insufficient funds" {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestWaitForTaskHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Task{ID: "t", Status: StatusPending})
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := client.WaitForTask(ctx, "t", 5*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
