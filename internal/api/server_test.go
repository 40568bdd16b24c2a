package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/agentkit"
	"AgentKit-Chain/internal/auth"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/task"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/web3test"
)

func newTestKit(t *testing.T) *agentkit.Kit {
	t.Helper()
	p := action.NewBase("echo", "EchoProvider")
	p.MustDefine(action.Definition{
		Name:        "echo",
		Description: "Echo the text back",
		Schema:      `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`,
		Signature: action.Unbound(func(_ context.Context, args action.Args) (string, error) {
			return "echo: " + args["text"].(string), nil
		}),
	})
	kit, err := agentkit.New(web3test.NewWallet(web3.Network{ProtocolFamily: "evm", NetworkID: "base-sepolia"}), []action.Provider{p})
	require.NoError(t, err)
	return kit
}

type stubAgent struct {
	err error
}

func (s stubAgent) Execute(_ context.Context, req agent.TaskRequest) (*agent.TaskResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &agent.TaskResult{Goal: req.Goal, Reply: "reply to " + req.Goal}, nil
}

type nopProducer struct{}

func (nopProducer) Publish(context.Context, string) error { return nil }
func (nopProducer) Close() error                          { return nil }

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestActionsCatalogAndInvoke(t *testing.T) {
	h := NewServer(":0", Dependencies{Actions: newTestKit(t)}).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/actions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var catalog actionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
	require.Len(t, catalog.Actions, 1)
	require.Equal(t, "EchoProvider_echo", catalog.Actions[0].Name)
	require.JSONEq(t, `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`, string(catalog.Actions[0].Parameters))

	rec = do(t, h, http.MethodPost, "/api/v1/actions/invoke", map[string]any{"name": "EchoProvider_echo", "args": map[string]any{"text": "hi"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var invoked invokeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invoked))
	require.Equal(t, "echo: hi", invoked.Result)
}

func TestInvokeErrorStatuses(t *testing.T) {
	h := NewServer(":0", Dependencies{Actions: newTestKit(t)}).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/actions/invoke", map[string]any{"name": "EchoProvider_echo", "args": map[string]any{"text": 3}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, string(xerrors.CodeActionValidationFailed), decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/v1/actions/invoke", map[string]any{"name": "Nope_missing"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, string(xerrors.CodeActionNotFound), decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/v1/actions/invoke", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/actions/invoke", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChat(t *testing.T) {
	h := NewServer(":0", Dependencies{Agent: stubAgent{}}).Handler()
	rec := do(t, h, http.MethodPost, "/api/v1/chat", agent.TaskRequest{Goal: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	var result agent.TaskResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "reply to hello", result.Reply)

	h = NewServer(":0", Dependencies{Agent: stubAgent{err: xerrors.New(xerrors.CodeTimeout, "")}}).Handler()
	rec = do(t, h, http.MethodPost, "/api/v1/chat", agent.TaskRequest{Goal: "hello"})
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestTaskEndpoints(t *testing.T) {
	store := task.NewMemoryStore()
	svc := task.NewService(store, nopProducer{}, 3)
	h := NewServer(":0", Dependencies{Tasks: svc}).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/tasks", agent.TaskRequest{ID: "task-1", Goal: "check balance"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.NoError(t, store.MarkSucceeded(context.Background(), "task-1", task.ExecutionResult{Reply: "ok"}))

	rec = do(t, h, http.MethodGet, "/api/v1/tasks/task-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, task.StatusSucceeded, got.Status)
	require.Equal(t, "ok", got.Result.Reply)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks?status=succeeded&include_stats=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list tasksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 1)
	require.NotNil(t, list.Stats)
	require.Equal(t, 1, list.Stats.Succeeded)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/tasks?status=bogus", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/tasks", agent.TaskRequest{Goal: " "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingDependenciesReturnUnavailable(t *testing.T) {
	h := NewServer(":0", Dependencies{}).Handler()
	for _, path := range []string{"/api/v1/actions", "/api/v1/tasks"} {
		rec := do(t, h, http.MethodGet, path, nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthPermissions(t *testing.T) {
	authSvc, err := auth.NewService(auth.Config{Enabled: true, Secret: "s3cret", Issuer: "agentkit"})
	require.NoError(t, err)
	h := NewServer(":0", Dependencies{Actions: newTestKit(t), Auth: authSvc}).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/actions", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	reader, err := authSvc.Issue(auth.Subject{Name: "reader"}, time.Minute)
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/v1/actions", nil, "Authorization", "Bearer "+reader)
	require.Equal(t, http.StatusOK, rec.Code)

	body := map[string]any{"name": "EchoProvider_echo", "args": map[string]any{"text": "hi"}}
	rec = do(t, h, http.MethodPost, "/api/v1/actions/invoke", body, "Authorization", "Bearer "+reader)
	require.Equal(t, http.StatusForbidden, rec.Code)

	invoker, err := authSvc.Issue(auth.Subject{Name: "bot", Permissions: []string{auth.PermActionsInvoke}}, time.Minute)
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/api/v1/actions/invoke", body, "Authorization", "Bearer "+invoker)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := NewServer(":0", Dependencies{}, WithRateLimit(1, 2)).Handler()

	for range 2 {
		rec := do(t, h, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, string(xerrors.CodeRateLimited), decodeError(t, rec).Code)
}
