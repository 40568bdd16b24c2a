package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/agentkit"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/web3test"
)

const echoSchema = `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`

func newKit(t *testing.T) *agentkit.Kit {
	t.Helper()
	p := action.NewBase("echo", "EchoProvider")
	p.MustDefine(action.Definition{
		Name:        "echo",
		Description: "Echo the text back",
		Schema:      echoSchema,
		Signature: action.Unbound(func(_ context.Context, args action.Args) (string, error) {
			return "echo: " + args["text"].(string), nil
		}),
	})
	kit, err := agentkit.New(web3test.NewWallet(web3.Network{ProtocolFamily: "evm", NetworkID: "base-sepolia"}), []action.Provider{p})
	if err != nil {
		t.Fatalf("new kit: %v", err)
	}
	return kit
}

// scriptedLLM 依次返回预设的响应，并记录每次收到的请求。
type scriptedLLM struct {
	mu        sync.Mutex
	responses []*llm.Response
	requests  []llm.Request
}

func (s *scriptedLLM) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func toolCall(id, name, args string) *llm.Response {
	return &llm.Response{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: json.RawMessage(args)}}}
}

func TestExecuteRunsToolsThenReplies(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.Response{
		toolCall("c1", "EchoProvider_echo", `{"text":"hi"}`),
		{Content: "done"},
	}}
	ag := New(model, newKit(t))

	result, err := ag.Execute(context.Background(), TaskRequest{Goal: "say hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reply != "done" || len(result.Steps) != 1 || result.Steps[0].Observation != "echo: hi" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(model.requests[0].Tools) != 1 || model.requests[0].Tools[0].Name != "EchoProvider_echo" {
		t.Fatalf("tools not published: %+v", model.requests[0].Tools)
	}
	last := model.requests[1].Messages[len(model.requests[1].Messages)-1]
	if last.Role != llm.RoleTool || last.ToolCallID != "c1" || last.Content != "echo: hi" {
		t.Fatalf("tool result not fed back: %+v", last)
	}
	if !strings.HasPrefix(result.WalletAddress, "0x") || result.Network != "evm/base-sepolia" {
		t.Fatalf("wallet context missing: %+v", result)
	}
}

func TestValidationFailureBecomesObservation(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.Response{
		toolCall("c1", "EchoProvider_echo", `{"text":3}`),
		toolCall("c2", "NoSuch_action", `{}`),
		{Content: "gave up"},
	}}
	result, err := New(model, newKit(t)).Execute(context.Background(), TaskRequest{Goal: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("unexpected steps: %+v", result.Steps)
	}
	for _, s := range result.Steps {
		if !strings.HasPrefix(s.Observation, "Error ") {
			t.Fatalf("expected error observation, got %q", s.Observation)
		}
	}
}

func TestStepLimit(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.Response{toolCall("c", "EchoProvider_echo", `{"text":"again"}`)}}
	result, err := New(model, newKit(t), WithMaxSteps(3)).Execute(context.Background(), TaskRequest{Goal: "loop"})
	if !xerrors.HasCode(err, CodeStepsExhausted) {
		t.Fatalf("expected step limit error, got %v", err)
	}
	if xerrors.RetryableError(err) {
		t.Fatalf("step limit must not be retried")
	}
	if len(model.requests) != 3 || len(result.Steps) != 3 {
		t.Fatalf("expected 3 rounds, got %d requests", len(model.requests))
	}
}

func TestExecuteTimeout(t *testing.T) {
	slow := llm.ClientFunc(func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
		select {
		case <-time.After(time.Second):
			return &llm.Response{Content: "late"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	_, err := New(slow, newKit(t), WithLLMTimeout(10*time.Millisecond)).Execute(context.Background(), TaskRequest{Goal: "x"})
	if !xerrors.HasCode(err, xerrors.CodeTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

type fixedHistory []Exchange

func (h fixedHistory) Recent(_ context.Context, limit int) ([]Exchange, error) {
	if len(h) > limit {
		return h[:limit], nil
	}
	return h, nil
}

func TestHistoryIsReplayedOldestFirst(t *testing.T) {
	model := &scriptedLLM{responses: []*llm.Response{{Content: "ok"}}}
	history := fixedHistory{{Goal: "newest", Reply: "r2"}, {Goal: "older", Reply: "r1"}, {Goal: "oldest", Reply: "r0"}}
	ag := New(model, newKit(t), WithHistory(history), WithMemoryDepth(2))

	if _, err := ag.Execute(context.Background(), TaskRequest{Goal: "now"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := model.requests[0].Messages
	var goals []string
	for _, m := range msgs {
		if m.Role == llm.RoleUser {
			goals = append(goals, m.Content)
		}
	}
	if strings.Join(goals, ",") != "older,newest,now" {
		t.Fatalf("unexpected history order: %v", goals)
	}
}

func TestExecuteRequiresGoal(t *testing.T) {
	_, err := New(&scriptedLLM{}, newKit(t)).Execute(context.Background(), TaskRequest{Goal: "  "})
	if !xerrors.HasCode(err, xerrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
