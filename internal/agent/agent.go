package agent

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"AgentKit-Chain/internal/action"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/pkg/logger"
)

// CodeStepsExhausted 表示代理在步数上限内没有给出最终回复。
const CodeStepsExhausted xerrors.Code = "AGENT_STEPS_EXHAUSTED"

func init() {
	xerrors.Register(CodeStepsExhausted, xerrors.Attributes{
		Message:  "agent step limit reached",
		Severity: xerrors.SeverityWarning,
	})
}

// TaskRequest 描述了一次代理对话请求。
type TaskRequest struct {
	ID       string         `json:"id,omitempty"`
	Goal     string         `json:"goal"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Step 记录一次工具调用及其观察结果。
type Step struct {
	Action      string          `json:"action"`
	Arguments   json.RawMessage `json:"arguments"`
	Observation string          `json:"observation"`
}

// TaskResult 汇总一次代理执行的结果。
type TaskResult struct {
	Goal          string `json:"goal"`
	Reply         string `json:"reply"`
	Steps         []Step `json:"steps,omitempty"`
	Network       string `json:"network,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// Dispatcher 是代理需要的动作调度能力，由 agentkit.Kit 实现。
type Dispatcher interface {
	Wallet() web3.WalletProvider
	Describe() []action.Spec
	Invoke(ctx context.Context, name string, args action.Args) (string, error)
}

// Exchange 是一轮已完成的对话，用作上下文记忆。
type Exchange struct {
	Goal  string
	Reply string
}

// History 提供最近完成的对话，按时间倒序。
type History interface {
	Recent(ctx context.Context, limit int) ([]Exchange, error)
}

// Agent 驱动大模型在动作集合上进行多轮工具调用。
type Agent struct {
	llmClient   llm.Client
	kit         Dispatcher
	history     History
	maxSteps    int
	memoryDepth int
	llmTimeout  time.Duration
	log         *slog.Logger
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

const (
	defaultMaxSteps    = 5
	defaultMemoryDepth = 5
)

// WithMaxSteps 设置一次执行中大模型的最大轮数。
func WithMaxSteps(steps int) Option {
	return func(a *Agent) {
		a.maxSteps = steps
	}
}

// WithMemoryDepth 设置可参考的历史对话数量。
func WithMemoryDepth(depth int) Option {
	return func(a *Agent) {
		a.memoryDepth = depth
	}
}

// WithHistory 配置历史对话来源。
func WithHistory(h History) Option {
	return func(a *Agent) {
		a.history = h
	}
}

// WithLLMTimeout 设置单轮大模型调用的超时时间，0 表示不限制。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout < 0 {
			timeout = 0
		}
		a.llmTimeout = timeout
	}
}

// New 创建一个 Agent。
func New(llmClient llm.Client, kit Dispatcher, opts ...Option) *Agent {
	ag := &Agent{
		llmClient:   llmClient,
		kit:         kit,
		maxSteps:    defaultMaxSteps,
		memoryDepth: defaultMemoryDepth,
		log:         logger.Named("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.maxSteps <= 0 {
		ag.maxSteps = defaultMaxSteps
	}
	if ag.memoryDepth < 0 {
		ag.memoryDepth = 0
	}
	return ag
}

// Execute 运行工具调用循环，直到大模型给出最终回复或达到步数上限。
func (a *Agent) Execute(ctx context.Context, req TaskRequest) (*TaskResult, error) {
	if a.llmClient == nil || a.kit == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端或动作集合")
	}
	if strings.TrimSpace(req.Goal) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "任务目标不能为空")
	}

	result := &TaskResult{Goal: req.Goal, CreatedAt: time.Now().Unix()}
	if w := a.kit.Wallet(); w != nil {
		result.Network = w.Network().String()
		result.WalletAddress = w.Address().Hex()
	}

	messages := append(a.prelude(ctx, result), llm.Message{Role: llm.RoleUser, Content: req.Goal})
	tools := toolsOf(a.kit.Describe())

	for step := 0; step < a.maxSteps; step++ {
		resp, err := a.generate(ctx, llm.Request{Messages: messages, Tools: tools})
		if err != nil {
			return nil, err
		}
		if len(resp.ToolCalls) == 0 {
			result.Reply = resp.Content
			return result, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			observation := a.invoke(ctx, call)
			result.Steps = append(result.Steps, Step{Action: call.Name, Arguments: call.Arguments, Observation: observation})
			messages = append(messages, llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: observation})
		}
	}
	return result, xerrors.New(CodeStepsExhausted, fmt.Sprintf("%d 轮内未得到最终回复", a.maxSteps),
		xerrors.WithMetadata("steps", fmt.Sprint(len(result.Steps))))
}

func (a *Agent) generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	llmCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	resp, err := a.llmClient.Generate(llmCtx, req)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		if _, ok := xerrors.From(err); ok {
			return nil, err
		}
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "大模型推理失败")
	}
	if resp == nil {
		return nil, xerrors.New(xerrors.CodeExecutorFailure, "大模型返回空响应")
	}
	return resp, nil
}

// invoke 执行一次工具调用。参数或动作名错误会作为观察结果返回给大模型。
func (a *Agent) invoke(ctx context.Context, call llm.ToolCall) string {
	args := action.Args{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return fmt.Sprintf("Error %s: arguments are not a JSON object: %v", call.Name, err)
		}
	}
	out, err := a.kit.Invoke(ctx, call.Name, args)
	if err != nil {
		a.log.Info("工具调用被拒绝",
			slog.String("action", call.Name),
			slog.String("error_code", string(xerrors.CodeOf(err))),
			slog.Any("error", err))
		return fmt.Sprintf("Error %s: %v", call.Name, err)
	}
	return out
}

func (a *Agent) prelude(ctx context.Context, result *TaskResult) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt(result)}}
	if a.history == nil || a.memoryDepth == 0 {
		return messages
	}
	recent, err := a.history.Recent(ctx, a.memoryDepth)
	if err != nil {
		a.log.Warn("加载历史对话失败", slog.Any("error", err))
		return messages
	}
	// 按时间正序放入上下文
	for i := len(recent) - 1; i >= 0; i-- {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: recent[i].Goal},
			llm.Message{Role: llm.RoleAssistant, Content: recent[i].Reply})
	}
	return messages
}

func systemPrompt(result *TaskResult) string {
	var b strings.Builder
	b.WriteString("You are a helpful agent that can interact onchain using the provided tools. ")
	b.WriteString("Call tools when you need fresh data or need to act, then answer the user concisely. ")
	b.WriteString("If a tool returns an error, explain it or try again with corrected arguments.")
	if result.WalletAddress != "" {
		fmt.Fprintf(&b, "\nConnected wallet: %s on %s.", result.WalletAddress, result.Network)
	}
	return b.String()
}

func toolsOf(specs []action.Spec) []llm.Tool {
	tools := make([]llm.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, llm.Tool{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	return tools
}
