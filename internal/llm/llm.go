package llm

import (
	"context"
	"encoding/json"
)

// Role 标识对话消息的发送方。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message 是一条对话消息。RoleTool 消息通过 ToolCallID 关联到触发它的调用。
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// Tool 描述模型可以调用的一个函数，Parameters 为 JSON Schema。
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall 是模型请求执行的一次函数调用。
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Request 描述发送给大模型的完整上下文。
type Request struct {
	Messages []Message
	Tools    []Tool
}

// Response 是大模型的一轮输出：要么是最终回复，要么是一组工具调用。
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc 允许使用普通函数实现 Client。
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// Generate 实现 Client。
func (f ClientFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
