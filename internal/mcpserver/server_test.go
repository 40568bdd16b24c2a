package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/agentkit"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/web3test"
)

func newKit(t *testing.T) *agentkit.Kit {
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
	p.MustDefine(action.Definition{
		Name:        "broken",
		Description: "Always fails",
		Schema:      `{"type":"object"}`,
		Signature: action.Unbound(func(context.Context, action.Args) (string, error) {
			return "", errors.New("boom")
		}),
	})
	kit, err := agentkit.New(web3test.NewWallet(web3.Network{ProtocolFamily: "evm", NetworkID: "base-sepolia"}), []action.Provider{p})
	require.NoError(t, err)
	return kit
}

func call(t *testing.T, kit *agentkit.Kit, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := handler(kit, name)(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", res.Content[0])
	return tc.Text
}

func TestToolsMirrorCatalog(t *testing.T) {
	kit := newKit(t)
	tools := Tools(kit)
	require.Len(t, tools, 2)
	require.Equal(t, "EchoProvider_echo", tools[0].Tool.Name)
	require.Equal(t, "Echo the text back", tools[0].Tool.Description)
	require.JSONEq(t, string(kit.Describe()[0].Parameters), string(tools[0].Tool.RawInputSchema))
}

func TestHandlerResults(t *testing.T) {
	kit := newKit(t)

	res := call(t, kit, "EchoProvider_echo", map[string]any{"text": "hi"})
	require.False(t, res.IsError)
	require.Equal(t, "echo: hi", text(t, res))

	res = call(t, kit, "EchoProvider_echo", map[string]any{})
	require.True(t, res.IsError)
	require.Contains(t, text(t, res), "ACTION_VALIDATION_FAILED")

	res = call(t, kit, "EchoProvider_broken", nil)
	require.False(t, res.IsError)
	require.Equal(t, "Error EchoProvider_broken: boom", text(t, res))
}

func TestListToolsOverJSONRPC(t *testing.T) {
	s := New(newKit(t), "agentkit-test", "0.0.1")
	raw := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := s.MCP().HandleMessage(context.Background(), raw)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	require.Contains(t, string(out), `"name":"EchoProvider_echo"`)
	require.Contains(t, string(out), `"required":["text"]`)
}
