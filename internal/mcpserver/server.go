// Package mcpserver publishes the action catalog as MCP tools.
package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"AgentKit-Chain/internal/action"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/logger"
)

// Dispatcher is the part of the Kit the MCP server needs.
type Dispatcher interface {
	Describe() []action.Spec
	Invoke(ctx context.Context, name string, args action.Args) (string, error)
}

// Server wraps an mcp-go server whose tools mirror the action catalog.
type Server struct {
	mcp *server.MCPServer
}

// New registers one tool per action currently exposed by d.
func New(d Dispatcher, name, version string) *Server {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	tools := Tools(d)
	s.AddTools(tools...)
	logger.Named("mcp").Info("MCP 工具已注册", slog.Int("tools", len(tools)))
	return &Server{mcp: s}
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio blocks serving JSON-RPC over in/out until ctx is done or the
// input is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// Tools converts every action spec into a server tool. The action's JSON
// schema is published verbatim as the tool input schema.
func Tools(d Dispatcher) []server.ServerTool {
	specs := d.Describe()
	tools := make([]server.ServerTool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, server.ServerTool{
			Tool:    mcp.NewToolWithRawSchema(spec.Name, spec.Description, spec.Parameters),
			Handler: handler(d, spec.Name),
		})
	}
	return tools
}

func handler(d Dispatcher, name string) server.ToolHandlerFunc {
	log := logger.Named("mcp")
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]any)
		if args == nil {
			args = action.Args{}
		}
		start := time.Now()
		out, err := d.Invoke(ctx, name, args)
		if err != nil {
			log.Warn("MCP 工具调用失败",
				slog.String("action", name),
				slog.String("code", string(xerrors.CodeOf(err))),
				slog.Any("error", err))
			return textResult(err.Error(), true), nil
		}
		log.Debug("MCP 工具调用完成",
			slog.String("action", name),
			slog.Duration("duration", time.Since(start)))
		return textResult(out, false), nil
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: isError,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}
