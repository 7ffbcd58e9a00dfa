// Package mcptransport exposes the dispatcher as MCP tools over stdio and
// streamable HTTP.
package mcptransport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/dispatcher"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/logger"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/models"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/validation"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/requestcontext"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "changedetection-mcp-server"

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

type Dispatcher interface {
	Dispatch(ctx context.Context, action string, args map[string]any) dispatcher.Envelope
}

// Catalog lists the actions to expose and their parameter rules.
type Catalog interface {
	Actions() []string
	Spec(action string) (validation.ActionSpec, bool)
}

type Server struct {
	mcp        *server.MCPServer
	dispatcher Dispatcher
	logger     *log.Logger
	tools      []mcp.Tool
}

type Option func(*Server)

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New registers one tool per catalog action.
func New(d Dispatcher, catalog Catalog, version string, opts ...Option) *Server {
	s := &Server{dispatcher: d}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}

	s.mcp = server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, action := range catalog.Actions() {
		spec, _ := catalog.Spec(action)
		tool := buildTool(spec)
		s.tools = append(s.tools, tool)
		s.mcp.AddTool(tool, s.handler(action))
	}
	s.logger.Info("mcp tools registered", "count", len(s.tools))
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Tools returns the registered tool definitions.
func (s *Server) Tools() []mcp.Tool {
	return s.tools
}

// ServeStdio serves JSON-RPC over in and out until ctx is done or in is
// closed. Every stdio call shares the single local identity.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(s.logger.StandardLog(log.StandardLogOptions{
		ForceLevel: log.ErrorLevel,
	}))
	stdio.SetContextFunc(stdioContext)
	s.logger.Info("serving mcp over stdio")
	return stdio.Listen(ctx, in, out)
}

func stdioContext(ctx context.Context) context.Context {
	return requestcontext.WithClientIdentity(ctx, models.StdioIdentity)
}

// HTTPHandler returns the streamable HTTP transport. Request-scoped values
// set by the router middleware are carried into tool calls.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath(EndpointPath),
		server.WithHTTPContextFunc(httpContext),
	)
}

func httpContext(ctx context.Context, r *http.Request) context.Context {
	rc := r.Context()
	ctx = requestcontext.WithClientIdentity(ctx, requestcontext.ClientIdentity(rc))
	if id := requestcontext.RequestID(rc); id != "" {
		ctx = requestcontext.WithRequestID(ctx, id)
	}
	return requestcontext.WithClientMetadata(ctx, requestcontext.ClientIP(rc), requestcontext.UserAgent(rc))
}

func (s *Server) handler(action string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := s.dispatcher.Dispatch(ctx, action, req.GetArguments())
		return toResult(env), nil
	}
}

func toResult(env dispatcher.Envelope) *mcp.CallToolResult {
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode tool result")
	}
	result := mcp.NewToolResultText(string(raw))
	result.IsError = !env.Success
	return result
}
