// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/kanfile/internal/adapters/server/common"
	"github.com/hylla/kanfile/internal/app"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the operation tools.
func NewHandler(cfg Config, ops common.OpsService) (*Handler, error) {
	if ops == nil {
		return nil, fmt.Errorf("operation service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerRunTool(mcpSrv, ops)
	registerVocabularyTool(mcpSrv, ops)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "kanfile"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerRunTool registers the `kanfile.run` tool. Arguments are free-form:
// any accepted operation shape, an `ops` list for batches, and an optional actor.
func registerRunTool(srv *mcpserver.MCPServer, ops common.OpsService) {
	srv.AddTool(
		mcp.NewTool(
			"kanfile.run",
			mcp.WithDescription("Run one board operation or a batch. Pass `op` as \"verb noun\" (e.g. \"add task\") with its params, or `ops` as a list. Later batch items may reference earlier results as \"$0\" or \"$0.position.column\"."),
			mcp.WithString("op", mcp.Description("Operation as \"verb noun\"; see kanfile.vocabulary")),
			mcp.WithArray("ops", mcp.Description("Batch of operations run in order")),
			mcp.WithString("actor", mcp.Description("Acting identity recorded in the activity log")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			if len(args) == 0 {
				return mcp.NewToolResultError("invalid_request: arguments are required"), nil
			}
			input, actor := common.SplitActor(map[string]any(args))
			resp, err := ops.Execute(ctx, input, actor)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if failed, ok := resp.Failed(); ok && !resp.Batch {
				return toolResultFromBody(failed.Error), nil
			}
			result, err := mcp.NewToolResultJSON(wrapPayload(resp))
			if err != nil {
				return nil, fmt.Errorf("encode run result: %w", err)
			}
			return result, nil
		},
	)
}

// registerVocabularyTool registers the `kanfile.vocabulary` tool.
func registerVocabularyTool(srv *mcpserver.MCPServer, ops common.OpsService) {
	srv.AddTool(
		mcp.NewTool(
			"kanfile.vocabulary",
			mcp.WithDescription("List every supported operation with its required params."),
		),
		func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := mcp.NewToolResultJSON(map[string]any{
				"ops": ops.Vocabulary(),
			})
			if err != nil {
				return nil, fmt.Errorf("encode vocabulary result: %w", err)
			}
			return result, nil
		},
	)
}

// wrapPayload keeps structured content an object for single and batch responses.
func wrapPayload(resp app.Response) map[string]any {
	if resp.Batch || len(resp.Results) != 1 {
		return map[string]any{"results": resp.Results}
	}
	return map[string]any{"result": resp.Results[0]}
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("internal_error: unknown error")
	}
	_, code := common.MapError(err)
	return mcp.NewToolResultError(code + ": " + err.Error())
}

// toolResultFromBody maps one failed operation result into a tool error.
func toolResultFromBody(body *app.ErrorBody) *mcp.CallToolResult {
	if body == nil {
		return mcp.NewToolResultError("internal_error: unknown error")
	}
	return mcp.NewToolResultError(string(body.Kind) + ": " + body.Message)
}
