package mcpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hylla/kanfile/internal/adapters/server/common"
	"github.com/hylla/kanfile/internal/adapters/storage/filestore"
	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/domain"
)

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// newTestService builds a file-backed service in a temp store.
func newTestService(t *testing.T) *app.Service {
	t.Helper()
	store, err := filestore.Open(filepath.Join(t.TempDir(), ".kanfile"))
	if err != nil {
		t.Fatalf("filestore.Open() error = %v", err)
	}
	todo, _ := domain.NewColumn("", "To Do", 0, 0)
	done, _ := domain.NewColumn("", "Done", 1, 0)
	return app.NewService(store, nil, nil, app.ServiceConfig{
		Defaults: app.BoardDefaults{Name: "MCP", Columns: []domain.Column{todo, done}},
	})
}

// newTestServer starts one MCP handler over a fresh service.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, newTestService(t))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "kanfile-test",
				"version": "1.0.0",
			},
		},
	}
}

// callToolResultText decodes the first textual content block from a CallToolResult.
func callToolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatalf("result = nil, want non-nil")
	}
	if len(result.Content) == 0 {
		t.Fatalf("result content is empty")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] has unexpected type %T", result.Content[0])
	}
	return text.Text
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	server := newTestServer(t)

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersTools verifies tool discovery lists the run and vocabulary tools.
func TestHandlerRegistersTools(t *testing.T) {
	server := newTestServer(t)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, want := range []string{"kanfile.run", "kanfile.vocabulary"} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool list missing %s: %#v", want, toolNames)
		}
	}
}

// TestHandlerRunToolCall verifies single and batch operations through the run tool.
func TestHandlerRunToolCall(t *testing.T) {
	server := newTestServer(t)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())

	_, initResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, "kanfile.run", map[string]any{
		"op":    "init board",
		"actor": "agent-7",
	}))
	if isErr, _ := initResp.Result["isError"].(bool); isErr {
		t.Fatalf("init isError = true: %s", toolResultText(t, initResp.Result))
	}
	result, ok := toolResultStructured(t, initResp.Result)["result"].(map[string]any)
	if !ok || result["ok"] != true {
		t.Fatalf("init structured = %#v", initResp.Result["structuredContent"])
	}

	_, batchResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "kanfile.run", map[string]any{
		"ops": []any{
			map[string]any{"op": "add task", "title": "A"},
			map[string]any{"op": "add task", "title": "B", "deps": []any{"$0"}},
		},
	}))
	results, ok := toolResultStructured(t, batchResp.Result)["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("batch structured = %#v", batchResp.Result["structuredContent"])
	}
	first := results[0].(map[string]any)["data"].(map[string]any)
	second := results[1].(map[string]any)["data"].(map[string]any)
	deps, _ := second["depends_on"].([]any)
	if len(deps) != 1 || deps[0] != first["id"] {
		t.Fatalf("B.depends_on = %#v, want [%v]", deps, first["id"])
	}

	_, activityResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "kanfile.run", map[string]any{
		"op": "list activity",
	}))
	text := toolResultText(t, activityResp.Result)
	if !strings.Contains(text, "agent-7") {
		t.Fatalf("activity text = %s, want agent-7 actor", text)
	}
}

// TestHandlerRunToolCallErrorPaths verifies pre-execution and operation failures become tool errors.
func TestHandlerRunToolCallErrorPaths(t *testing.T) {
	server := newTestServer(t)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())

	cases := []struct {
		name       string
		args       map[string]any
		wantPrefix string
	}{
		{name: "unknown op", args: map[string]any{"op": "juggle task"}, wantPrefix: "parse:"},
		{name: "no board", args: map[string]any{"op": "get task", "id": "ghost"}, wantPrefix: "not_found:"},
	}
	for i, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(10+i, "kanfile.run", tt.args))
			if isErr, _ := resp.Result["isError"].(bool); !isErr {
				t.Fatalf("isError = false, want true: %#v", resp.Result)
			}
			if got := toolResultText(t, resp.Result); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}

// TestHandlerVocabularyToolCall verifies the vocabulary tool lists every operation.
func TestHandlerVocabularyToolCall(t *testing.T) {
	server := newTestServer(t)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, "kanfile.vocabulary", map[string]any{}))
	ops, ok := toolResultStructured(t, resp.Result)["ops"].([]any)
	if !ok || len(ops) != len(app.Vocabulary()) {
		t.Fatalf("vocabulary ops = %d, want %d", len(ops), len(app.Vocabulary()))
	}
}

// TestNewHandlerRequiresService verifies a nil service is rejected.
func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("NewHandler(nil) error = nil, want error")
	}
}

// TestNormalizeConfig verifies deterministic MCP defaults.
func TestNormalizeConfig(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "defaults",
			in:   Config{},
			want: Config{ServerName: "kanfile", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
		{
			name: "trims and prefixes",
			in:   Config{ServerName: " board ", ServerVersion: " 1.2.3 ", EndpointPath: "tools/mcp/"},
			want: Config{ServerName: "board", ServerVersion: "1.2.3", EndpointPath: "/tools/mcp"},
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeConfig(tt.in); got != tt.want {
				t.Fatalf("normalizeConfig() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handler paths fail closed with 503.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler *Handler
	}{
		{
			name:    "nil receiver",
			handler: nil,
		},
		{
			name:    "missing inner http handler",
			handler: &Handler{},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()

			tt.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
			if !strings.Contains(rec.Body.String(), "mcp handler unavailable") {
				t.Fatalf("body = %q, want mcp handler unavailable", rec.Body.String())
			}
		})
	}
}

// TestToolResultFromErrorMapping verifies deterministic error-to-tool-result mapping.
func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "nil error", err: nil, wantPrefix: "internal_error:"},
		{name: "invalid request", err: fmt.Errorf("decode: %w", common.ErrInvalidRequest), wantPrefix: "invalid_request:"},
		{name: "parse", err: errors.Join(app.ErrParse, errors.New("unknown verb")), wantPrefix: "parse:"},
		{name: "not found", err: errors.Join(app.ErrNotFound, errors.New("missing")), wantPrefix: "not_found:"},
		{name: "lock timeout", err: errors.Join(app.ErrLockTimeout, errors.New("held")), wantPrefix: "lock_timeout:"},
		{name: "unclassified", err: errors.New("boom"), wantPrefix: "io:"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResultFromError(tt.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			if got := callToolResultText(t, result); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}
