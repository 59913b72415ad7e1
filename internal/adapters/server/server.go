// Package server mounts the operation API, the MCP tools, and the health
// endpoints on one mux and runs it until the caller's context ends.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/hylla/kanfile/internal/adapters/server/common"
	"github.com/hylla/kanfile/internal/adapters/server/httpapi"
	"github.com/hylla/kanfile/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress = "127.0.0.1:7373"
	defaultAPIEndpoint = "/api/v1"
	defaultMCPEndpoint = "/mcp"

	shutdownGrace     = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// statusPaths are served by the mux itself and may not be claimed by a transport.
var statusPaths = []string{"/healthz", "/readyz"}

// Config is the `serve` surface: where to listen and where each transport lives.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
}

// Dependencies carries the one service both transports execute against.
type Dependencies struct {
	Ops common.OpsService
}

// NewHandler builds the serve mux and returns it with the effective config.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Ops == nil {
		return nil, Config{}, errors.New("server: operation service is required")
	}

	tools, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
	}, deps.Ops)
	if err != nil {
		return nil, Config{}, fmt.Errorf("server: mcp tools: %w", err)
	}
	api := http.StripPrefix(cfg.APIEndpoint, httpapi.NewHandler(deps.Ops))

	mux := http.NewServeMux()
	mux.HandleFunc(statusPaths[0], func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc(statusPaths[1], readinessHandler(deps.Ops))
	mux.Handle(cfg.MCPEndpoint, tools)
	mux.Handle(cfg.APIEndpoint, api)
	mux.Handle(cfg.APIEndpoint+"/", api)
	return mux, cfg, nil
}

// Run listens on cfg.HTTPBind and serves until ctx is done. A bind failure is
// returned before any request is accepted.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", cfg.HTTPBind, err)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	shutdownErr := srv.Shutdown(graceCtx)
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("server: shutdown: %w", shutdownErr)
	}
	return nil
}

// normalizeConfig fills defaults and rejects endpoints that would shadow each
// other or the status paths.
func normalizeConfig(cfg Config) (Config, error) {
	if cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind); cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}
	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint, defaultAPIEndpoint)
	cfg.MCPEndpoint = normalizeEndpoint(cfg.MCPEndpoint, defaultMCPEndpoint)
	if overlaps(cfg.APIEndpoint, cfg.MCPEndpoint) {
		return Config{}, fmt.Errorf("server: api endpoint %s and mcp endpoint %s overlap", cfg.APIEndpoint, cfg.MCPEndpoint)
	}
	for _, status := range statusPaths {
		for _, endpoint := range []string{cfg.APIEndpoint, cfg.MCPEndpoint} {
			if overlaps(endpoint, status) {
				return Config{}, fmt.Errorf("server: endpoint %s collides with %s", endpoint, status)
			}
		}
	}
	if cfg.ServerName = strings.TrimSpace(cfg.ServerName); cfg.ServerName == "" {
		cfg.ServerName = "kanfile"
	}
	if cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion); cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	return cfg, nil
}

// normalizeEndpoint cleans p into a rooted path without a trailing slash.
// Blank input and the bare root fall back to def.
func normalizeEndpoint(p, def string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	if p == "/" {
		return def
	}
	return p
}

// overlaps reports whether one endpoint equals the other or is a parent of it.
func overlaps(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

// readinessHandler answers 200 once the store holds a board. Any failure is
// reported as 503 unless it already maps to a server error.
func readinessHandler(ops common.OpsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := ops.Ready(r.Context())
		if err == nil {
			writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		status, code := common.MapError(err)
		if status < http.StatusInternalServerError {
			status = http.StatusServiceUnavailable
		}
		writeStatus(w, status, map[string]string{
			"status": "unavailable",
			"code":   code,
			"reason": err.Error(),
		})
	}
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
