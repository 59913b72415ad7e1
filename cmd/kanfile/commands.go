package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	serveradapter "github.com/hylla/kanfile/internal/adapters/server"
	"github.com/hylla/kanfile/internal/adapters/storage/sqlite"
	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/config"
	"github.com/hylla/kanfile/internal/domain"
)

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// opError reports a failed operation whose result was already printed.
type opError struct {
	body app.ErrorBody
}

func (e *opError) Error() string {
	return fmt.Sprintf("%s: %s", e.body.Kind, e.body.Message)
}

func (c *cli) runCmd() *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "run [INPUT]",
		Short: "Run one operation or a batch",
		Long: `Run one operation or a batch. INPUT is JSON or YAML; without arguments,
or with "-", it is read from stdin.

Examples:
  kanfile run 'get board'
  kanfile run '{"op": "add task", "title": "Write docs"}'
  kanfile run '[{"add": "task", "title": "A"}, {"add": "task", "title": "B", "deps": ["$0"]}]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := c.readInput(args)
			if err != nil {
				return err
			}
			input, err := decodeInput(raw)
			if err != nil {
				return err
			}
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				resp, err := rt.svc.Execute(ctx, input, rt.actor)
				if err != nil {
					return err
				}
				if err := writeJSONTo(cmd.OutOrStdout(), resp.Payload(), compact); err != nil {
					return err
				}
				return failureOf(resp)
			})
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "print single-line JSON")
	return cmd
}

func (c *cli) initCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "init [NAME]",
		Short: "Create the board with the configured columns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := map[string]any{"op": "init board"}
			if len(args) == 1 {
				op["name"] = args[0]
			}
			if strings.TrimSpace(description) != "" {
				op["description"] = description
			}
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				resp, err := rt.svc.Execute(ctx, op, rt.actor)
				if err != nil {
					return err
				}
				if err := failureOf(resp); err != nil {
					return err
				}
				var board domain.Board
				if err := decodeData(resp.Results[0], &board); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "initialized board %q with %d columns in %s\n", board.Name, len(board.Columns), rt.store.Root())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "board description")
	return cmd
}

func (c *cli) opsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List every supported operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			specs := app.Vocabulary()
			if asJSON {
				return writeJSONTo(cmd.OutOrStdout(), map[string]any{"ops": specs}, false)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), renderVocabulary(specs))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func (c *cli) boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Render the board with its tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				resp, err := rt.svc.Execute(ctx, []any{
					map[string]any{"op": "get board"},
					map[string]any{"op": "list task"},
				}, rt.actor)
				if err != nil {
					return err
				}
				if err := failureOf(resp); err != nil {
					return err
				}
				var board domain.Board
				if err := decodeData(resp.Results[0], &board); err != nil {
					return err
				}
				var tasks []app.TaskView
				if err := decodeData(resp.Results[1], &tasks); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), renderBoard(board, tasks))
				return err
			})
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	var (
		raw   bool
		style string
		width int
	)
	cmd := &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show one task as rendered markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				resp, err := rt.svc.Execute(ctx, map[string]any{"op": "get task", "id": args[0]}, rt.actor)
				if err != nil {
					return err
				}
				if err := failureOf(resp); err != nil {
					return err
				}
				var task app.TaskView
				if err := decodeData(resp.Results[0], &task); err != nil {
					return err
				}
				doc := taskMarkdown(task)
				if !raw {
					doc = renderMarkdown(doc, style, width)
				}
				_, err = io.WriteString(cmd.OutOrStdout(), doc)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown source without rendering")
	cmd.Flags().StringVar(&style, "style", "auto", "glamour style (auto, dark, light, notty)")
	cmd.Flags().IntVar(&width, "width", 80, "wrap width")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		outPath string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a snapshot of the whole store as JSON or SQLite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "json" && format != "sqlite" {
				return fmt.Errorf("unsupported export format %q: want json or sqlite", format)
			}
			if format == "sqlite" && (outPath == "" || outPath == "-") {
				return errors.New("--out is required for sqlite exports")
			}
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				snap, err := rt.svc.ExportSnapshot(ctx)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				rt.logger.Info("snapshot exported", "format", format, "out", outPath, "tasks", len(snap.Tasks), "activity", len(snap.Activity))
				if format == "sqlite" {
					return sqlite.Export(ctx, outPath, snap)
				}
				return writeSnapshotJSON(cmd.OutOrStdout(), outPath, snap)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().StringVar(&format, "format", "json", "export format: json or sqlite")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	var bind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and MCP tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				cfg := serveradapter.Config{
					HTTPBind:      firstNonEmpty(bind, rt.cfg.Server.HTTPBind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
					ServerName:    "kanfile",
					ServerVersion: version,
				}
				rt.logger.Info("serving", "bind", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint, "store_root", rt.store.Root())
				if err := serveCommandRunner(ctx, cfg, serveradapter.Dependencies{Ops: rt.svc}); err != nil {
					rt.logger.Error("server stopped with error", "err", err)
					return err
				}
				rt.logger.Info("server stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bind, "http", "", "listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API mount path")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream committed operations published to Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				if rt.redis == nil {
					return errors.New("watch requires notify.redis_url in the config")
				}
				out := cmd.OutOrStdout()
				rt.logger.Info("watching", "channel", rt.redis.Channel())
				return rt.redis.Subscribe(ctx, func(n app.Notification) {
					if asJSON {
						_ = writeJSONTo(out, n, true)
						return
					}
					_, _ = fmt.Fprintln(out, formatNotification(n))
				}, func(err error) {
					rt.logger.Warn("watch stream error", "err", err)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per notification")
	return cmd
}

func (c *cli) pathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and store paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.resolve()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", c.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", c.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", res.configPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", res.paths.DataDir)
			_, _ = fmt.Fprintf(out, "repo_root: %s\n", res.paths.RepoRoot)
			_, _ = fmt.Fprintf(out, "store_root: %s\n", res.cfg.Store.Root)
			_, _ = fmt.Fprintf(out, "actor: %s\n", res.actor)
			return nil
		},
	}
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.resolve()
			if err != nil {
				return err
			}
			if _, err := os.Stat(res.configPath); err == nil && !force {
				return fmt.Errorf("config %s already exists; pass --force to overwrite", res.configPath)
			}
			if err := config.Save(res.configPath, res.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", res.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	cmd.AddCommand(initCmd)
	return cmd
}

// readInput joins args into one input document, or reads stdin when none is given.
func (c *cli) readInput(args []string) ([]byte, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return []byte(strings.Join(args, " ")), nil
	}
	raw, err := io.ReadAll(c.stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return raw, nil
}

// decodeInput parses JSON or YAML caller input into generic values.
func decodeInput(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: input is required", app.ErrParse)
	}
	var input any
	if err := yaml.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("%w: decode input: %v", app.ErrParse, err)
	}
	if input == nil {
		return nil, fmt.Errorf("%w: input is required", app.ErrParse)
	}
	return input, nil
}

// decodeData re-decodes one result value into out.
func decodeData(res app.OpResult, out any) error {
	raw, err := json.Marshal(res.Data)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// failureOf returns the first failed result as an error.
func failureOf(resp app.Response) error {
	failed, ok := resp.Failed()
	if !ok || failed.Error == nil {
		return nil
	}
	return &opError{body: *failed.Error}
}

func writeJSONTo(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// writeSnapshotJSON writes snap to stdout or atomically to outPath.
func writeSnapshotJSON(stdout io.Writer, outPath string, snap app.Snapshot) error {
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "" || outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := atomic.WriteFile(outPath, bytes.NewReader(encoded)); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func formatNotification(n app.Notification) string {
	status := "ok"
	if !n.OK {
		status = "failed"
	}
	refs := make([]string, 0, len(n.Affected))
	for _, ref := range n.Affected {
		refs = append(refs, fmt.Sprintf("%s:%s", ref.Kind, ref.ID))
	}
	line := fmt.Sprintf("%s %-16s %-6s actor=%s", n.At, n.Op, status, n.Actor)
	if len(refs) > 0 {
		line += " affected=" + strings.Join(refs, ",")
	}
	return line
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
