package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hylla/kanfile/internal/adapters/notify"
	"github.com/hylla/kanfile/internal/adapters/storage/filestore"
	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/config"
	"github.com/hylla/kanfile/internal/domain"
	"github.com/hylla/kanfile/internal/platform"
)

// cli carries process IO and global flag state shared by every command.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	now    func() time.Time

	configPath string
	root       string
	actor      string
	appName    string
	workDir    string
	devMode    bool
}

// newCLI builds the command state with environment-derived defaults.
func newCLI(stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) *cli {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	c := &cli{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		getenv:  getenv,
		now:     time.Now,
		appName: "kanfile",
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv(getenv("KANFILE_DEV_MODE")); ok {
		c.devMode = envDev
	}
	return c
}

// newRootCommand assembles the command tree.
func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "kanfile",
		Short: "File-backed task board for humans and agents",
		Long: `kanfile keeps a task board as plain files next to your code.

Every change goes through one operation vocabulary ("add task", "move task",
"next task", ...) whether it comes from this CLI, the HTTP API, or MCP tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config TOML (env KANFILE_CONFIG)")
	flags.StringVar(&c.root, "root", "", "store directory (env KANFILE_ROOT, default <repo>/.kanfile)")
	flags.StringVar(&c.actor, "actor", "", "acting identity recorded in the log (env KANFILE_ACTOR)")
	flags.BoolVar(&c.devMode, "dev", c.devMode, "use dev mode paths and file logging (env KANFILE_DEV_MODE)")

	root.AddCommand(
		c.runCmd(),
		c.initCmd(),
		c.opsCmd(),
		c.boardCmd(),
		c.showCmd(),
		c.exportCmd(),
		c.serveCmd(),
		c.watchCmd(),
		c.pathsCmd(),
		c.configCmd(),
	)
	return root
}

// runtime holds the resolved configuration and opened adapters for one command.
type runtime struct {
	cfg        config.Config
	paths      platform.Paths
	configPath string
	actor      string
	logger     *runtimeLogger
	store      *filestore.Store
	svc        *app.Service
	redis      *notify.Redis
}

// resolved is the configuration half of runtime, available without opening the store.
type resolved struct {
	cfg        config.Config
	paths      platform.Paths
	configPath string
	actor      string
}

// resolve applies flag > env > config file > default precedence.
func (c *cli) resolve() (resolved, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.appName,
		DevMode: c.devMode,
		WorkDir: c.workDir,
	})
	if err != nil {
		return resolved{}, err
	}

	configPath := strings.TrimSpace(c.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(c.getenv("KANFILE_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(paths.StoreRoot))
	if err != nil {
		return resolved{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if envRoot := strings.TrimSpace(c.getenv("KANFILE_ROOT")); envRoot != "" {
		cfg.Store.Root = envRoot
	}
	if flagRoot := strings.TrimSpace(c.root); flagRoot != "" {
		cfg.Store.Root = flagRoot
	}
	if !filepath.IsAbs(cfg.Store.Root) {
		cfg.Store.Root = filepath.Join(paths.RepoRoot, cfg.Store.Root)
	}

	actor := strings.TrimSpace(c.actor)
	if actor == "" {
		actor = cfg.Identity.ActorOverride(c.getenv("KANFILE_ACTOR"))
	}
	return resolved{cfg: cfg, paths: paths, configPath: configPath, actor: actor}, nil
}

// open resolves configuration and wires logger, store, notifiers, and service.
func (c *cli) open(command string) (*runtime, error) {
	res, err := c.resolve()
	if err != nil {
		return nil, err
	}
	logger, err := newRuntimeLogger(c.stderr, c.appName, c.devMode, res.paths.RepoRoot, res.cfg.Logging, c.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	rt := &runtime{
		cfg:        res.cfg,
		paths:      res.paths,
		configPath: res.configPath,
		actor:      res.actor,
		logger:     logger,
	}

	logger.Debug("startup configuration resolved", "app", c.appName, "dev_mode", c.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", res.configPath, "repo_root", res.paths.RepoRoot, "store_root", res.cfg.Store.Root)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}

	rt.store, err = filestore.Open(res.cfg.Store.Root)
	if err != nil {
		logger.Error("store open failed", "store_root", res.cfg.Store.Root, "err", err)
		_ = rt.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	var notifiers notify.Fanout
	if res.cfg.Notify.Log {
		notifiers = append(notifiers, notify.NewLog(logger))
	}
	if url := strings.TrimSpace(res.cfg.Notify.RedisURL); url != "" {
		rt.redis, err = notify.NewRedis(url, res.cfg.Notify.Channel)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("configure redis notifier: %w", err)
		}
		notifiers = append(notifiers, rt.redis)
	}

	defaults, err := boardDefaults(res.cfg.Board)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	svcCfg := app.ServiceConfig{
		Retry: app.RetryPolicy{
			BaseDelay:   res.cfg.Lock.BaseDelayDuration(),
			MaxDelay:    res.cfg.Lock.MaxDelayDuration(),
			MaxAttempts: res.cfg.Lock.MaxAttempts,
			MaxElapsed:  res.cfg.Lock.TimeoutDuration(),
		},
		Defaults:      defaults,
		NotifyTimeout: res.cfg.Notify.TimeoutDuration(),
		Logger:        logger,
		InstanceID:    uuid.NewString(),
	}
	if len(notifiers) > 0 {
		svcCfg.Notifier = notifiers
	}
	rt.svc = app.NewService(rt.store, nil, nil, svcCfg)
	logger.Debug("application service initialized", "store_root", rt.store.Root(), "instance_id", svcCfg.InstanceID, "notifiers", len(notifiers))
	return rt, nil
}

// Close releases the notifier connection and the dev log file.
func (r *runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis notifier: %w", err))
		}
	}
	if err := r.logger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close runtime log sink: %w", err))
	}
	return errors.Join(errs...)
}

// withRuntime opens a runtime for one command body and closes it afterwards.
func (c *cli) withRuntime(cmd *cobra.Command, fn func(context.Context, *runtime) error) (err error) {
	rt, err := c.open(cmd.Name())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	ctx := app.WithCaller(cmd.Context(), app.Caller{Actor: rt.actor, Source: "cli"})
	rt.logger.Debug("command flow start", "command", cmd.Name())
	if err := fn(ctx, rt); err != nil {
		rt.logger.Debug("command flow failed", "command", cmd.Name(), "err", err)
		return err
	}
	rt.logger.Debug("command flow complete", "command", cmd.Name())
	return nil
}

// boardDefaults converts configured columns into the seed layout for `init board`.
func boardDefaults(cfg config.BoardConfig) (app.BoardDefaults, error) {
	out := app.BoardDefaults{Name: cfg.Name, Columns: make([]domain.Column, 0, len(cfg.Columns))}
	for _, col := range cfg.Columns {
		column, err := domain.NewColumn(col.ID, col.Name, col.Rank, col.WIPLimit)
		if err != nil {
			return app.BoardDefaults{}, fmt.Errorf("board column %q: %w", col.ID, err)
		}
		out.Columns = append(out.Columns, column)
	}
	return out, nil
}

// parseBoolEnv parses one boolean environment value.
func parseBoolEnv(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
