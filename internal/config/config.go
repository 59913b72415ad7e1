package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Store    StoreConfig    `toml:"store"`
	Board    BoardConfig    `toml:"board"`
	Lock     LockConfig     `toml:"lock"`
	Logging  LoggingConfig  `toml:"logging"`
	Notify   NotifyConfig   `toml:"notify"`
	Server   ServerConfig   `toml:"server"`
	Identity IdentityConfig `toml:"identity"`
}

type StoreConfig struct {
	Root string `toml:"root"`
}

// BoardConfig seeds `init board` when the caller supplies no name or columns.
type BoardConfig struct {
	Name    string         `toml:"name"`
	Columns []ColumnConfig `toml:"columns"`
}

type ColumnConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Rank     int    `toml:"rank"`
	WIPLimit int    `toml:"wip_limit"`
}

// LockConfig bounds store lock acquisition. Durations use time.ParseDuration syntax.
type LockConfig struct {
	BaseDelay   string `toml:"base_delay"`
	MaxDelay    string `toml:"max_delay"`
	MaxAttempts int    `toml:"max_attempts"`
	Timeout     string `toml:"timeout"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// NotifyConfig selects post-commit notification sinks. An empty redis_url
// disables Redis publishing.
type NotifyConfig struct {
	Log      bool   `toml:"log"`
	RedisURL string `toml:"redis_url"`
	Channel  string `toml:"channel"`
	Timeout  string `toml:"timeout"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type IdentityConfig struct {
	Actor string `toml:"actor"`
}

func defaultColumns() []ColumnConfig {
	return []ColumnConfig{
		{ID: "todo", Name: "To Do", Rank: 0},
		{ID: "in-progress", Name: "In Progress", Rank: 1},
		{ID: "done", Name: "Done", Rank: 2},
	}
}

func Default(storeRoot string) Config {
	return Config{
		Store: StoreConfig{
			Root: storeRoot,
		},
		Board: BoardConfig{
			Name:    "Board",
			Columns: defaultColumns(),
		},
		Lock: LockConfig{
			BaseDelay:   "25ms",
			MaxDelay:    "1s",
			MaxAttempts: 40,
			Timeout:     "10s",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".kanfile/log",
			},
		},
		Notify: NotifyConfig{
			Log:     false,
			Channel: "kanfile:ops",
			Timeout: "2s",
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:7373",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Save writes cfg as TOML, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Store.Root) == "" {
		return errors.New("store.root is required")
	}

	if strings.TrimSpace(c.Board.Name) == "" {
		return errors.New("board.name is required")
	}
	if len(c.Board.Columns) == 0 {
		return errors.New("board.columns must include at least one column")
	}
	seenColumnID := map[string]struct{}{}
	seenRank := map[int]string{}
	for idx, column := range c.Board.Columns {
		id := strings.TrimSpace(strings.ToLower(column.ID))
		if id == "" {
			return fmt.Errorf("board.columns[%d].id is required", idx)
		}
		if strings.TrimSpace(column.Name) == "" {
			return fmt.Errorf("board.columns[%d].name is required", idx)
		}
		if column.Rank < 0 {
			return fmt.Errorf("board.columns[%d].rank must be >= 0", idx)
		}
		if column.WIPLimit < 0 {
			return fmt.Errorf("board.columns[%d].wip_limit must be >= 0", idx)
		}
		if _, ok := seenColumnID[id]; ok {
			return fmt.Errorf("board.columns[%d].id is duplicated: %s", idx, id)
		}
		seenColumnID[id] = struct{}{}
		if other, ok := seenRank[column.Rank]; ok {
			return fmt.Errorf("board.columns[%d].rank %d is already used by %s", idx, column.Rank, other)
		}
		seenRank[column.Rank] = id
	}

	for name, raw := range map[string]string{
		"lock.base_delay": c.Lock.BaseDelay,
		"lock.max_delay":  c.Lock.MaxDelay,
		"lock.timeout":    c.Lock.Timeout,
		"notify.timeout":  c.Notify.Timeout,
	} {
		if _, err := parsePositiveDuration(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.Lock.MaxAttempts < 1 {
		return fmt.Errorf("lock.max_attempts must be >= 1")
	}

	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if url := strings.TrimSpace(c.Notify.RedisURL); url != "" && !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return fmt.Errorf("invalid notify.redis_url: %q", c.Notify.RedisURL)
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		if !strings.HasPrefix(strings.TrimSpace(endpoint), "/") {
			return fmt.Errorf("%s must start with /: %q", name, endpoint)
		}
	}
	return nil
}

// BaseDelayDuration returns the first lock retry delay.
func (c LockConfig) BaseDelayDuration() time.Duration {
	return mustDuration(c.BaseDelay, 25*time.Millisecond)
}

func (c LockConfig) MaxDelayDuration() time.Duration {
	return mustDuration(c.MaxDelay, time.Second)
}

// TimeoutDuration returns the total lock acquisition budget.
func (c LockConfig) TimeoutDuration() time.Duration {
	return mustDuration(c.Timeout, 10*time.Second)
}

func (c NotifyConfig) TimeoutDuration() time.Duration {
	return mustDuration(c.Timeout, 2*time.Second)
}

// ActorOverride returns the configured actor, or envActor when set.
func (c IdentityConfig) ActorOverride(envActor string) string {
	if actor := strings.TrimSpace(envActor); actor != "" {
		return actor
	}
	return strings.TrimSpace(c.Actor)
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", raw)
	}
	return d, nil
}

// mustDuration parses raw, falling back when it is missing or invalid.
func mustDuration(raw string, fallback time.Duration) time.Duration {
	d, err := parsePositiveDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
