package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/domain"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Exporter writes snapshots into a SQLite database for ad-hoc querying.
// The database is a read-only projection; the file store stays authoritative.
type Exporter struct {
	db *sql.DB
}

// Open creates a fresh export database at path, replacing any existing file.
func Open(path string) (*Exporter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("replace sqlite export: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	exp := &Exporter{db: db}
	if err := exp.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return exp, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Exporter, error) {
	db, err := sql.Open(driverName, "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	exp := &Exporter{db: db}
	if err := exp.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return exp, nil
}

// Close closes the database.
func (e *Exporter) Close() error {
	return e.db.Close()
}

// Export writes snap to a new database file at path.
func Export(ctx context.Context, path string, snap app.Snapshot) error {
	exp, err := Open(path)
	if err != nil {
		return err
	}
	if err := exp.Write(ctx, snap); err != nil {
		_ = exp.Close()
		return err
	}
	return exp.Close()
}

// migrate creates the export schema.
func (e *Exporter) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS columns_v1 (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			rank INTEGER NOT NULL,
			wip_limit INTEGER NOT NULL DEFAULT 0,
			terminal INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS swimlanes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			rank INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actors (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tags (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			column_id TEXT NOT NULL,
			swimlane_id TEXT NOT NULL DEFAULT '',
			ordinal TEXT NOT NULL,
			board_order INTEGER NOT NULL,
			FOREIGN KEY(column_id) REFERENCES columns_v1(id)
		);`,
		`CREATE TABLE IF NOT EXISTS task_dependencies (
			task_id TEXT NOT NULL,
			depends_on TEXT NOT NULL,
			PRIMARY KEY(task_id, depends_on),
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS task_tags (
			task_id TEXT NOT NULL,
			tag_id TEXT NOT NULL,
			PRIMARY KEY(task_id, tag_id),
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS task_assignees (
			task_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			PRIMARY KEY(task_id, actor_id),
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			seq INTEGER NOT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS subtasks (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			title TEXT NOT NULL,
			done INTEGER NOT NULL DEFAULT 0,
			seq INTEGER NOT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			mime_type TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS activity (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			op TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			ok INTEGER NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			input_json TEXT NOT NULL DEFAULT '{}',
			output_json TEXT NOT NULL DEFAULT 'null',
			duration_ms REAL NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_column_order ON tasks(column_id, swimlane_id, ordinal);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_ts ON activity(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// execerContext is the statement surface shared by *sql.DB and *sql.Tx.
type execerContext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Write inserts every snapshot row in one transaction.
func (e *Exporter) Write(ctx context.Context, snap app.Snapshot) (err error) {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = writeMeta(ctx, tx, snap); err != nil {
		return err
	}
	if err = writeBoard(ctx, tx, snap.Board); err != nil {
		return err
	}
	for _, a := range snap.Actors {
		if _, err = tx.ExecContext(ctx, `INSERT INTO actors(id, kind, name) VALUES (?, ?, ?)`, string(a.ID), string(a.Kind), a.Name); err != nil {
			return fmt.Errorf("insert actor %q: %w", a.ID, err)
		}
	}
	for _, t := range snap.Tags {
		if _, err = tx.ExecContext(ctx, `INSERT INTO tags(id, name, color) VALUES (?, ?, ?)`, string(t.ID), t.Name, t.Color); err != nil {
			return fmt.Errorf("insert tag %q: %w", t.ID, err)
		}
	}
	for i, t := range snap.Tasks {
		if err = writeTask(ctx, tx, t, i); err != nil {
			return err
		}
	}
	for _, entry := range snap.Activity {
		if err = writeActivity(ctx, tx, entry); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func writeMeta(ctx context.Context, execer execerContext, snap app.Snapshot) error {
	rows := [][2]string{
		{"version", snap.Version},
		{"exported_at", ts(snap.ExportedAt)},
		{"board_name", snap.Board.Name},
		{"board_description", snap.Board.Description},
	}
	for _, row := range rows {
		if _, err := execer.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES (?, ?)`, row[0], row[1]); err != nil {
			return fmt.Errorf("insert meta %s: %w", row[0], err)
		}
	}
	return nil
}

func writeBoard(ctx context.Context, execer execerContext, board domain.Board) error {
	terminal, _ := board.TerminalColumn()
	for _, c := range board.Columns {
		if _, err := execer.ExecContext(ctx, `
			INSERT INTO columns_v1(id, name, rank, wip_limit, terminal) VALUES (?, ?, ?, ?, ?)
		`, string(c.ID), c.Name, c.Rank, c.WIPLimit, boolInt(c.ID == terminal.ID)); err != nil {
			return fmt.Errorf("insert column %q: %w", c.ID, err)
		}
	}
	for _, s := range board.Swimlanes {
		if _, err := execer.ExecContext(ctx, `INSERT INTO swimlanes(id, name, rank) VALUES (?, ?, ?)`, string(s.ID), s.Name, s.Rank); err != nil {
			return fmt.Errorf("insert swimlane %q: %w", s.ID, err)
		}
	}
	return nil
}

func writeTask(ctx context.Context, execer execerContext, t domain.Task, order int) error {
	if _, err := execer.ExecContext(ctx, `
		INSERT INTO tasks(id, title, description, column_id, swimlane_id, ordinal, board_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(t.ID),
		t.Title,
		t.Description,
		string(t.Position.Column),
		string(t.Position.Swimlane),
		string(t.Position.Ordinal),
		order,
	); err != nil {
		return fmt.Errorf("insert task %q: %w", t.ID, err)
	}
	for _, dep := range t.DependsOn {
		if _, err := execer.ExecContext(ctx, `INSERT INTO task_dependencies(task_id, depends_on) VALUES (?, ?)`, string(t.ID), string(dep)); err != nil {
			return fmt.Errorf("insert dependency %q -> %q: %w", t.ID, dep, err)
		}
	}
	for _, tag := range t.Tags {
		if _, err := execer.ExecContext(ctx, `INSERT INTO task_tags(task_id, tag_id) VALUES (?, ?)`, string(t.ID), string(tag)); err != nil {
			return fmt.Errorf("insert task tag %q: %w", tag, err)
		}
	}
	for _, actor := range t.Assignees {
		if _, err := execer.ExecContext(ctx, `INSERT INTO task_assignees(task_id, actor_id) VALUES (?, ?)`, string(t.ID), string(actor)); err != nil {
			return fmt.Errorf("insert assignee %q: %w", actor, err)
		}
	}
	for i, c := range t.Comments {
		if _, err := execer.ExecContext(ctx, `
			INSERT INTO comments(id, task_id, author, body, seq) VALUES (?, ?, ?, ?, ?)
		`, string(c.ID), string(t.ID), string(c.Author), c.Body, i); err != nil {
			return fmt.Errorf("insert comment %q: %w", c.ID, err)
		}
	}
	for i, s := range t.Subtasks {
		if _, err := execer.ExecContext(ctx, `
			INSERT INTO subtasks(id, task_id, title, done, seq) VALUES (?, ?, ?, ?, ?)
		`, string(s.ID), string(t.ID), s.Title, boolInt(s.Done), i); err != nil {
			return fmt.Errorf("insert subtask %q: %w", s.ID, err)
		}
	}
	for _, a := range t.Attachments {
		if _, err := execer.ExecContext(ctx, `
			INSERT INTO attachments(id, task_id, name, path, mime_type, size) VALUES (?, ?, ?, ?, ?, ?)
		`, string(a.ID), string(t.ID), a.Name, a.Path, a.MimeType, a.Size); err != nil {
			return fmt.Errorf("insert attachment %q: %w", a.ID, err)
		}
	}
	return nil
}

func writeActivity(ctx context.Context, execer execerContext, entry domain.LogEntry) error {
	inputJSON, err := json.Marshal(entry.Input)
	if err != nil {
		return err
	}
	outputJSON, err := json.Marshal(entry.Output)
	if err != nil {
		return err
	}
	var kind, message string
	if entry.Error != nil {
		kind, message = entry.Error.Kind, entry.Error.Message
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO activity(id, ts, op, actor, ok, error_kind, error_message, input_json, output_json, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(entry.ID),
		ts(entry.Timestamp),
		entry.Op,
		entry.Actor,
		boolInt(entry.OK()),
		kind,
		message,
		string(inputJSON),
		string(outputJSON),
		entry.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert activity %q: %w", entry.ID, err)
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
