package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/hylla/kanfile/internal/app"
	"github.com/hylla/kanfile/internal/domain"
)

// On-disk layout under the store root.
const (
	boardFile   = "board.json"
	tasksDir    = "tasks"
	actorsDir   = "actors"
	tagsDir     = "tags"
	activityDir = "activity"
	lockFile    = ".lock"
	entityExt   = ".json"
	logExt      = ".jsonl"
)

// entityDirs maps entity kinds to the directory holding their files and logs.
var entityDirs = map[domain.EntityKind]string{
	domain.EntityTask:  tasksDir,
	domain.EntityActor: actorsDir,
	domain.EntityTag:   tagsDir,
}

// Store is a file-backed app.Store rooted at one directory. It holds no
// entity state between calls; every read goes to disk.
type Store struct {
	root string
}

var _ app.Store = (*Store)(nil)

// Open prepares root and its subdirectories and returns a store over it.
func Open(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}
	for _, dir := range []string{abs, filepath.Join(abs, tasksDir), filepath.Join(abs, actorsDir), filepath.Join(abs, tagsDir), filepath.Join(abs, activityDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir %s: %w", dir, err)
		}
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string {
	return s.root
}

// BoardExists reports whether board.json is present.
func (s *Store) BoardExists(context.Context) (bool, error) {
	_, err := os.Stat(filepath.Join(s.root, boardFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, ioError("stat board", err)
}

// ReadBoard loads board.json.
func (s *Store) ReadBoard(context.Context) (domain.Board, error) {
	var board domain.Board
	if err := readJSON(filepath.Join(s.root, boardFile), &board, "board"); err != nil {
		return domain.Board{}, err
	}
	if board.Columns == nil {
		board.Columns = []domain.Column{}
	}
	if board.Swimlanes == nil {
		board.Swimlanes = []domain.Swimlane{}
	}
	return board, nil
}

// WriteBoard replaces board.json atomically.
func (s *Store) WriteBoard(_ context.Context, board domain.Board) error {
	return writeJSON(filepath.Join(s.root, boardFile), board)
}

// ReadTask loads one task file.
func (s *Store) ReadTask(_ context.Context, id domain.TaskID) (domain.Task, error) {
	path, err := s.entityPath(domain.EntityTask, string(id))
	if err != nil {
		return domain.Task{}, err
	}
	var task domain.Task
	if err := readJSON(path, &task, fmt.Sprintf("task %q", id)); err != nil {
		return domain.Task{}, err
	}
	task.Normalize()
	return task, nil
}

// WriteTask replaces one task file atomically.
func (s *Store) WriteTask(_ context.Context, task domain.Task) error {
	path, err := s.entityWritePath(domain.EntityTask, string(task.ID))
	if err != nil {
		return err
	}
	task.Normalize()
	return writeJSON(path, task)
}

// DeleteTask removes a task file. The task log is kept.
func (s *Store) DeleteTask(_ context.Context, id domain.TaskID) error {
	return s.deleteEntity(domain.EntityTask, string(id))
}

// ListTasks reads every task file, sorted by id.
func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	ids, err := s.listIDs(domain.EntityTask)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.ReadTask(ctx, domain.TaskID(id))
		if errors.Is(err, app.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, nil
}

// ReadActor loads one actor file.
func (s *Store) ReadActor(_ context.Context, id domain.ActorID) (domain.Actor, error) {
	path, err := s.entityPath(domain.EntityActor, string(id))
	if err != nil {
		return nil, err
	}
	var record domain.ActorRecord
	if err := readJSON(path, &record, fmt.Sprintf("actor %q", id)); err != nil {
		return nil, err
	}
	actor, err := record.Actor()
	if err != nil {
		return nil, ioError(fmt.Sprintf("decode actor %q", id), err)
	}
	return actor, nil
}

// WriteActor replaces one actor file atomically.
func (s *Store) WriteActor(_ context.Context, actor domain.Actor) error {
	path, err := s.entityWritePath(domain.EntityActor, string(actor.ActorID()))
	if err != nil {
		return err
	}
	return writeJSON(path, domain.RecordOf(actor))
}

// DeleteActor removes an actor file. The actor log is kept.
func (s *Store) DeleteActor(_ context.Context, id domain.ActorID) error {
	return s.deleteEntity(domain.EntityActor, string(id))
}

// ListActors reads every actor file, sorted by id.
func (s *Store) ListActors(ctx context.Context) ([]domain.Actor, error) {
	ids, err := s.listIDs(domain.EntityActor)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Actor, 0, len(ids))
	for _, id := range ids {
		actor, err := s.ReadActor(ctx, domain.ActorID(id))
		if errors.Is(err, app.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, actor)
	}
	return out, nil
}

// ReadTag loads one tag file.
func (s *Store) ReadTag(_ context.Context, id domain.TagID) (domain.Tag, error) {
	path, err := s.entityPath(domain.EntityTag, string(id))
	if err != nil {
		return domain.Tag{}, err
	}
	var tag domain.Tag
	if err := readJSON(path, &tag, fmt.Sprintf("tag %q", id)); err != nil {
		return domain.Tag{}, err
	}
	return tag, nil
}

// WriteTag replaces one tag file atomically.
func (s *Store) WriteTag(_ context.Context, tag domain.Tag) error {
	path, err := s.entityWritePath(domain.EntityTag, string(tag.ID))
	if err != nil {
		return err
	}
	return writeJSON(path, tag)
}

// DeleteTag removes a tag file. The tag log is kept.
func (s *Store) DeleteTag(_ context.Context, id domain.TagID) error {
	return s.deleteEntity(domain.EntityTag, string(id))
}

// ListTags reads every tag file, sorted by id.
func (s *Store) ListTags(ctx context.Context) ([]domain.Tag, error) {
	ids, err := s.listIDs(domain.EntityTag)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Tag, 0, len(ids))
	for _, id := range ids {
		tag, err := s.ReadTag(ctx, domain.TagID(id))
		if errors.Is(err, app.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, nil
}

// entityPath returns the file for id, reporting unsafe ids as not found.
func (s *Store) entityPath(kind domain.EntityKind, id string) (string, error) {
	dir, ok := entityDirs[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown entity kind %q", app.ErrValidation, kind)
	}
	if !domain.ValidFileID(id) {
		return "", fmt.Errorf("%w: %s %q", app.ErrNotFound, kind, id)
	}
	return filepath.Join(s.root, dir, id+entityExt), nil
}

// entityWritePath returns the file for id, rejecting unsafe ids.
func (s *Store) entityWritePath(kind domain.EntityKind, id string) (string, error) {
	if !domain.ValidFileID(id) {
		return "", fmt.Errorf("%w: %s id %q is not a valid file name", app.ErrValidation, kind, id)
	}
	return s.entityPath(kind, id)
}

func (s *Store) deleteEntity(kind domain.EntityKind, id string) error {
	path, err := s.entityPath(kind, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s %q", app.ErrNotFound, kind, id)
		}
		return ioError("delete "+string(kind), err)
	}
	return nil
}

// listIDs returns the sorted ids of every entity file of kind.
func (s *Store) listIDs(kind domain.EntityKind) ([]string, error) {
	dir := filepath.Join(s.root, entityDirs[kind])
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, ioError("list "+string(kind), err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, entityExt) {
			continue
		}
		id := strings.TrimSuffix(name, entityExt)
		if domain.ValidFileID(id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func readJSON(path string, v any, what string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", app.ErrNotFound, what)
	}
	if err != nil {
		return ioError("read "+what, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ioError("decode "+what, err)
	}
	return nil
}

// writeJSON replaces path via a temp file and rename so readers never see partial files.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ioError("encode "+filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return ioError("write "+filepath.Base(path), err)
	}
	return nil
}

func ioError(action string, err error) error {
	return fmt.Errorf("%w: %s: %v", app.ErrIO, action, err)
}
