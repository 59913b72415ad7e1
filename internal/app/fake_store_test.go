package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hylla/kanfile/internal/domain"
)

// fakeStore is an in-memory Store used by app tests.
type fakeStore struct {
	mu sync.Mutex

	board    *domain.Board
	tasks    map[domain.TaskID]domain.Task
	actors   map[domain.ActorID]domain.Actor
	tags     map[domain.TagID]domain.Tag
	activity []domain.LogEntry
	entity   map[domain.EntityRef][]domain.LogEntry

	locked    bool
	lockCalls int
	lockErr   error
	releases  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:  map[domain.TaskID]domain.Task{},
		actors: map[domain.ActorID]domain.Actor{},
		tags:   map[domain.TagID]domain.Tag{},
		entity: map[domain.EntityRef][]domain.LogEntry{},
	}
}

type fakeGuard struct {
	store *fakeStore
}

func (g fakeGuard) Release() error {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	g.store.locked = false
	g.store.releases++
	return nil
}

func (s *fakeStore) Lock(context.Context) (LockGuard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockCalls++
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	if s.locked {
		return nil, ErrLockBusy
	}
	s.locked = true
	return fakeGuard{store: s}, nil
}

func (s *fakeStore) setLocked(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = v
}

func (s *fakeStore) BoardExists(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board != nil, nil
}

func (s *fakeStore) ReadBoard(context.Context) (domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return domain.Board{}, fmt.Errorf("%w: board", ErrNotFound)
	}
	return cloneBoard(*s.board), nil
}

func (s *fakeStore) WriteBoard(_ context.Context, b domain.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b = cloneBoard(b)
	s.board = &b
	return nil
}

func (s *fakeStore) ReadTask(_ context.Context, id domain.TaskID) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, fmt.Errorf("%w: task %q", ErrNotFound, id)
	}
	return cloneTask(t), nil
}

func (s *fakeStore) WriteTask(_ context.Context, t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *fakeStore) DeleteTask(_ context.Context, id domain.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("%w: task %q", ErrNotFound, id)
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) ListTasks(context.Context) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, cloneTask(t))
	}
	slices.SortFunc(out, func(a, b domain.Task) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out, nil
}

func (s *fakeStore) ReadActor(_ context.Context, id domain.ActorID) (domain.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[id]
	if !ok {
		return nil, fmt.Errorf("%w: actor %q", ErrNotFound, id)
	}
	return a, nil
}

func (s *fakeStore) WriteActor(_ context.Context, a domain.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[a.ActorID()] = a
	return nil
}

func (s *fakeStore) DeleteActor(_ context.Context, id domain.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actors[id]; !ok {
		return fmt.Errorf("%w: actor %q", ErrNotFound, id)
	}
	delete(s.actors, id)
	return nil
}

func (s *fakeStore) ListActors(context.Context) ([]domain.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b domain.Actor) int { return strings.Compare(string(a.ActorID()), string(b.ActorID())) })
	return out, nil
}

func (s *fakeStore) ReadTag(_ context.Context, id domain.TagID) (domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[id]
	if !ok {
		return domain.Tag{}, fmt.Errorf("%w: tag %q", ErrNotFound, id)
	}
	return t, nil
}

func (s *fakeStore) WriteTag(_ context.Context, t domain.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[t.ID] = t
	return nil
}

func (s *fakeStore) DeleteTag(_ context.Context, id domain.TagID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[id]; !ok {
		return fmt.Errorf("%w: tag %q", ErrNotFound, id)
	}
	delete(s.tags, id)
	return nil
}

func (s *fakeStore) ListTags(context.Context) ([]domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Tag, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b domain.Tag) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out, nil
}

func (s *fakeStore) AppendActivity(_ context.Context, e domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, e)
	return nil
}

func (s *fakeStore) ReadActivity(_ context.Context, limit int) ([]domain.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.activity)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) AppendEntityLog(_ context.Context, ref domain.EntityRef, e domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entity[ref] = append(s.entity[ref], e)
	return nil
}

func (s *fakeStore) ReadEntityLog(_ context.Context, ref domain.EntityRef) ([]domain.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entity[ref]), nil
}

func cloneBoard(b domain.Board) domain.Board {
	b.Columns = slices.Clone(b.Columns)
	b.Swimlanes = slices.Clone(b.Swimlanes)
	return b
}

func cloneTask(t domain.Task) domain.Task {
	t.Tags = slices.Clone(t.Tags)
	t.DependsOn = slices.Clone(t.DependsOn)
	t.Assignees = slices.Clone(t.Assignees)
	t.Comments = slices.Clone(t.Comments)
	t.Subtasks = slices.Clone(t.Subtasks)
	t.Attachments = slices.Clone(t.Attachments)
	return t
}

// sequenceIDs returns a deterministic id generator: id-0001, id-0002, ...
func sequenceIDs() IDGenerator {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%04d", n)
	}
}

// fixedClock returns a clock that advances one second per call.
func fixedClock() Clock {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return n.err
}

func testDefaults() BoardDefaults {
	todo, _ := domain.NewColumn("todo", "To Do", 0, 0)
	doing, _ := domain.NewColumn("doing", "In Progress", 1, 0)
	done, _ := domain.NewColumn("done", "Done", 2, 0)
	return BoardDefaults{Name: "Test Board", Columns: []domain.Column{todo, doing, done}}
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, sequenceIDs(), fixedClock(), ServiceConfig{
		Retry: RetryPolicy{
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
			MaxAttempts: 3,
			MaxElapsed:  time.Second,
		},
		Defaults: testDefaults(),
	})
}
