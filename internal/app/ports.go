package app

import (
	"context"

	"github.com/hylla/kanfile/internal/domain"
)

// Store is the persistence port. Every call reads or writes the filesystem
// directly; implementations keep no entity cache between calls.
// Missing entities are reported with ErrNotFound, filesystem failures with ErrIO.
type Store interface {
	Lock(context.Context) (LockGuard, error)

	BoardExists(context.Context) (bool, error)
	ReadBoard(context.Context) (domain.Board, error)
	WriteBoard(context.Context, domain.Board) error

	ReadTask(context.Context, domain.TaskID) (domain.Task, error)
	WriteTask(context.Context, domain.Task) error
	DeleteTask(context.Context, domain.TaskID) error
	ListTasks(context.Context) ([]domain.Task, error)

	ReadActor(context.Context, domain.ActorID) (domain.Actor, error)
	WriteActor(context.Context, domain.Actor) error
	DeleteActor(context.Context, domain.ActorID) error
	ListActors(context.Context) ([]domain.Actor, error)

	ReadTag(context.Context, domain.TagID) (domain.Tag, error)
	WriteTag(context.Context, domain.Tag) error
	DeleteTag(context.Context, domain.TagID) error
	ListTags(context.Context) ([]domain.Tag, error)

	AppendActivity(context.Context, domain.LogEntry) error
	ReadActivity(context.Context, int) ([]domain.LogEntry, error)
	AppendEntityLog(context.Context, domain.EntityRef, domain.LogEntry) error
	ReadEntityLog(context.Context, domain.EntityRef) ([]domain.LogEntry, error)
}

// LockGuard releases the store-wide mutation lock.
type LockGuard interface {
	Release() error
}

// Notification describes one completed mutating operation.
type Notification struct {
	Op         string             `json:"op"`
	OK         bool               `json:"ok"`
	EntryID    domain.LogEntryID  `json:"entry_id,omitempty"`
	Actor      string             `json:"actor,omitempty"`
	Affected   []domain.EntityRef `json:"affected,omitempty"`
	InstanceID string             `json:"instance_id,omitempty"`
	At         string             `json:"at"`
}

// Notifier receives fire-and-forget notifications after the lock is released.
type Notifier interface {
	Notify(context.Context, Notification) error
}

// Logger is the structured logging surface the app layer writes to.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// nopLogger discards every event.
type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Info(any, ...any)  {}
func (nopLogger) Warn(any, ...any)  {}
func (nopLogger) Error(any, ...any) {}
