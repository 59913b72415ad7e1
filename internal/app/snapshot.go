package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/kanfile/internal/domain"
)

// SnapshotVersion identifies the snapshot document layout.
const SnapshotVersion = "kanfile.snapshot.v1"

// Snapshot is a point-in-time copy of every entity and the full activity log.
type Snapshot struct {
	Version    string               `json:"version"`
	ExportedAt time.Time            `json:"exported_at"`
	Board      domain.Board         `json:"board"`
	Tasks      []domain.Task        `json:"tasks"`
	Actors     []domain.ActorRecord `json:"actors"`
	Tags       []domain.Tag         `json:"tags"`
	Activity   []domain.LogEntry    `json:"activity"`
}

// ExportSnapshot reads the whole store without taking the lock.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	board, err := s.store.ReadBoard(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	actors, err := s.store.ListActors(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	activity, err := s.store.ReadActivity(ctx, 0)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Board:      board,
		Tasks:      make([]domain.Task, 0, len(tasks)),
		Actors:     make([]domain.ActorRecord, 0, len(actors)),
		Tags:       append([]domain.Tag{}, tags...),
		Activity:   append([]domain.LogEntry{}, activity...),
	}
	for _, task := range tasks {
		task.Normalize()
		snap.Tasks = append(snap.Tasks, task)
	}
	for _, actor := range actors {
		snap.Actors = append(snap.Actors, domain.RecordOf(actor))
	}
	snap.sort()
	return snap, nil
}

// Validate checks references between snapshot entities.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}
	if strings.TrimSpace(s.Board.Name) == "" {
		return fmt.Errorf("board.name is required")
	}
	columns := map[domain.ColumnID]struct{}{}
	for _, c := range s.Board.Columns {
		columns[c.ID] = struct{}{}
	}
	lanes := map[domain.SwimlaneID]struct{}{}
	for _, l := range s.Board.Swimlanes {
		lanes[l.ID] = struct{}{}
	}

	taskIDs := map[domain.TaskID]struct{}{}
	for i, t := range s.Tasks {
		if strings.TrimSpace(string(t.ID)) == "" {
			return fmt.Errorf("tasks[%d].id is required", i)
		}
		if _, exists := taskIDs[t.ID]; exists {
			return fmt.Errorf("duplicate task id: %q", t.ID)
		}
		if _, ok := columns[t.Position.Column]; !ok {
			return fmt.Errorf("tasks[%d] references unknown column %q", i, t.Position.Column)
		}
		if t.Position.Swimlane != "" {
			if _, ok := lanes[t.Position.Swimlane]; !ok {
				return fmt.Errorf("tasks[%d] references unknown swimlane %q", i, t.Position.Swimlane)
			}
		}
		if err := t.Position.Ordinal.Validate(); err != nil {
			return fmt.Errorf("tasks[%d].position.ordinal: %w", i, err)
		}
		taskIDs[t.ID] = struct{}{}
	}

	actorIDs := map[domain.ActorID]struct{}{}
	for i, a := range s.Actors {
		if _, err := a.Actor(); err != nil {
			return fmt.Errorf("actors[%d]: %w", i, err)
		}
		if _, exists := actorIDs[a.ID]; exists {
			return fmt.Errorf("duplicate actor id: %q", a.ID)
		}
		actorIDs[a.ID] = struct{}{}
	}

	tagIDs := map[domain.TagID]struct{}{}
	for i, t := range s.Tags {
		if strings.TrimSpace(string(t.ID)) == "" {
			return fmt.Errorf("tags[%d].id is required", i)
		}
		tagIDs[t.ID] = struct{}{}
	}

	for i, t := range s.Tasks {
		for _, tag := range t.Tags {
			if _, ok := tagIDs[tag]; !ok {
				return fmt.Errorf("tasks[%d] references unknown tag %q", i, tag)
			}
		}
		for _, actor := range t.Assignees {
			if _, ok := actorIDs[actor]; !ok {
				return fmt.Errorf("tasks[%d] references unknown assignee %q", i, actor)
			}
		}
	}
	return nil
}

// sort orders tasks in board order and the remaining collections by id.
func (s *Snapshot) sort() {
	sortBoardOrder(s.Board, s.Tasks)
	slices.SortFunc(s.Actors, func(a, b domain.ActorRecord) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	slices.SortFunc(s.Tags, func(a, b domain.Tag) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
}
