package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Position is the complete location of a task on the board.
type Position struct {
	Column   ColumnID   `json:"column"`
	Swimlane SwimlaneID `json:"swimlane,omitempty"`
	Ordinal  Ordinal    `json:"ordinal"`
}

// SameLane reports whether two positions share a column and swimlane.
func (p Position) SameLane(other Position) bool {
	return p.Column == other.Column && p.Swimlane == other.Swimlane
}

// Task is the central work item. It carries no timestamps; history lives in its log.
type Task struct {
	ID          TaskID       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Position    Position     `json:"position"`
	Tags        []TagID      `json:"tags"`
	DependsOn   []TaskID     `json:"depends_on"`
	Assignees   []ActorID    `json:"assignees"`
	Comments    []Comment    `json:"comments"`
	Subtasks    []Subtask    `json:"subtasks"`
	Attachments []Attachment `json:"attachments"`
}

// TaskInput holds input values for task creation.
type TaskInput struct {
	ID          TaskID
	Title       string
	Description string
	Position    Position
	Tags        []TagID
	DependsOn   []TaskID
	Assignees   []ActorID
}

// NewTask validates and normalizes a new task.
func NewTask(in TaskInput) (Task, error) {
	in.ID = TaskID(strings.TrimSpace(string(in.ID)))
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if !ValidFileID(string(in.ID)) {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Position.Column == "" {
		return Task{}, ErrInvalidColumnID
	}
	if err := in.Position.Ordinal.Validate(); err != nil {
		return Task{}, err
	}

	t := Task{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Position:    in.Position,
		Tags:        normalizeIDs(in.Tags),
		Assignees:   normalizeIDs(in.Assignees),
		Comments:    []Comment{},
		Subtasks:    []Subtask{},
		Attachments: []Attachment{},
	}
	if err := t.SetDependsOn(in.DependsOn); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Normalize replaces nil collections so the task always serializes lists.
func (t *Task) Normalize() {
	if t.Tags == nil {
		t.Tags = []TagID{}
	}
	if t.DependsOn == nil {
		t.DependsOn = []TaskID{}
	}
	if t.Assignees == nil {
		t.Assignees = []ActorID{}
	}
	if t.Comments == nil {
		t.Comments = []Comment{}
	}
	if t.Subtasks == nil {
		t.Subtasks = []Subtask{}
	}
	if t.Attachments == nil {
		t.Attachments = []Attachment{}
	}
}

// Retitle updates the task title.
func (t *Task) Retitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	t.Title = title
	return nil
}

// SetDescription replaces the markdown description.
func (t *Task) SetDescription(description string) {
	t.Description = strings.TrimSpace(description)
}

// MoveTo relocates the task.
func (t *Task) MoveTo(p Position) error {
	if p.Column == "" {
		return ErrInvalidColumnID
	}
	if err := p.Ordinal.Validate(); err != nil {
		return err
	}
	t.Position = p
	return nil
}

// SetDependsOn replaces the dependency list. A self-reference is a cycle.
func (t *Task) SetDependsOn(ids []TaskID) error {
	ids = normalizeIDs(ids)
	if slices.Contains(ids, t.ID) {
		return fmt.Errorf("%w: %s depends on itself", ErrDependencyCycle, t.ID)
	}
	t.DependsOn = ids
	return nil
}

// RemoveDependency drops one dependency id.
func (t *Task) RemoveDependency(id TaskID) bool {
	var removed bool
	t.DependsOn, removed = removeIDs(t.DependsOn, id)
	return removed
}

// SetTags replaces the tag list.
func (t *Task) SetTags(ids []TagID) {
	t.Tags = normalizeIDs(ids)
}

// AddTags attaches tags, ignoring ones already present.
func (t *Task) AddTags(ids ...TagID) {
	t.Tags = appendUnique(t.Tags, ids...)
}

// RemoveTags detaches tags.
func (t *Task) RemoveTags(ids ...TagID) bool {
	var removed bool
	t.Tags, removed = removeIDs(t.Tags, ids...)
	return removed
}

// SetAssignees replaces the assignee list.
func (t *Task) SetAssignees(ids []ActorID) {
	t.Assignees = normalizeIDs(ids)
}

// AddAssignees assigns actors, ignoring ones already present.
func (t *Task) AddAssignees(ids ...ActorID) {
	t.Assignees = appendUnique(t.Assignees, ids...)
}

// RemoveAssignees unassigns actors.
func (t *Task) RemoveAssignees(ids ...ActorID) bool {
	var removed bool
	t.Assignees, removed = removeIDs(t.Assignees, ids...)
	return removed
}

// HasTag reports whether the task carries a tag.
func (t Task) HasTag(id TagID) bool { return slices.Contains(t.Tags, id) }

// HasAssignee reports whether an actor is assigned.
func (t Task) HasAssignee(id ActorID) bool { return slices.Contains(t.Assignees, id) }

// Matches reports whether query appears in the title or description, case-insensitively.
func (t Task) Matches(query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), query) ||
		strings.Contains(strings.ToLower(t.Description), query)
}
