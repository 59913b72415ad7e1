package domain

import (
	"slices"
	"strings"
)

// Subtask is a checklist item embedded in a task.
type Subtask struct {
	ID    SubtaskID `json:"id"`
	Title string    `json:"title"`
	Done  bool      `json:"done"`
}

// NewSubtask constructs an open subtask.
func NewSubtask(id SubtaskID, title string) (Subtask, error) {
	if !ValidFileID(string(id)) {
		return Subtask{}, ErrInvalidID
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Subtask{}, ErrInvalidTitle
	}
	return Subtask{ID: id, Title: title}, nil
}

// AddSubtask appends a subtask.
func (t *Task) AddSubtask(s Subtask) {
	t.Subtasks = append(t.Subtasks, s)
}

// Subtask returns a pointer into the task's subtasks for in-place edits.
func (t *Task) Subtask(id SubtaskID) (*Subtask, bool) {
	idx := slices.IndexFunc(t.Subtasks, func(s Subtask) bool { return s.ID == id })
	if idx < 0 {
		return nil, false
	}
	return &t.Subtasks[idx], true
}

// RemoveSubtask deletes a subtask.
func (t *Task) RemoveSubtask(id SubtaskID) bool {
	before := len(t.Subtasks)
	t.Subtasks = slices.DeleteFunc(t.Subtasks, func(s Subtask) bool { return s.ID == id })
	return len(t.Subtasks) != before
}

// SubtaskProgress returns done and total subtask counts.
func (t Task) SubtaskProgress() (done, total int) {
	for _, s := range t.Subtasks {
		if s.Done {
			done++
		}
	}
	return done, len(t.Subtasks)
}
