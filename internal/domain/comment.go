package domain

import (
	"slices"
	"strings"
)

// Comment is a note embedded in a task.
type Comment struct {
	ID     CommentID `json:"id"`
	Body   string    `json:"body"`
	Author ActorID   `json:"author,omitempty"`
}

// NewComment constructs a normalized comment.
func NewComment(id CommentID, body string, author ActorID) (Comment, error) {
	if !ValidFileID(string(id)) {
		return Comment{}, ErrInvalidID
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Comment{}, ErrInvalidBody
	}
	return Comment{
		ID:     id,
		Body:   body,
		Author: ActorID(strings.TrimSpace(string(author))),
	}, nil
}

// AuthoredBy reports whether actor may edit the comment.
// Comments without an author are editable by anyone.
func (c Comment) AuthoredBy(actor ActorID) bool {
	return c.Author == "" || c.Author == actor
}

// AddComment appends a comment to the task.
func (t *Task) AddComment(c Comment) {
	t.Comments = append(t.Comments, c)
}

// Comment returns the comment with id.
func (t Task) Comment(id CommentID) (Comment, bool) {
	idx := slices.IndexFunc(t.Comments, func(c Comment) bool { return c.ID == id })
	if idx < 0 {
		return Comment{}, false
	}
	return t.Comments[idx], true
}

// EditComment replaces a comment body.
func (t *Task) EditComment(id CommentID, body string) (Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Comment{}, ErrInvalidBody
	}
	idx := slices.IndexFunc(t.Comments, func(c Comment) bool { return c.ID == id })
	if idx < 0 {
		return Comment{}, ErrInvalidID
	}
	t.Comments[idx].Body = body
	return t.Comments[idx], nil
}

// RemoveComment deletes a comment.
func (t *Task) RemoveComment(id CommentID) bool {
	before := len(t.Comments)
	t.Comments = slices.DeleteFunc(t.Comments, func(c Comment) bool { return c.ID == id })
	return len(t.Comments) != before
}
