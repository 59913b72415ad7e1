package domain

import "strings"

// Tag is a board-wide label.
type Tag struct {
	ID    TagID  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// NewTag validates a tag. An empty id is derived from the name.
func NewTag(id, name, color string) (Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tag{}, ErrInvalidName
	}
	slug := Slugify(id)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return Tag{}, ErrInvalidID
	}
	return Tag{ID: TagID(slug), Name: name, Color: strings.TrimSpace(color)}, nil
}
