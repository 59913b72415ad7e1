package domain

import "strings"

// Column is one ordered stage of the board.
type Column struct {
	ID       ColumnID `json:"id"`
	Name     string   `json:"name"`
	Rank     int      `json:"rank"`
	WIPLimit int      `json:"wip_limit,omitempty"`
}

// NewColumn validates and normalizes a column. An empty id is derived from the name.
func NewColumn(id, name string, rank, wipLimit int) (Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Column{}, ErrInvalidName
	}
	slug := Slugify(id)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return Column{}, ErrInvalidColumnID
	}
	if rank < 0 {
		return Column{}, ErrInvalidRank
	}
	if wipLimit < 0 {
		return Column{}, ErrInvalidWIPLimit
	}
	return Column{ID: ColumnID(slug), Name: name, Rank: rank, WIPLimit: wipLimit}, nil
}

// Rename updates the display name.
func (c *Column) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	c.Name = name
	return nil
}

// Full reports whether count tasks already reach the WIP limit.
func (c Column) Full(count int) bool {
	return c.WIPLimit > 0 && count >= c.WIPLimit
}

// Swimlane is an optional horizontal partition across columns.
type Swimlane struct {
	ID   SwimlaneID `json:"id"`
	Name string     `json:"name"`
	Rank int        `json:"rank"`
}

// NewSwimlane validates and normalizes a swimlane.
func NewSwimlane(id, name string, rank int) (Swimlane, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Swimlane{}, ErrInvalidName
	}
	slug := Slugify(id)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return Swimlane{}, ErrInvalidID
	}
	if rank < 0 {
		return Swimlane{}, ErrInvalidRank
	}
	return Swimlane{ID: SwimlaneID(slug), Name: name, Rank: rank}, nil
}
