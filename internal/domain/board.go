package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Board is the single root document of a store: its name plus the ordered
// column and swimlane layout. Tasks, actors, and tags live in their own files.
type Board struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Columns     []Column   `json:"columns"`
	Swimlanes   []Swimlane `json:"swimlanes"`
}

// NewBoard builds a board with the provided initial columns.
func NewBoard(name, description string, columns []Column) (Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Board{}, ErrInvalidName
	}
	b := Board{
		Name:        name,
		Description: strings.TrimSpace(description),
		Columns:     []Column{},
		Swimlanes:   []Swimlane{},
	}
	for _, c := range columns {
		if err := b.AddColumn(c); err != nil {
			return Board{}, err
		}
	}
	return b, nil
}

// Rename updates the board name.
func (b *Board) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	b.Name = name
	return nil
}

// Column returns the column with id.
func (b Board) Column(id ColumnID) (Column, bool) {
	for _, c := range b.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// FirstColumn returns the lowest-rank column.
func (b Board) FirstColumn() (Column, bool) {
	if len(b.Columns) == 0 {
		return Column{}, false
	}
	return b.Columns[0], true
}

// TerminalColumn returns the highest-rank column. Tasks there count as complete.
func (b Board) TerminalColumn() (Column, bool) {
	if len(b.Columns) == 0 {
		return Column{}, false
	}
	return b.Columns[len(b.Columns)-1], true
}

// ColumnRank returns the rank of a column or -1 when unknown.
func (b Board) ColumnRank(id ColumnID) int {
	if c, ok := b.Column(id); ok {
		return c.Rank
	}
	return -1
}

// NextColumnRank returns one past the current highest rank.
func (b Board) NextColumnRank() int {
	if c, ok := b.TerminalColumn(); ok {
		return c.Rank + 1
	}
	return 0
}

// AddColumn inserts a column and keeps columns sorted by rank.
// Ranks are unique so the terminal column is never ambiguous.
func (b *Board) AddColumn(c Column) error {
	if _, exists := b.Column(c.ID); exists {
		return fmt.Errorf("%w: column %q", ErrDuplicateID, c.ID)
	}
	if err := b.checkColumnRank(c); err != nil {
		return err
	}
	b.Columns = append(b.Columns, c)
	b.sortColumns()
	return nil
}

// ReplaceColumn swaps in an updated column with the same id.
func (b *Board) ReplaceColumn(c Column) error {
	idx := slices.IndexFunc(b.Columns, func(existing Column) bool { return existing.ID == c.ID })
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, c.ID)
	}
	if err := b.checkColumnRank(c); err != nil {
		return err
	}
	b.Columns[idx] = c
	b.sortColumns()
	return nil
}

// checkColumnRank rejects a rank already held by another column.
func (b Board) checkColumnRank(c Column) error {
	for _, existing := range b.Columns {
		if existing.ID != c.ID && existing.Rank == c.Rank {
			return fmt.Errorf("%w: rank %d is held by column %q", ErrDuplicateRank, c.Rank, existing.ID)
		}
	}
	return nil
}

// RemoveColumn drops a column by id.
func (b *Board) RemoveColumn(id ColumnID) bool {
	before := len(b.Columns)
	b.Columns = slices.DeleteFunc(b.Columns, func(c Column) bool { return c.ID == id })
	return len(b.Columns) != before
}

// Swimlane returns the swimlane with id.
func (b Board) Swimlane(id SwimlaneID) (Swimlane, bool) {
	for _, s := range b.Swimlanes {
		if s.ID == id {
			return s, true
		}
	}
	return Swimlane{}, false
}

// SwimlaneRank returns the rank of a swimlane, -1 for none or unknown.
func (b Board) SwimlaneRank(id SwimlaneID) int {
	if s, ok := b.Swimlane(id); ok {
		return s.Rank
	}
	return -1
}

// NextSwimlaneRank returns one past the current highest swimlane rank.
func (b Board) NextSwimlaneRank() int {
	if len(b.Swimlanes) == 0 {
		return 0
	}
	return b.Swimlanes[len(b.Swimlanes)-1].Rank + 1
}

// AddSwimlane inserts a swimlane and keeps swimlanes sorted by rank.
func (b *Board) AddSwimlane(s Swimlane) error {
	if _, exists := b.Swimlane(s.ID); exists {
		return fmt.Errorf("%w: swimlane %q", ErrDuplicateID, s.ID)
	}
	b.Swimlanes = append(b.Swimlanes, s)
	b.sortSwimlanes()
	return nil
}

// ReplaceSwimlane swaps in an updated swimlane with the same id.
func (b *Board) ReplaceSwimlane(s Swimlane) bool {
	idx := slices.IndexFunc(b.Swimlanes, func(existing Swimlane) bool { return existing.ID == s.ID })
	if idx < 0 {
		return false
	}
	b.Swimlanes[idx] = s
	b.sortSwimlanes()
	return true
}

// RemoveSwimlane drops a swimlane by id.
func (b *Board) RemoveSwimlane(id SwimlaneID) bool {
	before := len(b.Swimlanes)
	b.Swimlanes = slices.DeleteFunc(b.Swimlanes, func(s Swimlane) bool { return s.ID == id })
	return len(b.Swimlanes) != before
}

func (b *Board) sortColumns() {
	slices.SortStableFunc(b.Columns, func(x, y Column) int { return x.Rank - y.Rank })
}

func (b *Board) sortSwimlanes() {
	slices.SortStableFunc(b.Swimlanes, func(x, y Swimlane) int { return x.Rank - y.Rank })
}
