package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/kanfile/internal/domain"
)

// ColumnView is a column with its current task count.
type ColumnView struct {
	domain.Column
	TaskCount int `json:"task_count"`
	Terminal  bool `json:"terminal"`
}

// SwimlaneView is a swimlane with its current task count.
type SwimlaneView struct {
	domain.Swimlane
	TaskCount int `json:"task_count"`
}

// readBoard loads the board, reporting a missing board as not found.
func readBoard(ctx context.Context, env *Env) (domain.Board, error) {
	board, err := env.Store.ReadBoard(ctx)
	if errors.Is(err, ErrNotFound) {
		return domain.Board{}, fmt.Errorf("%w: board not initialized; run \"init board\" first", ErrNotFound)
	}
	return board, err
}

// resolveColumn finds a column by id, slugified id, or case-insensitive name.
func resolveColumn(board domain.Board, ref string) (domain.Column, error) {
	ref = strings.TrimSpace(ref)
	if c, ok := board.Column(domain.ColumnID(ref)); ok {
		return c, nil
	}
	if c, ok := board.Column(domain.ColumnID(domain.Slugify(ref))); ok {
		return c, nil
	}
	for _, c := range board.Columns {
		if strings.EqualFold(c.Name, ref) {
			return c, nil
		}
	}
	return domain.Column{}, fmt.Errorf("%w: column %q", ErrNotFound, ref)
}

// resolveSwimlane finds a swimlane by id, slugified id, or case-insensitive name.
func resolveSwimlane(board domain.Board, ref string) (domain.Swimlane, error) {
	ref = strings.TrimSpace(ref)
	if s, ok := board.Swimlane(domain.SwimlaneID(ref)); ok {
		return s, nil
	}
	if s, ok := board.Swimlane(domain.SwimlaneID(domain.Slugify(ref))); ok {
		return s, nil
	}
	for _, s := range board.Swimlanes {
		if strings.EqualFold(s.Name, ref) {
			return s, nil
		}
	}
	return domain.Swimlane{}, fmt.Errorf("%w: swimlane %q", ErrNotFound, ref)
}

func buildInitBoard(p Params) (Command, error) {
	name, _ := p.String("name")
	description, _ := p.String("description")
	columnNames, hasColumns, err := p.StringList("columns")
	if err != nil {
		return nil, err
	}
	var requested []domain.Column
	if hasColumns {
		requested = make([]domain.Column, 0, len(columnNames))
		for i, colName := range columnNames {
			c, err := domain.NewColumn("", colName, i, 0)
			if err != nil {
				return nil, err
			}
			if slices.ContainsFunc(requested, func(prev domain.Column) bool { return prev.ID == c.ID }) {
				return nil, fmt.Errorf("%w: column %q listed twice", ErrValidation, c.ID)
			}
			requested = append(requested, c)
		}
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		exists, err := env.Store.BoardExists(ctx)
		if err != nil {
			return Result{}, err
		}
		if exists {
			return Result{}, fmt.Errorf("%w: board already initialized", ErrConflict)
		}
		boardName := name
		if boardName == "" {
			boardName = env.Defaults.Name
		}
		columns := env.Defaults.Columns
		if hasColumns {
			columns = requested
		}
		board, err := domain.NewBoard(boardName, description, columns)
		if err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteBoard(ctx, board); err != nil {
			return Result{}, err
		}
		return Result{Value: board}, nil
	}), nil
}

func buildGetBoard(Params) (Command, error) {
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: board}, nil
	}), nil
}

func buildUpdateBoard(p Params) (Command, error) {
	name, hasName, err := p.Text("name", domain.ErrInvalidName)
	if err != nil {
		return nil, err
	}
	description, hasDescription := p.String("description")
	if !hasName && !hasDescription {
		return nil, fmt.Errorf("%w: nothing to update; provide name or description", ErrValidation)
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		if hasName {
			if err := board.Rename(name); err != nil {
				return Result{}, err
			}
		}
		if hasDescription {
			board.Description = description
		}
		if err := env.Store.WriteBoard(ctx, board); err != nil {
			return Result{}, err
		}
		return Result{Value: board}, nil
	}), nil
}

func buildAddColumn(p Params) (Command, error) {
	name, err := p.RequireString("name")
	if err != nil {
		return nil, err
	}
	id, _ := p.String("id")
	rank, hasRank, err := p.Int("rank")
	if err != nil {
		return nil, err
	}
	wipLimit, _, err := p.Int("wip_limit")
	if err != nil {
		return nil, err
	}
	column, err := domain.NewColumn(id, name, rank, wipLimit)
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		column := column
		if !hasRank {
			column.Rank = board.NextColumnRank()
		}
		if err := board.AddColumn(column); err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteBoard(ctx, board); err != nil {
			return Result{}, err
		}
		return Result{Value: column}, nil
	}), nil
}

func buildGetColumn(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		column, err := resolveColumn(board, ref)
		if err != nil {
			return Result{}, err
		}
		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: columnView(board, column, tasks)}, nil
	}), nil
}

func buildUpdateColumn(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	name, hasName, err := p.Text("name", domain.ErrInvalidName)
	if err != nil {
		return nil, err
	}
	rank, hasRank, err := p.NonNegativeInt("rank", domain.ErrInvalidRank)
	if err != nil {
		return nil, err
	}
	wipLimit, hasWIP, err := p.NonNegativeInt("wip_limit", domain.ErrInvalidWIPLimit)
	if err != nil {
		return nil, err
	}
	if !hasName && !hasRank && !hasWIP {
		return nil, fmt.Errorf("%w: nothing to update; provide name, rank, or wip_limit", ErrValidation)
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		column, err := resolveColumn(board, ref)
		if err != nil {
			return Result{}, err
		}
		if hasName {
			if err := column.Rename(name); err != nil {
				return Result{}, err
			}
		}
		if hasRank {
			column.Rank = rank
		}
		if hasWIP {
			column.WIPLimit = wipLimit
		}
		if err := board.ReplaceColumn(column); err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteBoard(ctx, board); err != nil {
			return Result{}, err
		}
		return Result{Value: column}, nil
	}), nil
}

func buildDeleteColumn(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		column, err := resolveColumn(board, ref)
		if err != nil {
			return Result{}, err
		}
		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		if n := countTasks(tasks, func(t domain.Task) bool { return t.Position.Column == column.ID }); n > 0 {
			return Result{}, fmt.Errorf("%w: column %q still holds %d task(s)", ErrConflict, column.ID, n)
		}
		if len(board.Columns) == 1 {
			return Result{}, fmt.Errorf("%w: cannot delete the last column", ErrConflict)
		}
		board.RemoveColumn(column.ID)
		if err := env.Store.WriteBoard(ctx, board); err != nil {
			return Result{}, err
		}
		return Result{Value: deleted{ID: string(column.ID), Deleted: true}}, nil
	}), nil
}

func buildListColumns(Params) (Command, error) {
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		out := make([]ColumnView, 0, len(board.Columns))
		for _, c := range board.Columns {
			out = append(out, columnView(board, c, tasks))
		}
		return Result{Value: out}, nil
	}), nil
}

func columnView(board domain.Board, c domain.Column, tasks []domain.Task) ColumnView {
	terminal, _ := board.TerminalColumn()
	return ColumnView{
		Column:    c,
		TaskCount: countTasks(tasks, func(t domain.Task) bool { return t.Position.Column == c.ID }),
		Terminal:  terminal.ID == c.ID,
	}
}

func buildAddSwimlane(p Params) (Command, error) {
	name, err := p.RequireString("name")
	if err != nil {
		return nil, err
	}
	id, _ := p.String("id")
	rank, hasRank, err := p.Int("rank")
	if err != nil {
		return nil, err
	}
	lane, err := domain.NewSwimlane(id, name, rank)
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		lane := lane
		if !hasRank {
			lane.Rank = board.NextSwimlaneRank()
		}
		if err := board.AddSwimlane(lane); err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteBoard(ctx, board); err != nil {
			return Result{}, err
		}
		return Result{Value: lane}, nil
	}), nil
}

func buildGetSwimlane(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		lane, err := resolveSwimlane(board, ref)
		if err != nil {
			return Result{}, err
		}
		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: swimlaneView(lane, tasks)}, nil
	}), nil
}

func buildUpdateSwimlane(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	name, hasName, err := p.Text("name", domain.ErrInvalidName)
	if err != nil {
		return nil, err
	}
	rank, hasRank, err := p.NonNegativeInt("rank", domain.ErrInvalidRank)
	if err != nil {
		return nil, err
	}
	if !hasName && !hasRank {
		return nil, fmt.Errorf("%w: nothing to update; provide name or rank", ErrValidation)
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		lane, err := resolveSwimlane(board, ref)
		if err != nil {
			return Result{}, err
		}
		if hasName {
			updated, err := domain.NewSwimlane(string(lane.ID), name, lane.Rank)
			if err != nil {
				return Result{}, err
			}
			lane = updated
		}
		if hasRank {
			lane.Rank = rank
		}
		board.ReplaceSwimlane(lane)
		if err := env.Store.WriteBoard(ctx, board); err != nil {
			return Result{}, err
		}
		return Result{Value: lane}, nil
	}), nil
}

func buildDeleteSwimlane(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		lane, err := resolveSwimlane(board, ref)
		if err != nil {
			return Result{}, err
		}
		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		if n := countTasks(tasks, func(t domain.Task) bool { return t.Position.Swimlane == lane.ID }); n > 0 {
			return Result{}, fmt.Errorf("%w: swimlane %q still holds %d task(s)", ErrConflict, lane.ID, n)
		}
		board.RemoveSwimlane(lane.ID)
		if err := env.Store.WriteBoard(ctx, board); err != nil {
			return Result{}, err
		}
		return Result{Value: deleted{ID: string(lane.ID), Deleted: true}}, nil
	}), nil
}

func buildListSwimlanes(Params) (Command, error) {
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		out := make([]SwimlaneView, 0, len(board.Swimlanes))
		for _, s := range board.Swimlanes {
			out = append(out, swimlaneView(s, tasks))
		}
		return Result{Value: out}, nil
	}), nil
}

func swimlaneView(s domain.Swimlane, tasks []domain.Task) SwimlaneView {
	return SwimlaneView{
		Swimlane:  s,
		TaskCount: countTasks(tasks, func(t domain.Task) bool { return t.Position.Swimlane == s.ID }),
	}
}

func countTasks(tasks []domain.Task, match func(domain.Task) bool) int {
	n := 0
	for _, t := range tasks {
		if match(t) {
			n++
		}
	}
	return n
}
