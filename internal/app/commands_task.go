package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/kanfile/internal/domain"
)

// TaskView is a task plus the fields derived on read: readiness and, for
// single-task reads, creation and update attribution from the task log.
type TaskView struct {
	domain.Task
	Ready     bool            `json:"ready"`
	BlockedBy []domain.TaskID `json:"blocked_by,omitempty"`
	*domain.History
}

// placement selects where a task lands inside its lane.
type placement struct {
	after  domain.TaskID
	before domain.TaskID
	top    bool
	end    bool
}

// requested reports whether the caller asked for a specific slot.
func (p placement) requested() bool {
	return p.after != "" || p.before != "" || p.top || p.end
}

func parsePlacement(p Params) (placement, error) {
	var out placement
	if after, ok := p.String("after"); ok && after != "" {
		out.after = domain.TaskID(after)
	}
	if before, ok := p.String("before"); ok && before != "" {
		out.before = domain.TaskID(before)
	}
	if out.after != "" && out.before != "" {
		return placement{}, fmt.Errorf("%w: provide only one of after or before", ErrValidation)
	}
	if position, ok := p.String("position"); ok {
		switch strings.ToLower(position) {
		case "top", "start", "first", "head":
			out.top = true
		case "end", "bottom", "last", "tail":
			out.end = true
		case "":
		default:
			return placement{}, fmt.Errorf("%w: position must be top or end, got %q", ErrValidation, position)
		}
	}
	return out, nil
}

// readTask loads a task by id, treating malformed ids as missing.
func readTask(ctx context.Context, env *Env, ref string) (domain.Task, error) {
	ref = strings.TrimSpace(ref)
	if !domain.ValidFileID(ref) {
		return domain.Task{}, fmt.Errorf("%w: task %q", ErrNotFound, ref)
	}
	return env.Store.ReadTask(ctx, domain.TaskID(ref))
}

// laneTasks returns the tasks in column and lane ordered by ordinal, skipping exclude.
func laneTasks(tasks []domain.Task, column domain.ColumnID, lane domain.SwimlaneID, exclude domain.TaskID) []domain.Task {
	out := make([]domain.Task, 0)
	for _, t := range tasks {
		if t.ID == exclude || t.Position.Column != column || t.Position.Swimlane != lane {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b domain.Task) int {
		return strings.Compare(string(a.Position.Ordinal), string(b.Position.Ordinal))
	})
	return out
}

// placeInLane computes an ordinal for the requested slot without touching siblings.
func placeInLane(tasks []domain.Task, column domain.ColumnID, lane domain.SwimlaneID, exclude domain.TaskID, pl placement) (domain.Ordinal, error) {
	siblings := laneTasks(tasks, column, lane, exclude)
	indexOf := func(id domain.TaskID) (int, error) {
		idx := slices.IndexFunc(siblings, func(t domain.Task) bool { return t.ID == id })
		if idx < 0 {
			return -1, fmt.Errorf("%w: task %q is not in column %q lane %q", ErrConflict, id, column, lane)
		}
		return idx, nil
	}

	switch {
	case pl.after != "":
		idx, err := indexOf(pl.after)
		if err != nil {
			return "", err
		}
		if idx+1 < len(siblings) {
			return domain.OrdinalBetween(siblings[idx].Position.Ordinal, siblings[idx+1].Position.Ordinal)
		}
		return domain.OrdinalAfter(siblings[idx].Position.Ordinal), nil
	case pl.before != "":
		idx, err := indexOf(pl.before)
		if err != nil {
			return "", err
		}
		if idx == 0 {
			return domain.OrdinalBefore(siblings[0].Position.Ordinal)
		}
		return domain.OrdinalBetween(siblings[idx-1].Position.Ordinal, siblings[idx].Position.Ordinal)
	case pl.top:
		if len(siblings) == 0 {
			return domain.FirstOrdinal(), nil
		}
		return domain.OrdinalBefore(siblings[0].Position.Ordinal)
	default:
		if len(siblings) == 0 {
			return domain.FirstOrdinal(), nil
		}
		return domain.OrdinalAfter(siblings[len(siblings)-1].Position.Ordinal), nil
	}
}

// checkWIP rejects placing one more task into a full column.
func checkWIP(column domain.Column, tasks []domain.Task, exclude domain.TaskID) error {
	count := countTasks(tasks, func(t domain.Task) bool {
		return t.ID != exclude && t.Position.Column == column.ID
	})
	if column.Full(count) {
		return fmt.Errorf("%w: column %q is at its wip limit of %d", ErrConflict, column.ID, column.WIPLimit)
	}
	return nil
}

// sortBoardOrder sorts tasks by column rank, swimlane rank, then ordinal.
func sortBoardOrder(board domain.Board, tasks []domain.Task) {
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		if c := board.ColumnRank(a.Position.Column) - board.ColumnRank(b.Position.Column); c != 0 {
			return c
		}
		if c := board.SwimlaneRank(a.Position.Swimlane) - board.SwimlaneRank(b.Position.Swimlane); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.Position.Ordinal), string(b.Position.Ordinal)); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
}

// viewTask derives readiness, and history when requested.
func viewTask(ctx context.Context, env *Env, board domain.Board, task domain.Task, memo *taskMemo, withHistory bool) (TaskView, error) {
	terminal, _ := board.TerminalColumn()
	blockers, err := domain.Blockers(task, terminal.ID, memo.read)
	if err != nil {
		return TaskView{}, err
	}
	task.Normalize()
	view := TaskView{Task: task, Ready: len(blockers) == 0}
	if len(blockers) > 0 {
		view.BlockedBy = blockers
	}
	if withHistory {
		entries, err := env.Store.ReadEntityLog(ctx, domain.TaskRef(task.ID))
		if err != nil {
			return TaskView{}, err
		}
		history := domain.HistoryOf(entries)
		view.History = &history
	}
	return view, nil
}

// requireExistingTasks fails with not found for the first missing id.
func requireExistingTasks(ids []domain.TaskID, memo *taskMemo) error {
	for _, id := range ids {
		if !domain.ValidFileID(string(id)) {
			return fmt.Errorf("%w: task %q", ErrNotFound, id)
		}
		_, found, err := memo.read(id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: dependency task %q", ErrNotFound, id)
		}
	}
	return nil
}

func buildAddTask(p Params) (Command, error) {
	title, err := p.RequireString("title")
	if err != nil {
		return nil, err
	}
	description, _ := p.String("description")
	columnRef, _ := p.String("column")
	laneRef, _ := p.String("swimlane")
	tags, _, err := idsParam[domain.TagID](p, "tags")
	if err != nil {
		return nil, err
	}
	deps, _, err := idsParam[domain.TaskID](p, "depends_on")
	if err != nil {
		return nil, err
	}
	assignees, _, err := idsParam[domain.ActorID](p, "assignees")
	if err != nil {
		return nil, err
	}
	pl, err := parsePlacement(p)
	if err != nil {
		return nil, err
	}

	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		column, ok := board.FirstColumn()
		if columnRef != "" {
			if column, err = resolveColumn(board, columnRef); err != nil {
				return Result{}, err
			}
		} else if !ok {
			return Result{}, fmt.Errorf("%w: board has no columns", ErrConflict)
		}
		var laneID domain.SwimlaneID
		if laneRef != "" {
			lane, err := resolveSwimlane(board, laneRef)
			if err != nil {
				return Result{}, err
			}
			laneID = lane.ID
		}

		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		if err := checkWIP(column, tasks, ""); err != nil {
			return Result{}, err
		}
		memo := newTaskMemo(ctx, env.Store)
		memo.seed(tasks...)
		if err := requireExistingTasks(deps, memo); err != nil {
			return Result{}, err
		}
		actorIDs, err := resolveActorIDs(ctx, env.Store, assignees)
		if err != nil {
			return Result{}, err
		}
		ordinal, err := placeInLane(tasks, column.ID, laneID, "", pl)
		if err != nil {
			return Result{}, err
		}

		id := domain.TaskID(env.NewID())
		if err := domain.CheckDependencies(id, deps, memo.read); err != nil {
			return Result{}, err
		}
		tagIDs, createdTags, err := ensureTags(ctx, env.Store, tags)
		if err != nil {
			return Result{}, err
		}
		task, err := domain.NewTask(domain.TaskInput{
			ID:          id,
			Title:       title,
			Description: description,
			Position:    domain.Position{Column: column.ID, Swimlane: laneID, Ordinal: ordinal},
			Tags:        tagIDs,
			DependsOn:   deps,
			Assignees:   actorIDs,
		})
		if err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteTask(ctx, task); err != nil {
			return Result{}, err
		}
		return Result{
			Value:    task,
			Affected: append([]domain.EntityRef{domain.TaskRef(task.ID)}, createdTags...),
		}, nil
	}), nil
}

func buildGetTask(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		task, err := readTask(ctx, env, ref)
		if err != nil {
			return Result{}, err
		}
		memo := newTaskMemo(ctx, env.Store)
		memo.seed(task)
		view, err := viewTask(ctx, env, board, task, memo, true)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: view}, nil
	}), nil
}

func buildUpdateTask(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	title, hasTitle, err := p.Text("title", domain.ErrInvalidTitle)
	if err != nil {
		return nil, err
	}
	description, hasDescription := p.String("description")
	tags, hasTags, err := idsParam[domain.TagID](p, "tags")
	if err != nil {
		return nil, err
	}
	deps, hasDeps, err := idsParam[domain.TaskID](p, "depends_on")
	if err != nil {
		return nil, err
	}
	assignees, hasAssignees, err := idsParam[domain.ActorID](p, "assignees")
	if err != nil {
		return nil, err
	}
	columnRef, hasColumn := p.String("column")
	laneRef, hasLane := p.String("swimlane")
	if !hasTitle && !hasDescription && !hasTags && !hasDeps && !hasAssignees && !hasColumn && !hasLane {
		return nil, fmt.Errorf("%w: nothing to update; provide title, description, tags, depends_on, assignees, column, or swimlane", ErrValidation)
	}

	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		task, err := readTask(ctx, env, ref)
		if err != nil {
			return Result{}, err
		}
		affected := []domain.EntityRef{domain.TaskRef(task.ID)}

		if hasDeps {
			memo := newTaskMemo(ctx, env.Store)
			if err := requireExistingTasks(deps, memo); err != nil {
				return Result{}, err
			}
			if err := domain.CheckDependencies(task.ID, deps, memo.read); err != nil {
				return Result{}, err
			}
			if err := task.SetDependsOn(deps); err != nil {
				return Result{}, err
			}
		}
		if hasTitle {
			if err := task.Retitle(title); err != nil {
				return Result{}, err
			}
		}
		if hasDescription {
			task.SetDescription(description)
		}
		if hasAssignees {
			ids, err := resolveActorIDs(ctx, env.Store, assignees)
			if err != nil {
				return Result{}, err
			}
			task.SetAssignees(ids)
		}
		if hasColumn || hasLane {
			board, err := readBoard(ctx, env)
			if err != nil {
				return Result{}, err
			}
			if err := relocate(ctx, env, board, &task, columnRef, hasColumn, laneRef, hasLane, placement{}); err != nil {
				return Result{}, err
			}
		}
		if hasTags {
			ids, created, err := ensureTags(ctx, env.Store, tags)
			if err != nil {
				return Result{}, err
			}
			task.SetTags(ids)
			affected = append(affected, created...)
		}

		if err := env.Store.WriteTask(ctx, task); err != nil {
			return Result{}, err
		}
		return Result{Value: task, Affected: affected}, nil
	}), nil
}

// relocate moves task to the target column and lane at the requested slot.
// Unset targets keep the task's current column or lane.
func relocate(ctx context.Context, env *Env, board domain.Board, task *domain.Task, columnRef string, hasColumn bool, laneRef string, hasLane bool, pl placement) error {
	tasks, err := env.Store.ListTasks(ctx)
	if err != nil {
		return err
	}

	target := task.Position
	if !hasColumn && !hasLane && pl.requested() {
		anchorID := pl.after
		if anchorID == "" {
			anchorID = pl.before
		}
		if anchorID != "" {
			idx := slices.IndexFunc(tasks, func(t domain.Task) bool { return t.ID == anchorID })
			if idx < 0 {
				return fmt.Errorf("%w: task %q", ErrNotFound, anchorID)
			}
			target.Column = tasks[idx].Position.Column
			target.Swimlane = tasks[idx].Position.Swimlane
		}
	}
	if hasColumn {
		column, err := resolveColumn(board, columnRef)
		if err != nil {
			return err
		}
		target.Column = column.ID
	}
	if hasLane {
		switch strings.ToLower(strings.TrimSpace(laneRef)) {
		case "", "none":
			target.Swimlane = ""
		default:
			lane, err := resolveSwimlane(board, laneRef)
			if err != nil {
				return err
			}
			target.Swimlane = lane.ID
		}
	}

	column, ok := board.Column(target.Column)
	if !ok {
		return fmt.Errorf("%w: column %q", ErrNotFound, target.Column)
	}
	if target.Column != task.Position.Column {
		if err := checkWIP(column, tasks, task.ID); err != nil {
			return err
		}
	}
	if target.SameLane(task.Position) && !pl.requested() {
		return nil
	}
	ordinal, err := placeInLane(tasks, target.Column, target.Swimlane, task.ID, pl)
	if err != nil {
		return err
	}
	target.Ordinal = ordinal
	return task.MoveTo(target)
}

func buildDeleteTask(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		task, err := readTask(ctx, env, ref)
		if err != nil {
			return Result{}, err
		}
		affected := []domain.EntityRef{domain.TaskRef(task.ID)}

		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		for _, other := range tasks {
			if other.ID == task.ID || !other.RemoveDependency(task.ID) {
				continue
			}
			if err := env.Store.WriteTask(ctx, other); err != nil {
				return Result{}, err
			}
			affected = append(affected, domain.TaskRef(other.ID))
		}
		if err := env.Store.DeleteTask(ctx, task.ID); err != nil {
			return Result{}, err
		}
		return Result{Value: deleted{ID: string(task.ID), Deleted: true}, Affected: affected}, nil
	}), nil
}

// taskFilter narrows list and next results.
type taskFilter struct {
	column   string
	swimlane string
	tag      string
	assignee string
	query    string
	ready    *bool
}

func parseTaskFilter(p Params) (taskFilter, error) {
	var f taskFilter
	f.column, _ = p.String("column")
	f.swimlane, _ = p.String("swimlane")
	f.query, _ = p.String("query")
	if tags, ok, err := p.StringList("tags"); err != nil {
		return taskFilter{}, err
	} else if ok && len(tags) > 0 {
		f.tag = tags[0]
	}
	if assignees, ok, err := p.StringList("assignees"); err != nil {
		return taskFilter{}, err
	} else if ok && len(assignees) > 0 {
		f.assignee = assignees[0]
	}
	ready, hasReady, err := p.Bool("ready")
	if err != nil {
		return taskFilter{}, err
	}
	if hasReady {
		f.ready = &ready
	}
	return f, nil
}

// resolved narrows references to board ids and registered actors.
type resolvedFilter struct {
	column   domain.ColumnID
	swimlane domain.SwimlaneID
	tag      domain.TagID
	assignee domain.ActorID
}

func (f taskFilter) resolve(ctx context.Context, env *Env, board domain.Board) (resolvedFilter, error) {
	var out resolvedFilter
	if f.column != "" {
		c, err := resolveColumn(board, f.column)
		if err != nil {
			return out, err
		}
		out.column = c.ID
	}
	if f.swimlane != "" {
		s, err := resolveSwimlane(board, f.swimlane)
		if err != nil {
			return out, err
		}
		out.swimlane = s.ID
	}
	if f.tag != "" {
		tag, err := resolveTag(ctx, env.Store, f.tag)
		if err != nil {
			return out, err
		}
		out.tag = tag.ID
	}
	if f.assignee != "" {
		actor, err := resolveActor(ctx, env.Store, f.assignee)
		if err != nil {
			return out, err
		}
		out.assignee = actor.ActorID()
	}
	return out, nil
}

func (r resolvedFilter) match(f taskFilter, t domain.Task) bool {
	switch {
	case r.column != "" && t.Position.Column != r.column:
		return false
	case r.swimlane != "" && t.Position.Swimlane != r.swimlane:
		return false
	case r.tag != "" && !t.HasTag(r.tag):
		return false
	case r.assignee != "" && !t.HasAssignee(r.assignee):
		return false
	case !t.Matches(f.query):
		return false
	}
	return true
}

// filteredViews lists tasks in board order with readiness, applying f.
func filteredViews(ctx context.Context, env *Env, f taskFilter) (domain.Board, []TaskView, error) {
	board, err := readBoard(ctx, env)
	if err != nil {
		return domain.Board{}, nil, err
	}
	resolved, err := f.resolve(ctx, env, board)
	if err != nil {
		return domain.Board{}, nil, err
	}
	tasks, err := env.Store.ListTasks(ctx)
	if err != nil {
		return domain.Board{}, nil, err
	}
	sortBoardOrder(board, tasks)
	memo := newTaskMemo(ctx, env.Store)
	memo.seed(tasks...)

	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		if !resolved.match(f, t) {
			continue
		}
		view, err := viewTask(ctx, env, board, t, memo, false)
		if err != nil {
			return domain.Board{}, nil, err
		}
		if f.ready != nil && view.Ready != *f.ready {
			continue
		}
		views = append(views, view)
	}
	return board, views, nil
}

func buildListTasks(p Params) (Command, error) {
	f, err := parseTaskFilter(p)
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		_, views, err := filteredViews(ctx, env, f)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: views}, nil
	}), nil
}

func buildNextTask(p Params) (Command, error) {
	f, err := parseTaskFilter(p)
	if err != nil {
		return nil, err
	}
	ready := true
	f.ready = &ready
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, views, err := filteredViews(ctx, env, f)
		if err != nil {
			return Result{}, err
		}
		terminal, _ := board.TerminalColumn()
		for _, v := range views {
			if v.Position.Column != terminal.ID {
				return Result{Value: v}, nil
			}
		}
		return Result{Value: nil}, nil
	}), nil
}

func buildMoveTask(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	columnRef, hasColumn := p.String("column")
	laneRef, hasLane := p.String("swimlane")
	pl, err := parsePlacement(p)
	if err != nil {
		return nil, err
	}
	if !hasColumn && !hasLane && !pl.requested() {
		return nil, fmt.Errorf("%w: move needs column, swimlane, after, before, or position", ErrValidation)
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		board, err := readBoard(ctx, env)
		if err != nil {
			return Result{}, err
		}
		task, err := readTask(ctx, env, ref)
		if err != nil {
			return Result{}, err
		}
		if pl.after == task.ID || pl.before == task.ID {
			return Result{}, fmt.Errorf("%w: cannot position a task relative to itself", ErrValidation)
		}
		if err := relocate(ctx, env, board, &task, columnRef, hasColumn, laneRef, hasLane, pl); err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteTask(ctx, task); err != nil {
			return Result{}, err
		}
		return Result{Value: task, Affected: []domain.EntityRef{domain.TaskRef(task.ID)}}, nil
	}), nil
}

func buildTagTask(p Params) (Command, error) {
	return taskMutation(p, "tags", func(ctx context.Context, env *Env, task *domain.Task, refs []string) ([]domain.EntityRef, error) {
		ids, created, err := ensureTags(ctx, env.Store, toIDs[domain.TagID](refs))
		if err != nil {
			return nil, err
		}
		task.AddTags(ids...)
		return created, nil
	})
}

func buildUntagTask(p Params) (Command, error) {
	return taskMutation(p, "tags", func(ctx context.Context, env *Env, task *domain.Task, refs []string) ([]domain.EntityRef, error) {
		ids := make([]domain.TagID, 0, len(refs))
		for _, ref := range refs {
			tag, err := resolveTag(ctx, env.Store, ref)
			if errors.Is(err, ErrNotFound) {
				ids = append(ids, domain.TagID(ref))
				continue
			}
			if err != nil {
				return nil, err
			}
			ids = append(ids, tag.ID)
		}
		task.RemoveTags(ids...)
		return nil, nil
	})
}

func buildAssignTask(p Params) (Command, error) {
	return taskMutation(p, "assignees", func(ctx context.Context, env *Env, task *domain.Task, refs []string) ([]domain.EntityRef, error) {
		ids, err := resolveActorIDs(ctx, env.Store, toIDs[domain.ActorID](refs))
		if err != nil {
			return nil, err
		}
		task.AddAssignees(ids...)
		return nil, nil
	})
}

func buildUnassignTask(p Params) (Command, error) {
	return taskMutation(p, "assignees", func(ctx context.Context, env *Env, task *domain.Task, refs []string) ([]domain.EntityRef, error) {
		ids := make([]domain.ActorID, 0, len(refs))
		for _, ref := range refs {
			actor, err := resolveActor(ctx, env.Store, ref)
			if errors.Is(err, ErrNotFound) {
				ids = append(ids, domain.ActorID(ref))
				continue
			}
			if err != nil {
				return nil, err
			}
			ids = append(ids, actor.ActorID())
		}
		task.RemoveAssignees(ids...)
		return nil, nil
	})
}

// taskMutation builds a read-modify-write command over one task driven by a list param.
func taskMutation(p Params, listKey string, mutate func(context.Context, *Env, *domain.Task, []string) ([]domain.EntityRef, error)) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	refs, err := requireIDs[string](p, listKey)
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		task, err := readTask(ctx, env, ref)
		if err != nil {
			return Result{}, err
		}
		extra, err := mutate(ctx, env, &task, refs)
		if err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteTask(ctx, task); err != nil {
			return Result{}, err
		}
		return Result{
			Value:    task,
			Affected: append([]domain.EntityRef{domain.TaskRef(task.ID)}, extra...),
		}, nil
	}), nil
}

func toIDs[T ~string](refs []string) []T {
	out := make([]T, 0, len(refs))
	for _, r := range refs {
		out = append(out, T(r))
	}
	return out
}
