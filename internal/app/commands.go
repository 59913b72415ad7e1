package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/kanfile/internal/domain"
)

// Command is one validated operation ready to run against a store.
type Command interface {
	Execute(ctx context.Context, env *Env) (Result, error)
}

// commandFunc adapts a closure to Command.
type commandFunc func(ctx context.Context, env *Env) (Result, error)

// Execute runs the closure.
func (f commandFunc) Execute(ctx context.Context, env *Env) (Result, error) {
	return f(ctx, env)
}

// Env is the execution environment handed to every command.
type Env struct {
	Store    Store
	Now      func() time.Time
	NewID    func() string
	Actor    string
	Defaults BoardDefaults
}

// BoardDefaults configures boards created by "init board".
type BoardDefaults struct {
	Name    string
	Columns []domain.Column
}

// Result is a command's value plus the entities it changed.
type Result struct {
	Value    any
	Affected []domain.EntityRef
}

// commandSpec is one dispatch-table entry.
type commandSpec struct {
	summary  string
	required []string
	mutates  bool
	build    func(Params) (Command, error)
}

// OpSpec describes one supported operation for callers.
type OpSpec struct {
	Op       string   `json:"op"`
	Summary  string   `json:"summary"`
	Required []string `json:"required,omitempty"`
	Mutates  bool     `json:"mutates"`
}

// commandTable is the only registry of legal operations.
var commandTable = map[OpKey]commandSpec{
	{VerbInit, NounBoard}:   {summary: "Create the board", mutates: true, build: buildInitBoard},
	{VerbGet, NounBoard}:    {summary: "Show the board layout", build: buildGetBoard},
	{VerbUpdate, NounBoard}: {summary: "Rename or describe the board", mutates: true, build: buildUpdateBoard},

	{VerbAdd, NounColumn}:    {summary: "Add a column", required: []string{"name"}, mutates: true, build: buildAddColumn},
	{VerbGet, NounColumn}:    {summary: "Show one column", required: []string{"id"}, build: buildGetColumn},
	{VerbUpdate, NounColumn}: {summary: "Rename, re-rank, or limit a column", required: []string{"id"}, mutates: true, build: buildUpdateColumn},
	{VerbDelete, NounColumn}: {summary: "Delete an empty column", required: []string{"id"}, mutates: true, build: buildDeleteColumn},
	{VerbList, NounColumn}:   {summary: "List columns with task counts", build: buildListColumns},

	{VerbAdd, NounSwimlane}:    {summary: "Add a swimlane", required: []string{"name"}, mutates: true, build: buildAddSwimlane},
	{VerbGet, NounSwimlane}:    {summary: "Show one swimlane", required: []string{"id"}, build: buildGetSwimlane},
	{VerbUpdate, NounSwimlane}: {summary: "Rename or re-rank a swimlane", required: []string{"id"}, mutates: true, build: buildUpdateSwimlane},
	{VerbDelete, NounSwimlane}: {summary: "Delete an empty swimlane", required: []string{"id"}, mutates: true, build: buildDeleteSwimlane},
	{VerbList, NounSwimlane}:   {summary: "List swimlanes with task counts", build: buildListSwimlanes},

	{VerbAdd, NounActor}:    {summary: "Register a human or agent", required: []string{"name"}, mutates: true, build: buildAddActor},
	{VerbGet, NounActor}:    {summary: "Show one actor", required: []string{"id"}, build: buildGetActor},
	{VerbUpdate, NounActor}: {summary: "Rename an actor", required: []string{"id", "name"}, mutates: true, build: buildUpdateActor},
	{VerbDelete, NounActor}: {summary: "Delete an actor and unassign it everywhere", required: []string{"id"}, mutates: true, build: buildDeleteActor},
	{VerbList, NounActor}:   {summary: "List actors", build: buildListActors},

	{VerbAdd, NounTag}:    {summary: "Create a tag", required: []string{"name"}, mutates: true, build: buildAddTag},
	{VerbGet, NounTag}:    {summary: "Show one tag", required: []string{"id"}, build: buildGetTag},
	{VerbUpdate, NounTag}: {summary: "Rename or recolor a tag", required: []string{"id"}, mutates: true, build: buildUpdateTag},
	{VerbDelete, NounTag}: {summary: "Delete a tag and remove it from tasks", required: []string{"id"}, mutates: true, build: buildDeleteTag},
	{VerbList, NounTag}:   {summary: "List tags", build: buildListTags},

	{VerbAdd, NounTask}:      {summary: "Create a task", required: []string{"title"}, mutates: true, build: buildAddTask},
	{VerbGet, NounTask}:      {summary: "Show a task with readiness and history", required: []string{"id"}, build: buildGetTask},
	{VerbUpdate, NounTask}:   {summary: "Edit task fields", required: []string{"id"}, mutates: true, build: buildUpdateTask},
	{VerbDelete, NounTask}:   {summary: "Delete a task and drop it from dependents", required: []string{"id"}, mutates: true, build: buildDeleteTask},
	{VerbList, NounTask}:     {summary: "List tasks in board order", build: buildListTasks},
	{VerbMove, NounTask}:     {summary: "Move a task to a column, lane, or slot", required: []string{"id"}, mutates: true, build: buildMoveTask},
	{VerbNext, NounTask}:     {summary: "Pick the next ready task", build: buildNextTask},
	{VerbTag, NounTask}:      {summary: "Add tags to a task", required: []string{"id", "tags"}, mutates: true, build: buildTagTask},
	{VerbUntag, NounTask}:    {summary: "Remove tags from a task", required: []string{"id", "tags"}, mutates: true, build: buildUntagTask},
	{VerbAssign, NounTask}:   {summary: "Assign actors to a task", required: []string{"id", "assignees"}, mutates: true, build: buildAssignTask},
	{VerbUnassign, NounTask}: {summary: "Unassign actors from a task", required: []string{"id", "assignees"}, mutates: true, build: buildUnassignTask},

	{VerbAdd, NounComment}:    {summary: "Comment on a task", required: []string{"task", "body"}, mutates: true, build: buildAddComment},
	{VerbUpdate, NounComment}: {summary: "Edit your own comment", required: []string{"task", "id", "body"}, mutates: true, build: buildUpdateComment},
	{VerbDelete, NounComment}: {summary: "Delete your own comment", required: []string{"task", "id"}, mutates: true, build: buildDeleteComment},
	{VerbList, NounComment}:   {summary: "List a task's comments", required: []string{"task"}, build: buildListComments},

	{VerbAdd, NounSubtask}:      {summary: "Add a checklist item", required: []string{"task", "title"}, mutates: true, build: buildAddSubtask},
	{VerbUpdate, NounSubtask}:   {summary: "Edit a checklist item", required: []string{"task", "id"}, mutates: true, build: buildUpdateSubtask},
	{VerbComplete, NounSubtask}: {summary: "Check off a checklist item", required: []string{"task", "id"}, mutates: true, build: buildCompleteSubtask},
	{VerbDelete, NounSubtask}:   {summary: "Delete a checklist item", required: []string{"task", "id"}, mutates: true, build: buildDeleteSubtask},

	{VerbAdd, NounAttachment}:    {summary: "Attach a file reference", required: []string{"task", "path"}, mutates: true, build: buildAddAttachment},
	{VerbDelete, NounAttachment}: {summary: "Remove an attachment", required: []string{"task", "id"}, mutates: true, build: buildDeleteAttachment},
	{VerbList, NounAttachment}:   {summary: "List a task's attachments", required: []string{"task"}, build: buildListAttachments},

	{VerbList, NounActivity}: {summary: "Read the activity log", build: buildListActivity},
}

func lookupCommand(key OpKey) (commandSpec, bool) {
	spec, ok := commandTable[key]
	return spec, ok
}

// Vocabulary lists every supported operation sorted by noun then verb.
func Vocabulary() []OpSpec {
	keys := make([]OpKey, 0, len(commandTable))
	for key := range commandTable {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b OpKey) int {
		if c := strings.Compare(string(a.Noun), string(b.Noun)); c != 0 {
			return c
		}
		return strings.Compare(string(a.Verb), string(b.Verb))
	})
	out := make([]OpSpec, 0, len(keys))
	for _, key := range keys {
		spec := commandTable[key]
		out = append(out, OpSpec{
			Op:       key.String(),
			Summary:  spec.summary,
			Required: slices.Clone(spec.required),
			Mutates:  spec.mutates,
		})
	}
	return out
}

// CheckRequired reports whether op is a known operation carrying every required field.
// It does not look at field values, so unresolved references pass.
func CheckRequired(op Operation) error {
	_, err := requiredSpec(op)
	return err
}

func requiredSpec(op Operation) (commandSpec, error) {
	spec, ok := lookupCommand(op.Key())
	if !ok {
		return commandSpec{}, fmt.Errorf("%w: unsupported operation %q", ErrParse, op.String())
	}
	for _, field := range spec.required {
		if !op.Params.Has(field) {
			return spec, fmt.Errorf("%w: %s: missing required field %q", ErrValidation, op.String(), field)
		}
	}
	return spec, nil
}

// BuildCommand validates op against the table and returns its command.
func BuildCommand(op Operation) (Command, bool, error) {
	spec, err := requiredSpec(op)
	if err != nil {
		return nil, spec.mutates, err
	}
	cmd, err := spec.build(op.Params)
	if err != nil {
		return nil, spec.mutates, fmt.Errorf("%s: %w", op.String(), asValidation(err))
	}
	return cmd, spec.mutates, nil
}

// asValidation tags domain input errors as validation failures.
func asValidation(err error) error {
	if KindOf(err) == KindValidation && !errors.Is(err, ErrValidation) {
		return errors.Join(ErrValidation, err)
	}
	return err
}

// deleted is the value returned by delete operations.
type deleted struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// taskMemo caches task reads for the duration of one command.
type taskMemo struct {
	ctx   context.Context
	store Store
	tasks map[domain.TaskID]domain.Task
	miss  map[domain.TaskID]bool
}

func newTaskMemo(ctx context.Context, store Store) *taskMemo {
	return &taskMemo{
		ctx:   ctx,
		store: store,
		tasks: map[domain.TaskID]domain.Task{},
		miss:  map[domain.TaskID]bool{},
	}
}

// seed preloads tasks already read by the caller.
func (m *taskMemo) seed(tasks ...domain.Task) {
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
}

// read satisfies domain.TaskReader.
func (m *taskMemo) read(id domain.TaskID) (domain.Task, bool, error) {
	if t, ok := m.tasks[id]; ok {
		return t, true, nil
	}
	if m.miss[id] {
		return domain.Task{}, false, nil
	}
	t, err := m.store.ReadTask(m.ctx, id)
	if errors.Is(err, ErrNotFound) {
		m.miss[id] = true
		return domain.Task{}, false, nil
	}
	if err != nil {
		return domain.Task{}, false, err
	}
	m.tasks[id] = t
	return t, true, nil
}

// idsParam reads an optional list param as typed ids.
func idsParam[T ~string](p Params, key string) ([]T, bool, error) {
	raw, ok, err := p.StringList(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	out := make([]T, 0, len(raw))
	for _, s := range raw {
		out = append(out, T(s))
	}
	return out, true, nil
}

// requireIDs reads a list param that must be present and non-empty.
func requireIDs[T ~string](p Params, key string) ([]T, error) {
	ids, ok, err := idsParam[T](p, key)
	if err != nil {
		return nil, err
	}
	if !ok || len(ids) == 0 {
		return nil, fmt.Errorf("%w: missing required field %q", ErrValidation, key)
	}
	return ids, nil
}

// actorOf returns the acting actor for attribution.
func actorOf(env *Env) string {
	return strings.TrimSpace(env.Actor)
}
