package app

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// TestNormalizeShapesAgree verifies every input shape yields the same canonical operation.
func TestNormalizeShapesAgree(t *testing.T) {
	inputs := []any{
		map[string]any{"op": "add task", "title": "x"},
		map[string]any{"op": "task.add", "title": "x"},
		map[string]any{"verb": "create", "noun": "card", "title": "x"},
		map[string]any{"add": "task", "title": "x"},
		map[string]any{"title": "x"},
		`{"operation":"new_task","name":"x"}`,
		[]byte(`{"cmd":"add-tasks","summary":"x"}`),
	}
	want := Operation{Verb: VerbAdd, Noun: NounTask, Params: Params{"title": "x"}}
	for i, in := range inputs {
		ops, batch, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(#%d) error = %v", i, err)
		}
		if batch {
			t.Fatalf("Normalize(#%d) batch = true, want false", i)
		}
		if len(ops) != 1 {
			t.Fatalf("Normalize(#%d) len = %d, want 1", i, len(ops))
		}
		if !reflect.DeepEqual(ops[0], want) {
			t.Fatalf("Normalize(#%d) = %#v, want %#v", i, ops[0], want)
		}
	}
}

func TestNormalizeParamAliases(t *testing.T) {
	ops, _, err := Normalize(map[string]any{
		"op":        "update task",
		"taskId":    "T1",
		"desc":      "details",
		"labels":    []any{"bug"},
		"dependsOn": []any{"T0"},
		"assignee":  "ada",
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := Params{
		"id":          "T1",
		"description": "details",
		"tags":        []any{"bug"},
		"depends_on":  []any{"T0"},
		"assignees":   "ada",
	}
	if !reflect.DeepEqual(ops[0].Params, want) {
		t.Fatalf("params = %#v, want %#v", ops[0].Params, want)
	}

	ops, _, err = Normalize(map[string]any{"op": "add comment", "taskId": "T1", "text": "hello"})
	if err != nil {
		t.Fatalf("Normalize(comment) error = %v", err)
	}
	if got := ops[0].Params; got["task"] != "T1" || got["body"] != "hello" {
		t.Fatalf("comment params = %#v, want task and body", got)
	}
}

func TestNormalizeCanonicalKeyWinsOverAlias(t *testing.T) {
	ops, _, err := Normalize(map[string]any{"op": "update task", "id": "T1", "description": "kept", "desc": "dropped"})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got := ops[0].Params["description"]; got != "kept" {
		t.Fatalf("description = %v, want kept", got)
	}
}

func TestNormalizeInference(t *testing.T) {
	cases := []struct {
		name string
		in   map[string]any
		want OpKey
	}{
		{name: "comment", in: map[string]any{"task": "T1", "body": "hi"}, want: OpKey{VerbAdd, NounComment}},
		{name: "subtask", in: map[string]any{"task": "T1", "title": "step"}, want: OpKey{VerbAdd, NounSubtask}},
		{name: "task", in: map[string]any{"title": "new"}, want: OpKey{VerbAdd, NounTask}},
		{name: "move", in: map[string]any{"id": "T1", "status": "done"}, want: OpKey{VerbMove, NounTask}},
		{name: "update", in: map[string]any{"id": "T1", "title": "renamed"}, want: OpKey{VerbUpdate, NounTask}},
		{name: "update with column", in: map[string]any{"id": "T1", "column": "done", "title": "renamed"}, want: OpKey{VerbUpdate, NounTask}},
		{name: "get", in: map[string]any{"id": "T1"}, want: OpKey{VerbGet, NounTask}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops, _, err := Normalize(tc.in)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got := ops[0].Key(); got != tc.want {
				t.Fatalf("Normalize() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNormalizeBatchShapes(t *testing.T) {
	list := []any{
		map[string]any{"op": "add task", "title": "a"},
		"list tasks",
	}
	ops, batch, err := Normalize(list)
	if err != nil {
		t.Fatalf("Normalize(list) error = %v", err)
	}
	if !batch || len(ops) != 2 {
		t.Fatalf("Normalize(list) = %d ops batch=%v, want 2 ops batch", len(ops), batch)
	}
	if ops[1].Key() != (OpKey{VerbList, NounTask}) {
		t.Fatalf("ops[1] = %s, want list task", ops[1])
	}

	ops, batch, err = Normalize(map[string]any{"ops": list})
	if err != nil {
		t.Fatalf("Normalize(ops field) error = %v", err)
	}
	if !batch || len(ops) != 2 {
		t.Fatalf("Normalize(ops field) = %d ops batch=%v, want 2 ops batch", len(ops), batch)
	}
}

func TestNormalizeRejectsUnknownInput(t *testing.T) {
	cases := []any{
		map[string]any{"op": "fly task"},
		map[string]any{"op": "complete board"},
		map[string]any{"color": "red"},
		"nonsense",
		[]any{},
		`{"op":`,
		nil,
	}
	for i, in := range cases {
		if _, _, err := Normalize(in); !errors.Is(err, ErrParse) {
			t.Fatalf("Normalize(#%d) error = %v, want ErrParse", i, err)
		}
	}
}

func TestNormalizeErrorNamesInput(t *testing.T) {
	_, _, err := Normalize(map[string]any{"color": "red"})
	if err == nil {
		t.Fatal("Normalize() error = nil, want parse error")
	}
	if got := err.Error(); !containsAll(got, `"color"`, `"red"`) {
		t.Fatalf("Normalize() error = %q, want offending input", got)
	}
}

func TestParseOpStringSeparators(t *testing.T) {
	for _, s := range []string{"move task", "move_task", "move-task", "task.move", "task:mv", "MV Cards"} {
		key, ok := ParseOpString(s)
		if !ok {
			t.Fatalf("ParseOpString(%q) ok = false", s)
		}
		if key != (OpKey{VerbMove, NounTask}) {
			t.Fatalf("ParseOpString(%q) = %s, want move task", s, key)
		}
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"taskId":     "task_id",
		"dependsOn":  "depends_on",
		"WIPLimit":   "wip_limit",
		"mime-type":  "mime_type",
		"  Column  ": "column",
		"already_ok": "already_ok",
	}
	for in, want := range cases {
		if got := snakeCase(in); got != want {
			t.Fatalf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
