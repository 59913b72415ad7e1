package domain

import (
	"errors"
	"strings"
	"testing"
)

func chainTasks() map[TaskID]Task {
	mk := func(id TaskID, col ColumnID, deps ...TaskID) Task {
		return Task{ID: id, Title: string(id), Position: Position{Column: col, Ordinal: "1"}, DependsOn: deps}
	}
	return map[TaskID]Task{
		"A": mk("A", "todo", "B"),
		"B": mk("B", "todo", "C"),
		"C": mk("C", "todo"),
	}
}

func readerFor(tasks map[TaskID]Task, reads *int) TaskReader {
	return func(id TaskID) (Task, bool, error) {
		if reads != nil {
			*reads++
		}
		task, ok := tasks[id]
		return task, ok, nil
	}
}

func TestCheckDependenciesRejectsCycle(t *testing.T) {
	tasks := chainTasks()
	err := CheckDependencies("C", []TaskID{"A"}, readerFor(tasks, nil))
	if !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("expected ErrDependencyCycle, got %v", err)
	}
	if !strings.Contains(err.Error(), "C -> A -> B -> C") {
		t.Fatalf("expected cycle path in error, got %v", err)
	}
}

func TestCheckDependenciesRejectsSelf(t *testing.T) {
	err := CheckDependencies("A", []TaskID{"A"}, readerFor(chainTasks(), nil))
	if !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("expected ErrDependencyCycle, got %v", err)
	}
}

func TestCheckDependenciesAcceptsDAG(t *testing.T) {
	tasks := chainTasks()
	if err := CheckDependencies("A", []TaskID{"B", "C"}, readerFor(tasks, nil)); err != nil {
		t.Fatalf("CheckDependencies() error = %v", err)
	}
	if err := CheckDependencies("A", []TaskID{"missing"}, readerFor(tasks, nil)); err != nil {
		t.Fatalf("missing dependency should not error, got %v", err)
	}
}

func TestCheckDependenciesReadsReachableSubgraphOnly(t *testing.T) {
	tasks := chainTasks()
	tasks["X"] = Task{ID: "X", Position: Position{Column: "todo", Ordinal: "1"}}
	reads := 0
	if err := CheckDependencies("X", []TaskID{"C"}, readerFor(tasks, &reads)); err != nil {
		t.Fatalf("CheckDependencies() error = %v", err)
	}
	if reads != 1 {
		t.Fatalf("expected 1 read, got %d", reads)
	}
}

func TestReadinessFollowsTerminalColumn(t *testing.T) {
	tasks := chainTasks()
	read := readerFor(tasks, nil)

	ready, err := IsReady(tasks["A"], "done", read)
	if err != nil {
		t.Fatalf("IsReady() error = %v", err)
	}
	if ready {
		t.Fatal("expected A to be blocked by B")
	}

	b := tasks["B"]
	b.Position.Column = "done"
	tasks["B"] = b
	ready, err = IsReady(tasks["A"], "done", read)
	if err != nil {
		t.Fatalf("IsReady() error = %v", err)
	}
	if !ready {
		t.Fatal("expected A to become ready once B is done")
	}

	blockers, _ := Blockers(tasks["B"], "done", read)
	if len(blockers) != 1 || blockers[0] != "C" {
		t.Fatalf("unexpected blockers %#v", blockers)
	}
}

func TestReadinessIgnoresMissingDependencies(t *testing.T) {
	task := Task{ID: "A", DependsOn: []TaskID{"gone"}}
	ready, err := IsReady(task, "done", readerFor(map[TaskID]Task{}, nil))
	if err != nil || !ready {
		t.Fatalf("IsReady() = %v, %v", ready, err)
	}
}
