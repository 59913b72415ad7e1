package domain

import (
	"fmt"
	"strings"
)

// TaskReader loads one task on demand. found=false means the task does not exist.
type TaskReader func(id TaskID) (task Task, found bool, err error)

// Blockers returns the dependencies of t that are not yet in the terminal column.
// Missing dependencies never block. The task is ready when the result is empty.
func Blockers(t Task, terminal ColumnID, read TaskReader) ([]TaskID, error) {
	blockers := make([]TaskID, 0)
	for _, depID := range t.DependsOn {
		dep, found, err := read(depID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if dep.Position.Column != terminal {
			blockers = append(blockers, depID)
		}
	}
	return blockers, nil
}

// IsReady reports whether every dependency of t is absent or complete.
func IsReady(t Task, terminal ColumnID, read TaskReader) (bool, error) {
	blockers, err := Blockers(t, terminal, read)
	if err != nil {
		return false, err
	}
	return len(blockers) == 0, nil
}

// CheckDependencies rejects deps when giving them to id would close a cycle.
// It walks depends_on edges depth-first from each proposed dependency, reading
// only the reachable subgraph. The error names the offending path.
func CheckDependencies(id TaskID, deps []TaskID, read TaskReader) error {
	visited := map[TaskID]bool{}
	for _, dep := range deps {
		if dep == id {
			return fmt.Errorf("%w: %s depends on itself", ErrDependencyCycle, id)
		}
		path, err := findPath(dep, id, read, visited, []TaskID{id, dep})
		if err != nil {
			return err
		}
		if path != nil {
			return fmt.Errorf("%w: %s", ErrDependencyCycle, joinPath(path))
		}
	}
	return nil
}

func findPath(from, target TaskID, read TaskReader, visited map[TaskID]bool, path []TaskID) ([]TaskID, error) {
	if visited[from] {
		return nil, nil
	}
	visited[from] = true

	task, found, err := read(from)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	for _, next := range task.DependsOn {
		step := append(path[:len(path):len(path)], next)
		if next == target {
			return step, nil
		}
		hit, err := findPath(next, target, read, visited, step)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			return hit, nil
		}
	}
	return nil, nil
}

func joinPath(path []TaskID) string {
	parts := make([]string, 0, len(path))
	for _, id := range path {
		parts = append(parts, string(id))
	}
	return strings.Join(parts, " -> ")
}
