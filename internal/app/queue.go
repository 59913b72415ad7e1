package app

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tidwall/gjson"
)

// refPattern matches whole-string result references: $N or $N.path.
var refPattern = regexp.MustCompile(`^\$(\d+)(?:\.(.+))?$`)

// Queue runs operations in order, substituting references to earlier results.
// It stops at the first failure; earlier mutations stay applied.
type Queue struct {
	exec *Executor
}

// NewQueue constructs a queue over exec.
func NewQueue(exec *Executor) *Queue {
	return &Queue{exec: exec}
}

// Run executes ops for actor. Reference errors and missing fields are reported
// before anything runs; ops without references are fully validated up front.
// The returned results cover every attempted operation, ending at the first failure.
func (q *Queue) Run(ctx context.Context, ops []Operation, actor string) ([]OpResult, error) {
	for i, op := range ops {
		refs, err := collectRefs(op.Params)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		for _, n := range refs {
			if n >= i {
				return nil, fmt.Errorf("%w: operation %d references $%d, which does not run before it", ErrParse, i, n)
			}
		}
		if len(refs) > 0 {
			err = CheckRequired(op)
		} else {
			_, _, err = BuildCommand(op)
		}
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}

	results := make([]OpResult, 0, len(ops))
	for _, op := range ops {
		resolved, err := resolveRefs(op.Params, results)
		if err != nil {
			results = append(results, failureResult(op.String(), err))
			break
		}
		op.Params = resolved.(Params)
		res := q.exec.Execute(ctx, op, actor)
		results = append(results, res)
		if !res.OK {
			break
		}
	}
	return results, nil
}

// collectRefs lists every result index referenced anywhere in v.
func collectRefs(v any) ([]int, error) {
	var out []int
	var walk func(any) error
	walk = func(v any) error {
		switch t := v.(type) {
		case string:
			m := refPattern.FindStringSubmatch(t)
			if m == nil {
				return nil
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return fmt.Errorf("%w: bad reference %q", ErrParse, t)
			}
			out = append(out, n)
		case Params:
			for _, item := range t {
				if err := walk(item); err != nil {
					return err
				}
			}
		case map[string]any:
			for _, item := range t {
				if err := walk(item); err != nil {
					return err
				}
			}
		case []any:
			for _, item := range t {
				if err := walk(item); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return out, walk(v)
}

// resolveRefs returns a copy of v with references replaced by earlier result values.
func resolveRefs(v any, results []OpResult) (any, error) {
	switch t := v.(type) {
	case string:
		m := refPattern.FindStringSubmatch(t)
		if m == nil {
			return t, nil
		}
		n, _ := strconv.Atoi(m[1])
		path := m[2]
		if path == "" {
			path = "id"
		}
		return lookupResult(results, n, path, t)
	case Params:
		out := make(Params, len(t))
		for k, item := range t {
			resolved, err := resolveRefs(item, results)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			resolved, err := resolveRefs(item, results)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			resolved, err := resolveRefs(item, results)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// lookupResult selects path from the data of results[n] using gjson syntax.
func lookupResult(results []OpResult, n int, path, ref string) (any, error) {
	if n >= len(results) {
		return nil, fmt.Errorf("%w: reference %q points past the last completed operation", ErrParse, ref)
	}
	res := results[n]
	if !res.OK {
		return nil, fmt.Errorf("%w: reference %q points at a failed operation", ErrValidation, ref)
	}
	raw, err := json.Marshal(res.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: reference %q: %v", ErrValidation, ref, err)
	}
	value := gjson.GetBytes(raw, path)
	if !value.Exists() {
		return nil, fmt.Errorf("%w: reference %q: field %q not found in result %d", ErrValidation, ref, path, n)
	}
	return value.Value(), nil
}
