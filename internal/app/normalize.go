package app

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Keys that carry the operation itself rather than parameters.
var (
	opFieldKeys    = []string{"op", "operation", "command", "cmd"}
	verbFieldKeys  = []string{"verb", "action"}
	nounFieldKeys  = []string{"noun", "target", "entity", "object"}
	batchFieldKeys = []string{"ops", "batch", "operations"}
)

// normalizeStrategy is one step of the normalizer chain. ok=false means the
// strategy does not apply and the next one is tried.
type normalizeStrategy struct {
	name  string
	apply func(raw map[string]any) (key OpKey, consumed map[string]bool, ok bool, err error)
}

// normalizeChain is tried in order until one strategy claims the input.
var normalizeChain = []normalizeStrategy{
	{name: "explicit-op", apply: explicitOpStrategy},
	{name: "verb-noun", apply: verbNounStrategy},
	{name: "shorthand", apply: shorthandStrategy},
	{name: "inference", apply: inferenceStrategy},
}

// Normalize converts arbitrarily shaped caller input into canonical operations.
// It reports batch=true for list input and for objects whose op field is a list.
func Normalize(input any) (ops []Operation, batch bool, err error) {
	value, err := toGeneric(input)
	if err != nil {
		return nil, false, err
	}

	switch v := value.(type) {
	case []any:
		ops, err := normalizeList(v)
		return ops, true, err
	case map[string]any:
		if items, ok := batchItems(v); ok {
			ops, err := normalizeList(items)
			return ops, true, err
		}
		op, err := normalizeObject(v)
		if err != nil {
			return nil, false, err
		}
		return []Operation{op}, false, nil
	case string:
		key, ok := ParseOpString(v)
		if !ok {
			return nil, false, fmt.Errorf("%w: unrecognized operation %q", ErrParse, v)
		}
		return []Operation{{Verb: key.Verb, Noun: key.Noun, Params: Params{}}}, false, nil
	default:
		return nil, false, fmt.Errorf("%w: unsupported input of type %T", ErrParse, value)
	}
}

// toGeneric reduces input to JSON-shaped values: maps, lists, strings, numbers, bools.
func toGeneric(input any) (any, error) {
	switch v := input.(type) {
	case nil:
		return nil, fmt.Errorf("%w: empty input", ErrParse)
	case map[string]any, []any:
		return v, nil
	case Params:
		return map[string]any(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			return decodeJSON([]byte(trimmed))
		}
		return trimmed, nil
	case []byte:
		return decodeJSON(v)
	case json.RawMessage:
		return decodeJSON(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return decodeJSON(raw)
	}
}

func decodeJSON(raw []byte) (any, error) {
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrParse, err)
	}
	return out, nil
}

// batchItems extracts list-valued op or batch fields.
func batchItems(raw map[string]any) ([]any, bool) {
	for _, key := range append(slices.Clone(opFieldKeys), batchFieldKeys...) {
		if items, ok := raw[key].([]any); ok {
			return items, true
		}
	}
	return nil, false
}

func normalizeList(items []any) ([]Operation, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrParse)
	}
	ops := make([]Operation, 0, len(items))
	for i, item := range items {
		var (
			op  Operation
			err error
		)
		switch v := item.(type) {
		case map[string]any:
			op, err = normalizeObject(v)
		case string:
			key, ok := ParseOpString(v)
			if !ok {
				err = fmt.Errorf("%w: unrecognized operation %q", ErrParse, v)
			}
			op = Operation{Verb: key.Verb, Noun: key.Noun, Params: Params{}}
		default:
			err = fmt.Errorf("%w: unsupported batch item of type %T", ErrParse, item)
		}
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func normalizeObject(raw map[string]any) (Operation, error) {
	for _, strategy := range normalizeChain {
		key, consumed, ok, err := strategy.apply(raw)
		if err != nil {
			return Operation{}, err
		}
		if !ok {
			continue
		}
		return Operation{
			Verb:   key.Verb,
			Noun:   key.Noun,
			Params: canonicalParams(raw, key.Noun, consumed),
		}, nil
	}
	return Operation{}, fmt.Errorf("%w: cannot determine operation from input %s", ErrParse, describeInput(raw))
}

// explicitOpStrategy reads "verb noun" from an op field.
func explicitOpStrategy(raw map[string]any) (OpKey, map[string]bool, bool, error) {
	for _, field := range opFieldKeys {
		v, present := raw[field]
		if !present {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return OpKey{}, nil, false, fmt.Errorf("%w: field %q must be a string, got %T", ErrParse, field, v)
		}
		key, ok := ParseOpString(s)
		if !ok {
			return OpKey{}, nil, false, fmt.Errorf("%w: unrecognized operation %q", ErrParse, s)
		}
		return key, map[string]bool{field: true}, true, nil
	}
	return OpKey{}, nil, false, nil
}

// verbNounStrategy reads separate verb and noun fields.
func verbNounStrategy(raw map[string]any) (OpKey, map[string]bool, bool, error) {
	verbField, verb, ok := firstString(raw, verbFieldKeys)
	if !ok {
		return OpKey{}, nil, false, nil
	}
	nounField, noun, ok := firstString(raw, nounFieldKeys)
	if !ok {
		return OpKey{}, nil, false, nil
	}
	key, ok := opKeyFrom(verb, noun)
	if !ok {
		return OpKey{}, nil, false, fmt.Errorf("%w: unrecognized operation %q", ErrParse, verb+" "+noun)
	}
	return key, map[string]bool{verbField: true, nounField: true}, true, nil
}

// shorthandStrategy reads {"<verb>": "<noun>"} pairs.
func shorthandStrategy(raw map[string]any) (OpKey, map[string]bool, bool, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s, ok := raw[k].(string)
		if !ok {
			continue
		}
		if _, isVerb := ParseVerb(k); !isVerb {
			continue
		}
		if key, ok := opKeyFrom(k, s); ok {
			return key, map[string]bool{k: true}, true, nil
		}
	}
	return OpKey{}, nil, false, nil
}

// taskUpdateFields are the parameters that imply an update when an id is present.
var taskUpdateFields = []string{"title", "description", "tags", "depends_on", "assignees"}

// moveFields are the parameters that may accompany a column change for a move.
var moveFields = []string{"id", "column", "swimlane", "after", "before", "position", "actor"}

// inferenceStrategy guesses the operation from which fields are present.
func inferenceStrategy(raw map[string]any) (OpKey, map[string]bool, bool, error) {
	fields := canonicalParams(raw, "", nil)
	has := fields.Has
	hasBody := has("body") || has("comment") || has("text")

	switch {
	case has("task") && hasBody && !has("id"):
		return OpKey{Verb: VerbAdd, Noun: NounComment}, nil, true, nil
	case has("task") && has("title") && !has("id"):
		return OpKey{Verb: VerbAdd, Noun: NounSubtask}, nil, true, nil
	case has("title") && !has("id"):
		return OpKey{Verb: VerbAdd, Noun: NounTask}, nil, true, nil
	case has("id") && has("column") && onlyFields(fields, moveFields):
		return OpKey{Verb: VerbMove, Noun: NounTask}, nil, true, nil
	case has("id") && slices.ContainsFunc(taskUpdateFields, has):
		return OpKey{Verb: VerbUpdate, Noun: NounTask}, nil, true, nil
	case has("id") && onlyFields(fields, []string{"id", "actor"}):
		return OpKey{Verb: VerbGet, Noun: NounTask}, nil, true, nil
	}
	return OpKey{}, nil, false, nil
}

func onlyFields(p Params, allowed []string) bool {
	for k := range p {
		if !slices.Contains(allowed, k) {
			return false
		}
	}
	return true
}

func firstString(raw map[string]any, keys []string) (string, string, bool) {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			return k, s, true
		}
	}
	return "", "", false
}

// describeInput renders input for error messages, truncated to stay readable.
func describeInput(raw map[string]any) string {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprintf("%v", raw)
	}
	const limit = 200
	if len(encoded) > limit {
		return string(encoded[:limit]) + "..."
	}
	return string(encoded)
}
