package app

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Params holds canonical snake_case operation parameters.
type Params map[string]any

// globalParamAliases maps alternate parameter names to canonical names for every noun.
var globalParamAliases = map[string]string{
	"desc":          "description",
	"details":       "description",
	"markdown":      "description",
	"depends":       "depends_on",
	"deps":          "depends_on",
	"dependencies":  "depends_on",
	"blocked_by":    "depends_on",
	"tag":           "tags",
	"label":         "tags",
	"labels":        "tags",
	"tag_ids":       "tags",
	"assignee":      "assignees",
	"assigned_to":   "assignees",
	"assignee_ids":  "assignees",
	"owner":         "assignees",
	"owners":        "assignees",
	"column_id":     "column",
	"status":        "column",
	"state":         "column",
	"stage":         "column",
	"to":            "column",
	"to_column":     "column",
	"swimlane_id":   "swimlane",
	"lane":          "swimlane",
	"lane_id":       "swimlane",
	"after_id":      "after",
	"after_task":    "after",
	"before_id":     "before",
	"before_task":   "before",
	"task_id":       "task",
	"parent":        "task",
	"parent_id":     "task",
	"card":          "task",
	"card_id":       "task",
	"wip":           "wip_limit",
	"order":         "rank",
	"by":            "actor",
	"author":        "actor",
	"mime":          "mime_type",
	"content_type":  "mime_type",
	"url":           "path",
	"uri":           "path",
	"file":          "path",
	"filename":      "name",
	"q":             "query",
	"search":        "query",
	"completed":     "done",
	"checked":       "done",
	"is_done":       "done",
	"colour":        "color",
	"count":         "limit",
	"max":           "limit",
	"only_ready":    "ready",
	"bytes":         "size",
	"size_bytes":    "size",
	"ready_only":    "ready",
	"at":            "position",
	"place":         "position",
	"where":         "position",
	"assignee_id":   "assignees",
	"dependency":    "depends_on",
	"dependency_id": "depends_on",
}

// nounParamAliases take precedence over globalParamAliases for their noun.
var nounParamAliases = map[Noun]map[string]string{
	NounBoard: {
		"title": "name",
	},
	NounColumn: {
		"column":    "id",
		"column_id": "id",
		"title":     "name",
	},
	NounSwimlane: {
		"swimlane":    "id",
		"swimlane_id": "id",
		"lane":        "id",
		"lane_id":     "id",
		"title":       "name",
	},
	NounActor: {
		"actor_id": "id",
		"type":     "kind",
		"role":     "kind",
		"username": "name",
	},
	NounTag: {
		"tag":    "id",
		"tag_id": "id",
		"title":  "name",
	},
	NounTask: {
		"task":    "id",
		"task_id": "id",
		"card":    "id",
		"card_id": "id",
		"name":    "title",
		"summary": "title",
		"body":    "description",
		"content": "description",
		"text":    "description",
	},
	NounComment: {
		"comment_id": "id",
		"comment":    "body",
		"text":       "body",
		"content":    "body",
		"message":    "body",
	},
	NounSubtask: {
		"subtask_id": "id",
		"subtask":    "id",
		"item_id":    "id",
		"name":       "title",
		"text":       "title",
	},
	NounAttachment: {
		"attachment_id": "id",
		"attachment":    "id",
	},
}

// canonicalKey converts a caller key to snake_case and resolves aliases for noun.
// An empty noun applies only the global aliases.
func canonicalKey(key string, noun Noun) string {
	key = snakeCase(key)
	if aliases, ok := nounParamAliases[noun]; ok {
		if canonical, ok := aliases[key]; ok {
			return canonical
		}
	}
	if canonical, ok := globalParamAliases[key]; ok {
		return canonical
	}
	return key
}

// canonicalParams rewrites keys for noun, skipping consumed keys. A canonical
// key supplied verbatim wins over an alias that maps onto it.
func canonicalParams(raw map[string]any, noun Noun, consumed map[string]bool) Params {
	out := Params{}
	verbatim := map[string]bool{}
	for key, value := range raw {
		if consumed[key] {
			continue
		}
		canonical := canonicalKey(key, noun)
		exact := snakeCase(key) == canonical
		if _, exists := out[canonical]; exists && !exact {
			continue
		}
		if verbatim[canonical] {
			continue
		}
		out[canonical] = value
		if exact {
			verbatim[canonical] = true
		}
	}
	return out
}

// snakeCase lowercases a key and converts camelCase, dashes, and spaces to underscores.
func snakeCase(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '.':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

// Has reports whether key is present with a non-nil value.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// String returns a trimmed string value. Numbers are formatted.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// RequireString returns a non-empty string or a validation error naming the field.
func (p Params) RequireString(key string) (string, error) {
	s, ok := p.String(key)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: missing required field %q", ErrValidation, key)
	}
	return s, nil
}

// Text returns an optional string field. A field that is present but blank
// after trimming is rejected with invalid.
func (p Params) Text(key string, invalid error) (string, bool, error) {
	s, ok := p.String(key)
	if ok && s == "" {
		return "", true, fmt.Errorf("%w: field %q is blank", invalid, key)
	}
	return s, ok, nil
}

// StringList accepts a list, a single string, or a comma-separated string.
func (p Params) StringList(key string) ([]string, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return []string{}, true, nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, true, nil
	case []string:
		return t, true, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, true, fmt.Errorf("%w: field %q item %d must be a string", ErrValidation, key, i)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, true, nil
	default:
		return nil, true, fmt.Errorf("%w: field %q must be a list of strings", ErrValidation, key)
	}
}

// Int64 returns an integral value. Numeric strings are accepted.
func (p Params) Int64(key string) (int64, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case int:
		return int64(t), true, nil
	case int64:
		return t, true, nil
	case float64:
		if t != math.Trunc(t) {
			return 0, true, fmt.Errorf("%w: field %q must be an integer", ErrValidation, key)
		}
		return int64(t), true, nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, true, fmt.Errorf("%w: field %q must be an integer", ErrValidation, key)
		}
		return n, true, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("%w: field %q must be an integer", ErrValidation, key)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("%w: field %q must be an integer", ErrValidation, key)
	}
}

// Int is Int64 narrowed to int.
func (p Params) Int(key string) (int, bool, error) {
	n, ok, err := p.Int64(key)
	return int(n), ok, err
}

// NonNegativeInt is Int that rejects negative values with invalid.
func (p Params) NonNegativeInt(key string, invalid error) (int, bool, error) {
	n, ok, err := p.Int(key)
	if err != nil {
		return 0, ok, err
	}
	if n < 0 {
		return 0, ok, fmt.Errorf("%w: field %q must be >= 0", invalid, key)
	}
	return n, ok, nil
}

// Bool accepts booleans and the usual string spellings.
func (p Params) Bool(key string) (bool, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, false, nil
	}
	switch t := v.(type) {
	case bool:
		return t, true, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "yes", "y", "on":
				return true, true, nil
			case "no", "n", "off":
				return false, true, nil
			}
			return false, true, fmt.Errorf("%w: field %q must be a boolean", ErrValidation, key)
		}
		return b, true, nil
	default:
		return false, true, fmt.Errorf("%w: field %q must be a boolean", ErrValidation, key)
	}
}

// Clone deep-copies nested maps and lists.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

// Map returns the params as a plain map for logging.
func (p Params) Map() map[string]any {
	return maps.Clone(map[string]any(p))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case Params:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
