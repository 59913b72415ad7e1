package domain

import (
	"slices"
	"strings"
)

// Generated identifiers. Values are ULIDs assigned by the application layer.
type (
	TaskID       string
	ActorID      string
	LogEntryID   string
	CommentID    string
	SubtaskID    string
	AttachmentID string
)

// Slug identifiers, derived from a human name unless supplied by the caller.
type (
	ColumnID   string
	SwimlaneID string
	TagID      string
)

// EntityKind names an entity family that owns a per-entity log.
type EntityKind string

// Entity kinds with their own log files.
const (
	EntityTask  EntityKind = "task"
	EntityActor EntityKind = "actor"
	EntityTag   EntityKind = "tag"
)

// EntityRef addresses one entity for log fan-out.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// TaskRef builds an entity ref for a task.
func TaskRef(id TaskID) EntityRef { return EntityRef{Kind: EntityTask, ID: string(id)} }

// ActorRef builds an entity ref for an actor.
func ActorRef(id ActorID) EntityRef { return EntityRef{Kind: EntityActor, ID: string(id)} }

// TagRef builds an entity ref for a tag.
func TagRef(id TagID) EntityRef { return EntityRef{Kind: EntityTag, ID: string(id)} }

// ValidFileID reports whether an identifier is safe to use as a file name stem.
func ValidFileID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// Slugify lowercases a name and collapses every run of non-alphanumerics to one dash.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	prevDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
			prevDash = false
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// appendUnique appends ids not already present, skipping blanks.
func appendUnique[T ~string](list []T, ids ...T) []T {
	for _, id := range ids {
		id = T(strings.TrimSpace(string(id)))
		if id == "" || slices.Contains(list, id) {
			continue
		}
		list = append(list, id)
	}
	return list
}

// removeIDs returns list without ids and whether anything was removed.
func removeIDs[T ~string](list []T, ids ...T) ([]T, bool) {
	out := make([]T, 0, len(list))
	removed := false
	for _, id := range list {
		if slices.Contains(ids, id) {
			removed = true
			continue
		}
		out = append(out, id)
	}
	return out, removed
}

// normalizeIDs trims, dedupes, and drops blanks while preserving order.
func normalizeIDs[T ~string](ids []T) []T {
	return appendUnique(make([]T, 0, len(ids)), ids...)
}
