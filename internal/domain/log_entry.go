package domain

import "time"

// LogEntry is one immutable audit record of an executed operation.
type LogEntry struct {
	ID         LogEntryID     `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Op         string         `json:"op"`
	Input      map[string]any `json:"input"`
	Output     any            `json:"output,omitempty"`
	Error      *LogError      `json:"error,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	DurationMS float64        `json:"duration_ms"`
}

// LogError records a failed operation's error kind and message.
type LogError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// OK reports whether the logged operation succeeded.
func (e LogEntry) OK() bool {
	return e.Error == nil
}

// History summarizes creation and last-update attribution derived from an entity log.
type History struct {
	CreatedAt *time.Time `json:"created_at,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
}

// HistoryOf derives history from entries in append order. Failed entries are skipped.
func HistoryOf(entries []LogEntry) History {
	var h History
	for _, e := range entries {
		if !e.OK() {
			continue
		}
		ts := e.Timestamp
		if h.CreatedAt == nil {
			h.CreatedAt = &ts
			h.CreatedBy = e.Actor
		}
		h.UpdatedAt = &ts
		h.UpdatedBy = e.Actor
	}
	return h
}
