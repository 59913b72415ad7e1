package app

import (
	"strings"
)

// Verb is the action half of an operation.
type Verb string

// Supported verbs.
const (
	VerbInit     Verb = "init"
	VerbAdd      Verb = "add"
	VerbGet      Verb = "get"
	VerbList     Verb = "list"
	VerbUpdate   Verb = "update"
	VerbDelete   Verb = "delete"
	VerbMove     Verb = "move"
	VerbNext     Verb = "next"
	VerbTag      Verb = "tag"
	VerbUntag    Verb = "untag"
	VerbAssign   Verb = "assign"
	VerbUnassign Verb = "unassign"
	VerbComplete Verb = "complete"
)

// Noun is the entity half of an operation.
type Noun string

// Supported nouns.
const (
	NounBoard      Noun = "board"
	NounColumn     Noun = "column"
	NounSwimlane   Noun = "swimlane"
	NounActor      Noun = "actor"
	NounTag        Noun = "tag"
	NounTask       Noun = "task"
	NounComment    Noun = "comment"
	NounSubtask    Noun = "subtask"
	NounAttachment Noun = "attachment"
	NounActivity   Noun = "activity"
)

var verbAliases = map[string]Verb{
	"init":       VerbInit,
	"initialize": VerbInit,
	"setup":      VerbInit,
	"add":        VerbAdd,
	"create":     VerbAdd,
	"new":        VerbAdd,
	"make":       VerbAdd,
	"get":        VerbGet,
	"show":       VerbGet,
	"view":       VerbGet,
	"read":       VerbGet,
	"fetch":      VerbGet,
	"list":       VerbList,
	"ls":         VerbList,
	"all":        VerbList,
	"update":     VerbUpdate,
	"edit":       VerbUpdate,
	"set":        VerbUpdate,
	"modify":     VerbUpdate,
	"change":     VerbUpdate,
	"rename":     VerbUpdate,
	"delete":     VerbDelete,
	"remove":     VerbDelete,
	"rm":         VerbDelete,
	"del":        VerbDelete,
	"move":       VerbMove,
	"mv":         VerbMove,
	"reorder":    VerbMove,
	"next":       VerbNext,
	"tag":        VerbTag,
	"label":      VerbTag,
	"untag":      VerbUntag,
	"unlabel":    VerbUntag,
	"assign":     VerbAssign,
	"unassign":   VerbUnassign,
	"complete":   VerbComplete,
	"done":       VerbComplete,
	"finish":     VerbComplete,
	"check":      VerbComplete,
}

var nounAliases = map[string]Noun{
	"board":       NounBoard,
	"boards":      NounBoard,
	"project":     NounBoard,
	"column":      NounColumn,
	"columns":     NounColumn,
	"col":         NounColumn,
	"stage":       NounColumn,
	"swimlane":    NounSwimlane,
	"swimlanes":   NounSwimlane,
	"lane":        NounSwimlane,
	"lanes":       NounSwimlane,
	"actor":       NounActor,
	"actors":      NounActor,
	"user":        NounActor,
	"users":       NounActor,
	"member":      NounActor,
	"members":     NounActor,
	"agent":       NounActor,
	"agents":      NounActor,
	"tag":         NounTag,
	"tags":        NounTag,
	"label":       NounTag,
	"labels":      NounTag,
	"task":        NounTask,
	"tasks":       NounTask,
	"card":        NounTask,
	"cards":       NounTask,
	"issue":       NounTask,
	"comment":     NounComment,
	"comments":    NounComment,
	"note":        NounComment,
	"notes":       NounComment,
	"subtask":     NounSubtask,
	"subtasks":    NounSubtask,
	"checklist":   NounSubtask,
	"step":        NounSubtask,
	"steps":       NounSubtask,
	"item":        NounSubtask,
	"items":       NounSubtask,
	"attachment":  NounAttachment,
	"attachments": NounAttachment,
	"file":        NounAttachment,
	"files":       NounAttachment,
	"activity":    NounActivity,
	"log":         NounActivity,
	"logs":        NounActivity,
	"history":     NounActivity,
}

// ParseVerb resolves a verb or alias.
func ParseVerb(s string) (Verb, bool) {
	v, ok := verbAliases[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// ParseNoun resolves a noun or alias.
func ParseNoun(s string) (Noun, bool) {
	n, ok := nounAliases[strings.ToLower(strings.TrimSpace(s))]
	return n, ok
}

// OpKey identifies one entry of the dispatch table.
type OpKey struct {
	Verb Verb
	Noun Noun
}

// String returns the canonical "verb noun" form.
func (k OpKey) String() string {
	return string(k.Verb) + " " + string(k.Noun)
}

// Operation is a canonical, normalized request.
type Operation struct {
	Verb   Verb
	Noun   Noun
	Params Params
}

// Key returns the dispatch key.
func (o Operation) Key() OpKey {
	return OpKey{Verb: o.Verb, Noun: o.Noun}
}

// String returns the canonical op string.
func (o Operation) String() string {
	return o.Key().String()
}

// ParseOpString resolves "verb noun" strings. Separators may be spaces,
// underscores, dashes, dots, or colons, and the noun may come first.
func ParseOpString(s string) (OpKey, bool) {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		switch r {
		case ' ', '\t', '_', '-', '.', ':', '/':
			return true
		}
		return false
	})
	if len(fields) != 2 {
		return OpKey{}, false
	}
	if key, ok := opKeyFrom(fields[0], fields[1]); ok {
		return key, true
	}
	return opKeyFrom(fields[1], fields[0])
}

// opKeyFrom resolves a verb/noun pair and checks it against the dispatch table.
func opKeyFrom(verb, noun string) (OpKey, bool) {
	v, ok := ParseVerb(verb)
	if !ok {
		return OpKey{}, false
	}
	n, ok := ParseNoun(noun)
	if !ok {
		return OpKey{}, false
	}
	key := OpKey{Verb: v, Noun: n}
	if _, ok := lookupCommand(key); !ok {
		return OpKey{}, false
	}
	return key, true
}
