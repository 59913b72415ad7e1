package domain

import (
	"slices"
	"strings"
)

// ActorKind identifies which variant an actor is.
type ActorKind string

// Actor kinds.
const (
	ActorKindHuman ActorKind = "human"
	ActorKindAgent ActorKind = "agent"
)

var validActorKinds = []ActorKind{ActorKindHuman, ActorKindAgent}

// NormalizeActorKind lowercases a kind and defaults blanks to human.
func NormalizeActorKind(kind ActorKind) (ActorKind, error) {
	kind = ActorKind(strings.ToLower(strings.TrimSpace(string(kind))))
	if kind == "" {
		return ActorKindHuman, nil
	}
	if !slices.Contains(validActorKinds, kind) {
		return "", ErrInvalidActorKind
	}
	return kind, nil
}

// Actor is a closed variant: only Human and Agent implement it.
type Actor interface {
	ActorID() ActorID
	ActorName() string
	Kind() ActorKind
	sealed()
}

// Human is a person working the board.
type Human struct {
	ID   ActorID
	Name string
}

// Agent is an automated participant.
type Agent struct {
	ID   ActorID
	Name string
}

func (h Human) ActorID() ActorID  { return h.ID }
func (h Human) ActorName() string { return h.Name }
func (Human) Kind() ActorKind     { return ActorKindHuman }
func (Human) sealed()             {}

func (a Agent) ActorID() ActorID  { return a.ID }
func (a Agent) ActorName() string { return a.Name }
func (Agent) Kind() ActorKind     { return ActorKindAgent }
func (Agent) sealed()             {}

// NewActor validates input and returns the matching variant.
func NewActor(kind ActorKind, id ActorID, name string) (Actor, error) {
	if !ValidFileID(string(id)) {
		return nil, ErrInvalidID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	kind, err := NormalizeActorKind(kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case ActorKindAgent:
		return Agent{ID: id, Name: name}, nil
	default:
		return Human{ID: id, Name: name}, nil
	}
}

// RenameActor returns a copy of a with a new name, preserving the variant.
func RenameActor(a Actor, name string) (Actor, error) {
	return NewActor(a.Kind(), a.ActorID(), name)
}

// ActorRecord is the persisted and wire form of an actor.
type ActorRecord struct {
	Kind ActorKind `json:"kind"`
	ID   ActorID   `json:"id"`
	Name string    `json:"name"`
}

// RecordOf flattens an actor for serialization.
func RecordOf(a Actor) ActorRecord {
	switch v := a.(type) {
	case Human:
		return ActorRecord{Kind: ActorKindHuman, ID: v.ID, Name: v.Name}
	case Agent:
		return ActorRecord{Kind: ActorKindAgent, ID: v.ID, Name: v.Name}
	default:
		return ActorRecord{}
	}
}

// Actor rebuilds the variant from a record.
func (r ActorRecord) Actor() (Actor, error) {
	return NewActor(r.Kind, r.ID, r.Name)
}
