package domain

import "errors"

var (
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidTitle      = errors.New("invalid title")
	ErrInvalidBody       = errors.New("invalid body")
	ErrInvalidRank       = errors.New("invalid rank")
	ErrInvalidWIPLimit   = errors.New("invalid wip limit")
	ErrInvalidColumnID   = errors.New("invalid column id")
	ErrInvalidActorKind  = errors.New("invalid actor kind")
	ErrInvalidOrdinal    = errors.New("invalid ordinal")
	ErrOrdinalRange      = errors.New("ordinal bounds out of order")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrDuplicateRank     = errors.New("duplicate rank")
	ErrDependencyCycle   = errors.New("dependency cycle")
	ErrUnknownColumn     = errors.New("unknown column")
	ErrUnknownSwimlane   = errors.New("unknown swimlane")
	ErrInvalidAttachment = errors.New("invalid attachment")
)
