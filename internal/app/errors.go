package app

import (
	"errors"

	"github.com/hylla/kanfile/internal/domain"
)

// Error taxonomy sentinels. Callers wrap them with context and classify with KindOf.
var (
	ErrParse       = errors.New("parse error")
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrCycle       = errors.New("dependency cycle")
	ErrConflict    = errors.New("conflict")
	ErrLockBusy    = errors.New("store lock busy")
	ErrLockTimeout = errors.New("store lock timeout")
	ErrIO          = errors.New("io error")
)

// ErrorKind is the stable, machine-readable classification of an error.
type ErrorKind string

// Error kinds reported to callers and written into log entries.
const (
	KindParse       ErrorKind = "parse"
	KindValidation  ErrorKind = "validation"
	KindNotFound    ErrorKind = "not_found"
	KindCycle       ErrorKind = "cycle"
	KindConflict    ErrorKind = "conflict"
	KindLockBusy    ErrorKind = "lock_busy"
	KindLockTimeout ErrorKind = "lock_timeout"
	KindIO          ErrorKind = "io"
)

// KindOf classifies err. Unknown errors are reported as io failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrCycle), errors.Is(err, domain.ErrDependencyCycle):
		return KindCycle
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, domain.ErrDuplicateID), errors.Is(err, domain.ErrDuplicateRank):
		return KindConflict
	case errors.Is(err, ErrLockTimeout):
		return KindLockTimeout
	case errors.Is(err, ErrLockBusy):
		return KindLockBusy
	case errors.Is(err, ErrValidation), isDomainValidation(err):
		return KindValidation
	default:
		return KindIO
	}
}

// IsFatal reports whether err leaves the caller unable to continue without intervention.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindLockTimeout, KindIO:
		return true
	default:
		return false
	}
}

// isDomainValidation reports whether err is one of the domain input sentinels.
func isDomainValidation(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidID,
		domain.ErrInvalidName,
		domain.ErrInvalidTitle,
		domain.ErrInvalidBody,
		domain.ErrInvalidRank,
		domain.ErrInvalidWIPLimit,
		domain.ErrInvalidColumnID,
		domain.ErrInvalidActorKind,
		domain.ErrInvalidOrdinal,
		domain.ErrOrdinalRange,
		domain.ErrUnknownColumn,
		domain.ErrUnknownSwimlane,
		domain.ErrInvalidAttachment,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
