package generator

import (
	"errors"
	"fmt"
)

// Kind classifies a generation failure.
type Kind int

const (
	KindInvalidParameter Kind = iota + 1
	KindAllocation
	KindNumeric
	KindCanceled
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameter:
		return "invalid parameter"
	case KindAllocation:
		return "allocation"
	case KindNumeric:
		return "numeric"
	case KindCanceled:
		return "canceled"
	case KindBusy:
		return "busy"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrAllocation       = errors.New("allocation failed")
	ErrNumeric          = errors.New("numeric error")
	ErrCanceled         = errors.New("generation canceled")
	ErrBusy             = errors.New("generation already running")
)

// Error is the typed failure returned by Generate.
type Error struct {
	Err    error
	Op     string
	Detail string
	Kind   Kind
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg += " in " + e.Op
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidParameter:
		return e.Kind == KindInvalidParameter
	case ErrAllocation:
		return e.Kind == KindAllocation
	case ErrNumeric:
		return e.Kind == KindNumeric
	case ErrCanceled:
		return e.Kind == KindCanceled
	case ErrBusy:
		return e.Kind == KindBusy
	}
	return false
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}
