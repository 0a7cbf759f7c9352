// Package fault defines the error kinds surfaced by the collision-risk
// pipeline. Callers branch on a kind with errors.Is and read the detail
// from the returned *Error.
package fault

import (
	"errors"
	"fmt"
)

// Kind is a stable, matchable error category.
type Kind string

const (
	DataSourceUnavailable Kind = "data_source_unavailable"
	InvalidTimestamp      Kind = "invalid_timestamp"
	OwnShipNotFound       Kind = "own_ship_not_found"
	NoTargetShips         Kind = "no_target_ships"
	NoMatchingTargets     Kind = "no_matching_targets"
	TargetShipNotFound    Kind = "target_ship_not_found"
	InvalidMode           Kind = "invalid_mode"
	EmptyWindow           Kind = "empty_window"
	DegenerateSpeed       Kind = "degenerate_speed"
	InvalidRequest        Kind = "invalid_request"
	UnknownFleet          Kind = "unknown_fleet"
)

// Error implements error so a bare Kind can be used as an errors.Is target.
func (k Kind) Error() string {
	return string(k)
}

// Error carries a kind plus a human-readable detail.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// New returns an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}
