package cacheerr

import (
	"errors"
	"fmt"
)

// Kind is one of the caller-visible error categories.
type Kind int

const (
	// Storage is a backend I/O or transaction failure. Recoverable at
	// the operation boundary by retry within the writer; surfaced after
	// N attempts.
	Storage Kind = iota
	// Codec means malformed bytes. Fatal: corruption or version skew,
	// the cache must be treated as unreadable.
	Codec
	// Schema means a query referenced an unknown field or an
	// incompatible type. Surfaced to the caller as validation; never
	// retried.
	Schema
	// NotFound means the primary key is absent from the index, or the
	// record is missing from the log at the expected offset.
	NotFound
	// PlanRejected means the query contains only unsupported operators
	// (for example a bare disjunction).
	PlanRejected
	// Cancelled means the query or worker observed a shutdown signal;
	// no partial results are returned.
	Cancelled
	// StaleIndex is a soft condition: the query touched an index whose
	// advance marker trails the main commit offset. Returned alongside
	// results, not instead of them.
	StaleIndex
)

func (k Kind) String() string {
	switch k {
	case Storage:
		return "Storage"
	case Codec:
		return "Codec"
	case Schema:
		return "Schema"
	case NotFound:
		return "NotFound"
	case PlanRejected:
		return "PlanRejected"
	case Cancelled:
		return "Cancelled"
	case StaleIndex:
		return "StaleIndex"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a closed Kind.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "mainenv.apply"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error. err may be nil, in which case Error.Err is set
// to errors.New(kind.String()).
func New(kind Kind, op string, err error) *Error {
	if err == nil {
		err = errors.New(kind.String())
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap is shorthand for New with a formatted underlying error.
func Wrap(kind Kind, op, format string, args ...any) *Error {
	return New(kind, op, fmt.Errorf(format, args...))
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var ce *Error
	for errors.As(err, &ce) {
		if ce.Kind == kind {
			return true
		}
		err = ce.Err
		if err == nil {
			return false
		}
	}
	return false
}
