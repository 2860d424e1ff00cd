// Package lunaerr defines the closed set of error kinds the governor core
// can return and a wrapper carrying operation context, so callers can
// dispatch on kind with errors.Is/errors.As instead of string matching.
package lunaerr

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of error categories an exported operation may
// return.
type Kind int

const (
	// Unknown is the zero value; a Kind should always be set explicitly.
	Unknown Kind = iota
	// InputValidation marks a caller-supplied input that failed validation.
	InputValidation
	// BackendUnavailable marks a configured LLM/Arbiter backend that could
	// not be reached (network error, timeout, connection refused).
	BackendUnavailable
	// BackendMalformed marks a backend response that could be reached but
	// did not conform to the expected wire contract.
	BackendMalformed
	// ParseError marks a failure decoding persisted or wire-format data.
	ParseError
	// StateIOError marks a failure reading or writing persisted state.
	StateIOError
	// CFIASplitError marks a failure during a CFIA shard split.
	CFIASplitError
	// Inconsistency marks an internal invariant violation (a bug, not a
	// caller or backend fault).
	Inconsistency
)

func (k Kind) String() string {
	switch k {
	case InputValidation:
		return "input_validation"
	case BackendUnavailable:
		return "backend_unavailable"
	case BackendMalformed:
		return "backend_malformed"
	case ParseError:
		return "parse_error"
	case StateIOError:
		return "state_io_error"
	case CFIASplitError:
		return "cfia_split_error"
	case Inconsistency:
		return "inconsistency"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error for the given kind and operation, wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap is a convenience for New that formats err with fmt.Errorf("%w", ...)
// semantics preserved through Unwrap.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error in its chain) is a *Error of the
// given kind.
func Is(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}
