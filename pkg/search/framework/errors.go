package framework

import (
	"errors"
	"fmt"
	"math"
)

const maxDistance = math.MaxFloat64

var (
	ErrNaNDistance           = errors.New("distance is NaN")
	ErrDuplicateArchiveEntry = errors.New("objective is already mapped to this encoding")
	ErrMissingDistance       = errors.New("objective has not been evaluated for encoding")
	ErrMalformedConditional  = errors.New("conditional node must have exactly two outgoing conditional edges")
	ErrMissingBranchTrace    = errors.New("no trace recorded for covered conditional")
	ErrNotExecuted           = errors.New("encoding has no execution result")
)

// ImplementationError signals a violated invariant. It is fatal to the
// search call that observed it and must never be swallowed.
type ImplementationError struct {
	Op  string
	Err error
}

func (e *ImplementationError) Error() string {
	return fmt.Sprintf("implementation error in %s: %v", e.Op, e.Err)
}

func (e *ImplementationError) Unwrap() error {
	return e.Err
}

func NewImplementationError(op string, err error) error {
	return &ImplementationError{Op: op, Err: err}
}

// IsImplementationError reports whether err or anything it wraps is an
// ImplementationError.
func IsImplementationError(err error) bool {
	var ie *ImplementationError
	return errors.As(err, &ie)
}
