package xform

import (
	"errors"
	"fmt"

	"github.com/roach88/tandem/internal/ir"
)

// UnsupportedCombinationError reports a pair of instructions the case matrix
// has no entry for. It indicates a programming defect, never a condition to
// retry.
type UnsupportedCombinationError struct {
	A ir.Instruction
	B ir.Instruction
}

func (e *UnsupportedCombinationError) Error() string {
	return fmt.Sprintf("xform: unsupported instruction combination %T x %T", e.A, e.B)
}

// IsUnsupportedCombination returns true if err is or wraps an
// UnsupportedCombinationError.
func IsUnsupportedCombination(err error) bool {
	var ue *UnsupportedCombinationError
	return errors.As(err, &ue)
}
