package certificate

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates the supplied certificate fields are not acceptable.
	ErrValidation = errors.New("validation failed")
	// ErrHashMismatch indicates an attempt to bind a different document hash to
	// a record that already has one. This is a data-integrity conflict that
	// needs manual resolution, never silently overwritten.
	ErrHashMismatch = errors.New("document hash conflict")
	// ErrHashCollision indicates more than one record owns the same document
	// hash. Verification surfaces this as an error rather than resolving it to
	// an arbitrary match.
	ErrHashCollision = errors.New("document hash owned by multiple records")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
