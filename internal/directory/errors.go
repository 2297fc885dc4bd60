package directory

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the repository, the capture controller and the result correlator.
// Callers compare with errors.Is; every returned error wraps exactly one of these.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("capture already in progress")
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrParse             = errors.New("parse error")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Unavailable wraps a transport failure so it matches ErrRemoteUnavailable.
// Errors that already carry a taxonomy sentinel are returned unchanged.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTaxonomy(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
}

// IsTaxonomy reports whether err wraps one of the directory sentinel errors.
func IsTaxonomy(err error) bool {
	for _, sentinel := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrRemoteUnavailable, ErrParse} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
