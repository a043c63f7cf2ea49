package membership

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Caller and reference errors. Callers compare with errors.Is.
var (
	ErrNotAuthorized = errors.New("only the group admin can do this")
	ErrNotFound      = errors.New("group or profile not found")
)

// No-op outcomes: the pair is already in (or not in) the state the
// operation would move it to.
var (
	ErrAlreadyMember     = errors.New("user is already a member of this group")
	ErrAlreadyPending    = errors.New("user already has a pending join request")
	ErrAlreadyInvited    = errors.New("this email has already been invited")
	ErrNotPending        = errors.New("no pending request or invitation for this user")
	ErrAlreadyAffiliated = errors.New("user already belongs to a group")
	ErrAdminRemoval      = errors.New("the group admin cannot be removed")
)

// ValidationError reports a missing or malformed argument. It is returned
// before any store access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// StorageError wraps an infrastructure failure from a store. Callers may
// retry the operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsAlreadyInState reports whether err is one of the no-op outcomes.
func IsAlreadyInState(err error) bool {
	return errors.Is(err, ErrAlreadyMember) ||
		errors.Is(err, ErrAlreadyPending) ||
		errors.Is(err, ErrAlreadyInvited) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrAlreadyAffiliated) ||
		errors.Is(err, ErrAdminRemoval)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// classify passes domain errors through, maps a missing document to
// ErrNotFound and wraps everything else as a StorageError.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrNotFound),
		IsAlreadyInState(err), IsValidation(err):
		return err
	default:
		var se *StorageError
		if errors.As(err, &se) {
			return err
		}
		return &StorageError{Op: op, Err: err}
	}
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
