package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a plugin id with no matching record.
	ErrNotFound = errors.New("plugin not found")
	// ErrOwnerNotFound reports a username with no matching user account.
	ErrOwnerNotFound = errors.New("owner not found")
	// ErrDuplicateName reports a plugin name that is already registered.
	ErrDuplicateName = errors.New("plugin name already registered")
)

// ValidationError reports a missing or invalid field on a candidate record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plugin record: %s %s", e.Field, e.Reason)
}
