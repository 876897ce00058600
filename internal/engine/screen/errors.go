package screen

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when the screen was closed while a request was in flight. The response
	// is discarded.
	ErrClosed = errors.New("screen closed")
	// ErrLinkNotFound signals that the link is not in the collection the operation needs.
	ErrLinkNotFound = errors.New("link not found on screen")
	// ErrNoPermanentLink signals a permanent link operation before the link is known.
	ErrNoPermanentLink = errors.New("permanent link not loaded")
	// ErrPublicLink signals an attempt to revoke the public link of a public resource.
	ErrPublicLink = errors.New("public link cannot be revoked")
	// ErrReadOnly signals a mutation on a screen without edit rights.
	ErrReadOnly = errors.New("screen is read only")
	// ErrInconsistentResponse signals a server answer that does not match its own shape.
	ErrInconsistentResponse = errors.New("inconsistent server response")
)

// Op names a mutation.
type Op string

const (
	OpCreate          Op = "create"
	OpEdit            Op = "edit"
	OpRevoke          Op = "revoke"
	OpRevokePermanent Op = "revoke_permanent"
	OpDelete          Op = "delete"
	OpDeleteRevoked   Op = "delete_revoked"
)

// MutationError is returned by every failed mutation. The store is left as it was.
type MutationError struct {
	Op     Op
	LinkID string
	Err    error
}

func (e *MutationError) Error() string {
	if e.LinkID == "" {
		return fmt.Sprintf("%s link: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s link %s: %v", e.Op, e.LinkID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
