package services

import (
	"errors"
)

// The four failure classes every service operation resolves to. Services wrap
// these with context via fmt.Errorf("...: %w", Err...); the transport layer
// maps them to HTTP status codes with errors.Is.
var (
	// ErrNotFound: the referenced entity is absent or filtered out of view
	// (a sold listing reads as not found to buyers).
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied: the caller is not the owning identity.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidArgument: malformed quantity, missing shipping fields,
	// unknown enum value.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict: the operation lost to an earlier write - duplicate
	// rating, already-sold listing at checkout, stale status transition.
	ErrConflict = errors.New("conflict")
)
