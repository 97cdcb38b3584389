package store

import "errors"

// Sentinel errors shared by both repository adapters. Callers branch
// with errors.Is; adapters wrap these with context via fmt.Errorf.
var (
	// ErrInvalidInput indicates bad user input: empty title, deadline
	// not in the future, or reminder count out of range. No mutation
	// was performed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates an unknown task or reminder id.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the backing store is unreachable. The
	// dispatch loop treats it as "skip this scan, retry next tick".
	ErrUnavailable = errors.New("store unavailable")
)
