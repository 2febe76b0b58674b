// Package kberrs holds the sentinel errors shared across the core,
// declared the same way pkg/store/storage.go does: a package-level var
// block of errors.New values.
package kberrs

import "errors"

var (
	// ErrIDSpaceExhausted is fatal: the dictionary's 32-bit id pool is
	// exhausted. Not recoverable.
	ErrIDSpaceExhausted = errors.New("dictionary: identifier space exhausted")

	// ErrSessionNotFound is returned when a caller references an RSP-QL
	// session id that was never registered or has been torn down.
	ErrSessionNotFound = errors.New("rsp: session not found")

	// ErrQueryParseError is returned when a RegisteredQuery fails
	// validation at registration time. No partial registration occurs.
	ErrQueryParseError = errors.New("rsp: query registration error")
)
