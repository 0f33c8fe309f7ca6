// Package pkg holds utilities shared across the server.
// This file defines the domain-level errors.
//
// Errors are compared by identity instead of by message:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
package pkg

import "errors"

// Domain-level errors.
// Services return these (usually wrapped), the handler layer maps them to
// HTTP status codes in Error.
var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyExists    = errors.New("already exists")
	ErrBadRequest       = errors.New("bad request")
	ErrTooLarge         = errors.New("payload too large")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrInternal         = errors.New("internal error")
)
