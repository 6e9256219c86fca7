package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrBudgetExceeded means a prompt addition would overflow the token
	// budget. Recoverable: the caller should shorten or omit content.
	ErrBudgetExceeded = goerr.New("prompt token budget exceeded")

	// ErrDuplicateKey means an ID that already exists was persisted again.
	// This signals a bug in dedup logic and is surfaced, never swallowed.
	ErrDuplicateKey = goerr.New("duplicate key")

	// ErrDimensionMismatch means an embedding's length differs from the
	// expected dimensionality.
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrUnsupportedModel means no token accounting table exists for the
	// requested model identifier.
	ErrUnsupportedModel = goerr.New("unsupported model")

	// ErrNotFound means a referenced record does not exist.
	ErrNotFound = goerr.New("record not found")
)
