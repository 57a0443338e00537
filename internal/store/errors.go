package store

import (
	"errors"

	"github.com/kalamarcito/dav/internal/delta"
)

// Sentinels shared across layers for stable error mapping.
var (
	// ErrNotFound indicates a missing or unauthorized resource lookup.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidRef indicates a malformed collection reference; raised
	// before any storage access.
	ErrInvalidRef = errors.New("invalid collection reference")

	// ErrSyncTokenExpired indicates the collection is unknown or its sync
	// history no longer covers the client token; callers fall back to a
	// full listing.
	ErrSyncTokenExpired = errors.New("sync token expired")

	// ErrTooManyResults indicates a delta report exceeded the caller's
	// result cap. The report is never silently truncated.
	ErrTooManyResults = delta.ErrTooManyResults
)
