package domain

import "errors"

var (
	// ErrIndexNotFound signals that no index list document exists.
	ErrIndexNotFound = errors.New("index not found")
	// ErrStoreUnavailable signals that the document store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)
