package episodes

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is() to check.
var (
	ErrNotFound    = errors.New("index not found")
	ErrUnavailable = errors.New("store unavailable")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("episodes: http %d", e.Status)
	}
	return fmt.Sprintf("episodes: http %d: %s: %s", e.Status, e.Code, e.Message)
}

// Is maps server error codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == "index_not_found"
	case ErrUnavailable:
		return e.Code == "store_unavailable"
	}
	return false
}
