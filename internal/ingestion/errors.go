package ingestion

import (
	"errors"
	"fmt"
)

// Reasons a feed response is rejected, wrapped by FetchError.
var (
	ErrBadStatus        = errors.New("unexpected HTTP status")
	ErrBadBody          = errors.New("malformed response body")
	ErrUnexpectedStatus = errors.New("feed status is not success")
	ErrEmptyData        = errors.New("feed has no data")
)

// ErrStoreUnavailable is returned when storage fails its health check before a run
var ErrStoreUnavailable = errors.New("store unavailable")

// FetchErrorKind classifies run-level fetch failures
type FetchErrorKind int

const (
	// FetchNetwork is a transport failure: timeout, refused connection, TLS
	FetchNetwork FetchErrorKind = iota
	// FetchInvalidResponse is a response that arrived but is not a usable feed
	FetchInvalidResponse
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchNetwork:
		return "network"
	case FetchInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// FetchError aborts an import run before any item is processed
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != 200 {
		return fmt.Sprintf("fetch %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ItemErrorKind classifies per-item problems
type ItemErrorKind int

const (
	// ItemValidationFailed means title or source was empty, the item is skipped
	ItemValidationFailed ItemErrorKind = iota
	// ItemPersistenceFailed means a store call failed, the item is skipped
	ItemPersistenceFailed
	// ItemTimestampUnparsable means pubDate fell back to the epoch, the item is still processed
	ItemTimestampUnparsable
)

func (k ItemErrorKind) String() string {
	switch k {
	case ItemValidationFailed:
		return "validation_failed"
	case ItemPersistenceFailed:
		return "persistence_failed"
	case ItemTimestampUnparsable:
		return "timestamp_unparsable"
	default:
		return "unknown"
	}
}

// ItemError describes a problem with one feed item. It never aborts the batch.
type ItemError struct {
	Index int
	Title string
	Kind  ItemErrorKind
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%q) %s: %v", e.Index, e.Title, e.Kind, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
