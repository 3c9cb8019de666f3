package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors forming the service's failure taxonomy. Handlers map them
// to HTTP statuses and stable machine codes; anything unmatched is an
// internal fault.
var (
	// ErrUpstreamUnavailable covers network-level failures talking to the
	// upstream on the must-succeed calls.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound covers an unresolved category name, an unknown warehouse
	// and a category with zero products.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers missing or malformed category and warehouse
	// parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// UpstreamRejectedError is an error response from the upstream itself,
// carrying its status and payload for relay to the caller.
type UpstreamRejectedError struct {
	Status int
	Body   json.RawMessage
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("upstream rejected the request with status %d", e.Status)
}
