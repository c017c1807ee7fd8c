// Package chain is the boundary to the blockchain node. It exposes the two reads
// the verifier depends on (chain head and a bounded event query) and classifies
// failures into connectivity and fetch errors.
//
// The node is trusted to return events of a block range in chain order and
// without gaps within a page. Each event keeps its block hash so that callers can
// cross-check continuity if that trust ever needs to be narrowed.
package chain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConnectivity means no endpoint could be reached (transport failure, timeout, non-2xx).
	ErrConnectivity = errors.New("chain endpoint unreachable")
	// ErrFetch means an endpoint answered but the call itself failed.
	ErrFetch = errors.New("chain query failed")
)

// Error describes a failed chain call. errors.Is matches both its kind
// (ErrConnectivity, ErrFetch, or the caller's context error) and the underlying cause.
type Error struct {
	Op       string
	Endpoint string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s via %s endpoint: %v: %v", e.Op, e.Endpoint, e.Kind, e.Err)
}

// Summary describes the failure without its cause. It is safe to return to API callers.
func (e *Error) Summary() string {
	return fmt.Sprintf("%s via %s endpoint: %v", e.Op, e.Endpoint, e.Kind)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Event is a raw contract event as returned by the node.
type Event struct {
	ContractAddress string
	Keys            []string
	Data            []string
	BlockHash       string
	BlockNumber     uint64
	TransactionHash string
}

// EventFilter selects events of one contract within an inclusive block range.
type EventFilter struct {
	ContractAddress string
	Keys            [][]string
	FromBlock       uint64
	ToBlock         uint64
	PageSize        int
}

// EventPage is a single page of events. Only one page is ever requested; when the
// node has more, Truncated is set and the remainder is not fetched.
type EventPage struct {
	Events    []Event
	Truncated bool
	// Dropped counts events without a block number (pending block), which are not returned.
	Dropped int
}

// Client is the contract the verifier consumes.
type Client interface {
	LatestBlock(ctx context.Context) (uint64, error)
	GetEvents(ctx context.Context, filter EventFilter) (*EventPage, error)
	Healthy(ctx context.Context) error
}
