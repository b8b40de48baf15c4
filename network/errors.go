package network

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the endpoint.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrBroadcastRejected indicates an endpoint rejected the transaction.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")

	// ErrInvalidResponse indicates an endpoint returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")
)

// BroadcastError is returned when the whole cascade is exhausted
// without an acceptance. Reason is sanitized: endpoint identifiers and
// raw upstream payloads are stripped before it reaches a caller. The
// full per-endpoint detail is in the logs.
type BroadcastError struct {
	Reason string
}

func (e *BroadcastError) Error() string {
	if e.Reason == "" {
		return "network: broadcast failed"
	}
	return "network: broadcast failed: " + e.Reason
}
