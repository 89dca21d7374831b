// Package idempotency guards mutating HTTP requests against replays.
// A key is acquired before the handler runs and completed with the exact
// response, which later requests with the same key receive verbatim.
package idempotency

import (
	"context"
	"net/http"
	"time"
)

// Status is the lifecycle state of a key.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may stay unfinished before another
// request may reclaim it.
const StaleAfter = time.Minute

// Request identifies one guarded call.
type Request struct {
	Key         string
	ActorID     string
	Operation   string // "POST /api/v1/parcels/scan/:trackingNumber"
	RequestHash string // sha256 hex of the body
}

// Replay is a cached HTTP response.
type Replay struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store persists idempotency keys.
type Store interface {
	// Acquire returns (nil, nil) when the caller owns the key, a Replay when
	// the operation already finished, or an AppError on conflict or reuse.
	Acquire(ctx context.Context, req Request) (*Replay, error)

	// Complete stores a successful response for key.
	Complete(ctx context.Context, key string, resp Replay) error

	// Fail stores an error response for key.
	Fail(ctx context.Context, key string, resp Replay) error

	// Release forgets key so a retry with it runs the operation again.
	Release(ctx context.Context, key string) error
}

// normalizeReplay fills defaults for records written without response metadata.
func normalizeReplay(r *Replay) *Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" && r.StatusCode != http.StatusNoContent {
		r.ContentType = "application/json"
	}
	return r
}
