package audit

import (
	"context"
	"fmt"
	"strings"

	"parcelsort/internal/core/apperror"
)

// Trail is the append-only view over Repository: record and query, nothing else.
type Trail struct {
	repo Repository
}

// NewTrail creates a Trail.
func NewTrail(repo Repository) *Trail {
	return &Trail{repo: repo}
}

// Record appends e to the trail. It joins the caller's transaction when ctx carries one.
func (t *Trail) Record(ctx context.Context, e *Event) error {
	if !e.EventType.Valid() {
		return apperror.NewValidation("unknown audit event type").WithDetail("event", string(e.EventType))
	}
	if strings.TrimSpace(e.TrackingNumber) == "" {
		return apperror.NewValidation("audit event requires a tracking number")
	}
	if err := t.repo.Insert(ctx, e); err != nil {
		return normalize("record audit event", err)
	}
	return nil
}

// Query returns events matching f in insertion order.
func (t *Trail) Query(ctx context.Context, f Filter) ([]Event, error) {
	events, err := t.repo.List(ctx, f)
	if err != nil {
		return nil, normalize("query audit events", err)
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// All returns the whole trail.
func (t *Trail) All(ctx context.Context) ([]Event, error) {
	return t.Query(ctx, Filter{})
}

// BySession returns events of one scanning session.
func (t *Trail) BySession(ctx context.Context, sessionID string) ([]Event, error) {
	return t.Query(ctx, Filter{SessionID: sessionID})
}

// ByTrackingNumber returns the history of one parcel.
func (t *Trail) ByTrackingNumber(ctx context.Context, trackingNumber string) ([]Event, error) {
	return t.Query(ctx, Filter{TrackingNumber: trackingNumber})
}

func normalize(op string, err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewStorage(op, fmt.Errorf("%s: %w", op, err))
}
