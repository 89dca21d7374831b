package dto

import (
	"time"

	"parcelsort/internal/domain/audit"
)

// AuditEventResponse is one entry of the scan trail.
type AuditEventResponse struct {
	ID             int64     `json:"id"`
	TrackingNumber string    `json:"trackingNumber"`
	Event          string    `json:"event"`
	ScannedBy      string    `json:"scannedBy"`
	ScannedAt      time.Time `json:"scannedAt"`
	SessionID      string    `json:"sessionId"`
	Message        string    `json:"message,omitempty"`
}

// FromAuditEvents maps trail entries, keeping their order.
func FromAuditEvents(events []audit.Event) []AuditEventResponse {
	out := make([]AuditEventResponse, 0, len(events))
	for _, e := range events {
		r := AuditEventResponse{
			ID:             e.ID,
			TrackingNumber: e.TrackingNumber,
			Event:          string(e.EventType),
			ScannedBy:      e.ScannedBy,
			ScannedAt:      e.ScannedAt,
			SessionID:      e.SessionID,
		}
		if e.Message != nil {
			r.Message = *e.Message
		}
		out = append(out, r)
	}
	return out
}
