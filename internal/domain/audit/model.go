// Package audit is the append-only trail of scan attempts.
package audit

import (
	"fmt"
	"time"
)

// EventType classifies a scan attempt.
type EventType string

const (
	EventScanned      EventType = "SCANNED"
	EventRepeatedScan EventType = "REPEATED_SCAN"
	EventInvalidScan  EventType = "INVALID_SCAN"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventScanned, EventRepeatedScan, EventInvalidScan:
		return true
	}
	return false
}

// Event is a single scan attempt. Events are inserted once and never edited.
type Event struct {
	// ID is assigned by storage and follows insertion order.
	ID             int64     `db:"id" json:"id"`
	TrackingNumber string    `db:"tracking_number" json:"trackingNumber"`
	EventType      EventType `db:"event_type" json:"event"`
	ScannedBy      string    `db:"scanned_by" json:"scannedBy"`
	// ScannedAt is the time of the attempt, not the parcel's first scan.
	ScannedAt time.Time `db:"scanned_at" json:"scannedAt"`
	SessionID string    `db:"session_id" json:"sessionId"`
	Message   *string   `db:"message" json:"message,omitempty"`
}

// Filter narrows a trail query. Zero value selects every event.
type Filter struct {
	SessionID      string
	TrackingNumber string
}

// NewScanned records a successful PENDING -> SCANNED transition.
func NewScanned(trackingNumber, actor, sessionID string, at time.Time) Event {
	return newEvent(EventScanned, trackingNumber, actor, sessionID, at,
		"Parcel scanned successfully - "+trackingNumber)
}

// NewRepeatedScan records a scan of an already scanned parcel.
func NewRepeatedScan(trackingNumber, actor, sessionID string, at time.Time) Event {
	return newEvent(EventRepeatedScan, trackingNumber, actor, sessionID, at,
		"The parcel has already been scanned - "+trackingNumber)
}

// NewInvalidScan records a scan attempt against a state that cannot be scanned.
func NewInvalidScan(trackingNumber, actor, sessionID string, at time.Time, reason string) Event {
	return newEvent(EventInvalidScan, trackingNumber, actor, sessionID, at,
		fmt.Sprintf("Parcel %s invalid scan: %s", trackingNumber, reason))
}

func newEvent(t EventType, trackingNumber, actor, sessionID string, at time.Time, msg string) Event {
	return Event{
		TrackingNumber: trackingNumber,
		EventType:      t,
		ScannedBy:      actor,
		ScannedAt:      at,
		SessionID:      sessionID,
		Message:        &msg,
	}
}
