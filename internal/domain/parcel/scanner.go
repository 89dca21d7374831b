package parcel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/domain/audit"
	"parcelsort/pkg/logger"
)

// Scan result messages.
const (
	MsgScanned          = "Parcel scanned successfully"
	MsgAlreadyScanned   = "Parcel already scanned"
	MsgAlreadyDelivered = "Parcel already delivered"
)

// ScanResult is what the operator sees after a scan.
type ScanResult struct {
	Outcome     audit.EventType `json:"outcome"`
	Message     string          `json:"message"`
	RouteNumber string          `json:"routeNumber,omitempty"`
	ScannedAt   *time.Time      `json:"scannedAt,omitempty"`
	ScannedBy   string          `json:"scannedBy,omitempty"`
}

// Scanner applies the scan-in state machine.
type Scanner struct {
	svc *Service
}

// Scan registers a scan of trackingNumber by actor within sessionID.
//
// A found parcel always yields exactly one audit event, committed in the same
// transaction as the status change. An unknown tracking number returns
// NotFound and records nothing.
func (sc *Scanner) Scan(ctx context.Context, trackingNumber, actor, sessionID string) (ScanResult, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	switch {
	case trackingNumber == "":
		return ScanResult{}, apperror.NewValidation("tracking number is required")
	case strings.TrimSpace(actor) == "":
		return ScanResult{}, apperror.NewValidation("actor is required")
	case strings.TrimSpace(sessionID) == "":
		return ScanResult{}, apperror.NewValidation("session id is required")
	}

	var result ScanResult
	err := sc.svc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := sc.svc.parcels.FindByTrackingNumber(ctx, trackingNumber)
		if err != nil {
			return err
		}

		now := sc.svc.now()
		var event audit.Event
		result, event, err = sc.transition(ctx, p, actor, sessionID, now)
		if err != nil {
			return err
		}
		return sc.svc.trail.Record(ctx, &event)
	})
	if err != nil {
		if apperror.IsConcurrentModification(err) {
			logger.Warn(ctx, "scan lost version race", "tracking_number", trackingNumber)
		}
		return ScanResult{}, normalizeStorageErr("scan parcel", err)
	}

	logger.Info(ctx, "parcel scanned",
		"tracking_number", trackingNumber,
		"outcome", string(result.Outcome),
		"actor", actor,
		"session_id", sessionID,
	)
	return result, nil
}

func (sc *Scanner) transition(ctx context.Context, p *Parcel, actor, sessionID string, now time.Time) (ScanResult, audit.Event, error) {
	tn := p.TrackingNumber

	switch p.Status {
	case StatusPending:
		p.markScanned(actor, now)
		if err := sc.svc.parcels.Update(ctx, p); err != nil {
			return ScanResult{}, audit.Event{}, fmt.Errorf("update parcel: %w", err)
		}
		return ScanResult{
			Outcome:     audit.EventScanned,
			Message:     MsgScanned,
			RouteNumber: p.RouteNumber,
			ScannedAt:   p.ScannedAt,
			ScannedBy:   actor,
		}, audit.NewScanned(tn, actor, sessionID, now), nil

	case StatusScanned:
		res := ScanResult{
			Outcome:     audit.EventRepeatedScan,
			Message:     MsgAlreadyScanned,
			RouteNumber: p.RouteNumber,
			ScannedAt:   p.ScannedAt,
		}
		if p.ScannedBy != nil {
			res.ScannedBy = *p.ScannedBy
		}
		return res, audit.NewRepeatedScan(tn, actor, sessionID, now), nil

	case StatusDelivered:
		return ScanResult{
			Outcome: audit.EventInvalidScan,
			Message: MsgAlreadyDelivered,
		}, audit.NewInvalidScan(tn, actor, sessionID, now, "already delivered"), nil

	default:
		reason := fmt.Sprintf("unexpected status %q", p.Status)
		return ScanResult{
			Outcome: audit.EventInvalidScan,
			Message: "Scan failed: " + reason,
		}, audit.NewInvalidScan(tn, actor, sessionID, now, reason), nil
	}
}
