package parcel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/core/tx"
	"parcelsort/internal/domain/audit"
)

// RecordReader turns an uploaded manifest into flat records.
type RecordReader interface {
	Read(ctx context.Context, filename string, r io.Reader) ([]Record, error)
}

// ServiceConfig wires the parcel components to storage.
type ServiceConfig struct {
	Parcels   Repository
	Batches   BatchRepository
	Audit     audit.Repository
	TxManager tx.Manager
	Reader    RecordReader

	// Now defaults to UTC wall clock at microsecond precision.
	Now func() time.Time
}

// Service is the entry point for parcel operations.
// Importer and Scanner share its storage and clock.
type Service struct {
	parcels   Repository
	batches   BatchRepository
	auditRepo audit.Repository
	trail     *audit.Trail
	txManager tx.Manager
	reader    RecordReader
	now       func() time.Time

	*Importer
	*Scanner
}

// NewService creates a new parcel service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = defaultNow
	}

	s := &Service{
		parcels:   cfg.Parcels,
		batches:   cfg.Batches,
		auditRepo: cfg.Audit,
		trail:     audit.NewTrail(cfg.Audit),
		txManager: cfg.TxManager,
		reader:    cfg.Reader,
		now:       now,
	}
	s.Importer = &Importer{svc: s}
	s.Scanner = &Scanner{svc: s}
	return s
}

func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Trail exposes the audit trail read side.
func (s *Service) Trail() *audit.Trail {
	return s.trail
}

// ListByStatus returns parcels in the given status.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]*Parcel, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		return nil, apperror.NewValidation("unknown parcel status").WithDetail("status", string(status))
	}
	parcels, err := s.parcels.ListByStatus(ctx, status)
	if err != nil {
		return nil, normalizeStorageErr("list parcels", err)
	}
	if parcels == nil {
		parcels = []*Parcel{}
	}
	return parcels, nil
}

// Get returns a parcel by tracking number.
func (s *Service) Get(ctx context.Context, trackingNumber string) (*Parcel, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, apperror.NewValidation("tracking number is required")
	}
	p, err := s.parcels.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, normalizeStorageErr("get parcel", err)
	}
	return p, nil
}

// Exists reports whether a parcel with the tracking number was imported.
func (s *Service) Exists(ctx context.Context, trackingNumber string) (bool, error) {
	ok, err := s.parcels.ExistsByTrackingNumber(ctx, strings.TrimSpace(trackingNumber))
	if err != nil {
		return false, normalizeStorageErr("check parcel", err)
	}
	return ok, nil
}

// ClearResult reports what ClearAll removed.
type ClearResult struct {
	Parcels     int64 `json:"parcels"`
	AuditEvents int64 `json:"auditEvents"`
	Batches     int64 `json:"batches"`
}

// ClearAll wipes parcels, the audit trail and archived batches in one transaction.
func (s *Service) ClearAll(ctx context.Context) (ClearResult, error) {
	var res ClearResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if res.AuditEvents, err = s.auditRepo.DeleteAll(ctx); err != nil {
			return fmt.Errorf("delete audit events: %w", err)
		}
		if res.Parcels, err = s.parcels.DeleteAll(ctx); err != nil {
			return fmt.Errorf("delete parcels: %w", err)
		}
		if res.Batches, err = s.batches.DeleteAll(ctx); err != nil {
			return fmt.Errorf("delete import batches: %w", err)
		}
		return nil
	})
	if err != nil {
		return ClearResult{}, normalizeStorageErr("clear all", err)
	}
	return res, nil
}

// normalizeStorageErr keeps structured errors and maps the rest to StorageFailure.
func normalizeStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewStorage(op, err)
}
