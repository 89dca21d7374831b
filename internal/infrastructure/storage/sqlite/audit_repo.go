package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"parcelsort/internal/domain/audit"
)

// AuditRepo implements audit.Repository.
type AuditRepo struct {
	db *gorm.DB
}

// NewAuditRepo creates a new audit repository.
func NewAuditRepo(db *gorm.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

var _ audit.Repository = (*AuditRepo)(nil)

func (r *AuditRepo) Insert(ctx context.Context, e *audit.Event) error {
	row := auditEventRow{
		TrackingNumber: e.TrackingNumber,
		EventType:      string(e.EventType),
		ScannedBy:      e.ScannedBy,
		ScannedAt:      e.ScannedAt,
		SessionID:      e.SessionID,
		Message:        e.Message,
	}
	if err := conn(ctx, r.db).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	e.ID = row.ID
	return nil
}

func (r *AuditRepo) List(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	q := conn(ctx, r.db).Model(&auditEventRow{})
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.TrackingNumber != "" {
		q = q.Where("tracking_number = ?", f.TrackingNumber)
	}

	var rows []auditEventRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	out := make([]audit.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, audit.Event{
			ID:             row.ID,
			TrackingNumber: row.TrackingNumber,
			EventType:      audit.EventType(row.EventType),
			ScannedBy:      row.ScannedBy,
			ScannedAt:      row.ScannedAt.UTC(),
			SessionID:      row.SessionID,
			Message:        row.Message,
		})
	}
	return out, nil
}

func (r *AuditRepo) DeleteAll(ctx context.Context) (int64, error) {
	res := conn(ctx, r.db).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&auditEventRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete audit events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
