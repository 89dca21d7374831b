package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/core/id"
	"parcelsort/internal/domain/parcel"
)

const insertBatchSize = 500

// ParcelRepo implements parcel.Repository.
type ParcelRepo struct {
	db *gorm.DB
}

// NewParcelRepo creates a new parcel repository.
func NewParcelRepo(db *gorm.DB) *ParcelRepo {
	return &ParcelRepo{db: db}
}

var _ parcel.Repository = (*ParcelRepo)(nil)

func (r *ParcelRepo) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*parcel.Parcel, error) {
	var row parcelRow
	err := conn(ctx, r.db).Where("tracking_number = ?", trackingNumber).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NewNotFound("parcel", trackingNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("find parcel: %w", err)
	}
	return row.toDomain()
}

func (r *ParcelRepo) ExistsByTrackingNumber(ctx context.Context, trackingNumber string) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&parcelRow{}).Where("tracking_number = ?", trackingNumber).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check parcel existence: %w", err)
	}
	return n > 0, nil
}

func (r *ParcelRepo) AllTrackingNumbers(ctx context.Context) (map[string]struct{}, error) {
	var tns []string
	if err := conn(ctx, r.db).Model(&parcelRow{}).Pluck("tracking_number", &tns).Error; err != nil {
		return nil, fmt.Errorf("load tracking numbers: %w", err)
	}
	set := make(map[string]struct{}, len(tns))
	for _, tn := range tns {
		set[tn] = struct{}{}
	}
	return set, nil
}

func (r *ParcelRepo) InsertBatch(ctx context.Context, parcels []*parcel.Parcel) (int64, error) {
	if len(parcels) == 0 {
		return 0, nil
	}
	rows := make([]parcelRow, 0, len(parcels))
	for _, p := range parcels {
		rows = append(rows, parcelRowFrom(p))
	}

	res := conn(ctx, r.db).CreateInBatches(rows, insertBatchSize)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return 0, apperror.NewConcurrentModification("parcel", "batch").WithCause(res.Error)
		}
		return 0, fmt.Errorf("insert parcels: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *ParcelRepo) Update(ctx context.Context, p *parcel.Parcel) error {
	res := conn(ctx, r.db).Model(&parcelRow{}).
		Where("id = ? AND version = ?", p.ID.String(), p.Version).
		Updates(map[string]any{
			"zone_code":    p.ZoneCode,
			"route_number": p.RouteNumber,
			"status":       string(p.Status),
			"scanned_at":   p.ScannedAt,
			"scanned_by":   p.ScannedBy,
			"updated_at":   p.UpdatedAt,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("update parcel: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NewConcurrentModification("parcel", p.TrackingNumber)
	}
	p.Version++
	return nil
}

func (r *ParcelRepo) ListByStatus(ctx context.Context, status parcel.Status) ([]*parcel.Parcel, error) {
	var rows []parcelRow
	err := conn(ctx, r.db).
		Where("status = ?", string(status)).
		Order("created_at, tracking_number").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}

	out := make([]*parcel.Parcel, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *ParcelRepo) DeleteAll(ctx context.Context) (int64, error) {
	res := conn(ctx, r.db).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&parcelRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete parcels: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func parcelRowFrom(p *parcel.Parcel) parcelRow {
	return parcelRow{
		ID:             p.ID.String(),
		TrackingNumber: p.TrackingNumber,
		ZoneCode:       p.ZoneCode,
		RouteNumber:    p.RouteNumber,
		Status:         string(p.Status),
		ScannedAt:      p.ScannedAt,
		ScannedBy:      p.ScannedBy,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		Version:        p.Version,
	}
}

func (row *parcelRow) toDomain() (*parcel.Parcel, error) {
	pid, err := id.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse parcel id %q: %w", row.ID, err)
	}
	return &parcel.Parcel{
		ID:             pid,
		TrackingNumber: row.TrackingNumber,
		ZoneCode:       row.ZoneCode,
		RouteNumber:    row.RouteNumber,
		Status:         parcel.Status(row.Status),
		ScannedAt:      utcPtr(row.ScannedAt),
		ScannedBy:      row.ScannedBy,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
		Version:        row.Version,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
