package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/domain/parcel"
)

const parcelsTable = "parcels"

var parcelColumns = ExtractDBColumns[parcel.Parcel]()

// builder returns a squirrel builder with PostgreSQL placeholders.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// ParcelRepo implements parcel.Repository.
type ParcelRepo struct {
	txManager *TxManager
	inserter  *BatchInserter
}

// NewParcelRepo creates a new parcel repository.
func NewParcelRepo(txManager *TxManager) *ParcelRepo {
	return &ParcelRepo{
		txManager: txManager,
		inserter:  NewBatchInserter(txManager),
	}
}

var _ parcel.Repository = (*ParcelRepo)(nil)

func (r *ParcelRepo) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*parcel.Parcel, error) {
	sql, args, err := findParcelQuery(trackingNumber).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p parcel.Parcel
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("parcel", trackingNumber)
		}
		return nil, fmt.Errorf("find parcel: %w", err)
	}
	return &p, nil
}

func (r *ParcelRepo) ExistsByTrackingNumber(ctx context.Context, trackingNumber string) (bool, error) {
	sql, args, err := builder().
		Select("1").
		From(parcelsTable).
		Where(squirrel.Eq{"tracking_number": trackingNumber}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check parcel existence: %w", err)
	}
	return exists, nil
}

func (r *ParcelRepo) AllTrackingNumbers(ctx context.Context) (map[string]struct{}, error) {
	sql, args, err := builder().Select("tracking_number").From(parcelsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var tns []string
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &tns, sql, args...); err != nil {
		return nil, fmt.Errorf("load tracking numbers: %w", err)
	}

	set := make(map[string]struct{}, len(tns))
	for _, tn := range tns {
		set[tn] = struct{}{}
	}
	return set, nil
}

// InsertBatch copies all parcels in one COPY. Outside a transaction it opens one.
func (r *ParcelRepo) InsertBatch(ctx context.Context, parcels []*parcel.Parcel) (int64, error) {
	if len(parcels) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(parcels))
	for _, p := range parcels {
		rows = append(rows, RowValues(p, parcelColumns))
	}

	var n int64
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = r.inserter.CopyFromSlice(ctx, parcelsTable, parcelColumns, rows)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperror.NewConcurrentModification("parcel", "batch").WithCause(err)
		}
		return 0, fmt.Errorf("copy parcels: %w", err)
	}
	return n, nil
}

func (r *ParcelRepo) Update(ctx context.Context, p *parcel.Parcel) error {
	sql, args, err := updateParcelQuery(p).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update parcel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("parcel", p.TrackingNumber)
	}

	p.Version++
	return nil
}

func (r *ParcelRepo) ListByStatus(ctx context.Context, status parcel.Status) ([]*parcel.Parcel, error) {
	sql, args, err := listParcelsQuery(status).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var parcels []*parcel.Parcel
	err = r.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		return pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &parcels, sql, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}
	return parcels, nil
}

func (r *ParcelRepo) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.txManager, parcelsTable)
}

func findParcelQuery(trackingNumber string) squirrel.SelectBuilder {
	return builder().
		Select(parcelColumns...).
		From(parcelsTable).
		Where(squirrel.Eq{"tracking_number": trackingNumber}).
		Limit(1)
}

// updateParcelQuery writes the mutable columns guarded by the expected version.
func updateParcelQuery(p *parcel.Parcel) squirrel.UpdateBuilder {
	return builder().
		Update(parcelsTable).
		Set("zone_code", p.ZoneCode).
		Set("route_number", p.RouteNumber).
		Set("status", p.Status).
		Set("scanned_at", p.ScannedAt).
		Set("scanned_by", p.ScannedBy).
		Set("updated_at", p.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": p.ID}).
		Where(squirrel.Eq{"version": p.Version})
}

func listParcelsQuery(status parcel.Status) squirrel.SelectBuilder {
	return builder().
		Select(parcelColumns...).
		From(parcelsTable).
		Where(squirrel.Eq{"status": status}).
		OrderBy("created_at", "tracking_number")
}

func deleteAll(ctx context.Context, txManager *TxManager, table string) (int64, error) {
	sql, args, err := builder().Delete(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	result, err := txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return result.RowsAffected(), nil
}
