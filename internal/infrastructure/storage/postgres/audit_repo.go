package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"parcelsort/internal/domain/audit"
)

const auditTable = "audit_events"

var auditColumns = ExtractDBColumns[audit.Event]()

// AuditRepo implements audit.Repository. Rows are never updated.
type AuditRepo struct {
	txManager *TxManager
}

// NewAuditRepo creates a new audit repository.
func NewAuditRepo(txManager *TxManager) *AuditRepo {
	return &AuditRepo{txManager: txManager}
}

var _ audit.Repository = (*AuditRepo)(nil)

func (r *AuditRepo) Insert(ctx context.Context, e *audit.Event) error {
	sql, args, err := insertAuditQuery(e).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	sql, args, err := listAuditQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var events []audit.Event
	err = r.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		return pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &events, sql, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

func (r *AuditRepo) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.txManager, auditTable)
}

func insertAuditQuery(e *audit.Event) squirrel.InsertBuilder {
	return builder().
		Insert(auditTable).
		Columns("tracking_number", "event_type", "scanned_by", "scanned_at", "session_id", "message").
		Values(e.TrackingNumber, e.EventType, e.ScannedBy, e.ScannedAt, e.SessionID, e.Message).
		Suffix("RETURNING id")
}

func listAuditQuery(f audit.Filter) squirrel.SelectBuilder {
	q := builder().Select(auditColumns...).From(auditTable)
	if f.SessionID != "" {
		q = q.Where(squirrel.Eq{"session_id": f.SessionID})
	}
	if f.TrackingNumber != "" {
		q = q.Where(squirrel.Eq{"tracking_number": f.TrackingNumber})
	}
	return q.OrderBy("id")
}
