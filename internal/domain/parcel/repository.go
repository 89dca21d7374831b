package parcel

import "context"

// Repository defines parcel persistence. Every method joins the transaction
// carried by ctx, if any.
type Repository interface {
	// FindByTrackingNumber returns apperror NotFound when no parcel matches.
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*Parcel, error)

	ExistsByTrackingNumber(ctx context.Context, trackingNumber string) (bool, error)

	// AllTrackingNumbers loads every stored tracking number in one query.
	AllTrackingNumbers(ctx context.Context) (map[string]struct{}, error)

	// InsertBatch stores all parcels or none. A tracking number that already
	// exists fails the batch with apperror CONCURRENT_MODIFICATION.
	InsertBatch(ctx context.Context, parcels []*Parcel) (int64, error)

	// Update writes p if the stored version still equals p.Version, then
	// advances p.Version. A stale version yields CONCURRENT_MODIFICATION.
	Update(ctx context.Context, p *Parcel) error

	ListByStatus(ctx context.Context, status Status) ([]*Parcel, error)

	DeleteAll(ctx context.Context) (int64, error)
}

// BatchRepository archives uploaded manifests.
type BatchRepository interface {
	Save(ctx context.Context, b *ImportBatch) error

	// List returns the newest batches first, without content.
	List(ctx context.Context, limit int) ([]ImportBatch, error)

	// Get returns one batch including its decoded content.
	Get(ctx context.Context, batchID string) (*ImportBatch, error)

	DeleteAll(ctx context.Context) (int64, error)
}
