package audit

import "context"

// Repository persists audit events. Implementations expose no update path.
type Repository interface {
	// Insert appends e and fills e.ID.
	Insert(ctx context.Context, e *Event) error

	// List returns events matching f ordered by insertion.
	List(ctx context.Context, f Filter) ([]Event, error)

	// DeleteAll wipes the trail. Reserved for the administrative reset,
	// which must call it inside the same transaction that clears parcels.
	DeleteAll(ctx context.Context) (int64, error)
}
