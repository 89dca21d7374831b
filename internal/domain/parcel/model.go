// Package parcel holds the parcel lifecycle: manifest import and scan-in.
package parcel

import (
	"time"

	"parcelsort/internal/core/id"
)

// Status is the sorting state of a parcel. It only moves forward.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusScanned   Status = "SCANNED"
	StatusDelivered Status = "DELIVERED"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusScanned, StatusDelivered:
		return st, true
	}
	return "", false
}

// Parcel is a stored shipment.
type Parcel struct {
	ID id.ID `db:"id" json:"id"`

	// TrackingNumber is unique and immutable after import.
	TrackingNumber string `db:"tracking_number" json:"trackingNumber"`
	ZoneCode       string `db:"zone_code" json:"zoneCode"`
	RouteNumber    string `db:"route_number" json:"routeNumber"`
	Status         Status `db:"status" json:"status"`

	// ScannedAt and ScannedBy are set together on the first scan and never again.
	ScannedAt *time.Time `db:"scanned_at" json:"scannedAt,omitempty"`
	ScannedBy *string    `db:"scanned_by" json:"scannedBy,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	// Version for optimistic locking (incremented by storage on each update)
	Version int64 `db:"version" json:"version"`
}

// NewParcel builds a PENDING parcel from an accepted manifest record.
func NewParcel(rec Record, now time.Time) *Parcel {
	return &Parcel{
		ID:             id.New(),
		TrackingNumber: rec.TrackingNumber,
		ZoneCode:       rec.ZoneCode,
		RouteNumber:    rec.RouteNumber,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
}

// markScanned applies the PENDING -> SCANNED transition in memory.
func (p *Parcel) markScanned(actor string, at time.Time) {
	p.Status = StatusScanned
	p.ScannedAt = &at
	p.ScannedBy = &actor
	p.UpdatedAt = at
}

// ImportReport summarises one import. The four outcome counters partition TotalRows.
type ImportReport struct {
	TotalRows        int `json:"totalRows"`
	Imported         int `json:"imported"`
	DuplicatesInFile int `json:"duplicatesInFile"`
	DuplicatesInDB   int `json:"duplicatesInDb"`
	InvalidRows      int `json:"invalidRows"`
}

// ImportBatch is the archived record of one uploaded manifest.
type ImportBatch struct {
	ID         id.ID        `json:"id"`
	FileName   string       `json:"fileName"`
	Checksum   string       `json:"checksum"`
	Report     ImportReport `json:"report"`
	ImportedBy string       `json:"importedBy"`
	CreatedAt  time.Time    `json:"createdAt"`

	// Content is the raw manifest. Listings leave it empty.
	Content []byte `json:"-"`
}
