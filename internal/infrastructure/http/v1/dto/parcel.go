package dto

import (
	"time"

	"parcelsort/internal/domain/parcel"
)

// ParcelResponse contains parcel fields.
type ParcelResponse struct {
	ID             string     `json:"id"`
	TrackingNumber string     `json:"trackingNumber"`
	ZoneCode       string     `json:"zoneCode"`
	RouteNumber    string     `json:"routeNumber"`
	Status         string     `json:"status"`
	ScannedAt      *time.Time `json:"scannedAt,omitempty"`
	ScannedBy      *string    `json:"scannedBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Version        int64      `json:"version"`
}

// FromParcel creates ParcelResponse from parcel.Parcel.
func FromParcel(p *parcel.Parcel) ParcelResponse {
	return ParcelResponse{
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

// FromParcels maps a slice of parcels.
func FromParcels(ps []*parcel.Parcel) []ParcelResponse {
	out := make([]ParcelResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, FromParcel(p))
	}
	return out
}

// ImportResponse is returned by the upload endpoint.
type ImportResponse struct {
	FileName string `json:"fileName"`
	parcel.ImportReport
}

// ScanResponse is returned by the scan endpoint.
type ScanResponse struct {
	TrackingNumber string     `json:"trackingNumber"`
	Outcome        string     `json:"outcome"`
	Message        string     `json:"message"`
	RouteNumber    string     `json:"routeNumber,omitempty"`
	ScannedAt      *time.Time `json:"scannedAt,omitempty"`
	ScannedBy      string     `json:"scannedBy,omitempty"`
}

// FromScanResult creates ScanResponse from parcel.ScanResult.
func FromScanResult(trackingNumber string, r parcel.ScanResult) ScanResponse {
	return ScanResponse{
		TrackingNumber: trackingNumber,
		Outcome:        string(r.Outcome),
		Message:        r.Message,
		RouteNumber:    r.RouteNumber,
		ScannedAt:      r.ScannedAt,
		ScannedBy:      r.ScannedBy,
	}
}

// BatchResponse describes an archived import.
type BatchResponse struct {
	ID         string              `json:"id"`
	FileName   string              `json:"fileName"`
	Checksum   string              `json:"checksum"`
	ImportedBy string              `json:"importedBy"`
	CreatedAt  time.Time           `json:"createdAt"`
	Report     parcel.ImportReport `json:"report"`
}

// FromBatches maps archived imports.
func FromBatches(bs []parcel.ImportBatch) []BatchResponse {
	out := make([]BatchResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, BatchResponse{
			ID:         b.ID.String(),
			FileName:   b.FileName,
			Checksum:   b.Checksum,
			ImportedBy: b.ImportedBy,
			CreatedAt:  b.CreatedAt,
			Report:     b.Report,
		})
	}
	return out
}
