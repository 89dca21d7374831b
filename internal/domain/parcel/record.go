package parcel

import (
	"regexp"
	"strings"
)

var (
	zoneCodePattern    = regexp.MustCompile(`^\d{2}-\d{2}$`)
	routeNumberPattern = regexp.MustCompile(`^\d{3}$`)
)

// MaxTrackingNumberLen matches the tracking_number column width.
const MaxTrackingNumberLen = 40

// Record is one flat manifest line as produced by a reader.
// It is comparable; equality over all three fields defines an in-file duplicate.
type Record struct {
	TrackingNumber string
	ZoneCode       string
	RouteNumber    string
}

// Valid checks the record shape: NN-NN zone, NNN route, non-empty tracking number.
func (r Record) Valid() bool {
	tn := strings.TrimSpace(r.TrackingNumber)
	if tn == "" || tn != r.TrackingNumber || len(tn) > MaxTrackingNumberLen {
		return false
	}
	return zoneCodePattern.MatchString(r.ZoneCode) && routeNumberPattern.MatchString(r.RouteNumber)
}
