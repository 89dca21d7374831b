package parcel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rec(tn, zone, route string) Record {
	return Record{TrackingNumber: tn, ZoneCode: zone, RouteNumber: route}
}

func assertPartition(t *testing.T, r ImportReport, imported int) {
	t.Helper()
	assert.Equal(t, r.TotalRows, imported+r.DuplicatesInFile+r.DuplicatesInDB+r.InvalidRows)
}

func TestPlanImport_Classification(t *testing.T) {
	records := []Record{
		rec("JD001", "01-01", "101"),
		rec("JD001", "01-01", "101"), // same line again
		rec("JD002", "1-01", "102"),  // bad zone
		rec("JD003", "01-03", "10"),  // bad route
		rec("JD004", "01-04", "104"), // already stored
		rec("JD005", "01-05", "105"),
		rec("JD005", "02-05", "205"), // same tracking number, different tuple
	}
	existing := map[string]struct{}{"JD004": {}}

	accepted, report := planImport(records, existing)

	assert.Equal(t, []Record{rec("JD001", "01-01", "101"), rec("JD005", "01-05", "105")}, accepted)
	assert.Equal(t, ImportReport{
		TotalRows:        7,
		DuplicatesInFile: 1,
		DuplicatesInDB:   2,
		InvalidRows:      2,
	}, report)
	assertPartition(t, report, len(accepted))
}

func TestPlanImport_InvalidDuplicatesCountAsInvalid(t *testing.T) {
	records := []Record{rec("JD001", "bad", "101"), rec("JD001", "bad", "101")}

	accepted, report := planImport(records, nil)

	assert.Empty(t, accepted)
	assert.Equal(t, 2, report.InvalidRows)
	assert.Zero(t, report.DuplicatesInFile)
	assertPartition(t, report, 0)
}

func TestPlanImport_Empty(t *testing.T) {
	accepted, report := planImport(nil, map[string]struct{}{})

	assert.Empty(t, accepted)
	assert.Equal(t, ImportReport{}, report)
}

func TestRecord_Valid(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{"ok", rec("JD001", "01-01", "101"), true},
		{"blank tracking", rec("  ", "01-01", "101"), false},
		{"padded tracking", rec(" JD001", "01-01", "101"), false},
		{"tracking too long", rec("JD0000000000000000000000000000000000000001", "01-01", "101"), false},
		{"zone letters", rec("JD001", "AA-01", "101"), false},
		{"zone no dash", rec("JD001", "0101", "101"), false},
		{"route four digits", rec("JD001", "01-01", "1010"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Valid())
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus("SCANNED")
	assert.True(t, ok)
	assert.Equal(t, StatusScanned, st)

	_, ok = ParseStatus("scanned")
	assert.False(t, ok)
}
