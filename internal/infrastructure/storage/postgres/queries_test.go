package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelsort/internal/domain/audit"
	"parcelsort/internal/domain/parcel"
)

const parcelSelect = "SELECT id, tracking_number, zone_code, route_number, status, scanned_at, scanned_by, created_at, updated_at, version FROM parcels"

func TestFindParcelQuery(t *testing.T) {
	sql, args, err := findParcelQuery("JD001").ToSql()
	require.NoError(t, err)

	assert.Equal(t, parcelSelect+" WHERE tracking_number = $1 LIMIT 1", sql)
	assert.Equal(t, []any{"JD001"}, args)
}

func TestUpdateParcelQuery_GuardsVersion(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	p := parcel.NewParcel(parcel.Record{TrackingNumber: "JD001", ZoneCode: "01-01", RouteNumber: "101"}, now)
	p.Version = 3

	sql, args, err := updateParcelQuery(p).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE parcels SET zone_code = $1, route_number = $2, status = $3, scanned_at = $4, "+
		"scanned_by = $5, updated_at = $6, version = version + 1 WHERE id = $7 AND version = $8", sql)
	require.Len(t, args, 8)
	assert.Equal(t, p.ID, args[6])
	assert.Equal(t, int64(3), args[7])
}

func TestListParcelsQuery(t *testing.T) {
	sql, args, err := listParcelsQuery(parcel.StatusPending).ToSql()
	require.NoError(t, err)

	assert.Equal(t, parcelSelect+" WHERE status = $1 ORDER BY created_at, tracking_number", sql)
	assert.Equal(t, []any{parcel.StatusPending}, args)
}

func TestListAuditQuery_Filters(t *testing.T) {
	const base = "SELECT id, tracking_number, event_type, scanned_by, scanned_at, session_id, message FROM audit_events"

	tests := []struct {
		name     string
		filter   audit.Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "all",
			filter:  audit.Filter{},
			wantSQL: base + " ORDER BY id",
		},
		{
			name:     "session",
			filter:   audit.Filter{SessionID: "S1"},
			wantSQL:  base + " WHERE session_id = $1 ORDER BY id",
			wantArgs: []any{"S1"},
		},
		{
			name:     "parcel",
			filter:   audit.Filter{TrackingNumber: "JD001"},
			wantSQL:  base + " WHERE tracking_number = $1 ORDER BY id",
			wantArgs: []any{"JD001"},
		},
		{
			name:     "both",
			filter:   audit.Filter{SessionID: "S1", TrackingNumber: "JD001"},
			wantSQL:  base + " WHERE session_id = $1 AND tracking_number = $2 ORDER BY id",
			wantArgs: []any{"S1", "JD001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := listAuditQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Len(t, args, len(tt.wantArgs))
			for i := range tt.wantArgs {
				assert.Equal(t, tt.wantArgs[i], args[i])
			}
		})
	}
}

func TestInsertAuditQuery_ReturnsID(t *testing.T) {
	e := audit.NewScanned("JD001", "alice", "S1", time.Now())

	sql, args, err := insertAuditQuery(&e).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO audit_events"))
	assert.True(t, strings.HasSuffix(sql, "RETURNING id"))
	assert.Len(t, args, 6)
}

func TestListBatchesQuery_OmitsContent(t *testing.T) {
	sql, _, err := listBatchesQuery(20).ToSql()
	require.NoError(t, err)

	assert.NotContains(t, sql, "content")
	assert.True(t, strings.HasSuffix(sql, "FROM import_batches ORDER BY created_at DESC, id DESC LIMIT 20"))
}
