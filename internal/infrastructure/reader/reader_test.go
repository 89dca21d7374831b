package reader

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/domain/parcel"
	"parcelsort/pkg/logger"
)

func TestKindFor(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     Kind
		wantErr  bool
	}{
		{"xlsx", "manifest.xlsx", KindSpreadsheet, false},
		{"upper case suffix", "MANIFEST.XLSX", KindSpreadsheet, false},
		{"legacy xls", "old.xls", KindLegacySpreadsheet, false},
		{"text", "route-7.txt", KindText, false},
		{"csv unsupported", "manifest.csv", 0, true},
		{"no suffix", "manifest", 0, true},
		{"empty name", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KindFor(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, apperror.CodeUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRead_Text(t *testing.T) {
	input := "JD001 01-01 101\n" +
		"\n" +
		"   JD002\t01-02    102 fragile\n" +
		"JD003 01-03\n" +
		"JD004 02-01 201\n"

	records, err := New(logger.NewNop()).Read(context.Background(), "batch.txt", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []parcel.Record{
		{TrackingNumber: "JD001", ZoneCode: "01-01", RouteNumber: "101"},
		{TrackingNumber: "JD002", ZoneCode: "01-02", RouteNumber: "102"},
		{TrackingNumber: "JD004", ZoneCode: "02-01", RouteNumber: "201"},
	}, records)
}

func TestRead_TextStripsByteOrderMark(t *testing.T) {
	records, err := New(nil).Read(context.Background(), "bom.txt", strings.NewReader("\ufeffJD001 01-01 101\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "JD001", records[0].TrackingNumber)
}

func TestRead_UnsupportedFormatBeforeParsing(t *testing.T) {
	_, err := New(logger.NewNop()).Read(context.Background(), "manifest.csv", strings.NewReader("JD001,01-01,101"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnsupportedFormat))
}

func TestRead_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	rows := [][]any{
		{"Tracking", "Zone", "Route"},
		{"JD001", "01-01", 101},
		{"JD002", "", 102},
		{123456789, "01-02", "102"},
		{"JD003", "01-03", 3.0},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	records, err := New(logger.NewNop()).Read(context.Background(), "manifest.xlsx", &buf)
	require.NoError(t, err)

	assert.Equal(t, []parcel.Record{
		{TrackingNumber: "JD001", ZoneCode: "01-01", RouteNumber: "101"},
		{TrackingNumber: "123456789", ZoneCode: "01-02", RouteNumber: "102"},
		{TrackingNumber: "JD003", ZoneCode: "01-03", RouteNumber: "3"},
	}, records)
}

func TestRead_XLS(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "manifest.xls"))
	require.NoError(t, err)
	defer f.Close()

	records, err := New(logger.NewNop()).Read(context.Background(), "manifest.xls", f)
	require.NoError(t, err)

	// Row 3 has no zone and is skipped.
	assert.Equal(t, []parcel.Record{
		{TrackingNumber: "JD001", ZoneCode: "01-01", RouteNumber: "101"},
		{TrackingNumber: "123456789", ZoneCode: "01-02", RouteNumber: "102"},
		{TrackingNumber: "JD003", ZoneCode: "01-03", RouteNumber: "103"},
	}, records)
}

func TestRead_CorruptSpreadsheetIsReadFailure(t *testing.T) {
	for _, name := range []string{"broken.xlsx", "broken.xls"} {
		t.Run(name, func(t *testing.T) {
			records, err := New(logger.NewNop()).Read(context.Background(), name, strings.NewReader("definitely not a workbook"))
			require.Error(t, err)
			assert.Nil(t, records)
			assert.True(t, apperror.HasCode(err, apperror.CodeReadFailure))
		})
	}
}

func TestIntegerForm(t *testing.T) {
	assert.Equal(t, "101", integerForm("101.0"))
	assert.Equal(t, "101", integerForm("1.01E2"))
	assert.Equal(t, "0101", integerForm("0101"))
	assert.Equal(t, "01-01", integerForm("01-01"))
	assert.Equal(t, "1", integerForm("1.5"))
	assert.Equal(t, "101", integerForm("101.5"))
	assert.Equal(t, "-3", integerForm("-3.9"))
	assert.Equal(t, "JD.001", integerForm("JD.001"))
}
