// Package reader turns uploaded manifest files into parcel records.
// It never touches storage.
package reader

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/domain/parcel"
	"parcelsort/pkg/logger"
)

// Kind is the closed set of supported manifest formats.
type Kind int

const (
	KindSpreadsheet Kind = iota + 1
	KindLegacySpreadsheet
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindSpreadsheet:
		return "xlsx"
	case KindLegacySpreadsheet:
		return "xls"
	case KindText:
		return "txt"
	}
	return "unknown"
}

// KindFor selects the format from the file name suffix, case-insensitively.
func KindFor(filename string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".xlsx":
		return KindSpreadsheet, nil
	case ".xls":
		return KindLegacySpreadsheet, nil
	case ".txt":
		return KindText, nil
	}
	return 0, apperror.NewUnsupportedFormat(filename)
}

// Reader implements parcel.RecordReader.
type Reader struct {
	log *logger.Logger
}

// New creates a Reader. A nil logger falls back to the context logger.
func New(log *logger.Logger) *Reader {
	return &Reader{log: log}
}

var _ parcel.RecordReader = (*Reader)(nil)

// Read parses the whole file. Any I/O or structural failure is a ReadFailure
// and no records are returned.
func (r *Reader) Read(ctx context.Context, filename string, src io.Reader) ([]parcel.Record, error) {
	kind, err := KindFor(filename)
	if err != nil {
		return nil, err
	}

	log := r.logger(ctx).With("file", filename, "format", kind.String())

	var records []parcel.Record
	switch kind {
	case KindSpreadsheet:
		records, err = readXLSX(src, log)
	case KindLegacySpreadsheet:
		records, err = readXLS(src, log)
	case KindText:
		records, err = readText(src, log)
	}
	if err != nil {
		return nil, apperror.NewReadFailure(filename, err)
	}

	log.Debugw("manifest parsed", "records", len(records))
	return records, nil
}

func (r *Reader) logger(ctx context.Context) *logger.Logger {
	if r.log != nil {
		return r.log.WithContext(ctx).WithComponent("reader")
	}
	return logger.FromContext(ctx).WithComponent("reader")
}

// recordFromCells builds a record from the first three cells. ok is false
// when any of them is blank after trimming.
func recordFromCells(cells []string) (parcel.Record, bool) {
	if len(cells) < 3 {
		return parcel.Record{}, false
	}
	tn := strings.TrimSpace(cells[0])
	zone := strings.TrimSpace(cells[1])
	route := strings.TrimSpace(cells[2])
	if tn == "" || zone == "" || route == "" {
		return parcel.Record{}, false
	}
	return parcel.Record{TrackingNumber: tn, ZoneCode: zone, RouteNumber: route}, true
}
