package parcel

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"parcelsort/internal/core/apperror"
	appctx "parcelsort/internal/core/context"
	"parcelsort/internal/core/id"
	"parcelsort/pkg/logger"
)

// SystemActor is recorded as ImportedBy when the context carries no actor.
const SystemActor = "system"

// DefaultBatchListLimit caps Batches when the caller passes no limit.
const DefaultBatchListLimit = 50

// Importer runs the manifest import pipeline.
type Importer struct {
	svc *Service
}

// Import validates and deduplicates records, then stores the survivors as
// PENDING parcels. The whole import is one transaction.
func (im *Importer) Import(ctx context.Context, records []Record) (ImportReport, error) {
	var report ImportReport
	err := im.svc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		report, err = im.importTx(ctx, records)
		return err
	})
	if err != nil {
		return ImportReport{}, normalizeStorageErr("import parcels", err)
	}

	logImport(ctx, "", report)
	return report, nil
}

func logImport(ctx context.Context, filename string, report ImportReport) {
	fields := []any{
		"total_rows", report.TotalRows,
		"imported", report.Imported,
		"duplicates_in_file", report.DuplicatesInFile,
		"duplicates_in_db", report.DuplicatesInDB,
		"invalid_rows", report.InvalidRows,
	}
	if filename != "" {
		fields = append(fields, "file", filename)
	}
	logger.Info(ctx, "parcel import finished", fields...)
}

func (im *Importer) importTx(ctx context.Context, records []Record) (ImportReport, error) {
	existing, err := im.svc.parcels.AllTrackingNumbers(ctx)
	if err != nil {
		return ImportReport{}, fmt.Errorf("load tracking numbers: %w", err)
	}

	accepted, report := planImport(records, existing)
	if len(accepted) == 0 {
		return report, nil
	}

	now := im.svc.now()
	parcels := make([]*Parcel, 0, len(accepted))
	for _, rec := range accepted {
		parcels = append(parcels, NewParcel(rec, now))
	}

	n, err := im.svc.parcels.InsertBatch(ctx, parcels)
	if err != nil {
		return ImportReport{}, fmt.Errorf("insert parcels: %w", err)
	}
	if int(n) != len(parcels) {
		return ImportReport{}, apperror.NewInternal(
			fmt.Errorf("insert parcels: stored %d of %d rows", n, len(parcels)))
	}
	report.Imported = int(n)
	return report, nil
}

// planImport classifies every record exactly once. Records that pass shape
// validation are deduplicated on the whole tuple first, then on tracking
// number against existing. existing is extended with each accepted record.
func planImport(records []Record, existing map[string]struct{}) ([]Record, ImportReport) {
	report := ImportReport{TotalRows: len(records)}
	if existing == nil {
		existing = make(map[string]struct{})
	}

	seen := make(map[Record]struct{}, len(records))
	accepted := make([]Record, 0, len(records))
	for _, rec := range records {
		if !rec.Valid() {
			report.InvalidRows++
			continue
		}
		if _, dup := seen[rec]; dup {
			report.DuplicatesInFile++
			continue
		}
		seen[rec] = struct{}{}

		if _, stored := existing[rec.TrackingNumber]; stored {
			report.DuplicatesInDB++
			continue
		}
		existing[rec.TrackingNumber] = struct{}{}
		accepted = append(accepted, rec)
	}
	return accepted, report
}

// ImportFile reads an uploaded manifest, imports it and archives the upload
// together with its report in the same transaction.
func (im *Importer) ImportFile(ctx context.Context, filename string, r io.Reader) (ImportReport, error) {
	if im.svc.reader == nil {
		return ImportReport{}, apperror.NewInternal(fmt.Errorf("import file: no record reader configured"))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return ImportReport{}, apperror.NewReadFailure(filename, err)
	}

	records, err := im.svc.reader.Read(ctx, filename, bytes.NewReader(data))
	if err != nil {
		return ImportReport{}, err
	}

	sum := sha256.Sum256(data)
	importedBy := appctx.GetActorID(ctx)
	if importedBy == "" {
		importedBy = SystemActor
	}

	var report ImportReport
	err = im.svc.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if report, err = im.importTx(ctx, records); err != nil {
			return err
		}

		batch := &ImportBatch{
			ID:         id.New(),
			FileName:   filename,
			Checksum:   hex.EncodeToString(sum[:]),
			Report:     report,
			ImportedBy: importedBy,
			CreatedAt:  im.svc.now(),
			Content:    data,
		}
		if err := im.svc.batches.Save(ctx, batch); err != nil {
			return fmt.Errorf("save import batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, normalizeStorageErr("import file", err)
	}

	logImport(ctx, filename, report)
	return report, nil
}

// Batches lists archived imports, newest first.
func (im *Importer) Batches(ctx context.Context, limit int) ([]ImportBatch, error) {
	if limit <= 0 {
		limit = DefaultBatchListLimit
	}
	batches, err := im.svc.batches.List(ctx, limit)
	if err != nil {
		return nil, normalizeStorageErr("list import batches", err)
	}
	if batches == nil {
		batches = []ImportBatch{}
	}
	return batches, nil
}

// Batch returns one archived import including its manifest content.
func (im *Importer) Batch(ctx context.Context, batchID string) (*ImportBatch, error) {
	b, err := im.svc.batches.Get(ctx, batchID)
	if err != nil {
		return nil, normalizeStorageErr("get import batch", err)
	}
	return b, nil
}
