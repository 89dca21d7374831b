package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/core/id"
	"parcelsort/internal/domain/parcel"
	"parcelsort/internal/infrastructure/archive"
)

// BatchRepo implements parcel.BatchRepository. Content is stored through the codec.
type BatchRepo struct {
	db    *gorm.DB
	codec *archive.Codec
}

// NewBatchRepo creates a new import batch repository.
func NewBatchRepo(db *gorm.DB, codec *archive.Codec) *BatchRepo {
	return &BatchRepo{db: db, codec: codec}
}

var _ parcel.BatchRepository = (*BatchRepo)(nil)

func (r *BatchRepo) Save(ctx context.Context, b *parcel.ImportBatch) error {
	content, algo := r.codec.Encode(b.Content)
	row := importBatchRow{
		ID:               b.ID.String(),
		FileName:         b.FileName,
		Checksum:         b.Checksum,
		TotalRows:        b.Report.TotalRows,
		Imported:         b.Report.Imported,
		DuplicatesInFile: b.Report.DuplicatesInFile,
		DuplicatesInDB:   b.Report.DuplicatesInDB,
		InvalidRows:      b.Report.InvalidRows,
		ImportedBy:       b.ImportedBy,
		CreatedAt:        b.CreatedAt,
		Content:          content,
		ContentAlgo:      string(algo),
	}
	if err := conn(ctx, r.db).Create(&row).Error; err != nil {
		return fmt.Errorf("insert import batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) List(ctx context.Context, limit int) ([]parcel.ImportBatch, error) {
	var rows []importBatchRow
	err := conn(ctx, r.db).
		Omit("content").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list import batches: %w", err)
	}

	out := make([]parcel.ImportBatch, 0, len(rows))
	for i := range rows {
		b, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r *BatchRepo) Get(ctx context.Context, batchID string) (*parcel.ImportBatch, error) {
	var row importBatchRow
	err := conn(ctx, r.db).Where("id = ?", batchID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NewNotFound("import batch", batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("get import batch: %w", err)
	}

	b, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	if b.Content, err = r.codec.Decode(row.Content, archive.Algo(row.ContentAlgo)); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BatchRepo) DeleteAll(ctx context.Context) (int64, error) {
	res := conn(ctx, r.db).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&importBatchRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete import batches: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (row *importBatchRow) toDomain() (*parcel.ImportBatch, error) {
	bid, err := id.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse batch id %q: %w", row.ID, err)
	}
	return &parcel.ImportBatch{
		ID:       bid,
		FileName: row.FileName,
		Checksum: row.Checksum,
		Report: parcel.ImportReport{
			TotalRows:        row.TotalRows,
			Imported:         row.Imported,
			DuplicatesInFile: row.DuplicatesInFile,
			DuplicatesInDB:   row.DuplicatesInDB,
			InvalidRows:      row.InvalidRows,
		},
		ImportedBy: row.ImportedBy,
		CreatedAt:  row.CreatedAt.UTC(),
	}, nil
}
