package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"parcelsort/internal/core/apperror"
	"parcelsort/internal/core/id"
	"parcelsort/internal/domain/parcel"
	"parcelsort/internal/infrastructure/archive"
)

const batchesTable = "import_batches"

type importBatchRow struct {
	ID               id.ID     `db:"id"`
	FileName         string    `db:"file_name"`
	Checksum         string    `db:"checksum"`
	TotalRows        int       `db:"total_rows"`
	Imported         int       `db:"imported"`
	DuplicatesInFile int       `db:"duplicates_in_file"`
	DuplicatesInDB   int       `db:"duplicates_in_db"`
	InvalidRows      int       `db:"invalid_rows"`
	ImportedBy       string    `db:"imported_by"`
	CreatedAt        time.Time `db:"created_at"`
	Content          []byte    `db:"content"`
	ContentAlgo      string    `db:"content_algo"`
}

var (
	batchColumns        = ExtractDBColumns[importBatchRow]()
	batchSummaryColumns = batchColumns[:len(batchColumns)-2]
)

// BatchRepo implements parcel.BatchRepository. Content is stored through the codec.
type BatchRepo struct {
	txManager *TxManager
	codec     *archive.Codec
}

// NewBatchRepo creates a new import batch repository.
func NewBatchRepo(txManager *TxManager, codec *archive.Codec) *BatchRepo {
	return &BatchRepo{txManager: txManager, codec: codec}
}

var _ parcel.BatchRepository = (*BatchRepo)(nil)

func (r *BatchRepo) Save(ctx context.Context, b *parcel.ImportBatch) error {
	content, algo := r.codec.Encode(b.Content)
	row := importBatchRow{
		ID:               b.ID,
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

	sql, args, err := builder().
		Insert(batchesTable).
		Columns(batchColumns...).
		Values(RowValues(row, batchColumns)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert import batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) List(ctx context.Context, limit int) ([]parcel.ImportBatch, error) {
	sql, args, err := listBatchesQuery(limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []importBatchRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list import batches: %w", err)
	}

	out := make([]parcel.ImportBatch, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *BatchRepo) Get(ctx context.Context, batchID string) (*parcel.ImportBatch, error) {
	bid, err := id.Parse(batchID)
	if err != nil {
		return nil, apperror.NewValidation("invalid batch id").WithDetail("id", batchID)
	}

	sql, args, err := builder().
		Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"id": bid}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row importBatchRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("import batch", batchID)
		}
		return nil, fmt.Errorf("get import batch: %w", err)
	}

	b := row.toDomain()
	if b.Content, err = r.codec.Decode(row.Content, archive.Algo(row.ContentAlgo)); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BatchRepo) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.txManager, batchesTable)
}

func listBatchesQuery(limit int) squirrel.SelectBuilder {
	return builder().
		Select(batchSummaryColumns...).
		From(batchesTable).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
}

func (row importBatchRow) toDomain() parcel.ImportBatch {
	return parcel.ImportBatch{
		ID:       row.ID,
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
	}
}
