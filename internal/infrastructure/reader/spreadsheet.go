package reader

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"parcelsort/internal/domain/parcel"
	"parcelsort/pkg/logger"
)

const manifestColumns = 3

// readXLSX reads the first sheet of an Office Open XML workbook.
// Row 1 is the header.
func readXLSX(src io.Reader, log *logger.Logger) ([]parcel.Record, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var records []parcel.Record
	for i := 1; i < len(rows); i++ {
		rowNo := i + 1
		cells := make([]string, manifestColumns)
		for col := 0; col < manifestColumns && col < len(rows[i]); col++ {
			cells[col], err = xlsxCell(f, sheet, col+1, rowNo, rows[i][col])
			if err != nil {
				return nil, err
			}
		}

		rec, ok := recordFromCells(cells)
		if !ok {
			log.Warnw("skipping incomplete row", "row", rowNo)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// xlsxCell returns the raw cell text, with numeric cells coerced to their
// integer form.
func xlsxCell(f *excelize.File, sheet string, col, row int, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return "", fmt.Errorf("cell %s type: %w", ref, err)
	}
	if typ == excelize.CellTypeNumber || typ == excelize.CellTypeUnset {
		return integerForm(raw), nil
	}
	return raw, nil
}

// readXLS reads the first sheet of a legacy BIFF workbook.
func readXLS(src io.Reader, log *logger.Logger) (records []parcel.Record, err error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read xls: %w", err)
	}

	// The BIFF decoder panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("malformed xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("no workbook stream")
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("first sheet is unreadable")
	}

	for i := 1; i <= int(sheet.MaxRow); i++ {
		rowNo := i + 1
		row := sheet.Row(i)
		if row == nil {
			log.Warnw("skipping incomplete row", "row", rowNo)
			continue
		}

		cells := make([]string, manifestColumns)
		for col := 0; col < manifestColumns; col++ {
			cells[col] = integerForm(row.Col(col))
		}

		rec, ok := recordFromCells(cells)
		if !ok {
			log.Warnw("skipping incomplete row", "row", rowNo)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// integerForm renders a float-formatted number as the digits of its integer
// part ("101.0", "1.01E2", "101.5" -> "101"). Anything that is not a finite
// decimal number is returned unchanged.
func integerForm(s string) string {
	v := strings.TrimSpace(s)
	if !strings.ContainsAny(v, ".eE") {
		return s
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || math.Abs(f) > 1<<53 {
		return s
	}
	return strconv.FormatInt(int64(math.Trunc(f)), 10)
}
