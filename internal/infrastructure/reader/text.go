package reader

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"parcelsort/internal/domain/parcel"
	"parcelsort/pkg/logger"
)

const maxLineBytes = 1 << 20

// readText parses whitespace separated lines: tracking zone route [ignored...].
func readText(src io.Reader, log *logger.Logger) ([]parcel.Record, error) {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []parcel.Record
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := sc.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		rec, ok := recordFromCells(strings.Fields(line))
		if !ok {
			log.Warnw("skipping malformed line", "line", lineNo, "content", line)
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read text manifest: %w", err)
	}
	return records, nil
}
