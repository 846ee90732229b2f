package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportCSV writes samples at or after since to w as CSV with a header row.
// Missing values are written as empty cells. It returns the number of data
// rows written.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, since time.Time) (int, error) {
	samples, err := s.ReadSince(ctx, since)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	header := append([]string{"timestamp"}, metricColumns...)
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(header))
	for _, sample := range samples {
		record[0] = sample.Timestamp.Format(time.RFC3339)
		for i, col := range metricColumns {
			if v, ok := sample.Get(col); ok {
				record[i+1] = strconv.FormatFloat(v, 'f', 2, 64)
			} else {
				record[i+1] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	return len(samples), nil
}
