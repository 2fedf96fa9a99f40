package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// header is the fixed CSV schema. Column order never changes; downstream
// spreadsheets key on it.
var header = []string{
	"id", "url", "service",
	"openedAt", "closedAt", "duration",
	"openedAt_jst", "closedAt_jst",
}

// WriteCSV writes the report to path, creating the parent directory and
// overwriting any existing file. Open alerts serialize with empty
// closedAt, duration, and closedAt_jst columns.
func WriteCSV(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.ID,
			r.URL,
			r.Service,
			strconv.FormatInt(r.OpenedAt, 10),
			formatOptional(r.ClosedAt),
			formatDuration(r.Duration),
			r.OpenedAtLocal,
			r.ClosedAtLocal,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

func formatOptional(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func formatDuration(d *int64) string {
	if d == nil {
		return ""
	}
	return strconv.FormatInt(*d, 10)
}
