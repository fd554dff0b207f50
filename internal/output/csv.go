package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// CSVWriter writes RFC 4180 CSV with a header row.
type CSVWriter struct{}

// Write implements Writer.
func (CSVWriter) Write(w io.Writer, records []crawler.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.Domain, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
