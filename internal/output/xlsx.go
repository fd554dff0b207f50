package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// SheetName is the worksheet that holds the records.
const SheetName = "Sheet1"

// XLSXWriter writes a single-sheet workbook with a header row.
type XLSXWriter struct{}

// Write implements Writer. Rows are streamed so large jobs do not build the
// whole sheet in memory.
func (XLSXWriter) Write(w io.Writer, records []crawler.Record) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("open sheet stream: %w", err)
	}
	if err := sw.SetColWidth(1, 2, 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := sw.SetRow("A1", cells(Header)); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := sw.SetRow(cell, cells(row(r))); err != nil {
			return fmt.Errorf("write xlsx row %s: %w", r.Domain, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet stream: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
