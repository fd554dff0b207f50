// Package output serializes crawl records for downstream consumers.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/yokurang/logo-crawler/internal/crawler"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Header is the column order shared by every format.
var Header = []string{"domain", "logo", "label", "error"}

// Writer serializes a complete record list to w.
type Writer interface {
	Write(w io.Writer, records []crawler.Record) error
}

// New returns the Writer for format.
func New(format string) (Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return CSVWriter{}, nil
	case FormatXLSX:
		return XLSXWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

func row(r crawler.Record) []string {
	return []string{r.Domain, r.Logo, string(r.Label), r.Error}
}
