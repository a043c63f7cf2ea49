// internal/app/system/sheetutil/rows.go
package sheetutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format is a spreadsheet file format recognised by extension.
type Format string

const (
	FormatXLSX    Format = "xlsx"
	FormatCSV     Format = "csv"
	FormatUnknown Format = ""
)

var (
	ErrUnsupported = errors.New("unsupported spreadsheet format")
	ErrTooManyRows = errors.New("spreadsheet has too many rows")
)

// FormatOf picks the format from filename's extension.
func FormatOf(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	}
	return FormatUnknown
}

// CountRows returns the number of data rows on the first sheet of the
// spreadsheet in r. The first non-blank row is the header and is not
// counted; blank rows are skipped.
func CountRows(r io.Reader, filename string) (int, error) {
	switch FormatOf(filename) {
	case FormatXLSX:
		return countXLSX(r)
	case FormatCSV:
		return countCSV(r)
	}
	return 0, ErrUnsupported
}

func countXLSX(r io.Reader) (int, error) {
	f, err := excelize.OpenReader(r, excelize.Options{UnzipSizeLimit: maxUnzipSize})
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, nil
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	var c counter
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return 0, fmt.Errorf("read row: %w", err)
		}
		if err := c.add(cols); err != nil {
			return 0, err
		}
	}
	if err := rows.Error(); err != nil {
		return 0, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return c.data, nil
}

func countCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var c counter
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read csv: %w", err)
		}
		if !c.header && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
		}
		if err := c.add(rec); err != nil {
			return 0, err
		}
	}
	return c.data, nil
}

// counter tallies non-blank rows after the header.
type counter struct {
	header bool
	data   int
}

func (c *counter) add(cells []string) error {
	if blank(cells) {
		return nil
	}
	if !c.header {
		c.header = true
		return nil
	}
	c.data++
	if c.data > MaxRows {
		return ErrTooManyRows
	}
	return nil
}

func blank(cells []string) bool {
	for _, v := range cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
