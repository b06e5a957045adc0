// Package export renders claim rows as CSV or XLSX documents.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/acolyte/internal/domain/types"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName names the single XLSX worksheet.
const SheetName = "claims"

// ErrUnknownFormat is returned for formats other than csv and xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

// Header is the first row of every export.
var Header = []string{"participant", "role", "date", "points", "event_type", "notes", "status"} //nolint:gochecknoglobals // column order is shared by both encoders

// ParseFormat accepts "csv" or "xlsx" in any case. Empty defaults to csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns a download name with base and the format's extension.
func (f Format) Filename(base string) string {
	return base + "." + string(f)
}

// Write encodes rows to w in format f.
func Write(w io.Writer, f Format, rows []types.ExportRow) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, rows)
	case FormatXLSX:
		return writeXLSX(w, rows)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func record(r types.ExportRow) []string {
	return []string{r.Participant, r.Role, r.Date, strconv.Itoa(r.Points), r.EventType, r.Notes, r.Status}
}

func writeCSV(w io.Writer, rows []types.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("export.csv -> %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return fmt.Errorf("export.csv -> %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export.csv -> %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, rows []types.ExportRow) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("export.xlsx -> %w", cerr)
		}
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, SheetName); err != nil {
		return fmt.Errorf("export.xlsx -> %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export.xlsx -> %w", err)
	}
	for idx, r := range rows {
		axis, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return fmt.Errorf("export.xlsx -> %w", err)
		}
		// Points stay numeric so spreadsheets can sum the column.
		cells := []interface{}{r.Participant, r.Role, r.Date, r.Points, r.EventType, r.Notes, r.Status}
		if err := f.SetSheetRow(SheetName, axis, &cells); err != nil {
			return fmt.Errorf("export.xlsx -> %w", err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export.xlsx -> %w", err)
	}
	return nil
}
