package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName   = "Attendance"
	columnWidth = 20

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv"
)

// File is a generated download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileName is deterministic per date: attendance-<date>.<ext>.
func FileName(date, ext string) string {
	return fmt.Sprintf("attendance-%s.%s", date, ext)
}

// WriteXLSX renders rows as a single-sheet workbook.
func WriteXLSX(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := row.Values()
		line := make([]interface{}, len(values))
		for j, v := range values {
			line[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &line); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, columnWidth); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCSV renders rows with a header line.
func WriteCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row.Values()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
