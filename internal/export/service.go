package export

import (
	"context"
	"log/slog"
	"time"

	"attendconsole/internal/attendance"
	"attendconsole/internal/observability"
)

// Source supplies a day's records in ascending timestamp order.
type Source interface {
	ExportRecords(ctx context.Context, date string) ([]attendance.Record, error)
}

// Sheets sends records to a spreadsheet import endpoint.
type Sheets interface {
	Send(ctx context.Context, date string, records []SheetRecord) (*SheetResult, error)
}

// Service produces downloadable exports and spreadsheet imports.
type Service struct {
	source Source
	sheets Sheets
	loc    *time.Location
}

// NewService creates an export service. sheets may be nil when no import
// endpoint is configured.
func NewService(source Source, sheets Sheets, loc *time.Location) *Service {
	return &Service{source: source, sheets: sheets, loc: loc}
}

// XLSX builds attendance-<date>.xlsx.
func (s *Service) XLSX(ctx context.Context, date string) (*File, error) {
	return s.file(ctx, date, "xlsx", ContentTypeXLSX, WriteXLSX)
}

// CSV builds attendance-<date>.csv.
func (s *Service) CSV(ctx context.Context, date string) (*File, error) {
	return s.file(ctx, date, "csv", ContentTypeCSV, WriteCSV)
}

func (s *Service) file(ctx context.Context, date, ext, contentType string, write func([]Row) ([]byte, error)) (*File, error) {
	records, err := s.source.ExportRecords(ctx, date)
	if err != nil {
		observability.Exports.WithLabelValues(ext, "error").Inc()
		return nil, err
	}
	data, err := write(Rows(records, s.loc))
	if err != nil {
		observability.Exports.WithLabelValues(ext, "error").Inc()
		return nil, err
	}
	observability.Exports.WithLabelValues(ext, "ok").Inc()
	slog.Info("attendance exported", "format", ext, "date", date, "rows", len(records))
	return &File{Name: FileName(date, ext), ContentType: contentType, Data: data}, nil
}

// ToSheet sends the day's records to the spreadsheet import endpoint.
func (s *Service) ToSheet(ctx context.Context, date string) (*SheetResult, error) {
	if s.sheets == nil {
		return nil, ErrSheetExport
	}
	records, err := s.source.ExportRecords(ctx, date)
	if err != nil {
		observability.Exports.WithLabelValues("sheets", "error").Inc()
		return nil, err
	}
	res, err := s.sheets.Send(ctx, date, SheetRecords(records))
	if err != nil {
		observability.Exports.WithLabelValues("sheets", "error").Inc()
		return nil, err
	}
	observability.Exports.WithLabelValues("sheets", "ok").Inc()
	slog.Info("attendance sent to spreadsheet", "date", date, "rows", len(records), "url", res.SpreadsheetURL)
	return res, nil
}
