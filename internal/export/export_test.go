package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"attendconsole/internal/attendance"
)

type fakeSource struct {
	records []attendance.Record
	err     error
	dates   []string
}

func (f *fakeSource) ExportRecords(ctx context.Context, date string) ([]attendance.Record, error) {
	f.dates = append(f.dates, date)
	return f.records, f.err
}

type fakeSheets struct {
	date    string
	records []SheetRecord
	result  *SheetResult
	err     error
}

func (f *fakeSheets) Send(ctx context.Context, date string, records []SheetRecord) (*SheetResult, error) {
	f.date, f.records = date, records
	return f.result, f.err
}

func twoRecords() []attendance.Record {
	return []attendance.Record{
		{
			ID: "a", StudentID: 7, SessionType: attendance.SessionBeforeBreak, Date: "2024-01-10",
			Timestamp:   time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
			StudentName: "Ada Lovelace", StudentEmail: "ada@example.com", StudentPhone: "555-0107",
		},
		{
			ID: "b", StudentID: 8, SessionType: attendance.SessionEndOfDay, Date: "2024-01-10",
			Timestamp:   time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC),
			StudentName: "Grace Hopper", StudentEmail: "grace@navy.mil", StudentPhone: "555-0108",
		},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(twoRecords(), time.UTC)

	require.Len(t, rows, 2)
	assert.Equal(t, Row{
		StudentName: "Ada Lovelace", Email: "ada@example.com", Phone: "555-0107",
		SessionType: "before break", Time: "9:00:00 AM", Date: "2024-01-10",
	}, rows[0])
	assert.Equal(t, "end of day", rows[1].SessionType)
	assert.Equal(t, "2:00:00 PM", rows[1].Time)
}

func TestRowsMissingStudent(t *testing.T) {
	rows := Rows([]attendance.Record{{SessionType: attendance.SessionEndOfDay, Date: "2024-01-10"}}, time.UTC)

	require.Len(t, rows, 1)
	assert.Equal(t, []string{"", "", "", "end of day", "12:00:00 AM", "2024-01-10"}, rows[0].Values())
}

func TestSheetRecords(t *testing.T) {
	recs := SheetRecords(twoRecords())

	require.Len(t, recs, 2)
	assert.Equal(t, SheetRecord{
		StudentName: "Ada Lovelace", Email: "ada@example.com", Phone: "555-0107",
		SessionType: "before_break", Timestamp: "2024-01-10T09:00:00Z", Date: "2024-01-10",
	}, recs[0])
}

func TestXLSX(t *testing.T) {
	src := &fakeSource{records: twoRecords()}
	svc := NewService(src, nil, time.UTC)

	file, err := svc.XLSX(context.Background(), "2024-01-10")
	require.NoError(t, err)

	assert.Equal(t, "attendance-2024-01-10.xlsx", file.Name)
	assert.Equal(t, ContentTypeXLSX, file.ContentType)
	assert.Equal(t, []string{"2024-01-10"}, src.dates)

	wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "Ada Lovelace", rows[1][0])
	assert.Equal(t, "9:00:00 AM", rows[1][4])
	assert.Equal(t, "Grace Hopper", rows[2][0])
	assert.Equal(t, "2:00:00 PM", rows[2][4])

	width, err := wb.GetColWidth(sheetName, "F")
	require.NoError(t, err)
	assert.Equal(t, float64(columnWidth), width)
}

func TestCSV(t *testing.T) {
	svc := NewService(&fakeSource{records: twoRecords()}, nil, time.UTC)

	file, err := svc.CSV(context.Background(), "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, "attendance-2024-01-10.csv", file.Name)

	lines, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, Columns, lines[0])
	assert.Equal(t, "Grace Hopper", lines[2][0])
}

func TestExportEmptyDay(t *testing.T) {
	svc := NewService(&fakeSource{}, nil, time.UTC)

	file, err := svc.CSV(context.Background(), "2024-01-11")
	require.NoError(t, err)

	lines, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestExportSourceError(t *testing.T) {
	svc := NewService(&fakeSource{err: errors.New("db down")}, &fakeSheets{}, time.UTC)

	_, err := svc.XLSX(context.Background(), "2024-01-10")
	assert.EqualError(t, err, "db down")

	_, err = svc.ToSheet(context.Background(), "2024-01-10")
	assert.EqualError(t, err, "db down")
}

func TestToSheet(t *testing.T) {
	sheets := &fakeSheets{result: &SheetResult{Success: true, SpreadsheetURL: "https://sheets.test/abc"}}
	svc := NewService(&fakeSource{records: twoRecords()}, sheets, time.UTC)

	res, err := svc.ToSheet(context.Background(), "2024-01-10")
	require.NoError(t, err)

	assert.Equal(t, "https://sheets.test/abc", res.SpreadsheetURL)
	assert.Equal(t, "2024-01-10", sheets.date)
	require.Len(t, sheets.records, 2)
	assert.Equal(t, "Ada Lovelace", sheets.records[0].StudentName)
	assert.Equal(t, "Grace Hopper", sheets.records[1].StudentName)
}

func TestToSheetNotConfigured(t *testing.T) {
	svc := NewService(&fakeSource{}, nil, time.UTC)

	_, err := svc.ToSheet(context.Background(), "2024-01-10")
	assert.ErrorIs(t, err, ErrSheetExport)
}

func TestSheetsClient(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantURL string
		wantErr string
	}{
		{name: "success with link", status: http.StatusOK, body: `{"success":true,"spreadsheet_url":"https://sheets.test/1"}`, wantURL: "https://sheets.test/1"},
		{name: "success without body", status: http.StatusOK},
		{name: "endpoint message surfaced", status: http.StatusInternalServerError, body: `{"error":"quota exceeded"}`, wantErr: "spreadsheet export failed (500): quota exceeded"},
		{name: "generic failure", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantErr: "spreadsheet export failed: 502 Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got sheetRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewSheetsClient(srv.URL)
			res, err := client.Send(context.Background(), "2024-01-10", SheetRecords(twoRecords()))

			assert.Equal(t, "2024-01-10", got.Date)
			assert.Len(t, got.Records, 2)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrSheetExport)
				return
			}
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.wantURL, res.SpreadsheetURL)
		})
	}
}
