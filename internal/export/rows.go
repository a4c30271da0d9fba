package export

import (
	"time"

	"attendconsole/internal/attendance"
)

// Columns is the fixed header of every tabular export.
var Columns = []string{"Student Name", "Email", "Phone", "Session Type", "Time", "Date"}

// TimeLayout renders the capture instant in the export's Time column.
const TimeLayout = "3:04:05 PM"

// Row is one flattened attendance record.
type Row struct {
	StudentName string
	Email       string
	Phone       string
	SessionType string
	Time        string
	Date        string
}

// Values returns the row in Columns order.
func (r Row) Values() []string {
	return []string{r.StudentName, r.Email, r.Phone, r.SessionType, r.Time, r.Date}
}

// Rows maps records to export rows, keeping their order.
func Rows(records []attendance.Record, loc *time.Location) []Row {
	if loc == nil {
		loc = time.Local
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{
			StudentName: rec.StudentName,
			Email:       rec.StudentEmail,
			Phone:       rec.StudentPhone,
			SessionType: rec.SessionType.Label(),
			Time:        rec.Timestamp.In(loc).Format(TimeLayout),
			Date:        rec.Date,
		})
	}
	return rows
}

// SheetRecord is the raw-field shape sent to the spreadsheet import endpoint.
type SheetRecord struct {
	StudentName string `json:"student_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	SessionType string `json:"session_type"`
	Timestamp   string `json:"timestamp"`
	Date        string `json:"date"`
}

// SheetRecords maps records to the import payload, keeping their order.
func SheetRecords(records []attendance.Record) []SheetRecord {
	out := make([]SheetRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, SheetRecord{
			StudentName: rec.StudentName,
			Email:       rec.StudentEmail,
			Phone:       rec.StudentPhone,
			SessionType: string(rec.SessionType),
			Timestamp:   rec.Timestamp.Format(time.RFC3339),
			Date:        rec.Date,
		})
	}
	return out
}
