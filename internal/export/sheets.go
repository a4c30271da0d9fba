package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrSheetExport is returned when the import endpoint rejects a request
// without saying why.
var ErrSheetExport = errors.New("spreadsheet export failed")

// SheetResult is the import endpoint's answer.
type SheetResult struct {
	Success        bool   `json:"success"`
	SpreadsheetURL string `json:"spreadsheet_url,omitempty"`
}

// SheetError carries the endpoint's own error message.
type SheetError struct {
	Status  int
	Message string
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("spreadsheet export failed (%d): %s", e.Status, e.Message)
}

func (e *SheetError) Unwrap() error { return ErrSheetExport }

// SheetsClient posts attendance to an external spreadsheet-import endpoint.
type SheetsClient struct {
	URL  string
	HTTP *http.Client
}

// NewSheetsClient creates a client for the given endpoint URL.
func NewSheetsClient(url string) *SheetsClient {
	return &SheetsClient{
		URL:  url,
		HTTP: &http.Client{Timeout: 60 * time.Second},
	}
}

type sheetRequest struct {
	Date    string        `json:"date"`
	Records []SheetRecord `json:"records"`
}

// Send uploads one day of records.
func (c *SheetsClient) Send(ctx context.Context, date string, records []SheetRecord) (*SheetResult, error) {
	if records == nil {
		records = []SheetRecord{}
	}
	body, err := json.Marshal(sheetRequest{Date: date, Records: records})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSheetExport, err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var out struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &out) == nil && out.Error != "" {
			return nil, &SheetError{Status: resp.StatusCode, Message: out.Error}
		}
		return nil, fmt.Errorf("%w: %s", ErrSheetExport, resp.Status)
	}

	// any 2xx counts as success; the body only adds the optional link
	result := SheetResult{Success: true}
	if len(bytes.TrimSpace(payload)) > 0 {
		var out struct {
			SpreadsheetURL string `json:"spreadsheet_url"`
		}
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrSheetExport, err)
		}
		result.SpreadsheetURL = out.SpreadsheetURL
	}
	return &result, nil
}
