package sheets

import (
	"fmt"
	"strings"
)

// Spreadsheet is one entry of the spreadsheet listing.
type Spreadsheet struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ModifiedTime string `json:"modifiedTime"`
}

// Tab is one sheet inside a spreadsheet.
type Tab struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Values is the content of a sheet split into a header row and data rows.
type Values struct {
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"totalRows"`
}

// APIError is a non-2xx response from a Google API.
type APIError struct {
	Operation  string
	StatusCode int
	// Body is the raw response body as returned by Google.
	Body string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("failed to %s: status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("failed to %s: %s", e.Operation, body)
}
