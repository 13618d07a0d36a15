package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeGoogle serves the Drive and Sheets paths used by Client from mux
// and returns a Client pointed at it.
func newFakeGoogle(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		Timeout:        2 * time.Second,
		DriveEndpoint:  srv.URL + "/drive/v3/",
		SheetsEndpoint: srv.URL + "/",
	}, nil)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestListSpreadsheets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "mimeType='application/vnd.google-apps.spreadsheet' and trashed=false", q.Get("q"), "trashed files are excluded")
		assert.Equal(t, "modifiedTime desc", q.Get("orderBy"))
		assert.Equal(t, "50", q.Get("pageSize"))
		assert.Equal(t, "files(id,name,modifiedTime)", q.Get("fields"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"files": []map[string]any{
				{"id": "s1", "name": "Leads", "modifiedTime": "2026-03-02T10:00:00.000Z"},
				{"id": "s2", "name": "Contacts", "modifiedTime": "2026-03-01T10:00:00.000Z"},
			},
		})
	})
	c := newFakeGoogle(t, mux)

	got, err := c.ListSpreadsheets(context.Background(), "access-token")
	require.NoError(t, err)
	assert.Equal(t, []Spreadsheet{
		{ID: "s1", Name: "Leads", ModifiedTime: "2026-03-02T10:00:00.000Z"},
		{ID: "s2", Name: "Contacts", ModifiedTime: "2026-03-01T10:00:00.000Z"},
	}, got)
}

func TestListSpreadsheets_Empty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/drive/v3/files", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{})
	})
	c := newFakeGoogle(t, mux)

	got, err := c.ListSpreadsheets(context.Background(), "access-token")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListSpreadsheets_UpstreamError(t *testing.T) {
	body := `{"error":{"code":403,"message":"Request had insufficient authentication scopes.","status":"PERMISSION_DENIED"}}`
	mux := http.NewServeMux()
	mux.HandleFunc("/drive/v3/files", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(body))
	})
	c := newFakeGoogle(t, mux)

	_, err := c.ListSpreadsheets(context.Background(), "access-token")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "Request had insufficient authentication scopes.")
	assert.Contains(t, err.Error(), "PERMISSION_DENIED")
}

func TestListSheetTabs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/spreadsheets/s1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sheets.properties(sheetId,title)", r.URL.Query().Get("fields"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"sheets": []map[string]any{
				{"properties": map[string]any{"sheetId": 0, "title": "Sheet1"}},
				{"properties": map[string]any{"sheetId": 1234, "title": "Q1 Sales"}},
			},
		})
	})
	c := newFakeGoogle(t, mux)

	got, err := c.ListSheetTabs(context.Background(), "access-token", "s1")
	require.NoError(t, err)
	assert.Equal(t, []Tab{{ID: 0, Title: "Sheet1"}, {ID: 1234, Title: "Q1 Sales"}}, got)
}

func TestListSheetTabs_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/spreadsheets/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	})
	c := newFakeGoogle(t, mux)

	_, err := c.ListSheetTabs(context.Background(), "access-token", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Requested entity was not found.")
}

func TestReadValues(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]any
		want     *Values
	}{
		{
			name:     "no values",
			response: map[string]any{"range": "'Sheet1'!A1:Z1000"},
			want:     &Values{Headers: []string{}, Rows: [][]string{}, TotalRows: 0},
		},
		{
			name: "header only",
			response: map[string]any{
				"values": [][]any{{"Name", "Phone"}},
			},
			want: &Values{Headers: []string{"Name", "Phone"}, Rows: [][]string{}, TotalRows: 0},
		},
		{
			name: "header and rows",
			response: map[string]any{
				"values": [][]any{
					{"Name", "Phone", "Age"},
					{"Ana", "+5511999990000", 31},
					{"Bo"},
				},
			},
			want: &Values{
				Headers:   []string{"Name", "Phone", "Age"},
				Rows:      [][]string{{"Ana", "+5511999990000", "31"}, {"Bo"}},
				TotalRows: 2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/v4/spreadsheets/s1/values/", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, http.StatusOK, tt.response)
			})
			c := newFakeGoogle(t, mux)

			got, err := c.ReadValues(context.Background(), "access-token", "s1", "Sheet1", 1000)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadValues_Range(t *testing.T) {
	var gotPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/spreadsheets/s1/values/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(t, w, http.StatusOK, map[string]any{})
	})
	c := newFakeGoogle(t, mux)

	_, err := c.ReadValues(context.Background(), "access-token", "s1", "Q1 Sales", 25)
	require.NoError(t, err)
	assert.Equal(t, "/v4/spreadsheets/s1/values/'Q1 Sales'!A1:Z25", gotPath)

	_, err = c.ReadValues(context.Background(), "access-token", "s1", "Sheet1", 0)
	require.NoError(t, err)
	assert.Equal(t, "/v4/spreadsheets/s1/values/'Sheet1'!A1:Z1000", gotPath)
}

func TestValueRange(t *testing.T) {
	assert.Equal(t, "'Sheet1'!A1:Z1000", ValueRange("Sheet1", 1000))
	assert.Equal(t, "'Bob''s list'!A1:Z5", ValueRange("Bob's list", 5))
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Operation: "fetch sheet data", StatusCode: 400, Body: "  bad range\n"}
	assert.Equal(t, "failed to fetch sheet data: bad range", err.Error())

	err = &APIError{Operation: "fetch sheet data", StatusCode: 502}
	assert.Equal(t, "failed to fetch sheet data: status 502", err.Error())
}
