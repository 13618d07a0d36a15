package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/zaptalk/sheetsbridge/internal/instrumentation"
)

const (
	// SpreadsheetMimeType is the Drive MIME type of native Google Sheets files.
	SpreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

	// ListLimit caps the spreadsheet listing.
	ListLimit = 50

	// DefaultMaxRows is used when ReadValues gets a non-positive row count.
	DefaultMaxRows = 1000

	// lastColumn bounds the value range to columns A through Z.
	lastColumn = "Z"
)

// Config configures a Client.
type Config struct {
	// Timeout bounds each upstream call.
	Timeout time.Duration

	// DriveEndpoint and SheetsEndpoint override the API base URLs. Empty uses Google's.
	DriveEndpoint  string
	SheetsEndpoint string

	// Transport is the base round tripper. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client performs the read-only Drive and Sheets calls.
type Client struct {
	cfg     Config
	metrics *instrumentation.Metrics
}

// NewClient creates a Client. metrics may be nil.
func NewClient(cfg Config, metrics *instrumentation.Metrics) *Client {
	return &Client{cfg: cfg, metrics: metrics}
}

// httpClient authenticates every request with accessToken.
func (c *Client) httpClient(accessToken string) *http.Client {
	return &http.Client{
		Timeout: c.cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.cfg.Transport,
		},
	}
}

func (c *Client) options(accessToken, endpoint string) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(c.httpClient(accessToken))}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

// observe wraps one upstream call with a span and metrics.
func (c *Client) observe(ctx context.Context, service, operation string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, service, operation, attrs...)
	err := fn(ctx)
	instrumentation.EndSpan(span, err)
	c.metrics.RecordGoogleAPIOperation(ctx, service, operation, instrumentation.StatusFromError(err), time.Since(start))
	return err
}

// ListSpreadsheets returns the user's most recently modified spreadsheets.
func (c *Client) ListSpreadsheets(ctx context.Context, accessToken string) ([]Spreadsheet, error) {
	out := []Spreadsheet{}
	err := c.observe(ctx, instrumentation.ServiceDrive, instrumentation.OperationListSpreadsheets, nil,
		func(ctx context.Context) error {
			svc, err := drive.NewService(ctx, c.options(accessToken, c.cfg.DriveEndpoint)...)
			if err != nil {
				return fmt.Errorf("failed to create Drive service: %w", err)
			}

			list, err := svc.Files.List().
				Context(ctx).
				Q(fmt.Sprintf("mimeType='%s' and trashed=false", SpreadsheetMimeType)).
				OrderBy("modifiedTime desc").
				PageSize(ListLimit).
				Fields("files(id,name,modifiedTime)").
				Do()
			if err != nil {
				return wrapAPIError("fetch spreadsheets", err)
			}

			for _, f := range list.Files {
				out = append(out, Spreadsheet{ID: f.Id, Name: f.Name, ModifiedTime: f.ModifiedTime})
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListSheetTabs returns the tabs of a spreadsheet in display order.
func (c *Client) ListSheetTabs(ctx context.Context, accessToken, spreadsheetID string) ([]Tab, error) {
	out := []Tab{}
	attrs := []attribute.KeyValue{attribute.String(instrumentation.SpanAttrSpreadsheetID, spreadsheetID)}
	err := c.observe(ctx, instrumentation.ServiceSheets, instrumentation.OperationListSheetTabs, attrs,
		func(ctx context.Context) error {
			svc, err := sheets.NewService(ctx, c.options(accessToken, c.cfg.SheetsEndpoint)...)
			if err != nil {
				return fmt.Errorf("failed to create Sheets service: %w", err)
			}

			ss, err := svc.Spreadsheets.Get(spreadsheetID).
				Context(ctx).
				Fields("sheets.properties(sheetId,title)").
				Do()
			if err != nil {
				return wrapAPIError("fetch spreadsheet", err)
			}

			for _, s := range ss.Sheets {
				if s.Properties == nil {
					continue
				}
				out = append(out, Tab{ID: s.Properties.SheetId, Title: s.Properties.Title})
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadValues reads A1:Z{maxRows} of the named sheet. The first row becomes
// Headers; TotalRows counts the remaining rows.
func (c *Client) ReadValues(ctx context.Context, accessToken, spreadsheetID, sheetName string, maxRows int) (*Values, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	var out *Values
	attrs := []attribute.KeyValue{attribute.String(instrumentation.SpanAttrSpreadsheetID, spreadsheetID)}
	err := c.observe(ctx, instrumentation.ServiceSheets, instrumentation.OperationReadValues, attrs,
		func(ctx context.Context) error {
			svc, err := sheets.NewService(ctx, c.options(accessToken, c.cfg.SheetsEndpoint)...)
			if err != nil {
				return fmt.Errorf("failed to create Sheets service: %w", err)
			}

			vr, err := svc.Spreadsheets.Values.Get(spreadsheetID, ValueRange(sheetName, maxRows)).
				Context(ctx).
				Do()
			if err != nil {
				return wrapAPIError("fetch sheet data", err)
			}

			out = splitValues(vr.Values)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ValueRange builds the A1 notation range for the first maxRows rows of a
// sheet. The sheet name is always quoted, with embedded quotes doubled.
func ValueRange(sheetName string, maxRows int) string {
	quoted := "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	return fmt.Sprintf("%s!A1:%s%d", quoted, lastColumn, maxRows)
}

func splitValues(values [][]any) *Values {
	v := &Values{Headers: []string{}, Rows: [][]string{}}
	if len(values) == 0 {
		return v
	}

	v.Headers = stringRow(values[0])
	for _, row := range values[1:] {
		v.Rows = append(v.Rows, stringRow(row))
	}
	v.TotalRows = len(v.Rows)
	return v
}

func stringRow(row []any) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		if cell != nil {
			out[i] = fmt.Sprint(cell)
		}
	}
	return out
}

func wrapAPIError(operation string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return &APIError{Operation: operation, StatusCode: gerr.Code, Body: body}
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}
