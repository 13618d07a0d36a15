// Package server exposes the Google Sheets integration over HTTP.
//
// # Routes
//
// All routes live under a configurable base path (default /google-sheets)
// and are declared in one ordered table:
//
//	GET  /auth                  consent URL for the caller
//	GET  /callback              OAuth redirect target, renders a popup page
//	GET  /status                whether a usable Google token exists
//	POST /disconnect            forget the stored credential
//	GET  /spreadsheets          recently modified spreadsheets
//	GET  /sheets/:id            tabs of a spreadsheet
//	GET  /data/:id/:sheetName   values of a tab, ?maxRows=N
//
// Every route except /callback requires a bearer token that the identity
// service accepts. CORS is open and preflight requests are answered before
// routing.
//
// # Errors
//
// Handlers return errors instead of writing them. The dispatcher maps
// google.ErrNotConnected to 401 NOT_CONNECTED and everything else, including
// panics, to 500 with the error text.
//
// # Operational endpoints
//
// /healthz, /readyz and /healthz/detailed are served outside the base path.
// Prometheus metrics are served by MetricsServer on a separate port.
package server
