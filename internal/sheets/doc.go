// Package sheets reads spreadsheets on behalf of a user through the Google
// Drive v3 and Sheets v4 APIs.
//
// Each call takes the user's current access token; the package never stores
// or refreshes tokens itself. Upstream failures are returned as *APIError,
// which carries Google's raw response body.
package sheets
