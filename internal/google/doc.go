// Package google talks to Google's OAuth 2.0 endpoints on behalf of a user
// and keeps that user's stored credential usable.
//
// Provider builds the consent URL and performs the authorization-code and
// refresh-token grants. Manager sits between the HTTP handlers and the token
// store: it hands out an access token that is valid for at least
// RefreshThreshold, refreshing it when needed and deleting the credential
// when a refresh fails.
package google
