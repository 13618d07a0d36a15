package server

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/zaptalk/sheetsbridge/internal/google"
	"github.com/zaptalk/sheetsbridge/internal/identity"
	"github.com/zaptalk/sheetsbridge/internal/logging"
	"github.com/zaptalk/sheetsbridge/internal/oauthstate"
)

// Message types posted to the opener window.
const (
	messageSuccess = "google-sheets-success"
	messageError   = "google-sheets-error"
)

// callbackMessage is posted to window.opener. html/template renders it as a
// JSON object literal inside the script.
type callbackMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Google Sheets</title></head>
<body>
<p>{{if .Error}}Connection failed: {{.Error}}{{else}}Connected. You can close this window.{{end}}</p>
<script>
if (window.opener) {
  window.opener.postMessage({{.}}, '*');
}
window.close();
</script>
</body>
</html>
`))

// handleCallback completes the authorization-code grant. It always answers
// with the popup page; failures are reported through the posted message.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request, _ *identity.User) error {
	q := r.URL.Query()
	logger := loggerFrom(r.Context(), s.logger)

	if providerErr := q.Get("error"); providerErr != "" {
		msg := providerErr
		if desc := q.Get("error_description"); desc != "" {
			msg = desc
		}
		logger.WarnContext(r.Context(), "authorization denied", logging.Err(errors.New(providerErr)))
		renderCallback(w, callbackMessage{Type: messageError, Error: msg})
		return nil
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		renderCallback(w, callbackMessage{Type: messageError, Error: "Missing code or state"})
		return nil
	}

	userID, err := s.deps.State.Decode(state)
	if err != nil {
		logger.WarnContext(r.Context(), "rejected callback state", logging.Err(err))
		msg := "Invalid state"
		if errors.Is(err, oauthstate.ErrExpiredState) {
			msg = "Authorization expired, please try again"
		}
		renderCallback(w, callbackMessage{Type: messageError, Error: msg})
		return nil
	}

	if err := s.deps.Credentials.Connect(r.Context(), userID, code); err != nil {
		logger.ErrorContext(r.Context(), "failed to connect Google account",
			logging.UserHash(userID),
			logging.Err(err))
		renderCallback(w, callbackMessage{Type: messageError, Error: google.ErrorDetail(err)})
		return nil
	}

	logger.InfoContext(r.Context(), "Google account connected", logging.UserHash(userID))
	renderCallback(w, callbackMessage{Type: messageSuccess})
	return nil
}

// renderCallback writes the popup page. A write failure means the browser
// has gone away, so it is not reported.
func renderCallback(w http.ResponseWriter, msg callbackMessage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = callbackPage.Execute(w, msg)
}
