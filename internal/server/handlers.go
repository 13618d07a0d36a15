package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/zaptalk/sheetsbridge/internal/identity"
	"github.com/zaptalk/sheetsbridge/internal/sheets"
)

// Row limits for GET /data.
const (
	DefaultMaxRows = sheets.DefaultMaxRows
	MaxRowsLimit   = 10000
)

func (s *Server) handleAuth(w http.ResponseWriter, _ *http.Request, user *identity.User) error {
	state, err := s.deps.State.Encode(user.ID)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": s.deps.Consent.AuthCodeURL(state)})
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, user *identity.User) error {
	connected, err := s.deps.Credentials.Connected(r.Context(), user.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": connected})
	return nil
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request, user *identity.User) error {
	if err := s.deps.Credentials.Disconnect(r.Context(), user.ID); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	return nil
}

func (s *Server) handleSpreadsheets(w http.ResponseWriter, r *http.Request, user *identity.User) error {
	token, err := s.deps.Credentials.AccessToken(r.Context(), user.ID)
	if err != nil {
		return err
	}

	list, err := s.deps.Sheets.ListSpreadsheets(r.Context(), token)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"spreadsheets": list})
	return nil
}

func (s *Server) handleSheetTabs(w http.ResponseWriter, r *http.Request, user *identity.User) error {
	token, err := s.deps.Credentials.AccessToken(r.Context(), user.ID)
	if err != nil {
		return err
	}

	tabs, err := s.deps.Sheets.ListSheetTabs(r.Context(), token, r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"sheets": tabs})
	return nil
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request, user *identity.User) error {
	token, err := s.deps.Credentials.AccessToken(r.Context(), user.ID)
	if err != nil {
		return err
	}

	values, err := s.deps.Sheets.ReadValues(r.Context(), token,
		r.PathValue("id"), r.PathValue("sheetName"), parseMaxRows(r.URL.Query().Get("maxRows")))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, values)
	return nil
}

// parseMaxRows reads the maxRows query value. Missing, malformed or
// non-positive values give DefaultMaxRows; large values are capped.
func parseMaxRows(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultMaxRows
	}
	return min(n, MaxRowsLimit)
}
