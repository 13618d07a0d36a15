package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/zaptalk/sheetsbridge/internal/identity"
)

// handlerFunc serves one route. user is nil for routes that do not require
// authentication.
type handlerFunc func(w http.ResponseWriter, r *http.Request, user *identity.User) error

// route is one entry of the route table. Pattern segments starting with ':'
// capture a path value available through r.PathValue.
type route struct {
	method  string
	pattern string
	auth    bool
	handle  handlerFunc
}

// routes returns the route table in match order.
func (s *Server) routes() []route {
	return []route{
		{http.MethodGet, "/auth", true, s.handleAuth},
		{http.MethodGet, "/callback", false, s.handleCallback},
		{http.MethodGet, "/status", true, s.handleStatus},
		{http.MethodPost, "/disconnect", true, s.handleDisconnect},
		{http.MethodGet, "/spreadsheets", true, s.handleSpreadsheets},
		{http.MethodGet, "/sheets/:id", true, s.handleSheetTabs},
		{http.MethodGet, "/data/:id/:sheetName", true, s.handleData},
	}
}

// match finds the first route accepting method and the escaped path, and
// returns its decoded path values.
func match(table []route, method, escapedPath string) (*route, map[string]string) {
	segments := splitPath(escapedPath)
	for i := range table {
		rt := &table[i]
		if rt.method != method {
			continue
		}
		if values, ok := matchPattern(splitPath(rt.pattern), segments); ok {
			return rt, values
		}
	}
	return nil, nil
}

func matchPattern(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}

	values := make(map[string]string)
	for i, p := range pattern {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			v, err := url.PathUnescape(segments[i])
			if err != nil || v == "" {
				return nil, false
			}
			values[name] = v
			continue
		}
		if p != segments[i] {
			return nil, false
		}
	}
	return values, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// stripBasePath removes basePath from an escaped request path. It reports
// false when the path is outside basePath.
func stripBasePath(basePath, escapedPath string) (string, bool) {
	if basePath == "" {
		return escapedPath, true
	}
	rest, ok := strings.CutPrefix(escapedPath, basePath)
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return "", false
	}
	return rest, true
}
