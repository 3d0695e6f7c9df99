package web

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/mastersync/internal/core"
)

// maxErrorLimit caps the limit parameter of the error log endpoint.
const maxErrorLimit = 500

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, map[string]any{
		"status":     "ok",
		"refreshing": s.service.ActiveRefreshes(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.ListTools(r.Context()))
}

// handleRefresh runs EnsureUpdated synchronously and returns its report.
// Soft failures show up in the report; hard failures map to an error status.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	force, err := parseBoolParam(r, "force")
	if err != nil {
		badRequest(w, "force must be a boolean")
		return
	}

	report, err := s.service.EnsureUpdated(r.Context(), chi.URLParam(r, "toolID"), force)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolID")
	ok, err := s.service.IsAvailable(r.Context(), toolID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"toolId": toolID, "available": ok})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.GetStatus(r.Context(), chi.URLParam(r, "toolID"), r.URL.Query().Get("master"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, st)
}

// handleResolve always answers 200; a miss is reported in the body.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Resolve(r.Context(), chi.URLParam(r, "toolID"), r.URL.Query().Get("term")))
}

func (s *Server) handleRecentErrors(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultErrorLogLimit)
	if limit > maxErrorLimit {
		limit = maxErrorLimit
	}
	entries := s.service.RecentErrors(core.ErrorLogFilter{
		ToolID: r.URL.Query().Get("tool"),
		Limit:  limit,
	})
	if entries == nil {
		entries = []core.ErrorEntry{}
	}
	writeJSON(w, entries)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseBoolParam parses an optional boolean query parameter. A bare
// parameter ("?force") counts as true.
func parseBoolParam(r *http.Request, name string) (bool, error) {
	q := r.URL.Query()
	if !q.Has(name) {
		return false, nil
	}
	val := q.Get(name)
	if val == "" {
		return true, nil
	}
	return strconv.ParseBool(val)
}

// clientIP strips the port from a RemoteAddr.
func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
