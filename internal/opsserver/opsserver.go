// Package opsserver is a small read-only HTTP surface for probing a
// long-running logweave instance: liveness, Prometheus exposition, and two
// proxies onto the catalog's read paths. It is not the Streamlit approval
// UI from spec.md §1 -- that remains an external collaborator. Grounded on
// the teacher's server.go/internal/routerConfig (gorilla/mux router,
// gorilla/handlers logging middleware), trimmed to this package's much
// smaller surface.
package opsserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logweave/logweave/internal/catalog"
	"github.com/logweave/logweave/internal/index"
	"github.com/logweave/logweave/internal/logx"
)

// Server serves the ops HTTP surface.
type Server struct {
	Cat      catalog.Catalog
	IndexMgr *index.Manager
}

// Handler builds the full mux.Router wrapped in a combined-logging
// middleware, matching the teacher's server.go composition.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/unmatched/recent", s.handleRecentUnmatched).Methods(http.MethodGet)
	r.HandleFunc("/templates", s.handleTemplates).Methods(http.MethodGet)

	return handlers.CombinedLoggingHandler(logx.InfoWriter, r)
}

// ListenAndServe starts an http.Server bound to addr using Handler().
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.IndexMgr.GetActive() == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("index not yet loaded"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRecentUnmatched(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := s.Cat.GetRecentUnmatched(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.Cat.FetchActiveTemplates(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, templates)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warnf("opsserver: encoding response: %v", err)
	}
}
