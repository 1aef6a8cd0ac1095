// Package api exposes the upload, alignment, grid comparison and export
// endpoints over HTTP.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/tellurium-labs/assay.report/internal/compare"
	"github.com/tellurium-labs/assay.report/internal/config"
	"github.com/tellurium-labs/assay.report/internal/grid"
	"github.com/tellurium-labs/assay.report/internal/httputil"
	"github.com/tellurium-labs/assay.report/internal/session"
	"github.com/tellurium-labs/assay.report/internal/tabular"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	store *session.Store
	cfg   *config.Config
}

func NewServer(store *session.Store, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{store: store, cfg: cfg}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/data/upload", s.uploadDatasets)
	mux.HandleFunc("/api/data/columns", s.listColumns)
	mux.HandleFunc("/api/data/session", s.deleteSession)
	mux.HandleFunc("/api/analysis/align", s.alignDatasets)
	mux.HandleFunc("/api/analysis/grid", s.compareGrid)
	mux.HandleFunc("/api/analysis/summary", s.summariseAlignment)
	mux.HandleFunc("/api/analysis/methods", s.listMethods)
	mux.HandleFunc("/api/export/pairs.csv", s.exportPairs)
	mux.HandleFunc("/api/export/grid.csv", s.exportGrid)
	mux.HandleFunc("/api/report/heatmap", s.renderHeatmap)
	mux.HandleFunc("/api/report/scatter.png", s.renderScatter)
	mux.HandleFunc("/api/report/residuals.png", s.renderResiduals)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

// paramError reports a missing or malformed query parameter.
type paramError struct {
	Name  string
	Value string
}

func (e *paramError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("missing required parameter %q", e.Name)
	}
	return fmt.Sprintf("invalid parameter %s=%q", e.Name, e.Value)
}

// writeError maps the error taxonomy onto HTTP statuses: schema and
// parameter problems are the client's fault, missing sessions are 404,
// anything else is a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var schemaErr *tabular.SchemaError
	var methodErr *compare.UnknownMethodError
	var resErr *grid.ResolutionError
	var parErr *paramError
	switch {
	case errors.Is(err, session.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.As(err, &schemaErr), errors.As(err, &methodErr),
		errors.As(err, &resErr), errors.As(err, &parErr):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
