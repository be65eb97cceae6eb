// Package http provides the read-only browse API over the persistence engine.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/rowmap/adapters/metrics"
	"github.com/artpar/rowmap/core/convention"
	"github.com/artpar/rowmap/core/model"
	"github.com/artpar/rowmap/core/persist"
	"github.com/artpar/rowmap/core/relation"
	"github.com/artpar/rowmap/core/schema"
)

// Listing limits for /records.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ErrorResponseBody is the body of every error response.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EntitySummary is one entry of GET /entities.
type EntitySummary struct {
	Name        string `json:"name"`
	Table       string `json:"table"`
	Fields      int    `json:"fields"`
	Description string `json:"description,omitempty"`
}

// FieldInfo describes one derived field.
type FieldInfo struct {
	Name     string `json:"name"`
	Column   string `json:"column"`
	Type     string `json:"type"`
	SQLType  string `json:"sql_type"`
	Nullable bool   `json:"nullable"`
	Ref      string `json:"ref,omitempty"`
	Identity bool   `json:"identity,omitempty"`
	Index    bool   `json:"index,omitempty"`
}

// EntityInfo is the body of GET /entities/{entity}.
type EntityInfo struct {
	Name   string      `json:"name"`
	Table  string      `json:"table"`
	Fields []FieldInfo `json:"fields"`
}

// EngineSource yields the engine to serve each request with. A
// bootstrap.Context is one: its engine changes on reload.
type EngineSource interface {
	Engine() *persist.Engine
}

type fixedEngine struct{ eng *persist.Engine }

func (f fixedEngine) Engine() *persist.Engine { return f.eng }

// Handler serves the browse API.
type Handler struct {
	source EngineSource
	logger zerolog.Logger
}

// NewHandler creates a browse API handler over a single engine.
func NewHandler(engine *persist.Engine, logger zerolog.Logger) *Handler {
	return NewHandlerFrom(fixedEngine{engine}, logger)
}

// NewHandlerFrom creates a browse API handler that asks src for the
// engine on every request.
func NewHandlerFrom(src EngineSource, logger zerolog.Logger) *Handler {
	return &Handler{source: src, logger: logger}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListEntities lists the registered entity types.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	decls := h.source.Engine().Registry().List()

	out := make([]EntitySummary, len(decls))
	for i, d := range decls {
		out[i] = EntitySummary{
			Name:        d.Name,
			Table:       convention.TableName(d),
			Fields:      len(d.Fields),
			Description: d.Description,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// GetEntity describes one entity type.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	d, err := h.source.Engine().Describe(r.Context(), chi.URLParam(r, "entity"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	info := EntityInfo{Name: d.Name, Table: d.Table, Fields: make([]FieldInfo, len(d.Fields))}
	for i, f := range d.Fields {
		info.Fields[i] = FieldInfo{
			Name:     f.Name,
			Column:   f.Column,
			Type:     string(f.Type),
			SQLType:  f.SQLType,
			Nullable: f.Nullable,
			Ref:      f.Ref,
			Identity: f.Identity,
			Index:    f.Index,
		}
	}
	writeJSON(w, http.StatusOK, info)
}

// Count returns the number of rows of an entity type.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	n, err := h.source.Engine().Count(r.Context(), entity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity": entity, "count": n})
}

// ListRecords lists hydrated records in identity order.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	limit := DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeErrorBody(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, MaxLimit)
	}

	data := make([]map[string]any, 0)
	for e, err := range h.source.Engine().ListAll(r.Context(), entity).Limit(limit).All() {
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		data = append(data, Encode(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": data, "count": len(data)})
}

// GetRecord returns one hydrated record.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeErrorBody(w, http.StatusBadRequest, "bad_request", "id must be a positive integer")
		return
	}

	e, found, err := h.source.Engine().FindByID(r.Context(), entity, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		writeErrorBody(w, http.StatusNotFound, "not_found", entity+" #"+strconv.FormatInt(id, 10)+" not found")
		return
	}

	writeJSON(w, http.StatusOK, Encode(e))
}

// Encode renders an entity and its loaded references as JSON-ready values.
// Absent values become null; blobs are base64 encoded by encoding/json.
func Encode(e model.Entity) map[string]any {
	decl := e.Schema()
	out := make(map[string]any, len(decl.Fields)+1)
	out[convention.IdentityColumn] = e.ID()

	for _, f := range decl.Fields {
		if f.Identity {
			out[f.Name] = e.ID()
			continue
		}

		v := e.Get(f.Name)
		if f.IsReference() {
			if ref, ok := v.(model.Entity); ok && !model.IsNil(ref) {
				out[f.Name] = Encode(ref)
			} else {
				out[f.Name] = nil
			}
			continue
		}
		out[f.Name] = v
	}
	return out
}

// writeError maps an engine error to a status code.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, schema.ErrUnknownEntity):
		writeErrorBody(w, http.StatusNotFound, "unknown_entity", err.Error())
	case errors.Is(err, relation.ErrDanglingReference):
		writeErrorBody(w, http.StatusConflict, "dangling_reference", err.Error())
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("browse request failed")
		writeErrorBody(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponseBody{Error: ErrorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // Optional handler for MetricsPath (default: promhttp.Handler())
	MetricsPath    string       // default: /metrics
	Version        string
}

// NewRouter creates the browse API router.
func NewRouter(h *Handler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))

		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		handler := cfg.MetricsHandler
		if handler == nil {
			handler = promhttp.Handler()
		}
		r.Handle(path, handler)
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	r.Get("/healthz", h.Health)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version, "service": "rowmap"})
	})

	r.Route("/entities", func(r chi.Router) {
		r.Get("/", h.ListEntities)
		r.Route("/{entity}", func(r chi.Router) {
			r.Get("/", h.GetEntity)
			r.Get("/count", h.Count)
			r.Get("/records", h.ListRecords)
			r.Get("/records/{id}", h.GetRecord)
		})
	})

	return r
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for internal endpoints
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}

			m.RequestsTotal.WithLabelValues(r.Method, route, statusLabel(ww.Status())).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware creates middleware that logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/healthz") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
