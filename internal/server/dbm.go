package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/civir-gex/sgextools/internal/dbm"
	httpmw "github.com/civir-gex/sgextools/internal/http"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type createDatabaseRequest struct {
	Kind string `json:"tipo"`
	Name string `json:"nombre"`
}

type createTableRequest struct {
	Kind     string         `json:"tipo"`
	Database string         `json:"base"`
	Model    string         `json:"tabla"`
	Record   map[string]any `json:"registro"`
}

// Status is the body of bootstrap operations.
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      any    `json:"id,omitempty"`
}

// Models lists the registered models.
type Models struct {
	Status string   `json:"status"`
	Models []string `json:"modelos_disponibles"`
}

func (s *Server) createDatabase(w http.ResponseWriter, r *http.Request) {
	var req createDatabaseRequest

	switch httpmw.MediaType(r) {
	case "application/json":
		if err := httpmw.DecodeJSON(r, &req); err != nil {
			httpmw.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		req.Kind = r.FormValue("tipo")
		req.Name = r.FormValue("nombre")
	default:
		httpmw.WriteError(w, http.StatusBadRequest, httpmw.ErrUnsupportedContentType.Error())
		return
	}

	if req.Kind == "" || req.Name == "" {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, "missing required fields: tipo and nombre")
		return
	}

	m, ok := s.openDatabase(w, r, req.Kind, req.Name)
	if !ok {
		return
	}
	defer m.Close()

	s.countDB(r, "create_database", req.Kind)
	s.logs.DB.Info().Str("base", req.Name).Msg("Database verified or created")
	httpmw.WriteJSON(w, http.StatusOK, Status{Status: "ok", Message: fmt.Sprintf("database '%s' ready", req.Name)})
}

func (s *Server) createTable(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := httpmw.DecodeJSON(r, &req); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, httpmw.ErrUnsupportedContentType) {
			status = http.StatusBadRequest
		}
		httpmw.WriteError(w, status, err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = string(dbm.KindMSSQL)
	}
	if req.Database == "" || req.Model == "" {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, "missing required fields: base and tabla")
		return
	}

	schema, ok := s.registry.Lookup(req.Model)
	if !ok {
		httpmw.WriteError(w, http.StatusNotFound, fmt.Sprintf("model '%s' not found", req.Model))
		return
	}

	m, ok := s.openDatabase(w, r, req.Kind, req.Database)
	if !ok {
		return
	}
	defer m.Close()

	if err := m.EnsureTable(r.Context(), schema); err != nil {
		s.logs.DB.Error().Err(err).Str("tabla", schema.Table).Msg("Failed to create table")
		httpmw.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.countDB(r, "create_table", req.Kind)

	resp := Status{Status: "ok", Message: fmt.Sprintf("table '%s' ready in database '%s'.", req.Model, req.Database)}

	if len(req.Record) > 0 {
		pk, err := m.Insert(r.Context(), schema, req.Record)
		if err != nil {
			if errors.Is(err, dbm.ErrInvalidRecord) {
				s.logs.DB.Warn().Err(err).Str("tabla", schema.Table).Msg("Rejected record")
				httpmw.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid record for model '%s': %s", req.Model, err))
				return
			}
			s.logs.DB.Error().Err(err).Str("tabla", schema.Table).Msg("Failed to insert record")
			httpmw.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.countDB(r, "insert", req.Kind)
		resp.Message += " Record inserted."
		resp.ID = pk
	}

	httpmw.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	httpmw.WriteJSON(w, http.StatusOK, Models{Status: "ok", Models: s.registry.Names()})
}

// openDatabase resolves the connection settings and opens a manager, writing the
// error response on failure.
func (s *Server) openDatabase(w http.ResponseWriter, r *http.Request, kind, name string) (dbm.Manager, bool) {
	cfg, err := dbm.ConfigFrom(s.env)
	if err != nil {
		httpmw.WriteError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}

	m, err := s.openDB(r.Context(), kind, name, cfg, s.logs.DB)
	if err != nil {
		if errors.Is(err, dbm.ErrUnsupportedDatabase) || errors.Is(err, dbm.ErrInvalidIdentifier) {
			httpmw.WriteError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		s.logs.DB.Error().Err(err).Str("base", name).Msg("Failed to open database")
		httpmw.WriteError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}

	return m, true
}

func (s *Server) countDB(r *http.Request, op, kind string) {
	s.metrics.DatabaseOperations.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("kind", kind),
	))
}
