package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/civir-gex/sgextools/internal/config"
	httpmw "github.com/civir-gex/sgextools/internal/http"
)

const maxImportBody = 1 << 20

// Variable is a single key/value pair. Value is null when the key is unset and
// no default was given.
type Variable struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

type setVariableRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) getVariable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("key")
	if key == "" {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, "query parameter key is required")
		return
	}

	resp := Variable{Key: key}
	if value := s.env.Get(key, q.Get("default")); value != "" || q.Has("default") || s.env.Exists(key) {
		resp.Value = &value
	}

	httpmw.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) setVariable(w http.ResponseWriter, r *http.Request) {
	var req setVariableRequest
	if err := httpmw.DecodeJSON(r, &req); err != nil {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.Key == "" {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, "key is required")
		return
	}

	err := s.env.Set(req.Key, req.Value)
	switch {
	case errors.Is(err, config.ErrInvalidKey), errors.Is(err, config.ErrUnsupportedValue):
		httpmw.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.logs.Env.Error().Err(err).Str("key", req.Key).Msg("Failed to set variable")
		httpmw.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httpmw.WriteJSON(w, http.StatusOK, Message{Message: fmt.Sprintf("variable %s set", req.Key)})
}

func (s *Server) removeVariable(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, "query parameter key is required")
		return
	}

	removed, err := s.env.Remove(key)
	if err != nil {
		s.logs.Env.Error().Err(err).Str("key", key).Msg("Failed to remove variable")
		httpmw.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		httpmw.WriteError(w, http.StatusNotFound, fmt.Sprintf("variable %s does not exist", key))
		return
	}

	httpmw.WriteJSON(w, http.StatusOK, Message{Message: fmt.Sprintf("variable %s removed", key)})
}

func (s *Server) reloadVariables(w http.ResponseWriter, r *http.Request) {
	if err := s.env.Reload(); err != nil {
		s.logs.Env.Error().Err(err).Msg("Failed to reload variables")
		httpmw.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httpmw.WriteJSON(w, http.StatusOK, Message{Message: "variables reloaded from .env"})
}

func (s *Server) exportVariables(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.env.Export(w); err != nil {
		s.logs.Env.Error().Err(err).Msg("Failed to export variables")
	}
}

func (s *Server) importVariables(w http.ResponseWriter, r *http.Request) {
	if httpmw.MediaType(r) != "application/json" {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, httpmw.ErrUnsupportedContentType.Error())
		return
	}

	n, err := s.env.Import(io.LimitReader(r.Body, maxImportBody))
	if err != nil {
		s.logs.Env.Warn().Err(err).Msg("Failed to import variables")
		httpmw.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	httpmw.WriteJSON(w, http.StatusOK, Message{Message: fmt.Sprintf("%d variables imported into .env", n)})
}
