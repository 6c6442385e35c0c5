// Package server exposes the environment, database bootstrap and certificate
// registry APIs over HTTP.
package server

import (
	"context"
	"io"
	"net/http"

	"github.com/civir-gex/sgextools/internal/auth"
	"github.com/civir-gex/sgextools/internal/dbm"
	"github.com/civir-gex/sgextools/internal/login"
	"github.com/civir-gex/sgextools/internal/store"
	"github.com/civir-gex/sgextools/internal/telemetry"
	"github.com/rs/zerolog"
)

// Variables is the runtime key/value configuration served under /env.
type Variables interface {
	Get(key, def string) string
	Exists(key string) bool
	Set(key, value string) error
	Remove(key string) (bool, error)
	Reload() error
	Export(w io.Writer) error
	Import(r io.Reader) (int, error)
}

// DatabaseOpener opens a bootstrap manager; dbm.Open in production.
type DatabaseOpener func(ctx context.Context, kind, name string, cfg dbm.Config, log zerolog.Logger) (dbm.Manager, error)

// Loggers are the per-channel loggers used by the handlers.
type Loggers struct {
	Env zerolog.Logger
	DB  zerolog.Logger
	SAT zerolog.Logger
}

// Config wires the server dependencies.
type Config struct {
	Env          Variables
	Certificates store.CertificateStore
	Tokens       *auth.Manager
	Login        *login.Handler
	Registry     *dbm.Registry
	OpenDatabase DatabaseOpener
	Metrics      *telemetry.Metrics
	Logs         Loggers
}

// Server wraps the HTTP handlers and their dependencies.
type Server struct {
	env      Variables
	certs    store.CertificateStore
	tokens   *auth.Manager
	login    *login.Handler
	registry *dbm.Registry
	openDB   DatabaseOpener
	metrics  *telemetry.Metrics
	logs     Loggers
}

func New(cfg Config) *Server {
	s := &Server{
		env:      cfg.Env,
		certs:    cfg.Certificates,
		tokens:   cfg.Tokens,
		login:    cfg.Login,
		registry: cfg.Registry,
		openDB:   cfg.OpenDatabase,
		metrics:  cfg.Metrics,
		logs:     cfg.Logs,
	}
	if s.registry == nil {
		s.registry = dbm.DefaultRegistry
	}
	if s.openDB == nil {
		s.openDB = dbm.Open
	}
	if s.metrics == nil {
		s.metrics = telemetry.GetMetrics()
	}
	return s
}

// Handler returns the route table. Everything except /health and the login
// routes requires a valid session token.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if s.login != nil {
		s.login.Register(mux)
	}

	protected := s.tokens.Middleware()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protected(h))
	}

	handle("GET /env/get", s.getVariable)
	handle("POST /env/set", s.setVariable)
	handle("DELETE /env/remove", s.removeVariable)
	handle("POST /env/reload", s.reloadVariables)
	handle("GET /env/export", s.exportVariables)
	handle("POST /env/import", s.importVariables)

	handle("POST /dbm/db", s.createDatabase)
	handle("POST /dbm/tabla", s.createTable)
	handle("GET /dbm/tabla", s.listModels)

	handle("POST /sat/certificados", s.registerCertificate)
	handle("GET /sat/certificados", s.listCertificates)
	handle("GET /sat/certificados/{rfc}", s.getCertificate)
	handle("DELETE /sat/certificados/{rfc}", s.deleteCertificate)

	return mux
}

// Message is the body of operations that only report success.
type Message struct {
	Message string `json:"message"`
}
