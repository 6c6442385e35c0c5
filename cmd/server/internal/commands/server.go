package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"filippo.io/csrf"
	"github.com/civir-gex/sgextools/internal/auth"
	"github.com/civir-gex/sgextools/internal/config"
	"github.com/civir-gex/sgextools/internal/directory"
	httpmiddleware "github.com/civir-gex/sgextools/internal/http"
	"github.com/civir-gex/sgextools/internal/logger"
	"github.com/civir-gex/sgextools/internal/login"
	"github.com/civir-gex/sgextools/internal/server"
	"github.com/civir-gex/sgextools/internal/store"
	memorystore "github.com/civir-gex/sgextools/internal/store/memory"
	postgresstore "github.com/civir-gex/sgextools/internal/store/postgres"
	"github.com/civir-gex/sgextools/internal/telemetry"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Env store keys holding the Active Directory settings when no flag is given.
const (
	envLDAPHost   = "IPAD"
	envLDAPDomain = "DOMINIOAD"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8000" env:"SGEX_LISTEN"`
	Cert   string `help:"path to TLS cert file, serves plain HTTP when empty" default:"" env:"SGEX_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"SGEX_TLS_KEY"`

	// CORS configuration
	CORSOrigins  []string `help:"allowed CORS origins" default:"http://localhost,http://127.0.0.1" env:"SGEX_CORS_ORIGINS"`
	SecureCookie bool     `help:"mark the session cookie Secure (requires HTTPS)" default:"false" env:"SGEX_SECURE_COOKIE"`

	// Runtime configuration and logs
	EnvFile             string `help:"key/value file served under /env" default:".env" env:"SGEX_ENV_FILE"`
	LogDir              string `help:"directory for per-channel log files, empty disables them" default:"logs" env:"SGEX_LOG_DIR"`
	AllowInsecureSecret bool   `help:"sign tokens with the placeholder secret when SECRET_KEY is unset (development only)" default:"false" env:"SGEX_ALLOW_INSECURE_SECRET"`

	Tracing     bool    `help:"enable tracing and metrics export over OTLP" default:"false" env:"SGEX_TRACING"`
	SampleRatio float64 `help:"trace sampling ratio" default:"1" env:"SGEX_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType     string             `help:"certificate store type (memory or postgres)" default:"memory" env:"SGEX_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Directory     DirectoryFlags     `embed:"" prefix:"ldap-"`
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"1"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"SGEX_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.MinConns > s.MaxConns {
		return fmt.Errorf("postgres min conns (%d) exceeds max conns (%d)", s.MinConns, s.MaxConns)
	}
	return nil
}

// DirectoryFlags selects the authenticator used by /auth/login.
type DirectoryFlags struct {
	Host    string        `help:"Active Directory host, falls back to IPAD in the env file" env:"SGEX_LDAP_HOST"`
	Domain  string        `help:"NetBIOS domain for the NTLM bind, falls back to DOMINIOAD in the env file" env:"SGEX_LDAP_DOMAIN"`
	BaseDN  string        `help:"search base for user lookups" default:"DC=gex,DC=local" env:"SGEX_LDAP_BASE_DN"`
	Timeout time.Duration `help:"dial and request timeout" default:"10s" env:"SGEX_LDAP_TIMEOUT"`

	DevUser     string `help:"static development user, replaces the directory when no host is configured" env:"SGEX_DEV_USER"`
	DevPassword string `help:"password of the development user" env:"SGEX_DEV_PASSWORD"`
}

// authenticator returns the LDAP authenticator, or the static development
// user when no directory host is configured.
func (d *DirectoryFlags) authenticator(env config.Getter, log zerolog.Logger) (directory.Authenticator, error) {
	cfg := directory.LDAPConfig{
		Host:    d.Host,
		Domain:  d.Domain,
		BaseDN:  d.BaseDN,
		Timeout: d.Timeout,
	}
	if cfg.Host == "" {
		cfg.Host = env.Get(envLDAPHost, "")
	}
	if cfg.Domain == "" {
		cfg.Domain = env.Get(envLDAPDomain, "")
	}

	if cfg.Host == "" && d.DevUser != "" {
		if d.DevPassword == "" {
			return nil, errors.New("development user requires a password (--ldap-dev-password or SGEX_DEV_PASSWORD)")
		}
		log.Warn().Str("user", d.DevUser).Msg("No directory host configured, authenticating the static development user only")
		return directory.NewStatic(map[string]directory.StaticUser{
			d.DevUser: {
				Password: d.DevPassword,
				Identity: directory.Identity{DisplayName: d.DevUser},
			},
		}), nil
	}

	ldap, err := directory.NewLDAP(cfg, log)
	if err != nil {
		return nil, err
	}
	return ldap, nil
}

func (c *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	logs, err := logger.NewRegistry(os.Stderr, globals.Debug, c.LogDir)
	if err != nil {
		return err
	}
	defer logs.Close()

	log := logs.Root()
	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Float64("sample_ratio", c.SampleRatio).Msg("Tracing is enabled")
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "sgextools-server",
			Version:     globals.Version,
			SampleRatio: c.SampleRatio,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without export")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}
	metrics := telemetry.GetMetrics()

	env, err := config.NewEnvStore(c.EnvFile, globals.Debug, logs.Channel(logger.ChannelEnv))
	if err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	authLog := logs.Channel(logger.ChannelAuth)
	settings, err := config.TokenSettings(env, c.AllowInsecureSecret, authLog)
	if err != nil {
		return fmt.Errorf("failed to resolve token settings: %w", err)
	}
	tokens, err := auth.NewManager(settings, auth.WithLogger(authLog))
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	dir, err := c.Directory.authenticator(env, authLog)
	if err != nil {
		return fmt.Errorf("failed to configure directory: %w", err)
	}

	certs, closeStore, err := c.createCertificateStore(ctx, logs.Channel(logger.ChannelDB))
	if err != nil {
		return err
	}
	defer closeStore()

	srv := server.New(server.Config{
		Env:          env,
		Certificates: certs,
		Tokens:       tokens,
		Login: login.NewHandler(dir, tokens,
			login.WithSecureCookie(c.SecureCookie),
			login.WithMetrics(metrics),
			login.WithLogger(authLog),
		),
		Metrics: metrics,
		Logs: server.Loggers{
			Env: logs.Channel(logger.ChannelEnv),
			DB:  logs.Channel(logger.ChannelDB),
			SAT: logs.Channel(logger.ChannelSAT),
		},
	})

	handler, err := c.buildHandler(srv.Handler(), logs.Channel(logger.ChannelHTTP), metrics)
	if err != nil {
		return err
	}

	return c.serve(ctx, configureHTTPServer(c.Listen, handler), log)
}

// buildHandler wraps the routes with the request middleware. The first
// middleware listed sees the request first.
func (c *ServerCmd) buildHandler(routes http.Handler, log zerolog.Logger, metrics *telemetry.Metrics) (http.Handler, error) {
	protection := csrf.New()
	for _, origin := range c.CORSOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid CORS origin %q: %w", origin, err)
		}
	}

	return httpmiddleware.Chain(routes,
		httpmiddleware.RequestLogger(log),
		telemetry.Middleware(metrics),
		withCORS(c.CORSOrigins),
		protection.Handler,
		httpmiddleware.ClientIPMiddleware(),
		httpmiddleware.Compress,
	), nil
}

func (c *ServerCmd) createCertificateStore(ctx context.Context, log zerolog.Logger) (store.CertificateStore, func(), error) {
	if c.StoreType != "postgres" {
		log.Info().Msg("Using in-memory certificate store")
		return memorystore.NewCertificateStore(), func() {}, nil
	}

	if err := c.PostgresStore.Validate(); err != nil {
		return nil, nil, fmt.Errorf("failed to validate postgres flags: %w", err)
	}
	pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
		ConnString:      c.PostgresStore.ConnString,
		MaxConns:        c.PostgresStore.MaxConns,
		MinConns:        c.PostgresStore.MinConns,
		MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
		MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate store pool: %w", err)
	}

	if c.PostgresStore.AutoMigrate {
		if err := postgresstore.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to migrate certificate store: %w", err)
		}
	}

	log.Info().Msg("Using PostgreSQL certificate store")
	return postgresstore.NewCertificateStore(pool), pool.Close, nil
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func (c *ServerCmd) serve(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	tls := c.Cert != "" || c.Key != ""
	if tls {
		if c.Cert == "" || c.Key == "" {
			return errors.New("TLS requires both --cert and --key")
		}
		if _, err := os.Stat(c.Cert); err != nil {
			return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
		}
		if _, err := os.Stat(c.Key); err != nil {
			return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", tls).Msg("Starting HTTP server")
		if tls {
			errCh <- srv.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// withCORS allows credentialed requests from the configured origins.
func withCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", httpmiddleware.RequestIDHeader},
		ExposedHeaders:   []string{httpmiddleware.RequestIDHeader},
		AllowCredentials: true,
	})
	return middleware.Handler
}
