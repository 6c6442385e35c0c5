// Package login serves the directory login and the session token endpoints.
package login

import (
	"errors"
	"net/http"

	"github.com/civir-gex/sgextools/internal/auth"
	"github.com/civir-gex/sgextools/internal/directory"
	httpmw "github.com/civir-gex/sgextools/internal/http"
	"github.com/civir-gex/sgextools/internal/telemetry"
	"github.com/rs/zerolog"
)

// Credentials is the login request body.
type Credentials struct {
	User     string `json:"usuario"`
	Password string `json:"contrasena"`
}

// Profile is the login response: the directory identity plus the issued token.
type Profile struct {
	GivenName     string              `json:"Nombre"`
	Surname       string              `json:"Apellidos"`
	DisplayName   string              `json:"NombreMostrar"`
	Telephone     string              `json:"Teléfono"`
	Mail          string              `json:"CorreoElectrónico"`
	Groups        map[string][]string `json:"MiembroDe"`
	Authenticated bool                `json:"Autentificado"`
	Description   string              `json:"Descripción"`
	Token         string              `json:"Token"`
}

// TokenStatus answers GET /auth/login.
type TokenStatus struct {
	Message string `json:"msg"`
	Source  string `json:"origen"`
}

// Extended answers POST /auth/extend.
type Extended struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Source string `json:"origen"`
}

type Handler struct {
	directory    directory.Authenticator
	tokens       *auth.Manager
	secureCookie bool
	metrics      *telemetry.Metrics
	log          zerolog.Logger
}

type Option func(*Handler)

// WithSecureCookie marks the token cookie Secure, for deployments behind TLS.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) { h.secureCookie = secure }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

func NewHandler(dir directory.Authenticator, tokens *auth.Manager, opts ...Option) *Handler {
	h := &Handler{
		directory: dir,
		tokens:    tokens,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = telemetry.GetMetrics()
	}
	return h
}

// Register mounts the login routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("GET /auth/login", h.Status)
	mux.HandleFunc("POST /auth/extend", h.Extend)
}

// Login authenticates against the directory and issues a session token, returned
// in the body and as an HTTP-only cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpmw.DecodeJSON(r, &creds); err != nil {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if creds.User == "" || creds.Password == "" {
		httpmw.WriteError(w, http.StatusUnprocessableEntity, "usuario and contrasena are required")
		return
	}

	origin := clientIP(r)
	log := h.log.With().Str("usuario", creds.User).Str("desde", origin).Logger()
	log.Info().Msg("Authentication started")

	identity, err := h.directory.Authenticate(r.Context(), creds.User, creds.Password)
	if err != nil {
		h.metrics.LoginFailures.Add(r.Context(), 1)
		httpmw.WriteError(w, http.StatusUnauthorized, h.loginFailure(log, creds.User, err))
		return
	}

	token, err := h.tokens.Generate(map[string]any{
		auth.ClaimUser:   creds.User,
		auth.ClaimOrigin: origin,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate token")
		httpmw.WriteError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	h.metrics.TokensIssued.Add(r.Context(), 1)
	log.Info().Msg("Authentication succeeded")

	h.setCookie(w, token)
	httpmw.WriteJSON(w, http.StatusOK, Profile{
		GivenName:     identity.GivenName,
		Surname:       identity.Surname,
		DisplayName:   identity.DisplayName,
		Telephone:     identity.Telephone,
		Mail:          identity.Mail,
		Groups:        identity.Groups(),
		Authenticated: true,
		Description:   identity.Description,
		Token:         token,
	})
}

func (h *Handler) loginFailure(log zerolog.Logger, user string, err error) string {
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials), errors.Is(err, directory.ErrUserNotFound):
		log.Warn().Err(err).Msg("Invalid credentials")
		return "invalid credentials for user: " + user
	case errors.Is(err, directory.ErrServerUnavailable):
		log.Warn().Err(err).Msg("Directory server not responding")
		return "directory server unavailable to validate user: " + user
	default:
		log.Error().Err(err).Msg("Unexpected error during authentication")
		return "authentication failed"
	}
}

// Status reports when the presented token expires and where it was found.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	_, session, source, ok := h.session(w, r)
	if !ok {
		return
	}

	httpmw.WriteJSON(w, http.StatusOK, TokenStatus{
		Message: "valid until " + session.ExpiresText(),
		Source:  source,
	})
}

// Extend reissues the presented token with a fresh expiration and resets the cookie.
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	token, _, source, ok := h.session(w, r)
	if !ok {
		return
	}

	refreshed, err := h.tokens.Refresh(token)
	if err != nil {
		h.metrics.TokensRejected.Add(r.Context(), 1)
		httpmw.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	h.metrics.TokensRefreshed.Add(r.Context(), 1)

	h.setCookie(w, refreshed)
	httpmw.WriteJSON(w, http.StatusOK, Extended{Status: "ok", Token: refreshed, Source: source})
}

// session extracts and decodes the request token, writing a 401 when it is
// missing or invalid.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *auth.Session, string, bool) {
	token, source := auth.Extract(r)
	if token == "" {
		h.metrics.TokensRejected.Add(r.Context(), 1)
		httpmw.WriteError(w, http.StatusUnauthorized, "token not provided")
		return "", nil, source, false
	}

	session, err := h.tokens.Decode(token)
	if err != nil {
		h.log.Warn().Err(err).Str("origen", source).Msg("Token rejected")
		h.metrics.TokensRejected.Add(r.Context(), 1)
		httpmw.WriteError(w, http.StatusUnauthorized, "invalid or expired token")
		return "", nil, source, false
	}

	return token, session, source, true
}

func (h *Handler) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func clientIP(r *http.Request) string {
	if ip := httpmw.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return httpmw.ExtractClientIP(r)
}
