package commands

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civir-gex/sgextools/internal/directory"
	"github.com/civir-gex/sgextools/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type mapGetter map[string]string

func (m mapGetter) Get(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func TestDirectoryFlags_Authenticator(t *testing.T) {
	t.Run("ldap from env file", func(t *testing.T) {
		flags := DirectoryFlags{BaseDN: "DC=gex,DC=local"}

		auth, err := flags.authenticator(mapGetter{envLDAPHost: "10.0.0.5", envLDAPDomain: "GEX"}, zerolog.Nop())
		require.NoError(t, err)
		require.IsType(t, &directory.LDAP{}, auth)
	})

	t.Run("flags win over env file", func(t *testing.T) {
		flags := DirectoryFlags{Host: "ad.gex.local", Domain: "GEX", BaseDN: "DC=gex,DC=local", DevUser: "dev", DevPassword: "dev"}

		auth, err := flags.authenticator(mapGetter{}, zerolog.Nop())
		require.NoError(t, err)
		require.IsType(t, &directory.LDAP{}, auth)
	})

	t.Run("static development user", func(t *testing.T) {
		flags := DirectoryFlags{DevUser: "dev", DevPassword: "s3cret"}

		auth, err := flags.authenticator(mapGetter{}, zerolog.Nop())
		require.NoError(t, err)

		identity, err := auth.Authenticate(t.Context(), "dev", "s3cret")
		require.NoError(t, err)
		require.Equal(t, "dev", identity.Username)
	})

	t.Run("development user without password", func(t *testing.T) {
		flags := DirectoryFlags{DevUser: "dev"}

		_, err := flags.authenticator(mapGetter{}, zerolog.Nop())
		require.Error(t, err)
	})

	t.Run("nothing configured", func(t *testing.T) {
		flags := DirectoryFlags{BaseDN: "DC=gex,DC=local"}

		_, err := flags.authenticator(mapGetter{}, zerolog.Nop())
		require.Error(t, err)
	})
}

func TestBuildHandler(t *testing.T) {
	cmd := &ServerCmd{CORSOrigins: []string{"http://localhost", "http://127.0.0.1"}}

	routes := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler, err := cmd.buildHandler(routes, zerolog.Nop(), telemetry.NewMetrics(sdkmetric.NewMeterProvider()))
	require.NoError(t, err)

	t.Run("preflight from allowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/env/set", nil)
		r.Header.Set("Origin", "http://localhost")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, "http://localhost", w.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("cross-site post rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/env/set", nil)
		r.Header.Set("Origin", "https://attacker.example")
		r.Header.Set("Sec-Fetch-Site", "cross-site")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("cross-site post from trusted origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/env/set", nil)
		r.Header.Set("Origin", "http://127.0.0.1")
		r.Header.Set("Sec-Fetch-Site", "cross-site")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotEmpty(t, w.Header().Get("X-Request-Id"))
	})

	t.Run("non-browser client", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/env/set", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid origin", func(t *testing.T) {
		bad := &ServerCmd{CORSOrigins: []string{"localhost:3000/path"}}
		_, err := bad.buildHandler(routes, zerolog.Nop(), telemetry.NewMetrics(sdkmetric.NewMeterProvider()))
		require.Error(t, err)
	})
}
