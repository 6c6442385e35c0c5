package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		header     string
		cookie     string
		body       string
		wantToken  string
		wantSource string
	}{
		{
			name:       "bearer header wins over cookie",
			method:     http.MethodGet,
			target:     "/auth/login?token=Q",
			header:     "Bearer X",
			cookie:     "Y",
			wantToken:  "X",
			wantSource: SourceHeader,
		},
		{
			name:       "bearer scheme is case insensitive",
			method:     http.MethodGet,
			target:     "/",
			header:     "bEaReR   abc.def.ghi  ",
			wantToken:  "abc.def.ghi",
			wantSource: SourceHeader,
		},
		{
			name:       "non bearer header falls through to cookie",
			method:     http.MethodGet,
			target:     "/",
			header:     "Basic dXNlcjpwYXNz",
			cookie:     "Y",
			wantToken:  "Y",
			wantSource: SourceCookie,
		},
		{
			name:       "cookie wins over query",
			method:     http.MethodGet,
			target:     "/?token=Q",
			cookie:     "Y",
			wantToken:  "Y",
			wantSource: SourceCookie,
		},
		{
			name:       "query param",
			method:     http.MethodGet,
			target:     "/?token=Q",
			wantToken:  "Q",
			wantSource: SourceQuery,
		},
		{
			name:       "query wins over body",
			method:     http.MethodPost,
			target:     "/?token=Q",
			body:       `{"token":"B"}`,
			wantToken:  "Q",
			wantSource: SourceQuery,
		},
		{
			name:       "json body on post",
			method:     http.MethodPost,
			target:     "/",
			body:       `{"token":"B","otro":1}`,
			wantToken:  "B",
			wantSource: SourceBody,
		},
		{
			name:       "json body on patch",
			method:     http.MethodPatch,
			target:     "/",
			body:       `{"token":"B"}`,
			wantToken:  "B",
			wantSource: SourceBody,
		},
		{
			name:       "json body ignored on get",
			method:     http.MethodGet,
			target:     "/",
			body:       `{"token":"B"}`,
			wantSource: SourceUnknown,
		},
		{
			name:       "body without token field",
			method:     http.MethodPost,
			target:     "/",
			body:       `{"usuario":"ana"}`,
			wantSource: SourceUnknown,
		},
		{
			name:       "body that is not an object",
			method:     http.MethodPut,
			target:     "/",
			body:       `["token"]`,
			wantSource: SourceUnknown,
		},
		{
			name:       "body with non string token",
			method:     http.MethodPost,
			target:     "/",
			body:       `{"token":42}`,
			wantSource: SourceUnknown,
		},
		{
			name:       "nothing",
			method:     http.MethodGet,
			target:     "/",
			wantSource: SourceUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			r := httptest.NewRequest(tt.method, tt.target, body)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tt.cookie})
			}

			token, source := Extract(r)
			require.Equal(t, tt.wantToken, token)
			require.Equal(t, tt.wantSource, source)
		})
	}
}

func TestExtractRestoresBody(t *testing.T) {
	payload := `{"token":"B","usuario":"ana"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))

	token, source := Extract(r)
	require.Equal(t, "B", token)
	require.Equal(t, SourceBody, source)

	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Equal(t, payload, string(data))
}

func TestRequireValid(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	m := newTestManager(t, clock)

	token, err := m.Generate(map[string]any{ClaimUser: "ana"})
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := m.RequireValid(r)
		require.ErrorIs(t, err, ErrMissingToken)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/?token=garbage", nil)
		_, err := m.RequireValid(r)
		require.ErrorIs(t, err, ErrInvalidToken)
		require.ErrorIs(t, err, ErrUnauthorized)
		require.NotErrorIs(t, err, ErrMissingToken)
	})

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		got, err := m.RequireValid(r)
		require.NoError(t, err)
		require.Equal(t, token, got)
	})
}

func TestMiddleware(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	m := newTestManager(t, clock)

	token, err := m.Generate(map[string]any{ClaimUser: "ana"})
	require.NoError(t, err)

	var seen string
	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("rejects missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/env/get", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"detail":"token not provided"}`, rec.Body.String())
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/env/get?token=bad", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.JSONEq(t, `{"detail":"invalid or expired token"}`, rec.Body.String())
	})

	t.Run("passes valid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/env/get", nil)
		r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
		handler.ServeHTTP(rec, r)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, token, seen)
	})
}
