package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Token sources reported by Extract.
const (
	SourceHeader  = "Authorization header"
	SourceCookie  = "cookie"
	SourceQuery   = "query param"
	SourceBody    = "body JSON"
	SourceUnknown = "unknown"
)

// TokenCookieName is the cookie and query parameter carrying the session token.
const TokenCookieName = "token"

const maxBodyPeek = 1 << 20 // 1MiB

var (
	// ErrUnauthorized is the parent of every authentication failure.
	ErrUnauthorized = errors.New("unauthorized")
	ErrMissingToken = fmt.Errorf("%w: token not provided", ErrUnauthorized)
	ErrInvalidToken = fmt.Errorf("%w: token invalid or expired", ErrUnauthorized)
)

// Extract locates a session token in r. The first match wins, in order:
// Authorization bearer header, "token" cookie, "token" query parameter and,
// for POST, PUT and PATCH requests, the "token" field of a JSON object body.
// It returns the token and a label naming where it was found.
func Extract(r *http.Request) (string, string) {
	if header := r.Header.Get("Authorization"); len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:]), SourceHeader
	}

	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value, SourceCookie
	}

	if query := r.URL.Query(); query.Has(TokenCookieName) {
		return query.Get(TokenCookieName), SourceQuery
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		if token, ok := tokenFromBody(r); ok {
			return token, SourceBody
		}
	}

	return "", SourceUnknown
}

// tokenFromBody reads the body, restores it for later handlers and looks for a "token" field.
func tokenFromBody(r *http.Request) (string, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", false
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeek))
	// rest of the body, if any, is kept behind what was already read
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(data), r.Body), Closer: r.Body}
	if err != nil || len(data) == 0 {
		return "", false
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return "", false
	}
	raw, ok := body[TokenCookieName]
	if !ok {
		return "", false
	}

	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", false
	}

	return token, true
}

type readCloser struct {
	io.Reader
	io.Closer
}
