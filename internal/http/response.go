package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

const maxJSONBody = 1 << 20

var ErrUnsupportedContentType = errors.New("unsupported content type")

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status is already on the wire, a failed body write has nowhere to go
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"detail": detail}.
func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, ErrorResponse{Detail: detail})
}

// MediaType returns the request's media type, lower-cased and without parameters.
func MediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// DecodeJSON reads a JSON request body into v. Requests that are not
// application/json fail with ErrUnsupportedContentType.
func DecodeJSON(r *http.Request, v any) error {
	if MediaType(r) != "application/json" {
		return ErrUnsupportedContentType
	}

	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
