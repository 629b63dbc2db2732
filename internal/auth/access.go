package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"grammarrelay/internal/util"
)

var (
	ErrMissingKey = errors.New("authentication required")
	ErrInvalidKey = errors.New("invalid credentials")
)

// VerifyRequest checks the relay access key. Browsers' EventSource cannot
// set headers, so the key is also accepted as the "key" query parameter.
func VerifyRequest(r *http.Request, key string) error {
	if key == "" {
		return nil
	}
	token := ""
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token = strings.TrimSpace(authHeader[7:])
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("key"))
	}
	if token == "" {
		return ErrMissingKey
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
		return ErrInvalidKey
	}
	return nil
}

// RequireAccessKey rejects requests without the configured key. An empty
// key disables the check.
func RequireAccessKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := VerifyRequest(r, key); err != nil {
				util.WriteJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
