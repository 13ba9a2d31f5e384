package middleware

import (
	"encoding/json"
	"net/http"
	"net/textproto"
	"strings"
)

const bearerPrefix = "Bearer "

// UnauthorizedResponse is the body sent when a request is rejected
type UnauthorizedResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIKeyAuth rejects requests that do not present apiKey.
//
// With headerName set, only that header is read. Otherwise the key is taken
// from "Authorization: Bearer <key>", falling back to X-API-Key. A missing
// header never matches, even when apiKey is empty; callers disable the check
// by not installing the middleware.
//
// The comparison is a plain string comparison and is not constant time.
func APIKeyAuth(apiKey, headerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided, ok := providedKey(r.Header, headerName)
			if !ok || provided != apiKey {
				respondUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func providedKey(h http.Header, headerName string) (string, bool) {
	if headerName != "" {
		return lookupHeader(h, headerName)
	}

	if auth := h.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return auth[len(bearerPrefix):], true
	}
	return lookupHeader(h, "X-API-Key")
}

// lookupHeader distinguishes an absent header from one sent with an empty value
func lookupHeader(h http.Header, name string) (string, bool) {
	values, ok := h[textproto.CanonicalMIMEHeaderKey(name)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(UnauthorizedResponse{
		Error:   "Unauthorized",
		Message: "Invalid or missing API key",
	})
}
