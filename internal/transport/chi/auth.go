package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication (liveness, health, metrics).
var exemptPaths = map[string]struct{}{
	"/alive":   {},
	"/health":  {},
	"/metrics": {},
}

// APIKeyMiddleware returns a middleware that validates client API keys sent as
// X-API-Key or as a Bearer token. If apiKeys is empty, authentication is disabled (pass-through).
func APIKeyMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var validKeys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			validKeys = append(validKeys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled: pass everything through
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, msg := credentials(r)
			if msg != "" {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
				return
			}
			if !matches(validKeys, token) {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// credentials extracts the presented key. X-API-Key wins over Authorization.
func credentials(r *http.Request) (token, problem string) {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k, ""
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing api key"
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", "authorization header must use Bearer scheme"
	}
	return auth[len(bearerPrefix):], ""
}

func matches(valid [][]byte, token string) bool {
	t := []byte(token)
	for _, k := range valid {
		if subtle.ConstantTimeCompare(k, t) == 1 {
			return true
		}
	}
	return false
}
