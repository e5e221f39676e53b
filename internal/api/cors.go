package api

import (
	"net/http"
	"strings"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
)

// corsPolicy decides which origins may call the API.
//
// "*" allows any origin without credentials. Anything else is a
// comma-separated allowlist whose origins may send credentials.
type corsPolicy struct {
	any     bool
	origins map[string]bool
}

func newCORSPolicy(allowed string) corsPolicy {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" || allowed == "*" {
		return corsPolicy{any: true}
	}

	p := corsPolicy{origins: make(map[string]bool)}
	for _, origin := range strings.Split(allowed, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			p.origins[origin] = true
		}
	}
	return p
}

// wrap adds CORS headers and answers preflight requests.
func (p corsPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := false

		switch {
		case origin == "":
		case p.any:
			w.Header().Set("Access-Control-Allow-Origin", "*")
			allowed = true
		case p.origins[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
			allowed = true
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", corsMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
