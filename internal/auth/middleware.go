package auth

import (
	"encoding/json"
	"net/http"
)

// Optional attaches claims when a valid token is present and lets guests through otherwise.
func (v *Verifier) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := TokenFromRequest(r); tok != "" {
			if c, err := v.Verify(tok); err == nil {
				r = r.WithContext(WithClaims(r.Context(), c))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (v *Verifier) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := v.authenticate(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
	})
}

func (v *Verifier) Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := v.authenticate(w, r)
		if !ok {
			return
		}
		if !c.IsAdmin() {
			deny(w, http.StatusForbidden, "Forbidden - Admin access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
	})
}

func (v *Verifier) authenticate(w http.ResponseWriter, r *http.Request) (*Claims, bool) {
	tok := TokenFromRequest(r)
	if tok == "" {
		deny(w, http.StatusUnauthorized, "Unauthorized - No token provided")
		return nil, false
	}
	c, err := v.Verify(tok)
	if err != nil {
		deny(w, http.StatusUnauthorized, "Unauthorized - Invalid or expired token")
		return nil, false
	}
	return c, true
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
