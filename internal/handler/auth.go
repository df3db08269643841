package handler

import (
	"net/http"
	"slices"
	"strings"

	"github.com/xenking/extraweb/internal/domain/auth"
	"github.com/xenking/extraweb/pkg/httpmiddleware"
)

// bearer extracts the token from the Authorization header. Both
// "Bearer <token>" and a bare token are accepted.
func bearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if v == "" {
		return ""
	}
	if scheme, token, ok := strings.Cut(v, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return v
}

// authenticate requires a valid token and, when roles are given, one of them.
func (h *Handler) authenticate(roles ...auth.Role) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" {
				h.writeErr(w, r, auth.ErrInvalidToken)
				return
			}
			p, err := h.Tokens.Verify(token)
			if err != nil {
				h.writeErr(w, r, err)
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, p.Role) {
				h.writeErr(w, r, auth.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// optionalAuth attaches the principal when a valid token is present and
// ignores missing or invalid tokens.
func (h *Handler) optionalAuth() httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearer(r); token != "" {
				if p, err := h.Tokens.Verify(token); err == nil {
					r = r.WithContext(auth.WithPrincipal(r.Context(), p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principal returns the authenticated caller. Routes without authenticate
// get the zero Principal.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// principalKey keys rate limits by user.
func principalKey(r *http.Request) string {
	return principal(r).UserID
}
