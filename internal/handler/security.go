package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/xenking/storefront-api/internal/auth"
)

type claimsKey struct{}

// claimsFrom returns the authenticated claims set by RequireUser, or nil.
func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

// RequireUser authenticates the bearer token and stores the claims on the
// request context. Missing or invalid tokens get a 401.
func (h *Handler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			h.respondMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := h.tokens.Verify(raw)
		if err != nil {
			h.respondMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// RequireAdmin authenticates like RequireUser and additionally requires the
// admin claim. Authenticated non-admins get a 403.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return h.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := claimsFrom(r.Context()); c == nil || !c.Admin {
			h.respondMessage(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
