package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/MattMyers204453/smashrank-api/pkg/auth"
)

type claimsContextKey struct{}

// requireBearer guards a subrouter with access-token auth. Verified claims
// land in the request context for handlers that need the caller's identity.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, prefix) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Missing or invalid Authorization header."})
			return
		}
		claims, err := s.auth.ValidateToken(strings.TrimPrefix(header, prefix))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid or expired token."})
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerClaims returns the claims requireBearer stored, or nil on routes
// mounted outside the middleware.
func callerClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsContextKey{}).(*auth.Claims)
	return claims
}
