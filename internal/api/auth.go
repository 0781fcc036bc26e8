package api

import (
	"context"
	"net/http"
)

// Identity arrives from the upstream auth proxy as a header; this service
// trusts it and never sees credentials.
const userIDHeader = "X-User-ID"

type userIDKey struct{}

// AuthMiddleware rejects requests without an authenticated user id and makes
// the id available to handlers via UserID.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userIDHeader)
		if userID == "" {
			http.Error(w, "missing user identity", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey{}, userID)))
	})
}

func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey{}).(string)
	return id
}
