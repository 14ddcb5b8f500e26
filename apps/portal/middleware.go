package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gramsetu/scheme-portal/pkg/auth"
	"github.com/gramsetu/scheme-portal/pkg/convkey"
	"github.com/gramsetu/scheme-portal/pkg/messaging"
	"github.com/gramsetu/scheme-portal/pkg/store"
)

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Allow all for dev, or specific origin
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware validates the bearer credential and stores the claims in
// the request context for handlers.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateToken(auth.StripBearer(tokenString))
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), auth.UserKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
	return claims, ok
}

// writeError maps the messaging error taxonomy onto HTTP statuses. A
// StoreUnavailable on send means "your message was not saved" and must never
// be presented as a delivery hiccup.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthenticationFailed):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrAuthorizationFailed), errors.Is(err, messaging.ErrNotAParticipant):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, store.ErrValidation), errors.Is(err, convkey.ErrInvalidParticipants):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrUnavailable):
		http.Error(w, "Storage temporarily unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
