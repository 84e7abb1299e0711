// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const (
	memberIDKey ContextKey = "memberID"
	orgIDKey    ContextKey = "orgID"
)

// TokenValidator is an interface for validating access tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (Principal, error)
}

// Principal identifies the organization member a token was issued to.
type Principal interface {
	GetMemberID() uuid.UUID
	GetOrgID() uuid.UUID
}

// AuthMiddleware creates middleware that validates bearer tokens and adds
// the requester's member and organization ids to the request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Handle case-insensitive "Bearer" prefix
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := validator.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			memberID, orgID := principal.GetMemberID(), principal.GetOrgID()
			if memberID == uuid.Nil || orgID == uuid.Nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), memberID, orgID)))
		})
	}
}

// WithIdentity returns a context carrying the requester's ids.
func WithIdentity(ctx context.Context, memberID, orgID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, memberIDKey, memberID)
	return context.WithValue(ctx, orgIDKey, orgID)
}

// GetMemberID extracts the authenticated member ID from the request context.
func GetMemberID(r *http.Request) (uuid.UUID, error) {
	memberID, ok := r.Context().Value(memberIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("member ID not found in request context")
	}
	return memberID, nil
}

// GetOrgID extracts the requester's organization ID from the request context.
func GetOrgID(r *http.Request) (uuid.UUID, error) {
	orgID, ok := r.Context().Value(orgIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("organization ID not found in request context")
	}
	return orgID, nil
}
