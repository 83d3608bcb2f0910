package context

import (
	"context"
	"net/http"
)

type contextKey string

const (
	authenticatedUserContextKey = contextKey("authenticatedUser")
)

// AuthUser is the actor identity carried by a verified bearer token.
// Authentication itself happens upstream; the wallet service only trusts
// the claims it is handed.
type AuthUser struct {
	ID   string
	Role string
}

const (
	AuthUserRoleCustomer = "customer"
	AuthUserRoleProvider = "provider"
	AuthUserRoleAdmin    = "admin"
)

func ContextSetAuthenticatedUser(r *http.Request, user *AuthUser) *http.Request {
	ctx := context.WithValue(r.Context(), authenticatedUserContextKey, user)
	return r.WithContext(ctx)
}

func ContextGetAuthenticatedUser(r *http.Request) *AuthUser {
	user, ok := r.Context().Value(authenticatedUserContextKey).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}
