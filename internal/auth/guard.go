package auth

import (
	"context"

	"github.com/adotb/adotb-go/internal/apperrors"
)

// SignInNotice is the message sent over a chat connection that arrives
// without a valid token, before the connection is closed.
const SignInNotice = "Please sign in first. I look forward to answering your questions."

// ErrNoToken rejects a request that carries no access token at all.
var ErrNoToken = apperrors.AccessDenied("Access token is missing")

// RequireAdmin validates the token and checks the admin role, returning the
// user ID on success. Data management endpoints call this before doing
// anything else.
func RequireAdmin(ctx context.Context, a Authenticator, token string) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	userID, err := a.CheckToken(ctx, token)
	if err != nil {
		return "", err
	}
	isAdmin, err := a.CheckRole(ctx, userID, "admin")
	if err != nil {
		return "", err
	}
	if !isAdmin {
		return "", apperrors.AccessDenied("Unauthorized access. User is not admin.")
	}
	return userID, nil
}

// ResolveLabels resolves a session's label entitlements. Requesting nothing
// means everything the user may access; otherwise the result is the
// requested labels narrowed to the accessible ones, in requested order.
// The result is never wider than accessible.
func ResolveLabels(requested, accessible []string) []string {
	if len(requested) == 0 {
		return append([]string(nil), accessible...)
	}
	return FilterLabels(requested, accessible)
}

// FilterLabels returns requested ∩ accessible, preserving the requested
// order.
func FilterLabels(requested, accessible []string) []string {
	allowed := make(map[string]bool, len(accessible))
	for _, l := range accessible {
		allowed[l] = true
	}
	resolved := make([]string, 0, len(requested))
	for _, l := range requested {
		if allowed[l] {
			resolved = append(resolved, l)
		}
	}
	return resolved
}
