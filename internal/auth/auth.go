// Package auth verifies user tokens and resolves which document labels a
// user may query. The backing service is Supabase: GoTrue for token checks
// and PostgREST tables for roles and label entitlements.
package auth

import "context"

// Authenticator is the surface the server and chat sessions need from the
// identity provider. Implementations must be safe to call from multiple
// goroutines.
type Authenticator interface {
	// CheckToken validates an access token and returns the user ID it
	// belongs to. An invalid or expired token is an access-denied error.
	CheckToken(ctx context.Context, token string) (string, error)

	// CheckRole reports whether the user holds the given role.
	CheckRole(ctx context.Context, userID, role string) (bool, error)

	// AccessibleLabels returns the document labels the user is entitled to
	// query, from the user-type mapping.
	AccessibleLabels(ctx context.Context, userID string) ([]string, error)
}
