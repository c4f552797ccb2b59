package server

import (
	"net/http"
	"strings"

	"github.com/adotb/adotb-go/internal/auth"
)

// adminOnly guards the data-management endpoints. When authentication is
// enabled the request must carry a bearer token belonging to an admin user;
// failures are rejected before any side effect with the stable 403 payload.
// With authentication disabled the guard passes everything through.
func (s *Server) adminOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Auth != nil {
			if _, err := auth.RequireAdmin(r.Context(), s.cfg.Auth, bearerToken(r)); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		next(w, r)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns an empty string if the header is absent or malformed.
func bearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return ""
	}
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
