package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/audit"
	apperrors "github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/errors"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/httputil"
	"github.com/Agentic-Trust-Layer/agentic-trust-sub002/internal/util"
)

// AuthMiddleware guards the operator surface with a single bearer token,
// compared against a bcrypt hash from configuration. An empty configured
// hash disables the check, which is only acceptable outside production and
// is warned about at config validation time.
type AuthMiddleware struct {
	tokenHash string
}

func NewAuthMiddleware(tokenHash string) *AuthMiddleware {
	return &AuthMiddleware{tokenHash: tokenHash}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.tokenHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			httputil.WriteErrorWithStatus(w, http.StatusUnauthorized, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		if !util.CheckTokenHash(token, m.tokenHash) {
			log.Warn().Msg("auth middleware: invalid token attempt")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			httputil.WriteErrorWithStatus(w, http.StatusUnauthorized, apperrors.Unauthorized("Invalid token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
