package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func bcryptHash(t *testing.T, token string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func authServe(middleware *AuthMiddleware, header string) *httptest.ResponseRecorder {
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/operations", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	m := NewAuthMiddleware(bcryptHash(t, "secret-token"))
	rec := authServe(m, "Bearer secret-token")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	m := NewAuthMiddleware(bcryptHash(t, "secret-token"))
	rec := authServe(m, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	m := NewAuthMiddleware(bcryptHash(t, "secret-token"))
	rec := authServe(m, "Bearer wrong-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
	assert.Contains(t, rec.Body.String(), "Invalid token")
}

func TestAuthMiddleware_NotBearerScheme(t *testing.T) {
	m := NewAuthMiddleware(bcryptHash(t, "secret-token"))
	rec := authServe(m, "Basic secret-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_DisabledWithoutHash(t *testing.T) {
	m := NewAuthMiddleware("")
	rec := authServe(m, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
