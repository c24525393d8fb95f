package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/pkg/requestcontext"
)

type fakeValidator struct {
	claims *JWTClaims
	err    error
}

func (v *fakeValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireAuth(t *testing.T) {
	subject := uuid.NewString()

	t.Run("valid token populates the request context", func(t *testing.T) {
		validator := &fakeValidator{claims: &JWTClaims{UserID: subject, Role: "supervisor", Admin: false}}

		var gotUser, gotRole string
		var gotAdmin bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = requestcontext.UserID(r.Context()).String()
			gotRole = GetRole(r.Context())
			gotAdmin = IsAdmin(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/records", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		RequireAuth(validator, discardLogger())(next).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, subject, gotUser)
		assert.Equal(t, "supervisor", gotRole)
		assert.False(t, gotAdmin)
	})

	t.Run("missing header is unauthorized", func(t *testing.T) {
		validator := &fakeValidator{claims: &JWTClaims{UserID: subject}}
		req := httptest.NewRequest(http.MethodGet, "/records", nil)
		rec := httptest.NewRecorder()
		RequireAuth(validator, discardLogger())(blockedHandler(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	})

	t.Run("rejected token is unauthorized", func(t *testing.T) {
		validator := &fakeValidator{err: errors.New("expired")}
		req := httptest.NewRequest(http.MethodGet, "/records", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		RequireAuth(validator, discardLogger())(blockedHandler(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed subject is unauthorized", func(t *testing.T) {
		validator := &fakeValidator{claims: &JWTClaims{UserID: "not-a-uuid"}}
		req := httptest.NewRequest(http.MethodGet, "/records", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		RequireAuth(validator, discardLogger())(blockedHandler(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	subject := uuid.NewString()

	chain := func(validator JWTValidator, next http.Handler) http.Handler {
		return RequireAuth(validator, discardLogger())(RequireAdmin(discardLogger())(next))
	}

	t.Run("admin token passes through", func(t *testing.T) {
		validator := &fakeValidator{claims: &JWTClaims{UserID: subject, Admin: true}}
		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

		req := httptest.NewRequest(http.MethodPost, "/imports/sv-1", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		chain(validator, next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, called)
	})

	t.Run("non-admin token is forbidden with the generic message", func(t *testing.T) {
		validator := &fakeValidator{claims: &JWTClaims{UserID: subject, Role: "examiner", Admin: false}}
		req := httptest.NewRequest(http.MethodPost, "/imports/sv-1", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		chain(validator, blockedHandler(t)).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "operation not permitted")
	})
}

// blockedHandler fails the test if the middleware lets the request through.
func blockedHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached past middleware")
	})
}
