package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID string
	Role   string
	Admin  bool
}

type contextKeyRole struct{}
type contextKeyAdmin struct{}

var (
	ContextKeyRole  = contextKeyRole{}
	ContextKeyAdmin = contextKeyAdmin{}
)

// GetRole retrieves the authenticated caller's role name from the context.
func GetRole(ctx context.Context) string {
	role, ok := ctx.Value(ContextKeyRole).(string)
	if !ok {
		return ""
	}
	return role
}

// IsAdmin reports whether the authenticated caller is an administrator.
func IsAdmin(ctx context.Context) bool {
	admin, ok := ctx.Value(ContextKeyAdmin).(bool)
	return ok && admin
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					unauthorized(w, r, logger, "unauthorized access - invalid token",
						"Invalid or expired token", err)
					return
				}
				parsed, err := uuid.Parse(claims.UserID)
				if err != nil {
					unauthorized(w, r, logger, "unauthorized access - malformed subject",
						"Invalid or expired token", err)
					return
				}

				ctx := r.Context()
				ctx = requestcontext.WithUserID(ctx, id.UserID(parsed))
				ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
				ctx = context.WithValue(ctx, ContextKeyAdmin, claims.Admin)

				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or invalid format
			unauthorized(w, r, logger, "unauthorized access - missing token",
				"Missing or invalid Authorization header", nil)
		})
	}
}

// RequireAdmin rejects callers whose token does not carry the admin flag.
// It gates at the perimeter from the token claim; handlers that need the
// current flag (claims can outlive a revocation) still consult the directory.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !IsAdmin(ctx) {
				logger.WarnContext(ctx, "admin endpoint denied",
					"role", GetRole(ctx),
					"request_id", requestcontext.RequestID(ctx),
					"log_type", "security",
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "operation not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, logMsg, description string, cause error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	attrs := []any{"request_id", requestID}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	logger.WarnContext(ctx, logMsg, attrs...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response",
			"error", err,
			"request_id", requestID,
		)
	}
}
