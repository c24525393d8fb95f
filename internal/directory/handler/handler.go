package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"caseflow/internal/directory"
	"caseflow/internal/platform/middleware"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

// Service defines the authentication operations the handler exposes.
type Service interface {
	Authenticate(ctx context.Context, username, password string) (*directory.User, error)
}

// TokenIssuer mints access tokens for authenticated principals.
type TokenIssuer interface {
	GenerateAccessToken(userID uuid.UUID, role string, admin bool, expiresIn time.Duration) (string, error)
}

// Handler handles authentication endpoints.
type Handler struct {
	logger   *slog.Logger
	users    Service
	tokens   TokenIssuer
	tokenTTL time.Duration
}

// New creates a new authentication Handler.
func New(users Service, tokens TokenIssuer, tokenTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		users:    users,
		tokens:   tokens,
		tokenTTL: tokenTTL,
	}
}

// Register registers the authentication routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Recovery(h.logger))
		gr.Use(middleware.RequestID)
		gr.Use(middleware.Logger(h.logger))
		gr.Use(middleware.Timeout(10 * time.Second))
		gr.Use(middleware.ContentTypeJSON)
		gr.Post("/auth/token", h.handleToken)
	})
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.Decode[tokenRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		// Authenticate already collapses all failure modes into one
		// generic unauthorized error.
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "security",
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.GenerateAccessToken(uuid.UUID(user.ID), string(user.Role), user.Admin, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "token generation failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokenTTL.Seconds()),
	})
}
