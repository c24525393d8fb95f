package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/importer"
	"caseflow/internal/platform/middleware"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

// Service defines the import operations the handler exposes.
type Service interface {
	ImportSurvey(ctx context.Context, surveyID id.SurveyID) (*importer.Result, error)
}

// Admin answers whether a principal may trigger imports.
type Admin interface {
	IsAdministrator(ctx context.Context, userID id.UserID) (bool, error)
}

// Handler handles import endpoints. Imports are administrative.
type Handler struct {
	logger       *slog.Logger
	imports      Service
	admin        Admin
	jwtValidator middleware.JWTValidator
}

// New creates a new import Handler.
func New(imports Service, admin Admin, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		imports:      imports,
		admin:        admin,
		jwtValidator: jwtValidator,
	}
}

// Register registers the import routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Recovery(h.logger))
		gr.Use(middleware.RequestID)
		gr.Use(middleware.Logger(h.logger))
		gr.Use(middleware.Timeout(5 * time.Minute))
		gr.Use(middleware.ContentTypeJSON)
		gr.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		gr.Use(middleware.RequireAdmin(h.logger))
		gr.Post("/imports/{surveyID}", h.handleImport)
	})
}

type importResponse struct {
	SurveyID string `json:"survey_id"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := requestcontext.UserID(ctx)

	admin, err := h.admin.IsAdministrator(ctx, actorID)
	if err != nil || !admin {
		h.logger.WarnContext(ctx, "import denied",
			"actor_id", actorID,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "security",
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "operation not permitted"))
		return
	}

	surveyID := id.SurveyID(chi.URLParam(r, "surveyID"))
	result, err := h.imports.ImportSurvey(ctx, surveyID)
	if err != nil {
		h.logger.ErrorContext(ctx, "import failed",
			"survey_id", surveyID,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, importResponse{
		SurveyID: string(surveyID),
		Imported: result.Imported,
		Skipped:  result.Skipped,
	})
}
