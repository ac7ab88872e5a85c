// Package handler serves the profile read model and the admin profile and
// sync endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"showcase/internal/profile/models"
	"showcase/internal/profile/orchestrator"
	id "showcase/pkg/domain"
	"showcase/pkg/platform/httputil"
	"showcase/pkg/requestcontext"
)

// Service defines the profile operations the handlers expose.
type Service interface {
	GetCachedView(ctx context.Context, subjectID id.SubjectID) (*models.CachedView, error)
	ListProfiles(ctx context.Context) ([]models.Profile, error)
	GetProfile(ctx context.Context, subjectID id.SubjectID) (*models.Profile, error)
	CreateProfile(ctx context.Context, subjectID id.SubjectID, displayName, bio string) (*models.Profile, *orchestrator.Task, error)
	UpdateProfile(ctx context.Context, subjectID id.SubjectID, displayName, bio string) (*models.Profile, error)
	Synchronize(ctx context.Context, subjectID id.SubjectID) (orchestrator.Result, error)
	SynchronizeAsync(ctx context.Context, subjectID id.SubjectID) *orchestrator.Task
	SyncState(ctx context.Context, subjectID id.SubjectID) (models.SyncState, error)
}

// Handler wires profile endpoints to the profile service.
type Handler struct {
	service Service
	logger  *slog.Logger
	syncMW  []func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithSyncMiddleware wraps the sync trigger route only, e.g. with its rate limit.
func WithSyncMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.syncMW = append(h.syncMW, mw...)
	}
}

// New constructs a profile handler with its dependencies.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public read endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/profiles", h.HandleListProfiles)
	r.Get("/profiles/{subjectID}", h.HandleGetCachedView)
}

// RegisterAdmin mounts the admin endpoints. The caller applies authentication.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/profiles", h.HandleCreateProfile)
	r.Get("/profiles/{subjectID}", h.HandleGetProfile)
	r.Put("/profiles/{subjectID}", h.HandleUpdateProfile)
	r.With(h.syncMW...).Post("/profiles/{subjectID}/sync", h.HandleSync)
	r.Get("/profiles/{subjectID}/sync", h.HandleSyncState)
}

// HandleGetCachedView handles GET /profiles/{subjectID}.
func (h *Handler) HandleGetCachedView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetCachedView(ctx, subjectID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load cached view",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleListProfiles handles GET /profiles.
func (h *Handler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profiles, err := h.service.ListProfiles(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list profiles",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	httputil.WriteJSON(w, http.StatusOK, &ProfileListResponse{Profiles: profiles, Total: len(profiles)})
}

// HandleCreateProfile handles POST /admin/profiles.
func (h *Handler) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, _, err := h.service.CreateProfile(ctx, req.ParsedSubjectID(), req.DisplayName, req.Bio)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create profile",
			"request_id", requestID,
			"admin", requestcontext.Admin(ctx),
			"subject_id", req.ParsedSubjectID(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "profile created",
		"request_id", requestID,
		"admin", requestcontext.Admin(ctx),
		"subject_id", p.SubjectID,
	)
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// HandleGetProfile handles GET /admin/profiles/{subjectID}.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProfile(r.Context(), subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleUpdateProfile handles PUT /admin/profiles/{subjectID}.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.UpdateProfile(ctx, subjectID, req.DisplayName, req.Bio)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update profile",
			"request_id", requestID,
			"admin", requestcontext.Admin(ctx),
			"subject_id", subjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleSync handles POST /admin/profiles/{subjectID}/sync. With ?wait=true
// the response carries the run result; otherwise the run continues in the
// background and 202 is returned at once.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		h.service.SynchronizeAsync(ctx, subjectID)
		h.logger.InfoContext(ctx, "sync started",
			"request_id", requestID,
			"admin", requestcontext.Admin(ctx),
			"subject_id", subjectID,
		)
		httputil.WriteJSON(w, http.StatusAccepted, &SyncAcceptedResponse{SubjectID: subjectID, Status: "accepted"})
		return
	}

	res, err := h.service.Synchronize(ctx, subjectID)
	if err != nil {
		h.logger.WarnContext(ctx, "sync failed",
			"request_id", requestID,
			"admin", requestcontext.Admin(ctx),
			"subject_id", subjectID,
			"run_id", res.RunID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleSyncState handles GET /admin/profiles/{subjectID}/sync.
func (h *Handler) HandleSyncState(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subjectParam(w, r)
	if !ok {
		return
	}
	st, err := h.service.SyncState(r.Context(), subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) subjectParam(w http.ResponseWriter, r *http.Request) (id.SubjectID, bool) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return subjectID, true
}
