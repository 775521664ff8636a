package permit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-edu/permitd/internal/platform/httpx"
)

// DocumentStore is the host-side holder of the permission document. The
// handler persists accepted documents there and re-reads on reload.
type DocumentStore interface {
	Get(ctx context.Context) ([]byte, error)
	Put(ctx context.Context, data []byte) error
}

// Handler exposes the evaluator over HTTP for the backend tier.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	store     DocumentStore
	validator *validator.Validate
}

// NewHandler builds a Handler. The store may be nil; load then works only
// through direct submission.
func NewHandler(logger *slog.Logger, engine *Engine, store DocumentStore) *Handler {
	return &Handler{
		logger:    logger,
		engine:    engine,
		store:     store,
		validator: validator.New(),
	}
}

// MountRoutes registers the evaluator routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/permissions", h.submitDocument)
	r.Post("/permissions/reload", h.reloadDocument)
	r.Get("/permissions/{role}", h.rolePermissions)
	r.Post("/check", h.check)
	r.Post("/check/bulk", h.bulkCheck)
	r.Post("/accessible/resources", h.accessibleResources)
	r.Post("/accessible/groups", h.accessibleGroups)
	r.Post("/accessible/admins", h.accessibleAdmins)
	r.Post("/sites", h.sitesWithMinRole)
	r.Post("/cache/clear", h.clearCache)
	r.Post("/cache/clear/{uid}", h.clearUserCache)
}

type userPayload struct {
	UID   string `json:"uid" validate:"required"`
	Email string `json:"email"`
	Roles []struct {
		SiteID string `json:"siteId" validate:"required"`
		Role   string `json:"role" validate:"required"`
	} `json:"roles" validate:"dive"`
}

func (p userPayload) toDomain() *User {
	u := &User{UID: p.UID, Email: p.Email, Roles: make([]RoleAssignment, len(p.Roles))}
	for i, ra := range p.Roles {
		u.Roles[i] = RoleAssignment{SiteID: ra.SiteID, Role: Role(ra.Role)}
	}
	return u
}

type checkRequest struct {
	User        userPayload `json:"user" validate:"required"`
	SiteID      string      `json:"siteId" validate:"required"`
	Resource    string      `json:"resource" validate:"required"`
	Action      string      `json:"action" validate:"required"`
	SubResource string      `json:"subResource"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !h.decode(w, r, &req) {
		return
	}
	user := req.User.toDomain()
	var allowed bool
	if req.SiteID == GlobalSite {
		allowed = h.engine.CanPerformGlobalAction(r.Context(), user, Resource(req.Resource), Action(req.Action), SubResource(req.SubResource))
	} else {
		allowed = h.engine.CanPerformSiteAction(r.Context(), user, req.SiteID, Resource(req.Resource), Action(req.Action), SubResource(req.SubResource))
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

type bulkCheckRequest struct {
	User   userPayload `json:"user" validate:"required"`
	SiteID string      `json:"siteId" validate:"required"`
	Checks []struct {
		Resource    string `json:"resource" validate:"required"`
		Action      string `json:"action" validate:"required"`
		SubResource string `json:"subResource"`
	} `json:"checks" validate:"min=1,dive"`
}

func (h *Handler) bulkCheck(w http.ResponseWriter, r *http.Request) {
	var req bulkCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	checks := make([]Check, len(req.Checks))
	for i, c := range req.Checks {
		checks[i] = Check{Resource: Resource(c.Resource), Action: Action(c.Action), SubResource: SubResource(c.SubResource)}
	}
	results := h.engine.BulkCheck(r.Context(), req.User.toDomain(), req.SiteID, checks)
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

type accessibleRequest struct {
	User   userPayload `json:"user" validate:"required"`
	SiteID string      `json:"siteId" validate:"required"`
	Action string      `json:"action" validate:"required"`
}

func (h *Handler) accessibleResources(w http.ResponseWriter, r *http.Request) {
	var req accessibleRequest
	if !h.decode(w, r, &req) {
		return
	}
	resources := h.engine.AccessibleResources(r.Context(), req.User.toDomain(), req.SiteID, Action(req.Action))
	if resources == nil {
		resources = []Resource{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"resources": resources})
}

func (h *Handler) accessibleGroups(w http.ResponseWriter, r *http.Request) {
	h.accessibleSubs(w, r, ResourceGroups)
}

func (h *Handler) accessibleAdmins(w http.ResponseWriter, r *http.Request) {
	h.accessibleSubs(w, r, ResourceAdmins)
}

func (h *Handler) accessibleSubs(w http.ResponseWriter, r *http.Request, res Resource) {
	var req accessibleRequest
	if !h.decode(w, r, &req) {
		return
	}
	subs := h.engine.accessibleSubResources(r.Context(), req.User.toDomain(), req.SiteID, res, Action(req.Action))
	if subs == nil {
		subs = []SubResource{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"subResources": subs})
}

type sitesRequest struct {
	User    userPayload `json:"user" validate:"required"`
	MinRole string      `json:"minRole" validate:"required"`
}

func (h *Handler) sitesWithMinRole(w http.ResponseWriter, r *http.Request) {
	var req sitesRequest
	if !h.decode(w, r, &req) {
		return
	}
	sites := h.engine.SitesWithMinRole(req.User.toDomain(), Role(req.MinRole))
	if sites == nil {
		sites = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"siteIds": sites})
}

func (h *Handler) submitDocument(w http.ResponseWriter, r *http.Request) {
	var raw any
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, "body must be valid JSON"))
		return
	}
	result := h.engine.LoadPermissions(raw)
	if !result.Success {
		httpx.JSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	if h.store != nil {
		data, err := json.Marshal(raw)
		if err == nil {
			err = h.store.Put(r.Context(), data)
		}
		if err != nil {
			// The matrix is live; losing the stored copy only affects the
			// next reload, so surface it as a warning, not a failure.
			h.logger.Warn("persist permission document", slog.Any("error", err))
			result.Warnings = append(result.Warnings, "document loaded but could not be persisted")
		}
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) reloadDocument(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httpx.Problem(w, http.StatusConflict, "No Store", "no document store configured")
		return
	}
	data, err := h.store.Get(r.Context())
	if err != nil {
		h.logger.Warn("reload permission document", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Document", "stored document is not valid JSON")
		return
	}
	result := h.engine.LoadPermissions(raw)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	role := Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		httpx.RespondError(w, fmt.Errorf("%w: unknown role", httpx.ErrNotFound))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        role,
		"version":     h.engine.Version(),
		"permissions": h.engine.RolePermissions(role),
	})
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearAllCache()
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) clearUserCache(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		httpx.RespondError(w, fmt.Errorf("%w: uid required", httpx.ErrValidation))
		return
	}
	h.engine.ClearUserCache(uid)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// decode unmarshals and validates a request payload, answering a 400
// problem on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: body must be valid JSON", httpx.ErrValidation))
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
		return false
	}
	return true
}
