// Package handler exposes the SCIM 2.0 provisioning endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scimgate/internal/scim/models"
	"scimgate/internal/scim/service"
	groupstore "scimgate/internal/scim/store/group"
	userstore "scimgate/internal/scim/store/user"
	id "scimgate/pkg/domain"
	"scimgate/pkg/platform/httputil"
	"scimgate/pkg/requestcontext"
)

// Service defines the provisioning operations the handlers depend on.
type Service interface {
	CreateUser(ctx context.Context, input service.CreateUserInput) (*models.User, error)
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
	ListUsers(ctx context.Context, filter userstore.ListFilter) ([]*models.User, int, error)
	UpdateUser(ctx context.Context, userID id.UserID, patch models.UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, userID id.UserID) error

	CreateGroup(ctx context.Context, input service.CreateGroupInput) (*models.Group, error)
	GetGroup(ctx context.Context, groupID id.GroupID) (*models.Group, error)
	ListGroups(ctx context.Context, filter groupstore.ListFilter) ([]*models.Group, int, error)
	UpdateGroup(ctx context.Context, groupID id.GroupID, displayName *string) (*models.Group, error)
	DeleteGroup(ctx context.Context, groupID id.GroupID) error
	AddGroupMember(ctx context.Context, groupID id.GroupID, userID id.UserID) (*models.Group, error)
	RemoveGroupMember(ctx context.Context, groupID id.GroupID, userID id.UserID) (*models.Group, error)
}

// Handler wires SCIM endpoints to the provisioning service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a SCIM handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the SCIM endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/scim/v2", func(r chi.Router) {
		r.Post("/Users", h.HandleCreateUser)
		r.Get("/Users", h.HandleListUsers)
		r.Get("/Users/{id}", h.HandleGetUser)
		r.Patch("/Users/{id}", h.HandleUpdateUser)
		r.Delete("/Users/{id}", h.HandleDeleteUser)

		r.Post("/Groups", h.HandleCreateGroup)
		r.Get("/Groups", h.HandleListGroups)
		r.Get("/Groups/{id}", h.HandleGetGroup)
		r.Patch("/Groups/{id}", h.HandleUpdateGroup)
		r.Delete("/Groups/{id}", h.HandleDeleteGroup)
		r.Post("/Groups/{id}/members", h.HandleAddGroupMember)
		r.Delete("/Groups/{id}/members/{userId}", h.HandleRemoveGroupMember)

		r.Get("/ServiceProviderConfig", h.HandleServiceProviderConfig)
		r.Get("/ResourceTypes", h.HandleResourceTypes)
		r.Get("/Schemas", h.HandleSchemas)
	})
}

// HandleCreateUser handles POST /scim/v2/Users requests.
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.CreateUser(ctx, req.Input())
	if err != nil {
		h.logger.WarnContext(ctx, "user creation rejected",
			"request_id", requestID,
			"user_name", req.UserName,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromUser(user))
}

// HandleGetUser handles GET /scim/v2/Users/{id} requests.
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.service.GetUser(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromUser(user))
}

// HandleListUsers handles GET /scim/v2/Users requests.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := parsePagination(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	users, total, err := h.service.ListUsers(ctx, userstore.ListFilter{
		UserNameContains: parseFilter(r.URL.Query().Get("filter"), "userName"),
		Skip:             page.skip(),
		Take:             page.count,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resources := make([]any, 0, len(users))
	for _, u := range users {
		resources = append(resources, FromUser(u))
	}
	httputil.WriteJSON(w, http.StatusOK, NewListResponse(total, page.startIndex, resources))
}

// HandleUpdateUser handles PATCH /scim/v2/Users/{id} requests.
func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.UpdateUser(ctx, userID, req.Patch())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromUser(user))
}

// HandleDeleteUser handles DELETE /scim/v2/Users/{id} requests.
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.DeleteUser(ctx, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCreateGroup handles POST /scim/v2/Groups requests.
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateGroupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	group, err := h.service.CreateGroup(ctx, req.Input())
	if err != nil {
		h.logger.WarnContext(ctx, "group creation rejected",
			"request_id", requestID,
			"display_name", req.DisplayName,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromGroup(group))
}

// HandleGetGroup handles GET /scim/v2/Groups/{id} requests.
func (h *Handler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, err := id.ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	group, err := h.service.GetGroup(ctx, groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromGroup(group))
}

// HandleListGroups handles GET /scim/v2/Groups requests.
func (h *Handler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	page, err := parsePagination(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	groups, total, err := h.service.ListGroups(ctx, groupstore.ListFilter{
		DisplayNameContains: parseFilter(r.URL.Query().Get("filter"), "displayName"),
		Skip:                page.skip(),
		Take:                page.count,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resources := make([]any, 0, len(groups))
	for _, g := range groups {
		resources = append(resources, FromGroup(g))
	}
	httputil.WriteJSON(w, http.StatusOK, NewListResponse(total, page.startIndex, resources))
}

// HandleUpdateGroup handles PATCH /scim/v2/Groups/{id} requests.
func (h *Handler) HandleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	groupID, err := id.ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateGroupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	group, err := h.service.UpdateGroup(ctx, groupID, req.DisplayName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromGroup(group))
}

// HandleDeleteGroup handles DELETE /scim/v2/Groups/{id} requests.
func (h *Handler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, err := id.ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.DeleteGroup(ctx, groupID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddGroupMember handles POST /scim/v2/Groups/{id}/members requests.
func (h *Handler) HandleAddGroupMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	groupID, err := id.ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AddMemberRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	group, err := h.service.AddGroupMember(ctx, groupID, req.ParsedUserID())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromGroup(group))
}

// HandleRemoveGroupMember handles DELETE /scim/v2/Groups/{id}/members/{userId}
// requests.
func (h *Handler) HandleRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, err := id.ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	group, err := h.service.RemoveGroupMember(ctx, groupID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromGroup(group))
}
