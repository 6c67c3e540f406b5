package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-roles/pkg/client"
	"github.com/tendant/simple-roles/pkg/policy"
	rolepkg "github.com/tendant/simple-roles/pkg/role"
	"golang.org/x/exp/slog"
)

const defaultPageSize = 10

type Handle struct {
	roleService *rolepkg.RoleService
}

func NewHandle(roleService *rolepkg.RoleService) *Handle {
	return &Handle{
		roleService: roleService,
	}
}

// actor extracts the authenticated identity placed on the context by the
// auth middleware.
func actor(r *http.Request) (policy.Actor, *Response) {
	authUser, ok := client.AuthUserFromContext(r.Context())
	if !ok {
		return policy.Actor{}, ErrorResponse(http.StatusUnauthorized, "not authenticated")
	}
	return authUser.Actor(), nil
}

// errorResponse maps service errors onto HTTP statuses. Policy violations
// are client errors, missing entities are 404, and authorization failures
// against a protected target are 401.
func errorResponse(err error) *Response {
	switch {
	case errors.Is(err, policy.ErrEmptyName),
		errors.Is(err, policy.ErrDuplicateName),
		errors.Is(err, policy.ErrInvalidArgument),
		errors.Is(err, policy.ErrSystemRoleProtected),
		errors.Is(err, policy.ErrRoleNotApproved),
		errors.Is(err, policy.ErrForbidden):
		return ErrorResponse(http.StatusBadRequest, err.Error())
	case errors.Is(err, policy.ErrRoleNotFound),
		errors.Is(err, policy.ErrRoleGroupNotFound),
		errors.Is(err, policy.ErrUserNotFound):
		return ErrorResponse(http.StatusNotFound, err.Error())
	case errors.Is(err, policy.ErrUnauthorized):
		return ErrorResponse(http.StatusUnauthorized, err.Error())
	default:
		slog.Error("Unexpected service error", "err", err)
		return ErrorResponse(http.StatusInternalServerError, "internal server error")
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func queryBool(r *http.Request, name string) bool {
	value, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return value
}

func pathID(r *http.Request, name string) (int32, *Response) {
	raw := chi.URLParam(r, name)
	value, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, ErrorResponse(http.StatusBadRequest, fmt.Sprintf("invalid %s: %q", name, raw))
	}
	return int32(value), nil
}

// GetRoles handles retrieving one page of roles.
// (GET /api/roles)
func (h *Handle) GetRoles(w http.ResponseWriter, r *http.Request) *Response {
	act, errResp := actor(r)
	if errResp != nil {
		return errResp
	}

	groupID := int32(queryInt(r, "groupId", int(policy.UnsetID)))
	keyword := r.URL.Query().Get("keyword")
	startIndex := queryInt(r, "startIndex", 0)
	pageSize := queryInt(r, "pageSize", defaultPageSize)

	roles, loadMore, err := h.roleService.ListRoles(r.Context(), act, groupID, keyword, startIndex, pageSize)
	if err != nil {
		return errorResponse(err)
	}

	page := RolePageDto{Roles: make([]RoleDto, 0, len(roles)), LoadMore: loadMore}
	for _, role := range roles {
		page.Roles = append(page.Roles, RoleDtoFromModel(role))
	}
	return JSON200Response(page)
}

// PostRole handles creating or updating a role.
// (POST /api/roles)
func (h *Handle) PostRole(w http.ResponseWriter, r *http.Request) *Response {
	act, errResp := actor(r)
	if errResp != nil {
		return errResp
	}

	var dto RoleDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		return ErrorResponse(http.StatusBadRequest, fmt.Sprintf("failed to decode request body: %v", err))
	}
	if err := validate.Struct(dto); err != nil {
		return ErrorResponse(http.StatusBadRequest, err.Error())
	}

	submitted, err := dto.ToModel()
	if err != nil {
		return ErrorResponse(http.StatusBadRequest, err.Error())
	}

	assignExisting := queryBool(r, "assignExistUsers")
	saved, err := h.roleService.SaveRole(r.Context(), act, submitted, assignExisting)
	if err != nil {
		return errorResponse(err)
	}

	if dto.ID == nil {
		return JSON201Response(RoleDtoFromModel(saved))
	}
	return JSON200Response(RoleDtoFromModel(saved))
}

// DeleteRole handles deleting a role.
// (DELETE /api/roles/{id})
func (h *Handle) DeleteRole(w http.ResponseWriter, r *http.Request) *Response {
	act, errResp := actor(r)
	if errResp != nil {
		return errResp
	}
	roleID, errResp := pathID(r, "id")
	if errResp != nil {
		return errResp
	}

	if err := h.roleService.DeleteRole(r.Context(), act, roleID); err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusNoContent}
}

// GetRoleGroups handles retrieving the tenant's role groups.
// (GET /api/roles/groups)
func (h *Handle) GetRoleGroups(w http.ResponseWriter, r *http.Request) *Response {
	if _, errResp := actor(r); errResp != nil {
		return errResp
	}

	groups, err := h.roleService.ListRoleGroups(r.Context(), queryBool(r, "reload"))
	if err != nil {
		return errorResponse(err)
	}

	dtos := make([]RoleGroupDto, 0, len(groups))
	for _, group := range groups {
		dtos = append(dtos, RoleGroupDtoFromModel(group))
	}
	return JSON200Response(dtos)
}

// PostRoleGroup handles creating or updating a role group.
// (POST /api/roles/groups)
func (h *Handle) PostRoleGroup(w http.ResponseWriter, r *http.Request) *Response {
	act, errResp := actor(r)
	if errResp != nil {
		return errResp
	}

	var dto RoleGroupDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		return ErrorResponse(http.StatusBadRequest, fmt.Sprintf("failed to decode request body: %v", err))
	}
	if err := validate.Struct(dto); err != nil {
		return ErrorResponse(http.StatusBadRequest, err.Error())
	}

	group, err := dto.ToModel()
	if err != nil {
		return ErrorResponse(http.StatusBadRequest, err.Error())
	}

	saved, err := h.roleService.SaveRoleGroup(r.Context(), act, group)
	if err != nil {
		return errorResponse(err)
	}

	if dto.ID == nil {
		return JSON201Response(RoleGroupDtoFromModel(saved))
	}
	return JSON200Response(RoleGroupDtoFromModel(saved))
}

// DeleteRoleGroup handles deleting a role group.
// (DELETE /api/roles/groups/{id})
func (h *Handle) DeleteRoleGroup(w http.ResponseWriter, r *http.Request) *Response {
	act, errResp := actor(r)
	if errResp != nil {
		return errResp
	}
	groupID, errResp := pathID(r, "id")
	if errResp != nil {
		return errResp
	}

	if err := h.roleService.DeleteRoleGroup(r.Context(), act, groupID); err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusNoContent}
}

// GetSuggestUsers handles the user picker typeahead.
// (GET /api/roles/users/suggest)
func (h *Handle) GetSuggestUsers(w http.ResponseWriter, r *http.Request) *Response {
	act, errResp := actor(r)
	if errResp != nil {
		return errResp
	}

	keyword := r.URL.Query().Get("keyword")
	count := queryInt(r, "count", defaultPageSize)

	suggestions, err := h.roleService.SuggestUsers(r.Context(), act, keyword, count)
	if err != nil {
		return errorResponse(err)
	}

	dtos := make([]SuggestionDto, 0, len(suggestions))
	for _, s := range suggestions {
		dtos = append(dtos, SuggestionDto{UserID: s.UserID, DisplayName: s.DisplayName})
	}
	return JSON200Response(dtos)
}

// GetRoleUsers handles retrieving one page of a role's memberships.
// (GET /api/roles/{id}/users)
func (h *Handle) GetRoleUsers(w http.ResponseWriter, r *http.Request) *Response {
	act, errResp := actor(r)
	if errResp != nil {
		return errResp
	}
	roleID, errResp := pathID(r, "id")
	if errResp != nil {
		return errResp
	}

	keyword := r.URL.Query().Get("keyword")
	pageIndex := queryInt(r, "pageIndex", 0)
	pageSize := queryInt(r, "pageSize", defaultPageSize)

	members, total, err := h.roleService.ListRoleUsers(r.Context(), act, roleID, keyword, pageIndex, pageSize)
	if err != nil {
		return errorResponse(err)
	}

	page := RoleUsersPageDto{Users: make([]UserRoleInfoDto, 0, len(members)), Total: total}
	for _, m := range members {
		page.Users = append(page.Users, UserRoleInfoDtoFromModel(m))
	}
	return JSON200Response(page)
}

// PostRoleUser handles assigning a user to a role.
// (POST /api/roles/{id}/users)
func (h *Handle) PostRoleUser(w http.ResponseWriter, r *http.Request) *Response {
	act, errResp := actor(r)
	if errResp != nil {
		return errResp
	}
	roleID, errResp := pathID(r, "id")
	if errResp != nil {
		return errResp
	}

	var dto UserRoleDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		return ErrorResponse(http.StatusBadRequest, fmt.Sprintf("failed to decode request body: %v", err))
	}
	if err := validate.Struct(dto); err != nil {
		return ErrorResponse(http.StatusBadRequest, err.Error())
	}

	notify := queryBool(r, "notifyUser")
	isOwner := queryBool(r, "isOwner")

	info, err := h.roleService.AddUserToRole(r.Context(), act, dto.ToModel(roleID), notify, isOwner)
	if err != nil {
		return errorResponse(err)
	}
	return JSON200Response(UserRoleInfoDtoFromModel(info))
}

// DeleteRoleUser handles removing a user from a role.
// (DELETE /api/roles/{id}/users/{userId})
func (h *Handle) DeleteRoleUser(w http.ResponseWriter, r *http.Request) *Response {
	act, errResp := actor(r)
	if errResp != nil {
		return errResp
	}
	roleID, errResp := pathID(r, "id")
	if errResp != nil {
		return errResp
	}
	userID, errResp := pathID(r, "userId")
	if errResp != nil {
		return errResp
	}

	if err := h.roleService.RemoveUserFromRole(r.Context(), act, userID, roleID); err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusNoContent}
}

// Routes mounts every role administration endpoint on the router.
func Routes(r chi.Router, handle *Handle) {
	wrap := func(fn func(http.ResponseWriter, *http.Request) *Response) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			writeResponse(w, r, fn(w, r))
		}
	}

	r.Route("/api/roles", func(r chi.Router) {
		r.Get("/", wrap(handle.GetRoles))
		r.Post("/", wrap(handle.PostRole))
		r.Get("/groups", wrap(handle.GetRoleGroups))
		r.Post("/groups", wrap(handle.PostRoleGroup))
		r.Delete("/groups/{id}", wrap(handle.DeleteRoleGroup))
		r.Get("/users/suggest", wrap(handle.GetSuggestUsers))
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", wrap(handle.DeleteRole))
			r.Get("/users", wrap(handle.GetRoleUsers))
			r.Post("/users", wrap(handle.PostRoleUser))
			r.Delete("/users/{userId}", wrap(handle.DeleteRoleUser))
		})
	})
}
