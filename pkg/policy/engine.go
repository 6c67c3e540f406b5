package policy

import (
	"strings"
	"time"
)

// Engine decides visibility and authorizes mutation of roles, role groups,
// and role memberships for a single tenant. It performs no I/O: every method
// takes immutable snapshots and returns a decision, so an Engine is safe for
// concurrent use by any number of request handlers.
type Engine struct {
	tenant Tenant
}

// NewEngine creates a policy engine for the given tenant.
func NewEngine(tenant Tenant) *Engine {
	return &Engine{tenant: tenant}
}

// Tenant returns the tenant this engine decides for.
func (e *Engine) Tenant() Tenant {
	return e.tenant
}

// IsAdministrator reports whether the actor is a superuser or holds the
// tenant's administrator role. This is the gating predicate for every
// privileged operation.
func (e *Engine) IsAdministrator(actor Actor) bool {
	return actor.SuperUser || actor.HasRole(e.tenant.AdministratorRoleName)
}

// FilterVisibleRoles drops the administrator role for non-admin actors and,
// when keyword is non-empty, retains only roles whose name contains it
// case-insensitively. Input order is preserved.
func (e *Engine) FilterVisibleRoles(actor Actor, roles []Role, keyword string) []Role {
	isAdmin := e.IsAdministrator(actor)
	keyword = strings.ToLower(keyword)

	visible := make([]Role, 0, len(roles))
	for _, r := range roles {
		if !isAdmin && r.ID == e.tenant.AdministratorRoleID {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(r.Name), keyword) {
			continue
		}
		visible = append(visible, r)
	}
	return visible
}

// Paginate slices a filtered role list and reports whether more items exist
// beyond the requested page.
func Paginate(roles []Role, startIndex, pageSize int) ([]Role, bool) {
	if startIndex < 0 {
		startIndex = 0
	}
	if pageSize < 0 {
		pageSize = 0
	}
	hasMore := len(roles) > startIndex+pageSize
	if startIndex >= len(roles) {
		return []Role{}, false
	}
	end := startIndex + pageSize
	if end > len(roles) {
		end = len(roles)
	}
	return roles[startIndex:end], hasMore
}

// ValidateRoleMutation authorizes a role create or update and returns the
// record ready for persistence.
//
// existing is the stored role for an update, nil for a create. nameConflict
// is any role in the tenant whose name equals the submitted name
// case-insensitively (the caller looks it up), nil if none. The engine's
// duplicate pre-check is a UX guard only: a uniqueness violation reported by
// storage remains authoritative.
//
// System roles accept changes to their description alone; every other
// submitted field change is discarded.
func (e *Engine) ValidateRoleMutation(actor Actor, submitted Role, existing, nameConflict *Role) (Role, error) {
	if submitted.Name == "" {
		return Role{}, ErrEmptyName
	}
	if submitted.ID == e.tenant.AdministratorRoleID && !e.IsAdministrator(actor) {
		return Role{}, ErrForbidden
	}

	if existing == nil {
		if nameConflict != nil {
			return Role{}, ErrDuplicateName
		}
		return submitted, nil
	}

	if existing.SystemRole {
		merged := *existing
		merged.Description = submitted.Description
		return merged, nil
	}

	if nameConflict != nil && nameConflict.ID != submitted.ID {
		return Role{}, ErrDuplicateName
	}
	return submitted, nil
}

// ValidateRoleGroupMutation authorizes a role group create or update.
// Duplicate names are detected at the storage boundary and surfaced by the
// repository as ErrDuplicateName.
func (e *Engine) ValidateRoleGroupMutation(actor Actor, group RoleGroup) (RoleGroup, error) {
	if group.Name == "" {
		return RoleGroup{}, ErrEmptyName
	}
	return group, nil
}

// AuthorizeRoleDeletion decides whether a role may be deleted. System roles
// never are; the administrator role only by an administrator.
func (e *Engine) AuthorizeRoleDeletion(role Role, actorIsAdmin bool) error {
	if role.SystemRole {
		return ErrSystemRoleProtected
	}
	if role.ID == e.tenant.AdministratorRoleID && !actorIsAdmin {
		return ErrForbidden
	}
	return nil
}

// ValidateMembershipMutation authorizes assigning or removing a user-role
// pair before the directory is consulted.
func (e *Engine) ValidateMembershipMutation(actor Actor, userID, roleID int32) error {
	if userID < 0 || roleID < 0 {
		return ErrInvalidArgument
	}
	if roleID == e.tenant.AdministratorRoleID && !e.IsAdministrator(actor) {
		return ErrForbidden
	}
	return nil
}

// AllowExpiringMembership reports whether a membership may carry a
// time-bounded expiry window. The sole administrator-of-record membership
// never can.
func (e *Engine) AllowExpiringMembership(userID, roleID int32) bool {
	return userID != e.tenant.AdministratorUserID || roleID != e.tenant.AdministratorRoleID
}

// ClearDisallowedExpiry zeroes the start/expiry window of a membership that
// is not allowed to carry one.
func (e *Engine) ClearDisallowedExpiry(m Membership) Membership {
	if !e.AllowExpiringMembership(m.UserID, m.RoleID) {
		m.EffectiveDate = time.Time{}
		m.ExpiryDate = time.Time{}
	}
	return m
}

// ResolveEffectiveOwnerFlag honors a requested owner flag only for roles
// whose security mode admits social-group ownership; otherwise it is forced
// to false rather than rejected.
func ResolveEffectiveOwnerFlag(role Role, requestedIsOwner bool) bool {
	if role.SecurityMode != SecurityModeSocialGroup && role.SecurityMode != SecurityModeBoth {
		return false
	}
	return requestedIsOwner
}

// GateMembershipApproval refuses adding users to roles that are not approved.
func GateMembershipApproval(role Role) error {
	if role.Status != RoleStatusApproved {
		return ErrRoleNotApproved
	}
	return nil
}

// ComputeMembershipPermissionFlags derives the per-membership capabilities
// shown to administration clients. Whether the membership may be removed is
// a tenant-specific rule (e.g. "not the last administrator") supplied by the
// directory; the engine does not hardcode it.
func (e *Engine) ComputeMembershipPermissionFlags(m Membership, canRemove func(userID, roleID int32) bool) PermissionFlags {
	return PermissionFlags{
		AllowExpire: e.AllowExpiringMembership(m.UserID, m.RoleID),
		AllowDelete: canRemove(m.UserID, m.RoleID),
	}
}

// AuthorizeTargetUser decides whether the actor may operate on the target
// user's memberships. Administrators are only reachable by administrators,
// and superusers only by other superusers. Once authorization passes,
// superuser identities must be resolved against the global directory rather
// than the tenant directory.
func (e *Engine) AuthorizeTargetUser(actor Actor, target UserRef) error {
	targetActor := Actor{UserID: target.ID, SuperUser: target.SuperUser, Roles: target.Roles}
	if !e.IsAdministrator(targetActor) {
		return nil
	}
	if (target.SuperUser && !actor.SuperUser) || !e.IsAdministrator(actor) {
		return ErrUnauthorized
	}
	return nil
}
