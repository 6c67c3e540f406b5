package role

import (
	"context"

	"github.com/tendant/simple-roles/pkg/policy"
)

// RoleFilter narrows role listings.
type RoleFilter struct {
	// GroupID restricts the listing to one role group. policy.UnsetID lists
	// every role in the tenant.
	GroupID int32
}

// RoleRepository defines the storage port for roles, role groups, and
// memberships. All methods are tenant-scoped. Implementations report
// uniqueness violations as policy.ErrDuplicateName and missing records as
// the matching policy.Err*NotFound kind; the service layer never inspects
// driver errors.
type RoleRepository interface {
	FindRoles(ctx context.Context, tenantID int32, filter RoleFilter) ([]policy.Role, error)
	GetRoleByID(ctx context.Context, tenantID, roleID int32) (policy.Role, error)
	// GetRoleByName matches case-insensitively.
	GetRoleByName(ctx context.Context, tenantID int32, name string) (policy.Role, error)
	CreateRole(ctx context.Context, tenantID int32, role policy.Role) (policy.Role, error)
	UpdateRole(ctx context.Context, tenantID int32, role policy.Role) (policy.Role, error)
	DeleteRole(ctx context.Context, tenantID, roleID int32) error

	FindRoleGroups(ctx context.Context, tenantID int32) ([]policy.RoleGroup, error)
	GetRoleGroupByID(ctx context.Context, tenantID, groupID int32) (policy.RoleGroup, error)
	CreateRoleGroup(ctx context.Context, tenantID int32, group policy.RoleGroup) (policy.RoleGroup, error)
	UpdateRoleGroup(ctx context.Context, tenantID int32, group policy.RoleGroup) (policy.RoleGroup, error)
	DeleteRoleGroup(ctx context.Context, tenantID, groupID int32) error

	GetRoleMemberships(ctx context.Context, tenantID, roleID int32) ([]policy.Membership, error)
	GetMembership(ctx context.Context, tenantID, userID, roleID int32) (policy.Membership, error)
	UpsertMembership(ctx context.Context, tenantID int32, m policy.Membership) (policy.Membership, error)
	RemoveMembership(ctx context.Context, tenantID, userID, roleID int32) error
	// CanRemoveMembership is the tenant-specific removal rule (e.g. "not the
	// last administrator") the storage layer supplies.
	CanRemoveMembership(ctx context.Context, tenantID, userID, roleID int32) (bool, error)
}

// Cache is an optional read-through cache for role and role-group listings.
// A nil Cache disables caching. Implementations must tolerate concurrent use.
type Cache interface {
	GetRoles(ctx context.Context, tenantID int32) ([]policy.Role, bool)
	SetRoles(ctx context.Context, tenantID int32, roles []policy.Role)
	GetRoleGroups(ctx context.Context, tenantID int32) ([]policy.RoleGroup, bool)
	SetRoleGroups(ctx context.Context, tenantID int32, groups []policy.RoleGroup)
	// Invalidate drops both listings for the tenant. The service calls it
	// after every mutation.
	Invalidate(ctx context.Context, tenantID int32)
}
