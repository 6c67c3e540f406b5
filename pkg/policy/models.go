package policy

import "time"

// UnsetID marks an absent integer identifier, e.g. a role submitted for
// creation or a role outside any group.
const UnsetID int32 = -1

// SecurityMode classifies a role as security-only, social-group-owned, or both.
// Membership owner flags are only meaningful for social roles.
type SecurityMode int32

const (
	SecurityModeSecurityRole SecurityMode = iota
	SecurityModeSocialGroup
	SecurityModeBoth
)

// RoleStatus is the approval state of a role or membership.
type RoleStatus int32

const (
	RoleStatusPending  RoleStatus = -1
	RoleStatusDisabled RoleStatus = 0
	RoleStatusApproved RoleStatus = 1
)

// Tenant carries the per-tenant administration settings every policy decision
// depends on. It replaces the implicit portal/session state of a hosting
// platform with an explicit value.
type Tenant struct {
	ID                    int32
	AdministratorRoleID   int32
	AdministratorUserID   int32
	AdministratorRoleName string
}

// Actor is the identity performing an action.
type Actor struct {
	UserID    int32
	SuperUser bool
	Roles     []string
}

// HasRole reports whether the actor holds the named role.
func (a Actor) HasRole(name string) bool {
	for _, r := range a.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Role is a security role within a tenant.
type Role struct {
	ID           int32
	Name         string
	Description  string
	GroupID      int32
	SystemRole   bool
	SecurityMode SecurityMode
	Status       RoleStatus
}

// RoleGroup is a named grouping of roles within a tenant.
type RoleGroup struct {
	ID          int32
	Name        string
	Description string
}

// Membership assigns a user to a role, optionally time-bounded.
// Zero timestamps mean the window is unset.
type Membership struct {
	UserID        int32
	RoleID        int32
	DisplayName   string
	EffectiveDate time.Time
	ExpiryDate    time.Time
	Status        RoleStatus
	IsOwner       bool
}

// UserRef is the snapshot of a target user a policy decision needs.
type UserRef struct {
	ID        int32
	SuperUser bool
	Roles     []string
}

// PermissionFlags are the derived per-membership capabilities surfaced to
// administration clients.
type PermissionFlags struct {
	AllowExpire bool
	AllowDelete bool
}
