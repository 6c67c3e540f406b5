package user

import "github.com/tendant/simple-roles/pkg/policy"

// User is a directory user snapshot. Roles holds the names of the tenant
// roles the user is a member of.
type User struct {
	ID          int32
	Username    string
	DisplayName string
	Email       string
	SuperUser   bool
	Roles       []string
}

// Ref converts the user to the snapshot form policy decisions take.
func (u User) Ref() policy.UserRef {
	return policy.UserRef{ID: u.ID, SuperUser: u.SuperUser, Roles: u.Roles}
}
