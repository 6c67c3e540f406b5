package policy

import "errors"

// Policy violations are returned as sentinel errors so callers can branch on
// the kind with errors.Is and map each one to a transport-level response.
var (
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrDuplicateName       = errors.New("name is already in use")
	ErrForbidden           = errors.New("operation not permitted for this actor")
	ErrSystemRoleProtected = errors.New("system roles cannot be deleted")
	ErrRoleNotFound        = errors.New("role not found")
	ErrRoleGroupNotFound   = errors.New("role group not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUnauthorized        = errors.New("insufficient permissions")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrRoleNotApproved     = errors.New("cannot assign user to an unapproved role")
)
