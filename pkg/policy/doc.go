// Package policy implements the role membership policy engine for
// simple-roles.
//
// The engine decides which roles, role groups, and memberships an actor may
// see, create, modify, assign, or remove within a tenant. It owns no storage
// and performs no I/O: reads happen through the repository interfaces in
// pkg/role and pkg/user, and writes only reach storage after the relevant
// Validate/Authorize call here has succeeded.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-roles/pkg/policy"
//
//	engine := policy.NewEngine(policy.Tenant{
//		ID:                    1,
//		AdministratorRoleID:   1,
//		AdministratorUserID:   1,
//		AdministratorRoleName: "Administrators",
//	})
//
//	visible := engine.FilterVisibleRoles(actor, roles, "edit")
//	page, more := policy.Paginate(visible, 0, 25)
//
//	validated, err := engine.ValidateRoleMutation(actor, submitted, existing, conflict)
//	if errors.Is(err, policy.ErrDuplicateName) {
//		// surface to the caller
//	}
//
// Violations are reported as the sentinel errors in errors.go and matched
// with errors.Is; the engine never panics on bad input.
package policy
