// Package role manages security roles, role groups and user-role
// memberships for a tenant, with support for PostgreSQL and alternative
// storage backends through repository interfaces.
//
// # Overview
//
// The role package provides:
//   - Role and role group lifecycle management (CRUD operations)
//   - User-role membership management with effective/expiry dates
//   - Actor-based authorization of every read and mutation
//   - Repository pattern for database abstraction
//
// All operations take a policy.Actor describing the caller; results are
// filtered and mutations refused according to the tenant's policy rules.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-roles/pkg/role"
//
//	// Create service
//	repo := role.NewPostgresRoleRepository(pool)
//	users := user.NewPostgresDirectory(pool)
//	service := role.NewRoleService(repo, users, engine)
//
//	// Create a role
//	saved, err := service.SaveRole(ctx, actor, policy.Role{Name: "editor"}, false)
//
//	// Assign a user to it
//	info, err := service.AddUserToRole(ctx, actor, policy.Membership{
//		UserID: userID,
//		RoleID: saved.ID,
//	}, false, false)
//
// # Role Management
//
//	// List roles visible to the actor
//	roles, loadMore, err := service.ListRoles(ctx, actor, groupID, "", 0, 25)
//
//	// Update: SaveRole with a role ID upserts
//	saved.Description = "Content editors"
//	saved, err = service.SaveRole(ctx, actor, saved, false)
//
//	// Delete role (system roles are refused)
//	err = service.DeleteRole(ctx, actor, saved.ID)
//
// # User-Role Memberships
//
//	// Page through the members of a role
//	members, total, err := service.ListRoleUsers(ctx, actor, roleID, "", 0, 25)
//	for _, m := range members {
//		fmt.Printf("User: %s (%d)\n", m.DisplayName, m.UserID)
//	}
//
//	// Remove a membership
//	err = service.RemoveUserFromRole(ctx, actor, userID, roleID)
//
// Optional collaborators are attached with functional options: WithCache
// keeps role and group listings in Redis, WithNotifier emails users when
// they are granted a role.
package role
