package role

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tendant/simple-roles/pkg/policy"
)

func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	dbName := "roles_db"
	dbUser := "roles"
	dbPassword := "pwd"

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "roles_db.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func TestPostgresRoleRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewPostgresRoleRepository(pool)
	const tenantID int32 = 1

	t.Run("role lifecycle", func(t *testing.T) {
		created, err := repo.CreateRole(ctx, tenantID, policy.Role{
			Name: "Editors", Description: "content editors", GroupID: policy.UnsetID,
			Status: policy.RoleStatusApproved,
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)

		byID, err := repo.GetRoleByID(ctx, tenantID, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, byID)

		// Lookup by name is case-insensitive.
		byName, err := repo.GetRoleByName(ctx, tenantID, "EDITORS")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)

		created.Description = "updated"
		updated, err := repo.UpdateRole(ctx, tenantID, created)
		require.NoError(t, err)
		assert.Equal(t, "updated", updated.Description)

		roles, err := repo.FindRoles(ctx, tenantID, RoleFilter{GroupID: policy.UnsetID})
		require.NoError(t, err)
		assert.Len(t, roles, 1)

		require.NoError(t, repo.DeleteRole(ctx, tenantID, created.ID))
		_, err = repo.GetRoleByID(ctx, tenantID, created.ID)
		assert.ErrorIs(t, err, policy.ErrRoleNotFound)
	})

	t.Run("duplicate names surface as conflicts", func(t *testing.T) {
		first, err := repo.CreateRole(ctx, tenantID, policy.Role{
			Name: "Vendors", GroupID: policy.UnsetID, Status: policy.RoleStatusApproved,
		})
		require.NoError(t, err)

		_, err = repo.CreateRole(ctx, tenantID, policy.Role{
			Name: "VENDORS", GroupID: policy.UnsetID, Status: policy.RoleStatusApproved,
		})
		assert.ErrorIs(t, err, policy.ErrDuplicateName)

		// Another tenant may reuse the name.
		_, err = repo.CreateRole(ctx, 2, policy.Role{
			Name: "Vendors", GroupID: policy.UnsetID, Status: policy.RoleStatusApproved,
		})
		assert.NoError(t, err)

		require.NoError(t, repo.DeleteRole(ctx, tenantID, first.ID))
	})

	t.Run("role group lifecycle", func(t *testing.T) {
		group, err := repo.CreateRoleGroup(ctx, tenantID, policy.RoleGroup{Name: "Content"})
		require.NoError(t, err)
		assert.NotZero(t, group.ID)

		_, err = repo.CreateRoleGroup(ctx, tenantID, policy.RoleGroup{Name: "content"})
		assert.ErrorIs(t, err, policy.ErrDuplicateName)

		grouped, err := repo.CreateRole(ctx, tenantID, policy.Role{
			Name: "Writers", GroupID: group.ID, Status: policy.RoleStatusApproved,
		})
		require.NoError(t, err)

		inGroup, err := repo.FindRoles(ctx, tenantID, RoleFilter{GroupID: group.ID})
		require.NoError(t, err)
		assert.Len(t, inGroup, 1)

		// Deleting the group reverts its roles to ungrouped.
		require.NoError(t, repo.DeleteRoleGroup(ctx, tenantID, group.ID))
		reverted, err := repo.GetRoleByID(ctx, tenantID, grouped.ID)
		require.NoError(t, err)
		assert.Equal(t, policy.UnsetID, reverted.GroupID)

		_, err = repo.GetRoleGroupByID(ctx, tenantID, group.ID)
		assert.ErrorIs(t, err, policy.ErrRoleGroupNotFound)
	})

	t.Run("membership lifecycle", func(t *testing.T) {
		role, err := repo.CreateRole(ctx, tenantID, policy.Role{
			Name: "Book Club", GroupID: policy.UnsetID,
			SecurityMode: policy.SecurityModeSocialGroup, Status: policy.RoleStatusApproved,
		})
		require.NoError(t, err)

		expiry := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Millisecond)
		saved, err := repo.UpsertMembership(ctx, tenantID, policy.Membership{
			UserID: 20, RoleID: role.ID, DisplayName: "Jane Doe",
			ExpiryDate: expiry, Status: policy.RoleStatusApproved, IsOwner: true,
		})
		require.NoError(t, err)
		assert.True(t, saved.ExpiryDate.Equal(expiry))
		assert.True(t, saved.EffectiveDate.IsZero())

		// Upsert replaces the existing assignment.
		saved, err = repo.UpsertMembership(ctx, tenantID, policy.Membership{
			UserID: 20, RoleID: role.ID, DisplayName: "Jane Doe",
			Status: policy.RoleStatusApproved, IsOwner: true,
		})
		require.NoError(t, err)
		assert.True(t, saved.ExpiryDate.IsZero())

		// The sole owner of a social role cannot be removed.
		ok, err := repo.CanRemoveMembership(ctx, tenantID, 20, role.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.UpsertMembership(ctx, tenantID, policy.Membership{
			UserID: 21, RoleID: role.ID, DisplayName: "John Smith",
			Status: policy.RoleStatusApproved, IsOwner: true,
		})
		require.NoError(t, err)

		ok, err = repo.CanRemoveMembership(ctx, tenantID, 20, role.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		members, err := repo.GetRoleMemberships(ctx, tenantID, role.ID)
		require.NoError(t, err)
		assert.Len(t, members, 2)

		require.NoError(t, repo.RemoveMembership(ctx, tenantID, 20, role.ID))
		_, err = repo.GetMembership(ctx, tenantID, 20, role.ID)
		assert.Error(t, err)

		// Removal is idempotent.
		assert.NoError(t, repo.RemoveMembership(ctx, tenantID, 20, role.ID))
	})
}
