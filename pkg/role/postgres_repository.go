package role

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-roles/pkg/policy"
)

// PostgresRoleRepository implements RoleRepository backed by PostgreSQL.
// Name uniqueness is enforced by unique indexes on (tenant_id, lower(name));
// violations are surfaced as policy.ErrDuplicateName so storage stays the
// authority on duplicates even under concurrent creates.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRoleRepository creates a PostgreSQL-based role repository.
func NewPostgresRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

const uniqueViolation = "23505"

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return policy.ErrDuplicateName
	}
	return err
}

const roleColumns = `id, name, description, group_id, is_system_role, security_mode, status`

func scanRole(row pgx.Row) (policy.Role, error) {
	var r policy.Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.GroupID, &r.SystemRole, &r.SecurityMode, &r.Status)
	return r, err
}

// FindRoles returns the tenant's roles ordered by id.
func (r *PostgresRoleRepository) FindRoles(ctx context.Context, tenantID int32, filter RoleFilter) ([]policy.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 ORDER BY id`
	args := []any{tenantID}
	if filter.GroupID != policy.UnsetID {
		query = `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 AND group_id = $2 ORDER BY id`
		args = append(args, filter.GroupID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find roles: %w", err)
	}
	defer rows.Close()

	var roles []policy.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRoleByID retrieves a role by id.
func (r *PostgresRoleRepository) GetRoleByID(ctx context.Context, tenantID, roleID int32) (policy.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND id = $2`,
		tenantID, roleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return policy.Role{}, policy.ErrRoleNotFound
	}
	return role, err
}

// GetRoleByName retrieves a role by name, case-insensitive.
func (r *PostgresRoleRepository) GetRoleByName(ctx context.Context, tenantID int32, name string) (policy.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND lower(name) = lower($2)`,
		tenantID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return policy.Role{}, policy.ErrRoleNotFound
	}
	return role, err
}

// CreateRole creates a new role.
func (r *PostgresRoleRepository) CreateRole(ctx context.Context, tenantID int32, role policy.Role) (policy.Role, error) {
	created, err := scanRole(r.pool.QueryRow(ctx,
		`INSERT INTO roles (tenant_id, name, description, group_id, is_system_role, security_mode, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+roleColumns,
		tenantID, role.Name, role.Description, role.GroupID, role.SystemRole, role.SecurityMode, role.Status))
	if err != nil {
		return policy.Role{}, mapWriteErr(err)
	}
	return created, nil
}

// UpdateRole updates an existing role.
func (r *PostgresRoleRepository) UpdateRole(ctx context.Context, tenantID int32, role policy.Role) (policy.Role, error) {
	updated, err := scanRole(r.pool.QueryRow(ctx,
		`UPDATE roles
		 SET name = $3, description = $4, group_id = $5, is_system_role = $6, security_mode = $7, status = $8
		 WHERE tenant_id = $1 AND id = $2
		 RETURNING `+roleColumns,
		tenantID, role.ID, role.Name, role.Description, role.GroupID, role.SystemRole, role.SecurityMode, role.Status))
	if errors.Is(err, pgx.ErrNoRows) {
		return policy.Role{}, policy.ErrRoleNotFound
	}
	if err != nil {
		return policy.Role{}, mapWriteErr(err)
	}
	return updated, nil
}

// DeleteRole deletes a role and its memberships.
func (r *PostgresRoleRepository) DeleteRole(ctx context.Context, tenantID, roleID int32) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE tenant_id = $1 AND role_id = $2`, tenantID, roleID); err != nil {
		return fmt.Errorf("failed to delete role memberships: %w", err)
	}
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM roles WHERE tenant_id = $1 AND id = $2`, tenantID, roleID); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

// FindRoleGroups returns the tenant's role groups ordered by id.
func (r *PostgresRoleRepository) FindRoleGroups(ctx context.Context, tenantID int32) ([]policy.RoleGroup, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description FROM role_groups WHERE tenant_id = $1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to find role groups: %w", err)
	}
	defer rows.Close()

	var groups []policy.RoleGroup
	for rows.Next() {
		var g policy.RoleGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Description); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetRoleGroupByID retrieves a role group by id.
func (r *PostgresRoleRepository) GetRoleGroupByID(ctx context.Context, tenantID, groupID int32) (policy.RoleGroup, error) {
	var g policy.RoleGroup
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description FROM role_groups WHERE tenant_id = $1 AND id = $2`,
		tenantID, groupID).Scan(&g.ID, &g.Name, &g.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return policy.RoleGroup{}, policy.ErrRoleGroupNotFound
	}
	return g, err
}

// CreateRoleGroup creates a new role group.
func (r *PostgresRoleRepository) CreateRoleGroup(ctx context.Context, tenantID int32, group policy.RoleGroup) (policy.RoleGroup, error) {
	var g policy.RoleGroup
	err := r.pool.QueryRow(ctx,
		`INSERT INTO role_groups (tenant_id, name, description) VALUES ($1, $2, $3)
		 RETURNING id, name, description`,
		tenantID, group.Name, group.Description).Scan(&g.ID, &g.Name, &g.Description)
	if err != nil {
		return policy.RoleGroup{}, mapWriteErr(err)
	}
	return g, nil
}

// UpdateRoleGroup updates an existing role group.
func (r *PostgresRoleRepository) UpdateRoleGroup(ctx context.Context, tenantID int32, group policy.RoleGroup) (policy.RoleGroup, error) {
	var g policy.RoleGroup
	err := r.pool.QueryRow(ctx,
		`UPDATE role_groups SET name = $3, description = $4 WHERE tenant_id = $1 AND id = $2
		 RETURNING id, name, description`,
		tenantID, group.ID, group.Name, group.Description).Scan(&g.ID, &g.Name, &g.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return policy.RoleGroup{}, policy.ErrRoleGroupNotFound
	}
	if err != nil {
		return policy.RoleGroup{}, mapWriteErr(err)
	}
	return g, nil
}

// DeleteRoleGroup deletes a role group and ungroups its roles.
func (r *PostgresRoleRepository) DeleteRoleGroup(ctx context.Context, tenantID, groupID int32) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE roles SET group_id = $3 WHERE tenant_id = $1 AND group_id = $2`,
		tenantID, groupID, policy.UnsetID); err != nil {
		return fmt.Errorf("failed to ungroup roles: %w", err)
	}
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM role_groups WHERE tenant_id = $1 AND id = $2`, tenantID, groupID); err != nil {
		return fmt.Errorf("failed to delete role group: %w", err)
	}
	return nil
}

const membershipColumns = `user_id, role_id, display_name, effective_date, expiry_date, status, is_owner`

func scanMembership(row pgx.Row) (policy.Membership, error) {
	var m policy.Membership
	var effective, expiry *time.Time
	err := row.Scan(&m.UserID, &m.RoleID, &m.DisplayName, &effective, &expiry, &m.Status, &m.IsOwner)
	if err != nil {
		return policy.Membership{}, err
	}
	if effective != nil {
		m.EffectiveDate = *effective
	}
	if expiry != nil {
		m.ExpiryDate = *expiry
	}
	return m, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// GetRoleMemberships returns a role's memberships ordered by user id.
func (r *PostgresRoleRepository) GetRoleMemberships(ctx context.Context, tenantID, roleID int32) ([]policy.Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+membershipColumns+` FROM user_roles WHERE tenant_id = $1 AND role_id = $2 ORDER BY user_id`,
		tenantID, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role memberships: %w", err)
	}
	defer rows.Close()

	var members []policy.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetMembership retrieves one membership.
func (r *PostgresRoleRepository) GetMembership(ctx context.Context, tenantID, userID, roleID int32) (policy.Membership, error) {
	m, err := scanMembership(r.pool.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM user_roles WHERE tenant_id = $1 AND user_id = $2 AND role_id = $3`,
		tenantID, userID, roleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return policy.Membership{}, policy.ErrUserNotFound
	}
	return m, err
}

// UpsertMembership creates or replaces a membership.
func (r *PostgresRoleRepository) UpsertMembership(ctx context.Context, tenantID int32, m policy.Membership) (policy.Membership, error) {
	saved, err := scanMembership(r.pool.QueryRow(ctx,
		`INSERT INTO user_roles (tenant_id, user_id, role_id, display_name, effective_date, expiry_date, status, is_owner)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tenant_id, user_id, role_id) DO UPDATE
		 SET display_name = EXCLUDED.display_name,
		     effective_date = EXCLUDED.effective_date,
		     expiry_date = EXCLUDED.expiry_date,
		     status = EXCLUDED.status,
		     is_owner = EXCLUDED.is_owner
		 RETURNING `+membershipColumns,
		tenantID, m.UserID, m.RoleID, m.DisplayName,
		nullableTime(m.EffectiveDate), nullableTime(m.ExpiryDate), m.Status, m.IsOwner))
	if err != nil {
		return policy.Membership{}, fmt.Errorf("failed to upsert membership: %w", err)
	}
	return saved, nil
}

// RemoveMembership removes a membership. Removal is idempotent.
func (r *PostgresRoleRepository) RemoveMembership(ctx context.Context, tenantID, userID, roleID int32) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE tenant_id = $1 AND user_id = $2 AND role_id = $3`,
		tenantID, userID, roleID); err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	return nil
}

// CanRemoveMembership refuses removing the last owner of a social role.
func (r *PostgresRoleRepository) CanRemoveMembership(ctx context.Context, tenantID, userID, roleID int32) (bool, error) {
	var isOwner bool
	err := r.pool.QueryRow(ctx,
		`SELECT is_owner FROM user_roles WHERE tenant_id = $1 AND user_id = $2 AND role_id = $3`,
		tenantID, userID, roleID).Scan(&isOwner)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !isOwner {
		return true, nil
	}

	var owners int
	err = r.pool.QueryRow(ctx,
		`SELECT count(*) FROM user_roles WHERE tenant_id = $1 AND role_id = $2 AND is_owner`,
		tenantID, roleID).Scan(&owners)
	if err != nil {
		return false, err
	}
	return owners > 1, nil
}
