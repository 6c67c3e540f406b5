package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-roles/pkg/policy"
)

// PostgresDirectory implements Directory backed by PostgreSQL. Host-level
// (tenant-less) superuser records are stored under GlobalTenantID.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a PostgreSQL-based user directory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

const userColumns = `u.id, u.username, u.display_name, u.email, u.is_superuser`

func (d *PostgresDirectory) getUser(ctx context.Context, tenantID, userID int32) (User, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.tenant_id = $1 AND u.id = $2`,
		tenantID, userID)

	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.SuperUser); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, policy.ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}

	roles, err := d.userRoleNames(ctx, tenantID, userID)
	if err != nil {
		return User{}, err
	}
	u.Roles = roles
	return u, nil
}

func (d *PostgresDirectory) userRoleNames(ctx context.Context, tenantID, userID int32) ([]string, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT r.name
		 FROM user_roles ur JOIN roles r ON r.id = ur.role_id AND r.tenant_id = ur.tenant_id
		 WHERE ur.tenant_id = $1 AND ur.user_id = $2
		 ORDER BY r.name`,
		tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetUserByID retrieves a tenant-scoped user with their role names.
func (d *PostgresDirectory) GetUserByID(ctx context.Context, tenantID, userID int32) (User, error) {
	return d.getUser(ctx, tenantID, userID)
}

// GetGlobalUserByID retrieves a host-level user record.
func (d *PostgresDirectory) GetGlobalUserByID(ctx context.Context, userID int32) (User, error) {
	return d.getUser(ctx, GlobalTenantID, userID)
}

// ListUsers returns every user in the tenant, ordered by user id.
func (d *PostgresDirectory) ListUsers(ctx context.Context, tenantID int32) ([]User, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users u WHERE u.tenant_id = $1 ORDER BY u.id`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.SuperUser); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SearchUsersByDisplayName returns users whose display name starts with prefix.
func (d *PostgresDirectory) SearchUsersByDisplayName(ctx context.Context, tenantID int32, prefix string, limit int) ([]User, error) {
	return d.searchUsers(ctx, tenantID, "display_name", prefix, limit)
}

// SearchUsersByUsername returns users whose username starts with prefix.
func (d *PostgresDirectory) SearchUsersByUsername(ctx context.Context, tenantID int32, prefix string, limit int) ([]User, error) {
	return d.searchUsers(ctx, tenantID, "username", prefix, limit)
}

func (d *PostgresDirectory) searchUsers(ctx context.Context, tenantID int32, column, prefix string, limit int) ([]User, error) {
	// column is one of the two fixed callers above, never user input.
	rows, err := d.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE u.tenant_id = $1 AND u.`+column+` ILIKE $2 || '%'
		 ORDER BY u.id LIMIT $3`,
		tenantID, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Email, &u.SuperUser); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range users {
		roles, err := d.userRoleNames(ctx, tenantID, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Roles = roles
	}
	return users, nil
}
