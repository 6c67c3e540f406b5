package user

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-roles/pkg/policy"
)

// GlobalTenantID keys the host-level directory that superuser identities
// resolve against.
const GlobalTenantID int32 = -1

// InMemoryDirectory implements Directory using in-memory storage.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[int32]map[int32]User // tenantID -> userID -> User
}

// NewInMemoryDirectory creates a new in-memory user directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		users: make(map[int32]map[int32]User),
	}
}

// GetUserByID retrieves a tenant-scoped user.
func (d *InMemoryDirectory) GetUserByID(ctx context.Context, tenantID, userID int32) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[tenantID][userID]
	if !ok {
		return User{}, policy.ErrUserNotFound
	}
	return u, nil
}

// GetGlobalUserByID retrieves a host-level user record.
func (d *InMemoryDirectory) GetGlobalUserByID(ctx context.Context, userID int32) (User, error) {
	return d.GetUserByID(ctx, GlobalTenantID, userID)
}

// ListUsers returns every user in the tenant, ordered by user id.
func (d *InMemoryDirectory) ListUsers(ctx context.Context, tenantID int32) ([]User, error) {
	return d.search(tenantID, "", 0, func(u User) string { return u.Username })
}

// SearchUsersByDisplayName returns users whose display name starts with
// prefix, case-insensitive, ordered by user id.
func (d *InMemoryDirectory) SearchUsersByDisplayName(ctx context.Context, tenantID int32, prefix string, limit int) ([]User, error) {
	return d.search(tenantID, prefix, limit, func(u User) string { return u.DisplayName })
}

// SearchUsersByUsername returns users whose username starts with prefix,
// case-insensitive, ordered by user id.
func (d *InMemoryDirectory) SearchUsersByUsername(ctx context.Context, tenantID int32, prefix string, limit int) ([]User, error) {
	return d.search(tenantID, prefix, limit, func(u User) string { return u.Username })
}

func (d *InMemoryDirectory) search(tenantID int32, prefix string, limit int, field func(User) string) ([]User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	prefix = strings.ToLower(prefix)
	matched := make([]User, 0)
	for _, u := range d.users[tenantID] {
		if strings.HasPrefix(strings.ToLower(field(u)), prefix) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// SeedUser adds a user record directly (for testing/initialization).
// Superusers should additionally be seeded under GlobalTenantID so the
// global lookup can resolve them.
func (d *InMemoryDirectory) SeedUser(tenantID int32, u User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.users[tenantID] == nil {
		d.users[tenantID] = make(map[int32]User)
	}
	d.users[tenantID][u.ID] = u
}
