package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-roles/pkg/policy"
	"golang.org/x/exp/slog"
)

// New creates a Redis client and verifies connectivity.
func New(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RolesCache caches tenant role and role-group listings in Redis as JSON.
// A redis failure degrades to a cache miss rather than an error so listing
// requests keep working when redis is down.
type RolesCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRolesCache creates a listing cache with the given entry TTL.
func NewRolesCache(client *redis.Client, ttl time.Duration) *RolesCache {
	return &RolesCache{client: client, ttl: ttl}
}

func rolesKey(tenantID int32) string {
	return fmt.Sprintf("roles:%d", tenantID)
}

func roleGroupsKey(tenantID int32) string {
	return fmt.Sprintf("rolegroups:%d", tenantID)
}

// GetRoles returns the cached role listing for a tenant, if present.
func (c *RolesCache) GetRoles(ctx context.Context, tenantID int32) ([]policy.Role, bool) {
	var roles []policy.Role
	if !c.get(ctx, rolesKey(tenantID), &roles) {
		return nil, false
	}
	return roles, true
}

// SetRoles stores the role listing for a tenant.
func (c *RolesCache) SetRoles(ctx context.Context, tenantID int32, roles []policy.Role) {
	c.set(ctx, rolesKey(tenantID), roles)
}

// GetRoleGroups returns the cached role-group listing for a tenant, if present.
func (c *RolesCache) GetRoleGroups(ctx context.Context, tenantID int32) ([]policy.RoleGroup, bool) {
	var groups []policy.RoleGroup
	if !c.get(ctx, roleGroupsKey(tenantID), &groups) {
		return nil, false
	}
	return groups, true
}

// SetRoleGroups stores the role-group listing for a tenant.
func (c *RolesCache) SetRoleGroups(ctx context.Context, tenantID int32, groups []policy.RoleGroup) {
	c.set(ctx, roleGroupsKey(tenantID), groups)
}

// Invalidate drops every cached listing for a tenant.
func (c *RolesCache) Invalidate(ctx context.Context, tenantID int32) {
	if err := c.client.Del(ctx, rolesKey(tenantID), roleGroupsKey(tenantID)).Err(); err != nil {
		slog.Error("Failed invalidating cached listings", "tenantId", tenantID, "err", err)
	}
}

func (c *RolesCache) get(ctx context.Context, key string, dest any) bool {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		slog.Error("Failed reading cached listing", "key", key, "err", err)
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		slog.Error("Failed decoding cached listing", "key", key, "err", err)
		return false
	}
	return true
}

func (c *RolesCache) set(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		slog.Error("Failed encoding listing for cache", "key", key, "err", err)
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		slog.Error("Failed writing cached listing", "key", key, "err", err)
	}
}
