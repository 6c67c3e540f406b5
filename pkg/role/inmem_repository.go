package role

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-roles/pkg/policy"
)

type membershipKey struct {
	userID int32
	roleID int32
}

// InMemoryRoleRepository implements RoleRepository using in-memory storage.
type InMemoryRoleRepository struct {
	mu          sync.RWMutex
	nextID      int32
	roles       map[int32]map[int32]policy.Role               // tenantID -> roleID -> Role
	groups      map[int32]map[int32]policy.RoleGroup          // tenantID -> groupID -> RoleGroup
	memberships map[int32]map[membershipKey]policy.Membership // tenantID -> (userID, roleID) -> Membership
}

// NewInMemoryRoleRepository creates a new in-memory role repository.
func NewInMemoryRoleRepository() *InMemoryRoleRepository {
	return &InMemoryRoleRepository{
		nextID:      1,
		roles:       make(map[int32]map[int32]policy.Role),
		groups:      make(map[int32]map[int32]policy.RoleGroup),
		memberships: make(map[int32]map[membershipKey]policy.Membership),
	}
}

func (r *InMemoryRoleRepository) allocID() int32 {
	id := r.nextID
	r.nextID++
	return id
}

// FindRoles returns the tenant's roles ordered by id.
func (r *InMemoryRoleRepository) FindRoles(ctx context.Context, tenantID int32, filter RoleFilter) ([]policy.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]policy.Role, 0, len(r.roles[tenantID]))
	for _, role := range r.roles[tenantID] {
		if filter.GroupID != policy.UnsetID && role.GroupID != filter.GroupID {
			continue
		}
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

// GetRoleByID retrieves a role by id.
func (r *InMemoryRoleRepository) GetRoleByID(ctx context.Context, tenantID, roleID int32) (policy.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[tenantID][roleID]
	if !ok {
		return policy.Role{}, policy.ErrRoleNotFound
	}
	return role, nil
}

// GetRoleByName retrieves a role by name, case-insensitive.
func (r *InMemoryRoleRepository) GetRoleByName(ctx context.Context, tenantID int32, name string) (policy.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, role := range r.roles[tenantID] {
		if strings.EqualFold(role.Name, name) {
			return role, nil
		}
	}
	return policy.Role{}, policy.ErrRoleNotFound
}

// CreateRole creates a new role.
func (r *InMemoryRoleRepository) CreateRole(ctx context.Context, tenantID int32, role policy.Role) (policy.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stored := range r.roles[tenantID] {
		if strings.EqualFold(stored.Name, role.Name) {
			return policy.Role{}, policy.ErrDuplicateName
		}
	}

	role.ID = r.allocID()
	if r.roles[tenantID] == nil {
		r.roles[tenantID] = make(map[int32]policy.Role)
	}
	r.roles[tenantID][role.ID] = role
	return role, nil
}

// UpdateRole updates an existing role.
func (r *InMemoryRoleRepository) UpdateRole(ctx context.Context, tenantID int32, role policy.Role) (policy.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[tenantID][role.ID]; !ok {
		return policy.Role{}, policy.ErrRoleNotFound
	}
	for _, stored := range r.roles[tenantID] {
		if stored.ID != role.ID && strings.EqualFold(stored.Name, role.Name) {
			return policy.Role{}, policy.ErrDuplicateName
		}
	}
	r.roles[tenantID][role.ID] = role
	return role, nil
}

// DeleteRole deletes a role and its memberships.
func (r *InMemoryRoleRepository) DeleteRole(ctx context.Context, tenantID, roleID int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.roles[tenantID], roleID)
	for key := range r.memberships[tenantID] {
		if key.roleID == roleID {
			delete(r.memberships[tenantID], key)
		}
	}
	return nil
}

// FindRoleGroups returns the tenant's role groups ordered by id.
func (r *InMemoryRoleRepository) FindRoleGroups(ctx context.Context, tenantID int32) ([]policy.RoleGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make([]policy.RoleGroup, 0, len(r.groups[tenantID]))
	for _, g := range r.groups[tenantID] {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// GetRoleGroupByID retrieves a role group by id.
func (r *InMemoryRoleRepository) GetRoleGroupByID(ctx context.Context, tenantID, groupID int32) (policy.RoleGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[tenantID][groupID]
	if !ok {
		return policy.RoleGroup{}, policy.ErrRoleGroupNotFound
	}
	return g, nil
}

// CreateRoleGroup creates a new role group. Duplicate names are reported as
// policy.ErrDuplicateName, mirroring the uniqueness constraint a database
// enforces.
func (r *InMemoryRoleRepository) CreateRoleGroup(ctx context.Context, tenantID int32, group policy.RoleGroup) (policy.RoleGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stored := range r.groups[tenantID] {
		if strings.EqualFold(stored.Name, group.Name) {
			return policy.RoleGroup{}, policy.ErrDuplicateName
		}
	}

	group.ID = r.allocID()
	if r.groups[tenantID] == nil {
		r.groups[tenantID] = make(map[int32]policy.RoleGroup)
	}
	r.groups[tenantID][group.ID] = group
	return group, nil
}

// UpdateRoleGroup updates an existing role group.
func (r *InMemoryRoleRepository) UpdateRoleGroup(ctx context.Context, tenantID int32, group policy.RoleGroup) (policy.RoleGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[tenantID][group.ID]; !ok {
		return policy.RoleGroup{}, policy.ErrRoleGroupNotFound
	}
	for _, stored := range r.groups[tenantID] {
		if stored.ID != group.ID && strings.EqualFold(stored.Name, group.Name) {
			return policy.RoleGroup{}, policy.ErrDuplicateName
		}
	}
	r.groups[tenantID][group.ID] = group
	return group, nil
}

// DeleteRoleGroup deletes a role group. Roles in the group revert to
// ungrouped.
func (r *InMemoryRoleRepository) DeleteRoleGroup(ctx context.Context, tenantID, groupID int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.groups[tenantID], groupID)
	for id, role := range r.roles[tenantID] {
		if role.GroupID == groupID {
			role.GroupID = policy.UnsetID
			r.roles[tenantID][id] = role
		}
	}
	return nil
}

// GetRoleMemberships returns a role's memberships ordered by user id.
func (r *InMemoryRoleRepository) GetRoleMemberships(ctx context.Context, tenantID, roleID int32) ([]policy.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]policy.Membership, 0)
	for key, m := range r.memberships[tenantID] {
		if key.roleID == roleID {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

// GetMembership retrieves one membership.
func (r *InMemoryRoleRepository) GetMembership(ctx context.Context, tenantID, userID, roleID int32) (policy.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.memberships[tenantID][membershipKey{userID, roleID}]
	if !ok {
		return policy.Membership{}, policy.ErrUserNotFound
	}
	return m, nil
}

// UpsertMembership creates or replaces a membership.
func (r *InMemoryRoleRepository) UpsertMembership(ctx context.Context, tenantID int32, m policy.Membership) (policy.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[tenantID][m.RoleID]; !ok {
		return policy.Membership{}, policy.ErrRoleNotFound
	}
	if r.memberships[tenantID] == nil {
		r.memberships[tenantID] = make(map[membershipKey]policy.Membership)
	}
	r.memberships[tenantID][membershipKey{m.UserID, m.RoleID}] = m
	return m, nil
}

// RemoveMembership removes a membership. Removal is idempotent.
func (r *InMemoryRoleRepository) RemoveMembership(ctx context.Context, tenantID, userID, roleID int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.memberships[tenantID], membershipKey{userID, roleID})
	return nil
}

// CanRemoveMembership refuses removing the last owner of a social role and
// permits everything else. Hosts with richer removal rules plug in their
// own repository.
func (r *InMemoryRoleRepository) CanRemoveMembership(ctx context.Context, tenantID, userID, roleID int32) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.memberships[tenantID][membershipKey{userID, roleID}]
	if !ok {
		return true, nil
	}
	if !m.IsOwner {
		return true, nil
	}
	owners := 0
	for key, stored := range r.memberships[tenantID] {
		if key.roleID == roleID && stored.IsOwner {
			owners++
		}
	}
	return owners > 1, nil
}

// SeedRole adds a role directly (for testing/initialization).
func (r *InMemoryRoleRepository) SeedRole(tenantID int32, role policy.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.roles[tenantID] == nil {
		r.roles[tenantID] = make(map[int32]policy.Role)
	}
	r.roles[tenantID][role.ID] = role
	if role.ID >= r.nextID {
		r.nextID = role.ID + 1
	}
}

// SeedRoleGroup adds a role group directly (for testing/initialization).
func (r *InMemoryRoleRepository) SeedRoleGroup(tenantID int32, group policy.RoleGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.groups[tenantID] == nil {
		r.groups[tenantID] = make(map[int32]policy.RoleGroup)
	}
	r.groups[tenantID][group.ID] = group
	if group.ID >= r.nextID {
		r.nextID = group.ID + 1
	}
}

// SeedMembership adds a membership directly (for testing/initialization).
func (r *InMemoryRoleRepository) SeedMembership(tenantID int32, m policy.Membership) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.memberships[tenantID] == nil {
		r.memberships[tenantID] = make(map[membershipKey]policy.Membership)
	}
	r.memberships[tenantID][membershipKey{m.UserID, m.RoleID}] = m
}
