package role

import (
	"context"
	"errors"
	"strings"

	"github.com/tendant/simple-roles/pkg/notification"
	"github.com/tendant/simple-roles/pkg/policy"
	"github.com/tendant/simple-roles/pkg/user"
	"golang.org/x/exp/slog"
)

// MembershipInfo is a membership together with its derived permission flags.
type MembershipInfo struct {
	policy.Membership
	policy.PermissionFlags
}

// UserSuggestion is a typeahead match for the user picker.
type UserSuggestion struct {
	UserID      int32
	DisplayName string
}

// RoleService orchestrates role, role-group, and membership administration.
// Every mutation is validated through the policy engine before it reaches
// storage, and the listing cache is invalidated after any write.
type RoleService struct {
	repo     RoleRepository
	users    user.Directory
	engine   *policy.Engine
	cache    Cache
	notifier notification.Notifier
}

// RoleServiceOption configures optional collaborators.
type RoleServiceOption func(*RoleService)

// WithCache attaches a listing cache.
func WithCache(c Cache) RoleServiceOption {
	return func(s *RoleService) { s.cache = c }
}

// WithNotifier attaches a notifier for membership assignments.
func WithNotifier(n notification.Notifier) RoleServiceOption {
	return func(s *RoleService) { s.notifier = n }
}

// NewRoleService creates a role administration service.
func NewRoleService(repo RoleRepository, users user.Directory, engine *policy.Engine, opts ...RoleServiceOption) *RoleService {
	s := &RoleService{
		repo:   repo,
		users:  users,
		engine: engine,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RoleService) tenantID() int32 {
	return s.engine.Tenant().ID
}

func (s *RoleService) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, s.tenantID())
	}
}

// ListRoles returns one page of the roles visible to the actor, plus whether
// more items exist beyond the page. groupID of policy.UnsetID lists all
// groups; a non-empty keyword keeps only case-insensitive name matches.
func (s *RoleService) ListRoles(ctx context.Context, actor policy.Actor, groupID int32, keyword string, startIndex, pageSize int) ([]policy.Role, bool, error) {
	roles, err := s.loadRoles(ctx, groupID)
	if err != nil {
		return nil, false, err
	}

	visible := s.engine.FilterVisibleRoles(actor, roles, keyword)
	page, loadMore := policy.Paginate(visible, startIndex, pageSize)
	return page, loadMore, nil
}

func (s *RoleService) loadRoles(ctx context.Context, groupID int32) ([]policy.Role, error) {
	// Only the unfiltered tenant listing is cached.
	if groupID != policy.UnsetID {
		return s.repo.FindRoles(ctx, s.tenantID(), RoleFilter{GroupID: groupID})
	}

	if s.cache != nil {
		if roles, ok := s.cache.GetRoles(ctx, s.tenantID()); ok {
			return roles, nil
		}
	}
	roles, err := s.repo.FindRoles(ctx, s.tenantID(), RoleFilter{GroupID: policy.UnsetID})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetRoles(ctx, s.tenantID(), roles)
	}
	return roles, nil
}

// SaveRole creates or updates a role. A submitted ID of policy.UnsetID means
// create. With assignExisting set, a newly created role is granted to every
// user already in the tenant.
func (s *RoleService) SaveRole(ctx context.Context, actor policy.Actor, submitted policy.Role, assignExisting bool) (policy.Role, error) {
	var existing *policy.Role
	if submitted.ID != policy.UnsetID {
		stored, err := s.repo.GetRoleByID(ctx, s.tenantID(), submitted.ID)
		if err != nil {
			return policy.Role{}, err
		}
		existing = &stored
	}

	var conflict *policy.Role
	if submitted.Name != "" {
		named, err := s.repo.GetRoleByName(ctx, s.tenantID(), submitted.Name)
		switch {
		case err == nil:
			conflict = &named
		case errors.Is(err, policy.ErrRoleNotFound):
			// no conflict
		default:
			return policy.Role{}, err
		}
	}

	validated, err := s.engine.ValidateRoleMutation(actor, submitted, existing, conflict)
	if err != nil {
		return policy.Role{}, err
	}

	var saved policy.Role
	if existing == nil {
		saved, err = s.repo.CreateRole(ctx, s.tenantID(), validated)
	} else {
		saved, err = s.repo.UpdateRole(ctx, s.tenantID(), validated)
	}
	if err != nil {
		return policy.Role{}, err
	}
	s.invalidateCache(ctx)

	if existing == nil && assignExisting {
		if err := s.assignToExistingUsers(ctx, saved); err != nil {
			return policy.Role{}, err
		}
	}

	slog.Info("Saved role", "roleId", saved.ID, "name", saved.Name, "created", existing == nil)
	return saved, nil
}

func (s *RoleService) assignToExistingUsers(ctx context.Context, role policy.Role) error {
	members, err := s.users.ListUsers(ctx, s.tenantID())
	if err != nil {
		return err
	}
	for _, u := range members {
		m := policy.Membership{
			UserID:      u.ID,
			RoleID:      role.ID,
			DisplayName: u.DisplayName,
			Status:      policy.RoleStatusApproved,
		}
		if _, err := s.repo.UpsertMembership(ctx, s.tenantID(), m); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRole removes a role. System roles are protected and the
// administrator role requires an administrator actor.
func (s *RoleService) DeleteRole(ctx context.Context, actor policy.Actor, roleID int32) error {
	role, err := s.repo.GetRoleByID(ctx, s.tenantID(), roleID)
	if err != nil {
		return err
	}
	if err := s.engine.AuthorizeRoleDeletion(role, s.engine.IsAdministrator(actor)); err != nil {
		return err
	}
	if err := s.repo.DeleteRole(ctx, s.tenantID(), roleID); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	slog.Info("Deleted role", "roleId", roleID)
	return nil
}

// ListRoleGroups returns the tenant's role groups. reload busts the cached
// listing first.
func (s *RoleService) ListRoleGroups(ctx context.Context, reload bool) ([]policy.RoleGroup, error) {
	if reload {
		s.invalidateCache(ctx)
	}
	if s.cache != nil {
		if groups, ok := s.cache.GetRoleGroups(ctx, s.tenantID()); ok {
			return groups, nil
		}
	}
	groups, err := s.repo.FindRoleGroups(ctx, s.tenantID())
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetRoleGroups(ctx, s.tenantID(), groups)
	}
	return groups, nil
}

// SaveRoleGroup creates or updates a role group. Duplicate names surface from
// the storage boundary as policy.ErrDuplicateName.
func (s *RoleService) SaveRoleGroup(ctx context.Context, actor policy.Actor, group policy.RoleGroup) (policy.RoleGroup, error) {
	validated, err := s.engine.ValidateRoleGroupMutation(actor, group)
	if err != nil {
		return policy.RoleGroup{}, err
	}

	var saved policy.RoleGroup
	if validated.ID == policy.UnsetID {
		saved, err = s.repo.CreateRoleGroup(ctx, s.tenantID(), validated)
	} else {
		saved, err = s.repo.UpdateRoleGroup(ctx, s.tenantID(), validated)
	}
	if err != nil {
		return policy.RoleGroup{}, err
	}
	s.invalidateCache(ctx)
	return saved, nil
}

// DeleteRoleGroup removes a role group.
func (s *RoleService) DeleteRoleGroup(ctx context.Context, actor policy.Actor, groupID int32) error {
	if _, err := s.repo.GetRoleGroupByID(ctx, s.tenantID(), groupID); err != nil {
		return err
	}
	if err := s.repo.DeleteRoleGroup(ctx, s.tenantID(), groupID); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// SuggestUsers returns typeahead matches on display name and username.
// Administrators are hidden from non-admin actors and an empty keyword
// yields no matches.
func (s *RoleService) SuggestUsers(ctx context.Context, actor policy.Actor, keyword string, count int) ([]UserSuggestion, error) {
	if keyword == "" {
		return []UserSuggestion{}, nil
	}

	byDisplay, err := s.users.SearchUsersByDisplayName(ctx, s.tenantID(), keyword, count)
	if err != nil {
		return nil, err
	}
	byUsername, err := s.users.SearchUsersByUsername(ctx, s.tenantID(), keyword, count)
	if err != nil {
		return nil, err
	}

	isAdmin := s.engine.IsAdministrator(actor)
	adminRole := s.engine.Tenant().AdministratorRoleName

	seen := make(map[int32]bool)
	suggestions := make([]UserSuggestion, 0, len(byDisplay)+len(byUsername))
	for _, u := range append(byDisplay, byUsername...) {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		if !isAdmin && holdsRole(u, adminRole) {
			continue
		}
		suggestions = append(suggestions, UserSuggestion{
			UserID:      u.ID,
			DisplayName: u.DisplayName + " (" + u.Username + ")",
		})
	}
	return suggestions, nil
}

func holdsRole(u user.User, name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// ListRoleUsers returns one page of a role's memberships with their derived
// permission flags, plus the total after keyword filtering. The keyword is a
// case-insensitive prefix match on the member display name.
func (s *RoleService) ListRoleUsers(ctx context.Context, actor policy.Actor, roleID int32, keyword string, pageIndex, pageSize int) ([]MembershipInfo, int, error) {
	role, err := s.repo.GetRoleByID(ctx, s.tenantID(), roleID)
	if err != nil {
		return nil, 0, err
	}
	if role.ID == s.engine.Tenant().AdministratorRoleID && !s.engine.IsAdministrator(actor) {
		return nil, 0, policy.ErrForbidden
	}

	memberships, err := s.repo.GetRoleMemberships(ctx, s.tenantID(), roleID)
	if err != nil {
		return nil, 0, err
	}

	if keyword != "" {
		prefix := strings.ToLower(keyword)
		filtered := make([]policy.Membership, 0, len(memberships))
		for _, m := range memberships {
			if strings.HasPrefix(strings.ToLower(m.DisplayName), prefix) {
				filtered = append(filtered, m)
			}
		}
		memberships = filtered
	}

	if pageIndex < 0 {
		pageIndex = 0
	}
	if pageSize < 0 {
		pageSize = 0
	}
	total := len(memberships)
	start := pageIndex * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	page := make([]MembershipInfo, 0, end-start)
	for _, m := range memberships[start:end] {
		page = append(page, MembershipInfo{
			Membership:      m,
			PermissionFlags: s.engine.ComputeMembershipPermissionFlags(m, s.canRemove(ctx)),
		})
	}
	return page, total, nil
}

func (s *RoleService) canRemove(ctx context.Context) func(userID, roleID int32) bool {
	return func(userID, roleID int32) bool {
		ok, err := s.repo.CanRemoveMembership(ctx, s.tenantID(), userID, roleID)
		if err != nil {
			slog.Error("Failed checking membership removal capability", "userId", userID, "roleId", roleID, "err", err)
			return false
		}
		return ok
	}
}

// AddUserToRole assigns a user to a role. The expiry window is cleared when
// the policy disallows one, the owner flag is only honored for social roles,
// and only approved roles accept members. With notify set, the member is
// emailed after the assignment.
func (s *RoleService) AddUserToRole(ctx context.Context, actor policy.Actor, m policy.Membership, notify, isOwner bool) (MembershipInfo, error) {
	if err := s.engine.ValidateMembershipMutation(actor, m.UserID, m.RoleID); err != nil {
		return MembershipInfo{}, err
	}
	m = s.engine.ClearDisallowedExpiry(m)

	target, err := s.resolveTargetUser(ctx, actor, m.UserID)
	if err != nil {
		return MembershipInfo{}, err
	}

	role, err := s.repo.GetRoleByID(ctx, s.tenantID(), m.RoleID)
	if err != nil {
		return MembershipInfo{}, err
	}
	if err := policy.GateMembershipApproval(role); err != nil {
		return MembershipInfo{}, err
	}

	m.IsOwner = policy.ResolveEffectiveOwnerFlag(role, isOwner)
	m.Status = policy.RoleStatusApproved
	m.DisplayName = target.DisplayName

	saved, err := s.repo.UpsertMembership(ctx, s.tenantID(), m)
	if err != nil {
		return MembershipInfo{}, err
	}

	if notify {
		s.notifyAssignment(target, role)
	}

	return MembershipInfo{
		Membership:      saved,
		PermissionFlags: s.engine.ComputeMembershipPermissionFlags(saved, s.canRemove(ctx)),
	}, nil
}

func (s *RoleService) notifyAssignment(target user.User, role policy.Role) {
	if s.notifier == nil || target.Email == "" {
		return
	}
	err := s.notifier.Send(notification.NotificationData{
		To:      target.Email,
		Subject: "You have been added to the role " + role.Name,
		Body:    "Hello " + target.DisplayName + ",\n\nYou are now a member of the role " + role.Name + ".",
	})
	if err != nil {
		// The assignment stands even when the notice cannot be delivered.
		slog.Error("Failed sending role assignment notice", "userId", target.ID, "roleId", role.ID, "err", err)
	}
}

// RemoveUserFromRole removes a user's membership in a role.
func (s *RoleService) RemoveUserFromRole(ctx context.Context, actor policy.Actor, userID, roleID int32) error {
	if err := s.engine.ValidateMembershipMutation(actor, userID, roleID); err != nil {
		return err
	}
	if _, err := s.resolveTargetUser(ctx, actor, userID); err != nil {
		return err
	}
	return s.repo.RemoveMembership(ctx, s.tenantID(), userID, roleID)
}

// resolveTargetUser loads the target user and authorizes the actor against
// them. Superuser identities resolve against the global directory once
// authorization passes.
func (s *RoleService) resolveTargetUser(ctx context.Context, actor policy.Actor, userID int32) (user.User, error) {
	u, err := s.users.GetUserByID(ctx, s.tenantID(), userID)
	if err != nil {
		return user.User{}, err
	}
	if err := s.engine.AuthorizeTargetUser(actor, u.Ref()); err != nil {
		return user.User{}, err
	}
	if u.SuperUser {
		return s.users.GetGlobalUserByID(ctx, userID)
	}
	return u, nil
}
