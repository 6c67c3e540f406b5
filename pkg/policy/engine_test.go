package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTenant = Tenant{
	ID:                    1,
	AdministratorRoleID:   100,
	AdministratorUserID:   10,
	AdministratorRoleName: "Administrators",
}

func adminActor() Actor {
	return Actor{UserID: 10, Roles: []string{"Administrators"}}
}

func regularActor() Actor {
	return Actor{UserID: 42, Roles: []string{"Editors"}}
}

func TestIsAdministrator(t *testing.T) {
	engine := NewEngine(testTenant)

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{
			name:  "superuser",
			actor: Actor{UserID: 1, SuperUser: true},
			want:  true,
		},
		{
			name:  "holds administrator role",
			actor: adminActor(),
			want:  true,
		},
		{
			name:  "regular user",
			actor: regularActor(),
			want:  false,
		},
		{
			name:  "no roles",
			actor: Actor{UserID: 7},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.IsAdministrator(tt.actor))
		})
	}
}

func TestFilterVisibleRoles(t *testing.T) {
	engine := NewEngine(testTenant)

	roles := []Role{
		{ID: 100, Name: "Administrators"},
		{ID: 101, Name: "Editors"},
		{ID: 102, Name: "Senior Editors"},
		{ID: 103, Name: "Subscribers"},
	}

	t.Run("admin role hidden from regular actor", func(t *testing.T) {
		visible := engine.FilterVisibleRoles(regularActor(), roles, "")
		require.Len(t, visible, 3)
		for _, r := range visible {
			assert.NotEqual(t, testTenant.AdministratorRoleID, r.ID)
		}
	})

	t.Run("admin role visible to administrator", func(t *testing.T) {
		visible := engine.FilterVisibleRoles(adminActor(), roles, "")
		assert.Len(t, visible, 4)
	})

	t.Run("keyword matches case-insensitively", func(t *testing.T) {
		visible := engine.FilterVisibleRoles(adminActor(), roles, "EDIT")
		require.Len(t, visible, 2)
		assert.Equal(t, "Editors", visible[0].Name)
		assert.Equal(t, "Senior Editors", visible[1].Name)
	})

	t.Run("keyword and visibility combine", func(t *testing.T) {
		visible := engine.FilterVisibleRoles(regularActor(), roles, "admin")
		assert.Empty(t, visible)
	})

	t.Run("input order preserved", func(t *testing.T) {
		visible := engine.FilterVisibleRoles(adminActor(), roles, "s")
		var names []string
		for _, r := range visible {
			names = append(names, r.Name)
		}
		assert.Equal(t, []string{"Administrators", "Editors", "Senior Editors", "Subscribers"}, names)
	})
}

func TestPaginate(t *testing.T) {
	roles := []Role{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}

	tests := []struct {
		name       string
		startIndex int
		pageSize   int
		wantIDs    []int32
		wantMore   bool
	}{
		{name: "first page", startIndex: 0, pageSize: 2, wantIDs: []int32{1, 2}, wantMore: true},
		{name: "middle page", startIndex: 2, pageSize: 2, wantIDs: []int32{3, 4}, wantMore: true},
		{name: "last partial page", startIndex: 4, pageSize: 2, wantIDs: []int32{5}, wantMore: false},
		{name: "exact fit", startIndex: 0, pageSize: 5, wantIDs: []int32{1, 2, 3, 4, 5}, wantMore: false},
		{name: "past the end", startIndex: 10, pageSize: 2, wantIDs: []int32{}, wantMore: false},
		{name: "negative start clamps to zero", startIndex: -1, pageSize: 2, wantIDs: []int32{1, 2}, wantMore: true},
		{name: "negative page size yields empty page", startIndex: 0, pageSize: -1, wantIDs: []int32{}, wantMore: true},
		{name: "both negative", startIndex: -3, pageSize: -3, wantIDs: []int32{}, wantMore: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, more := Paginate(roles, tt.startIndex, tt.pageSize)
			var ids []int32
			for _, r := range page {
				ids = append(ids, r.ID)
			}
			if len(tt.wantIDs) == 0 {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, tt.wantIDs, ids)
			}
			assert.Equal(t, tt.wantMore, more)
		})
	}
}

func TestValidateRoleMutation_Create(t *testing.T) {
	engine := NewEngine(testTenant)

	t.Run("empty name", func(t *testing.T) {
		_, err := engine.ValidateRoleMutation(adminActor(), Role{ID: UnsetID}, nil, nil)
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("non-admin touching administrator role id", func(t *testing.T) {
		submitted := Role{ID: testTenant.AdministratorRoleID, Name: "X"}
		_, err := engine.ValidateRoleMutation(regularActor(), submitted, nil, nil)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("duplicate name", func(t *testing.T) {
		conflict := Role{ID: 101, Name: "Editors"}
		submitted := Role{ID: UnsetID, Name: "EDITORS"}
		_, err := engine.ValidateRoleMutation(adminActor(), submitted, nil, &conflict)
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("valid create passes through", func(t *testing.T) {
		submitted := Role{ID: UnsetID, Name: "Reviewers", GroupID: 5, Status: RoleStatusApproved}
		validated, err := engine.ValidateRoleMutation(adminActor(), submitted, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, submitted, validated)
	})
}

func TestValidateRoleMutation_Update(t *testing.T) {
	engine := NewEngine(testTenant)

	t.Run("system role keeps everything but description", func(t *testing.T) {
		existing := Role{
			ID:           200,
			Name:         "Registered Users",
			Description:  "old",
			GroupID:      3,
			SystemRole:   true,
			SecurityMode: SecurityModeSecurityRole,
			Status:       RoleStatusApproved,
		}
		submitted := Role{
			ID:           200,
			Name:         "Renamed",
			Description:  "new description",
			GroupID:      9,
			SecurityMode: SecurityModeBoth,
			Status:       RoleStatusPending,
		}

		validated, err := engine.ValidateRoleMutation(adminActor(), submitted, &existing, nil)
		require.NoError(t, err)

		want := existing
		want.Description = "new description"
		assert.Equal(t, want, validated)
	})

	t.Run("non-system role duplicate name against another id", func(t *testing.T) {
		existing := Role{ID: 201, Name: "Editors"}
		conflict := Role{ID: 300, Name: "editors"}
		submitted := Role{ID: 201, Name: "editors"}
		_, err := engine.ValidateRoleMutation(adminActor(), submitted, &existing, &conflict)
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("renaming to own name is not a duplicate", func(t *testing.T) {
		existing := Role{ID: 201, Name: "Editors"}
		conflict := Role{ID: 201, Name: "Editors"}
		submitted := Role{ID: 201, Name: "EDITORS", Description: "case change"}
		validated, err := engine.ValidateRoleMutation(adminActor(), submitted, &existing, &conflict)
		require.NoError(t, err)
		assert.Equal(t, submitted, validated)
	})

	t.Run("idempotent for identical inputs", func(t *testing.T) {
		existing := Role{ID: 201, Name: "Editors", SystemRole: true}
		submitted := Role{ID: 201, Name: "Editors", Description: "d"}
		first, err1 := engine.ValidateRoleMutation(adminActor(), submitted, &existing, nil)
		second, err2 := engine.ValidateRoleMutation(adminActor(), submitted, &existing, nil)
		assert.Equal(t, err1, err2)
		assert.Equal(t, first, second)
	})
}

func TestValidateRoleGroupMutation(t *testing.T) {
	engine := NewEngine(testTenant)

	_, err := engine.ValidateRoleGroupMutation(adminActor(), RoleGroup{})
	assert.ErrorIs(t, err, ErrEmptyName)

	group := RoleGroup{ID: UnsetID, Name: "Content", Description: "content roles"}
	validated, err := engine.ValidateRoleGroupMutation(regularActor(), group)
	require.NoError(t, err)
	assert.Equal(t, group, validated)
}

func TestAuthorizeRoleDeletion(t *testing.T) {
	engine := NewEngine(testTenant)

	tests := []struct {
		name         string
		role         Role
		actorIsAdmin bool
		wantErr      error
	}{
		{
			name:    "system role protected even for admins",
			role:    Role{ID: 200, SystemRole: true},
			wantErr: ErrSystemRoleProtected,
		},
		{
			name:         "system role protected for admins too",
			role:         Role{ID: 200, SystemRole: true},
			actorIsAdmin: true,
			wantErr:      ErrSystemRoleProtected,
		},
		{
			name:    "administrator role needs an admin actor",
			role:    Role{ID: testTenant.AdministratorRoleID},
			wantErr: ErrForbidden,
		},
		{
			name:         "administrator role deletable by admin",
			role:         Role{ID: testTenant.AdministratorRoleID},
			actorIsAdmin: true,
		},
		{
			name: "ordinary role",
			role: Role{ID: 300},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.AuthorizeRoleDeletion(tt.role, tt.actorIsAdmin)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateMembershipMutation(t *testing.T) {
	engine := NewEngine(testTenant)

	tests := []struct {
		name    string
		actor   Actor
		userID  int32
		roleID  int32
		wantErr error
	}{
		{name: "negative user id", actor: adminActor(), userID: -1, roleID: 5, wantErr: ErrInvalidArgument},
		{name: "negative role id", actor: adminActor(), userID: 5, roleID: -1, wantErr: ErrInvalidArgument},
		{name: "non-admin assigning administrator role", actor: regularActor(), userID: 5, roleID: 100, wantErr: ErrForbidden},
		{name: "admin assigning administrator role", actor: adminActor(), userID: 5, roleID: 100},
		{name: "ordinary assignment", actor: regularActor(), userID: 5, roleID: 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.ValidateMembershipMutation(tt.actor, tt.userID, tt.roleID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAllowExpiringMembership(t *testing.T) {
	engine := NewEngine(testTenant)

	assert.False(t, engine.AllowExpiringMembership(testTenant.AdministratorUserID, testTenant.AdministratorRoleID))
	assert.True(t, engine.AllowExpiringMembership(testTenant.AdministratorUserID, 101))
	assert.True(t, engine.AllowExpiringMembership(42, testTenant.AdministratorRoleID))
	assert.True(t, engine.AllowExpiringMembership(42, 101))
}

func TestClearDisallowedExpiry(t *testing.T) {
	engine := NewEngine(testTenant)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 6, 0)

	t.Run("administrator-of-record window cleared", func(t *testing.T) {
		m := Membership{
			UserID:        testTenant.AdministratorUserID,
			RoleID:        testTenant.AdministratorRoleID,
			EffectiveDate: start,
			ExpiryDate:    end,
		}
		cleared := engine.ClearDisallowedExpiry(m)
		assert.True(t, cleared.EffectiveDate.IsZero())
		assert.True(t, cleared.ExpiryDate.IsZero())
	})

	t.Run("other memberships keep their window", func(t *testing.T) {
		m := Membership{UserID: 42, RoleID: 101, EffectiveDate: start, ExpiryDate: end}
		kept := engine.ClearDisallowedExpiry(m)
		assert.Equal(t, start, kept.EffectiveDate)
		assert.Equal(t, end, kept.ExpiryDate)
	})
}

func TestResolveEffectiveOwnerFlag(t *testing.T) {
	tests := []struct {
		name      string
		mode      SecurityMode
		requested bool
		want      bool
	}{
		{name: "security role forces false", mode: SecurityModeSecurityRole, requested: true, want: false},
		{name: "social group honors request", mode: SecurityModeSocialGroup, requested: true, want: true},
		{name: "both honors request", mode: SecurityModeBoth, requested: true, want: true},
		{name: "social group honors false", mode: SecurityModeSocialGroup, requested: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role := Role{SecurityMode: tt.mode}
			assert.Equal(t, tt.want, ResolveEffectiveOwnerFlag(role, tt.requested))
		})
	}
}

func TestGateMembershipApproval(t *testing.T) {
	assert.ErrorIs(t, GateMembershipApproval(Role{Status: RoleStatusPending}), ErrRoleNotApproved)
	assert.ErrorIs(t, GateMembershipApproval(Role{Status: RoleStatusDisabled}), ErrRoleNotApproved)
	assert.NoError(t, GateMembershipApproval(Role{Status: RoleStatusApproved}))
}

func TestComputeMembershipPermissionFlags(t *testing.T) {
	engine := NewEngine(testTenant)

	denyAll := func(userID, roleID int32) bool { return false }
	allowAll := func(userID, roleID int32) bool { return true }

	t.Run("administrator-of-record cannot expire", func(t *testing.T) {
		m := Membership{UserID: testTenant.AdministratorUserID, RoleID: testTenant.AdministratorRoleID}
		flags := engine.ComputeMembershipPermissionFlags(m, allowAll)
		assert.False(t, flags.AllowExpire)
		assert.True(t, flags.AllowDelete)
	})

	t.Run("delete capability comes from the directory", func(t *testing.T) {
		m := Membership{UserID: 42, RoleID: 101}
		flags := engine.ComputeMembershipPermissionFlags(m, denyAll)
		assert.True(t, flags.AllowExpire)
		assert.False(t, flags.AllowDelete)
	})
}

func TestAuthorizeTargetUser(t *testing.T) {
	engine := NewEngine(testTenant)

	tests := []struct {
		name    string
		actor   Actor
		target  UserRef
		wantErr error
	}{
		{
			name:   "regular target, regular actor",
			actor:  regularActor(),
			target: UserRef{ID: 50, Roles: []string{"Editors"}},
		},
		{
			name:    "admin target, regular actor",
			actor:   regularActor(),
			target:  UserRef{ID: 50, Roles: []string{"Administrators"}},
			wantErr: ErrUnauthorized,
		},
		{
			name:   "admin target, admin actor",
			actor:  adminActor(),
			target: UserRef{ID: 50, Roles: []string{"Administrators"}},
		},
		{
			name:    "superuser target, non-superuser admin actor",
			actor:   adminActor(),
			target:  UserRef{ID: 50, SuperUser: true},
			wantErr: ErrUnauthorized,
		},
		{
			name:   "superuser target, superuser actor",
			actor:  Actor{UserID: 2, SuperUser: true},
			target: UserRef{ID: 50, SuperUser: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.AuthorizeTargetUser(tt.actor, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
