package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-roles/pkg/policy"
	rolepkg "github.com/tendant/simple-roles/pkg/role"
)

var validate = validator.New()

// RoleDto is the wire representation of a role. A missing id means create.
type RoleDto struct {
	ID           *int32              `json:"id,omitempty"`
	Name         string              `json:"name" validate:"required,max=256"`
	Description  string              `json:"description,omitempty"`
	GroupID      *int32              `json:"groupId,omitempty"`
	IsSystem     bool                `json:"isSystem,omitempty"`
	SecurityMode policy.SecurityMode `json:"securityMode,omitempty"`
	Status       policy.RoleStatus   `json:"status,omitempty"`
}

// ToModel converts the DTO to the domain role. Absent ids map to
// policy.UnsetID.
func (d RoleDto) ToModel() (policy.Role, error) {
	role := policy.Role{ID: policy.UnsetID, GroupID: policy.UnsetID}
	if err := copier.Copy(&role, &d); err != nil {
		return policy.Role{}, err
	}
	role.SystemRole = d.IsSystem
	return role, nil
}

// RoleDtoFromModel converts a domain role to its wire representation.
func RoleDtoFromModel(role policy.Role) RoleDto {
	var d RoleDto
	_ = copier.Copy(&d, &role)
	id := role.ID
	d.ID = &id
	if role.GroupID != policy.UnsetID {
		groupID := role.GroupID
		d.GroupID = &groupID
	} else {
		d.GroupID = nil
	}
	d.IsSystem = role.SystemRole
	return d
}

// RoleGroupDto is the wire representation of a role group.
type RoleGroupDto struct {
	ID          *int32 `json:"id,omitempty"`
	Name        string `json:"name" validate:"required,max=256"`
	Description string `json:"description,omitempty"`
}

func (d RoleGroupDto) ToModel() (policy.RoleGroup, error) {
	group := policy.RoleGroup{ID: policy.UnsetID}
	if err := copier.Copy(&group, &d); err != nil {
		return policy.RoleGroup{}, err
	}
	return group, nil
}

func RoleGroupDtoFromModel(group policy.RoleGroup) RoleGroupDto {
	var d RoleGroupDto
	_ = copier.Copy(&d, &group)
	id := group.ID
	d.ID = &id
	return d
}

// UserRoleDto is the request body for assigning a user to a role.
type UserRoleDto struct {
	UserID        int32      `json:"userId" validate:"required"`
	EffectiveDate *time.Time `json:"effectiveDate,omitempty"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
}

func (d UserRoleDto) ToModel(roleID int32) policy.Membership {
	m := policy.Membership{
		UserID: d.UserID,
		RoleID: roleID,
	}
	if d.EffectiveDate != nil {
		m.EffectiveDate = *d.EffectiveDate
	}
	if d.ExpiryDate != nil {
		m.ExpiryDate = *d.ExpiryDate
	}
	return m
}

// UserRoleInfoDto is the wire representation of a membership with its
// derived permission flags.
type UserRoleInfoDto struct {
	UserID        int32      `json:"userId"`
	RoleID        int32      `json:"roleId"`
	DisplayName   string     `json:"displayName,omitempty"`
	EffectiveDate *time.Time `json:"effectiveDate,omitempty"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
	IsOwner       bool       `json:"isOwner"`
	AllowExpired  bool       `json:"allowExpired"`
	AllowDelete   bool       `json:"allowDelete"`
}

func UserRoleInfoDtoFromModel(info rolepkg.MembershipInfo) UserRoleInfoDto {
	d := UserRoleInfoDto{
		UserID:       info.UserID,
		RoleID:       info.RoleID,
		DisplayName:  info.Membership.DisplayName,
		IsOwner:      info.IsOwner,
		AllowExpired: info.AllowExpire,
		AllowDelete:  info.AllowDelete,
	}
	if !info.EffectiveDate.IsZero() {
		effective := info.EffectiveDate
		d.EffectiveDate = &effective
	}
	if !info.ExpiryDate.IsZero() {
		expiry := info.ExpiryDate
		d.ExpiryDate = &expiry
	}
	return d
}

// SuggestionDto is one typeahead match for the user picker.
type SuggestionDto struct {
	UserID      int32  `json:"userId"`
	DisplayName string `json:"displayName"`
}

// RolePageDto is one page of roles plus whether more items exist.
type RolePageDto struct {
	Roles    []RoleDto `json:"roles"`
	LoadMore bool      `json:"loadMore"`
}

// RoleUsersPageDto is one page of role memberships plus the filtered total.
type RoleUsersPageDto struct {
	Users []UserRoleInfoDto `json:"users"`
	Total int               `json:"total"`
}
