package user

import "context"

// Directory defines read access to the user store. GetGlobalUserByID resolves
// against the host-level directory that tenant-less superuser identities live
// in; everything else is tenant-scoped.
type Directory interface {
	GetUserByID(ctx context.Context, tenantID, userID int32) (User, error)
	ListUsers(ctx context.Context, tenantID int32) ([]User, error)
	GetGlobalUserByID(ctx context.Context, userID int32) (User, error)
	SearchUsersByDisplayName(ctx context.Context, tenantID int32, prefix string, limit int) ([]User, error)
	SearchUsersByUsername(ctx context.Context, tenantID int32, prefix string, limit int) ([]User, error)
}
