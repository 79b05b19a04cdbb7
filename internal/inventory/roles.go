package inventory

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Permission names a single capability a role can grant.
type Permission string

const (
	PermAssetView      Permission = "asset:view"
	PermAssetCreate    Permission = "asset:create"
	PermAssetDelete    Permission = "asset:delete"
	PermAssetCheckout  Permission = "asset:checkout"
	PermAssetImport    Permission = "asset:import"
	PermUserView       Permission = "user:view"
	PermUserManage     Permission = "user:manage"
	PermRoleManage     Permission = "role:manage"
	PermCategoryManage Permission = "category:manage"
	PermLocationManage Permission = "location:manage"
	PermReportView     Permission = "report:view"
)

// AllPermissions is the full permission catalogue.
var AllPermissions = []Permission{
	PermAssetView,
	PermAssetCreate,
	PermAssetDelete,
	PermAssetCheckout,
	PermAssetImport,
	PermUserView,
	PermUserManage,
	PermRoleManage,
	PermCategoryManage,
	PermLocationManage,
	PermReportView,
}

// Role is a named set of permissions.
type Role struct {
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
	CreatedDate time.Time    `json:"created_date,omitempty"`
}

// Can reports whether the role grants p.
func (r Role) Can(p Permission) bool {
	return slices.Contains(r.Permissions, p)
}

// Validate checks the role has a name and only known permissions.
func (r Role) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("role name is required")
	}
	for _, p := range r.Permissions {
		if !slices.Contains(AllPermissions, p) {
			return fmt.Errorf("unknown permission %q", p)
		}
	}
	return nil
}

// UserCan reports whether any of roles grants p. Roles are matched by the
// user's RoleIDs; the legacy "admin" role string grants everything.
func UserCan(u User, roles []Role, p Permission) bool {
	if u.Role == "admin" {
		return true
	}
	for _, r := range roles {
		if slices.Contains(u.RoleIDs, r.ID) && r.Can(p) {
			return true
		}
	}
	return false
}

// ============================================================================
// Role and user administration
// ============================================================================

// ListRoles returns every role sorted by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.inv.Roles.List(ctx, "name", 0)
}

// CreateRole validates and stores a role.
func (s *Service) CreateRole(ctx context.Context, r Role) (Role, error) {
	if err := r.Validate(); err != nil {
		return Role{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	r.ID = ""
	return s.inv.Roles.Create(ctx, r)
}

// UpdateRole replaces the name, description and permissions of role id.
func (s *Service) UpdateRole(ctx context.Context, id string, r Role) (Role, error) {
	if err := r.Validate(); err != nil {
		return Role{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := s.inv.Roles.Get(ctx, id); err != nil {
		return Role{}, err
	}
	perms := r.Permissions
	if perms == nil {
		perms = []Permission{}
	}
	return s.inv.Roles.Update(ctx, id, map[string]any{
		"name":        r.Name,
		"description": r.Description,
		"permissions": perms,
	})
}

// DeleteRole removes a role no user still holds.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	if _, err := s.inv.Roles.Get(ctx, id); err != nil {
		return err
	}
	users, err := s.inv.Users.List(ctx, "", 0)
	if err != nil {
		return err
	}
	holders := 0
	for _, u := range users {
		if slices.Contains(u.RoleIDs, id) {
			holders++
		}
	}
	if holders > 0 {
		return fmt.Errorf("role %s is assigned to %d users: %w", id, holders, ErrHasChildren)
	}
	return s.inv.Roles.Delete(ctx, id)
}

// AssignRoles replaces the role ids of a user. Every id must name an
// existing role; duplicates are dropped.
func (s *Service) AssignRoles(ctx context.Context, userID string, roleIDs []string) (User, error) {
	if _, err := s.inv.Users.Get(ctx, userID); err != nil {
		return User{}, err
	}
	ids := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if slices.Contains(ids, id) {
			continue
		}
		if _, err := s.inv.Roles.Get(ctx, id); err != nil {
			return User{}, fmt.Errorf("role %q: %w", id, err)
		}
		ids = append(ids, id)
	}
	return s.inv.Users.Update(ctx, userID, map[string]any{"role_ids": ids})
}

// UserPermissions returns the permissions a user holds through its roles,
// in catalogue order.
func (s *Service) UserPermissions(ctx context.Context, userID string) ([]Permission, error) {
	u, err := s.inv.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := s.inv.Roles.List(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	out := []Permission{}
	for _, p := range AllPermissions {
		if UserCan(u, roles, p) {
			out = append(out, p)
		}
	}
	return out, nil
}
