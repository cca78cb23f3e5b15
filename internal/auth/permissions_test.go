package auth

import (
	"testing"

	"github.com/helporbit/helporbit/internal/db/models"
)

func TestCan(t *testing.T) {
	tests := []struct {
		name     string
		role     models.Role
		category Category
		action   Action
		want     bool
	}{
		// Owner has everything
		{"owner deletes organization", models.RoleOwner, CategoryOrganization, ActionDelete, true},
		{"owner deletes settings", models.RoleOwner, CategorySettings, ActionDelete, true},
		// Admin is owner minus organization delete
		{"admin cannot delete organization", models.RoleAdmin, CategoryOrganization, ActionDelete, false},
		{"admin updates organization", models.RoleAdmin, CategoryOrganization, ActionUpdate, true},
		{"admin manages members", models.RoleAdmin, CategoryMember, ActionDelete, true},
		{"admin cancels invitations", models.RoleAdmin, CategoryInvitation, ActionDelete, true},
		// Member works tickets and projects
		{"member creates ticket", models.RoleMember, CategoryTicket, ActionCreate, true},
		{"member updates project", models.RoleMember, CategoryProject, ActionUpdate, true},
		{"member cannot delete ticket", models.RoleMember, CategoryTicket, ActionDelete, false},
		{"member reads settings", models.RoleMember, CategorySettings, ActionRead, true},
		{"member cannot update settings", models.RoleMember, CategorySettings, ActionUpdate, false},
		{"member cannot invite", models.RoleMember, CategoryInvitation, ActionCreate, false},
		{"member cannot change roles", models.RoleMember, CategoryMember, ActionUpdate, false},
		// Guest is read-only
		{"guest reads tickets", models.RoleGuest, CategoryTicket, ActionRead, true},
		{"guest reads dashboard", models.RoleGuest, CategoryDashboard, ActionRead, true},
		{"guest cannot create ticket", models.RoleGuest, CategoryTicket, ActionCreate, false},
		{"guest has no settings access", models.RoleGuest, CategorySettings, ActionRead, false},
		// Unknown role
		{"unknown role", models.Role("superuser"), CategoryTicket, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Can(tt.role, tt.category, tt.action); got != tt.want {
				t.Errorf("Can(%s, %s, %s) = %v, want %v", tt.role, tt.category, tt.action, got, tt.want)
			}
		})
	}
}

func TestCanAssignRole(t *testing.T) {
	tests := []struct {
		actor, target models.Role
		want          bool
	}{
		{models.RoleOwner, models.RoleOwner, true},
		{models.RoleAdmin, models.RoleOwner, false},
		{models.RoleAdmin, models.RoleAdmin, true},
		{models.RoleAdmin, models.RoleGuest, true},
		{models.RoleMember, models.RoleGuest, false},
		{models.RoleOwner, models.Role("root"), false},
	}
	for _, tt := range tests {
		if got := CanAssignRole(tt.actor, tt.target); got != tt.want {
			t.Errorf("CanAssignRole(%s, %s) = %v, want %v", tt.actor, tt.target, got, tt.want)
		}
	}
}

func TestPermissions(t *testing.T) {
	owner := Permissions(models.RoleOwner)
	if len(owner) != len(AllCategories())*4 {
		t.Errorf("owner has %d permissions, want %d", len(owner), len(AllCategories())*4)
	}
	guest := Permissions(models.RoleGuest)
	for _, p := range guest {
		if p.Action != ActionRead {
			t.Errorf("guest granted %s", p)
		}
	}
	if len(Permissions(models.Role("nobody"))) != 0 {
		t.Error("unknown role should have no permissions")
	}
}

func TestPermissionString(t *testing.T) {
	p := Permission{Category: CategoryTicket, Action: ActionDelete}
	if p.String() != "ticket:delete" {
		t.Errorf("String() = %q", p.String())
	}
}
