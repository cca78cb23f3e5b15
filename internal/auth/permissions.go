// Package auth - permissions.go defines the organization role permission table
// and the Can helper used by services to gate every organization-scoped action.
package auth

import "github.com/helporbit/helporbit/internal/db/models"

// Category groups the resources a permission applies to
type Category string

const (
	CategoryOrganization Category = "organization"
	CategoryMember       Category = "member"
	CategoryInvitation   Category = "invitation"
	CategoryTicket       Category = "ticket"
	CategoryProject      Category = "project"
	CategoryDashboard    Category = "dashboard"
	CategorySettings     Category = "settings"
)

// Action is an operation on a category
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Permission names one action on one category, e.g. "ticket:update"
type Permission struct {
	Category Category
	Action   Action
}

func (p Permission) String() string {
	return string(p.Category) + ":" + string(p.Action)
}

type actionSet map[Action]bool

var (
	crud     = actionSet{ActionCreate: true, ActionRead: true, ActionUpdate: true, ActionDelete: true}
	cru      = actionSet{ActionCreate: true, ActionRead: true, ActionUpdate: true}
	readOnly = actionSet{ActionRead: true}
)

// rolePermissions is the whole authorization model. A category missing from
// a role's map grants nothing.
var rolePermissions = map[models.Role]map[Category]actionSet{
	models.RoleOwner: {
		CategoryOrganization: crud,
		CategoryMember:       crud,
		CategoryInvitation:   crud,
		CategoryTicket:       crud,
		CategoryProject:      crud,
		CategoryDashboard:    crud,
		CategorySettings:     crud,
	},
	models.RoleAdmin: {
		CategoryOrganization: cru,
		CategoryMember:       crud,
		CategoryInvitation:   crud,
		CategoryTicket:       crud,
		CategoryProject:      crud,
		CategoryDashboard:    crud,
		CategorySettings:     cru,
	},
	models.RoleMember: {
		CategoryOrganization: readOnly,
		CategoryMember:       readOnly,
		CategoryTicket:       cru,
		CategoryProject:      cru,
		CategoryDashboard:    readOnly,
		CategorySettings:     readOnly,
	},
	models.RoleGuest: {
		CategoryOrganization: readOnly,
		CategoryTicket:       readOnly,
		CategoryProject:      readOnly,
		CategoryDashboard:    readOnly,
	},
}

// Can reports whether role may perform action on category
func Can(role models.Role, category Category, action Action) bool {
	return rolePermissions[role][category][action]
}

// Permissions lists every permission granted to role in a stable order
func Permissions(role models.Role) []Permission {
	perms := make([]Permission, 0)
	for _, cat := range AllCategories() {
		for _, act := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete} {
			if Can(role, cat, act) {
				perms = append(perms, Permission{Category: cat, Action: act})
			}
		}
	}
	return perms
}

// AllCategories returns all permission categories
func AllCategories() []Category {
	return []Category{
		CategoryOrganization,
		CategoryMember,
		CategoryInvitation,
		CategoryTicket,
		CategoryProject,
		CategoryDashboard,
		CategorySettings,
	}
}

// CanAssignRole reports whether an actor with role actor may grant target to
// someone else. Only owners hand out the owner role.
func CanAssignRole(actor, target models.Role) bool {
	if !target.Valid() {
		return false
	}
	if target == models.RoleOwner {
		return actor == models.RoleOwner
	}
	return Can(actor, CategoryMember, ActionUpdate)
}
