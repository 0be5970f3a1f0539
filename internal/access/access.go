// Package access decides which family roles may perform which actions.
package access

import (
	"github.com/dukerupert/shopassist/internal/apperr"
	"github.com/dukerupert/shopassist/internal/model"
)

type Action string

const (
	ViewFamily        Action = "view_family"
	UpdateFamily      Action = "update_family"
	DeleteFamily      Action = "delete_family"
	ManageMembers     Action = "manage_members"
	InviteMembers     Action = "invite_members"
	InviteAdmins      Action = "invite_admins"
	CancelInvitations Action = "cancel_invitations"
	WriteLists        Action = "write_lists"
	WriteItems        Action = "write_items"
)

var table = map[model.Role]map[Action]bool{
	model.RoleAdmin: {
		ViewFamily:        true,
		UpdateFamily:      true,
		DeleteFamily:      true,
		ManageMembers:     true,
		InviteMembers:     true,
		InviteAdmins:      true,
		CancelInvitations: true,
		WriteLists:        true,
		WriteItems:        true,
	},
	model.RoleEditor: {
		ViewFamily:    true,
		InviteMembers: true,
		WriteLists:    true,
		WriteItems:    true,
	},
	model.RoleViewer: {
		ViewFamily: true,
	},
}

// Authorize reports whether role may perform action. Unknown roles and
// actions are denied.
func Authorize(role model.Role, action Action) bool {
	return table[role][action]
}

// Check returns a Forbidden error unless member exists and its role allows
// action. A nil member means the caller does not belong to the family.
func Check(member *model.FamilyMember, action Action) error {
	if member == nil {
		return apperr.Forbidden("not a member of this family")
	}
	if !Authorize(member.Role, action) {
		return apperr.Forbidden("role " + string(member.Role) + " may not " + action.describe())
	}
	return nil
}

// CanInviteAs reports whether a member with role may invite someone at
// target. Editors can only invite editors and viewers.
func CanInviteAs(role, target model.Role) bool {
	if !Authorize(role, InviteMembers) {
		return false
	}
	if target == model.RoleAdmin {
		return Authorize(role, InviteAdmins)
	}
	return target.Valid()
}

func (a Action) describe() string {
	switch a {
	case ViewFamily:
		return "view this family"
	case UpdateFamily:
		return "update this family"
	case DeleteFamily:
		return "delete this family"
	case ManageMembers:
		return "manage members"
	case InviteMembers:
		return "invite members"
	case InviteAdmins:
		return "invite admins"
	case CancelInvitations:
		return "cancel invitations"
	case WriteLists:
		return "change lists"
	case WriteItems:
		return "change list items"
	}
	return string(a)
}
