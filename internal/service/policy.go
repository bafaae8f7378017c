package service

import "kinship/internal/models"

// Action is something an actor may attempt on a family
type Action int

const (
	ActionRejectMember Action = iota + 1
	ActionRemoveMember
	ActionApproveMember
	ActionViewMember
	ActionManageFamily
	ActionRequestForMember
	ActionRegisterMember
	ActionViewFamily
)

func (a Action) String() string {
	switch a {
	case ActionRejectMember:
		return "reject_member"
	case ActionRemoveMember:
		return "remove_member"
	case ActionApproveMember:
		return "approve_member"
	case ActionViewMember:
		return "view_member"
	case ActionManageFamily:
		return "manage_family"
	case ActionRequestForMember:
		return "request_for_member"
	case ActionRegisterMember:
		return "register_member"
	case ActionViewFamily:
		return "view_family"
	default:
		return "unknown"
	}
}

// Actor is the user attempting an action together with their membership row
type Actor struct {
	UserID     int64
	Role       models.Role
	Membership *models.FamilyMember
}

// Resource is the family context an action targets
type Resource struct {
	FamilyCode string
	CreatorID  *int64
	SubjectID  int64

	// SubjectMembership is the subject's current row, consulted when acting on their behalf
	SubjectMembership *models.FamilyMember
	// GrantRole is the role a registration would hand out
	GrantRole models.Role
}

func (a Actor) approvedIn(familyCode string) bool {
	return a.Membership != nil && a.Membership.FamilyCode == familyCode && a.Membership.IsApproved()
}

func (a Actor) familyAdminOf(familyCode string) bool {
	return a.Role.IsAdminClass() && a.approvedIn(familyCode)
}

func (a Actor) created(r Resource) bool {
	return r.CreatorID != nil && *r.CreatorID == a.UserID
}

// Authorize decides whether actor may perform action on res. A global admin
// role never suffices alone for member actions: the actor must also hold an
// approved membership in the same family.
func Authorize(actor Actor, action Action, res Resource) error {
	switch action {
	case ActionRejectMember:
		if actor.familyAdminOf(res.FamilyCode) {
			return nil
		}
		return ErrAccessDenied
	case ActionRemoveMember:
		if actor.UserID == res.SubjectID || actor.created(res) || actor.familyAdminOf(res.FamilyCode) {
			return nil
		}
		return ErrRemoveDenied
	case ActionApproveMember:
		if actor.created(res) || actor.familyAdminOf(res.FamilyCode) {
			return nil
		}
		return ErrApproveDenied
	case ActionViewMember:
		if actor.UserID == res.SubjectID || actor.Role == models.RoleSuperAdmin || actor.approvedIn(res.FamilyCode) {
			return nil
		}
		return ErrViewDenied
	case ActionManageFamily:
		if actor.created(res) || actor.Role == models.RoleSuperAdmin {
			return nil
		}
		return ErrManageDenied
	case ActionRequestForMember:
		if !actor.created(res) && !actor.familyAdminOf(res.FamilyCode) {
			return ErrRequestForMemberDenied
		}
		// a row in another family is only ever moved by its owner
		if m := res.SubjectMembership; m != nil && m.FamilyCode != res.FamilyCode {
			return ErrRequestForMemberDenied
		}
		return nil
	case ActionRegisterMember:
		if !actor.created(res) && !actor.familyAdminOf(res.FamilyCode) {
			return ErrRegisterDenied
		}
		if res.GrantRole > actor.Role {
			return ErrRoleDenied
		}
		return nil
	case ActionViewFamily:
		if actor.approvedIn(res.FamilyCode) || actor.created(res) || actor.Role == models.RoleSuperAdmin {
			return nil
		}
		return ErrFamilyViewDenied
	default:
		return denied("Access denied")
	}
}
