package service

import (
	"context"
	"fmt"

	"github.com/dukerupert/shopassist/internal/access"
	"github.com/dukerupert/shopassist/internal/apperr"
	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/model"
	"github.com/dukerupert/shopassist/internal/notify"
)

// CreateFamily creates a family group with the caller as its first admin.
func (s *Service) CreateFamily(ctx context.Context, c Caller, name string) (*model.FamilyGroup, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	name, err := validateName("name", name)
	if err != nil {
		return nil, err
	}

	var family *model.FamilyGroup
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		f, err := families.Create(ctx, name, c.UserID)
		if err != nil {
			return err
		}
		if _, err := families.AddMember(ctx, f.ID, c.UserID, c.Email, model.RoleAdmin); err != nil {
			return err
		}
		family = f
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.logger.Info("family created", "family_id", family.ID, "user_id", c.UserID)
	return family, nil
}

// ListFamilies returns the families the caller belongs to with the caller's
// role in each.
func (s *Service) ListFamilies(ctx context.Context, c Caller) ([]model.FamilyWithRole, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	families, err := s.families.ListForUser(ctx, c.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	return families, nil
}

func (s *Service) GetFamily(ctx context.Context, c Caller, familyID int64) (*model.FamilyWithRole, error) {
	family, member, err := s.authorize(ctx, c, familyID, access.ViewFamily)
	if err != nil {
		return nil, err
	}
	return &model.FamilyWithRole{FamilyGroup: *family, Role: member.Role}, nil
}

func (s *Service) UpdateFamily(ctx context.Context, c Caller, familyID int64, name string) (*model.FamilyGroup, error) {
	name, err := validateName("name", name)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorize(ctx, c, familyID, access.UpdateFamily); err != nil {
		return nil, err
	}
	family, err := s.families.Update(ctx, familyID, name)
	if err != nil {
		return nil, storeErr(err)
	}
	if family == nil {
		return nil, apperr.NotFound("family")
	}
	return family, nil
}

// DeleteFamily removes the family along with its members, invitations and
// shared lists.
func (s *Service) DeleteFamily(ctx context.Context, c Caller, familyID int64) error {
	if _, _, err := s.authorize(ctx, c, familyID, access.DeleteFamily); err != nil {
		return err
	}
	if err := s.families.Delete(ctx, familyID); err != nil {
		return storeErr(err)
	}
	s.logger.Info("family deleted", "family_id", familyID, "user_id", c.UserID)
	return nil
}

// --- Member methods ---

func (s *Service) ListMembers(ctx context.Context, c Caller, familyID int64) ([]model.FamilyMember, error) {
	if _, _, err := s.authorize(ctx, c, familyID, access.ViewFamily); err != nil {
		return nil, err
	}
	members, err := s.families.ListMembers(ctx, familyID)
	if err != nil {
		return nil, storeErr(err)
	}
	return members, nil
}

// RemoveMember removes userID from the family. Any member may remove
// themselves; removing someone else needs ManageMembers. A family always
// keeps at least one admin.
func (s *Service) RemoveMember(ctx context.Context, c Caller, familyID int64, userID string) error {
	if err := requireCaller(c); err != nil {
		return err
	}

	var family *model.FamilyGroup
	var target *model.FamilyMember
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		f, err := families.Lock(ctx, familyID)
		if err != nil {
			return err
		}
		if f == nil {
			return apperr.NotFound("family")
		}
		caller, err := families.GetMember(ctx, familyID, c.UserID)
		if err != nil {
			return err
		}
		if caller == nil {
			return access.Check(nil, access.ManageMembers)
		}
		if userID != c.UserID {
			if err := access.Check(caller, access.ManageMembers); err != nil {
				return err
			}
		}

		t, err := families.GetMember(ctx, familyID, userID)
		if err != nil {
			return err
		}
		if t == nil {
			return apperr.NotFound("member")
		}
		if t.Role == model.RoleAdmin {
			if err := ensureAnotherAdmin(ctx, families.CountAdmins, familyID); err != nil {
				return err
			}
		}
		if err := families.RemoveMember(ctx, familyID, userID); err != nil {
			return err
		}
		family, target = f, t
		return nil
	})
	if err != nil {
		return storeErr(err)
	}

	msg := fmt.Sprintf("You were removed from %s", family.Name)
	if userID == c.UserID {
		msg = fmt.Sprintf("%s left %s", displayName(c), family.Name)
	}
	s.notify(ctx, notify.Event{
		Type:         model.NotifMemberRemoved,
		FamilyID:     familyID,
		ActorID:      c.UserID,
		TargetUserID: target.UserID,
		Message:      msg,
	})
	return nil
}

// UpdateMemberRole changes a member's role. Demoting the only admin is
// refused.
func (s *Service) UpdateMemberRole(ctx context.Context, c Caller, familyID int64, userID string, role model.Role) (*model.FamilyMember, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}

	var family *model.FamilyGroup
	var updated *model.FamilyMember
	changed := false
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		f, err := families.Lock(ctx, familyID)
		if err != nil {
			return err
		}
		if f == nil {
			return apperr.NotFound("family")
		}
		caller, err := families.GetMember(ctx, familyID, c.UserID)
		if err != nil {
			return err
		}
		if err := access.Check(caller, access.ManageMembers); err != nil {
			return err
		}

		t, err := families.GetMember(ctx, familyID, userID)
		if err != nil {
			return err
		}
		if t == nil {
			return apperr.NotFound("member")
		}
		if t.Role == role {
			family, updated = f, t
			return nil
		}
		if t.Role == model.RoleAdmin {
			if err := ensureAnotherAdmin(ctx, families.CountAdmins, familyID); err != nil {
				return err
			}
		}
		m, err := families.UpdateMemberRole(ctx, familyID, userID, role, c.UserID)
		if err != nil {
			return err
		}
		family, updated, changed = f, m, true
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if changed {
		s.notify(ctx, notify.Event{
			Type:         model.NotifMemberRoleChanged,
			FamilyID:     familyID,
			ActorID:      c.UserID,
			TargetUserID: userID,
			Message:      fmt.Sprintf("Your role in %s is now %s", family.Name, role),
		})
	}
	return updated, nil
}

func ensureAnotherAdmin(ctx context.Context, count func(context.Context, int64) (int, error), familyID int64) error {
	admins, err := count(ctx, familyID)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return apperr.Conflict("a family must keep at least one admin")
	}
	return nil
}
