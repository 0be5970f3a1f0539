package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/shopassist/internal/access"
	"github.com/dukerupert/shopassist/internal/apperr"
	"github.com/dukerupert/shopassist/internal/database"
	"github.com/dukerupert/shopassist/internal/email"
	"github.com/dukerupert/shopassist/internal/model"
	"github.com/dukerupert/shopassist/internal/notify"
)

// InvitationTTL is how long an invitation can be answered.
const InvitationTTL = 7 * 24 * time.Hour

// Response actions accepted by RespondToInvitation.
const (
	ResponseAccept = "accept"
	ResponseReject = "reject"
)

var tokenCost = bcrypt.DefaultCost

// CreateInvitation invites email to the family at role. The link token is
// only ever sent by email; the store keeps its bcrypt hash.
func (s *Service) CreateInvitation(ctx context.Context, c Caller, familyID int64, addr string, role model.Role) (*model.FamilyInvitation, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	addr, err := validateEmail(addr)
	if err != nil {
		return nil, err
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}

	token, tokenHash, err := newInvitationToken()
	if err != nil {
		return nil, apperr.Unexpected(err)
	}

	createdAt := s.now()
	var family *model.FamilyGroup
	var inv *model.FamilyInvitation
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		invitations := s.invitations.WithTx(tx)

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
		if err := access.Check(caller, access.InviteMembers); err != nil {
			return err
		}
		if !access.CanInviteAs(caller.Role, role) {
			return apperr.Forbidden("role " + string(caller.Role) + " may not invite " + string(role) + "s")
		}

		existing, err := families.GetMemberByEmail(ctx, familyID, addr)
		if err != nil {
			return err
		}
		if existing == nil {
			existing, err = s.memberByUserEmail(ctx, tx, familyID, addr)
			if err != nil {
				return err
			}
		}
		if existing != nil {
			return apperr.Conflict(addr + " is already a member of this family")
		}

		pending, err := invitations.ListPendingForFamilyEmail(ctx, familyID, addr)
		if err != nil {
			return err
		}
		for i := range pending {
			if !pending[i].IsExpired(createdAt) {
				return apperr.Conflict(addr + " already has a pending invitation")
			}
		}

		inv, err = invitations.Create(ctx, familyID, addr, role, c.UserID, tokenHash, createdAt, createdAt.Add(InvitationTTL))
		if err != nil {
			return err
		}
		family = f
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.metrics.Invitation("created")
	s.logger.Info("invitation created", "invitation_id", inv.ID, "family_id", familyID, "role", role)

	s.sendInvitationEmail(ctx, c, family, inv, token)
	s.notify(ctx, notify.Event{
		Type:           model.NotifInvitationCreated,
		FamilyID:       familyID,
		ActorID:        c.UserID,
		InviterID:      c.UserID,
		InviteeEmail:   addr,
		Message:        fmt.Sprintf("You invited %s to %s as %s", addr, family.Name, role),
		InviteeMessage: fmt.Sprintf("%s invited you to join %s as %s", displayName(c), family.Name, role),
	})
	return inv, nil
}

// memberByUserEmail finds a membership held by the registered user with
// addr, whose stored member email may be out of date.
func (s *Service) memberByUserEmail(ctx context.Context, tx *database.Tx, familyID int64, addr string) (*model.FamilyMember, error) {
	u, err := s.users.WithTx(tx).GetByEmail(ctx, addr)
	if err != nil || u == nil {
		return nil, err
	}
	return s.families.WithTx(tx).GetMember(ctx, familyID, u.ID)
}

func (s *Service) sendInvitationEmail(ctx context.Context, c Caller, family *model.FamilyGroup, inv *model.FamilyInvitation, token string) {
	err := s.mailer.SendTemplate(ctx, email.TemplateMessage{
		To:       inv.Email,
		Template: s.inviteTemplate,
		Tag:      "family-invitation",
		Variables: map[string]any{
			"family_name": family.Name,
			"inviter":     displayName(c),
			"role":        string(inv.Role),
			"accept_url":  s.invitationURL(inv.ID, token),
			"expires_at":  inv.ExpiresAt.Format(time.RFC1123),
		},
	})
	if err != nil {
		s.logger.Error("send invitation email", "invitation_id", inv.ID, "error", err)
		s.metrics.Notification(model.NotifInvitationCreated, "email", "error")
		return
	}
	s.metrics.Notification(model.NotifInvitationCreated, "email", "ok")
}

func (s *Service) invitationURL(id int64, token string) string {
	return fmt.Sprintf("%s/invitations/%d?token=%s", s.baseURL, id, url.QueryEscape(token))
}

// RespondToInvitation accepts or rejects an invitation addressed to the
// caller. Accepting marks the invitation and adds the membership in one
// transaction.
func (s *Service) RespondToInvitation(ctx context.Context, c Caller, invitationID int64, action string) (*model.FamilyInvitation, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	var status model.InvitationStatus
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ResponseAccept:
		status = model.InvitationAccepted
	case ResponseReject:
		status = model.InvitationRejected
	default:
		return nil, apperr.Validation("action must be accept or reject")
	}

	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, storeErr(err)
	}
	if inv == nil {
		return nil, apperr.NotFound("invitation")
	}
	if !strings.EqualFold(inv.Email, c.Email) {
		return nil, apperr.Forbidden("invitation is addressed to another email")
	}
	now := s.now()
	if inv.IsExpired(now) {
		s.metrics.Invitation("expired")
		return nil, apperr.Expired("invitation has expired")
	}
	if inv.Status != model.InvitationPending {
		return nil, apperr.Conflict("invitation was already " + string(inv.Status))
	}

	var family *model.FamilyGroup
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		families := s.families.WithTx(tx)
		f, err := families.Lock(ctx, inv.FamilyID)
		if err != nil {
			return err
		}
		if f == nil {
			return apperr.NotFound("family")
		}
		ok, err := s.invitations.WithTx(tx).Resolve(ctx, inv.ID, status, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("invitation is no longer pending")
		}
		family = f
		if status != model.InvitationAccepted {
			return nil
		}

		existing, err := families.GetMember(ctx, inv.FamilyID, c.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("already a member of this family")
		}
		_, err = families.AddMember(ctx, inv.FamilyID, c.UserID, c.Email, inv.Role)
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.metrics.Invitation(string(status))
	s.logger.Info("invitation answered", "invitation_id", inv.ID, "status", status)

	evType := model.NotifInvitationAccepted
	if status == model.InvitationRejected {
		evType = model.NotifInvitationRejected
	}
	s.notify(ctx, notify.Event{
		Type:         evType,
		FamilyID:     inv.FamilyID,
		ActorID:      c.UserID,
		InviterID:    inv.InvitedBy,
		InviteeEmail: inv.Email,
		Message:      fmt.Sprintf("%s %s the invitation to %s", inv.Email, status, family.Name),
	})

	updated, err := s.invitations.GetByID(ctx, inv.ID)
	if err != nil {
		return nil, storeErr(err)
	}
	if updated == nil {
		return nil, apperr.NotFound("invitation")
	}
	return updated, nil
}

// CancelInvitation withdraws a pending invitation. The inviter and family
// admins may cancel.
func (s *Service) CancelInvitation(ctx context.Context, c Caller, invitationID int64) error {
	if err := requireCaller(c); err != nil {
		return err
	}
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return storeErr(err)
	}
	if inv == nil {
		return apperr.NotFound("invitation")
	}
	if inv.InvitedBy != c.UserID {
		member, err := s.families.GetMember(ctx, inv.FamilyID, c.UserID)
		if err != nil {
			return storeErr(err)
		}
		if err := access.Check(member, access.CancelInvitations); err != nil {
			return err
		}
	}
	if inv.Status != model.InvitationPending {
		return apperr.Conflict("invitation was already " + string(inv.Status))
	}

	ok, err := s.invitations.Resolve(ctx, inv.ID, model.InvitationCancelled, s.now())
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return apperr.Conflict("invitation is no longer pending")
	}
	s.metrics.Invitation("cancelled")

	family, err := s.families.GetByID(ctx, inv.FamilyID)
	if err != nil {
		s.logger.Warn("load family for cancellation notice", "family_id", inv.FamilyID, "error", err)
		return nil
	}
	name := "a family"
	if family != nil {
		name = family.Name
	}
	s.notify(ctx, notify.Event{
		Type:           model.NotifInvitationCancelled,
		FamilyID:       inv.FamilyID,
		ActorID:        c.UserID,
		InviterID:      inv.InvitedBy,
		InviteeEmail:   inv.Email,
		InviteeMessage: fmt.Sprintf("Your invitation to %s was cancelled", name),
	})
	return nil
}

// ListFamilyInvitations returns every invitation of the family, newest first.
func (s *Service) ListFamilyInvitations(ctx context.Context, c Caller, familyID int64) ([]model.FamilyInvitation, error) {
	if _, _, err := s.authorize(ctx, c, familyID, access.ViewFamily); err != nil {
		return nil, err
	}
	invs, err := s.invitations.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, storeErr(err)
	}
	s.markExpired(invs)
	return invs, nil
}

// ListMyInvitations returns the pending invitations addressed to the caller.
func (s *Service) ListMyInvitations(ctx context.Context, c Caller) ([]model.FamilyInvitation, error) {
	if err := requireCaller(c); err != nil {
		return nil, err
	}
	if c.Email == "" {
		return []model.FamilyInvitation{}, nil
	}
	invs, err := s.invitations.ListPendingByEmail(ctx, c.Email)
	if err != nil {
		return nil, storeErr(err)
	}
	s.markExpired(invs)
	return invs, nil
}

// PreviewInvitation shows what an emailed link points at. It needs no
// account; a wrong token looks the same as a missing invitation.
func (s *Service) PreviewInvitation(ctx context.Context, invitationID int64, token string) (*model.InvitationPreview, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, storeErr(err)
	}
	if inv == nil || token == "" || bcrypt.CompareHashAndPassword([]byte(inv.TokenHash), []byte(token)) != nil {
		return nil, apperr.NotFound("invitation")
	}
	family, err := s.families.GetByID(ctx, inv.FamilyID)
	if err != nil {
		return nil, storeErr(err)
	}
	if family == nil {
		return nil, apperr.NotFound("invitation")
	}
	return &model.InvitationPreview{
		ID:         inv.ID,
		FamilyName: family.Name,
		Email:      inv.Email,
		Role:       inv.Role,
		Status:     inv.Status,
		ExpiresAt:  inv.ExpiresAt,
		Expired:    inv.Status == model.InvitationPending && inv.IsExpired(s.now()),
	}, nil
}

func (s *Service) markExpired(invs []model.FamilyInvitation) {
	now := s.now()
	for i := range invs {
		invs[i].Expired = invs[i].Status == model.InvitationPending && invs[i].IsExpired(now)
	}
}

func newInvitationToken() (token, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	h, err := bcrypt.GenerateFromPassword([]byte(token), tokenCost)
	if err != nil {
		return "", "", fmt.Errorf("hash token: %w", err)
	}
	return token, string(h), nil
}
