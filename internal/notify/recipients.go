package notify

import (
	"context"
	"fmt"

	"github.com/dukerupert/shopassist/internal/model"
)

// recipients decides who hears about ev:
//
//	invitation created        inviter, and the invitee if registered
//	invitation accepted/rejected  inviter and family admins
//	invitation cancelled      invitee if registered
//	role changed / removed    the affected member (admins when a member leaves)
//	list and item events      every member except the actor
//
// The result has at most one delivery per user.
func (f *Fanout) recipients(ctx context.Context, ev Event) ([]delivery, error) {
	var out []delivery
	seen := map[string]bool{}
	add := func(userID, notifType, message string) {
		if userID == "" || seen[userID] {
			return
		}
		seen[userID] = true
		out = append(out, delivery{userID: userID, notifType: notifType, message: message})
	}

	switch ev.Type {
	case model.NotifInvitationCreated:
		add(ev.InviterID, ev.Type, ev.Message)
		invitee, err := f.inviteeID(ctx, ev.InviteeEmail)
		if err != nil {
			// The inviter still hears about it.
			f.logger.Warn("look up invitee", "family_id", ev.FamilyID, "error", err)
			break
		}
		add(invitee, model.NotifInvitationReceived, ev.InviteeMessage)

	case model.NotifInvitationAccepted, model.NotifInvitationRejected:
		seen[ev.ActorID] = true
		add(ev.InviterID, ev.Type, ev.Message)
		admins, err := f.families.ListAdminIDs(ctx, ev.FamilyID)
		if err != nil {
			f.logger.Warn("list family admins", "family_id", ev.FamilyID, "error", err)
			break
		}
		for _, id := range admins {
			add(id, ev.Type, ev.Message)
		}

	case model.NotifInvitationCancelled:
		invitee, err := f.inviteeID(ctx, ev.InviteeEmail)
		if err != nil {
			return nil, err
		}
		add(invitee, ev.Type, ev.InviteeMessage)

	case model.NotifMemberRoleChanged:
		if ev.TargetUserID != ev.ActorID {
			add(ev.TargetUserID, ev.Type, ev.Message)
		}

	case model.NotifMemberRemoved:
		if ev.TargetUserID != ev.ActorID {
			add(ev.TargetUserID, ev.Type, ev.Message)
			break
		}
		admins, err := f.families.ListAdminIDs(ctx, ev.FamilyID)
		if err != nil {
			return nil, err
		}
		for _, id := range admins {
			add(id, ev.Type, ev.Message)
		}

	case model.NotifListCreated, model.NotifListUpdated, model.NotifListDeleted,
		model.NotifItemAdded, model.NotifItemRemoved:
		seen[ev.ActorID] = true
		members, err := f.families.ListMembers(ctx, ev.FamilyID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			add(m.UserID, ev.Type, ev.Message)
		}

	default:
		return nil, fmt.Errorf("unknown notification type %q", ev.Type)
	}

	return out, nil
}

func (f *Fanout) inviteeID(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", nil
	}
	u, err := f.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.ID, nil
}
