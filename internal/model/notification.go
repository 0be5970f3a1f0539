package model

import "time"

// Notification type constants
const (
	NotifInvitationCreated   = "invitation_created"
	NotifInvitationReceived  = "invitation_received"
	NotifInvitationAccepted  = "invitation_accepted"
	NotifInvitationRejected  = "invitation_rejected"
	NotifInvitationCancelled = "invitation_cancelled"
	NotifMemberRoleChanged   = "member_role_changed"
	NotifMemberRemoved       = "member_removed"
	NotifListCreated         = "list_created"
	NotifListUpdated         = "list_updated"
	NotifListDeleted         = "list_deleted"
	NotifItemAdded           = "item_added"
	NotifItemRemoved         = "item_removed"
)

type Notification struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	FamilyID  *int64     `json:"family_id"`
	Type      string     `json:"type"`
	Message   string     `json:"message"`
	SenderID  *string    `json:"sender_id"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at"`
}
