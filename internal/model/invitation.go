package model

import "time"

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationRejected  InvitationStatus = "rejected"
	InvitationCancelled InvitationStatus = "cancelled"
)

type FamilyInvitation struct {
	ID          int64            `json:"id"`
	FamilyID    int64            `json:"family_id"`
	Email       string           `json:"email"`
	Role        Role             `json:"role"`
	Status      InvitationStatus `json:"status"`
	InvitedBy   string           `json:"invited_by"`
	TokenHash   string           `json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   time.Time        `json:"expires_at"`
	RespondedAt *time.Time       `json:"responded_at"`
	Expired     bool             `json:"expired"`
}

// IsExpired reports whether the invitation can no longer be answered at now.
func (i *FamilyInvitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// InvitationPreview is the public view of an invitation shown on the
// landing page of an emailed link.
type InvitationPreview struct {
	ID         int64            `json:"id"`
	FamilyName string           `json:"family_name"`
	Email      string           `json:"email"`
	Role       Role             `json:"role"`
	Status     InvitationStatus `json:"status"`
	ExpiresAt  time.Time        `json:"expires_at"`
	Expired    bool             `json:"expired"`
}
