package models

import "time"

// NotificationType tags the kind of event a notification describes
type NotificationType string

const (
	NotificationJoinRequest    NotificationType = "FAMILY_MEMBER_JOIN_REQUEST"
	NotificationMemberApproved NotificationType = "FAMILY_MEMBER_APPROVED"
	NotificationJoinRejected   NotificationType = "FAMILY_JOIN_REJECTED"
	NotificationMemberRemoved  NotificationType = "FAMILY_MEMBER_REMOVED"
	NotificationMemberJoined   NotificationType = "FAMILY_MEMBER_JOINED"
)

// NotificationEvent is a notification to be fanned out to its recipients
type NotificationEvent struct {
	Type         NotificationType
	Title        string
	Message      string
	FamilyCode   string
	ReferenceID  int64
	RecipientIDs []int64
}

// Notification is a persisted notification as seen by one recipient
type Notification struct {
	ID          int64            `json:"id"`
	Type        NotificationType `json:"type"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	FamilyCode  *string          `json:"familyCode"`
	ReferenceID *int64           `json:"referenceId"`
	CreatedBy   *int64           `json:"createdBy"`
	ReadAt      *time.Time       `json:"readAt"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// IsRead reports whether the recipient has marked the notification read
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
