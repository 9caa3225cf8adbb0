package models

import "github.com/google/uuid"

// NotificationType tags a notification with the event that produced it
type NotificationType string

const (
	NotificationPaymentSuccess  NotificationType = "payment_success"
	NotificationPaymentFailed   NotificationType = "payment_failed"
	NotificationContributionDue NotificationType = "contribution_due"
	NotificationLoanApproved    NotificationType = "loan_approved"
	NotificationLoanRejected    NotificationType = "loan_rejected"
	NotificationMemberJoined    NotificationType = "member_joined"
)

// Notification is a user-visible message describing an outcome
type Notification struct {
	Base
	UserID  uuid.UUID        `gorm:"type:uuid;index;not null" json:"user_id"`
	User    User             `gorm:"foreignKey:UserID" json:"-"`
	Title   string           `gorm:"type:varchar(255);not null" json:"title"`
	Message string           `gorm:"type:text;not null" json:"message"`
	Type    NotificationType `gorm:"type:varchar(50);not null" json:"type"`
	Read    bool             `gorm:"default:false" json:"read"`
}
