package models

import (
	"strings"
	"time"
)

// PaymentStatus is the state of a payment order
type PaymentStatus string

// Payment status values
const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// ParsePaymentStatus maps a status string to a PaymentStatus. Unknown values
// resolve to PaymentStatusPending.
func ParsePaymentStatus(s string) PaymentStatus {
	switch PaymentStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case PaymentStatusCompleted:
		return PaymentStatusCompleted
	case PaymentStatusFailed:
		return PaymentStatusFailed
	default:
		return PaymentStatusPending
	}
}

// Terminal reports whether no further transition is allowed
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Only PENDING -> COMPLETED and PENDING -> FAILED are valid.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentStatusPending && next.Terminal()
}

// Payment is a provider order raised by a user for a premium post
type Payment struct {
	ID           int64         `gorm:"primaryKey;autoIncrement;column:id"`
	UserID       int64         `gorm:"not null;index:payments_post_user_idx,priority:2;column:user_id"`
	PostID       int64         `gorm:"not null;index:payments_post_user_idx,priority:1;column:post_id"`
	OrderToken   string        `gorm:"type:varchar(64);not null;uniqueIndex:payments_order_token_key;column:order_token"`
	PaymentToken *string       `gorm:"type:varchar(64);column:payment_token"`
	Amount       int64         `gorm:"not null;column:amount"`
	Currency     string        `gorm:"type:varchar(8);not null;column:currency"`
	Status       PaymentStatus `gorm:"type:varchar(16);not null;default:PENDING;index:payments_post_user_idx,priority:3;column:status"`
	CreatedAt    time.Time     `gorm:"not null;column:created_at"`
	UpdatedAt    time.Time     `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}
