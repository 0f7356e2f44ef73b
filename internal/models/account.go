package models

import "time"

// Role is an account's authorization role
type Role string

// Role values
const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Account is a registered user. Accounts are maintained by the identity
// service; this module only reads them.
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `gorm:"type:varchar(64);not null;column:name"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex:accounts_email_key;column:email"`
	Role      Role      `gorm:"type:varchar(16);not null;default:USER;column:role"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}

// IsAdmin reports whether the account holds the admin role
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// AnonymousViewer is the viewer id used when no identity is known
const AnonymousViewer int64 = 0
