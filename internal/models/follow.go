package models

import (
	"time"
)

// Follow represents a follow relationship
type Follow struct {
	FollowerID  int64     `gorm:"primaryKey;column:follower_id"`
	FollowingID int64     `gorm:"primaryKey;column:following_id"`
	CreatedAt   time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Follow
func (Follow) TableName() string {
	return "follows"
}
