package models

import "time"

// PostView records that a viewer has seen a post. The (post, viewer) pair is
// unique and rows are never updated.
type PostView struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	PostID    int64     `gorm:"not null;uniqueIndex:post_views_post_viewer_key,priority:1;column:post_id"`
	ViewerID  int64     `gorm:"not null;uniqueIndex:post_views_post_viewer_key,priority:2;column:viewer_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for PostView
func (PostView) TableName() string {
	return "post_views"
}
