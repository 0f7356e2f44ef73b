package models

import "time"

// Like is a user's like on a post
type Like struct {
	PostID    int64     `gorm:"primaryKey;column:post_id"`
	UserID    int64     `gorm:"primaryKey;column:user_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Like
func (Like) TableName() string {
	return "post_likes"
}

// Bookmark is a user's saved post
type Bookmark struct {
	UserID    int64     `gorm:"primaryKey;column:user_id"`
	PostID    int64     `gorm:"primaryKey;index;column:post_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Bookmark
func (Bookmark) TableName() string {
	return "bookmarks"
}

// Comment is a comment or reply on a post
type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	PostID    int64     `gorm:"not null;index;column:post_id"`
	ParentID  *int64    `gorm:"index;column:parent_id"`
	AuthorID  int64     `gorm:"not null;column:author_id"`
	Content   string    `gorm:"type:text;not null;column:content"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}
