package models

import (
	"strings"
	"time"
)

// PostStatus is the lifecycle state of a post
type PostStatus string

// Post status values
const (
	PostStatusDraft     PostStatus = "DRAFT"
	PostStatusPublished PostStatus = "PUBLISHED"
)

// ParsePostStatus maps a status string to a PostStatus. Unknown values
// resolve to PostStatusPublished.
func ParsePostStatus(s string) PostStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(PostStatusDraft)) {
		return PostStatusDraft
	}
	return PostStatusPublished
}

// MaxTagsPerPost caps the number of distinct tags attached to a post
const MaxTagsPerPost = 5

// Post represents an authored blog post
type Post struct {
	ID        int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Title     string     `gorm:"type:varchar(255);not null;column:title"`
	Content   string     `gorm:"type:text;not null;column:content"`
	AuthorID  int64      `gorm:"not null;index:posts_author_status_idx,priority:1;column:author_id"`
	Status    PostStatus `gorm:"type:varchar(16);not null;default:PUBLISHED;index:posts_author_status_idx,priority:2;index:posts_status_created_idx,priority:1;column:status"`
	IsPremium bool       `gorm:"not null;default:false;column:is_premium"`
	Price     int64      `gorm:"not null;default:0;column:price"`
	ViewCount int64      `gorm:"not null;default:0;column:view_count"`
	CreatedAt time.Time  `gorm:"not null;index:posts_status_created_idx,priority:2;column:created_at"`
	UpdatedAt time.Time  `gorm:"not null;column:updated_at"`

	// Relationships
	Tags []Tag `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// IsPublished reports whether the post is visible in public feeds
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// TagNames returns the names of the post's tags
func (p *Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Name)
	}
	return names
}

// Tag is a canonical (trimmed, lowercase) tag name
type Tag struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `gorm:"type:varchar(50);not null;uniqueIndex:tags_name_key;column:name"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Tag
func (Tag) TableName() string {
	return "tags"
}

// PostTagTable is the join table between posts and tags
const PostTagTable = "post_tags"

// TagUsage is a tag name with the number of posts using it
type TagUsage struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
