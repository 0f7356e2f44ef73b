package service

import (
	"context"
	"time"

	"github.com/quillhq/quillfeed/internal/models"
)

// FollowGraph answers who a user follows
type FollowGraph interface {
	IDsFollowedBy(ctx context.Context, userID int64) ([]int64, error)
}

// Roles answers authorization role checks
type Roles interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// Reactions supplies like, bookmark and comment facts for a batch of posts
type Reactions interface {
	LikeCounts(ctx context.Context, postIDs []int64) (map[int64]int64, error)
	CommentCounts(ctx context.Context, postIDs []int64) (map[int64]int64, error)
	LikedBy(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
	BookmarkedBy(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
}

// Authors resolves author display names
type Authors interface {
	Names(ctx context.Context, ids []int64) (map[int64]string, error)
}

// Payments reports which posts a user has paid for
type Payments interface {
	PaidPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
}

// PostReader loads posts with their tags
type PostReader interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Post, error)
	GetPublishedByIDs(ctx context.Context, ids []int64) ([]*models.Post, error)
	ListByAuthorStatus(ctx context.Context, authorID int64, status models.PostStatus) ([]*models.Post, error)
}

// PostWriter applies post mutations transactionally
type PostWriter interface {
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, postID int64) error
}

// ViewRecorder records unique post views
type ViewRecorder interface {
	Record(ctx context.Context, postID, viewerID int64) (bool, error)
}

// TagUsage lists tag usage counts
type TagUsage interface {
	ListUsage(ctx context.Context) ([]models.TagUsage, error)
}

// Cache stores JSON values by key
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
