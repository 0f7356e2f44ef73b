package db

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/quillhq/quillfeed/internal/feed"
	"github.com/quillhq/quillfeed/internal/models"
)

const likeCountExpr = "(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = posts.id)"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FeedRepository runs feed queries over published posts
type FeedRepository struct {
	*Repository
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(repo *Repository) *FeedRepository {
	return &FeedRepository{Repository: repo}
}

func (r *FeedRepository) published(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("posts.status = ?", models.PostStatusPublished)
}

// FindPostIDs returns one page of post ids for q and the total match count.
// Filtering, ordering and paging run in the database so page boundaries
// are stable.
func (r *FeedRepository) FindPostIDs(ctx context.Context, q feed.Query) ([]int64, int64, error) {
	query := r.published(ctx)
	if q.Search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(q.Search)) + "%"
		query = query.Where(`LOWER(posts.title) LIKE ? ESCAPE '\'`, pattern)
	}
	if q.Tag != "" {
		query = query.Where(
			"EXISTS (SELECT 1 FROM "+models.PostTagTable+" pt JOIN tags t ON t.id = pt.tag_id WHERE pt.post_id = posts.id AND t.name = ?)",
			q.Tag,
		)
	}
	if q.AuthorIDs != nil {
		query = query.Where("posts.author_id IN ?", q.AuthorIDs)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []int64{}, 0, nil
	}

	switch q.Sort {
	case feed.SortMostLiked:
		query = query.Order(likeCountExpr + " DESC").Order("posts.created_at DESC").Order("posts.id DESC")
	case feed.SortOldest:
		query = query.Order("posts.created_at ASC").Order("posts.id ASC")
	default:
		query = query.Order("posts.created_at DESC").Order("posts.id DESC")
	}

	var ids []int64
	err := query.
		Offset(q.Page * q.Size).
		Limit(q.Size).
		Pluck("posts.id", &ids).Error
	if err != nil {
		return nil, 0, err
	}
	return ids, total, nil
}

// FindRelatedPostIDs returns published posts sharing any of tagNames,
// excluding postID, ranked by shared tag count then recency
func (r *FeedRepository) FindRelatedPostIDs(ctx context.Context, postID int64, tagNames []string, limit int) ([]int64, error) {
	if len(tagNames) == 0 {
		return []int64{}, nil
	}
	var ids []int64
	err := r.published(ctx).
		Joins("JOIN "+models.PostTagTable+" pt ON pt.post_id = posts.id").
		Joins("JOIN tags t ON t.id = pt.tag_id").
		Where("t.name IN ? AND posts.id <> ?", tagNames, postID).
		Group("posts.id, posts.created_at").
		Order("COUNT(t.id) DESC").
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(limit).
		Pluck("posts.id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindRecentPostIDs returns the newest published posts other than excludeID
func (r *FeedRepository) FindRecentPostIDs(ctx context.Context, excludeID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.published(ctx).
		Where("posts.id <> ?", excludeID).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(limit).
		Pluck("posts.id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
