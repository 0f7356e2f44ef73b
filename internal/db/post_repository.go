package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/quillhq/quillfeed/internal/models"
)

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// GetByID retrieves a post and its tags by ID
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Tags").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// GetByIDs retrieves posts with their tags in the order of ids. Missing ids
// are skipped.
func (r *PostRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Post, error) {
	return r.getByIDs(r.db.WithContext(ctx), ids)
}

// GetPublishedByIDs is GetByIDs restricted to published posts. Drafts and
// missing ids are skipped.
func (r *PostRepository) GetPublishedByIDs(ctx context.Context, ids []int64) ([]*models.Post, error) {
	return r.getByIDs(r.db.WithContext(ctx).Where("status = ?", models.PostStatusPublished), ids)
}

func (r *PostRepository) getByIDs(query *gorm.DB, ids []int64) ([]*models.Post, error) {
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}

	var posts []*models.Post
	if err := query.Preload("Tags").Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	// Build result in order
	ordered := make([]*models.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// ListByAuthorStatus returns an author's posts in the given status, newest
// first
func (r *PostRepository) ListByAuthorStatus(ctx context.Context, authorID int64, status models.PostStatus) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("Tags").
		Where("author_id = ? AND status = ?", authorID, status).
		Order("created_at DESC").
		Order("id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Create inserts a post and links its already-persisted tags
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit("Tags.*").Create(post).Error
}

// Update saves the post's editable fields and replaces its tag set. Old tag
// links are detached; the tags themselves are kept.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	db := r.db.WithContext(ctx)
	err := db.Model(post).
		Select("title", "content", "is_premium", "price", "status", "updated_at").
		Updates(post).Error
	if err != nil {
		return fmt.Errorf("failed to update post %d: %w", post.ID, err)
	}

	tags := post.Tags
	assoc := db.Model(post).Omit("Tags.*").Association("Tags")
	if len(tags) == 0 {
		err = assoc.Clear()
	} else {
		err = assoc.Replace(tags)
	}
	if err != nil {
		return fmt.Errorf("failed to replace tags for post %d: %w", post.ID, err)
	}
	post.Tags = tags
	return nil
}

// Delete removes a post and everything that references it. Callers run it
// inside a transaction so the teardown is all-or-nothing.
func (r *PostRepository) Delete(ctx context.Context, postID int64) error {
	db := r.db.WithContext(ctx)

	steps := []struct {
		name string
		run  func() error
	}{
		{"bookmarks", func() error { return db.Where("post_id = ?", postID).Delete(&models.Bookmark{}).Error }},
		{"payments", func() error { return db.Where("post_id = ?", postID).Delete(&models.Payment{}).Error }},
		{"views", func() error { return db.Where("post_id = ?", postID).Delete(&models.PostView{}).Error }},
		{"likes", func() error { return db.Where("post_id = ?", postID).Delete(&models.Like{}).Error }},
		{"comment replies", func() error {
			return db.Where("post_id = ? AND parent_id IS NOT NULL", postID).Delete(&models.Comment{}).Error
		}},
		{"comments", func() error { return db.Where("post_id = ?", postID).Delete(&models.Comment{}).Error }},
		{"tag links", func() error { return db.Exec("DELETE FROM "+models.PostTagTable+" WHERE post_id = ?", postID).Error }},
		{"post", func() error { return db.Delete(&models.Post{}, postID).Error }},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("failed to delete %s of post %d: %w", step.name, postID, err)
		}
	}
	return nil
}
