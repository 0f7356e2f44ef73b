package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quillhq/quillfeed/internal/models"
)

// TagRepository provides tag-related database operations
type TagRepository struct {
	*Repository
}

// NewTagRepository creates a new tag repository
func NewTagRepository(repo *Repository) *TagRepository {
	return &TagRepository{Repository: repo}
}

// GetByName retrieves a tag by canonical name
func (r *TagRepository) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tag, nil
}

// FindOrCreate returns the tag named name, creating it if needed. A
// concurrent insert of the same name resolves to the winner's row.
func (r *TagRepository) FindOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	existing, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	tag := models.Tag{Name: name}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&tag)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create tag %q: %w", name, res.Error)
	}
	if res.RowsAffected == 1 && tag.ID != 0 {
		return &tag, nil
	}

	// Lost the race; use the row that won.
	winner, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, fmt.Errorf("tag %q vanished after conflicting insert", name)
	}
	return winner, nil
}

// ListUsage returns tags used by published posts, most used first, then by
// name.
func (r *TagRepository) ListUsage(ctx context.Context) ([]models.TagUsage, error) {
	var usage []models.TagUsage
	err := r.db.WithContext(ctx).
		Table("tags").
		Select("tags.name AS name, COUNT(posts.id) AS count").
		Joins("JOIN "+models.PostTagTable+" pt ON pt.tag_id = tags.id").
		Joins("JOIN posts ON posts.id = pt.post_id AND posts.status = ?", models.PostStatusPublished).
		Group("tags.id, tags.name").
		Order("count DESC").
		Order("tags.name ASC").
		Scan(&usage).Error
	if err != nil {
		return nil, err
	}
	return usage, nil
}
