package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/quillhq/quillfeed/internal/models"
)

// PostWriter runs each post mutation in a single transaction
type PostWriter struct {
	db *DB
}

// NewPostWriter creates a new post writer
func NewPostWriter(db *DB) *PostWriter {
	return &PostWriter{db: db}
}

func (w *PostWriter) posts(tx *gorm.DB) *PostRepository {
	return NewPostRepository(NewRepository(tx))
}

// CreatePost inserts post and its tag links
func (w *PostWriter) CreatePost(ctx context.Context, post *models.Post) error {
	return w.db.InTx(ctx, func(tx *gorm.DB) error {
		return w.posts(tx).Create(ctx, post)
	})
}

// UpdatePost saves post and replaces its tag links
func (w *PostWriter) UpdatePost(ctx context.Context, post *models.Post) error {
	return w.db.InTx(ctx, func(tx *gorm.DB) error {
		return w.posts(tx).Update(ctx, post)
	})
}

// DeletePost tears down a post and everything referencing it, all or
// nothing
func (w *PostWriter) DeletePost(ctx context.Context, postID int64) error {
	return w.db.InTx(ctx, func(tx *gorm.DB) error {
		return w.posts(tx).Delete(ctx, postID)
	})
}
