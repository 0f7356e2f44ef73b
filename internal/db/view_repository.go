package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quillhq/quillfeed/internal/models"
)

// ViewRepository records unique post views
type ViewRepository struct {
	*Repository
}

// NewViewRepository creates a new view repository
func NewViewRepository(repo *Repository) *ViewRepository {
	return &ViewRepository{Repository: repo}
}

// Record inserts the (post, viewer) view row and bumps the post's view
// counter, both in one transaction. It reports whether this call recorded
// a new view. Anonymous viewers and repeat views are no-ops. Under a
// concurrent first view only the caller whose insert lands increments; the
// other sees the conflict and skips.
func (r *ViewRepository) Record(ctx context.Context, postID, viewerID int64) (bool, error) {
	if viewerID == models.AnonymousViewer {
		return false, nil
	}

	recorded := false
	err := runInTx(ctx, r.db, func(tx *gorm.DB) error {
		view := models.PostView{PostID: postID, ViewerID: viewerID}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "viewer_id"}},
			DoNothing: true,
		}).Create(&view)
		if res.Error != nil {
			return fmt.Errorf("failed to insert view: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		upd := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if upd.Error != nil {
			return fmt.Errorf("failed to increment view count: %w", upd.Error)
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("post %d: %w", postID, gorm.ErrRecordNotFound)
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

// Count returns the number of view rows for a post
func (r *ViewRepository) Count(ctx context.Context, postID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PostView{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}
