package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quillhq/quillfeed/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// AccountRepository provides account-related database operations
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(repo *Repository) *AccountRepository {
	return &AccountRepository{Repository: repo}
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByEmail retrieves an account by email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// Names returns account names keyed by id. Unknown ids are omitted.
func (r *AccountRepository) Names(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var accounts []models.Account
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	return names, nil
}

// IsAdmin reports whether the account holds the admin role. Unknown
// accounts are not admins.
func (r *AccountRepository) IsAdmin(ctx context.Context, id int64) (bool, error) {
	account, err := r.GetByID(ctx, id)
	if err != nil || account == nil {
		return false, err
	}
	return account.IsAdmin(), nil
}

// FollowRepository reads the follow graph
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// IDsFollowedBy returns the ids of accounts followerID follows
func (r *FollowRepository) IDsFollowedBy(ctx context.Context, followerID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", followerID).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ReactionRepository reads likes, bookmarks and comments for posts
type ReactionRepository struct {
	*Repository
}

// NewReactionRepository creates a new reaction repository
func NewReactionRepository(repo *Repository) *ReactionRepository {
	return &ReactionRepository{Repository: repo}
}

type postCount struct {
	PostID int64
	Count  int64
}

func (r *ReactionRepository) countByPost(ctx context.Context, model interface{}, postIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	var rows []postCount
	err := r.db.WithContext(ctx).
		Model(model).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.PostID] = row.Count
	}
	return counts, nil
}

func (r *ReactionRepository) postsByUser(ctx context.Context, model interface{}, userID int64, postIDs []int64) (map[int64]bool, error) {
	found := make(map[int64]bool, len(postIDs))
	if len(postIDs) == 0 || userID == models.AnonymousViewer {
		return found, nil
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(model).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		found[id] = true
	}
	return found, nil
}

// LikeCounts returns like counts keyed by post id
func (r *ReactionRepository) LikeCounts(ctx context.Context, postIDs []int64) (map[int64]int64, error) {
	return r.countByPost(ctx, &models.Like{}, postIDs)
}

// CommentCounts returns comment counts, replies included, keyed by post id
func (r *ReactionRepository) CommentCounts(ctx context.Context, postIDs []int64) (map[int64]int64, error) {
	return r.countByPost(ctx, &models.Comment{}, postIDs)
}

// LikedBy returns the subset of postIDs the user has liked
func (r *ReactionRepository) LikedBy(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	return r.postsByUser(ctx, &models.Like{}, userID, postIDs)
}

// BookmarkedBy returns the subset of postIDs the user has bookmarked
func (r *ReactionRepository) BookmarkedBy(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	return r.postsByUser(ctx, &models.Bookmark{}, userID, postIDs)
}
