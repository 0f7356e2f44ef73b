package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/quillhq/quillfeed/internal/models"
)

// PaymentRepository provides payment-related database operations
type PaymentRepository struct {
	*Repository
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(repo *Repository) *PaymentRepository {
	return &PaymentRepository{Repository: repo}
}

// Create inserts a payment
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByOrderToken retrieves a payment by its provider order token
func (r *PaymentRepository) GetByOrderToken(ctx context.Context, orderToken string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("order_token = ?", orderToken).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ExistsCompleted reports whether userID has a COMPLETED payment for postID
func (r *PaymentRepository) ExistsCompleted(ctx context.Context, postID, userID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("post_id = ? AND user_id = ? AND status = ?", postID, userID, models.PaymentStatusCompleted).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// PaidPostIDs returns the subset of postIDs userID has a COMPLETED payment
// for
func (r *PaymentRepository) PaidPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	paid := make(map[int64]bool, len(postIDs))
	if len(postIDs) == 0 || userID == models.AnonymousViewer {
		return paid, nil
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("user_id = ? AND status = ? AND post_id IN ?", userID, models.PaymentStatusCompleted, postIDs).
		Distinct().
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		paid[id] = true
	}
	return paid, nil
}

// Transition moves a PENDING payment to status to, storing paymentToken
// when non-nil. It reports false when the payment was no longer PENDING.
func (r *PaymentRepository) Transition(ctx context.Context, id int64, to models.PaymentStatus, paymentToken *string) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}
	if paymentToken != nil {
		updates["payment_token"] = *paymentToken
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
