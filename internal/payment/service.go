// Package payment drives the order/verification state machine that unlocks
// premium posts.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/quillhq/quillfeed/internal/apperrors"
	"github.com/quillhq/quillfeed/internal/events"
	"github.com/quillhq/quillfeed/internal/models"
	"github.com/quillhq/quillfeed/internal/razorpay"
	"github.com/quillhq/quillfeed/pkg/config"
	"github.com/quillhq/quillfeed/pkg/logging"
	"github.com/quillhq/quillfeed/pkg/telemetry"
)

var errProviderNotConfigured = errors.New("payment provider not configured")

// Provider mints orders with the external payment provider
type Provider interface {
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
}

// PostStore loads posts
type PostStore interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
}

// Store persists payments
type Store interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByOrderToken(ctx context.Context, orderToken string) (*models.Payment, error)
	ExistsCompleted(ctx context.Context, postID, userID int64) (bool, error)
	PaidPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
	Transition(ctx context.Context, id int64, to models.PaymentStatus, paymentToken *string) (bool, error)
}

// Order is returned to the caller to complete checkout
type Order struct {
	OrderToken string `json:"order_token"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	KeyID      string `json:"key_id"`
}

// Verification is the outcome of a successful verification
type Verification struct {
	PostID int64                `json:"post_id"`
	Status models.PaymentStatus `json:"status"`
}

// Service implements order creation, verification and the paid check
type Service struct {
	posts    PostStore
	payments Store
	provider Provider
	events   events.Publisher
	cfg      config.PaymentConfig
	logger   *zap.Logger
}

// NewService creates a payment service. provider may be nil when no
// provider credentials are configured; order creation then fails with a
// gateway error.
func NewService(posts PostStore, payments Store, provider Provider, publisher events.Publisher, cfg config.PaymentConfig) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		posts:    posts,
		payments: payments,
		provider: provider,
		events:   publisher,
		cfg:      cfg,
		logger:   logging.WithComponent("payment"),
	}
}

// CreateOrder raises a provider order for a premium post and records it as
// PENDING. The provider is called once, outside any transaction.
func (s *Service) CreateOrder(ctx context.Context, postID, userID int64) (*Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.create_order")
	defer span.End()

	if userID == models.AnonymousViewer {
		return nil, apperrors.ErrAuthRequired
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, apperrors.ErrPostNotFound
	}
	if !post.IsPremium {
		return nil, apperrors.ErrNotPremium
	}
	if post.AuthorID == userID {
		return nil, apperrors.ErrAuthorPurchase
	}

	paid, err := s.payments.ExistsCompleted(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	}
	if paid {
		return nil, apperrors.ErrAlreadyPaid
	}

	if s.provider == nil {
		return nil, apperrors.Gateway("create order", errProviderNotConfigured)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	order, err := s.provider.CreateOrder(callCtx, razorpay.OrderRequest{
		Amount:   post.Price,
		Currency: s.cfg.Currency,
		Receipt:  "rcpt_" + strconv.FormatInt(post.ID, 10),
	})
	cancel()
	if err != nil {
		s.logger.Warn("Provider order creation failed",
			zap.Int64("post_id", postID),
			zap.Error(err))
		return nil, apperrors.Gateway("create order", err)
	}

	payment := &models.Payment{
		UserID:     userID,
		PostID:     post.ID,
		OrderToken: order.ID,
		Amount:     post.Price,
		Currency:   s.cfg.Currency,
		Status:     models.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	telemetry.RecordOrder(ctx, payment.Currency)
	logging.FromContext(ctx, s.logger).Info("Created payment order",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("post_id", post.ID),
		zap.Int64("user_id", userID))

	return &Order{
		OrderToken: payment.OrderToken,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		KeyID:      s.cfg.KeyID,
	}, nil
}

// VerifyPayment checks the provider signature over "orderToken|paymentToken"
// and settles the PENDING payment. A mismatch marks it FAILED. Repeating a
// verification that already completed with the same payment token succeeds
// without another transition.
func (s *Service) VerifyPayment(ctx context.Context, orderToken, paymentToken, signature string, userID int64) (*Verification, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.verify")
	defer span.End()

	logger := logging.FromContext(ctx, s.logger)

	if userID == models.AnonymousViewer {
		return nil, apperrors.ErrAuthRequired
	}
	if s.cfg.KeySecret == "" {
		return nil, apperrors.Gateway("verify payment", errProviderNotConfigured)
	}

	payment, err := s.payments.GetByOrderToken(ctx, orderToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment == nil {
		return nil, apperrors.ErrPaymentNotFound
	}
	if payment.UserID != userID {
		logger.Warn("Payment verification by non-owner",
			zap.Int64("payment_id", payment.ID),
			zap.Int64("user_id", userID))
		return nil, apperrors.ErrPaymentNotOwned
	}

	valid := razorpay.VerifySignature(s.cfg.KeySecret, orderToken, paymentToken, signature)

	if payment.Status == models.PaymentStatusPending {
		if !valid {
			return nil, s.fail(ctx, payment)
		}
		ok, err := s.payments.Transition(ctx, payment.ID, models.PaymentStatusCompleted, &paymentToken)
		if err != nil {
			return nil, fmt.Errorf("failed to complete payment: %w", err)
		}
		if ok {
			telemetry.RecordVerification(ctx, string(models.PaymentStatusCompleted))
			logger.Info("Payment completed",
				zap.Int64("payment_id", payment.ID),
				zap.Int64("post_id", payment.PostID))
			events.PublishQuietly(ctx, s.events, events.PaymentCompleted, orderToken, paymentEvent(payment))
			return &Verification{PostID: payment.PostID, Status: models.PaymentStatusCompleted}, nil
		}

		// A concurrent verification settled it first
		payment, err = s.payments.GetByOrderToken(ctx, orderToken)
		if err != nil {
			return nil, fmt.Errorf("failed to reload payment: %w", err)
		}
		if payment == nil {
			return nil, apperrors.ErrPaymentNotFound
		}
	}

	return s.settled(payment, paymentToken, valid)
}

// settled resolves a verification against a payment that is no longer
// PENDING
func (s *Service) settled(payment *models.Payment, paymentToken string, valid bool) (*Verification, error) {
	if !valid {
		return nil, apperrors.ErrSignatureMismatch
	}
	if payment.Status == models.PaymentStatusCompleted &&
		payment.PaymentToken != nil && *payment.PaymentToken == paymentToken {
		return &Verification{PostID: payment.PostID, Status: models.PaymentStatusCompleted}, nil
	}
	return nil, apperrors.ErrPaymentFinalized
}

func (s *Service) fail(ctx context.Context, payment *models.Payment) error {
	ok, err := s.payments.Transition(ctx, payment.ID, models.PaymentStatusFailed, nil)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	logging.FromContext(ctx, s.logger).Warn("Payment signature mismatch",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("post_id", payment.PostID),
		zap.Bool("transitioned", ok))
	if ok {
		telemetry.RecordVerification(ctx, string(models.PaymentStatusFailed))
		events.PublishQuietly(ctx, s.events, events.PaymentFailed, payment.OrderToken, paymentEvent(payment))
	}
	return apperrors.ErrSignatureMismatch
}

// HasPaid reports whether userID holds a COMPLETED payment for postID.
// Anonymous viewers have never paid.
func (s *Service) HasPaid(ctx context.Context, postID, userID int64) (bool, error) {
	if userID == models.AnonymousViewer {
		return false, nil
	}
	return s.payments.ExistsCompleted(ctx, postID, userID)
}

// PaidPostIDs is the batch form of HasPaid
func (s *Service) PaidPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	if userID == models.AnonymousViewer || len(postIDs) == 0 {
		return map[int64]bool{}, nil
	}
	return s.payments.PaidPostIDs(ctx, userID, postIDs)
}

func paymentEvent(p *models.Payment) events.PaymentEvent {
	return events.PaymentEvent{
		PaymentID: p.ID,
		PostID:    p.PostID,
		UserID:    p.UserID,
		Amount:    p.Amount,
		Currency:  p.Currency,
	}
}
