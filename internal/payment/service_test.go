package payment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quillfeed/internal/apperrors"
	"github.com/quillhq/quillfeed/internal/db"
	"github.com/quillhq/quillfeed/internal/db/dbtest"
	"github.com/quillhq/quillfeed/internal/events"
	"github.com/quillhq/quillfeed/internal/models"
	"github.com/quillhq/quillfeed/internal/payment"
	"github.com/quillhq/quillfeed/internal/razorpay"
	"github.com/quillhq/quillfeed/pkg/config"
)

const secret = "test_secret"

type stubProvider struct {
	mu       sync.Mutex
	calls    []razorpay.OrderRequest
	err      error
	deadline bool
}

func (p *stubProvider) CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, p.deadline = ctx.Deadline()
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	return &razorpay.Order{ID: fmt.Sprintf("order_%d", len(p.calls)), Amount: req.Amount, Currency: req.Currency}, nil
}

type recordingPublisher struct {
	types []string
}

func (r *recordingPublisher) Publish(_ context.Context, eventType, _ string, _ interface{}) error {
	r.types = append(r.types, eventType)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

type env struct {
	svc       *payment.Service
	provider  *stubProvider
	published *recordingPublisher
	payments  *db.PaymentRepository
	author    *models.Account
	reader    *models.Account
	premium   *models.Post
	free      *models.Post
}

func setup(t *testing.T) *env {
	t.Helper()
	database := dbtest.New(t)
	fx := dbtest.NewFixture(t, database)
	repo := db.NewRepository(database.DB)

	e := &env{
		provider:  &stubProvider{},
		published: &recordingPublisher{},
		payments:  db.NewPaymentRepository(repo),
	}
	e.author = fx.Account("author", models.RoleUser)
	e.reader = fx.Account("reader", models.RoleUser)
	e.premium = fx.PostWith(&models.Post{AuthorID: e.author.ID, Title: "Premium", Content: "paid words", IsPremium: true, Price: 500})
	e.free = fx.Post(e.author.ID, "Free")

	e.svc = payment.NewService(db.NewPostRepository(repo), e.payments, e.provider, e.published, config.PaymentConfig{
		KeyID:     "rzp_test_key",
		KeySecret: secret,
		Currency:  "INR",
		Timeout:   time.Second,
	})
	return e
}

func TestCreateOrder(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	order, err := e.svc.CreateOrder(ctx, e.premium.ID, e.reader.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_1", order.OrderToken)
	assert.Equal(t, int64(500), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "rzp_test_key", order.KeyID)

	require.Len(t, e.provider.calls, 1)
	assert.Equal(t, fmt.Sprintf("rcpt_%d", e.premium.ID), e.provider.calls[0].Receipt)
	assert.True(t, e.provider.deadline, "provider call is timeout-bound")

	stored, err := e.payments.GetByOrderToken(ctx, "order_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Equal(t, e.reader.ID, stored.UserID)
}

func TestCreateOrderRejections(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		postID   int64
		userID   int64
		expected error
		kind     error
	}{
		{"missing post", 9999, e.reader.ID, apperrors.ErrPostNotFound, apperrors.ErrNotFound},
		{"not premium", e.free.ID, e.reader.ID, apperrors.ErrNotPremium, apperrors.ErrInvalidState},
		{"author purchase", e.premium.ID, e.author.ID, apperrors.ErrAuthorPurchase, apperrors.ErrInvalidState},
		{"anonymous", e.premium.ID, models.AnonymousViewer, apperrors.ErrAuthRequired, apperrors.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.CreateOrder(ctx, tt.postID, tt.userID)
			assert.ErrorIs(t, err, tt.expected)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
	assert.Empty(t, e.provider.calls, "rejected orders never reach the provider")
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	e := setup(t)
	e.provider.err = errors.New("connection refused")

	_, err := e.svc.CreateOrder(context.Background(), e.premium.ID, e.reader.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGateway)
	assert.ErrorIs(t, err, e.provider.err)
	assert.Len(t, e.provider.calls, 1, "no retry")

	paid, err := e.svc.HasPaid(context.Background(), e.premium.ID, e.reader.ID)
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestVerifyPaymentCompletes(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	order, err := e.svc.CreateOrder(ctx, e.premium.ID, e.reader.ID)
	require.NoError(t, err)

	sig := razorpay.Sign(secret, order.OrderToken, "pay_1")
	v, err := e.svc.VerifyPayment(ctx, order.OrderToken, "pay_1", sig, e.reader.ID)
	require.NoError(t, err)
	assert.Equal(t, e.premium.ID, v.PostID)
	assert.Equal(t, models.PaymentStatusCompleted, v.Status)

	paid, err := e.svc.HasPaid(ctx, e.premium.ID, e.reader.ID)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, []string{events.PaymentCompleted}, e.published.types)

	// Repeating the same verification is idempotent
	v, err = e.svc.VerifyPayment(ctx, order.OrderToken, "pay_1", sig, e.reader.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, v.Status)
	assert.Len(t, e.published.types, 1)

	// A second purchase is rejected without a new order
	_, err = e.svc.CreateOrder(ctx, e.premium.ID, e.reader.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyPaid)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Len(t, e.provider.calls, 1)
}

func TestVerifyPaymentSignatureMismatch(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	order, err := e.svc.CreateOrder(ctx, e.premium.ID, e.reader.ID)
	require.NoError(t, err)

	sig := []byte(razorpay.Sign(secret, order.OrderToken, "pay_1"))
	if sig[5] == '0' {
		sig[5] = '1'
	} else {
		sig[5] = '0'
	}

	_, err = e.svc.VerifyPayment(ctx, order.OrderToken, "pay_1", string(sig), e.reader.ID)
	require.ErrorIs(t, err, apperrors.ErrSignatureMismatch)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.NotContains(t, err.Error(), razorpay.Sign(secret, order.OrderToken, "pay_1"))

	stored, err := e.payments.GetByOrderToken(ctx, order.OrderToken)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.Nil(t, stored.PaymentToken)

	paid, err := e.svc.HasPaid(ctx, e.premium.ID, e.reader.ID)
	require.NoError(t, err)
	assert.False(t, paid)
	assert.Equal(t, []string{events.PaymentFailed}, e.published.types)

	// FAILED is terminal, even for a correct signature
	good := razorpay.Sign(secret, order.OrderToken, "pay_1")
	_, err = e.svc.VerifyPayment(ctx, order.OrderToken, "pay_1", good, e.reader.ID)
	assert.ErrorIs(t, err, apperrors.ErrPaymentFinalized)
}

func TestVerifyPaymentRejections(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	order, err := e.svc.CreateOrder(ctx, e.premium.ID, e.reader.ID)
	require.NoError(t, err)
	sig := razorpay.Sign(secret, order.OrderToken, "pay_1")

	_, err = e.svc.VerifyPayment(ctx, "order_missing", "pay_1", sig, e.reader.ID)
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = e.svc.VerifyPayment(ctx, order.OrderToken, "pay_1", sig, e.author.ID)
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotOwned)

	_, err = e.svc.VerifyPayment(ctx, order.OrderToken, "pay_1", sig, models.AnonymousViewer)
	assert.ErrorIs(t, err, apperrors.ErrAuthRequired)

	stored, err := e.payments.GetByOrderToken(ctx, order.OrderToken)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status, "rejected callers leave the payment untouched")
}

func TestVerifyCompletedWithDifferentToken(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	order, err := e.svc.CreateOrder(ctx, e.premium.ID, e.reader.ID)
	require.NoError(t, err)
	_, err = e.svc.VerifyPayment(ctx, order.OrderToken, "pay_1", razorpay.Sign(secret, order.OrderToken, "pay_1"), e.reader.ID)
	require.NoError(t, err)

	_, err = e.svc.VerifyPayment(ctx, order.OrderToken, "pay_2", razorpay.Sign(secret, order.OrderToken, "pay_2"), e.reader.ID)
	assert.ErrorIs(t, err, apperrors.ErrPaymentFinalized)

	_, err = e.svc.VerifyPayment(ctx, order.OrderToken, "pay_1", "deadbeef", e.reader.ID)
	assert.ErrorIs(t, err, apperrors.ErrSignatureMismatch)

	stored, err := e.payments.GetByOrderToken(ctx, order.OrderToken)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Status, "completed payments are never downgraded")
}

func TestHasPaidAnonymous(t *testing.T) {
	e := setup(t)

	paid, err := e.svc.HasPaid(context.Background(), e.premium.ID, models.AnonymousViewer)
	require.NoError(t, err)
	assert.False(t, paid)

	set, err := e.svc.PaidPostIDs(context.Background(), models.AnonymousViewer, []int64{e.premium.ID})
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestProviderNotConfigured(t *testing.T) {
	database := dbtest.New(t)
	fx := dbtest.NewFixture(t, database)
	repo := db.NewRepository(database.DB)
	author := fx.Account("author", models.RoleUser)
	reader := fx.Account("reader", models.RoleUser)
	post := fx.PostWith(&models.Post{AuthorID: author.ID, Title: "Premium", IsPremium: true, Price: 100})

	svc := payment.NewService(db.NewPostRepository(repo), db.NewPaymentRepository(repo), nil, nil, config.PaymentConfig{Currency: "INR", Timeout: time.Second})

	_, err := svc.CreateOrder(context.Background(), post.ID, reader.ID)
	assert.ErrorIs(t, err, apperrors.ErrGateway)

	_, err = svc.VerifyPayment(context.Background(), "order_x", "pay_x", "sig", reader.ID)
	assert.ErrorIs(t, err, apperrors.ErrGateway)
}
