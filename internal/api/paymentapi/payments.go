// Package paymentapi implements the payment_api JSON-RPC namespace.
package paymentapi

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quillhq/quillfeed/internal/api/request"
	"github.com/quillhq/quillfeed/internal/payment"
)

// Service is the payment service the API calls into
type Service interface {
	CreateOrder(ctx context.Context, postID, userID int64) (*payment.Order, error)
	VerifyPayment(ctx context.Context, orderToken, paymentToken, signature string, userID int64) (*payment.Verification, error)
	HasPaid(ctx context.Context, postID, userID int64) (bool, error)
}

// PaymentAPI provides the payment_api methods
type PaymentAPI struct {
	payments Service
}

// NewPaymentAPI creates a new payment API
func NewPaymentAPI(payments Service) *PaymentAPI {
	return &PaymentAPI{payments: payments}
}

type postParams struct {
	PostID int64 `json:"post_id"`
}

type verifyParams struct {
	OrderToken   string `json:"order_token"`
	PaymentToken string `json:"payment_token"`
	Signature    string `json:"signature"`
}

// CreateOrder handles payment_api.create_order
func (p *PaymentAPI) CreateOrder(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var req postParams
	if err := request.Decode(params, &req); err != nil {
		return nil, err
	}
	if err := request.RequireID("post_id", req.PostID); err != nil {
		return nil, err
	}
	return p.payments.CreateOrder(ctx.Request.Context(), req.PostID, request.ViewerID(ctx))
}

// VerifyPayment handles payment_api.verify_payment
func (p *PaymentAPI) VerifyPayment(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var req verifyParams
	if err := request.Decode(params, &req); err != nil {
		return nil, err
	}
	if req.OrderToken == "" || req.PaymentToken == "" || req.Signature == "" {
		return nil, request.Invalid("missing required parameters: order_token, payment_token, signature")
	}
	// The signature covers the tokens as sent, so they are never rewritten
	for name, token := range map[string]string{"order_token": req.OrderToken, "payment_token": req.PaymentToken} {
		if strings.TrimSpace(token) != token {
			return nil, request.Invalid("%s must not have surrounding whitespace", name)
		}
	}
	return p.payments.VerifyPayment(ctx.Request.Context(), req.OrderToken, req.PaymentToken, req.Signature, request.ViewerID(ctx))
}

// HasPaid handles payment_api.has_paid
func (p *PaymentAPI) HasPaid(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	var req postParams
	if err := request.Decode(params, &req); err != nil {
		return nil, err
	}
	if err := request.RequireID("post_id", req.PostID); err != nil {
		return nil, err
	}
	paid, err := p.payments.HasPaid(ctx.Request.Context(), req.PostID, request.ViewerID(ctx))
	if err != nil {
		return nil, err
	}
	return gin.H{"post_id": req.PostID, "paid": paid}, nil
}
