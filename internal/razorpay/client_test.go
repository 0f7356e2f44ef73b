package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quillhq/quillfeed/pkg/config"
)

func TestSignKnownVector(t *testing.T) {
	want := "52115a0d3400de9e86aade1f1b6eba9e8974604f4e267a9e9a16633a4c8dd2cb"
	if got := Sign("secret", "order_1", "pay_1"); got != want {
		t.Errorf("Sign() = %s, want %s", got, want)
	}
	if Sign("other", "order_1", "pay_1") == want {
		t.Error("Sign() should depend on the secret")
	}
}

func TestVerifySignature(t *testing.T) {
	good := Sign("shh", "order_9", "pay_9")
	altered := []byte(good)
	if altered[0] == 'a' {
		altered[0] = 'b'
	} else {
		altered[0] = 'a'
	}

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		valid     bool
	}{
		{"valid", "order_9", "pay_9", good, true},
		{"one character altered", "order_9", "pay_9", string(altered), false},
		{"wrong payment", "order_9", "pay_8", good, false},
		{"empty signature", "order_9", "pay_9", "", false},
		{"uppercase hex", "order_9", "pay_9", upper(good), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature("shh", tt.orderID, tt.paymentID, tt.signature); got != tt.valid {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(&config.PaymentConfig{
		ProviderURL: srv.URL + "/",
		KeyID:       "rzp_test_key",
		KeySecret:   "rzp_test_secret",
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestCreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "rzp_test_secret" {
			t.Errorf("missing basic auth, got %q/%q", user, pass)
		}
		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if req.Amount != 500 || req.Currency != "INR" || req.Receipt != "rcpt_7" {
			t.Errorf("unexpected order request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", Amount: req.Amount, Currency: req.Currency, Status: "created"})
	})

	order, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 500, Currency: "INR", Receipt: "rcpt_7"})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.ID != "order_abc" || order.Amount != 500 {
		t.Errorf("CreateOrder() = %+v", order)
	}
}

func TestCreateOrderAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CreateOrder() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "BAD_REQUEST_ERROR" {
		t.Errorf("unexpected API error %+v", apiErr)
	}
}

func TestCreateOrderHonorsContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.CreateOrder(ctx, OrderRequest{Amount: 1, Currency: "INR"}); err == nil {
		t.Error("CreateOrder() should fail when the context expires")
	}
}

func TestNewRequiresKeys(t *testing.T) {
	if _, err := New(&config.PaymentConfig{ProviderURL: "http://x"}); err == nil {
		t.Error("New() should require key id and secret")
	}
}
