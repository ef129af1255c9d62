package store

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-pay/internal/currency"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Payment additional-information keys used by the donation flow.
const (
	InfoDonationToken    = "donationToken"
	InfoDonationTryCount = "donationTryCount"
	InfoPSPReference     = "pspReference"
)

// Module settings keys.
const (
	KeyWebhookID   = "webhook_id"
	KeyHmacKeyLive = "notification_hmac_key_live"
	KeyHmacKeyTest = "notification_hmac_key_test"
	KeyAPIKeyLive  = "api_key_live"
	KeyAPIKeyTest  = "api_key_test"
)

// Payment is the payment record attached to an order.
type Payment struct {
	Method string
	// AdditionalInfo carries provider metadata such as the donation token,
	// try count and original psp reference.
	AdditionalInfo map[string]string
}

// Order is the order view the payment extension reads from the host platform.
type Order struct {
	IncrementID string
	CustomerID  string
	Amounts     currency.Order
	Payment     Payment
}

// Orders loads and updates order payment records.
type Orders interface {
	ByIncrementID(ctx context.Context, incrementID string) (Order, error)
	// SavePaymentInfo replaces the payment's additional information.
	SavePaymentInfo(ctx context.Context, incrementID string, info map[string]string) error
}

// Settings is a key/value store for module configuration written at runtime
// (webhook id, generated HMAC keys).
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
