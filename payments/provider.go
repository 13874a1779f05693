package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentSpec is what a provider needs to open a payment for a basket.
type PaymentSpec struct {
	BasketID        uint
	PaymentBasketID uint
	Amount          decimal.Decimal
	Currency        string
	Email           *string
	Description     string
	IdempotencyKey  string
}

// Handle is the provider payment returned to the client.
type Handle struct {
	Provider   string          `json:"provider"`
	ID         string          `json:"id"`
	URL        string          `json:"url,omitempty"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Commission decimal.Decimal `json:"commission"`
}

// Status is the provider's current view of a payment.
type Status struct {
	Provider   string          `json:"provider"`
	ID         string          `json:"id"`
	State      string          `json:"state"`
	Cancelable bool            `json:"cancelable"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

type RefundSpec struct {
	PaymentID string
	// CaptureID overrides PaymentID for providers that refund captures.
	CaptureID string
	Amount    decimal.Decimal
	Currency  string
	Reason    string
}

type RefundResult struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Amount decimal.Decimal `json:"amount"`
}

type Capture struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	PayerID   string `json:"payer_id"`
	CaptureID string `json:"capture_id"`
}

// Provider is the contract expected from a payment provider SDK.
type Provider interface {
	Name() string
	CreatePayment(ctx context.Context, spec PaymentSpec) (*Handle, error)
	GetPayment(ctx context.Context, id string) (*Status, error)
	CancelPayment(ctx context.Context, id string) error
	Refund(ctx context.Context, spec RefundSpec) (*RefundResult, error)
}

// Capturer is implemented by providers where the buyer approves first and the
// merchant captures afterwards.
type Capturer interface {
	Capture(ctx context.Context, id string) (*Capture, error)
}
