package models

import "github.com/shopspring/decimal"

// CreatePaymentRequest is the payload from the frontend to start paying for a basket.
type CreatePaymentRequest struct {
	BasketID uint   `json:"basket_id"`
	Provider string `json:"provider,omitempty"` // "stripe" | "paypal", defaults to stripe
}

type CreatePaymentBasketRequest struct {
	Currency string         `json:"currency,omitempty"`
	Email    *string        `json:"email,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type RefundRequest struct {
	Provider  string          `json:"provider,omitempty"`
	PaymentID string          `json:"payment_id"` // payment intent id (stripe) or order id (paypal)
	Amount    decimal.Decimal `json:"amount"`     // major units; zero refunds the full amount
	Currency  string          `json:"currency,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type AddProductRequest struct {
	ProductID uint `json:"product_id"`
}
