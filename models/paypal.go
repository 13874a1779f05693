package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayPalPaymentTransaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	PaymentID       string          `gorm:"uniqueIndex;not null" json:"payment_id"`
	PayerID         string          `json:"payer_id,omitempty"`
	SaleID          string          `gorm:"index" json:"sale_id,omitempty"`
	Status          string          `gorm:"size:32" json:"status"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	Currency        string          `gorm:"size:8" json:"currency"`
	RefundID        string          `json:"refund_id,omitempty"`
	RefundedAt      *time.Time      `json:"refunded_at,omitempty"`
	Description     string          `json:"description,omitempty"`
	PaymentBasketID *uint           `gorm:"index" json:"payment_basket_id,omitempty"`

	PaymentBasket *PaymentBasket `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
}
