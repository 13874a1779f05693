package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentFee is an administratively maintained commission rate.
type PaymentFee struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	PaymentMethod string          `gorm:"size:32;not null;uniqueIndex:ux_payment_fees_method_currency,priority:1" json:"payment_method"`
	Currency      string          `gorm:"size:8;not null;uniqueIndex:ux_payment_fees_method_currency,priority:2" json:"currency"`
	Percentage    decimal.Decimal `gorm:"type:numeric(8,6);not null" json:"percentage"`
	FixedFee      decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"fixed_fee"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// All lists every model migrated at startup.
func All() []any {
	return []any{
		&User{}, &Basket{}, &Product{}, &ProductInBasket{}, &PaymentBasket{},
		&StripeTransaction{}, &StripeDonation{}, &StripeEvent{},
		&PayPalPaymentTransaction{}, &PaymentFee{},
	}
}
