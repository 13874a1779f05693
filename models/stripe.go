package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type StripeStatus string

const (
	StripeStatusPaid     StripeStatus = "paid"
	StripeStatusFailed   StripeStatus = "failed"
	StripeStatusUnknown  StripeStatus = "unknown"
	StripeStatusRefunded StripeStatus = "refunded"
)

// StripeTransaction is one observed outcome of a checkout session or payment
// intent. Rows are only written by the webhook processor.
type StripeTransaction struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	EventID         string       `gorm:"index" json:"event_id,omitempty"`
	SessionID       string       `gorm:"index" json:"session_id,omitempty"`
	PaymentIntentID string       `gorm:"index" json:"payment_intent_id,omitempty"`
	ChargeID        string       `gorm:"index" json:"charge_id,omitempty"`
	Status          StripeStatus `gorm:"size:16;index" json:"status"`
	Amount          int64        `json:"amount"`
	Currency        string       `gorm:"size:8" json:"currency"`
	CustomerID      string       `json:"customer_id,omitempty"`
	PaymentMethod   string       `json:"payment_method,omitempty"`
	ClientIP        string       `json:"client_ip,omitempty"`
	StatusReason    string       `json:"status_reason,omitempty"`
}

// StripeDonation is written for a succeeded payment intent tagged as a
// donation. Amount is in major units.
type StripeDonation struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	EventID         string              `gorm:"index" json:"event_id,omitempty"`
	PaymentIntentID string              `gorm:"index" json:"payment_intent_id"`
	Amount          decimal.Decimal     `gorm:"type:numeric(12,2)" json:"amount"`
	Fee             decimal.NullDecimal `gorm:"type:numeric(12,4)" json:"fee"`
	Currency        string              `gorm:"size:8" json:"currency"`
	CustomerID      string              `json:"customer_id,omitempty"`
	PaymentMethod   string              `json:"payment_method,omitempty"`
	IsSuccessful    bool                `json:"is_successful"`
	Meta            datatypes.JSONMap   `json:"meta,omitempty"`
}

// StripeEvent records provider event ids that have already been applied.
type StripeEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"uniqueIndex;not null" json:"event_id"`
	Type       string    `json:"type"`
	ReceivedAt time.Time `json:"received_at"`
}
