package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/a2n2k3p4/basket-payments/models"
)

type PayPalTransactionInput struct {
	PaymentID       string
	Status          string
	Amount          decimal.Decimal
	Currency        string
	Description     string
	PaymentBasketID *uint
}

// PayPalUpdate carries the fields changed by a capture, refund or cancel.
// Zero values are left untouched.
type PayPalUpdate struct {
	Status     string
	PayerID    string
	SaleID     string
	RefundID   string
	RefundedAt *time.Time
}

func (l *Ledger) RecordPayPalTransaction(ctx context.Context, in PayPalTransactionInput) (*models.PayPalPaymentTransaction, error) {
	row := &models.PayPalPaymentTransaction{
		PaymentID:       in.PaymentID,
		Status:          in.Status,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Description:     in.Description,
		PaymentBasketID: in.PaymentBasketID,
	}
	if err := l.DB.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: paypal payment %s", models.ErrAlreadyExists, in.PaymentID)
		}
		return nil, persistence("record paypal transaction", err)
	}
	return row, nil
}

func (l *Ledger) UpdatePayPalTransaction(ctx context.Context, paymentID string, u PayPalUpdate) error {
	changes := map[string]any{}
	if u.Status != "" {
		changes["status"] = u.Status
	}
	if u.PayerID != "" {
		changes["payer_id"] = u.PayerID
	}
	if u.SaleID != "" {
		changes["sale_id"] = u.SaleID
	}
	if u.RefundID != "" {
		changes["refund_id"] = u.RefundID
	}
	if u.RefundedAt != nil {
		changes["refunded_at"] = *u.RefundedAt
	}
	if len(changes) == 0 {
		return nil
	}

	res := l.DB.WithContext(ctx).Model(&models.PayPalPaymentTransaction{}).
		Where("payment_id = ?", paymentID).
		Updates(changes)
	if res.Error != nil {
		return persistence("update paypal transaction", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: paypal payment %s", models.ErrNotFound, paymentID)
	}
	return nil
}

func (l *Ledger) GetPayPalTransaction(ctx context.Context, paymentID string) (*models.PayPalPaymentTransaction, error) {
	var row models.PayPalPaymentTransaction
	err := l.DB.WithContext(ctx).Where("payment_id = ?", paymentID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: paypal payment %s", models.ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, persistence("get paypal transaction", err)
	}
	return &row, nil
}
