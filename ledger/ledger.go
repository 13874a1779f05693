// Package ledger is the durable record of payment attempts and observed
// provider outcomes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/a2n2k3p4/basket-payments/models"
)

type Ledger struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{DB: db}
}

// InTx runs fn with a ledger bound to a single database transaction.
func (l *Ledger) InTx(ctx context.Context, fn func(tx *Ledger) error) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Ledger{DB: tx})
	})
}

// PaymentBasketInput describes a payment basket that has not been stored yet.
type PaymentBasketInput struct {
	BasketID uint
	Amount   decimal.Decimal
	Currency string
	Email    *string
	Metadata map[string]any
}

// CreatePaymentBasket inserts the payment row for a basket. A second row for the
// same basket fails with models.ErrAlreadyExists, relying on the unique index.
func (l *Ledger) CreatePaymentBasket(ctx context.Context, in PaymentBasketInput) (*models.PaymentBasket, error) {
	pb := &models.PaymentBasket{
		BasketID: in.BasketID,
		Amount:   in.Amount,
		Currency: in.Currency,
		Email:    in.Email,
	}
	if in.Metadata != nil {
		pb.Metadata = datatypes.JSONMap(in.Metadata)
	}
	if err := l.DB.WithContext(ctx).Create(pb).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: payment for basket %d", models.ErrAlreadyExists, in.BasketID)
		}
		return nil, persistence("create payment basket", err)
	}
	return pb, nil
}

// FindByBasketID returns nil, nil when the basket has no payment row.
func (l *Ledger) FindByBasketID(ctx context.Context, basketID uint) (*models.PaymentBasket, error) {
	var pb models.PaymentBasket
	err := l.DB.WithContext(ctx).Where("basket_id = ?", basketID).First(&pb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("find payment basket", err)
	}
	return &pb, nil
}

func (l *Ledger) GetPaymentBasket(ctx context.Context, id uint) (*models.PaymentBasket, error) {
	var pb models.PaymentBasket
	err := l.DB.WithContext(ctx).First(&pb, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: payment basket %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, persistence("get payment basket", err)
	}
	return &pb, nil
}

func (l *Ledger) UpdateAmount(ctx context.Context, paymentBasketID uint, amount decimal.Decimal) error {
	res := l.DB.WithContext(ctx).Model(&models.PaymentBasket{}).
		Where("id = ?", paymentBasketID).
		Update("amount", amount)
	if res.Error != nil {
		return persistence("update amount", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payment basket %d", models.ErrNotFound, paymentBasketID)
	}
	return nil
}

// AttachSource stores the provider payment id and the amount charged. It only
// succeeds while the row has no source yet, so two racing creates cannot both
// attach a provider payment.
func (l *Ledger) AttachSource(ctx context.Context, paymentBasketID uint, provider, source, currency string, amount decimal.Decimal) error {
	res := l.DB.WithContext(ctx).Model(&models.PaymentBasket{}).
		Where("id = ? AND (source = '' OR source IS NULL)", paymentBasketID).
		Updates(map[string]any{
			"provider": provider,
			"source":   source,
			"currency": currency,
			"amount":   amount,
		})
	if res.Error != nil {
		return persistence("attach source", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := l.GetPaymentBasket(ctx, paymentBasketID); err != nil {
			return err
		}
		return fmt.Errorf("%w: payment basket %d already has a provider payment", models.ErrAlreadyExists, paymentBasketID)
	}
	return nil
}

// NextAttempt bumps the payment basket's attempt counter.
func (l *Ledger) NextAttempt(ctx context.Context, paymentBasketID uint) error {
	res := l.DB.WithContext(ctx).Model(&models.PaymentBasket{}).
		Where("id = ?", paymentBasketID).
		Update("attempt", gorm.Expr("attempt + 1"))
	if res.Error != nil {
		return persistence("next attempt", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payment basket %d", models.ErrNotFound, paymentBasketID)
	}
	return nil
}

func (l *Ledger) DeleteBySource(ctx context.Context, source string) error {
	if source == "" {
		return fmt.Errorf("%w: empty source", models.ErrNotFound)
	}
	return l.delete(ctx, "source = ?", source)
}

func (l *Ledger) DeleteByBasketID(ctx context.Context, basketID uint) error {
	return l.delete(ctx, "basket_id = ?", basketID)
}

func (l *Ledger) delete(ctx context.Context, query string, arg any) error {
	res := l.DB.WithContext(ctx).Where(query, arg).Delete(&models.PaymentBasket{})
	if res.Error != nil {
		return persistence("delete payment basket", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payment basket %v", models.ErrNotFound, arg)
	}
	return nil
}

// ClaimEvent records a provider event id. It returns models.ErrAlreadyExists when
// the event was claimed before.
func (l *Ledger) ClaimEvent(ctx context.Context, eventID, eventType string) error {
	ev := &models.StripeEvent{EventID: eventID, Type: eventType, ReceivedAt: time.Now()}
	if err := l.DB.WithContext(ctx).Create(ev).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: event %s", models.ErrAlreadyExists, eventID)
		}
		return persistence("claim event", err)
	}
	return nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrPersistence, op, err)
}
