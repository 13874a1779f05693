package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/a2n2k3p4/basket-payments/models"
)

// StripeTransactionInput is an observed outcome not yet stored.
type StripeTransactionInput struct {
	EventID         string
	SessionID       string
	PaymentIntentID string
	ChargeID        string
	Status          models.StripeStatus
	Amount          int64
	Currency        string
	CustomerID      string
	PaymentMethod   string
	ClientIP        string
	StatusReason    string
}

type StripeDonationInput struct {
	EventID         string
	PaymentIntentID string
	Amount          decimal.Decimal
	Fee             decimal.NullDecimal
	Currency        string
	CustomerID      string
	PaymentMethod   string
	Meta            map[string]string
}

// RecordStripeTransaction appends a row; rows are never updated in place.
func (l *Ledger) RecordStripeTransaction(ctx context.Context, in StripeTransactionInput) (*models.StripeTransaction, error) {
	row := &models.StripeTransaction{
		EventID:         in.EventID,
		SessionID:       in.SessionID,
		PaymentIntentID: in.PaymentIntentID,
		ChargeID:        in.ChargeID,
		Status:          in.Status,
		Amount:          in.Amount,
		Currency:        in.Currency,
		CustomerID:      in.CustomerID,
		PaymentMethod:   in.PaymentMethod,
		ClientIP:        in.ClientIP,
		StatusReason:    in.StatusReason,
	}
	if err := l.DB.WithContext(ctx).Create(row).Error; err != nil {
		return nil, persistence("record stripe transaction", err)
	}
	return row, nil
}

func (l *Ledger) RecordStripeDonation(ctx context.Context, in StripeDonationInput) (*models.StripeDonation, error) {
	row := &models.StripeDonation{
		EventID:         in.EventID,
		PaymentIntentID: in.PaymentIntentID,
		Amount:          in.Amount,
		Fee:             in.Fee,
		Currency:        in.Currency,
		CustomerID:      in.CustomerID,
		PaymentMethod:   in.PaymentMethod,
		IsSuccessful:    true,
	}
	if len(in.Meta) > 0 {
		meta := make(datatypes.JSONMap, len(in.Meta))
		for k, v := range in.Meta {
			meta[k] = v
		}
		row.Meta = meta
	}
	if err := l.DB.WithContext(ctx).Create(row).Error; err != nil {
		return nil, persistence("record stripe donation", err)
	}
	return row, nil
}

// TxFilter narrows ListStripeTransactions. Empty fields are ignored.
type TxFilter struct {
	Status          string
	Currency        string
	SessionID       string
	PaymentIntentID string
	CustomerID      string
}

func (f TxFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Currency != "" {
		db = db.Where("currency = ?", f.Currency)
	}
	if f.SessionID != "" {
		db = db.Where("session_id = ?", f.SessionID)
	}
	if f.PaymentIntentID != "" {
		db = db.Where("payment_intent_id = ?", f.PaymentIntentID)
	}
	if f.CustomerID != "" {
		db = db.Where("customer_id = ?", f.CustomerID)
	}
	return db
}

// ListStripeTransactions returns a page of rows, newest first, and the total count.
func (l *Ledger) ListStripeTransactions(ctx context.Context, f TxFilter, limit, offset int) ([]models.StripeTransaction, int64, error) {
	var total int64
	if err := l.DB.WithContext(ctx).Model(&models.StripeTransaction{}).
		Scopes(f.scope).
		Count(&total).Error; err != nil {
		return nil, 0, persistence("count stripe transactions", err)
	}

	var rows []models.StripeTransaction
	if err := l.DB.WithContext(ctx).Model(&models.StripeTransaction{}).
		Scopes(f.scope).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, persistence("list stripe transactions", err)
	}
	return rows, total, nil
}

// GetStripeTransaction resolves a numeric id as the primary key, anything else
// as a session or payment intent id (latest row wins).
func (l *Ledger) GetStripeTransaction(ctx context.Context, id string) (*models.StripeTransaction, error) {
	var row models.StripeTransaction
	db := l.DB.WithContext(ctx)

	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		err = db.First(&row, uint(n)).Error
		if err == nil {
			return &row, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, persistence("get stripe transaction", err)
		}
	}

	err := db.Where("session_id = ? OR payment_intent_id = ?", id, id).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, persistence("get stripe transaction", err)
	}
	return &row, nil
}
