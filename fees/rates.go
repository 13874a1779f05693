package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/a2n2k3p4/basket-payments/models"
)

// StaticRates is a read-only currency -> rate table. The method is ignored.
type StaticRates map[string]Rate

func (s StaticRates) Rate(_ context.Context, method, currency string) (Rate, error) {
	r, ok := s[normalize(currency)]
	if !ok {
		return Rate{}, unsupported(method, currency)
	}
	return r, nil
}

// DefaultRates is the card rate table loaded at startup.
func DefaultRates() StaticRates {
	return StaticRates{
		"usd": {Percentage: decimal.RequireFromString("0.029"), Fixed: decimal.RequireFromString("0.30")},
		"eur": {Percentage: decimal.RequireFromString("0.025"), Fixed: decimal.RequireFromString("0.25")},
		"gbp": {Percentage: decimal.RequireFromString("0.025"), Fixed: decimal.RequireFromString("0.20")},
		"aud": {Percentage: decimal.RequireFromString("0.0175"), Fixed: decimal.RequireFromString("0.30")},
		"cad": {Percentage: decimal.RequireFromString("0.029"), Fixed: decimal.RequireFromString("0.30")},
		"jpy": {Percentage: decimal.RequireFromString("0.036"), Fixed: decimal.Zero},
		"rub": {Percentage: decimal.RequireFromString("0.035"), Fixed: decimal.RequireFromString("15")},
		"byn": {Percentage: decimal.RequireFromString("0.03"), Fixed: decimal.RequireFromString("0.50")},
	}
}

// DBRates reads the payment_fees table.
type DBRates struct {
	DB *gorm.DB
}

func (d DBRates) Rate(ctx context.Context, method, currency string) (Rate, error) {
	var fee models.PaymentFee
	err := d.DB.WithContext(ctx).
		Where("payment_method = ? AND currency = ?", normalize(method), normalize(currency)).
		First(&fee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Rate{}, unsupported(method, currency)
	}
	if err != nil {
		return Rate{}, fmt.Errorf("%w: load fee %s/%s: %w", models.ErrPersistence, method, currency, err)
	}
	return Rate{Percentage: fee.Percentage, Fixed: fee.FixedFee}, nil
}

// Seed upserts a static table into payment_fees for the given method.
func Seed(ctx context.Context, db *gorm.DB, method string, rates StaticRates) error {
	now := time.Now()
	rows := make([]models.PaymentFee, 0, len(rates))
	for currency, r := range rates {
		rows = append(rows, models.PaymentFee{
			PaymentMethod: normalize(method),
			Currency:      currency,
			Percentage:    r.Percentage,
			FixedFee:      r.Fixed,
			UpdatedAt:     now,
		})
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_method"}, {Name: "currency"}},
		DoUpdates: clause.AssignmentColumns([]string{"percentage", "fixed_fee", "updated_at"}),
	}).Create(&rows).Error
}
