package fees

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/a2n2k3p4/basket-payments/models"
)

const MethodCard = "card"

// Rate is a percentage-plus-fixed commission. Fixed is in the currency's major unit.
type Rate struct {
	Percentage decimal.Decimal
	Fixed      decimal.Decimal
}

// RateSource looks up the commission rate for a payment method and currency.
// Implementations return models.ErrUnsupportedCurrency on a miss.
type RateSource interface {
	Rate(ctx context.Context, method, currency string) (Rate, error)
}

type Calculator struct {
	rates RateSource
}

func NewCalculator(rates RateSource) *Calculator {
	return &Calculator{rates: rates}
}

// Commission returns amount*percentage + fixed for card payments.
func (c *Calculator) Commission(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	return c.CommissionFor(ctx, MethodCard, amount, currency)
}

// CommissionFor is Commission for an explicit payment method. The result is not
// rounded; use Quote for a value at the currency's precision.
func (c *Calculator) CommissionFor(ctx context.Context, method string, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", amount)
	}
	rate, err := c.rates.Rate(ctx, normalize(method), normalize(currency))
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate.Percentage).Add(rate.Fixed), nil
}

// Quote is CommissionFor rounded half-up to the currency's minor unit.
func (c *Calculator) Quote(ctx context.Context, method string, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	fee, err := c.CommissionFor(ctx, method, amount, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return fee.Round(Exponent(currency)), nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func unsupported(method, currency string) error {
	return fmt.Errorf("%w: %s (method %s)", models.ErrUnsupportedCurrency, currency, method)
}
