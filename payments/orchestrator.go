// Package payments holds the synchronous payment operations and the provider
// adapters they call.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/a2n2k3p4/basket-payments/fees"
	"github.com/a2n2k3p4/basket-payments/ledger"
	"github.com/a2n2k3p4/basket-payments/models"
	"github.com/a2n2k3p4/basket-payments/pricing"
)

const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

var (
	ErrUnknownProvider     = errors.New("unknown payment provider")
	ErrEmptyBasket         = errors.New("basket total must be positive")
	ErrRefundNeedsCurrency = errors.New("partial refund requires a currency")
)

// idempotencyNamespace scopes provider idempotency keys derived from basket ids.
var idempotencyNamespace = uuid.MustParse("5b0e8a3c-2f7d-4c55-9c61-0d3b8f8f4a11")

type Orchestrator struct {
	ledger          *ledger.Ledger
	pricing         *pricing.Service
	fees            *fees.Calculator
	providers       map[string]Provider
	defaultCurrency string
}

func NewOrchestrator(l *ledger.Ledger, p *pricing.Service, calc *fees.Calculator, defaultCurrency string, providers ...Provider) *Orchestrator {
	o := &Orchestrator{
		ledger:          l,
		pricing:         p,
		fees:            calc,
		providers:       make(map[string]Provider, len(providers)),
		defaultCurrency: strings.ToLower(defaultCurrency),
	}
	for _, pr := range providers {
		o.providers[pr.Name()] = pr
	}
	return o
}

func (o *Orchestrator) provider(name string) (Provider, error) {
	if name == "" {
		name = ProviderStripe
	}
	p, ok := o.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// CreatePaymentBasket opens the payment row for a basket with its current total.
func (o *Orchestrator) CreatePaymentBasket(ctx context.Context, basketID uint, req models.CreatePaymentBasketRequest) (*models.PaymentBasket, error) {
	total, err := o.pricing.Total(ctx, basketID)
	if err != nil {
		return nil, err
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = o.defaultCurrency
	}
	return o.ledger.CreatePaymentBasket(ctx, ledger.PaymentBasketInput{
		BasketID: basketID,
		Amount:   total,
		Currency: currency,
		Email:    req.Email,
		Metadata: req.Metadata,
	})
}

// CreatePayment prices the basket and opens a provider payment for it. Nothing
// is written to the ledger unless the provider call succeeds.
func (o *Orchestrator) CreatePayment(ctx context.Context, basketID uint, providerName string) (*Handle, error) {
	prov, err := o.provider(providerName)
	if err != nil {
		return nil, err
	}

	pb, err := o.ledger.FindByBasketID(ctx, basketID)
	if err != nil {
		return nil, err
	}
	if pb == nil {
		return nil, fmt.Errorf("%w: payment for basket %d", models.ErrNotFound, basketID)
	}
	if pb.HasProviderPayment() {
		return nil, fmt.Errorf("%w: basket %d already has payment %s", models.ErrAlreadyExists, basketID, pb.Source)
	}

	total, err := o.pricing.Total(ctx, basketID)
	if err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: basket %d", ErrEmptyBasket, basketID)
	}
	currency := pb.Currency
	if currency == "" {
		currency = o.defaultCurrency
	}
	commission, err := o.fees.Commission(ctx, total, currency)
	if err != nil {
		return nil, err
	}

	handle, err := prov.CreatePayment(ctx, PaymentSpec{
		BasketID:        basketID,
		PaymentBasketID: pb.ID,
		Amount:          total,
		Currency:        currency,
		Email:           pb.Email,
		Description:     fmt.Sprintf("Basket #%d", basketID),
		IdempotencyKey:  idempotencyKey(pb.ID, pb.Attempt, total, currency),
	})
	if err != nil {
		log.Printf("payments: create failed provider=%s basket_id=%d payment_basket_id=%d err=%v", prov.Name(), basketID, pb.ID, err)
		return nil, fmt.Errorf("%w: %s create payment: %w", models.ErrProvider, prov.Name(), err)
	}
	handle.Provider = prov.Name()
	handle.Amount = total
	handle.Currency = currency
	handle.Commission = commission

	err = o.ledger.InTx(ctx, func(l *ledger.Ledger) error {
		if err := l.AttachSource(ctx, pb.ID, prov.Name(), handle.ID, currency, total); err != nil {
			return err
		}
		if prov.Name() != ProviderPayPal {
			return nil
		}
		_, err := l.RecordPayPalTransaction(ctx, ledger.PayPalTransactionInput{
			PaymentID:       handle.ID,
			Status:          handle.Status,
			Amount:          total,
			Currency:        currency,
			Description:     fmt.Sprintf("Basket #%d", basketID),
			PaymentBasketID: &pb.ID,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, models.ErrAlreadyExists) {
			log.Printf("payments: attach failed provider=%s payment_id=%s basket_id=%d err=%v", prov.Name(), handle.ID, basketID, err)
		}
		o.abandon(ctx, prov, pb.ID, handle.ID)
		return nil, err
	}

	log.Printf("payments: created provider=%s payment_id=%s basket_id=%d amount=%s currency=%s", prov.Name(), handle.ID, basketID, total, currency)
	return handle, nil
}

// abandon cancels a provider payment that could not be attached. A concurrent
// create replaying the same idempotency key gets the same payment back, so a
// payment that is now the row's source belongs to the winner and stays open.
func (o *Orchestrator) abandon(ctx context.Context, prov Provider, paymentBasketID uint, paymentID string) {
	current, err := o.ledger.GetPaymentBasket(ctx, paymentBasketID)
	if err == nil && current.Source == paymentID {
		return
	}

	if err := prov.CancelPayment(ctx, paymentID); err != nil {
		log.Printf("payments: cancel orphaned payment failed provider=%s payment_id=%s payment_basket_id=%d err=%v", prov.Name(), paymentID, paymentBasketID, err)
	}
	if err := o.ledger.NextAttempt(ctx, paymentBasketID); err != nil {
		log.Printf("payments: idempotency key not rotated payment_basket_id=%d err=%v", paymentBasketID, err)
	}
}

func (o *Orchestrator) GetStatus(ctx context.Context, providerName, paymentID string) (*Status, error) {
	prov, err := o.provider(providerName)
	if err != nil {
		return nil, err
	}
	st, err := prov.GetPayment(ctx, paymentID)
	if err != nil {
		log.Printf("payments: get failed provider=%s payment_id=%s err=%v", prov.Name(), paymentID, err)
		return nil, fmt.Errorf("%w: %s get payment: %w", models.ErrProvider, prov.Name(), err)
	}
	st.Provider = prov.Name()
	return st, nil
}

// CancelPayment cancels a payment the provider still reports as cancelable.
// It returns false, nil when the payment is past that state.
func (o *Orchestrator) CancelPayment(ctx context.Context, providerName, paymentID string) (bool, error) {
	st, err := o.GetStatus(ctx, providerName, paymentID)
	if err != nil {
		return false, err
	}
	if !st.Cancelable {
		return false, nil
	}

	prov, _ := o.provider(providerName)
	if err := prov.CancelPayment(ctx, paymentID); err != nil {
		log.Printf("payments: cancel failed provider=%s payment_id=%s err=%v", prov.Name(), paymentID, err)
		return false, fmt.Errorf("%w: %s cancel payment: %w", models.ErrProvider, prov.Name(), err)
	}

	if prov.Name() == ProviderPayPal {
		err := o.ledger.UpdatePayPalTransaction(ctx, paymentID, ledger.PayPalUpdate{Status: "CANCELED"})
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return true, err
		}
	}
	// Release the basket so a new payment can be created for it.
	if err := o.ledger.DeleteBySource(ctx, paymentID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return true, err
	}
	return true, nil
}

// Refund delegates to the provider. Provider errors are returned unmodified.
func (o *Orchestrator) Refund(ctx context.Context, providerName string, spec RefundSpec) (*RefundResult, error) {
	prov, err := o.provider(providerName)
	if err != nil {
		return nil, err
	}

	var paypalRow *models.PayPalPaymentTransaction
	if prov.Name() == ProviderPayPal && spec.CaptureID == "" {
		row, err := o.ledger.GetPayPalTransaction(ctx, spec.PaymentID)
		switch {
		case err == nil:
			paypalRow = row
			spec.CaptureID = row.SaleID
			if spec.Currency == "" {
				spec.Currency = row.Currency
			}
		case !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
	}

	// Minor units depend on the currency.
	if spec.Amount.IsPositive() && spec.Currency == "" {
		return nil, fmt.Errorf("%w: payment %s", ErrRefundNeedsCurrency, spec.PaymentID)
	}

	res, err := prov.Refund(ctx, spec)
	if err != nil {
		return nil, err
	}

	if paypalRow != nil {
		now := time.Now()
		if err := o.ledger.UpdatePayPalTransaction(ctx, paypalRow.PaymentID, ledger.PayPalUpdate{
			Status:     "REFUNDED",
			RefundID:   res.ID,
			RefundedAt: &now,
		}); err != nil {
			log.Printf("payments: refund recorded at provider but not locally payment_id=%s refund_id=%s err=%v", paypalRow.PaymentID, res.ID, err)
		}
	}
	return res, nil
}

// CapturePayPal captures an approved PayPal order and records payer and capture ids.
func (o *Orchestrator) CapturePayPal(ctx context.Context, orderID string) (*Capture, error) {
	prov, err := o.provider(ProviderPayPal)
	if err != nil {
		return nil, err
	}
	capturer, ok := prov.(Capturer)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not capture", ErrUnknownProvider, prov.Name())
	}

	c, err := capturer.Capture(ctx, orderID)
	if err != nil {
		log.Printf("payments: capture failed provider=%s payment_id=%s err=%v", prov.Name(), orderID, err)
		return nil, fmt.Errorf("%w: %s capture: %w", models.ErrProvider, prov.Name(), err)
	}
	if err := o.ledger.UpdatePayPalTransaction(ctx, orderID, ledger.PayPalUpdate{
		Status:  c.Status,
		PayerID: c.PayerID,
		SaleID:  c.CaptureID,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdatePrice recomputes the basket total and stores it on the payment row.
func (o *Orchestrator) UpdatePrice(ctx context.Context, paymentBasketID uint) (decimal.Decimal, error) {
	pb, err := o.ledger.GetPaymentBasket(ctx, paymentBasketID)
	if err != nil {
		return decimal.Zero, err
	}
	total, err := o.pricing.Total(ctx, pb.BasketID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := o.ledger.UpdateAmount(ctx, pb.ID, total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// Quote returns the commission for an amount, rounded to the currency's precision.
func (o *Orchestrator) Quote(ctx context.Context, method string, amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	if method == "" {
		method = fees.MethodCard
	}
	if currency == "" {
		currency = o.defaultCurrency
	}
	return o.fees.Quote(ctx, method, amount, currency)
}

func idempotencyKey(paymentBasketID, attempt uint, amount decimal.Decimal, currency string) string {
	name := fmt.Sprintf("payment-basket:%d:%d:%s:%s", paymentBasketID, attempt, amount.StringFixed(fees.Exponent(currency)), currency)
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}
