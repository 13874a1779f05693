package payments

import (
	"context"
	"strconv"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/a2n2k3p4/basket-payments/fees"
)

// StripeProvider opens Stripe Checkout sessions. Payment ids are session ids;
// refunds take a payment intent id.
type StripeProvider struct {
	api        *client.API
	successURL string
	cancelURL  string
}

func NewStripeProvider(secretKey, successURL, cancelURL string) *StripeProvider {
	return &StripeProvider{
		api:        client.New(secretKey, nil),
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (s *StripeProvider) Name() string { return ProviderStripe }

func (s *StripeProvider) CreatePayment(ctx context.Context, spec PaymentSpec) (*Handle, error) {
	basketID := strconv.FormatUint(uint64(spec.BasketID), 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(basketID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(spec.Currency),
				UnitAmount: stripe.Int64(fees.ToMinor(spec.Amount, spec.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(spec.Description),
				},
			},
		}},
	}
	if spec.Email != nil && *spec.Email != "" {
		params.CustomerEmail = stripe.String(*spec.Email)
	}
	params.Context = ctx
	params.AddMetadata("basket_id", basketID)
	params.AddMetadata("payment_basket_id", strconv.FormatUint(uint64(spec.PaymentBasketID), 10))
	if spec.IdempotencyKey != "" {
		params.SetIdempotencyKey(spec.IdempotencyKey)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &Handle{ID: sess.ID, URL: sess.URL, Status: string(sess.Status)}, nil
}

func (s *StripeProvider) GetPayment(ctx context.Context, id string) (*Status, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, err
	}
	currency := string(sess.Currency)
	return &Status{
		ID:         sess.ID,
		State:      string(sess.Status),
		Cancelable: sess.Status == stripe.CheckoutSessionStatusOpen,
		Amount:     fees.FromMinor(sess.AmountTotal, currency),
		Currency:   currency,
	}, nil
}

// CancelPayment expires an open checkout session.
func (s *StripeProvider) CancelPayment(ctx context.Context, id string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	_, err := s.api.CheckoutSessions.Expire(id, params)
	return err
}

func (s *StripeProvider) Refund(ctx context.Context, spec RefundSpec) (*RefundResult, error) {
	params := refundParams(spec)
	params.Context = ctx

	r, err := s.api.Refunds.New(params)
	if err != nil {
		return nil, err
	}
	return &RefundResult{
		ID:     r.ID,
		Status: string(r.Status),
		Amount: fees.FromMinor(r.Amount, string(r.Currency)),
	}, nil
}

// refundParams refunds the whole intent unless a positive amount is given.
func refundParams(spec RefundSpec) *stripe.RefundParams {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(spec.PaymentID)}
	if spec.Amount.IsPositive() {
		params.Amount = stripe.Int64(fees.ToMinor(spec.Amount, spec.Currency))
	}
	if spec.Reason != "" {
		params.Reason = stripe.String(spec.Reason)
	}
	return params
}
