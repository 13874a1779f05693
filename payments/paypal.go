package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/a2n2k3p4/basket-payments/fees"
)

const paypalStatusCreated = "CREATED"

// PayPalProvider uses the Orders v2 API. Payment ids are order ids.
type PayPalProvider struct {
	client    *paypal.Client
	returnURL string
	cancelURL string
}

func NewPayPalProvider(clientID, secret, mode, returnURL, cancelURL string) (*PayPalProvider, error) {
	base := paypal.APIBaseSandBox
	if mode == "live" {
		base = paypal.APIBaseLive
	}
	c, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	return &PayPalProvider{client: c, returnURL: returnURL, cancelURL: cancelURL}, nil
}

func (p *PayPalProvider) Name() string { return ProviderPayPal }

func (p *PayPalProvider) CreatePayment(ctx context.Context, spec PaymentSpec) (*Handle, error) {
	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, []paypal.PurchaseUnitRequest{{
		ReferenceID: fmt.Sprintf("basket-%d", spec.BasketID),
		Description: spec.Description,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: strings.ToUpper(spec.Currency),
			Value:    spec.Amount.StringFixed(fees.Exponent(spec.Currency)),
		},
	}}, nil, &paypal.ApplicationContext{
		ReturnURL: p.returnURL,
		CancelURL: p.cancelURL,
	})
	if err != nil {
		return nil, err
	}

	h := &Handle{ID: order.ID, Status: order.Status}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			h.URL = l.Href
			break
		}
	}
	return h, nil
}

func (p *PayPalProvider) GetPayment(ctx context.Context, id string) (*Status, error) {
	order, err := p.client.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &Status{
		ID:         order.ID,
		State:      order.Status,
		Cancelable: order.Status == paypalStatusCreated,
	}
	if len(order.PurchaseUnits) > 0 && order.PurchaseUnits[0].Amount != nil {
		amt := order.PurchaseUnits[0].Amount
		st.Currency = strings.ToLower(amt.Currency)
		if v, err := decimal.NewFromString(amt.Value); err == nil {
			st.Amount = v
		}
	}
	return st, nil
}

// CancelPayment is a no-op at PayPal: an order that was never approved expires
// on its own. Callers mark the local row canceled.
func (p *PayPalProvider) CancelPayment(context.Context, string) error {
	return nil
}

func (p *PayPalProvider) Capture(ctx context.Context, orderID string) (*Capture, error) {
	resp, err := p.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, err
	}
	c := &Capture{OrderID: resp.ID, Status: resp.Status}
	if resp.Payer != nil {
		c.PayerID = resp.Payer.PayerID
	}
	for _, pu := range resp.PurchaseUnits {
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			c.CaptureID = pu.Payments.Captures[0].ID
			break
		}
	}
	return c, nil
}

func (p *PayPalProvider) Refund(ctx context.Context, spec RefundSpec) (*RefundResult, error) {
	captureID := spec.CaptureID
	if captureID == "" {
		captureID = spec.PaymentID
	}
	req := paypal.RefundCaptureRequest{NoteToPayer: spec.Reason}
	if spec.Amount.IsPositive() {
		req.Amount = &paypal.Money{
			Currency: strings.ToUpper(spec.Currency),
			Value:    spec.Amount.StringFixed(fees.Exponent(spec.Currency)),
		}
	}

	resp, err := p.client.RefundCapture(ctx, captureID, req)
	if err != nil {
		return nil, err
	}
	return &RefundResult{ID: resp.ID, Status: resp.Status, Amount: spec.Amount}, nil
}
