// Package webhook verifies Stripe webhook deliveries and applies them to the ledger.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v74"
	stripewebhook "github.com/stripe/stripe-go/v74/webhook"

	"github.com/a2n2k3p4/basket-payments/fees"
	"github.com/a2n2k3p4/basket-payments/ledger"
	"github.com/a2n2k3p4/basket-payments/models"
	"github.com/a2n2k3p4/basket-payments/notify"
)

const (
	DonationMetadataKey   = "TransactionType"
	DonationMetadataValue = "Donation"
)

type Options struct {
	Secret    string
	Tolerance time.Duration
	// Deduplicate claims each event id before applying it, so a redelivered
	// event is acknowledged without writing a second row.
	Deduplicate bool
	Notifier    notify.Notifier
}

type Processor struct {
	ledger   *ledger.Ledger
	fees     *fees.Calculator
	secret   string
	tol      time.Duration
	dedupe   bool
	notifier notify.Notifier
}

func NewProcessor(l *ledger.Ledger, calc *fees.Calculator, opts Options) *Processor {
	if opts.Tolerance <= 0 {
		opts.Tolerance = stripewebhook.DefaultTolerance
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	return &Processor{
		ledger:   l,
		fees:     calc,
		secret:   opts.Secret,
		tol:      opts.Tolerance,
		dedupe:   opts.Deduplicate,
		notifier: opts.Notifier,
	}
}

// Result describes what a verified event did to the ledger.
type Result struct {
	EventID   string
	Kind      EventKind
	Recorded  bool
	Duplicate bool
}

// Process verifies the payload signature and applies the event. Verification
// and decoding failures wrap models.ErrVerificationFailed or
// models.ErrMalformedPayload and never touch the ledger.
func (p *Processor) Process(ctx context.Context, payload []byte, signature, clientIP string) (*Result, error) {
	ev, err := p.Verify(payload, signature)
	if err != nil {
		return nil, err
	}
	return p.Apply(ctx, ev, clientIP)
}

func (p *Processor) Verify(payload []byte, signature string) (stripe.Event, error) {
	ev, err := stripewebhook.ConstructEventWithOptions(payload, signature, p.secret, stripewebhook.ConstructEventOptions{
		Tolerance:                p.tol,
		IgnoreAPIVersionMismatch: true,
	})
	if err == nil {
		if ev.ID == "" || ev.Data == nil {
			return stripe.Event{}, fmt.Errorf("%w: event without id or data", models.ErrMalformedPayload)
		}
		return ev, nil
	}

	switch {
	case errors.Is(err, stripewebhook.ErrNotSigned),
		errors.Is(err, stripewebhook.ErrInvalidHeader),
		errors.Is(err, stripewebhook.ErrNoValidSignature),
		errors.Is(err, stripewebhook.ErrTooOld):
		return stripe.Event{}, fmt.Errorf("%w: %w", models.ErrVerificationFailed, err)
	default:
		return stripe.Event{}, fmt.Errorf("%w: %w", models.ErrMalformedPayload, err)
	}
}

// pending is the single ledger write a verified event resolves to.
type pending struct {
	tx       *ledger.StripeTransactionInput
	donation *ledger.StripeDonationInput
}

// Apply dispatches an already verified event. Each event commits at most one
// row in one unit of work.
func (p *Processor) Apply(ctx context.Context, ev stripe.Event, clientIP string) (*Result, error) {
	kind := KindOf(string(ev.Type))
	res := &Result{EventID: ev.ID, Kind: kind}

	var (
		w   pending
		err error
	)
	switch kind {
	case EventCheckoutSessionCompleted:
		w, err = checkoutCompleted(ev, clientIP)
	case EventPaymentIntentFailed:
		w, err = paymentFailed(ev)
	case EventPaymentIntentSucceeded:
		w, err = p.paymentSucceeded(ctx, ev)
	case EventChargeRefunded:
		w, err = chargeRefunded(ev)
	case EventUnknown:
		log.Printf("webhook: ignored event id=%s type=%s", ev.ID, ev.Type)
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	if w.tx == nil && w.donation == nil {
		return res, nil
	}

	var (
		tx       *models.StripeTransaction
		donation *models.StripeDonation
	)
	err = p.ledger.InTx(ctx, func(l *ledger.Ledger) error {
		if p.dedupe {
			if err := l.ClaimEvent(ctx, ev.ID, string(ev.Type)); err != nil {
				return err
			}
		}
		var err error
		if w.tx != nil {
			tx, err = l.RecordStripeTransaction(ctx, *w.tx)
		} else {
			donation, err = l.RecordStripeDonation(ctx, *w.donation)
		}
		return err
	})
	if errors.Is(err, models.ErrAlreadyExists) {
		log.Printf("webhook: duplicate event id=%s type=%s", ev.ID, ev.Type)
		res.Duplicate = true
		return res, nil
	}
	if err != nil {
		log.Printf("webhook: persist failed event=%s type=%s err=%v", ev.ID, ev.Type, err)
		return nil, err
	}

	res.Recorded = true
	if tx != nil {
		log.Printf("webhook: recorded event=%s session=%s intent=%s status=%s", ev.ID, tx.SessionID, tx.PaymentIntentID, tx.Status)
		p.notifier.TransactionRecorded(ctx, *tx)
	}
	if donation != nil {
		log.Printf("webhook: recorded donation event=%s intent=%s amount=%s", ev.ID, donation.PaymentIntentID, donation.Amount)
		p.notifier.DonationRecorded(ctx, *donation)
	}
	return res, nil
}

func checkoutCompleted(ev stripe.Event, clientIP string) (pending, error) {
	var sess stripe.CheckoutSession
	if err := decode(ev, &sess); err != nil {
		return pending{}, err
	}

	status := models.StripeStatusUnknown
	if sess.PaymentStatus != "" {
		status = models.StripeStatus(sess.PaymentStatus)
	}
	in := &ledger.StripeTransactionInput{
		EventID:   ev.ID,
		SessionID: sess.ID,
		Status:    status,
		Amount:    sess.AmountTotal,
		Currency:  string(sess.Currency),
		ClientIP:  clientIP,
	}
	if sess.PaymentIntent != nil {
		in.PaymentIntentID = sess.PaymentIntent.ID
	}
	if sess.Customer != nil {
		in.CustomerID = sess.Customer.ID
	}
	in.PaymentMethod = firstMethod(sess.PaymentMethodTypes)
	return pending{tx: in}, nil
}

func paymentFailed(ev stripe.Event) (pending, error) {
	var pi stripe.PaymentIntent
	if err := decode(ev, &pi); err != nil {
		return pending{}, err
	}

	in := &ledger.StripeTransactionInput{
		EventID:         ev.ID,
		PaymentIntentID: pi.ID,
		Status:          models.StripeStatusFailed,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
		PaymentMethod:   firstMethod(pi.PaymentMethodTypes),
	}
	if pi.Customer != nil {
		in.CustomerID = pi.Customer.ID
	}
	if pi.LastPaymentError != nil {
		in.StatusReason = pi.LastPaymentError.Msg
	}
	return pending{tx: in}, nil
}

// paymentSucceeded only records donations; other successful intents are
// settled through checkout.session.completed.
func (p *Processor) paymentSucceeded(ctx context.Context, ev stripe.Event) (pending, error) {
	var pi stripe.PaymentIntent
	if err := decode(ev, &pi); err != nil {
		return pending{}, err
	}
	if pi.Metadata[DonationMetadataKey] != DonationMetadataValue {
		log.Printf("webhook: payment succeeded without donation tag event=%s intent=%s", ev.ID, pi.ID)
		return pending{}, nil
	}

	currency := string(pi.Currency)
	amount := fees.FromMinor(pi.Amount, currency)
	in := &ledger.StripeDonationInput{
		EventID:         ev.ID,
		PaymentIntentID: pi.ID,
		Amount:          amount,
		Currency:        currency,
		PaymentMethod:   firstMethod(pi.PaymentMethodTypes),
		Meta:            pi.Metadata,
	}
	if pi.Customer != nil {
		in.CustomerID = pi.Customer.ID
	}

	if p.fees != nil && amount.IsPositive() {
		method := in.PaymentMethod
		if method == "" {
			method = fees.MethodCard
		}
		fee, err := p.fees.CommissionFor(ctx, method, amount, currency)
		switch {
		case err == nil:
			in.Fee = decimal.NewNullDecimal(fee)
		case errors.Is(err, models.ErrUnsupportedCurrency):
			log.Printf("webhook: no fee rate for donation intent=%s currency=%s", pi.ID, currency)
		default:
			return pending{}, err
		}
	}
	return pending{donation: in}, nil
}

func chargeRefunded(ev stripe.Event) (pending, error) {
	var ch stripe.Charge
	if err := decode(ev, &ch); err != nil {
		return pending{}, err
	}

	in := &ledger.StripeTransactionInput{
		EventID:       ev.ID,
		ChargeID:      ch.ID,
		Status:        models.StripeStatusRefunded,
		Amount:        ch.AmountRefunded,
		Currency:      string(ch.Currency),
		PaymentMethod: ch.PaymentMethod,
	}
	if ch.PaymentIntent != nil {
		in.PaymentIntentID = ch.PaymentIntent.ID
	}
	if ch.Customer != nil {
		in.CustomerID = ch.Customer.ID
	}
	if ch.Refunds != nil && len(ch.Refunds.Data) > 0 && ch.Refunds.Data[0].Reason != "" {
		in.StatusReason = string(ch.Refunds.Data[0].Reason)
	}
	return pending{tx: in}, nil
}

func decode(ev stripe.Event, v any) error {
	if err := json.Unmarshal(ev.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: event %s data: %w", models.ErrMalformedPayload, ev.ID, err)
	}
	return nil
}

func firstMethod(types []string) string {
	if len(types) == 0 {
		return ""
	}
	return types[0]
}
