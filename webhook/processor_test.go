package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/a2n2k3p4/basket-payments/dbtest"
	"github.com/a2n2k3p4/basket-payments/fees"
	"github.com/a2n2k3p4/basket-payments/ledger"
	"github.com/a2n2k3p4/basket-payments/models"
	"github.com/a2n2k3p4/basket-payments/notify"
)

const testSecret = "whsec_test_secret"

type fixture struct {
	db        *gorm.DB
	processor *Processor
	notes     *notify.Recorder
}

func newFixture(t *testing.T, dedupe bool) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	notes := &notify.Recorder{}
	p := NewProcessor(ledger.New(db), fees.NewCalculator(fees.DefaultRates()), Options{
		Secret:      testSecret,
		Tolerance:   300 * time.Second,
		Deduplicate: dedupe,
		Notifier:    notes,
	})
	return &fixture{db: db, processor: p, notes: notes}
}

func (f *fixture) rows(t *testing.T) (txs, donations, events int64) {
	t.Helper()
	return dbtest.Count(t, f.db, &models.StripeTransaction{}),
		dbtest.Count(t, f.db, &models.StripeDonation{}),
		dbtest.Count(t, f.db, &models.StripeEvent{})
}

func eventPayload(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"api_version": "2022-11-15",
		"created":     time.Now().Unix(),
		"type":        eventType,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return b
}

func sign(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", at.Unix())))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutSession() map[string]any {
	return map[string]any{
		"id":                   "cs_test_1",
		"object":               "checkout.session",
		"payment_status":       "paid",
		"amount_total":         5000,
		"currency":             "eur",
		"payment_intent":       "pi_1",
		"customer":             "cus_1",
		"payment_method_types": []string{"card"},
	}
}

func donationIntent(tagged bool) map[string]any {
	pi := map[string]any{
		"id":                   "pi_donation",
		"object":               "payment_intent",
		"amount":               2000,
		"currency":             "usd",
		"customer":             "cus_2",
		"payment_method_types": []string{"card"},
		"metadata":             map[string]string{},
	}
	if tagged {
		pi["metadata"] = map[string]string{"TransactionType": "Donation"}
	}
	return pi
}

func TestInvalidSignatureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	cases := map[string]map[string]any{
		"checkout.session.completed":    checkoutSession(),
		"payment_intent.succeeded":      donationIntent(true),
		"payment_intent.payment_failed": donationIntent(false),
		"charge.refunded":               {"id": "ch_1", "object": "charge", "amount_refunded": 100},
	}
	for eventType, object := range cases {
		payload := eventPayload(t, "evt_"+eventType, eventType, object)

		_, err := f.processor.Process(ctx, payload, sign(payload, "whsec_wrong", time.Now()), "1.2.3.4")
		assert.ErrorIs(t, err, models.ErrVerificationFailed, eventType)

		_, err = f.processor.Process(ctx, payload, "", "1.2.3.4")
		assert.ErrorIs(t, err, models.ErrVerificationFailed, eventType)
	}

	txs, donations, events := f.rows(t)
	assert.Zero(t, txs)
	assert.Zero(t, donations)
	assert.Zero(t, events)
	assert.Empty(t, f.notes.Transactions)
}

func TestStaleTimestampIsRejected(t *testing.T) {
	f := newFixture(t, true)
	payload := eventPayload(t, "evt_old", "checkout.session.completed", checkoutSession())

	_, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now().Add(-10*time.Minute)), "")
	assert.ErrorIs(t, err, models.ErrVerificationFailed)

	txs, _, _ := f.rows(t)
	assert.Zero(t, txs)
}

func TestMalformedBodyIsRejected(t *testing.T) {
	f := newFixture(t, true)
	payload := []byte("{not json")

	_, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	assert.ErrorIs(t, err, models.ErrMalformedPayload)
}

func TestCheckoutSessionCompleted(t *testing.T) {
	f := newFixture(t, true)
	payload := eventPayload(t, "evt_checkout", "checkout.session.completed", checkoutSession())

	res, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, res.Recorded)
	assert.Equal(t, EventCheckoutSessionCompleted, res.Kind)

	var rows []models.StripeTransaction
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, models.StripeStatusPaid, row.Status)
	assert.Equal(t, int64(5000), row.Amount)
	assert.Equal(t, "eur", row.Currency)
	assert.Equal(t, "cs_test_1", row.SessionID)
	assert.Equal(t, "pi_1", row.PaymentIntentID)
	assert.Equal(t, "cus_1", row.CustomerID)
	assert.Equal(t, "card", row.PaymentMethod)
	assert.Equal(t, "203.0.113.9", row.ClientIP)
	assert.Equal(t, "evt_checkout", row.EventID)

	require.Len(t, f.notes.Transactions, 1)
	assert.Equal(t, row.ID, f.notes.Transactions[0].ID)
}

func TestCheckoutSessionDefaults(t *testing.T) {
	f := newFixture(t, true)
	payload := eventPayload(t, "evt_bare", "checkout.session.completed", map[string]any{
		"id":     "cs_bare",
		"object": "checkout.session",
	})

	_, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	require.NoError(t, err)

	var row models.StripeTransaction
	require.NoError(t, f.db.First(&row).Error)
	assert.Equal(t, models.StripeStatusUnknown, row.Status)
	assert.Zero(t, row.Amount)
	assert.Empty(t, row.PaymentIntentID)
}

func TestPaymentIntentFailed(t *testing.T) {
	f := newFixture(t, true)
	payload := eventPayload(t, "evt_failed", "payment_intent.payment_failed", map[string]any{
		"id":                 "pi_failed",
		"object":             "payment_intent",
		"amount":             1999,
		"currency":           "gbp",
		"customer":           "cus_3",
		"last_payment_error": map[string]any{"message": "Your card was declined.", "type": "card_error"},
	})

	_, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	require.NoError(t, err)

	var row models.StripeTransaction
	require.NoError(t, f.db.First(&row).Error)
	assert.Equal(t, models.StripeStatusFailed, row.Status)
	assert.Equal(t, "pi_failed", row.PaymentIntentID)
	assert.Equal(t, int64(1999), row.Amount)
	assert.Equal(t, "gbp", row.Currency)
	assert.Equal(t, "cus_3", row.CustomerID)
	assert.Equal(t, "Your card was declined.", row.StatusReason)
}

func TestDonationSucceeded(t *testing.T) {
	f := newFixture(t, true)
	payload := eventPayload(t, "evt_donation", "payment_intent.succeeded", donationIntent(true))

	res, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	require.NoError(t, err)
	assert.True(t, res.Recorded)

	var rows []models.StripeDonation
	require.NoError(t, f.db.Find(&rows).Error)
	require.Len(t, rows, 1)
	d := rows[0]
	assert.Equal(t, "20.00", d.Amount.StringFixed(2))
	assert.True(t, d.IsSuccessful)
	assert.Equal(t, "pi_donation", d.PaymentIntentID)
	require.True(t, d.Fee.Valid)
	assert.Equal(t, "0.88", d.Fee.Decimal.StringFixed(2)) // 20 * 0.029 + 0.30

	txs, _, _ := f.rows(t)
	assert.Zero(t, txs)
	assert.Len(t, f.notes.Donations, 1)
}

func TestUntaggedPaymentSucceededWritesNothing(t *testing.T) {
	f := newFixture(t, true)
	payload := eventPayload(t, "evt_plain", "payment_intent.succeeded", donationIntent(false))

	res, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	require.NoError(t, err)
	assert.False(t, res.Recorded)

	txs, donations, events := f.rows(t)
	assert.Zero(t, txs)
	assert.Zero(t, donations)
	assert.Zero(t, events)
}

func TestDonationInUnratedCurrencyHasNoFee(t *testing.T) {
	f := newFixture(t, true)
	pi := donationIntent(true)
	pi["currency"] = "chf"
	payload := eventPayload(t, "evt_chf", "payment_intent.succeeded", pi)

	_, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	require.NoError(t, err)

	var d models.StripeDonation
	require.NoError(t, f.db.First(&d).Error)
	assert.False(t, d.Fee.Valid)
	assert.Equal(t, "20.00", d.Amount.StringFixed(2))
}

func TestChargeRefunded(t *testing.T) {
	f := newFixture(t, true)
	payload := eventPayload(t, "evt_refund", "charge.refunded", map[string]any{
		"id":              "ch_1",
		"object":          "charge",
		"amount_refunded": 5000,
		"currency":        "eur",
		"payment_intent":  "pi_1",
		"refunded":        true,
		"refunds": map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "re_1", "object": "refund", "amount": 5000, "reason": "requested_by_customer"},
			},
		},
	})

	_, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	require.NoError(t, err)

	var row models.StripeTransaction
	require.NoError(t, f.db.First(&row).Error)
	assert.Equal(t, models.StripeStatusRefunded, row.Status)
	assert.Equal(t, "pi_1", row.PaymentIntentID)
	assert.Equal(t, int64(5000), row.Amount)
	assert.Equal(t, "ch_1", row.ChargeID)
	assert.Equal(t, "requested_by_customer", row.StatusReason)
}

func TestUnknownEventIsAcknowledged(t *testing.T) {
	f := newFixture(t, true)
	payload := eventPayload(t, "evt_other", "customer.created", map[string]any{"id": "cus_9", "object": "customer"})

	res, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, res.Kind)
	assert.False(t, res.Recorded)

	txs, donations, events := f.rows(t)
	assert.Zero(t, txs+donations+events)
}

// Without deduplication a redelivered event is applied again, matching the
// provider-facing behaviour the ledger had before event ids were claimed.
func TestRedeliveryWithoutDeduplicationWritesTwice(t *testing.T) {
	f := newFixture(t, false)
	payload := eventPayload(t, "evt_dup", "checkout.session.completed", checkoutSession())

	for i := 0; i < 2; i++ {
		_, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
		require.NoError(t, err)
	}

	txs, _, events := f.rows(t)
	assert.Equal(t, int64(2), txs)
	assert.Zero(t, events)
}

func TestRedeliveryWithDeduplicationWritesOnce(t *testing.T) {
	f := newFixture(t, true)
	payload := eventPayload(t, "evt_dup", "payment_intent.succeeded", donationIntent(true))

	first, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	require.NoError(t, err)
	assert.True(t, first.Recorded)

	second, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Recorded)

	_, donations, events := f.rows(t)
	assert.Equal(t, int64(1), donations)
	assert.Equal(t, int64(1), events)
	assert.Len(t, f.notes.Donations, 1)
}

func TestPersistenceFailureIsNotAcknowledged(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.db.Migrator().DropTable(&models.StripeTransaction{}))
	payload := eventPayload(t, "evt_broken", "checkout.session.completed", checkoutSession())

	_, err := f.processor.Process(context.Background(), payload, sign(payload, testSecret, time.Now()), "")
	assert.ErrorIs(t, err, models.ErrPersistence)

	// The claimed event id rolls back with the failed write, so redelivery can succeed.
	assert.Zero(t, dbtest.Count(t, f.db, &models.StripeEvent{}))
	assert.Empty(t, f.notes.Transactions)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, EventCheckoutSessionCompleted, KindOf("checkout.session.completed"))
	assert.Equal(t, EventPaymentIntentFailed, KindOf("payment_intent.payment_failed"))
	assert.Equal(t, EventPaymentIntentSucceeded, KindOf("payment_intent.succeeded"))
	assert.Equal(t, EventChargeRefunded, KindOf("charge.refunded"))
	assert.Equal(t, EventUnknown, KindOf("invoice.paid"))
	assert.Equal(t, "unknown", EventUnknown.String())
	assert.Equal(t, "charge.refunded", EventChargeRefunded.String())
}
