// Package notify defines the hook points fired after ledger writes. Email
// delivery attaches here.
package notify

import (
	"context"
	"log"
	"sync"

	"github.com/a2n2k3p4/basket-payments/models"
)

type Notifier interface {
	TransactionRecorded(ctx context.Context, tx models.StripeTransaction)
	DonationRecorded(ctx context.Context, d models.StripeDonation)
}

// Log writes one line per recorded outcome.
type Log struct{}

func (Log) TransactionRecorded(_ context.Context, tx models.StripeTransaction) {
	log.Printf("notify: transaction recorded id=%d session=%s intent=%s status=%s amount=%d currency=%s",
		tx.ID, tx.SessionID, tx.PaymentIntentID, tx.Status, tx.Amount, tx.Currency)
}

func (Log) DonationRecorded(_ context.Context, d models.StripeDonation) {
	log.Printf("notify: donation recorded id=%d intent=%s amount=%s currency=%s",
		d.ID, d.PaymentIntentID, d.Amount, d.Currency)
}

// Recorder keeps every notification; used in tests.
type Recorder struct {
	mu           sync.Mutex
	Transactions []models.StripeTransaction
	Donations    []models.StripeDonation
}

func (r *Recorder) TransactionRecorded(_ context.Context, tx models.StripeTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Transactions = append(r.Transactions, tx)
}

func (r *Recorder) DonationRecorded(_ context.Context, d models.StripeDonation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Donations = append(r.Donations, d)
}
