package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/a2n2k3p4/basket-payments/dbtest"
	"github.com/a2n2k3p4/basket-payments/models"
)

type LedgerTestSuite struct {
	suite.Suite
	ctx    context.Context
	ledger *Ledger
	basket *models.Basket
}

func (s *LedgerTestSuite) SetupTest() {
	s.ctx = context.Background()
	db := dbtest.Open(s.T())
	s.ledger = New(db)

	user := &models.User{Email: "buyer@example.com"}
	s.Require().NoError(db.Create(user).Error)
	s.basket = user.Basket
}

func (s *LedgerTestSuite) create() *models.PaymentBasket {
	pb, err := s.ledger.CreatePaymentBasket(s.ctx, PaymentBasketInput{
		BasketID: s.basket.ID,
		Amount:   decimal.RequireFromString("35.50"),
		Currency: "eur",
		Metadata: map[string]any{"channel": "web"},
	})
	s.Require().NoError(err)
	return pb
}

func (s *LedgerTestSuite) TestSecondPaymentBasketIsAConflict() {
	first := s.create()

	_, err := s.ledger.CreatePaymentBasket(s.ctx, PaymentBasketInput{
		BasketID: s.basket.ID,
		Amount:   decimal.NewFromInt(1),
	})
	s.ErrorIs(err, models.ErrAlreadyExists)

	found, err := s.ledger.FindByBasketID(s.ctx, s.basket.ID)
	s.Require().NoError(err)
	s.Equal(first.ID, found.ID)
	s.Equal("35.50", found.Amount.StringFixed(2))
	s.Equal("eur", found.Currency)
}

func (s *LedgerTestSuite) TestConcurrentCreatesYieldOneRow() {
	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.CreatePaymentBasket(s.ctx, PaymentBasketInput{BasketID: s.basket.ID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if s.ErrorIs(err, models.ErrAlreadyExists) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, created)
	s.Equal(workers-1, conflicts)
}

func (s *LedgerTestSuite) TestFindByBasketIDMissing() {
	pb, err := s.ledger.FindByBasketID(s.ctx, s.basket.ID)
	s.NoError(err)
	s.Nil(pb)
}

func (s *LedgerTestSuite) TestUpdateAmount() {
	pb := s.create()

	s.NoError(s.ledger.UpdateAmount(s.ctx, pb.ID, decimal.RequireFromString("12.00")))
	got, err := s.ledger.GetPaymentBasket(s.ctx, pb.ID)
	s.Require().NoError(err)
	s.Equal("12.00", got.Amount.StringFixed(2))

	s.ErrorIs(s.ledger.UpdateAmount(s.ctx, pb.ID+100, decimal.NewFromInt(1)), models.ErrNotFound)
}

func (s *LedgerTestSuite) TestAttachSourceOnlyOnce() {
	pb := s.create()

	s.NoError(s.ledger.AttachSource(s.ctx, pb.ID, "stripe", "cs_test_1", "eur", decimal.RequireFromString("35.50")))
	err := s.ledger.AttachSource(s.ctx, pb.ID, "stripe", "cs_test_2", "eur", decimal.RequireFromString("35.50"))
	s.ErrorIs(err, models.ErrAlreadyExists)

	got, err := s.ledger.GetPaymentBasket(s.ctx, pb.ID)
	s.Require().NoError(err)
	s.Equal("cs_test_1", got.Source)
	s.Equal("stripe", got.Provider)

	s.ErrorIs(s.ledger.AttachSource(s.ctx, pb.ID+100, "stripe", "cs", "eur", decimal.Zero), models.ErrNotFound)
}

func (s *LedgerTestSuite) TestNextAttempt() {
	pb := s.create()
	s.Zero(pb.Attempt)

	s.NoError(s.ledger.NextAttempt(s.ctx, pb.ID))
	s.NoError(s.ledger.NextAttempt(s.ctx, pb.ID))
	got, err := s.ledger.GetPaymentBasket(s.ctx, pb.ID)
	s.Require().NoError(err)
	s.Equal(uint(2), got.Attempt)

	s.ErrorIs(s.ledger.NextAttempt(s.ctx, pb.ID+100), models.ErrNotFound)
}

func (s *LedgerTestSuite) TestDeleteBySourceAndBasketID() {
	pb := s.create()
	s.Require().NoError(s.ledger.AttachSource(s.ctx, pb.ID, "stripe", "cs_test_1", "eur", pb.Amount))

	s.ErrorIs(s.ledger.DeleteBySource(s.ctx, "cs_missing"), models.ErrNotFound)
	s.ErrorIs(s.ledger.DeleteBySource(s.ctx, ""), models.ErrNotFound)
	s.NoError(s.ledger.DeleteBySource(s.ctx, "cs_test_1"))
	s.ErrorIs(s.ledger.DeleteByBasketID(s.ctx, s.basket.ID), models.ErrNotFound)

	s.create()
	s.NoError(s.ledger.DeleteByBasketID(s.ctx, s.basket.ID))
}

func (s *LedgerTestSuite) TestStripeRowsAreAppendOnly() {
	in := StripeTransactionInput{
		SessionID:       "cs_test_1",
		PaymentIntentID: "pi_1",
		Status:          models.StripeStatusFailed,
		Amount:          5000,
		Currency:        "eur",
	}
	_, err := s.ledger.RecordStripeTransaction(s.ctx, in)
	s.Require().NoError(err)

	in.Status = models.StripeStatusPaid
	_, err = s.ledger.RecordStripeTransaction(s.ctx, in)
	s.Require().NoError(err)

	rows, total, err := s.ledger.ListStripeTransactions(s.ctx, TxFilter{PaymentIntentID: "pi_1"}, 10, 0)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(rows, 2)

	paid, total, err := s.ledger.ListStripeTransactions(s.ctx, TxFilter{Status: "paid"}, 10, 0)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(models.StripeStatusPaid, paid[0].Status)

	latest, err := s.ledger.GetStripeTransaction(s.ctx, "pi_1")
	s.Require().NoError(err)
	s.Equal(models.StripeStatusPaid, latest.Status)

	byID, err := s.ledger.GetStripeTransaction(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(models.StripeStatusFailed, byID.Status)

	_, err = s.ledger.GetStripeTransaction(s.ctx, "pi_unknown")
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *LedgerTestSuite) TestClaimEvent() {
	s.NoError(s.ledger.ClaimEvent(s.ctx, "evt_1", "checkout.session.completed"))
	s.ErrorIs(s.ledger.ClaimEvent(s.ctx, "evt_1", "checkout.session.completed"), models.ErrAlreadyExists)
	s.NoError(s.ledger.ClaimEvent(s.ctx, "evt_2", "checkout.session.completed"))
}

func (s *LedgerTestSuite) TestInTxRollsBack() {
	err := s.ledger.InTx(s.ctx, func(tx *Ledger) error {
		if err := tx.ClaimEvent(s.ctx, "evt_rollback", "charge.refunded"); err != nil {
			return err
		}
		return tx.ClaimEvent(s.ctx, "evt_rollback", "charge.refunded")
	})
	s.ErrorIs(err, models.ErrAlreadyExists)
	s.NoError(s.ledger.ClaimEvent(s.ctx, "evt_rollback", "charge.refunded"))
}

func (s *LedgerTestSuite) TestPayPalLifecycle() {
	pb := s.create()
	row, err := s.ledger.RecordPayPalTransaction(s.ctx, PayPalTransactionInput{
		PaymentID:       "ORDER-1",
		Status:          "CREATED",
		Amount:          pb.Amount,
		Currency:        "EUR",
		PaymentBasketID: &pb.ID,
	})
	s.Require().NoError(err)
	s.Equal("CREATED", row.Status)

	_, err = s.ledger.RecordPayPalTransaction(s.ctx, PayPalTransactionInput{PaymentID: "ORDER-1"})
	s.ErrorIs(err, models.ErrAlreadyExists)

	s.NoError(s.ledger.UpdatePayPalTransaction(s.ctx, "ORDER-1", PayPalUpdate{
		Status: "COMPLETED", PayerID: "PAYER", SaleID: "CAPTURE-1",
	}))
	now := time.Now()
	s.NoError(s.ledger.UpdatePayPalTransaction(s.ctx, "ORDER-1", PayPalUpdate{
		Status: "REFUNDED", RefundID: "REFUND-1", RefundedAt: &now,
	}))

	got, err := s.ledger.GetPayPalTransaction(s.ctx, "ORDER-1")
	s.Require().NoError(err)
	s.Equal("REFUNDED", got.Status)
	s.Equal("PAYER", got.PayerID)
	s.Equal("CAPTURE-1", got.SaleID)
	s.Equal("REFUND-1", got.RefundID)
	s.NotNil(got.RefundedAt)

	s.ErrorIs(s.ledger.UpdatePayPalTransaction(s.ctx, "ORDER-X", PayPalUpdate{Status: "X"}), models.ErrNotFound)
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}
