package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/a2n2k3p4/basket-payments/ledger"
	"github.com/a2n2k3p4/basket-payments/models"
	"github.com/a2n2k3p4/basket-payments/payments"
)

type PaymentHandler struct {
	Payments *payments.Orchestrator
	Ledger   *ledger.Ledger
}

func NewPaymentHandler(orch *payments.Orchestrator, l *ledger.Ledger) *PaymentHandler {
	return &PaymentHandler{Payments: orch, Ledger: l}
}

func (h *PaymentHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	var req models.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}
	if req.BasketID == 0 {
		return badRequest(c, "basket_id is required")
	}

	handle, err := h.Payments.CreatePayment(c.UserContext(), req.BasketID, strings.ToLower(req.Provider))
	if err != nil {
		return respondError(c, err, "basket_id=", req.BasketID)
	}
	return c.Status(fiber.StatusCreated).JSON(handle)
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	st, err := h.Payments.GetStatus(c.UserContext(), c.Params("provider"), c.Params("id"))
	if err != nil {
		return respondError(c, err, "payment_id=", c.Params("id"))
	}
	return c.JSON(st)
}

func (h *PaymentHandler) CancelPayment(c *fiber.Ctx) error {
	id := c.Params("id")
	canceled, err := h.Payments.CancelPayment(c.UserContext(), c.Params("provider"), id)
	if err != nil {
		return respondError(c, err, "payment_id=", id)
	}
	return c.JSON(fiber.Map{"id": id, "canceled": canceled})
}

func (h *PaymentHandler) CapturePayPal(c *fiber.Ctx) error {
	capture, err := h.Payments.CapturePayPal(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "payment_id=", c.Params("id"))
	}
	return c.JSON(capture)
}

func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	var req models.RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}
	if req.PaymentID == "" {
		return badRequest(c, "payment_id is required")
	}
	if req.Amount.IsNegative() {
		return badRequest(c, "amount must not be negative")
	}

	res, err := h.Payments.Refund(c.UserContext(), strings.ToLower(req.Provider), payments.RefundSpec{
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Currency:  strings.ToLower(req.Currency),
		Reason:    req.Reason,
	})
	if err != nil {
		return respondError(c, err, "payment_id=", req.PaymentID)
	}
	return c.JSON(res)
}

func (h *PaymentHandler) UpdatePrice(c *fiber.Ctx) error {
	id, err := c.ParamsInt("paymentBasketId")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid payment basket id")
	}
	total, err := h.Payments.UpdatePrice(c.UserContext(), uint(id))
	if err != nil {
		return respondError(c, err, "payment_basket_id=", id)
	}
	return c.JSON(fiber.Map{"payment_basket_id": id, "amount": total})
}

func (h *PaymentHandler) Quote(c *fiber.Ctx) error {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || !amount.IsPositive() {
		return badRequest(c, "amount must be a positive decimal")
	}
	currency := strings.ToLower(c.Query("currency"))
	fee, err := h.Payments.Quote(c.UserContext(), c.Query("method"), amount, currency)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"amount":     amount,
		"currency":   currency,
		"commission": fee,
		"total":      amount.Add(fee),
	})
}

func (h *PaymentHandler) ListTransactions(c *fiber.Ctx) error {
	f := ledger.TxFilter{
		Status:          c.Query("status"),
		Currency:        c.Query("currency"),
		SessionID:       c.Query("session_id"),
		PaymentIntentID: c.Query("payment_intent_id"),
		CustomerID:      c.Query("customer_id"),
	}
	limit, offset := parseLimitOffset(c.Query("limit"), c.Query("offset"))

	transactions, total, err := h.Ledger.ListStripeTransactions(c.UserContext(), f, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"transactions": transactions,
		"pagination": fiber.Map{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *PaymentHandler) GetTransaction(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "id is required")
	}
	tx, err := h.Ledger.GetStripeTransaction(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "transaction_id=", id)
	}
	return c.JSON(tx)
}

func parseLimitOffset(limitStr, offsetStr string) (int, int) {
	limit, offset := 50, 0
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}
