package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/a2n2k3p4/basket-payments/models"
	"github.com/a2n2k3p4/basket-payments/payments"
)

// statusFor maps domain errors to HTTP statuses. Anything unrecognised is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrUnsupportedCurrency):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrVerificationFailed),
		errors.Is(err, models.ErrMalformedPayload),
		errors.Is(err, payments.ErrUnknownProvider),
		errors.Is(err, payments.ErrEmptyBasket),
		errors.Is(err, payments.ErrRefundNeedsCurrency):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Server faults are logged with the request
// id and hidden from the client.
func respondError(c *fiber.Ctx, err error, ids ...any) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("http: %s %s failed request_id=%v %s err=%v", c.Method(), c.Path(), c.Locals("requestid"), fmt.Sprint(ids...), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
