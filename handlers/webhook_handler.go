package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/a2n2k3p4/basket-payments/webhook"
)

const stripeSignatureHeader = "Stripe-Signature"

type WebhookHandler struct {
	processor *webhook.Processor
}

func NewWebhookHandler(p *webhook.Processor) *WebhookHandler {
	return &WebhookHandler{processor: p}
}

// HandleStripe verifies and applies one Stripe delivery.
// 400 when the payload cannot be verified or decoded (nothing written),
// 500 when a verified event could not be stored (Stripe redelivers),
// 200 once the event was applied, deduplicated or intentionally ignored.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	// fiber reuses the request buffer once the handler returns.
	payload := append([]byte(nil), c.Body()...)

	res, err := h.processor.Process(c.UserContext(), payload, c.Get(stripeSignatureHeader), c.IP())
	if err != nil {
		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			log.Printf("webhook: processing failed request_id=%v err=%v", c.Locals("requestid"), err)
			return c.SendStatus(status)
		}
		log.Printf("webhook: rejected delivery ip=%s err=%v", c.IP(), err)
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"received":  true,
		"event_id":  res.EventID,
		"type":      res.Kind.String(),
		"recorded":  res.Recorded,
		"duplicate": res.Duplicate,
	})
}
