package handlers

import "github.com/gofiber/fiber/v2"

func Register(app *fiber.App, ph *PaymentHandler, bh *BasketHandler, wh *WebhookHandler) {
	app.Get("/health", ph.Health)

	app.Post("/users", bh.CreateUser)
	app.Post("/baskets/:id/products", bh.AddProduct)
	app.Delete("/baskets/:id/products/:productId", bh.RemoveProduct)
	app.Get("/baskets/:id/total", bh.Total)
	app.Post("/baskets/:id/payment-basket", bh.CreatePaymentBasket)
	app.Delete("/baskets/:id/payment-basket", bh.DeletePaymentBasket)

	app.Post("/payments", ph.CreatePayment)
	app.Get("/payments/quote", ph.Quote)
	app.Get("/payments/transactions", ph.ListTransactions)
	app.Get("/payments/transactions/:id", ph.GetTransaction)
	app.Post("/payments/refunds", ph.Refund)
	app.Put("/payments/:paymentBasketId/price", ph.UpdatePrice)
	app.Post("/payments/paypal/:id/capture", ph.CapturePayPal)
	app.Get("/payments/:provider/:id", ph.GetPayment)
	app.Post("/payments/:provider/:id/cancel", ph.CancelPayment)

	app.Post("/webhooks/stripe", wh.HandleStripe)
}
