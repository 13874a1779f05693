package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/a2n2k3p4/basket-payments/ledger"
	"github.com/a2n2k3p4/basket-payments/models"
	"github.com/a2n2k3p4/basket-payments/payments"
	"github.com/a2n2k3p4/basket-payments/pricing"
)

type BasketHandler struct {
	DB       *gorm.DB
	Pricing  *pricing.Service
	Ledger   *ledger.Ledger
	Payments *payments.Orchestrator
}

func NewBasketHandler(db *gorm.DB, p *pricing.Service, l *ledger.Ledger, orch *payments.Orchestrator) *BasketHandler {
	return &BasketHandler{DB: db, Pricing: p, Ledger: l, Payments: orch}
}

// CreateUser stores a user; its basket is provisioned with it.
func (h *BasketHandler) CreateUser(c *fiber.Ctx) error {
	var req models.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		return badRequest(c, "email is required")
	}

	user := &models.User{Email: req.Email, Name: req.Name}
	if err := h.DB.WithContext(c.UserContext()).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return respondError(c, models.ErrAlreadyExists)
		}
		return respondError(c, err, "email=", req.Email)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *BasketHandler) AddProduct(c *fiber.Ctx) error {
	basketID, err := c.ParamsInt("id")
	if err != nil || basketID <= 0 {
		return badRequest(c, "invalid basket id")
	}
	var req models.AddProductRequest
	if err := c.BodyParser(&req); err != nil || req.ProductID == 0 {
		return badRequest(c, "product_id is required")
	}

	total, err := h.Pricing.AddProduct(c.UserContext(), uint(basketID), req.ProductID)
	if err != nil {
		return respondError(c, err, "basket_id=", basketID)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"basket_id": basketID, "total": total})
}

func (h *BasketHandler) RemoveProduct(c *fiber.Ctx) error {
	basketID, err := c.ParamsInt("id")
	if err != nil || basketID <= 0 {
		return badRequest(c, "invalid basket id")
	}
	productID, err := c.ParamsInt("productId")
	if err != nil || productID <= 0 {
		return badRequest(c, "invalid product id")
	}

	total, err := h.Pricing.RemoveProduct(c.UserContext(), uint(basketID), uint(productID))
	if err != nil {
		return respondError(c, err, "basket_id=", basketID)
	}
	return c.JSON(fiber.Map{"basket_id": basketID, "total": total})
}

func (h *BasketHandler) Total(c *fiber.Ctx) error {
	basketID, err := c.ParamsInt("id")
	if err != nil || basketID <= 0 {
		return badRequest(c, "invalid basket id")
	}
	total, err := h.Pricing.Total(c.UserContext(), uint(basketID))
	if err != nil {
		return respondError(c, err, "basket_id=", basketID)
	}
	return c.JSON(fiber.Map{"basket_id": basketID, "total": total})
}

func (h *BasketHandler) CreatePaymentBasket(c *fiber.Ctx) error {
	basketID, err := c.ParamsInt("id")
	if err != nil || basketID <= 0 {
		return badRequest(c, "invalid basket id")
	}
	var req models.CreatePaymentBasketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request: "+err.Error())
		}
	}

	pb, err := h.Payments.CreatePaymentBasket(c.UserContext(), uint(basketID), req)
	if err != nil {
		return respondError(c, err, "basket_id=", basketID)
	}
	return c.Status(fiber.StatusCreated).JSON(pb)
}

func (h *BasketHandler) DeletePaymentBasket(c *fiber.Ctx) error {
	basketID, err := c.ParamsInt("id")
	if err != nil || basketID <= 0 {
		return badRequest(c, "invalid basket id")
	}
	if err := h.Ledger.DeleteByBasketID(c.UserContext(), uint(basketID)); err != nil {
		return respondError(c, err, "basket_id=", basketID)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
