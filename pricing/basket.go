package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/a2n2k3p4/basket-payments/models"
)

// Service computes basket totals and maintains basket line items.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Total sums the prices of every product linked to the basket. Products without
// a price count as zero. Nothing is cached.
func (s *Service) Total(ctx context.Context, basketID uint) (decimal.Decimal, error) {
	return total(s.DB.WithContext(ctx), basketID)
}

// AddProduct links a product to the basket and refreshes its payment amount.
func (s *Service) AddProduct(ctx context.Context, basketID, productID uint) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Product{}, productID, "product"); err != nil {
			return err
		}
		if err := exists(tx, &models.Basket{}, basketID, "basket"); err != nil {
			return err
		}
		if err := tx.Create(&models.ProductInBasket{BasketID: basketID, ProductID: productID}).Error; err != nil {
			return fmt.Errorf("%w: add product %d to basket %d: %w", models.ErrPersistence, productID, basketID, err)
		}
		var err error
		sum, err = refresh(tx, basketID)
		return err
	})
	return sum, err
}

// RemoveProduct unlinks one occurrence of a product from the basket.
func (s *Service) RemoveProduct(ctx context.Context, basketID, productID uint) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.ProductInBasket
		err := tx.Where("basket_id = ? AND product_id = ?", basketID, productID).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: product %d in basket %d", models.ErrNotFound, productID, basketID)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		if err := tx.Delete(&item).Error; err != nil {
			return fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		sum, err = refresh(tx, basketID)
		return err
	})
	return sum, err
}

func total(db *gorm.DB, basketID uint) (decimal.Decimal, error) {
	if err := exists(db, &models.Basket{}, basketID, "basket"); err != nil {
		return decimal.Zero, err
	}

	var items []models.ProductInBasket
	if err := db.Preload("Product").Where("basket_id = ?", basketID).Find(&items).Error; err != nil {
		return decimal.Zero, fmt.Errorf("%w: load basket %d items: %w", models.ErrPersistence, basketID, err)
	}

	sum := decimal.Zero
	for _, it := range items {
		if it.Product != nil && it.Product.Price.Valid {
			sum = sum.Add(it.Product.Price.Decimal)
		}
	}
	return sum, nil
}

// refresh recomputes the total and writes it to the basket's payment row, if any.
func refresh(tx *gorm.DB, basketID uint) (decimal.Decimal, error) {
	sum, err := total(tx, basketID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := tx.Model(&models.PaymentBasket{}).
		Where("basket_id = ?", basketID).
		Update("amount", sum).Error; err != nil {
		return decimal.Zero, fmt.Errorf("%w: update basket %d amount: %w", models.ErrPersistence, basketID, err)
	}
	return sum, nil
}

func exists(db *gorm.DB, model any, id uint, what string) error {
	var n int64
	if err := db.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("%w: lookup %s %d: %w", models.ErrPersistence, what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", models.ErrNotFound, what, id)
	}
	return nil
}
