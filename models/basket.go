package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Email     string         `gorm:"uniqueIndex" json:"email"`
	Name      string         `json:"name"`

	Basket *Basket `gorm:"constraint:OnDelete:CASCADE" json:"basket,omitempty"`
}

// AfterCreate provisions the user's basket in the same transaction.
func (u *User) AfterCreate(tx *gorm.DB) error {
	if u.Basket != nil {
		return nil
	}
	u.Basket = &Basket{UserID: u.ID}
	return tx.Create(u.Basket).Error
}

type Basket struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`

	Items   []ProductInBasket `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payment *PaymentBasket    `gorm:"constraint:OnDelete:CASCADE" json:"payment,omitempty"`
}

type Product struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Name      string              `json:"name"`
	Price     decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price"`
}

// ProductInBasket is the join row between a basket and a product.
type ProductInBasket struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	BasketID  uint `gorm:"index;not null" json:"basket_id"`
	ProductID uint `gorm:"index;not null" json:"product_id"`

	Product *Product `gorm:"constraint:OnDelete:CASCADE" json:"product,omitempty"`
}

// PaymentBasket is the payment attempt bound 1:1 to a basket. Source holds the
// provider-assigned payment id once a provider transaction exists.
type PaymentBasket struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	BasketID  uint              `gorm:"uniqueIndex;not null" json:"basket_id"`
	Amount    decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"amount"`
	Currency  string            `gorm:"size:8" json:"currency"`
	Provider  string            `gorm:"size:16" json:"provider,omitempty"`
	Source    string            `gorm:"index" json:"source"`
	// Attempt is bumped whenever a provider payment had to be abandoned, so the
	// next create does not replay the abandoned idempotency key.
	Attempt   uint              `gorm:"not null;default:0" json:"-"`
	Email     *string           `json:"email,omitempty"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
}

// HasProviderPayment reports whether a provider payment was already created.
func (p *PaymentBasket) HasProviderPayment() bool {
	return p.Source != ""
}
