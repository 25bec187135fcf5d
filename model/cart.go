package model

import (
	"time"

	"github.com/ecofinds/marketplace/constant"
	"github.com/shopspring/decimal"
)

// CartLine is a cart row joined with the current state of its product.
type CartLine struct {
	ID            uint64                 `db:"id" json:"id"`
	UserID        uint64                 `db:"user_id" json:"-"`
	ProductID     uint64                 `db:"product_id" json:"product_id"`
	Quantity      int                    `db:"quantity" json:"quantity"`
	PriceAtTime   decimal.Decimal        `db:"price_at_time" json:"price_at_time"`
	Title         string                 `db:"title" json:"title"`
	ImageURL      string                 `db:"image_url" json:"image_url"`
	CurrentPrice  decimal.Decimal        `db:"current_price" json:"current_price"`
	ProductStatus constant.ProductStatus `db:"product_status" json:"product_status"`
	SellerID      uint64                 `db:"seller_id" json:"seller_id"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
}

type UpsertCartItem struct {
	UserID      uint64
	ProductID   uint64
	Quantity    int
	PriceAtTime decimal.Decimal
}

type AddCartItemRequest struct {
	ProductID uint64 `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=99"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0,lte=99"`
}

type CartResponse struct {
	Items     []CartLine      `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
