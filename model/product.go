package model

import (
	"time"

	"github.com/ecofinds/marketplace/constant"
	"github.com/shopspring/decimal"
)

type ProductListItem struct {
	ID         uint64                 `db:"id" json:"id"`
	Title      string                 `db:"title" json:"title"`
	Category   string                 `db:"category" json:"category"`
	Condition  string                 `db:"item_condition" json:"condition"`
	ImageURL   string                 `db:"image_url" json:"image_url"`
	Price      decimal.Decimal        `db:"price" json:"price"`
	Status     constant.ProductStatus `db:"status" json:"status"`
	SellerName string                 `db:"seller_name" json:"seller_name"`
}

type ProductDetail struct {
	ID          uint64                 `db:"id" json:"id"`
	SellerID    uint64                 `db:"seller_id" json:"seller_id"`
	SellerName  string                 `db:"seller_name" json:"seller_name"`
	Title       string                 `db:"title" json:"title"`
	Description string                 `db:"description" json:"description,omitempty"`
	Category    string                 `db:"category" json:"category"`
	Condition   string                 `db:"item_condition" json:"condition"`
	ImageURL    string                 `db:"image_url" json:"image_url"`
	Price       decimal.Decimal        `db:"price" json:"price"`
	Status      constant.ProductStatus `db:"status" json:"status"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
}

// Snapshot copies the display fields frozen onto an order item.
func (p ProductDetail) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		Title:       p.Title,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		Condition:   p.Condition,
	}
}

type ProductFilter struct {
	Page     int
	PerPage  int
	Category string
	Search   string
}

type ProductListResponse struct {
	Items      []ProductListItem `json:"items"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
}
