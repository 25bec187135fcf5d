package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ecofinds/marketplace/constant"
	"github.com/shopspring/decimal"
)

// ProductSnapshot is stored as JSON on each order item.
type ProductSnapshot struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Category    string `json:"category,omitempty"`
	Condition   string `json:"condition,omitempty"`
}

func (s ProductSnapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *ProductSnapshot) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = ProductSnapshot{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("product snapshot: unsupported type %T", src)
	}
}

type Order struct {
	ID              uint64                 `db:"id" json:"id"`
	BuyerID         uint64                 `db:"buyer_id" json:"buyer_id"`
	BuyerName       string                 `db:"buyer_name" json:"buyer_name"`
	Subtotal        decimal.Decimal        `db:"subtotal" json:"subtotal"`
	TaxAmount       decimal.Decimal        `db:"tax_amount" json:"tax_amount"`
	TotalAmount     decimal.Decimal        `db:"total_amount" json:"total_amount"`
	Status          constant.OrderStatus   `db:"status" json:"status"`
	PaymentStatus   constant.PaymentStatus `db:"payment_status" json:"payment_status"`
	PaymentMethod   constant.PaymentMethod `db:"payment_method" json:"payment_method,omitempty"`
	ShippingAddress string                 `db:"shipping_address" json:"shipping_address,omitempty"`
	TrackingNumber  string                 `db:"tracking_number" json:"tracking_number,omitempty"`
	CreatedAt       time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time              `db:"updated_at" json:"updated_at"`
	Items           []OrderItem            `db:"-" json:"items"`
}

// HasSeller reports whether any line of the order was sold by sellerID.
func (o *Order) HasSeller(sellerID uint64) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

func (o *Order) ProductIDs() []uint64 {
	ids := make([]uint64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

func (o *Order) SellerIDs() []uint64 {
	seen := make(map[uint64]bool, len(o.Items))
	ids := make([]uint64, 0, len(o.Items))
	for _, it := range o.Items {
		if !seen[it.SellerID] {
			seen[it.SellerID] = true
			ids = append(ids, it.SellerID)
		}
	}
	return ids
}

type OrderItem struct {
	ID            uint64                 `db:"id" json:"id"`
	OrderID       uint64                 `db:"order_id" json:"order_id"`
	ProductID     uint64                 `db:"product_id" json:"product_id"`
	SellerID      uint64                 `db:"seller_id" json:"seller_id"`
	SellerName    string                 `db:"seller_name" json:"seller_name"`
	Quantity      int                    `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal        `db:"unit_price" json:"unit_price"`
	Snapshot      ProductSnapshot        `db:"product_snapshot" json:"product_snapshot"`
	ProductStatus constant.ProductStatus `db:"product_status" json:"product_status"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type InsertOrderTxItem struct {
	BuyerID         uint64
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	Status          constant.OrderStatus
	PaymentStatus   constant.PaymentStatus
	PaymentMethod   constant.PaymentMethod
	ShippingAddress string
}

type InsertOrderItemTx struct {
	ProductID uint64
	SellerID  uint64
	Quantity  int
	UnitPrice decimal.Decimal
	Snapshot  ProductSnapshot
}

type UpdateOrderStatusTx struct {
	OrderID        uint64
	Status         constant.OrderStatus
	PaymentStatus  constant.PaymentStatus
	TrackingNumber string
}

type CheckoutRequest struct {
	ShippingAddress string                 `json:"shipping_address" validate:"omitempty,max=500"`
	PaymentMethod   constant.PaymentMethod `json:"payment_method" validate:"omitempty,payment_method"`
	IdempotencyKey  string                 `json:"-" validate:"omitempty,max=128"`
}

type UpdateOrderStatusRequest struct {
	Status         constant.OrderStatus `json:"status" validate:"required,order_status"`
	TrackingNumber string               `json:"tracking_number" validate:"omitempty,max=100"`
}

type OrderListResponse struct {
	Items []Order `json:"items"`
}
