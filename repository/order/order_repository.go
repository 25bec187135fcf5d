package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ecofinds/marketplace/model"
	txrepo "github.com/ecofinds/marketplace/repository/tx"
)

type SQL struct {
	conn *sqlx.DB
}

type OrderRepository interface {
	InsertOrderTx(ctx context.Context, tx *sqlx.Tx, req *model.InsertOrderTxItem) (uint64, error)
	InsertOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID uint64, items []model.InsertOrderItemTx) error
	UpdateOrderStatusTx(ctx context.Context, tx *sqlx.Tx, req *model.UpdateOrderStatusTx) error
	LockOrderTx(ctx context.Context, tx *sqlx.Tx, orderID uint64) (*model.Order, error)
	GetOrderTx(ctx context.Context, tx *sqlx.Tx, orderID uint64) (*model.Order, error)
	GetOrder(ctx context.Context, orderID uint64) (*model.Order, error)
	ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Order, error)
	ListBySeller(ctx context.Context, sellerID uint64) ([]model.Order, error)
}

func NewOrderRepository(conn *sqlx.DB) OrderRepository {
	return &SQL{conn: conn}
}

const (
	orderColumns = `o.id, o.buyer_id, u.username AS buyer_name, o.subtotal, o.tax_amount, o.total_amount, o.status,
o.payment_status, o.payment_method, o.shipping_address, o.tracking_number, o.created_at, o.updated_at`

	getOrder = `SELECT ` + orderColumns + `
FROM orders o
JOIN users u ON o.buyer_id = u.id
WHERE o.id = ?`

	lockOrder = `SELECT o.id, o.buyer_id, o.subtotal, o.tax_amount, o.total_amount, o.status, o.payment_status,
o.payment_method, o.shipping_address, o.tracking_number, o.created_at, o.updated_at
FROM orders o
WHERE o.id = ?
FOR UPDATE`

	getOrderItems = `SELECT oi.id, oi.order_id, oi.product_id, oi.seller_id, u.username AS seller_name, oi.quantity, oi.unit_price,
oi.product_snapshot, COALESCE(p.status, 'inactive') AS product_status, oi.created_at
FROM order_items oi
JOIN users u ON oi.seller_id = u.id
LEFT JOIN products p ON oi.product_id = p.id
WHERE oi.order_id IN (?)
ORDER BY oi.order_id, oi.id`

	listByBuyer = `SELECT ` + orderColumns + `
FROM orders o
JOIN users u ON o.buyer_id = u.id
WHERE o.buyer_id = ?
ORDER BY o.created_at DESC, o.id DESC`

	listBySeller = `SELECT ` + orderColumns + `
FROM orders o
JOIN users u ON o.buyer_id = u.id
WHERE o.id IN (SELECT DISTINCT order_id FROM order_items WHERE seller_id = ?)
ORDER BY o.created_at DESC, o.id DESC`

	insertOrder = `INSERT INTO orders (buyer_id, subtotal, tax_amount, total_amount, status, payment_status, payment_method, shipping_address)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	insertOrderItem = `INSERT INTO order_items (order_id, product_id, seller_id, quantity, unit_price, product_snapshot)
VALUES (?, ?, ?, ?, ?, ?)`
)

func (r *SQL) InsertOrderTx(ctx context.Context, tx *sqlx.Tx, req *model.InsertOrderTxItem) (uint64, error) {
	return txrepo.InsertID(ctx, tx, insertOrder,
		req.BuyerID, req.Subtotal, req.TaxAmount, req.TotalAmount, req.Status, req.PaymentStatus, req.PaymentMethod, req.ShippingAddress)
}

func (r *SQL) InsertOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID uint64, items []model.InsertOrderItemTx) error {
	q := tx.Rebind(insertOrderItem)
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, q, orderID, it.ProductID, it.SellerID, it.Quantity, it.UnitPrice, it.Snapshot); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQL) UpdateOrderStatusTx(ctx context.Context, tx *sqlx.Tx, req *model.UpdateOrderStatusTx) error {
	q := "UPDATE orders SET status = ?, payment_status = ?, tracking_number = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	_, err := tx.ExecContext(ctx, tx.Rebind(q), req.Status, req.PaymentStatus, req.TrackingNumber, req.OrderID)
	return err
}

// LockOrderTx returns the order header locked for update, or nil when it does
// not exist. Items are loaded separately.
func (r *SQL) LockOrderTx(ctx context.Context, tx *sqlx.Tx, orderID uint64) (*model.Order, error) {
	var o model.Order
	if err := tx.QueryRowxContext(ctx, tx.Rebind(lockOrder), orderID).StructScan(&o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *SQL) GetOrderTx(ctx context.Context, tx *sqlx.Tx, orderID uint64) (*model.Order, error) {
	return getOrderWithItems(ctx, tx, orderID)
}

func (r *SQL) GetOrder(ctx context.Context, orderID uint64) (*model.Order, error) {
	return getOrderWithItems(ctx, r.conn, orderID)
}

func (r *SQL) ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Order, error) {
	return listOrders(ctx, r.conn, listByBuyer, buyerID)
}

func (r *SQL) ListBySeller(ctx context.Context, sellerID uint64) ([]model.Order, error) {
	return listOrders(ctx, r.conn, listBySeller, sellerID)
}

func getOrderWithItems(ctx context.Context, q sqlx.ExtContext, orderID uint64) (*model.Order, error) {
	var o model.Order
	if err := q.QueryRowxContext(ctx, q.Rebind(getOrder), orderID).StructScan(&o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	orders := []model.Order{o}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func listOrders(ctx context.Context, q sqlx.ExtContext, query string, id uint64) ([]model.Order, error) {
	orders := make([]model.Order, 0)
	if err := sqlx.SelectContext(ctx, q, &orders, q.Rebind(query), id); err != nil {
		return nil, err
	}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func attachItems(ctx context.Context, q sqlx.ExtContext, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(orders))
	byID := make(map[uint64]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = i
		orders[i].Items = make([]model.OrderItem, 0)
	}
	query, args, err := txrepo.In(q, getOrderItems, ids)
	if err != nil {
		return err
	}
	items := make([]model.OrderItem, 0)
	if err := sqlx.SelectContext(ctx, q, &items, query, args...); err != nil {
		return err
	}
	for _, it := range items {
		i := byID[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}
