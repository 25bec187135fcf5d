package cart

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ecofinds/marketplace/model"
	txrepo "github.com/ecofinds/marketplace/repository/tx"
)

type SQL struct {
	conn *sqlx.DB
}

type CartRepository interface {
	GetCartItems(ctx context.Context, userID uint64) ([]model.CartLine, error)
	GetCartItemsTx(ctx context.Context, tx *sqlx.Tx, userID uint64) ([]model.CartLine, error)
	UpsertItem(ctx context.Context, req *model.UpsertCartItem) error
	UpdateQuantity(ctx context.Context, userID, productID uint64, quantity int) (bool, error)
	DeleteItem(ctx context.Context, userID, productID uint64) (bool, error)
	DeleteItemsTx(ctx context.Context, tx *sqlx.Tx, userID uint64, productIDs []uint64) error
}

func NewCartRepository(conn *sqlx.DB) CartRepository {
	return &SQL{conn: conn}
}

const (
	getCartItems = `SELECT c.id, c.user_id, c.product_id, c.quantity, c.price_at_time, c.created_at,
p.title, p.image_url, p.price AS current_price, p.status AS product_status, p.seller_id
FROM cart_items c
JOIN products p ON c.product_id = p.id
WHERE c.user_id = ?
ORDER BY c.created_at, c.id`

	// Locks only cart_items; products are locked separately in id order.
	lockCartItems = `SELECT c.id FROM cart_items c WHERE c.user_id = ? ORDER BY c.id FOR UPDATE`

	upsertMySQL = `INSERT INTO cart_items (user_id, product_id, quantity, price_at_time) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), price_at_time = VALUES(price_at_time), updated_at = CURRENT_TIMESTAMP`

	upsertPostgres = `INSERT INTO cart_items (user_id, product_id, quantity, price_at_time) VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity, price_at_time = EXCLUDED.price_at_time, updated_at = CURRENT_TIMESTAMP`
)

func (s *SQL) GetCartItems(ctx context.Context, userID uint64) ([]model.CartLine, error) {
	return selectCartItems(ctx, s.conn, userID)
}

// GetCartItemsTx locks the user's cart rows until tx ends, so a concurrent
// quantity change or removal waits for checkout instead of being lost.
func (s *SQL) GetCartItemsTx(ctx context.Context, tx *sqlx.Tx, userID uint64) ([]model.CartLine, error) {
	var ids []uint64
	if err := tx.SelectContext(ctx, &ids, tx.Rebind(lockCartItems), userID); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return make([]model.CartLine, 0), nil
	}
	return selectCartItems(ctx, tx, userID)
}

func selectCartItems(ctx context.Context, q sqlx.ExtContext, userID uint64) ([]model.CartLine, error) {
	lines := make([]model.CartLine, 0)
	if err := sqlx.SelectContext(ctx, q, &lines, q.Rebind(getCartItems), userID); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *SQL) UpsertItem(ctx context.Context, req *model.UpsertCartItem) error {
	q := upsertMySQL
	if txrepo.IsPostgres(s.conn) {
		q = upsertPostgres
	}
	_, err := s.conn.ExecContext(ctx, s.conn.Rebind(q), req.UserID, req.ProductID, req.Quantity, req.PriceAtTime)
	return err
}

func (s *SQL) UpdateQuantity(ctx context.Context, userID, productID uint64, quantity int) (bool, error) {
	q := "UPDATE cart_items SET quantity = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND product_id = ?"
	res, err := s.conn.ExecContext(ctx, s.conn.Rebind(q), quantity, userID, productID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQL) DeleteItem(ctx context.Context, userID, productID uint64) (bool, error) {
	res, err := s.conn.ExecContext(ctx, s.conn.Rebind("DELETE FROM cart_items WHERE user_id = ? AND product_id = ?"), userID, productID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteItemsTx removes only the given products from the cart, so lines added
// by a concurrent request after checkout read the cart survive.
func (s *SQL) DeleteItemsTx(ctx context.Context, tx *sqlx.Tx, userID uint64, productIDs []uint64) error {
	if len(productIDs) == 0 {
		return nil
	}
	query, args, err := txrepo.In(tx, "DELETE FROM cart_items WHERE user_id = ? AND product_id IN (?)", userID, productIDs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}
