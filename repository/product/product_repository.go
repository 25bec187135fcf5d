package product

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/model"
	txrepo "github.com/ecofinds/marketplace/repository/tx"
)

type SQL struct {
	conn *sqlx.DB
}

type ProductRepository interface {
	List(ctx context.Context, filter *model.ProductFilter) ([]model.ProductListItem, int64, error)
	GetByID(ctx context.Context, id uint64) (*model.ProductDetail, error)
	LockByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []uint64) ([]model.ProductDetail, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, ids []uint64, to constant.ProductStatus, from ...constant.ProductStatus) (int64, error)
}

func NewProductRepository(conn *sqlx.DB) ProductRepository {
	return &SQL{conn: conn}
}

const (
	listProductsBase = `SELECT p.id, p.title, p.category, p.item_condition, p.image_url, p.price, p.status, u.username AS seller_name
FROM products p
JOIN users u ON p.seller_id = u.id
WHERE p.status = ?`

	countProductsBase = `SELECT COUNT(*) FROM products p WHERE p.status = ?`

	getProductDetail = `SELECT p.id, p.seller_id, u.username AS seller_name, p.title, p.description, p.category, p.item_condition,
p.image_url, p.price, p.status, p.created_at
FROM products p
JOIN users u ON p.seller_id = u.id
WHERE p.id = ?`

	// seller_name is not needed by checkout, and joining users would lock their rows too.
	lockProducts = `SELECT p.id, p.seller_id, p.title, p.description, p.category, p.item_condition, p.image_url, p.price, p.status, p.created_at
FROM products p
WHERE p.id IN (?)
ORDER BY p.id
FOR UPDATE`
)

func (s *SQL) List(ctx context.Context, filter *model.ProductFilter) ([]model.ProductListItem, int64, error) {
	where := ""
	args := []interface{}{constant.ProductStatusActive}
	if filter.Category != "" {
		where += " AND p.category = ?"
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		where += " AND LOWER(p.title) LIKE ?"
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	var total int64
	if err := s.conn.GetContext(ctx, &total, s.conn.Rebind(countProductsBase+where), args...); err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PerPage
	query := s.conn.Rebind(listProductsBase + where + " ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?")
	rows, err := s.conn.QueryxContext(ctx, query, append(args, filter.PerPage, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]model.ProductListItem, 0)
	for rows.Next() {
		var it model.ProductListItem
		if err := rows.StructScan(&it); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (s *SQL) GetByID(ctx context.Context, id uint64) (*model.ProductDetail, error) {
	var detail model.ProductDetail
	if err := s.conn.QueryRowxContext(ctx, s.conn.Rebind(getProductDetail), id).StructScan(&detail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &detail, nil
}

// LockByIDsTx locks the product rows in ascending id order so concurrent
// checkouts over overlapping carts cannot deadlock each other.
func (s *SQL) LockByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []uint64) ([]model.ProductDetail, error) {
	if len(ids) == 0 {
		return []model.ProductDetail{}, nil
	}
	query, args, err := txrepo.In(tx, lockProducts, ids)
	if err != nil {
		return nil, err
	}
	products := make([]model.ProductDetail, 0, len(ids))
	if err := tx.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}
	return products, nil
}

// UpdateStatusTx moves the given products to status to. When from is not empty
// only rows currently in one of those statuses are touched. It returns the
// number of rows changed.
func (s *SQL) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, ids []uint64, to constant.ProductStatus, from ...constant.ProductStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := "UPDATE products SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id IN (?)"
	args := []interface{}{to, ids}
	if len(from) > 0 {
		q += " AND status IN (?)"
		args = append(args, from)
	}
	query, qargs, err := txrepo.In(tx, q, args...)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, query, qargs...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
