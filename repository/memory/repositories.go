package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/model"
	cartrepo "github.com/ecofinds/marketplace/repository/cart"
	orderrepo "github.com/ecofinds/marketplace/repository/order"
	productrepo "github.com/ecofinds/marketplace/repository/product"
	txrepo "github.com/ecofinds/marketplace/repository/tx"
	userrepo "github.com/ecofinds/marketplace/repository/user"
)

type txRepo struct{ s *Store }

func NewTxRepository(s *Store) txrepo.TxRepository { return &txRepo{s: s} }

func (r *txRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) { return r.s.begin(ctx) }

func (r *txRepo) CommitTx(tx *sqlx.Tx) error { return r.s.commit(tx) }

func (r *txRepo) RollbackTx(tx *sqlx.Tx) error { return r.s.rollback(tx) }

type userRepo struct{ s *Store }

func NewUserRepository(s *Store) userrepo.UserRepository { return &userRepo{s: s} }

func (r *userRepo) GetByID(ctx context.Context, id uint64) (*model.UserEntity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type productRepo struct{ s *Store }

func NewProductRepository(s *Store) productrepo.ProductRepository { return &productRepo{s: s} }

func (r *productRepo) List(ctx context.Context, filter *model.ProductFilter) ([]model.ProductListItem, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("ListProducts"); err != nil {
		return nil, 0, err
	}

	matched := make([]model.ProductDetail, 0)
	for _, p := range r.s.products {
		if p.Status != constant.ProductStatusActive {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.PerPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.PerPage
	if end > len(matched) {
		end = len(matched)
	}

	items := make([]model.ProductListItem, 0, end-start)
	for _, p := range matched[start:end] {
		items = append(items, model.ProductListItem{
			ID:         p.ID,
			Title:      p.Title,
			Category:   p.Category,
			Condition:  p.Condition,
			ImageURL:   p.ImageURL,
			Price:      p.Price,
			Status:     p.Status,
			SellerName: r.s.username(p.SellerID),
		})
	}
	return items, total, nil
}

func (r *productRepo) GetByID(ctx context.Context, id uint64) (*model.ProductDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("GetProductByID"); err != nil {
		return nil, err
	}
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	p.SellerName = r.s.username(p.SellerID)
	return &p, nil
}

func (r *productRepo) LockByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []uint64) ([]model.ProductDetail, error) {
	if err := r.s.lockProducts(ctx, tx, ids); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("LockByIDsTx"); err != nil {
		return nil, err
	}
	out := make([]model.ProductDetail, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *productRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, ids []uint64, to constant.ProductStatus, from ...constant.ProductStatus) (int64, error) {
	if err := r.s.lockProducts(ctx, tx, ids); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("UpdateStatusTx"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		p, ok := r.s.products[id]
		if !ok || !statusIn(p.Status, from) {
			continue
		}
		old := p
		p.Status = to
		r.s.products[id] = p
		if err := r.s.onUndo(tx, func() { r.s.products[id] = old }); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func statusIn(s constant.ProductStatus, set []constant.ProductStatus) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

type cartRepo struct{ s *Store }

func NewCartRepository(s *Store) cartrepo.CartRepository { return &cartRepo{s: s} }

func (r *cartRepo) GetCartItems(ctx context.Context, userID uint64) ([]model.CartLine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("GetCartItems"); err != nil {
		return nil, err
	}
	return r.lines(userID), nil
}

// GetCartItemsTx locks every cart row of the user for tx, then reads them.
func (r *cartRepo) GetCartItemsTx(ctx context.Context, tx *sqlx.Tx, userID uint64) ([]model.CartLine, error) {
	r.s.mu.Lock()
	if err := r.s.fail("GetCartItemsTx"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	keys := make([]cartKey, 0)
	for k := range r.s.cart {
		if k.userID == userID {
			keys = append(keys, k)
		}
	}
	r.s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].productID < keys[j].productID })
	for _, k := range keys {
		if err := r.s.lock(ctx, tx, cartLockKey(k)); err != nil {
			return nil, err
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.lines(userID), nil
}

// lines joins a user's cart rows with products. Callers hold s.mu.
func (r *cartRepo) lines(userID uint64) []model.CartLine {
	out := make([]model.CartLine, 0)
	for k, row := range r.s.cart {
		if k.userID != userID {
			continue
		}
		p, ok := r.s.products[k.productID]
		if !ok {
			continue
		}
		out = append(out, model.CartLine{
			ID:            row.id,
			UserID:        userID,
			ProductID:     k.productID,
			Quantity:      row.quantity,
			PriceAtTime:   row.priceAtTime,
			Title:         p.Title,
			ImageURL:      p.ImageURL,
			CurrentPrice:  p.Price,
			ProductStatus: p.Status,
			SellerID:      p.SellerID,
			CreatedAt:     row.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *cartRepo) UpsertItem(ctx context.Context, req *model.UpsertCartItem) error {
	k := cartKey{userID: req.UserID, productID: req.ProductID}
	return r.s.autocommit(ctx, cartLockKey(k), func() error {
		if err := r.s.fail("UpsertItem"); err != nil {
			return err
		}
		if row, ok := r.s.cart[k]; ok {
			row.quantity = req.Quantity
			row.priceAtTime = req.PriceAtTime
			return nil
		}
		r.s.cart[k] = &cartRow{id: r.s.nextID(), quantity: req.Quantity, priceAtTime: req.PriceAtTime, createdAt: r.s.now()}
		return nil
	})
}

func (r *cartRepo) UpdateQuantity(ctx context.Context, userID, productID uint64, quantity int) (bool, error) {
	k := cartKey{userID: userID, productID: productID}
	found := false
	err := r.s.autocommit(ctx, cartLockKey(k), func() error {
		if err := r.s.fail("UpdateQuantity"); err != nil {
			return err
		}
		row, ok := r.s.cart[k]
		if !ok {
			return nil
		}
		row.quantity = quantity
		found = true
		return nil
	})
	return found, err
}

func (r *cartRepo) DeleteItem(ctx context.Context, userID, productID uint64) (bool, error) {
	k := cartKey{userID: userID, productID: productID}
	found := false
	err := r.s.autocommit(ctx, cartLockKey(k), func() error {
		if err := r.s.fail("DeleteItem"); err != nil {
			return err
		}
		if _, ok := r.s.cart[k]; !ok {
			return nil
		}
		delete(r.s.cart, k)
		found = true
		return nil
	})
	return found, err
}

func (r *cartRepo) DeleteItemsTx(ctx context.Context, tx *sqlx.Tx, userID uint64, productIDs []uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("DeleteItemsTx"); err != nil {
		return err
	}
	for _, pid := range productIDs {
		k := cartKey{userID: userID, productID: pid}
		row, ok := r.s.cart[k]
		if !ok {
			continue
		}
		delete(r.s.cart, k)
		if err := r.s.onUndo(tx, func() { r.s.cart[k] = row }); err != nil {
			return err
		}
	}
	return nil
}

// AddCartLine seeds a cart line priced at the product's current price.
func (s *Store) AddCartLine(userID, productID uint64, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[productID]
	s.cart[cartKey{userID: userID, productID: productID}] = &cartRow{
		id:          s.nextID(),
		quantity:    quantity,
		priceAtTime: p.Price,
		createdAt:   s.now(),
	}
}

type orderRepo struct{ s *Store }

func NewOrderRepository(s *Store) orderrepo.OrderRepository { return &orderRepo{s: s} }

func (r *orderRepo) InsertOrderTx(ctx context.Context, tx *sqlx.Tx, req *model.InsertOrderTxItem) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("InsertOrderTx"); err != nil {
		return 0, err
	}
	id := r.s.nextID()
	now := r.s.now()
	r.s.orders[id] = &orderRow{
		owner: tx,
		order: model.Order{
			ID:              id,
			BuyerID:         req.BuyerID,
			Subtotal:        req.Subtotal,
			TaxAmount:       req.TaxAmount,
			TotalAmount:     req.TotalAmount,
			Status:          req.Status,
			PaymentStatus:   req.PaymentStatus,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: req.ShippingAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
	if err := r.s.onUndo(tx, func() { delete(r.s.orders, id) }); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *orderRepo) InsertOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID uint64, items []model.InsertOrderItemTx) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("InsertOrderItemsTx"); err != nil {
		return err
	}
	prev := r.s.items[orderID]
	now := r.s.now()
	next := append([]model.OrderItem(nil), prev...)
	for _, it := range items {
		next = append(next, model.OrderItem{
			ID:        r.s.nextID(),
			OrderID:   orderID,
			ProductID: it.ProductID,
			SellerID:  it.SellerID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Snapshot:  it.Snapshot,
			CreatedAt: now,
		})
	}
	r.s.items[orderID] = next
	return r.s.onUndo(tx, func() {
		if prev == nil {
			delete(r.s.items, orderID)
			return
		}
		r.s.items[orderID] = prev
	})
}

func (r *orderRepo) UpdateOrderStatusTx(ctx context.Context, tx *sqlx.Tx, req *model.UpdateOrderStatusTx) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("UpdateOrderStatusTx"); err != nil {
		return err
	}
	row, ok := r.s.orders[req.OrderID]
	if !ok || !row.visible(tx) {
		return nil
	}
	old := row.order
	row.order.Status = req.Status
	row.order.PaymentStatus = req.PaymentStatus
	row.order.TrackingNumber = req.TrackingNumber
	row.order.UpdatedAt = r.s.now()
	return r.s.onUndo(tx, func() { row.order = old })
}

func (r *orderRepo) LockOrderTx(ctx context.Context, tx *sqlx.Tx, orderID uint64) (*model.Order, error) {
	if err := r.s.lock(ctx, tx, orderLockKey(orderID)); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("LockOrderTx"); err != nil {
		return nil, err
	}
	row, ok := r.s.orders[orderID]
	if !ok || !row.visible(tx) {
		return nil, nil
	}
	o := row.order
	return &o, nil
}

func (r *orderRepo) GetOrderTx(ctx context.Context, tx *sqlx.Tx, orderID uint64) (*model.Order, error) {
	return r.get(tx, orderID, "GetOrderTx")
}

func (r *orderRepo) GetOrder(ctx context.Context, orderID uint64) (*model.Order, error) {
	return r.get(nil, orderID, "GetOrder")
}

func (r *orderRepo) get(tx *sqlx.Tx, orderID uint64, op string) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return nil, err
	}
	row, ok := r.s.orders[orderID]
	if !ok || !row.visible(tx) {
		return nil, nil
	}
	o := r.s.assembleOrder(row)
	return &o, nil
}

func (r *orderRepo) ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Order, error) {
	return r.list("ListByBuyer", func(o *model.Order) bool { return o.BuyerID == buyerID })
}

func (r *orderRepo) ListBySeller(ctx context.Context, sellerID uint64) ([]model.Order, error) {
	return r.list("ListBySeller", func(o *model.Order) bool { return o.HasSeller(sellerID) })
}

func (r *orderRepo) list(op string, match func(o *model.Order) bool) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(op); err != nil {
		return nil, err
	}
	out := make([]model.Order, 0)
	for _, row := range r.s.orders {
		if !row.visible(nil) {
			continue
		}
		o := r.s.assembleOrder(row)
		if match(&o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
