// Package memory implements the repository interfaces over in-process maps.
//
// Transactions are emulated: writes apply immediately and are undone on
// rollback, rows locked FOR UPDATE stay locked until commit or rollback, and
// orders inserted by an open transaction are hidden from other readers. It
// backs DB_DRIVER=memory and the engine's behavioural tests.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/model"
)

type cartKey struct {
	userID    uint64
	productID uint64
}

type cartRow struct {
	id          uint64
	quantity    int
	priceAtTime decimal.Decimal
	createdAt   time.Time
}

type orderRow struct {
	order model.Order
	owner *sqlx.Tx
}

type txState struct {
	undo []func()
	held []string
}

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	seq      uint64
	users    map[uint64]model.UserEntity
	products map[uint64]model.ProductDetail
	cart     map[cartKey]*cartRow
	orders   map[uint64]*orderRow
	items    map[uint64][]model.OrderItem
	locks    map[string]chan struct{}
	txs      map[*sqlx.Tx]*txState
	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		now:      func() time.Time { return time.Now().UTC() },
		users:    make(map[uint64]model.UserEntity),
		products: make(map[uint64]model.ProductDetail),
		cart:     make(map[cartKey]*cartRow),
		orders:   make(map[uint64]*orderRow),
		items:    make(map[uint64][]model.OrderItem),
		locks:    make(map[string]chan struct{}),
		txs:      make(map[*sqlx.Tx]*txState),
		failures: make(map[string]error),
	}
}

// AddUser seeds an account.
func (s *Store) AddUser(u model.UserEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddProduct seeds a product and returns its id. A zero ID is assigned.
func (s *Store) AddProduct(p model.ProductDetail) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID()
	} else if p.ID > s.seq {
		s.seq = p.ID
	}
	if p.Status == "" {
		p.Status = constant.ProductStatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.products[p.ID] = p
	return p.ID
}

// Product returns the current state of a product.
func (s *Store) Product(id uint64) (model.ProductDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// SetProductPrice changes a listing price outside any transaction.
func (s *Store) SetProductPrice(id uint64, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.Price = price
		s.products[id] = p
	}
}

// SetProductStatus changes a listing status outside any transaction.
func (s *Store) SetProductStatus(id uint64, status constant.ProductStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.Status = status
		s.products[id] = p
	}
}

// CartSize returns the number of cart lines a user holds.
func (s *Store) CartSize(userID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.cart {
		if k.userID == userID {
			n++
		}
	}
	return n
}

// OrderCount returns the number of committed orders.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.orders {
		if o.owner == nil {
			n++
		}
	}
	return n
}

// OrderItemCount returns the number of stored order items, committed or not.
func (s *Store) OrderItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, its := range s.items {
		n += len(its)
	}
	return n
}

// FailNext makes the next call of the named repository method return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

// begin must be called without s.mu held.
func (s *Store) begin(ctx context.Context) (*sqlx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("BeginTx"); err != nil {
		return nil, err
	}
	tx := &sqlx.Tx{}
	s.txs[tx] = &txState{}
	return tx, nil
}

func (s *Store) commit(tx *sqlx.Tx) error {
	s.mu.Lock()
	st, ok := s.txs[tx]
	if !ok {
		s.mu.Unlock()
		return sql.ErrTxDone
	}
	if err := s.fail("CommitTx"); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, o := range s.orders {
		if o.owner == tx {
			o.owner = nil
		}
	}
	delete(s.txs, tx)
	s.mu.Unlock()
	s.release(st)
	return nil
}

func (s *Store) rollback(tx *sqlx.Tx) error {
	s.mu.Lock()
	st, ok := s.txs[tx]
	if !ok {
		s.mu.Unlock()
		return sql.ErrTxDone
	}
	for i := len(st.undo) - 1; i >= 0; i-- {
		st.undo[i]()
	}
	delete(s.txs, tx)
	s.mu.Unlock()
	s.release(st)
	return nil
}

func (s *Store) release(st *txState) {
	for _, key := range st.held {
		s.mu.Lock()
		ch := s.locks[key]
		s.mu.Unlock()
		<-ch
	}
}

// lock takes a row lock for tx, blocking until the holder finishes or ctx ends.
func (s *Store) lock(ctx context.Context, tx *sqlx.Tx, key string) error {
	s.mu.Lock()
	st, ok := s.txs[tx]
	if !ok {
		s.mu.Unlock()
		return sql.ErrTxDone
	}
	for _, h := range st.held {
		if h == key {
			s.mu.Unlock()
			return nil
		}
	}
	ch := s.lockChan(key)
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	st.held = append(st.held, key)
	s.mu.Unlock()
	return nil
}

// lockChan returns the lock for key, creating it. Callers hold s.mu.
func (s *Store) lockChan(key string) chan struct{} {
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

// autocommit runs fn as a single-statement write outside any transaction: it
// waits for the row lock on key, like an UPDATE on a row locked FOR UPDATE.
func (s *Store) autocommit(ctx context.Context, key string, fn func() error) error {
	s.mu.Lock()
	ch := s.lockChan(key)
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-ch }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) lockProducts(ctx context.Context, tx *sqlx.Tx, ids []uint64) error {
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		if err := s.lock(ctx, tx, productLockKey(id)); err != nil {
			return err
		}
	}
	return nil
}

// onUndo registers fn to run if tx rolls back. Callers hold s.mu.
func (s *Store) onUndo(tx *sqlx.Tx, fn func()) error {
	st, ok := s.txs[tx]
	if !ok {
		return sql.ErrTxDone
	}
	st.undo = append(st.undo, fn)
	return nil
}

func productLockKey(id uint64) string { return fmt.Sprintf("product:%d", id) }

func orderLockKey(id uint64) string { return fmt.Sprintf("order:%d", id) }

func cartLockKey(k cartKey) string { return fmt.Sprintf("cart:%d:%d", k.userID, k.productID) }

func (s *Store) username(id uint64) string {
	return s.users[id].Username
}

// visible reports whether an order row can be read from tx (nil = no tx).
func (o *orderRow) visible(tx *sqlx.Tx) bool {
	return o.owner == nil || o.owner == tx
}

// assembleOrder copies an order and its items with joined names. Callers hold s.mu.
func (s *Store) assembleOrder(row *orderRow) model.Order {
	o := row.order
	o.BuyerName = s.username(o.BuyerID)
	o.Items = make([]model.OrderItem, 0, len(s.items[o.ID]))
	for _, it := range s.items[o.ID] {
		it.SellerName = s.username(it.SellerID)
		it.ProductStatus = constant.ProductStatusInactive
		if p, ok := s.products[it.ProductID]; ok {
			it.ProductStatus = p.Status
		}
		o.Items = append(o.Items, it)
	}
	return o
}
