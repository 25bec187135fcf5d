package memory_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/model"
	"github.com/ecofinds/marketplace/repository/memory"
)

func seeded(t *testing.T) (*memory.Store, uint64) {
	t.Helper()
	s := memory.NewStore()
	s.AddUser(model.UserEntity{ID: 1, Username: "buyer", IsActive: true})
	s.AddUser(model.UserEntity{ID: 2, Username: "seller", IsActive: true})
	id := s.AddProduct(model.ProductDetail{SellerID: 2, Title: "Kettle", Category: "home", Price: decimal.RequireFromString("9.99")})
	return s, id
}

func TestStore_RollbackUndoesWrites(t *testing.T) {
	s, id := seeded(t)
	s.AddCartLine(1, id, 1)
	ctx := context.Background()
	txs := memory.NewTxRepository(s)
	products := memory.NewProductRepository(s)
	orders := memory.NewOrderRepository(s)
	carts := memory.NewCartRepository(s)

	tx, err := txs.BeginTx(ctx)
	require.NoError(t, err)

	n, err := products.UpdateStatusTx(ctx, tx, []uint64{id}, constant.ProductStatusReserved, constant.ProductStatusActive)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	orderID, err := orders.InsertOrderTx(ctx, tx, &model.InsertOrderTxItem{BuyerID: 1, Status: constant.OrderStatusConfirmed})
	require.NoError(t, err)
	require.NoError(t, orders.InsertOrderItemsTx(ctx, tx, orderID, []model.InsertOrderItemTx{{ProductID: id, SellerID: 2, Quantity: 1}}))
	require.NoError(t, carts.DeleteItemsTx(ctx, tx, 1, []uint64{id}))
	assert.Equal(t, 0, s.CartSize(1))

	require.NoError(t, txs.RollbackTx(tx))

	p, _ := s.Product(id)
	assert.Equal(t, constant.ProductStatusActive, p.Status)
	assert.Equal(t, 1, s.CartSize(1))
	assert.Equal(t, 0, s.OrderCount())
	assert.Equal(t, 0, s.OrderItemCount())

	assert.ErrorIs(t, txs.RollbackTx(tx), sql.ErrTxDone)
	assert.ErrorIs(t, txs.CommitTx(tx), sql.ErrTxDone)
}

func TestStore_UncommittedOrderIsHidden(t *testing.T) {
	s, id := seeded(t)
	ctx := context.Background()
	txs := memory.NewTxRepository(s)
	orders := memory.NewOrderRepository(s)

	tx, err := txs.BeginTx(ctx)
	require.NoError(t, err)
	orderID, err := orders.InsertOrderTx(ctx, tx, &model.InsertOrderTxItem{BuyerID: 1, Status: constant.OrderStatusConfirmed})
	require.NoError(t, err)
	require.NoError(t, orders.InsertOrderItemsTx(ctx, tx, orderID, []model.InsertOrderItemTx{{ProductID: id, SellerID: 2, Quantity: 1}}))

	inside, err := orders.GetOrderTx(ctx, tx, orderID)
	require.NoError(t, err)
	require.NotNil(t, inside)
	assert.Equal(t, "buyer", inside.BuyerName)
	require.Len(t, inside.Items, 1)
	assert.Equal(t, "seller", inside.Items[0].SellerName)

	outside, err := orders.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Nil(t, outside)
	list, err := orders.ListByBuyer(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, txs.CommitTx(tx))

	outside, err = orders.GetOrder(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, outside)
	list, err = orders.ListBySeller(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_RowLockBlocksUntilRelease(t *testing.T) {
	s, id := seeded(t)
	ctx := context.Background()
	txs := memory.NewTxRepository(s)
	products := memory.NewProductRepository(s)

	first, err := txs.BeginTx(ctx)
	require.NoError(t, err)
	_, err = products.LockByIDsTx(ctx, first, []uint64{id})
	require.NoError(t, err)

	// Relocking from the holder is a no-op.
	_, err = products.LockByIDsTx(ctx, first, []uint64{id})
	require.NoError(t, err)

	second, err := txs.BeginTx(ctx)
	require.NoError(t, err)
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = products.LockByIDsTx(short, second, []uint64{id})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan error, 1)
	go func() {
		_, err := products.LockByIDsTx(ctx, second, []uint64{id})
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while still held")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, txs.CommitTx(first))
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lock not released by commit")
	}
	require.NoError(t, txs.RollbackTx(second))
}

func TestStore_FailNextIsOneShot(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()
	txs := memory.NewTxRepository(s)
	boom := errors.New("boom")

	s.FailNext("BeginTx", boom)
	_, err := txs.BeginTx(ctx)
	assert.ErrorIs(t, err, boom)

	tx, err := txs.BeginTx(ctx)
	require.NoError(t, err)

	s.FailNext("CommitTx", boom)
	assert.ErrorIs(t, txs.CommitTx(tx), boom)
	require.NoError(t, txs.RollbackTx(tx))
}

func TestStore_UpdateStatusRespectsFromSet(t *testing.T) {
	s, id := seeded(t)
	other := s.AddProduct(model.ProductDetail{SellerID: 2, Title: "Mug", Price: decimal.RequireFromString("3.00"), Status: constant.ProductStatusSold})
	ctx := context.Background()
	txs := memory.NewTxRepository(s)
	products := memory.NewProductRepository(s)

	tx, err := txs.BeginTx(ctx)
	require.NoError(t, err)
	n, err := products.UpdateStatusTx(ctx, tx, []uint64{id, other, 999}, constant.ProductStatusReserved, constant.ProductStatusActive)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, txs.CommitTx(tx))

	p, _ := s.Product(id)
	assert.Equal(t, constant.ProductStatusReserved, p.Status)
	p, _ = s.Product(other)
	assert.Equal(t, constant.ProductStatusSold, p.Status)
}

func TestStore_SeedDemo(t *testing.T) {
	s := memory.NewStore()
	s.SeedDemo()

	list, total, err := memory.NewProductRepository(s).List(context.Background(), &model.ProductFilter{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(len(list)), total)
	assert.NotEmpty(t, list)
	for _, it := range list {
		assert.NotEmpty(t, it.SellerName)
	}
}

func TestStore_CartRowsLockedDuringCheckout(t *testing.T) {
	s, id := seeded(t)
	s.AddCartLine(1, id, 1)
	ctx := context.Background()
	txs := memory.NewTxRepository(s)
	carts := memory.NewCartRepository(s)

	tx, err := txs.BeginTx(ctx)
	require.NoError(t, err)
	lines, err := carts.GetCartItemsTx(ctx, tx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	type result struct {
		found bool
		err   error
	}
	updated := make(chan result, 1)
	go func() {
		found, err := carts.UpdateQuantity(ctx, 1, id, 5)
		updated <- result{found, err}
	}()

	select {
	case <-updated:
		t.Fatal("quantity changed while checkout holds the cart row")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, carts.DeleteItemsTx(ctx, tx, 1, []uint64{id}))
	require.NoError(t, txs.CommitTx(tx))

	select {
	case res := <-updated:
		require.NoError(t, res.err)
		assert.False(t, res.found, "the line was checked out, so there is nothing left to update")
	case <-time.After(time.Second):
		t.Fatal("update not released by commit")
	}
	assert.Equal(t, 0, s.CartSize(1))
}

func TestStore_CartWriteRespectsContext(t *testing.T) {
	s, id := seeded(t)
	s.AddCartLine(1, id, 1)
	ctx := context.Background()
	txs := memory.NewTxRepository(s)
	carts := memory.NewCartRepository(s)

	tx, err := txs.BeginTx(ctx)
	require.NoError(t, err)
	_, err = carts.GetCartItemsTx(ctx, tx, 1)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = carts.DeleteItem(short, 1, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, txs.RollbackTx(tx))
	found, err := carts.DeleteItem(ctx, 1, id)
	require.NoError(t, err)
	assert.True(t, found)
}
