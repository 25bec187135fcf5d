package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apporder "github.com/ecofinds/marketplace/application/order"
	"github.com/ecofinds/marketplace/cmd/config"
	"github.com/ecofinds/marketplace/constant"
	redismocks "github.com/ecofinds/marketplace/mocks/repository/redis"
	"github.com/ecofinds/marketplace/model"
	"github.com/ecofinds/marketplace/pkg/metrics"
	"github.com/ecofinds/marketplace/repository/memory"
	redisrepo "github.com/ecofinds/marketplace/repository/redis"
	cerr "github.com/ecofinds/marketplace/utils/errors"
)

const (
	buyerID  uint64 = 1
	sellerID uint64 = 2
	otherID  uint64 = 3
)

type engine struct {
	store   *memory.Store
	app     apporder.OrderApp
	metrics *metrics.OrderMetrics
}

func newEngine(t *testing.T, redis redisrepo.Repository) *engine {
	t.Helper()
	return newEngineWithConfig(t, testConfig(), redis)
}

func newEngineWithConfig(t *testing.T, cfg *config.Config, redis redisrepo.Repository) *engine {
	t.Helper()
	store := memory.NewStore()
	store.AddUser(model.UserEntity{ID: buyerID, Username: "buyer", IsActive: true})
	store.AddUser(model.UserEntity{ID: sellerID, Username: "seller", IsActive: true})
	store.AddUser(model.UserEntity{ID: otherID, Username: "other", IsActive: true})

	m := metrics.NewOrderMetrics(prometheus.NewRegistry())
	app := apporder.NewOrderApp(
		cfg,
		memory.NewTxRepository(store),
		memory.NewOrderRepository(store),
		memory.NewCartRepository(store),
		memory.NewProductRepository(store),
		redis,
		nil,
		m,
	)
	return &engine{store: store, app: app, metrics: m}
}

func (e *engine) listing(price string) uint64 {
	return e.store.AddProduct(model.ProductDetail{
		SellerID:    sellerID,
		Title:       "Oak Chair",
		Description: "Solid oak, lightly used",
		Category:    "furniture",
		Condition:   "good",
		Price:       dec(price),
	})
}

func (e *engine) status(t *testing.T, productID uint64) constant.ProductStatus {
	t.Helper()
	p, ok := e.store.Product(productID)
	require.True(t, ok)
	return p.Status
}

func TestCheckout_SingleItemTotals(t *testing.T) {
	e := newEngine(t, nil)
	pid := e.listing("25.00")
	e.store.AddCartLine(buyerID, pid, 1)

	order, err := e.app.Checkout(context.Background(), buyerID, &model.CheckoutRequest{ShippingAddress: "1 Green St"})
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(dec("25.00")), "subtotal %s", order.Subtotal)
	assert.True(t, order.TaxAmount.Equal(dec("2.00")), "tax %s", order.TaxAmount)
	assert.True(t, order.TotalAmount.Equal(dec("27.00")), "total %s", order.TotalAmount)
	assert.Equal(t, constant.OrderStatusConfirmed, order.Status)
	assert.Equal(t, constant.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, "1 Green St", order.ShippingAddress)
	assert.Equal(t, "buyer", order.BuyerName)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, pid, item.ProductID)
	assert.Equal(t, sellerID, item.SellerID)
	assert.Equal(t, "seller", item.SellerName)
	assert.Equal(t, "Oak Chair", item.Snapshot.Title)
	assert.Equal(t, constant.ProductStatusReserved, item.ProductStatus)

	assert.Equal(t, 0, e.store.CartSize(buyerID))
	assert.Equal(t, constant.ProductStatusReserved, e.status(t, pid))
	assert.Equal(t, 1, e.store.OrderCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.Checkouts.WithLabelValues("success")))
}

func TestCheckout_TotalsMatchLineItems(t *testing.T) {
	e := newEngine(t, nil)
	a := e.listing("19.99")
	b := e.listing("5.50")
	e.store.AddCartLine(buyerID, a, 1)
	e.store.AddCartLine(buyerID, b, 2)

	order, err := e.app.Checkout(context.Background(), buyerID, nil)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, it := range order.Items {
		sum = sum.Add(it.LineTotal())
	}
	assert.True(t, sum.Equal(order.Subtotal), "items %s subtotal %s", sum, order.Subtotal)
	assert.True(t, order.Subtotal.Equal(dec("30.99")))
	assert.True(t, order.TaxAmount.Equal(dec("2.48")), "tax %s", order.TaxAmount)
	assert.True(t, order.TotalAmount.Equal(order.Subtotal.Add(order.TaxAmount)))
}

func TestCheckout_TwoLineCartAtConfiguredRate(t *testing.T) {
	tests := []struct {
		name      string
		taxRate   string
		wantTax   string
		wantTotal string
	}{
		{name: "default rate", taxRate: "0.08", wantTax: "2.00", wantTotal: "27.00"},
		{name: "ten percent", taxRate: "0.10", wantTax: "2.50", wantTotal: "27.50"},
		{name: "tax free", taxRate: "0", wantTax: "0", wantTotal: "25.00"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Order.TaxRate = dec(tt.taxRate)
			e := newEngineWithConfig(t, cfg, nil)
			a := e.listing("10.00")
			b := e.listing("5.00")
			e.store.AddCartLine(buyerID, a, 2)
			e.store.AddCartLine(buyerID, b, 1)

			order, err := e.app.Checkout(context.Background(), buyerID, nil)
			require.NoError(t, err)

			assert.True(t, order.Subtotal.Equal(dec("25.00")), "subtotal %s", order.Subtotal)
			assert.True(t, order.TaxAmount.Equal(dec(tt.wantTax)), "tax %s", order.TaxAmount)
			assert.True(t, order.TotalAmount.Equal(dec(tt.wantTotal)), "total %s", order.TotalAmount)
			require.Len(t, order.Items, 2)

			sum := decimal.Zero
			for _, it := range order.Items {
				sum = sum.Add(it.LineTotal())
			}
			assert.True(t, sum.Equal(order.Subtotal), "items %s subtotal %s", sum, order.Subtotal)
			assert.Equal(t, 0, e.store.CartSize(buyerID))
			assert.Equal(t, constant.ProductStatusReserved, e.status(t, a))
			assert.Equal(t, constant.ProductStatusReserved, e.status(t, b))
		})
	}
}

func TestCheckout_UsesCurrentPrice(t *testing.T) {
	e := newEngine(t, nil)
	pid := e.listing("25.00")
	e.store.AddCartLine(buyerID, pid, 1)
	e.store.SetProductPrice(pid, dec("30.00"))

	order, err := e.app.Checkout(context.Background(), buyerID, nil)
	require.NoError(t, err)
	assert.True(t, order.Subtotal.Equal(dec("30.00")), "subtotal %s", order.Subtotal)
	assert.True(t, order.Items[0].UnitPrice.Equal(dec("30.00")))
}

func TestCheckout_PriceFrozenAfterPurchase(t *testing.T) {
	e := newEngine(t, nil)
	pid := e.listing("25.00")
	e.store.AddCartLine(buyerID, pid, 1)

	placed, err := e.app.Checkout(context.Background(), buyerID, nil)
	require.NoError(t, err)

	e.store.SetProductPrice(pid, dec("99.00"))

	got, err := e.app.GetOrder(context.Background(), placed.ID, buyerID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].UnitPrice.Equal(dec("25.00")))
	assert.True(t, got.TotalAmount.Equal(dec("27.00")))
}

func TestCheckout_EmptyCart(t *testing.T) {
	e := newEngine(t, nil)

	_, err := e.app.Checkout(context.Background(), buyerID, nil)
	require.Error(t, err)
	assert.True(t, cerr.IsType(err, constant.ErrEmptyCart))
	assert.Equal(t, 0, e.store.OrderCount())
	assert.Equal(t, 0, e.store.OrderItemCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.Checkouts.WithLabelValues("empty_cart")))
}

func TestCheckout_UnavailableProductRollsBack(t *testing.T) {
	e := newEngine(t, nil)
	avail := e.listing("10.00")
	gone := e.listing("15.00")
	e.store.AddCartLine(buyerID, avail, 1)
	e.store.AddCartLine(buyerID, gone, 1)
	e.store.SetProductStatus(gone, constant.ProductStatusSold)

	_, err := e.app.Checkout(context.Background(), buyerID, nil)
	require.Error(t, err)
	assert.True(t, cerr.IsType(err, constant.ErrProductUnavailable))

	assert.Equal(t, 2, e.store.CartSize(buyerID))
	assert.Equal(t, constant.ProductStatusActive, e.status(t, avail))
	assert.Equal(t, 0, e.store.OrderCount())
	assert.Equal(t, 0, e.store.OrderItemCount())
}

func TestCheckout_PersistenceFailureRollsBack(t *testing.T) {
	for _, op := range []string{"InsertOrderItemsTx", "UpdateStatusTx", "DeleteItemsTx", "GetOrderTx", "CommitTx"} {
		op := op
		t.Run(op, func(t *testing.T) {
			e := newEngine(t, nil)
			a := e.listing("10.00")
			b := e.listing("15.00")
			e.store.AddCartLine(buyerID, a, 1)
			e.store.AddCartLine(buyerID, b, 1)
			e.store.FailNext(op, errors.New("disk full"))

			_, err := e.app.Checkout(context.Background(), buyerID, nil)
			require.Error(t, err)
			assert.True(t, cerr.IsType(err, constant.ErrInternal))

			assert.Equal(t, 2, e.store.CartSize(buyerID))
			assert.Equal(t, constant.ProductStatusActive, e.status(t, a))
			assert.Equal(t, constant.ProductStatusActive, e.status(t, b))
			assert.Equal(t, 0, e.store.OrderCount())
			assert.Equal(t, 0, e.store.OrderItemCount())
		})
	}
}

func TestCheckout_ConcurrentBuyersOneWins(t *testing.T) {
	e := newEngine(t, nil)
	pid := e.listing("40.00")
	e.store.AddCartLine(buyerID, pid, 1)
	e.store.AddCartLine(otherID, pid, 1)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, buyer := range []uint64{buyerID, otherID} {
		wg.Add(1)
		go func(i int, buyer uint64) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, errs[i] = e.app.Checkout(ctx, buyer, nil)
		}(i, buyer)
	}
	wg.Wait()

	succeeded, unavailable := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case cerr.IsType(err, constant.ErrProductUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, unavailable)
	assert.Equal(t, 1, e.store.OrderCount())
	assert.Equal(t, constant.ProductStatusReserved, e.status(t, pid))
	assert.Equal(t, 1, e.store.CartSize(buyerID)+e.store.CartSize(otherID))
}

func TestCheckout_IdempotencyKeyReplays(t *testing.T) {
	redis := redismocks.NewRedisRepository(t)
	var stored string
	key := redisrepo.CheckoutIdempotencyKey(buyerID, "k-1")
	redis.On("Get", mock.Anything, key).Return(func(context.Context, string) (string, error) { return stored, nil })
	redis.On("SetWithTTL", mock.Anything, key, mock.Anything, time.Hour).Run(func(args mock.Arguments) {
		stored = args.String(2)
	}).Return(nil).Once()

	e := newEngine(t, redis)
	pid := e.listing("25.00")
	e.store.AddCartLine(buyerID, pid, 1)

	first, err := e.app.Checkout(context.Background(), buyerID, &model.CheckoutRequest{IdempotencyKey: "k-1"})
	require.NoError(t, err)

	second, err := e.app.Checkout(context.Background(), buyerID, &model.CheckoutRequest{IdempotencyKey: "k-1"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, e.store.OrderCount())
}

func checkedOut(t *testing.T, e *engine) (*model.Order, uint64) {
	t.Helper()
	pid := e.listing("25.00")
	e.store.AddCartLine(buyerID, pid, 1)
	order, err := e.app.Checkout(context.Background(), buyerID, nil)
	require.NoError(t, err)
	return order, pid
}

func TestUpdateOrderStatus_DeliveredSellsProducts(t *testing.T) {
	e := newEngine(t, nil)
	order, pid := checkedOut(t, e)
	ctx := context.Background()

	shipped, err := e.app.UpdateOrderStatus(ctx, order.ID, sellerID, &model.UpdateOrderStatusRequest{Status: constant.OrderStatusShipped, TrackingNumber: "TRK-9"})
	require.NoError(t, err)
	assert.Equal(t, "TRK-9", shipped.TrackingNumber)
	assert.Equal(t, constant.ProductStatusReserved, e.status(t, pid))

	delivered, err := e.app.UpdateOrderStatus(ctx, order.ID, buyerID, &model.UpdateOrderStatusRequest{Status: constant.OrderStatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, constant.OrderStatusDelivered, delivered.Status)
	assert.Equal(t, constant.ProductStatusSold, e.status(t, pid))
	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.Transitions.WithLabelValues("shipped", "delivered")))
}

func TestUpdateOrderStatus_CancelReleasesProducts(t *testing.T) {
	e := newEngine(t, nil)
	order, pid := checkedOut(t, e)

	cancelled, err := e.app.UpdateOrderStatus(context.Background(), order.ID, buyerID, &model.UpdateOrderStatusRequest{Status: constant.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, constant.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, constant.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, constant.ProductStatusActive, e.status(t, pid))
}

func TestUpdateOrderStatus_Idempotent(t *testing.T) {
	e := newEngine(t, nil)
	order, pid := checkedOut(t, e)
	ctx := context.Background()
	req := &model.UpdateOrderStatusRequest{Status: constant.OrderStatusCancelled}

	_, err := e.app.UpdateOrderStatus(ctx, order.ID, buyerID, req)
	require.NoError(t, err)

	// relisted after cancellation; a repeated cancel must not touch it
	e.store.SetProductStatus(pid, constant.ProductStatusInactive)

	again, err := e.app.UpdateOrderStatus(ctx, order.ID, buyerID, req)
	require.NoError(t, err)
	assert.Equal(t, constant.OrderStatusCancelled, again.Status)
	assert.Equal(t, constant.ProductStatusInactive, e.status(t, pid))
	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.Transitions.WithLabelValues("confirmed", "cancelled")))
}

func TestUpdateOrderStatus_Rejections(t *testing.T) {
	e := newEngine(t, nil)
	order, pid := checkedOut(t, e)
	ctx := context.Background()

	_, err := e.app.UpdateOrderStatus(ctx, order.ID, otherID, &model.UpdateOrderStatusRequest{Status: constant.OrderStatusShipped})
	assert.True(t, cerr.IsType(err, constant.ErrForbidden), "got %v", err)

	_, err = e.app.UpdateOrderStatus(ctx, order.ID+100, buyerID, &model.UpdateOrderStatusRequest{Status: constant.OrderStatusShipped})
	assert.True(t, cerr.IsType(err, constant.ErrNotFound), "got %v", err)

	_, err = e.app.UpdateOrderStatus(ctx, order.ID, buyerID, &model.UpdateOrderStatusRequest{Status: constant.OrderStatusCancelled})
	require.NoError(t, err)

	_, err = e.app.UpdateOrderStatus(ctx, order.ID, sellerID, &model.UpdateOrderStatusRequest{Status: constant.OrderStatusShipped})
	assert.True(t, cerr.IsType(err, constant.ErrInvalidTransition), "got %v", err)
	assert.Equal(t, constant.ProductStatusActive, e.status(t, pid))
}

func TestListOrdersAndSales(t *testing.T) {
	e := newEngine(t, nil)
	first, _ := checkedOut(t, e)
	second, _ := checkedOut(t, e)
	ctx := context.Background()

	orders, err := e.app.ListOrders(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)

	sales, err := e.app.ListSales(ctx, sellerID)
	require.NoError(t, err)
	assert.Len(t, sales, 2)

	none, err := e.app.ListSales(ctx, otherID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
