package order

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecofinds/marketplace/cmd/config"
	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/model"
	"github.com/ecofinds/marketplace/pkg/metrics"
	cartrepo "github.com/ecofinds/marketplace/repository/cart"
	orderrepo "github.com/ecofinds/marketplace/repository/order"
	productrepo "github.com/ecofinds/marketplace/repository/product"
	redisrepo "github.com/ecofinds/marketplace/repository/redis"
	txrepo "github.com/ecofinds/marketplace/repository/tx"
	"github.com/ecofinds/marketplace/thirdparty/rabbitmq"
	"github.com/ecofinds/marketplace/utils/errors"
	"github.com/ecofinds/marketplace/utils/logger"
)

const publishTimeout = 5 * time.Second

type OrderApp interface {
	Checkout(ctx context.Context, buyerID uint64, req *model.CheckoutRequest) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, actorID uint64, req *model.UpdateOrderStatusRequest) (*model.Order, error)
	GetOrder(ctx context.Context, orderID, actorID uint64) (*model.Order, error)
	ListOrders(ctx context.Context, buyerID uint64) ([]model.Order, error)
	ListSales(ctx context.Context, sellerID uint64) ([]model.Order, error)
}

type orderAppImpl struct {
	config      *config.Config
	txRepo      txrepo.TxRepository
	orderRepo   orderrepo.OrderRepository
	cartRepo    cartrepo.CartRepository
	productRepo productrepo.ProductRepository
	redisRepo   redisrepo.Repository
	publisher   rabbitmq.EventPublisher
	metrics     *metrics.OrderMetrics
}

// NewOrderApp wires the checkout engine. redisRepo, publisher and metrics may be nil.
func NewOrderApp(
	config *config.Config,
	txRepo txrepo.TxRepository,
	orderRepo orderrepo.OrderRepository,
	cartRepo cartrepo.CartRepository,
	productRepo productrepo.ProductRepository,
	redisRepo redisrepo.Repository,
	publisher rabbitmq.EventPublisher,
	metrics *metrics.OrderMetrics,
) OrderApp {
	return &orderAppImpl{
		config:      config,
		txRepo:      txRepo,
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		redisRepo:   redisRepo,
		publisher:   publisher,
		metrics:     metrics,
	}
}

func (s *orderAppImpl) Checkout(ctx context.Context, buyerID uint64, req *model.CheckoutRequest) (*model.Order, error) {
	if req == nil {
		req = &model.CheckoutRequest{}
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return nil, errors.SetCustomError(constant.ErrInvalidRequest)
	}

	if req.IdempotencyKey != "" {
		if order := s.replayCheckout(ctx, buyerID, req.IdempotencyKey); order != nil {
			return order, nil
		}
	}

	order, err := s.checkoutTx(ctx, buyerID, req)
	if err != nil {
		s.metrics.Checkout(checkoutOutcome(err))
		return nil, err
	}
	s.metrics.Checkout("success")

	if req.IdempotencyKey != "" {
		s.rememberCheckout(ctx, buyerID, req.IdempotencyKey, order.ID)
	}
	s.publish(ctx, constant.EventOrderCreated, order)

	return order, nil
}

func (s *orderAppImpl) checkoutTx(ctx context.Context, buyerID uint64, req *model.CheckoutRequest) (*model.Order, error) {
	log := logger.FromContext(ctx)

	tx, err := s.txRepo.BeginTx(ctx)
	if err != nil {
		log.Error("[Checkout] begin tx", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = s.txRepo.RollbackTx(tx)
		}
	}()

	lines, err := s.cartRepo.GetCartItemsTx(ctx, tx, buyerID)
	if err != nil {
		log.Error("[Checkout] get cart items", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if len(lines) == 0 {
		return nil, errors.SetCustomError(constant.ErrEmptyCart)
	}

	productIDs := make([]uint64, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}

	// availability is only trustworthy once the rows are locked
	products, err := s.productRepo.LockByIDsTx(ctx, tx, productIDs)
	if err != nil {
		log.Error("[Checkout] lock products", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	byID := make(map[uint64]model.ProductDetail, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	subtotal := decimal.Zero
	items := make([]model.InsertOrderItemTx, 0, len(lines))
	for _, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok || p.Status != constant.ProductStatusActive {
			log.Info("[Checkout] product unavailable", zap.Uint64("product_id", line.ProductID), zap.String("status", string(p.Status)))
			return nil, errors.SetCustomError(constant.ErrProductUnavailable)
		}
		if p.SellerID == buyerID {
			return nil, errors.SetCustomError(constant.ErrOwnProduct)
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, model.InsertOrderItemTx{
			ProductID: p.ID,
			SellerID:  p.SellerID,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
			Snapshot:  p.Snapshot(),
		})
	}
	taxAmount := subtotal.Mul(s.taxRate()).Round(2)

	orderID, err := s.orderRepo.InsertOrderTx(ctx, tx, &model.InsertOrderTxItem{
		BuyerID:         buyerID,
		Subtotal:        subtotal,
		TaxAmount:       taxAmount,
		TotalAmount:     subtotal.Add(taxAmount),
		Status:          constant.OrderStatusConfirmed,
		PaymentStatus:   constant.PaymentStatusPaid,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		log.Error("[Checkout] insert order", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}

	if err := s.orderRepo.InsertOrderItemsTx(ctx, tx, orderID, items); err != nil {
		log.Error("[Checkout] insert order items", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}

	reserved, err := s.productRepo.UpdateStatusTx(ctx, tx, productIDs, constant.ProductStatusReserved, constant.ProductStatusActive)
	if err != nil {
		log.Error("[Checkout] reserve products", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if reserved != int64(len(productIDs)) {
		log.Info("[Checkout] reservation lost", zap.Int64("reserved", reserved), zap.Int("wanted", len(productIDs)))
		return nil, errors.SetCustomError(constant.ErrProductUnavailable)
	}

	if err := s.cartRepo.DeleteItemsTx(ctx, tx, buyerID, productIDs); err != nil {
		log.Error("[Checkout] clear cart", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}

	order, err := s.orderRepo.GetOrderTx(ctx, tx, orderID)
	if err != nil {
		log.Error("[Checkout] reload order", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if order == nil {
		log.Error("[Checkout] reload order", zap.Uint64("order_id", orderID), zap.String("error", "order missing after insert"))
		return nil, errors.SetCustomError(constant.ErrInternal)
	}

	if err := s.txRepo.CommitTx(tx); err != nil {
		log.Error("[Checkout] commit tx", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	committed = true

	log.Info("[Checkout] order created", zap.Uint64("order_id", orderID), zap.String("total", order.TotalAmount.StringFixed(2)))
	return order, nil
}

func (s *orderAppImpl) UpdateOrderStatus(ctx context.Context, orderID, actorID uint64, req *model.UpdateOrderStatusRequest) (*model.Order, error) {
	if req == nil || !req.Status.Valid() {
		return nil, errors.SetCustomError(constant.ErrInvalidRequest)
	}
	log := logger.FromContext(ctx)

	tx, err := s.txRepo.BeginTx(ctx)
	if err != nil {
		log.Error("[UpdateOrderStatus] begin tx", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = s.txRepo.RollbackTx(tx)
		}
	}()

	header, err := s.orderRepo.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		log.Error("[UpdateOrderStatus] lock order", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if header == nil {
		return nil, errors.SetCustomError(constant.ErrNotFound)
	}

	order, err := s.orderRepo.GetOrderTx(ctx, tx, orderID)
	if err != nil {
		log.Error("[UpdateOrderStatus] get order", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if order == nil {
		return nil, errors.SetCustomError(constant.ErrNotFound)
	}
	if order.BuyerID != actorID && !order.HasSeller(actorID) {
		return nil, errors.SetCustomError(constant.ErrForbidden)
	}

	from, to := order.Status, req.Status
	if from == to {
		return order, nil
	}
	if !from.CanTransition(to) {
		log.Info("[UpdateOrderStatus] invalid transition", zap.Uint64("order_id", orderID), zap.String("from", string(from)), zap.String("to", string(to)))
		return nil, errors.SetCustomError(constant.ErrInvalidTransition)
	}

	update := &model.UpdateOrderStatusTx{
		OrderID:        orderID,
		Status:         to,
		PaymentStatus:  order.PaymentStatus,
		TrackingNumber: order.TrackingNumber,
	}
	productIDs := order.ProductIDs()

	switch to {
	case constant.OrderStatusShipped:
		if req.TrackingNumber != "" {
			update.TrackingNumber = req.TrackingNumber
		}
	case constant.OrderStatusDelivered:
		if _, err := s.productRepo.UpdateStatusTx(ctx, tx, productIDs, constant.ProductStatusSold); err != nil {
			log.Error("[UpdateOrderStatus] mark products sold", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
			return nil, errors.Wrap(constant.ErrInternal, err)
		}
	case constant.OrderStatusCancelled:
		if _, err := s.productRepo.UpdateStatusTx(ctx, tx, productIDs, constant.ProductStatusActive, constant.ProductStatusReserved); err != nil {
			log.Error("[UpdateOrderStatus] release products", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
			return nil, errors.Wrap(constant.ErrInternal, err)
		}
		if update.PaymentStatus == constant.PaymentStatusPaid {
			update.PaymentStatus = constant.PaymentStatusRefunded
		}
	}

	if err := s.orderRepo.UpdateOrderStatusTx(ctx, tx, update); err != nil {
		log.Error("[UpdateOrderStatus] update status", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}

	updated, err := s.orderRepo.GetOrderTx(ctx, tx, orderID)
	if err != nil || updated == nil {
		log.Error("[UpdateOrderStatus] reload order", zap.Uint64("order_id", orderID), zap.Error(err))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}

	if err := s.txRepo.CommitTx(tx); err != nil {
		log.Error("[UpdateOrderStatus] commit tx", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	committed = true

	s.metrics.Transition(string(from), string(to))
	s.publish(ctx, constant.EventOrderStatusChanged, updated)

	return updated, nil
}

func (s *orderAppImpl) GetOrder(ctx context.Context, orderID, actorID uint64) (*model.Order, error) {
	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		logger.FromContext(ctx).Error("[GetOrder] error orderRepo.GetOrder", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if order == nil {
		return nil, errors.SetCustomError(constant.ErrNotFound)
	}
	if order.BuyerID != actorID && !order.HasSeller(actorID) {
		return nil, errors.SetCustomError(constant.ErrForbidden)
	}
	return order, nil
}

func (s *orderAppImpl) ListOrders(ctx context.Context, buyerID uint64) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByBuyer(ctx, buyerID)
	if err != nil {
		logger.FromContext(ctx).Error("[ListOrders] error orderRepo.ListByBuyer", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	return orders, nil
}

func (s *orderAppImpl) ListSales(ctx context.Context, sellerID uint64) ([]model.Order, error) {
	orders, err := s.orderRepo.ListBySeller(ctx, sellerID)
	if err != nil {
		logger.FromContext(ctx).Error("[ListSales] error orderRepo.ListBySeller", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	return orders, nil
}

func (s *orderAppImpl) taxRate() decimal.Decimal {
	if s.config == nil {
		return constant.DefaultTaxRate
	}
	return s.config.Order.TaxRate
}

func (s *orderAppImpl) idempotencyTTL() time.Duration {
	if s.config == nil || s.config.Order.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return s.config.Order.IdempotencyTTL
}

// replayCheckout returns the order a previous request with the same
// idempotency key created, or nil when there is none to replay.
func (s *orderAppImpl) replayCheckout(ctx context.Context, buyerID uint64, key string) *model.Order {
	if s.redisRepo == nil {
		return nil
	}
	log := logger.FromContext(ctx)
	redisKey := redisrepo.CheckoutIdempotencyKey(buyerID, key)

	val, err := s.redisRepo.Get(ctx, redisKey)
	if err != nil {
		log.Warn("[Checkout] idempotency lookup", zap.String("error", err.Error()))
		return nil
	}
	if val == "" {
		return nil
	}
	orderID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		_ = s.redisRepo.Delete(ctx, redisKey)
		return nil
	}

	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		log.Warn("[Checkout] idempotency reload", zap.Uint64("order_id", orderID), zap.String("error", err.Error()))
		return nil
	}
	if order == nil || order.BuyerID != buyerID {
		_ = s.redisRepo.Delete(ctx, redisKey)
		return nil
	}
	log.Info("[Checkout] idempotent replay", zap.Uint64("order_id", orderID))
	return order
}

func (s *orderAppImpl) rememberCheckout(ctx context.Context, buyerID uint64, key string, orderID uint64) {
	if s.redisRepo == nil {
		return
	}
	redisKey := redisrepo.CheckoutIdempotencyKey(buyerID, key)
	if err := s.redisRepo.SetWithTTL(ctx, redisKey, strconv.FormatUint(orderID, 10), s.idempotencyTTL()); err != nil {
		logger.FromContext(ctx).Warn("[Checkout] store idempotency key", zap.String("error", err.Error()))
	}
}

// publish emits an order event after commit. Failures are logged only; the
// order is already durable.
func (s *orderAppImpl) publish(ctx context.Context, eventType string, order *model.Order) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := rabbitmq.NewOrderEvent(eventType, order.ID, order.BuyerID, order.SellerIDs(), string(order.Status), order.TotalAmount)
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		logger.FromContext(ctx).Error("[PublishOrderEvent] publish", zap.String("type", eventType), zap.Uint64("order_id", order.ID), zap.String("error", err.Error()))
	}
}

func checkoutOutcome(err error) string {
	switch {
	case errors.IsType(err, constant.ErrEmptyCart):
		return "empty_cart"
	case errors.IsType(err, constant.ErrProductUnavailable):
		return "product_unavailable"
	case errors.IsType(err, constant.ErrOwnProduct):
		return "own_product"
	case errors.IsType(err, constant.ErrInvalidRequest):
		return "invalid_request"
	default:
		return "error"
	}
}
