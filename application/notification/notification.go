package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/ecofinds/marketplace/constant"
	userrepo "github.com/ecofinds/marketplace/repository/user"
	"github.com/ecofinds/marketplace/thirdparty/rabbitmq"
	"github.com/ecofinds/marketplace/utils/logger"
)

// Notifier turns order events into buyer and seller notifications. Delivery
// is a structured log line per recipient; a mail or push sender plugs in here.
type Notifier struct {
	userRepo userrepo.UserRepository
}

func NewNotifier(userRepo userrepo.UserRepository) *Notifier {
	return &Notifier{userRepo: userRepo}
}

// Handle matches rabbitmq.Handler. Lookup failures are returned so the event
// is redelivered.
func (n *Notifier) Handle(ctx context.Context, event rabbitmq.OrderEvent) error {
	switch event.Type {
	case constant.EventOrderCreated:
		if err := n.notify(ctx, event.BuyerID, "buyer", "order placed", event); err != nil {
			return err
		}
		for _, sellerID := range event.SellerIDs {
			if err := n.notify(ctx, sellerID, "seller", "item sold", event); err != nil {
				return err
			}
		}
	case constant.EventOrderStatusChanged:
		if err := n.notify(ctx, event.BuyerID, "buyer", "order "+event.Status, event); err != nil {
			return err
		}
		for _, sellerID := range event.SellerIDs {
			if err := n.notify(ctx, sellerID, "seller", "order "+event.Status, event); err != nil {
				return err
			}
		}
	default:
		logger.Warn("[Notifier] unknown event type", zap.String("type", event.Type), zap.String("event_id", event.EventID))
	}
	return nil
}

func (n *Notifier) notify(ctx context.Context, userID uint64, role, subject string, event rabbitmq.OrderEvent) error {
	user, err := n.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		logger.Debug("[Notifier] skip inactive recipient", zap.Uint64("user_id", userID))
		return nil
	}

	logger.Info("notification",
		zap.String("event_id", event.EventID),
		zap.Uint64("order_id", event.OrderID),
		zap.String("role", role),
		zap.Uint64("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("subject", subject),
		zap.String("total", event.TotalAmount.StringFixed(2)),
	)
	return nil
}
