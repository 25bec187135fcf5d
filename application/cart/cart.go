package cart

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/model"
	cartrepo "github.com/ecofinds/marketplace/repository/cart"
	productrepo "github.com/ecofinds/marketplace/repository/product"
	"github.com/ecofinds/marketplace/utils/errors"
	"github.com/ecofinds/marketplace/utils/logger"
)

type CartApp interface {
	GetCart(ctx context.Context, userID uint64) (*model.CartResponse, error)
	AddItem(ctx context.Context, userID uint64, req *model.AddCartItemRequest) (*model.CartResponse, error)
	UpdateItem(ctx context.Context, userID, productID uint64, req *model.UpdateCartItemRequest) (*model.CartResponse, error)
	RemoveItem(ctx context.Context, userID, productID uint64) (*model.CartResponse, error)
}

type cartAppImpl struct {
	cartRepo    cartrepo.CartRepository
	productRepo productrepo.ProductRepository
}

func NewCartApp(cartRepo cartrepo.CartRepository, productRepo productrepo.ProductRepository) CartApp {
	return &cartAppImpl{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// GetCart returns the buyer's lines. Subtotal uses current product prices,
// which is what checkout will charge.
func (s *cartAppImpl) GetCart(ctx context.Context, userID uint64) (*model.CartResponse, error) {
	lines, err := s.cartRepo.GetCartItems(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Error("[GetCart] error cartRepo.GetCartItems", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}

	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.CurrentPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		count += l.Quantity
	}
	if lines == nil {
		lines = []model.CartLine{}
	}

	return &model.CartResponse{
		Items:     lines,
		ItemCount: count,
		Subtotal:  subtotal,
	}, nil
}

func (s *cartAppImpl) AddItem(ctx context.Context, userID uint64, req *model.AddCartItemRequest) (*model.CartResponse, error) {
	if req == nil || req.ProductID == 0 || req.Quantity <= 0 {
		return nil, errors.SetCustomError(constant.ErrInvalidRequest)
	}
	log := logger.FromContext(ctx)

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		log.Error("[AddItem] error productRepo.GetByID", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if product == nil {
		return nil, errors.SetCustomError(constant.ErrNotFound)
	}
	if product.SellerID == userID {
		return nil, errors.SetCustomError(constant.ErrOwnProduct)
	}
	if product.Status != constant.ProductStatusActive {
		return nil, errors.SetCustomError(constant.ErrProductUnavailable)
	}

	err = s.cartRepo.UpsertItem(ctx, &model.UpsertCartItem{
		UserID:      userID,
		ProductID:   product.ID,
		Quantity:    req.Quantity,
		PriceAtTime: product.Price,
	})
	if err != nil {
		log.Error("[AddItem] error cartRepo.UpsertItem", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}

	return s.GetCart(ctx, userID)
}

func (s *cartAppImpl) UpdateItem(ctx context.Context, userID, productID uint64, req *model.UpdateCartItemRequest) (*model.CartResponse, error) {
	if req == nil || req.Quantity <= 0 {
		return nil, errors.SetCustomError(constant.ErrInvalidRequest)
	}

	found, err := s.cartRepo.UpdateQuantity(ctx, userID, productID, req.Quantity)
	if err != nil {
		logger.FromContext(ctx).Error("[UpdateItem] error cartRepo.UpdateQuantity", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if !found {
		return nil, errors.SetCustomError(constant.ErrNotFound)
	}

	return s.GetCart(ctx, userID)
}

func (s *cartAppImpl) RemoveItem(ctx context.Context, userID, productID uint64) (*model.CartResponse, error) {
	found, err := s.cartRepo.DeleteItem(ctx, userID, productID)
	if err != nil {
		logger.FromContext(ctx).Error("[RemoveItem] error cartRepo.DeleteItem", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if !found {
		return nil, errors.SetCustomError(constant.ErrNotFound)
	}

	return s.GetCart(ctx, userID)
}
