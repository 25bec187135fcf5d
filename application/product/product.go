package product

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ecofinds/marketplace/constant"
	"github.com/ecofinds/marketplace/model"
	productRepo "github.com/ecofinds/marketplace/repository/product"
	"github.com/ecofinds/marketplace/utils/errors"
	"github.com/ecofinds/marketplace/utils/logger"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

type ProductApp interface {
	ListProducts(ctx context.Context, filter *model.ProductFilter) (*model.ProductListResponse, error)
	GetProduct(ctx context.Context, id uint64) (*model.ProductDetail, error)
}

type productAppImpl struct {
	productRepo productRepo.ProductRepository
}

func NewProductApp(productRepo productRepo.ProductRepository) ProductApp {
	return &productAppImpl{productRepo: productRepo}
}

// ListProducts returns active listings only, newest first.
func (s *productAppImpl) ListProducts(ctx context.Context, filter *model.ProductFilter) (*model.ProductListResponse, error) {
	f := model.ProductFilter{}
	if filter != nil {
		f = *filter
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	f.Category = strings.TrimSpace(f.Category)
	f.Search = strings.TrimSpace(f.Search)

	items, total, err := s.productRepo.List(ctx, &f)
	if err != nil {
		logger.Error("[ListProducts] error productRepo.List", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}

	return &model.ProductListResponse{
		Items:      items,
		TotalCount: total,
		Page:       f.Page,
		PerPage:    f.PerPage,
	}, nil
}

func (s *productAppImpl) GetProduct(ctx context.Context, id uint64) (*model.ProductDetail, error) {
	result, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		logger.Error("[GetProduct] error productRepo.GetByID", zap.String("error", err.Error()))
		return nil, errors.Wrap(constant.ErrInternal, err)
	}
	if result == nil {
		return nil, errors.SetCustomError(constant.ErrNotFound)
	}

	return result, nil
}
