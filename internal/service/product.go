package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/online_store/internal/logging"
	"github.com/Skotchmaster/online_store/internal/models"
	"github.com/Skotchmaster/online_store/internal/repo"
	"github.com/Skotchmaster/online_store/internal/transport"
)

type ProductService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
	Index  ProductIndex
}

func validPrice(p float64) bool {
	return p >= 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

func (s *ProductService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !validPrice(req.Price) {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}

	prod := &models.Product{Name: name, Description: req.Description, Price: req.Price}
	if req.AwsImageURL != "" {
		image := req.AwsImageURL
		prod.ImageURL = &image
	}
	if err := s.Repo.CreateProduct(ctx, prod); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, "product_created", *prod)
	return prod, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	prod, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
		return nil, err
	}
	return prod, nil
}

func (s *ProductService) ListProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.ListProducts(ctx, offset, limit)
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uint, req transport.UpdateProductRequest) (*models.Product, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		req.Name = &trimmed
	}
	if req.Price != nil && !validPrice(*req.Price) {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}

	prod, err := s.Repo.UpdateProduct(ctx, id, req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
		return nil, err
	}

	s.afterWrite(ctx, "product_updated", *prod)
	return prod, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("%w: product %d", ErrNotFound, id)
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return fmt.Errorf("%w: product %d is referenced by orders", ErrConflict, id)
		}
		return err
	}

	l := logging.FromContext(ctx).With("svc", "product.delete", "product_id", id)
	if s.Index != nil {
		if err := s.Index.DeleteProduct(ctx, id); err != nil {
			l.Warn("search_index_failed", "error", err)
		}
	}
	publish(ctx, s.Events, TopicProducts, strconv.FormatUint(uint64(id), 10), "product_deleted", map[string]any{
		"productID": id,
	})
	return nil
}

func (s *ProductService) SearchProducts(ctx context.Context, query string, offset, limit int) (int64, []models.Product, error) {
	if s.Index == nil {
		return 0, nil, ErrSearchUnavailable
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	return s.Index.Search(ctx, query, offset, limit)
}

func (s *ProductService) afterWrite(ctx context.Context, typ string, prod models.Product) {
	l := logging.FromContext(ctx).With("svc", "product."+typ, "product_id", prod.ID)
	if s.Index != nil {
		if err := s.Index.IndexProduct(ctx, prod); err != nil {
			l.Warn("search_index_failed", "error", err)
		}
	}
	publish(ctx, s.Events, TopicProducts, strconv.FormatUint(uint64(prod.ID), 10), typ, map[string]any{
		"productID": prod.ID,
		"name":      prod.Name,
		"price":     prod.Price,
	})
}
