package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/Skotchmaster/online_store/internal/models"
	"github.com/Skotchmaster/online_store/internal/repo"
	"github.com/Skotchmaster/online_store/internal/transport"
)

type CartService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
}

// mergeLines validates the lines and folds repeated products into one line.
func mergeLines(lines []transport.ItemLine) ([]transport.ItemLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: items are required", ErrValidation)
	}
	merged := make([]transport.ItemLine, 0, len(lines))
	index := make(map[uint]int, len(lines))
	for _, line := range lines {
		if line.ProductID == 0 {
			return nil, fmt.Errorf("%w: productId is required", ErrValidation)
		}
		if line.Quantity == 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

// loadProducts returns the products for lines or ErrNotFound naming the
// first missing one.
func loadProducts(ctx context.Context, r *repo.GormRepo, lines []transport.ItemLine) (map[uint]models.Product, error) {
	ids := make([]uint, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	products, err := r.ProductsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
	}
	return products, nil
}

func (s *CartService) AddItems(ctx context.Context, userID uint, lines []transport.ItemLine) (*models.Cart, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}
	if _, err := loadProducts(ctx, s.Repo, merged); err != nil {
		return nil, err
	}

	items := make([]models.CartItem, len(merged))
	for i, line := range merged {
		items[i] = models.CartItem{ProductID: line.ProductID, Quantity: line.Quantity}
	}
	cart, err := s.Repo.AddCartItems(ctx, userID, items)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, TopicCarts, strconv.FormatUint(uint64(userID), 10), "cart_items_added", map[string]any{
		"userID": userID,
		"cartID": cart.ID,
		"items":  merged,
	})
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, userID uint) (*models.Cart, error) {
	cart, err := s.Repo.GetCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: Cart not found for this user", ErrNotFound)
		}
		return nil, err
	}
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) (*models.CartItem, error) {
	item, err := s.Repo.RemoveCartItem(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cart item %d", ErrNotFound, itemID)
		}
		return nil, err
	}

	publish(ctx, s.Events, TopicCarts, strconv.FormatUint(uint64(userID), 10), "cart_item_removed", map[string]any{
		"userID":    userID,
		"itemID":    item.ID,
		"productID": item.ProductID,
	})
	return item, nil
}

func (s *CartService) Clear(ctx context.Context, userID uint) (int64, error) {
	n, err := s.Repo.ClearCart(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: No cart found for this user", ErrNotFound)
		}
		return 0, err
	}

	publish(ctx, s.Events, TopicCarts, strconv.FormatUint(uint64(userID), 10), "cart_cleared", map[string]any{
		"userID":  userID,
		"removed": n,
	})
	return n, nil
}
