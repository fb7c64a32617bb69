package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"gorm.io/gorm"

	"github.com/Skotchmaster/online_store/internal/models"
	"github.com/Skotchmaster/online_store/internal/repo"
	"github.com/Skotchmaster/online_store/internal/transport"
)

type OrderService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
}

// CreateOrder prices every line at the current product price and stores the
// order as PENDING.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, lines []transport.ItemLine) (*models.Order, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}
	products, err := loadProducts(ctx, s.Repo, merged)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID: userID,
		Status: models.OrderPending,
		Items:  make([]models.OrderItem, len(merged)),
	}
	var total float64
	for i, line := range merged {
		price := products[line.ProductID].Price
		order.Items[i] = models.OrderItem{ProductID: line.ProductID, Quantity: line.Quantity, Price: price}
		total += price * float64(line.Quantity)
	}
	order.TotalAmount = math.Round(total*100) / 100

	if err := s.Repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	publish(ctx, s.Events, TopicOrders, strconv.FormatUint(uint64(order.ID), 10), "order_created", map[string]any{
		"orderID":     order.ID,
		"userID":      userID,
		"totalAmount": order.TotalAmount,
	})
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.Repo.ListOrders(ctx)
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	return s.Repo.ListOrdersByUser(ctx, userID)
}

func (s *OrderService) UpdateStatus(ctx context.Context, id uint, rawStatus string) (*models.Order, error) {
	status, err := models.ParseOrderStatus(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: Invalid order status", ErrValidation)
	}

	order, err := s.Repo.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
		}
		return nil, err
	}

	publish(ctx, s.Events, TopicOrders, strconv.FormatUint(uint64(order.ID), 10), "order_status_updated", map[string]any{
		"orderID": order.ID,
		"status":  order.Status,
	})
	return order, nil
}
