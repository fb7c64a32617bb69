package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/online_store/internal/models"
)

func (r *GormRepo) GetCartByUser(ctx context.Context, userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB.WithContext(ctx).
		Preload("CartItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("CartItems.Product").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddCartItems creates the user's cart when missing and adds the lines to
// it. A product already in the cart has its quantity increased.
func (r *GormRepo) AddCartItems(ctx context.Context, userID uint, lines []models.CartItem) (*models.Cart, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := ensureCart(tx, userID)
		if err != nil {
			return err
		}

		for _, line := range lines {
			var item models.CartItem
			err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, line.ProductID).
				First(&item).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				item = models.CartItem{CartID: cart.ID, ProductID: line.ProductID, Quantity: line.Quantity}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&item).Update("quantity", gorm.Expr("quantity + ?", line.Quantity)).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetCartByUser(ctx, userID)
}

// ensureCart returns the user's cart, inserting it first when missing. A
// concurrent insert for the same user is absorbed by the unique user_id.
func ensureCart(tx *gorm.DB, userID uint) (*models.Cart, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Cart{UserID: userID}).Error
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// RemoveCartItem deletes an item only when it belongs to the user's cart.
func (r *GormRepo) RemoveCartItem(ctx context.Context, userID, itemID uint) (*models.CartItem, error) {
	var item models.CartItem
	owned := r.DB.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
	err := r.DB.WithContext(ctx).
		Where("id = ? AND cart_id IN (?)", itemID, owned).
		First(&item).Error
	if err != nil {
		return nil, err
	}

	if err := r.DB.WithContext(ctx).Delete(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ClearCart removes every item of the user's cart and returns how many were
// deleted.
func (r *GormRepo) ClearCart(ctx context.Context, userID uint) (int64, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return 0, err
	}

	res := r.DB.WithContext(ctx).Where("cart_id = ?", cart.ID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
