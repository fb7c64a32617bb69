package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"                   json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"                       json:"email"`
	PasswordHash string    `gorm:"not null"                                   json:"-"`
	Role         Role      `gorm:"type:varchar(16);not null;default:CUSTOMER" json:"role"`
	UserImage    *string   `                                                  json:"userImage"`
	CreatedAt    time.Time `                                                  json:"createdAt"`
	UpdatedAt    time.Time `                                                  json:"updatedAt"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null"                 json:"name"`
	Description string    `gorm:"not null;default:''"      json:"description"`
	Price       float64   `gorm:"not null"                 json:"price"`
	ImageURL    *string   `                                json:"imageUrl"`
	CreatedAt   time.Time `                                json:"createdAt"`
	UpdatedAt   time.Time `                                json:"updatedAt"`
}

type Cart struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"      json:"id"`
	UserID    uint       `gorm:"uniqueIndex;not null"          json:"userId"`
	CartItems []CartItem `gorm:"constraint:OnDelete:CASCADE;"  json:"cartItems"`
	CreatedAt time.Time  `                                     json:"createdAt"`
	UpdatedAt time.Time  `                                     json:"updatedAt"`
}

type CartItem struct {
	ID        uint     `gorm:"primaryKey"                                  json:"id"`
	CartID    uint     `gorm:"not null;uniqueIndex:idx_cart_product"       json:"cartId"`
	ProductID uint     `gorm:"not null;uniqueIndex:idx_cart_product"       json:"productId"`
	Quantity  uint     `gorm:"not null;default:1;check:quantity > 0"       json:"quantity"`
	Product   *Product `gorm:"constraint:OnDelete:CASCADE;"                json:"product,omitempty"`
}

type Order struct {
	ID          uint        `gorm:"primaryKey;autoIncrement"                  json:"id"`
	UserID      uint        `gorm:"index;not null"                            json:"userId"`
	User        *User       `                                                 json:"user,omitempty"`
	TotalAmount float64     `gorm:"not null"                                  json:"totalAmount"`
	Status      OrderStatus `gorm:"type:varchar(16);not null;default:PENDING" json:"status"`
	Items       []OrderItem `gorm:"constraint:OnDelete:CASCADE;"              json:"items"`
	CreatedAt   time.Time   `                                                 json:"createdAt"`
	UpdatedAt   time.Time   `                                                 json:"updatedAt"`
}

type OrderItem struct {
	ID        uint     `gorm:"primaryKey"                    json:"id"`
	OrderID   uint     `gorm:"index;not null"                json:"orderId"`
	ProductID uint     `gorm:"index;not null"                json:"productId"`
	Product   *Product `gorm:"constraint:OnDelete:RESTRICT;" json:"product,omitempty"`
	Quantity  uint     `gorm:"not null"                      json:"quantity"`
	Price     float64  `gorm:"not null"                      json:"price"`
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{&User{}, &Product{}, &Cart{}, &CartItem{}, &Order{}, &OrderItem{}}
}
