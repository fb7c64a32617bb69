package transport

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	AwsImageURL string `json:"awsImageUrl"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateUserRequest struct {
	Email       *string `json:"email"`
	AwsImageURL *string `json:"awsImageUrl"`
}

type CreateProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	AwsImageURL string  `json:"awsImageUrl"`
}

type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	AwsImageURL *string  `json:"awsImageUrl"`
}

type ItemLine struct {
	ProductID uint `json:"productId"`
	Quantity  uint `json:"quantity"`
}

type CreateCartRequest struct {
	CartItems []ItemLine `json:"cartItems"`
}

type CreateOrderRequest struct {
	OrderItems []ItemLine `json:"orderItems"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}
