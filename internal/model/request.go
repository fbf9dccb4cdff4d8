package model

// AddItemRequest is the body of POST /api/cart/items.
type AddItemRequest struct {
	LineKey
	Quantity int `json:"quantity" validate:"required,min=1,max=100"`
}

// UpdateItemRequest is the body of PATCH /api/cart/items.
type UpdateItemRequest struct {
	LineKey
	Quantity int `json:"quantity" validate:"required,min=1,max=100"`
}

// CheckoutRequest is the body of POST /api/orders. Contact is required for
// guest checkouts.
type CheckoutRequest struct {
	ShippingAddress ShippingAddress `json:"shippingAddress" validate:"required"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod" validate:"required,oneof=COD CARD UPI"`
	Contact         *GuestContact   `json:"contact,omitempty" validate:"omitempty"`
}

// PaymentCallbackRequest is posted by the payment gateway.
type PaymentCallbackRequest struct {
	OrderNumber string `json:"orderId" validate:"required,max=64"`
	Status      string `json:"status" validate:"required,oneof=success failed"`
	Provider    string `json:"provider" validate:"required,max=50"`
	Reference   string `json:"reference" validate:"required_if=Status success,max=120"`
	Reason      string `json:"reason,omitempty" validate:"max=200"`
}

// StatusUpdateRequest is the body of the admin order status route.
type StatusUpdateRequest struct {
	Status OrderStatus `json:"status" validate:"required,oneof=PLACED CONFIRMED SHIPPED DELIVERED CANCELLED"`
	Note   string      `json:"note,omitempty" validate:"max=200"`
}

// ProductRequest creates or replaces a product from the admin console.
type ProductRequest struct {
	Slug          string    `json:"slug" validate:"required,max=120"`
	Name          string    `json:"name" validate:"required,max=200"`
	Description   string    `json:"description" validate:"max=4000"`
	Category      string    `json:"category" validate:"required,max=64"`
	Price         int64     `json:"price" validate:"required,gt=0"`
	DiscountPrice *int64    `json:"discountPrice,omitempty" validate:"omitempty,gt=0,ltefield=Price"`
	Stock         int       `json:"stock" validate:"min=0"`
	Variants      []Variant `json:"variants,omitempty" validate:"dive"`
}

// RestockRequest adds stock to a product or one of its variants.
type RestockRequest struct {
	Quantity int    `json:"quantity" validate:"required,min=1,max=100000"`
	Size     string `json:"size,omitempty" validate:"max=32"`
	Color    string `json:"color,omitempty" validate:"max=32"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=120"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CartLine is a cart item decorated with current catalogue data.
type CartLine struct {
	CartItem
	Name         string `json:"name"`
	CurrentPrice int64  `json:"currentPrice"`
	Available    bool   `json:"available"`
}

// CartResponse is the cart as shown to the shopper.
type CartResponse struct {
	Items     []CartLine `json:"items"`
	ItemCount int        `json:"itemCount"`
	Subtotal  int64      `json:"subtotal"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User      *User  `json:"user"`
	ExpiresAt string `json:"expiresAt"`
}
