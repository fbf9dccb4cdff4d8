package model

import (
	"time"

	"github.com/google/uuid"
)

// Identity addresses a cart: an authenticated user or an anonymous session, never both.
type Identity struct {
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Validate checks that exactly one of UserID or SessionID is set.
func (i Identity) Validate() error {
	if (i.UserID == "") == (i.SessionID == "") {
		return ErrInvalidIdentity
	}
	return nil
}

// IsGuest reports whether the identity is an anonymous session.
func (i Identity) IsGuest() bool {
	return i.UserID == ""
}

// String returns a log-friendly representation.
func (i Identity) String() string {
	if i.UserID != "" {
		return "user:" + i.UserID
	}
	return "session:" + i.SessionID
}

// LineKey is the uniqueness key of a cart line.
type LineKey struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Size      string `json:"size,omitempty" validate:"max=32"`
	Color     string `json:"color,omitempty" validate:"max=32"`
}

// Selector returns the variant part of the key.
func (k LineKey) Selector() VariantSelector {
	return VariantSelector{Size: k.Size, Color: k.Color}
}

// CartItem is one line of a cart. PriceAtAdd is informational only.
type CartItem struct {
	ProductID  string    `json:"productId"`
	Size       string    `json:"size,omitempty"`
	Color      string    `json:"color,omitempty"`
	Quantity   int       `json:"quantity"`
	PriceAtAdd int64     `json:"priceAtAdd"`
	AddedAt    time.Time `json:"addedAt"`
}

// Key returns the line's uniqueness key.
func (c CartItem) Key() LineKey {
	return LineKey{ProductID: c.ProductID, Size: c.Size, Color: c.Color}
}

// Cart holds the line items of a single identity.
type Cart struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    *string    `json:"userId,omitempty" db:"user_id"`
	SessionID *string    `json:"-" db:"session_id"`
	Items     []CartItem `json:"items" db:"items"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
}

// NewCart creates an empty cart owned by the identity.
func NewCart(identity Identity, now time.Time) *Cart {
	c := &Cart{
		ID:        uuid.New(),
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if identity.UserID != "" {
		c.UserID = &identity.UserID
	} else {
		c.SessionID = &identity.SessionID
	}
	return c
}

// Find returns the index of the line with the given key, or -1.
func (c *Cart) Find(key LineKey) int {
	for i, item := range c.Items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

// QuantityOf returns the quantity currently held for the key.
func (c *Cart) QuantityOf(key LineKey) int {
	if i := c.Find(key); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// AddLine increments an existing line and refreshes its price, or appends a new line.
func (c *Cart) AddLine(key LineKey, quantity int, price int64, now time.Time) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.Find(key); i >= 0 {
		c.Items[i].Quantity += quantity
		c.Items[i].PriceAtAdd = price
		return nil
	}
	c.Items = append(c.Items, CartItem{
		ProductID:  key.ProductID,
		Size:       key.Size,
		Color:      key.Color,
		Quantity:   quantity,
		PriceAtAdd: price,
		AddedAt:    now,
	})
	return nil
}

// SetQuantity overwrites the quantity of an existing line.
func (c *Cart) SetQuantity(key LineKey, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	i := c.Find(key)
	if i < 0 {
		return ErrCartNotFound
	}
	c.Items[i].Quantity = quantity
	return nil
}

// RemoveLine deletes the matching line. It reports whether a line was removed.
func (c *Cart) RemoveLine(key LineKey) bool {
	i := c.Find(key)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// MergeFrom folds the guest cart's lines into c. Matching lines sum quantities,
// others are appended in the guest cart's order.
func (c *Cart) MergeFrom(guest *Cart) {
	for _, item := range guest.Items {
		if i := c.Find(item.Key()); i >= 0 {
			c.Items[i].Quantity += item.Quantity
			continue
		}
		c.Items = append(c.Items, item)
	}
}

// Clear empties the cart while keeping its identity.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount returns the total number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}
