package model

import "time"

// Product represents a catalogue entry. Prices are in minor currency units.
type Product struct {
	ID            string    `json:"id" db:"id"`
	Slug          string    `json:"slug" db:"slug"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description,omitempty" db:"description"`
	Category      string    `json:"category" db:"category"`
	Price         int64     `json:"price" db:"price"`
	DiscountPrice *int64    `json:"discountPrice,omitempty" db:"discount_price"`
	Stock         int       `json:"stock" db:"stock"`
	Variants      []Variant `json:"variants,omitempty"`
	IsDeleted     bool      `json:"-" db:"is_deleted"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Variant is a size/colour combination of a product with its own stock.
type Variant struct {
	Size       string `json:"size" db:"size" validate:"max=32,required_without=Color"`
	Color      string `json:"color" db:"color" validate:"max=32"`
	Stock      int    `json:"stock" db:"stock" validate:"min=0"`
	PriceDelta int64  `json:"priceDelta" db:"price_delta"`
}

// VariantSelector picks a variant by size and colour.
type VariantSelector struct {
	Size  string `json:"size"`
	Color string `json:"color"`
}

// IsZero reports whether no variant is selected.
func (v VariantSelector) IsZero() bool {
	return v.Size == "" && v.Color == ""
}

// EffectivePrice returns the discount price when set, otherwise the list price.
func (p *Product) EffectivePrice() int64 {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// FindVariant returns the variant matching the selector, if any.
func (p *Product) FindVariant(sel VariantSelector) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].Size == sel.Size && p.Variants[i].Color == sel.Color {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// UnitPrice returns the effective price for the selected variant.
// A zero selector prices the base product.
func (p *Product) UnitPrice(sel VariantSelector) int64 {
	price := p.EffectivePrice()
	if sel.IsZero() {
		return price
	}
	if v, ok := p.FindVariant(sel); ok {
		price += v.PriceDelta
	}
	return price
}

// Available returns the sellable stock for the selector.
func (p *Product) Available(sel VariantSelector) (int, error) {
	if sel.IsZero() {
		return p.Stock, nil
	}
	v, ok := p.FindVariant(sel)
	if !ok {
		return 0, ErrVariantNotFound
	}
	return min(v.Stock, p.Stock), nil
}

// InventoryChange is one entry of a product's inventory log.
type InventoryChange struct {
	ProductID string    `json:"productId" db:"product_id"`
	Size      string    `json:"size,omitempty" db:"size"`
	Color     string    `json:"color,omitempty" db:"color"`
	Delta     int       `json:"delta" db:"delta"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Inventory log reasons.
const (
	InventoryReasonOrder   = "order"
	InventoryReasonRestock = "restock"
	InventoryReasonImport  = "import"
)
