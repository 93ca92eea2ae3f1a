package cart

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/money"
)

var (
	ErrItemNotFound          = errors.New("cart item not found")
	ErrInvalidDiscount       = errors.New("discount percentage must be between 0 and 100")
	ErrNegativeLineDiscount  = errors.New("line discount cannot be negative")
	ErrInvalidProductPrice   = errors.New("product price must be non-negative")
	ErrInvalidProductPayload = errors.New("product id is required")
)

var maxDiscountPercentage = decimal.NewFromInt(100)

// ProductSnapshot is the catalog view captured when a product enters the cart.
type ProductSnapshot struct {
	ID    uuid.UUID
	Name  string
	Price decimal.Decimal
}

// Item is one cart line. UnitPrice is frozen at add time; later catalog price
// changes do not reach an open cart.
type Item struct {
	ProductID    uuid.UUID       `json:"productId"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity"`
	LineDiscount decimal.Decimal `json:"discountAmount"`
}

// Subtotal returns unitPrice*quantity - lineDiscount rounded to cents.
func (i Item) Subtotal() decimal.Decimal {
	return money.Round2(money.LineSubtotal(i.line()))
}

func (i Item) line() money.Line {
	return money.Line{UnitPrice: i.UnitPrice, Quantity: i.Quantity, LineDiscount: i.LineDiscount}
}

// Cart is the mutable order being assembled at a terminal. It is owned by a
// single session and is not safe for concurrent mutation.
type Cart struct {
	Items              []Item          `json:"items"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{Items: []Item{}}
}

// Add puts one unit of the product in the cart. Adding a product already in
// the cart increments its quantity and keeps the original price snapshot.
func (c *Cart) Add(p ProductSnapshot) (Item, error) {
	if p.ID == uuid.Nil {
		return Item{}, ErrInvalidProductPayload
	}
	if p.Price.IsNegative() {
		return Item{}, ErrInvalidProductPrice
	}
	if idx := c.indexOf(p.ID); idx >= 0 {
		c.Items[idx].Quantity++
		return c.Items[idx], nil
	}
	item := Item{
		ProductID:    p.ID,
		Name:         p.Name,
		UnitPrice:    p.Price,
		Quantity:     1,
		LineDiscount: decimal.Zero,
	}
	c.Items = append(c.Items, item)
	return item, nil
}

// SetQuantity replaces a line's quantity. Any quantity below 1 removes the
// line. It reports whether the product was in the cart.
func (c *Cart) SetQuantity(productID uuid.UUID, quantity int) bool {
	idx := c.indexOf(productID)
	if idx < 0 {
		return false
	}
	if quantity < 1 {
		c.removeAt(idx)
		return true
	}
	c.Items[idx].Quantity = quantity
	return true
}

// Remove drops the product's line; absent products are ignored.
func (c *Cart) Remove(productID uuid.UUID) {
	if idx := c.indexOf(productID); idx >= 0 {
		c.removeAt(idx)
	}
}

// SetLineDiscount sets the absolute discount applied to one line.
func (c *Cart) SetLineDiscount(productID uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeLineDiscount
	}
	idx := c.indexOf(productID)
	if idx < 0 {
		return ErrItemNotFound
	}
	c.Items[idx].LineDiscount = amount
	return nil
}

// SetDiscountPercentage sets the cart-wide discount; pct must be within [0, 100].
func (c *Cart) SetDiscountPercentage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(maxDiscountPercentage) {
		return ErrInvalidDiscount
	}
	c.DiscountPercentage = pct
	return nil
}

// Clear empties the cart and resets the discount.
func (c *Cart) Clear() {
	c.Items = []Item{}
	c.DiscountPercentage = decimal.Zero
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the line for productID.
func (c *Cart) Find(productID uuid.UUID) (Item, bool) {
	if idx := c.indexOf(productID); idx >= 0 {
		return c.Items[idx], true
	}
	return Item{}, false
}

// Lines returns the money view of the cart in insertion order.
func (c *Cart) Lines() []money.Line {
	lines := make([]money.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, item.line())
	}
	return lines
}

// Summary derives subtotal, discount, tax and total from the current lines.
// It is recomputed on every call and never cached.
func (c *Cart) Summary(taxRate decimal.Decimal) money.Summary {
	return money.Summarize(c.Lines(), c.DiscountPercentage, taxRate)
}

// Clone returns a deep copy safe to hand to checkout.
func (c *Cart) Clone() *Cart {
	out := &Cart{
		Items:              make([]Item, len(c.Items)),
		DiscountPercentage: c.DiscountPercentage,
		UpdatedAt:          c.UpdatedAt,
	}
	copy(out.Items, c.Items)
	return out
}

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}
