// Package cart holds the open cart for one checkout session. All
// money math happens here so the sale finalizer and the HTTP layer
// agree on totals.
package cart

import (
	"sync"

	"tokopos/backend/internal/domain"
)

// Cart is safe for concurrent use. Each checkout session owns one
// instance; there is no shared package state.
type Cart struct {
	mu            sync.Mutex
	items         []domain.CartItem
	discount      float64
	taxRate       float64
	paymentMethod string
}

func New() *Cart {
	return &Cart{paymentMethod: domain.PaymentCash}
}

// AddItem appends a line for the product, or merges into an existing
// line with the same product ID by summing quantities. The line keeps
// the name and price the product had when it was first added.
func (c *Cart) AddItem(p domain.Product, qty int) {
	if qty <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ProductID == p.ID {
			c.items[i].Quantity += qty
			return
		}
	}
	c.items = append(c.items, domain.CartItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Quantity:    qty,
	})
}

// UpdateItem sets the line quantity exactly as given. Callers clamp;
// a zero or negative quantity is stored as-is and only RemoveItem
// drops the line.
func (c *Cart) UpdateItem(productID string, qty int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = qty
			return true
		}
	}
	return false
}

func (c *Cart) RemoveItem(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// SetDiscount stores a flat currency amount. It is not clamped; a
// negative value is a surcharge and an amount above the subtotal
// drives the total negative.
func (c *Cart) SetDiscount(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discount = amount
}

func (c *Cart) SetTaxRate(pct float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taxRate = pct
}

func (c *Cart) SetPaymentMethod(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentMethod = method
}

func (c *Cart) Subtotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return subtotal(c.items)
}

// Tax is computed on the pre-discount subtotal. The discount does not
// shrink the tax base.
func (c *Cart) Tax() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return subtotal(c.items) * c.taxRate / 100
}

// Total = subtotal - discount + tax, with no rounding and no floor.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := subtotal(c.items)
	return sub - c.discount + sub*c.taxRate/100
}

// Clear resets the cart for the next customer. The tax rate is kept:
// it is a register setting, not a per-sale value.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.discount = 0
	c.paymentMethod = domain.PaymentCash
}

func (c *Cart) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Discount() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discount
}

func (c *Cart) TaxRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taxRate
}

func (c *Cart) PaymentMethod() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paymentMethod
}

// Snapshot returns the cart as a checkout request, ready to hand to
// the sale finalizer.
func (c *Cart) Snapshot() domain.CheckoutRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]domain.CartItem, len(c.items))
	copy(items, c.items)
	return domain.CheckoutRequest{
		Items:         items,
		Discount:      c.discount,
		TaxRate:       c.taxRate,
		PaymentMethod: c.paymentMethod,
	}
}

func subtotal(items []domain.CartItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.Price * float64(item.Quantity)
	}
	return sum
}

// Totals computes the sale figures for a list of lines outside any
// cart instance. The finalizer uses it for carts submitted over HTTP.
func Totals(items []domain.CartItem, discount float64, taxRate float64) (sub float64, tax float64, total float64) {
	sub = subtotal(items)
	tax = sub * taxRate / 100
	total = sub - discount + tax
	return sub, tax, total
}
