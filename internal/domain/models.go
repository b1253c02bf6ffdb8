package domain

import "time"

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentOnline = "online"
)

const (
	PurchaseStatusPending  = "Pending"
	PurchaseStatusReceived = "Received"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// Product is one catalog entry. Price and Cost are decimal currency
// amounts; Stock is the on-hand quantity in Unit.
type Product struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Cost      float64   `json:"cost"`
	Stock     int       `json:"stock"`
	Unit      string    `json:"unit"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Customer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	CreditLimit    float64   `json:"creditLimit"`
	TotalPurchases float64   `json:"totalPurchases"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CartItem is one line in an open cart. ProductName and Price are
// snapshots taken when the line was added; later catalog edits do not
// touch lines already in a cart.
type CartItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

type SaleItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}

type Sale struct {
	ID            string     `json:"id"`
	SaleNumber    string     `json:"saleNumber"`
	Items         []SaleItem `json:"items"`
	Subtotal      float64    `json:"subtotal"`
	Discount      float64    `json:"discount"`
	TaxRate       float64    `json:"taxRate"`
	Tax           float64    `json:"tax"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"paymentMethod"`
	CustomerID    string     `json:"customerId,omitempty"`
	CustomerName  string     `json:"customerName,omitempty"`
	Cashier       string     `json:"cashier,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type PurchaseItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Cost        float64 `json:"cost"`
	Quantity    int     `json:"quantity"`
}

type Purchase struct {
	ID             string         `json:"id"`
	PurchaseNumber string         `json:"purchaseNumber"`
	Supplier       string         `json:"supplier"`
	InvoiceNumber  string         `json:"invoiceNumber,omitempty"`
	Items          []PurchaseItem `json:"items"`
	Subtotal       float64        `json:"subtotal"`
	Tax            float64        `json:"tax"`
	Total          float64        `json:"total"`
	Status         string         `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	ReceivedAt     *time.Time     `json:"receivedAt,omitempty"`
}

// Actor identifies the authenticated user behind a request.
type Actor struct {
	Username       string `json:"username"`
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId,omitempty"`
}

type UserAccount struct {
	Username       string    `json:"username"`
	Password       string    `json:"-"`
	Role           string    `json:"role"`
	OrganizationID string    `json:"organizationId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Snapshot is the backup payload: the full state of every collection
// at one point in time.
type Snapshot struct {
	Products  []Product  `json:"products"`
	Customers []Customer `json:"customers"`
	Sales     []Sale     `json:"sales"`
	Purchases []Purchase `json:"purchases"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Actor     `json:"user"`
}

type ProductInput struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Cost     float64 `json:"cost"`
	Stock    int     `json:"stock"`
	Unit     string  `json:"unit"`
	Category string  `json:"category"`
}

type CustomerInput struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Address     string  `json:"address"`
	CreditLimit float64 `json:"creditLimit"`
}

type CheckoutRequest struct {
	Items         []CartItem `json:"items"`
	Discount      float64    `json:"discount"`
	TaxRate       float64    `json:"taxRate"`
	PaymentMethod string     `json:"paymentMethod"`
	CustomerID    string     `json:"customerId"`
}

// PurchaseInput carries the purchase form. Tax is a flat amount the
// operator enters, not a rate.
type PurchaseInput struct {
	Supplier      string         `json:"supplier"`
	InvoiceNumber string         `json:"invoiceNumber"`
	Items         []PurchaseItem `json:"items"`
	Tax           float64        `json:"tax"`
	Status        string         `json:"status"`
}
