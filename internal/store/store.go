package store

import (
	"context"
	"errors"
	"time"

	"tokopos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateSKU      = errors.New("duplicate sku")
)

// Repository is the persistence boundary. Implementations own the
// monotonic sale and purchase counters, so sequential numbers stay
// unique under concurrent writers.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	// CreateSale assigns the next SALE- number, decrements stock for
	// every line in one guarded step, and bumps the attached
	// customer's lifetime total. Any line short on stock fails the
	// whole sale with ErrInsufficientStock.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)

	// CreatePurchase assigns the next PO- number. A purchase created
	// with status Received applies its stock immediately.
	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error)
	ReceivePurchase(ctx context.Context, id string, receivedAt time.Time) (*domain.Purchase, error)

	// Export copies every collection; Import replaces every
	// collection atomically and resets the number counters past the
	// highest imported number.
	Export(ctx context.Context) (*domain.Snapshot, error)
	Import(ctx context.Context, snapshot domain.Snapshot) error

	// SaveBackup overwrites the single backup slot with the raw
	// envelope; LatestBackup reads it back, or ErrNotFound when no
	// backup has been saved yet.
	SaveBackup(ctx context.Context, raw []byte) error
	LatestBackup(ctx context.Context) ([]byte, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
