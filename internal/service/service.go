package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tokopos/backend/internal/backup"
	"tokopos/backend/internal/cache"
	"tokopos/backend/internal/cart"
	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/store"
)

// ErrForbidden marks an authorization failure: the actor is known but
// their role does not allow the operation.
var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo        store.Repository
	searchCache cache.SearchCache
	searchTTL   time.Duration
}

func New(repo store.Repository, searchCache cache.SearchCache, searchTTL time.Duration) *Service {
	if searchCache == nil {
		searchCache = cache.NoopSearchCache{}
	}
	if searchTTL <= 0 {
		searchTTL = 30 * time.Second
	}

	return &Service{
		repo:        repo,
		searchCache: searchCache,
		searchTTL:   searchTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// SearchProducts matches the query against product names and SKUs,
// case-insensitive. Results are cached per normalized query so two
// overlapping searches cannot clobber each other.
func (s *Service) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.repo.ListProducts(ctx)
	}

	if cached, found, err := s.searchCache.Get(ctx, query); err != nil {
		log.Printf("[service] WARN: search cache get failed query=%q: %v", query, err)
	} else if found {
		return cached, nil
	}

	products, err := s.repo.SearchProducts(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.searchCache.Set(ctx, query, products, s.searchTTL); err != nil {
		log.Printf("[service] WARN: search cache set failed query=%q: %v", query, err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required: %w", ErrForbidden)
	}

	input.SKU = strings.ToUpper(strings.TrimSpace(input.SKU))
	input.Name = strings.TrimSpace(input.Name)
	input.Unit = strings.TrimSpace(input.Unit)
	if input.Unit == "" {
		input.Unit = "pc"
	}

	if input.SKU == "" || input.Name == "" {
		return domain.Product{}, fmt.Errorf("sku and name required: %w", store.ErrInvalidInput)
	}
	if input.Price < 0 || input.Cost < 0 || input.Stock < 0 {
		return domain.Product{}, fmt.Errorf("negative price, cost or stock: %w", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:      input.SKU,
		Name:     input.Name,
		Price:    input.Price,
		Cost:     input.Cost,
		Stock:    input.Stock,
		Unit:     input.Unit,
		Category: strings.TrimSpace(input.Category),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateSearch(ctx)
	s.logAudit(ctx, "product_create", created.ID, fmt.Sprintf("sku=%s,name=%s", created.SKU, created.Name))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, input domain.ProductInput) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Product{}, fmt.Errorf("admin role required: %w", ErrForbidden)
	}

	existing, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	input.SKU = strings.ToUpper(strings.TrimSpace(input.SKU))
	input.Name = strings.TrimSpace(input.Name)
	if input.SKU == "" || input.Name == "" {
		return domain.Product{}, fmt.Errorf("sku and name required: %w", store.ErrInvalidInput)
	}
	if input.Price < 0 || input.Cost < 0 || input.Stock < 0 {
		return domain.Product{}, fmt.Errorf("negative price, cost or stock: %w", store.ErrInvalidInput)
	}
	if input.Unit == "" {
		input.Unit = existing.Unit
	}

	updated, err := s.repo.UpdateProduct(ctx, domain.Product{
		ID:       existing.ID,
		SKU:      input.SKU,
		Name:     input.Name,
		Price:    input.Price,
		Cost:     input.Cost,
		Stock:    input.Stock,
		Unit:     input.Unit,
		Category: strings.TrimSpace(input.Category),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateSearch(ctx)
	s.logAudit(ctx, "product_update", updated.ID, fmt.Sprintf("sku=%s", updated.SKU))
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required: %w", ErrForbidden)
	}

	if err := s.repo.DeleteProduct(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.invalidateSearch(ctx)
	s.logAudit(ctx, "product_delete", id, "")
	return nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	c, err := s.repo.GetCustomerByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

func (s *Service) CreateCustomer(ctx context.Context, input domain.CustomerInput) (domain.Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return domain.Customer{}, fmt.Errorf("customer name required: %w", store.ErrInvalidInput)
	}
	if input.CreditLimit < 0 {
		return domain.Customer{}, fmt.Errorf("negative credit limit: %w", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:        input.Name,
		Email:       strings.TrimSpace(input.Email),
		Phone:       strings.TrimSpace(input.Phone),
		Address:     strings.TrimSpace(input.Address),
		CreditLimit: input.CreditLimit,
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, input domain.CustomerInput) (domain.Customer, error) {
	existing, err := s.repo.GetCustomerByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return domain.Customer{}, fmt.Errorf("customer name required: %w", store.ErrInvalidInput)
	}
	if input.CreditLimit < 0 {
		return domain.Customer{}, fmt.Errorf("negative credit limit: %w", store.ErrInvalidInput)
	}

	updated, err := s.repo.UpdateCustomer(ctx, domain.Customer{
		ID:          existing.ID,
		Name:        input.Name,
		Email:       strings.TrimSpace(input.Email),
		Phone:       strings.TrimSpace(input.Phone),
		Address:     strings.TrimSpace(input.Address),
		CreditLimit: input.CreditLimit,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required: %w", ErrForbidden)
	}
	if err := s.repo.DeleteCustomer(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", id, "")
	return nil
}

// Checkout turns a submitted cart into a finalized sale. The totals
// are recomputed server-side, never trusted from the client: tax
// applies to the pre-discount subtotal and the flat discount is taken
// as-is.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Sale, error) {
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("empty cart: %w", store.ErrInvalidInput)
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return domain.Sale{}, fmt.Errorf("bad line %q qty %d: %w", item.ProductID, item.Quantity, store.ErrInvalidInput)
		}
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = domain.PaymentCash
	}
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentOnline:
	default:
		return domain.Sale{}, fmt.Errorf("unknown payment method %q: %w", method, store.ErrInvalidInput)
	}

	sub, tax, total := cart.Totals(req.Items, req.Discount, req.TaxRate)

	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.SaleItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Subtotal:    item.Price * float64(item.Quantity),
		})
	}

	sale := domain.Sale{
		Items:         items,
		Subtotal:      sub,
		Discount:      req.Discount,
		TaxRate:       req.TaxRate,
		Tax:           tax,
		Total:         total,
		PaymentMethod: method,
		CustomerID:    strings.TrimSpace(req.CustomerID),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		sale.Cashier = actor.Username
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_create", created.ID, fmt.Sprintf("number=%s,total=%.2f", created.SaleNumber, created.Total))
	return *created, nil
}

// CheckoutCart finalizes a server-held cart. The cart is cleared only
// after the sale persists; any failure leaves it intact for retry.
func (s *Service) CheckoutCart(ctx context.Context, c *cart.Cart, customerID string) (domain.Sale, error) {
	req := c.Snapshot()
	req.CustomerID = customerID

	sale, err := s.Checkout(ctx, req)
	if err != nil {
		return domain.Sale{}, err
	}
	c.Clear()
	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListSales(ctx, limit)
}

// RecordPurchase books a supplier delivery. Lines are resolved
// against the catalog by product ID; lines that resolve to nothing
// are dropped silently. A purchase where no line resolves is invalid.
// The subtotal sums cost times quantity over the kept lines and the
// total adds the flat tax amount from the form.
func (s *Service) RecordPurchase(ctx context.Context, input domain.PurchaseInput) (domain.Purchase, error) {
	input.Supplier = strings.TrimSpace(input.Supplier)
	if input.Supplier == "" {
		return domain.Purchase{}, fmt.Errorf("supplier required: %w", store.ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return domain.Purchase{}, fmt.Errorf("no purchase lines: %w", store.ErrInvalidInput)
	}
	if input.Tax < 0 {
		return domain.Purchase{}, fmt.Errorf("negative tax: %w", store.ErrInvalidInput)
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = domain.PurchaseStatusPending
	}
	if status != domain.PurchaseStatusPending && status != domain.PurchaseStatusReceived {
		return domain.Purchase{}, fmt.Errorf("unknown status %q: %w", status, store.ErrInvalidInput)
	}

	ids := make([]string, 0, len(input.Items))
	for _, item := range input.Items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.Purchase{}, err
	}

	items := make([]domain.PurchaseItem, 0, len(input.Items))
	var subtotal float64
	for _, item := range input.Items {
		p, ok := catalog[item.ProductID]
		if !ok {
			log.Printf("[service] purchase line skipped, unknown product id=%q", item.ProductID)
			continue
		}
		if item.Quantity <= 0 || item.Cost < 0 {
			return domain.Purchase{}, fmt.Errorf("bad line for %s: %w", p.SKU, store.ErrInvalidInput)
		}
		name := item.ProductName
		if name == "" {
			name = p.Name
		}
		items = append(items, domain.PurchaseItem{
			ProductID:   item.ProductID,
			ProductName: name,
			Cost:        item.Cost,
			Quantity:    item.Quantity,
		})
		subtotal += item.Cost * float64(item.Quantity)
	}
	if len(items) == 0 {
		return domain.Purchase{}, fmt.Errorf("no purchase line resolved to a product: %w", store.ErrInvalidInput)
	}

	created, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		Supplier:      input.Supplier,
		InvoiceNumber: strings.TrimSpace(input.InvoiceNumber),
		Items:         items,
		Subtotal:      subtotal,
		Tax:           input.Tax,
		Total:         subtotal + input.Tax,
		Status:        status,
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.invalidateSearch(ctx)
	s.logAudit(ctx, "purchase_create", created.ID, fmt.Sprintf("number=%s,supplier=%s,status=%s", created.PurchaseNumber, created.Supplier, created.Status))
	return *created, nil
}

func (s *Service) ReceivePurchase(ctx context.Context, id string) (domain.Purchase, error) {
	received, err := s.repo.ReceivePurchase(ctx, strings.TrimSpace(id), time.Now().UTC())
	if err != nil {
		return domain.Purchase{}, err
	}
	s.invalidateSearch(ctx)
	s.logAudit(ctx, "purchase_receive", received.ID, fmt.Sprintf("number=%s", received.PurchaseNumber))
	return *received, nil
}

func (s *Service) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	p, err := s.repo.GetPurchaseByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Purchase{}, err
	}
	return *p, nil
}

func (s *Service) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListPurchases(ctx, limit)
}

// CreateBackup snapshots the full state into an envelope and
// overwrites the single backup slot. There is no backup history; the
// slot always holds the most recent envelope.
func (s *Service) CreateBackup(ctx context.Context) (*backup.Envelope, error) {
	snap, err := s.repo.Export(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := backup.Encode(*snap, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveBackup(ctx, raw); err != nil {
		return nil, err
	}
	env, err := backup.Decode(raw)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "backup_create", env.ID, fmt.Sprintf("products=%d,sales=%d", len(snap.Products), len(snap.Sales)))
	return env, nil
}

// ExportBackup reads the persisted backup slot. It never creates a
// backup itself; with an empty slot the caller gets ErrNotFound. The
// returned filename is dated from the envelope's timestamp.
func (s *Service) ExportBackup(ctx context.Context) ([]byte, string, error) {
	raw, err := s.repo.LatestBackup(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("no backup created yet: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	env, err := backup.Decode(raw)
	if err != nil {
		return nil, "", err
	}
	s.logAudit(ctx, "backup_export", env.ID, fmt.Sprintf("timestamp=%s", env.Timestamp.Format(time.RFC3339)))
	return raw, backup.Filename(env.Timestamp), nil
}

// ImportBackup replaces all state with the backup's contents. A
// payload that fails to decode restores nothing.
func (s *Service) ImportBackup(ctx context.Context, raw []byte) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required: %w", ErrForbidden)
	}

	env, err := backup.Decode(raw)
	if err != nil {
		return err
	}
	if err := s.repo.Import(ctx, env.Data); err != nil {
		return err
	}
	s.invalidateSearch(ctx)
	s.logAudit(ctx, "backup_import", env.ID, fmt.Sprintf("timestamp=%s", env.Timestamp.Format(time.RFC3339)))
	return nil
}

func (s *Service) invalidateSearch(ctx context.Context) {
	if err := s.searchCache.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: search cache invalidate failed: %v", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityID string, detail string) {
	actor := "system"
	if a, ok := ActorFromContext(ctx); ok {
		actor = a.Username
	}
	log.Printf("[audit] actor=%s action=%s entity=%s %s", actor, action, entityID, detail)
}
