package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/store"
	"tokopos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	productsByID    map[string]domain.Product
	customersByID   map[string]domain.Customer
	salesByID       map[string]domain.Sale
	purchasesByID   map[string]domain.Purchase
	usersByUsername map[string]domain.UserAccount
	saleSeq         int
	purchaseSeq     int
	backupRaw       []byte
}

func New() *Store {
	return &Store{
		productsByID:    map[string]domain.Product{},
		customersByID:   map[string]domain.Customer{},
		salesByID:       map[string]domain.Sale{},
		purchasesByID:   map[string]domain.Purchase{},
		usersByUsername: seedUsers(),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD.
// If unset, hardcoded dev defaults are used with a warning. These are
// never used in production (postgres is the store when DATABASE_URL is
// set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:       u.username,
			Password:       string(hash),
			Role:           u.role,
			OrganizationID: "org_demo",
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store preloaded with a small demo catalog, two
// customers, two finished sales and one received purchase, so a fresh
// instance has data on every screen.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prod-1", SKU: "SKU001", Name: "Laptop", Price: 999, Cost: 600, Stock: 15, Unit: "pc", Category: "electronics"},
		{ID: "prod-2", SKU: "SKU002", Name: "Mouse", Price: 29, Cost: 10, Stock: 150, Unit: "pc", Category: "accessories"},
		{ID: "prod-3", SKU: "SKU003", Name: "Keyboard", Price: 79, Cost: 30, Stock: 80, Unit: "pc", Category: "accessories"},
		{ID: "prod-4", SKU: "SKU004", Name: "Monitor", Price: 299, Cost: 150, Stock: 25, Unit: "pc", Category: "electronics"},
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.productsByID[p.ID] = p
	}

	customers := []domain.Customer{
		{ID: "cust-1", Name: "John Doe", Email: "john@example.com", Phone: "555-0101", CreditLimit: 5000, TotalPurchases: 1250},
		{ID: "cust-2", Name: "Jane Smith", Email: "jane@example.com", Phone: "555-0102", CreditLimit: 3000, TotalPurchases: 890},
	}
	for _, c := range customers {
		c.CreatedAt = now
		c.UpdatedAt = now
		s.customersByID[c.ID] = c
	}

	sales := []domain.Sale{
		{
			ID:         "sale-1",
			SaleNumber: "SALE-001",
			Items: []domain.SaleItem{
				{ProductID: "prod-2", ProductName: "Mouse", Price: 29, Quantity: 2, Subtotal: 58},
			},
			Subtotal:      58,
			TaxRate:       10,
			Tax:           5.8,
			Total:         63.8,
			PaymentMethod: domain.PaymentCash,
			CreatedAt:     now.Add(-48 * time.Hour),
		},
		{
			ID:         "sale-2",
			SaleNumber: "SALE-002",
			Items: []domain.SaleItem{
				{ProductID: "prod-3", ProductName: "Keyboard", Price: 79, Quantity: 1, Subtotal: 79},
			},
			Subtotal:      79,
			TaxRate:       10,
			Tax:           7.9,
			Total:         86.9,
			PaymentMethod: domain.PaymentCard,
			CustomerID:    "cust-1",
			CustomerName:  "John Doe",
			CreatedAt:     now.Add(-24 * time.Hour),
		},
	}
	for _, sale := range sales {
		s.salesByID[sale.ID] = sale
	}
	s.saleSeq = 2

	received := now.Add(-72 * time.Hour)
	s.purchasesByID["purch-1"] = domain.Purchase{
		ID:             "purch-1",
		PurchaseNumber: "PO-001",
		Supplier:       "Tech Supplies Inc",
		InvoiceNumber:  "INV-001",
		Items: []domain.PurchaseItem{
			{ProductID: "prod-2", ProductName: "Mouse", Cost: 10, Quantity: 50},
		},
		Subtotal:   500,
		Tax:        50,
		Total:      550,
		Status:     domain.PurchaseStatusReceived,
		CreatedAt:  received,
		ReceivedAt: &received,
	}
	s.purchaseSeq = 1

	return s
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		out = append(out, p)
	}
	sortProducts(out)
	return out, nil
}

func (s *Store) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0)
	for _, p := range s.productsByID {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.SKU), q) {
			out = append(out, p)
		}
	}
	sortProducts(out)
	return out, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.productsByID {
		if strings.EqualFold(existing.SKU, product.SKU) {
			return nil, store.ErrDuplicateSKU
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.productsByID[product.ID] = product
	return &product, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.productsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.productsByID[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.productsByID[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.productsByID {
		if id != product.ID && strings.EqualFold(other.SKU, product.SKU) {
			return nil, store.ErrDuplicateSKU
		}
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.productsByID[product.ID] = product
	return &product, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.productsByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.productsByID, id)
	return nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Customer) int { return cmpString(a.Name, b.Name) })
	return out, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	s.customersByID[customer.ID] = customer
	return &customer, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.customersByID[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt
	customer.TotalPurchases = existing.TotalPurchases
	customer.UpdatedAt = time.Now().UTC()
	s.customersByID[customer.ID] = customer
	return &customer, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customersByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customersByID, id)
	return nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stock is checked for every line before any line is applied, so
	// a failed sale changes nothing.
	need := map[string]int{}
	for _, item := range sale.Items {
		need[item.ProductID] += item.Quantity
	}
	for productID, qty := range need {
		p, ok := s.productsByID[productID]
		if !ok {
			return nil, fmt.Errorf("sale line %s: %w", productID, store.ErrNotFound)
		}
		if p.Stock < qty {
			return nil, fmt.Errorf("sale line %s: %w", p.SKU, store.ErrInsufficientStock)
		}
	}

	now := time.Now().UTC()
	for productID, qty := range need {
		p := s.productsByID[productID]
		p.Stock -= qty
		p.UpdatedAt = now
		s.productsByID[productID] = p
	}

	if sale.CustomerID != "" {
		c, ok := s.customersByID[sale.CustomerID]
		if ok {
			c.TotalPurchases += sale.Total
			c.UpdatedAt = now
			s.customersByID[sale.CustomerID] = c
			sale.CustomerName = c.Name
		}
	}

	s.saleSeq++
	sale.SaleNumber = fmt.Sprintf("SALE-%03d", s.saleSeq)
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	sale.CreatedAt = now
	s.salesByID[sale.ID] = cloneSale(sale)
	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		out = append(out, cloneSale(sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.purchaseSeq++
	purchase.PurchaseNumber = fmt.Sprintf("PO-%03d", s.purchaseSeq)
	if purchase.ID == "" {
		purchase.ID = xid.New("purch")
	}
	if purchase.Status == "" {
		purchase.Status = domain.PurchaseStatusPending
	}
	purchase.CreatedAt = now

	if purchase.Status == domain.PurchaseStatusReceived {
		received := now
		purchase.ReceivedAt = &received
		s.applyPurchaseStock(purchase, now)
	}

	s.purchasesByID[purchase.ID] = clonePurchase(purchase)
	return &purchase, nil
}

func (s *Store) GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.purchasesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := clonePurchase(p)
	return &out, nil
}

func (s *Store) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Purchase, 0, len(s.purchasesByID))
	for _, p := range s.purchasesByID {
		out = append(out, clonePurchase(p))
	}
	slices.SortFunc(out, func(a, b domain.Purchase) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ReceivePurchase(ctx context.Context, id string, receivedAt time.Time) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchasesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Status == domain.PurchaseStatusReceived {
		return nil, store.ErrInvalidInput
	}
	at := receivedAt.UTC()
	p.Status = domain.PurchaseStatusReceived
	p.ReceivedAt = &at
	s.applyPurchaseStock(p, at)
	s.purchasesByID[id] = p
	out := clonePurchase(p)
	return &out, nil
}

// applyPurchaseStock increments stock for every line that still
// resolves to a catalog product. Caller holds the write lock.
func (s *Store) applyPurchaseStock(purchase domain.Purchase, at time.Time) {
	for _, item := range purchase.Items {
		p, ok := s.productsByID[item.ProductID]
		if !ok {
			continue
		}
		p.Stock += item.Quantity
		p.UpdatedAt = at
		s.productsByID[item.ProductID] = p
	}
}

func (s *Store) Export(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := domain.Snapshot{
		Products:  make([]domain.Product, 0, len(s.productsByID)),
		Customers: make([]domain.Customer, 0, len(s.customersByID)),
		Sales:     make([]domain.Sale, 0, len(s.salesByID)),
		Purchases: make([]domain.Purchase, 0, len(s.purchasesByID)),
	}
	for _, p := range s.productsByID {
		snap.Products = append(snap.Products, p)
	}
	for _, c := range s.customersByID {
		snap.Customers = append(snap.Customers, c)
	}
	for _, sale := range s.salesByID {
		snap.Sales = append(snap.Sales, cloneSale(sale))
	}
	for _, p := range s.purchasesByID {
		snap.Purchases = append(snap.Purchases, clonePurchase(p))
	}
	sortProducts(snap.Products)
	slices.SortFunc(snap.Customers, func(a, b domain.Customer) int { return cmpString(a.Name, b.Name) })
	slices.SortFunc(snap.Sales, func(a, b domain.Sale) int { return cmpString(a.SaleNumber, b.SaleNumber) })
	slices.SortFunc(snap.Purchases, func(a, b domain.Purchase) int { return cmpString(a.PurchaseNumber, b.PurchaseNumber) })
	return &snap, nil
}

// Import replaces every collection in one step. The number counters
// restart past the highest imported sale and purchase numbers so new
// documents never collide with restored ones.
func (s *Store) Import(ctx context.Context, snapshot domain.Snapshot) error {
	products := make(map[string]domain.Product, len(snapshot.Products))
	for _, p := range snapshot.Products {
		if p.ID == "" {
			return store.ErrInvalidInput
		}
		products[p.ID] = p
	}
	customers := make(map[string]domain.Customer, len(snapshot.Customers))
	for _, c := range snapshot.Customers {
		if c.ID == "" {
			return store.ErrInvalidInput
		}
		customers[c.ID] = c
	}
	sales := make(map[string]domain.Sale, len(snapshot.Sales))
	saleSeq := 0
	for _, sale := range snapshot.Sales {
		if sale.ID == "" {
			return store.ErrInvalidInput
		}
		sales[sale.ID] = cloneSale(sale)
		if n := numberSeq(sale.SaleNumber); n > saleSeq {
			saleSeq = n
		}
	}
	purchases := make(map[string]domain.Purchase, len(snapshot.Purchases))
	purchaseSeq := 0
	for _, p := range snapshot.Purchases {
		if p.ID == "" {
			return store.ErrInvalidInput
		}
		purchases[p.ID] = clonePurchase(p)
		if n := numberSeq(p.PurchaseNumber); n > purchaseSeq {
			purchaseSeq = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.productsByID = products
	s.customersByID = customers
	s.salesByID = sales
	s.purchasesByID = purchases
	s.saleSeq = saleSeq
	s.purchaseSeq = purchaseSeq
	return nil
}

func (s *Store) SaveBackup(ctx context.Context, raw []byte) error {
	if len(raw) == 0 {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backupRaw = slices.Clone(raw)
	return nil
}

func (s *Store) LatestBackup(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.backupRaw == nil {
		return nil, store.ErrNotFound
	}
	return slices.Clone(s.backupRaw), nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("username %s: %w", username, store.ErrInvalidInput)
	}
	now := time.Now().UTC()
	user.Username = username
	user.CreatedAt = now
	user.UpdatedAt = now
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		u.Password = ""
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int { return cmpString(a.Username, b.Username) })
	return out, nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	items := make([]domain.SaleItem, len(sale.Items))
	copy(items, sale.Items)
	sale.Items = items
	return sale
}

func clonePurchase(p domain.Purchase) domain.Purchase {
	items := make([]domain.PurchaseItem, len(p.Items))
	copy(items, p.Items)
	p.Items = items
	if p.ReceivedAt != nil {
		at := *p.ReceivedAt
		p.ReceivedAt = &at
	}
	return p
}

func sortProducts(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int { return cmpString(a.Name, b.Name) })
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// numberSeq extracts the numeric suffix of a document number like
// SALE-012 or PO-007. Unparseable numbers count as zero.
func numberSeq(number string) int {
	idx := strings.LastIndex(number, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(number[idx+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
