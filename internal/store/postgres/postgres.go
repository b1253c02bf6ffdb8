package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/store"
	"tokopos/backend/internal/xid"
)

// Store persists everything in PostgreSQL. Sale and purchase lines
// live as jsonb on their parent row; SALE- and PO- numbers come from
// the sale_number_seq and purchase_number_seq sequences.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, sku, name, price, cost, stock, unit, COALESCE(category, ''), created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Cost, &p.Stock, &p.Unit, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE name ILIKE '%' || $1 || '%' OR sku ILIKE '%' || $1 || '%'
		ORDER BY name
	`, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, price, cost, stock, unit, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, product.ID, product.SKU, product.Name, product.Price, product.Cost, product.Stock,
		product.Unit, nullIfEmpty(product.Category), product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateSKU
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.UpdatedAt = time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET sku = $2, name = $3, price = $4, cost = $5, stock = $6, unit = $7, category = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+productColumns+`
	`, product.ID, product.SKU, product.Name, product.Price, product.Cost, product.Stock,
		product.Unit, nullIfEmpty(product.Category), product.UpdatedAt)

	updated, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateSKU
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const customerColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(address, ''), credit_limit, total_purchases, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreditLimit, &c.TotalPurchases, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, address, credit_limit, total_purchases, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Email), nullIfEmpty(customer.Phone),
		nullIfEmpty(customer.Address), customer.CreditLimit, customer.TotalPurchases,
		customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1
	`, id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, address = $5, credit_limit = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+customerColumns+`
	`, customer.ID, customer.Name, nullIfEmpty(customer.Email), nullIfEmpty(customer.Phone),
		nullIfEmpty(customer.Address), customer.CreditLimit)

	updated, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateSale runs the whole finalize step inside one serializable
// transaction: stock decrements, the customer total bump, and the
// sale row either all land or none do.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	need := map[string]int{}
	for _, item := range sale.Items {
		need[item.ProductID] += item.Quantity
	}
	for productID, qty := range need {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2
		`, productID, qty)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
				return nil, err
			}
			if !exists {
				return nil, fmt.Errorf("sale line %s: %w", productID, store.ErrNotFound)
			}
			return nil, fmt.Errorf("sale line %s: %w", productID, store.ErrInsufficientStock)
		}
	}

	if sale.CustomerID != "" {
		err := tx.QueryRowContext(ctx, `
			UPDATE customers
			SET total_purchases = total_purchases + $2, updated_at = now()
			WHERE id = $1
			RETURNING name
		`, sale.CustomerID, sale.Total).Scan(&sale.CustomerName)
		if errors.Is(err, sql.ErrNoRows) {
			sale.CustomerID = ""
		} else if err != nil {
			return nil, err
		}
	}

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT nextval('sale_number_seq')`).Scan(&seq); err != nil {
		return nil, err
	}
	sale.SaleNumber = fmt.Sprintf("SALE-%03d", seq)
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	sale.CreatedAt = time.Now().UTC()

	items, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, sale_number, items, subtotal, discount, tax_rate, tax, total, payment_method, customer_id, customer_name, cashier, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, sale.ID, sale.SaleNumber, items, sale.Subtotal, sale.Discount, sale.TaxRate, sale.Tax,
		sale.Total, sale.PaymentMethod, nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.CustomerName),
		nullIfEmpty(sale.Cashier), sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

const saleColumns = `id, sale_number, items, subtotal, discount, tax_rate, tax, total, payment_method, COALESCE(customer_id, ''), COALESCE(customer_name, ''), COALESCE(cashier, ''), created_at`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	var items []byte
	err := row.Scan(&sale.ID, &sale.SaleNumber, &items, &sale.Subtotal, &sale.Discount,
		&sale.TaxRate, &sale.Tax, &sale.Total, &sale.PaymentMethod, &sale.CustomerID,
		&sale.CustomerName, &sale.Cashier, &sale.CreatedAt)
	if err != nil {
		return sale, err
	}
	if err := json.Unmarshal(items, &sale.Items); err != nil {
		return sale, err
	}
	return sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT nextval('purchase_number_seq')`).Scan(&seq); err != nil {
		return nil, err
	}
	purchase.PurchaseNumber = fmt.Sprintf("PO-%03d", seq)
	if purchase.ID == "" {
		purchase.ID = xid.New("purch")
	}
	if purchase.Status == "" {
		purchase.Status = domain.PurchaseStatusPending
	}
	purchase.CreatedAt = time.Now().UTC()

	if purchase.Status == domain.PurchaseStatusReceived {
		received := purchase.CreatedAt
		purchase.ReceivedAt = &received
		if err := applyPurchaseStockTx(ctx, tx, purchase.Items); err != nil {
			return nil, err
		}
	}

	items, err := json.Marshal(purchase.Items)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (id, purchase_number, supplier, invoice_number, items, subtotal, tax, total, status, created_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, purchase.ID, purchase.PurchaseNumber, purchase.Supplier, nullIfEmpty(purchase.InvoiceNumber),
		items, purchase.Subtotal, purchase.Tax, purchase.Total, purchase.Status, purchase.CreatedAt, nullTime(purchase.ReceivedAt))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &purchase, nil
}

const purchaseColumns = `id, purchase_number, supplier, COALESCE(invoice_number, ''), items, subtotal, tax, total, status, created_at, received_at`

func scanPurchase(row interface{ Scan(...any) error }) (domain.Purchase, error) {
	var p domain.Purchase
	var items []byte
	var receivedAt sql.NullTime
	err := row.Scan(&p.ID, &p.PurchaseNumber, &p.Supplier, &p.InvoiceNumber, &items,
		&p.Subtotal, &p.Tax, &p.Total, &p.Status, &p.CreatedAt, &receivedAt)
	if err != nil {
		return p, err
	}
	if receivedAt.Valid {
		at := receivedAt.Time
		p.ReceivedAt = &at
	}
	if err := json.Unmarshal(items, &p.Items); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Store) GetPurchaseByID(ctx context.Context, id string) (*domain.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, limit)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (s *Store) ReceivePurchase(ctx context.Context, id string, receivedAt time.Time) (*domain.Purchase, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PurchaseStatusReceived {
		return nil, store.ErrInvalidInput
	}

	at := receivedAt.UTC()
	p.Status = domain.PurchaseStatusReceived
	p.ReceivedAt = &at

	if err := applyPurchaseStockTx(ctx, tx, p.Items); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE purchases
		SET status = $2, received_at = $3
		WHERE id = $1
	`, p.ID, p.Status, at)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &p, nil
}

// applyPurchaseStockTx increments stock per line. Lines whose product
// no longer exists are skipped, mirroring the recorder's resolve
// step.
func applyPurchaseStockTx(ctx context.Context, tx *sql.Tx, items []domain.PurchaseItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock + $2, updated_at = now()
			WHERE id = $1
		`, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Export(ctx context.Context) (*domain.Snapshot, error) {
	snap := domain.Snapshot{}

	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	snap.Products = products

	customers, err := s.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	snap.Customers = customers

	sales, err := s.ListSales(ctx, 1_000_000)
	if err != nil {
		return nil, err
	}
	snap.Sales = sales

	purchases, err := s.ListPurchases(ctx, 1_000_000)
	if err != nil {
		return nil, err
	}
	snap.Purchases = purchases

	return &snap, nil
}

func (s *Store) Import(ctx context.Context, snapshot domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `TRUNCATE products, customers, sales, purchases`); err != nil {
		return err
	}

	for _, p := range snapshot.Products {
		if p.ID == "" {
			return store.ErrInvalidInput
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, sku, name, price, cost, stock, unit, category, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, p.ID, p.SKU, p.Name, p.Price, p.Cost, p.Stock, p.Unit, nullIfEmpty(p.Category), p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return err
		}
	}
	for _, c := range snapshot.Customers {
		if c.ID == "" {
			return store.ErrInvalidInput
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO customers (id, name, email, phone, address, credit_limit, total_purchases, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, c.ID, c.Name, nullIfEmpty(c.Email), nullIfEmpty(c.Phone), nullIfEmpty(c.Address),
			c.CreditLimit, c.TotalPurchases, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return err
		}
	}

	maxSale := 0
	for _, sale := range snapshot.Sales {
		if sale.ID == "" {
			return store.ErrInvalidInput
		}
		items, err := json.Marshal(sale.Items)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sales (id, sale_number, items, subtotal, discount, tax_rate, tax, total, payment_method, customer_id, customer_name, cashier, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, sale.ID, sale.SaleNumber, items, sale.Subtotal, sale.Discount, sale.TaxRate, sale.Tax,
			sale.Total, sale.PaymentMethod, nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.CustomerName),
			nullIfEmpty(sale.Cashier), sale.CreatedAt)
		if err != nil {
			return err
		}
		if n := numberSeq(sale.SaleNumber); n > maxSale {
			maxSale = n
		}
	}

	maxPurchase := 0
	for _, p := range snapshot.Purchases {
		if p.ID == "" {
			return store.ErrInvalidInput
		}
		items, err := json.Marshal(p.Items)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO purchases (id, purchase_number, supplier, invoice_number, items, subtotal, tax, total, status, created_at, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, p.ID, p.PurchaseNumber, p.Supplier, nullIfEmpty(p.InvoiceNumber), items, p.Subtotal,
			p.Tax, p.Total, p.Status, p.CreatedAt, nullTime(p.ReceivedAt))
		if err != nil {
			return err
		}
		if n := numberSeq(p.PurchaseNumber); n > maxPurchase {
			maxPurchase = n
		}
	}

	if err := resetSequence(ctx, tx, "sale_number_seq", maxSale); err != nil {
		return err
	}
	if err := resetSequence(ctx, tx, "purchase_number_seq", maxPurchase); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveBackup keeps exactly one backup row; each save replaces the
// previous one.
func (s *Store) SaveBackup(ctx context.Context, raw []byte) error {
	if len(raw) == 0 {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backups (slot, payload, created_at)
		VALUES (1, $1, now())
		ON CONFLICT (slot) DO UPDATE SET payload = EXCLUDED.payload, created_at = now()
	`, raw)
	return err
}

func (s *Store) LatestBackup(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM backups WHERE slot = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func resetSequence(ctx context.Context, tx *sql.Tx, name string, last int) error {
	if last > 0 {
		_, err := tx.ExecContext(ctx, `SELECT setval($1, $2, true)`, name, last)
		return err
	}
	_, err := tx.ExecContext(ctx, `SELECT setval($1, 1, false)`, name)
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, organization_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, username, user.Password, user.Role, user.OrganizationID, now, now)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %s: %w", username, store.ErrInvalidInput)
	}
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, COALESCE(organization_id, ''), created_at, updated_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(
		&u.Username, &u.Password, &u.Role, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, role, COALESCE(organization_id, ''), created_at, updated_at
		FROM app_users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Role, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func numberSeq(number string) int {
	idx := strings.LastIndex(number, "-")
	if idx < 0 {
		return 0
	}
	n := 0
	for _, r := range number[idx+1:] {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
