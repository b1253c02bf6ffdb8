package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/store"
)

func TestCreateSaleDecrementsStock(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	before, err := s.GetProductByID(ctx, "prod-2")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}

	sale := domain.Sale{
		Items: []domain.SaleItem{
			{ProductID: "prod-2", ProductName: "Mouse", Price: 29, Quantity: 3, Subtotal: 87},
		},
		Subtotal: 87, Total: 87, PaymentMethod: domain.PaymentCash,
	}
	created, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.SaleNumber != "SALE-003" {
		t.Fatalf("sale number = %q, want SALE-003", created.SaleNumber)
	}

	after, err := s.GetProductByID(ctx, "prod-2")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != before.Stock-3 {
		t.Fatalf("stock = %d, want %d", after.Stock, before.Stock-3)
	}
}

func TestCreateSaleInsufficientStockChangesNothing(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := domain.Sale{
		Items: []domain.SaleItem{
			{ProductID: "prod-2", Price: 29, Quantity: 1},
			{ProductID: "prod-1", Price: 999, Quantity: 10_000},
		},
	}
	if _, err := s.CreateSale(ctx, sale); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	mouse, _ := s.GetProductByID(ctx, "prod-2")
	if mouse.Stock != 150 {
		t.Fatalf("mouse stock = %d, want 150 (failed sale must not apply any line)", mouse.Stock)
	}
	sales, _ := s.ListSales(ctx, 0)
	if len(sales) != 2 {
		t.Fatalf("expected only the 2 seed sales, got %d", len(sales))
	}
}

func TestCreateSaleBumpsCustomerTotal(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := domain.Sale{
		Items:      []domain.SaleItem{{ProductID: "prod-3", Price: 79, Quantity: 1, Subtotal: 79}},
		Subtotal:   79,
		Total:      79,
		CustomerID: "cust-2",
	}
	created, err := s.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.CustomerName != "Jane Smith" {
		t.Fatalf("customer name = %q, want Jane Smith", created.CustomerName)
	}

	c, _ := s.GetCustomerByID(ctx, "cust-2")
	if c.TotalPurchases != 890+79 {
		t.Fatalf("total purchases = %v, want %v", c.TotalPurchases, 890+79)
	}
}

func TestReceivePurchaseAppliesStockOnce(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreatePurchase(ctx, domain.Purchase{
		Supplier: "Acme",
		Items:    []domain.PurchaseItem{{ProductID: "prod-4", ProductName: "Monitor", Cost: 150, Quantity: 5}},
		Total:    750,
		Status:   domain.PurchaseStatusPending,
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if created.PurchaseNumber != "PO-002" {
		t.Fatalf("purchase number = %q, want PO-002", created.PurchaseNumber)
	}

	monitor, _ := s.GetProductByID(ctx, "prod-4")
	if monitor.Stock != 25 {
		t.Fatalf("pending purchase must not touch stock, got %d", monitor.Stock)
	}

	if _, err := s.ReceivePurchase(ctx, created.ID, time.Now()); err != nil {
		t.Fatalf("receive: %v", err)
	}
	monitor, _ = s.GetProductByID(ctx, "prod-4")
	if monitor.Stock != 30 {
		t.Fatalf("stock = %d, want 30", monitor.Stock)
	}

	if _, err := s.ReceivePurchase(ctx, created.ID, time.Now()); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected second receive to fail, got %v", err)
	}
}

func TestImportResetsCounters(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	snap, err := s.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	snap.Sales = append(snap.Sales, domain.Sale{ID: "sale-x", SaleNumber: "SALE-041"})
	snap.Purchases = append(snap.Purchases, domain.Purchase{ID: "purch-x", PurchaseNumber: "PO-017"})

	if err := s.Import(ctx, *snap); err != nil {
		t.Fatalf("import: %v", err)
	}

	sale, err := s.CreateSale(ctx, domain.Sale{
		Items: []domain.SaleItem{{ProductID: "prod-2", Price: 29, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if sale.SaleNumber != "SALE-042" {
		t.Fatalf("sale number = %q, want SALE-042", sale.SaleNumber)
	}

	purchase, err := s.CreatePurchase(ctx, domain.Purchase{
		Supplier: "Acme",
		Items:    []domain.PurchaseItem{{ProductID: "prod-2", Cost: 10, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if purchase.PurchaseNumber != "PO-018" {
		t.Fatalf("purchase number = %q, want PO-018", purchase.PurchaseNumber)
	}
}

func TestImportRejectsMissingIDs(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	err := s.Import(ctx, domain.Snapshot{Products: []domain.Product{{Name: "no id"}}})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	products, _ := s.ListProducts(ctx)
	if len(products) != 4 {
		t.Fatalf("failed import must not mutate state, got %d products", len(products))
	}
}

func TestBackupSlotOverwrites(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if _, err := s.LatestBackup(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty slot, got %v", err)
	}

	if err := s.SaveBackup(ctx, []byte(`{"version":"1.0"}`)); err != nil {
		t.Fatalf("save backup: %v", err)
	}
	if err := s.SaveBackup(ctx, []byte(`{"version":"1.0","id":"second"}`)); err != nil {
		t.Fatalf("save backup: %v", err)
	}

	raw, err := s.LatestBackup(ctx)
	if err != nil {
		t.Fatalf("latest backup: %v", err)
	}
	if string(raw) != `{"version":"1.0","id":"second"}` {
		t.Fatalf("slot should hold the latest save, got %s", raw)
	}
}

func TestDuplicateSKURejected(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.CreateProduct(ctx, domain.Product{SKU: "sku001", Name: "Laptop Clone", Price: 1})
	if !errors.Is(err, store.ErrDuplicateSKU) {
		t.Fatalf("expected ErrDuplicateSKU, got %v", err)
	}
}
