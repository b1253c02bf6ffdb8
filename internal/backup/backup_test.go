package backup

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"tokopos/backend/internal/domain"
)

func sampleSnapshot() domain.Snapshot {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	return domain.Snapshot{
		Products: []domain.Product{
			{ID: "prod-1", SKU: "SKU001", Name: "Laptop", Price: 999, Cost: 600, Stock: 15, Unit: "pc", CreatedAt: now, UpdatedAt: now},
		},
		Customers: []domain.Customer{
			{ID: "cust-1", Name: "John Doe", CreditLimit: 5000, TotalPurchases: 1250, CreatedAt: now, UpdatedAt: now},
		},
		Sales: []domain.Sale{
			{ID: "sale-1", SaleNumber: "SALE-001", Subtotal: 20, Discount: 5, TaxRate: 10, Tax: 2, Total: 17, PaymentMethod: "cash", CreatedAt: now,
				Items: []domain.SaleItem{{ProductID: "prod-1", ProductName: "Laptop", Price: 10, Quantity: 2, Subtotal: 20}}},
		},
		Purchases: []domain.Purchase{
			{ID: "purch-1", PurchaseNumber: "PO-001", Supplier: "Tech Supplies Inc", Status: "Received", CreatedAt: now,
				Items: []domain.PurchaseItem{{ProductID: "prod-1", ProductName: "Laptop", Cost: 600, Quantity: 5}}},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	raw, err := Encode(snap, time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Version != Version {
		t.Fatalf("version = %q, want %q", env.Version, Version)
	}
	if !reflect.DeepEqual(env.Data, snap) {
		t.Fatalf("round trip changed the snapshot:\ngot  %+v\nwant %+v", env.Data, snap)
	}
}

func TestEncodeEmptyCollectionsAsArrays(t *testing.T) {
	raw, err := Encode(domain.Snapshot{}, time.Now())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(got["data"], &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	for _, key := range []string{"products", "customers", "sales", "purchases"} {
		if string(data[key]) == "null" {
			t.Fatalf("collection %q encoded as null, want []", key)
		}
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte("{not json")); !errors.Is(err, ErrBadBackup) {
		t.Fatalf("expected ErrBadBackup, got %v", err)
	}
}

func TestDecodeWrongVersion(t *testing.T) {
	raw := []byte(`{"version":"2.0","timestamp":"2026-09-01T10:00:00Z","data":{"products":[]}}`)
	if _, err := Decode(raw); !errors.Is(err, ErrBadBackup) {
		t.Fatalf("expected ErrBadBackup, got %v", err)
	}
}

func TestDecodeMissingData(t *testing.T) {
	raw := []byte(`{"version":"1.0","timestamp":"2026-09-01T10:00:00Z"}`)
	if _, err := Decode(raw); !errors.Is(err, ErrBadBackup) {
		t.Fatalf("expected ErrBadBackup, got %v", err)
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2026, 9, 1, 23, 30, 0, 0, time.UTC)
	if got := Filename(at); got != "pos-backup-2026-09-01.json" {
		t.Fatalf("filename = %q", got)
	}
}
