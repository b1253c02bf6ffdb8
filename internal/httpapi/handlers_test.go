package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tokopos/backend/internal/cache"
	"tokopos/backend/internal/service"
	"tokopos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real
// AuthManager and real Service so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopSearchCache{}, time.Second)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginToken(t *testing.T, api *API, username string, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login body: %v", err)
	}
	if body.Token == "" {
		t.Fatalf("empty token")
	}
	return body.Token
}

func doJSON(t *testing.T, api *API, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProductListAndSearch(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api, http.MethodGet, "/api/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Products []map[string]any `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 4 {
		t.Fatalf("expected 4 seed products, got %d", len(body.Products))
	}

	rec = doJSON(t, api, http.MethodGet, "/api/products?search=laptop", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body.Products = nil
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 1 || body.Products[0]["name"] != "Laptop" {
		t.Fatalf("expected only Laptop, got %+v", body.Products)
	}
}

func TestProductCreateForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api, http.MethodPost, "/api/products", token, map[string]any{
		"sku": "SKU200", "name": "Headset", "price": 59,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api, http.MethodPost, "/api/sales", token, map[string]any{
		"items": []map[string]any{
			{"productId": "prod-2", "productName": "Mouse", "price": 10, "quantity": 2},
		},
		"discount":      5,
		"taxRate":       10,
		"paymentMethod": "cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Sale struct {
			SaleNumber string  `json:"saleNumber"`
			Subtotal   float64 `json:"subtotal"`
			Tax        float64 `json:"tax"`
			Total      float64 `json:"total"`
			Cashier    string  `json:"cashier"`
		} `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Sale.Subtotal != 20 || body.Sale.Tax != 2 || body.Sale.Total != 17 {
		t.Fatalf("totals wrong: %+v", body.Sale)
	}
	if body.Sale.SaleNumber != "SALE-003" {
		t.Fatalf("sale number = %q", body.Sale.SaleNumber)
	}
	if body.Sale.Cashier != "cashier" {
		t.Fatalf("cashier = %q", body.Sale.Cashier)
	}
}

func TestCheckoutInsufficientStockIs409(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api, http.MethodPost, "/api/sales", token, map[string]any{
		"items": []map[string]any{
			{"productId": "prod-1", "productName": "Laptop", "price": 999, "quantity": 99999},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCheckoutRejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")

	rec := doJSON(t, api, http.MethodPost, "/api/sales", token, map[string]any{
		"items":    []map[string]any{{"productId": "prod-2", "price": 29, "quantity": 1}},
		"surprise": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestPurchasesAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	cashier := loginToken(t, api, "cashier", "cashier123")
	admin := loginToken(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodGet, "/api/purchases", cashier, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/purchases", admin, map[string]any{
		"supplier": "Tech Supplies Inc",
		"items": []map[string]any{
			{"productId": "prod-2", "cost": 10, "quantity": 20},
			{"productId": "nope", "cost": 5, "quantity": 1},
		},
		"tax": 15,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Purchase struct {
			ID             string           `json:"id"`
			PurchaseNumber string           `json:"purchaseNumber"`
			Items          []map[string]any `json:"items"`
			Subtotal       float64          `json:"subtotal"`
			Tax            float64          `json:"tax"`
			Total          float64          `json:"total"`
			Status         string           `json:"status"`
		} `json:"purchase"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Purchase.PurchaseNumber != "PO-002" {
		t.Fatalf("purchase number = %q", body.Purchase.PurchaseNumber)
	}
	if len(body.Purchase.Items) != 1 {
		t.Fatalf("expected unresolvable line dropped, got %d lines", len(body.Purchase.Items))
	}
	if body.Purchase.Subtotal != 200 || body.Purchase.Tax != 15 || body.Purchase.Total != 215 {
		t.Fatalf("purchase totals = %v/%v/%v, want 200/15/215",
			body.Purchase.Subtotal, body.Purchase.Tax, body.Purchase.Total)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/purchases/"+body.Purchase.ID+"/receive", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on receive, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodGet, "/api/products/prod-2", admin, nil)
	var productBody struct {
		Product struct {
			Stock int `json:"stock"`
		} `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&productBody); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if productBody.Product.Stock != 170 {
		t.Fatalf("stock after receive = %d, want 170", productBody.Product.Stock)
	}
}

func TestBackupExportWithoutCreateIs404(t *testing.T) {
	api := newTestAPI(t)
	admin := loginToken(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodGet, "/api/backup/export", admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any backup exists, got %d", rec.Code)
	}
}

func TestBackupExportDownloadAndRestore(t *testing.T) {
	api := newTestAPI(t)
	admin := loginToken(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodPost, "/api/backup/create", admin, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on create, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodGet, "/api/backup/export", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "pos-backup-") || !strings.Contains(disposition, ".json") {
		t.Fatalf("unexpected Content-Disposition %q", disposition)
	}
	exported := rec.Body.Bytes()

	// Mutate state, then restore the export.
	cashier := loginToken(t, api, "cashier", "cashier123")
	if rec := doJSON(t, api, http.MethodPost, "/api/sales", cashier, map[string]any{
		"items": []map[string]any{{"productId": "prod-3", "productName": "Keyboard", "price": 79, "quantity": 2}},
	}); rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/backup/import", bytes.NewReader(exported))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+admin)
	restoreRec := httptest.NewRecorder()
	api.Handler().ServeHTTP(restoreRec, req)
	if restoreRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on import, got %d (body: %s)", restoreRec.Code, restoreRec.Body.String())
	}

	rec = doJSON(t, api, http.MethodGet, "/api/sales", cashier, nil)
	var salesBody struct {
		Sales []map[string]any `json:"sales"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&salesBody); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(salesBody.Sales) != 2 {
		t.Fatalf("expected the 2 seed sales after restore, got %d", len(salesBody.Sales))
	}
}

func TestBackupImportGarbageIs400(t *testing.T) {
	api := newTestAPI(t)
	admin := loginToken(t, api, "admin", "admin123")

	req := httptest.NewRequest(http.MethodPost, "/api/backup/import", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	// State untouched.
	token := loginToken(t, api, "cashier", "cashier123")
	listRec := doJSON(t, api, http.MethodGet, "/api/products", token, nil)
	var body struct {
		Products []map[string]any `json:"products"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 4 {
		t.Fatalf("expected 4 products, got %d", len(body.Products))
	}
}

func TestCustomerCRUD(t *testing.T) {
	api := newTestAPI(t)
	token := loginToken(t, api, "cashier", "cashier123")
	admin := loginToken(t, api, "admin", "admin123")

	rec := doJSON(t, api, http.MethodPost, "/api/customers", token, map[string]any{
		"name": "Carol Danvers", "email": "carol@example.com", "creditLimit": 1000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	rec = doJSON(t, api, http.MethodPut, "/api/customers/"+created.Customer.ID, token, map[string]any{
		"name": "Carol D.", "creditLimit": 2000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodDelete, "/api/customers/"+created.Customer.ID, admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/customers/"+created.Customer.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}
