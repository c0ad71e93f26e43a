package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/opsledger/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/opsledger/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/usecase"
	"github.com/atvirokodosprendimai/opsledger/migrations"
)

const testAPIKey = "test-api-key"

// testStack wires the handler over a real migrated database, the same way the
// application does, and provisions one user with an API key.
func testStack(t *testing.T) (http.Handler, int64) {
	t.Helper()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "api.sqlite")
	db, err := gormsqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := sqliteadapter.RegisterChangeCapture(db.W); err != nil {
		t.Fatalf("register change capture: %v", err)
	}
	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("writer sql db: %v", err)
	}
	if err := migrations.Up(ctx, sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	userRepo := sqliteadapter.NewUserRepository(db)
	user, err := userRepo.Upsert(ctx, domain.User{FirstName: "Greta", LastName: "K", Email: "greta@example.com"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)
	err = apiKeyRepo.Upsert(ctx, domain.APIKey{
		TokenHash: usecase.HashToken(testAPIKey),
		UserID:    &user.ID,
		Name:      "test-client",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed api key: %v", err)
	}

	executor := sqliteadapter.NewAuditedExecutor(db)
	handler := NewHandler(
		usecase.NewAuthService(apiKeyRepo),
		usecase.NewCatalogService(executor, sqliteadapter.NewProjectReader(db), sqliteadapter.NewProductReader(db)),
		usecase.NewQuotationService(executor, sqliteadapter.NewQuotationReader(db)),
		usecase.NewApprovalService(executor),
		usecase.NewBudgetService(sqliteadapter.NewBudgetReader(db)),
		usecase.NewChangeLogService(sqliteadapter.NewChangeLogRepository(db), userRepo),
	)
	return handler.Router(), user.ID
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-API-Key", testAPIKey)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	h, _ := testStack(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestProtectedRouteWithoutAuth(t *testing.T) {
	h, _ := testStack(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestBearerTokenAccepted(t *testing.T) {
	h, _ := testStack(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}

func TestProcurementFlowOverHTTP(t *testing.T) {
	h, userID := testStack(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/projects", `{"name":"Substation","company":"Acme"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project status = %d, body %s", rec.Code, rec.Body.String())
	}
	var project struct {
		ID int64 `json:"id"`
	}
	decodeInto(t, rec, &project)

	rec = doJSON(t, h, http.MethodPost, "/v1/products", `{"name":"Cable","unit_of_measure":"m","internal_price":"30.00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product status = %d, body %s", rec.Code, rec.Body.String())
	}
	var cable struct {
		ID int64 `json:"id"`
	}
	decodeInto(t, rec, &cable)

	rec = doJSON(t, h, http.MethodPost, "/v1/quotations", `{
		"project_id": `+itoa(project.ID)+`,
		"supplier": "Nordic Supply",
		"total_cost": "90.00",
		"items": [{"product_id": `+itoa(cable.ID)+`, "quantity": "3"}]
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit quotation status = %d, body %s", rec.Code, rec.Body.String())
	}
	var quotation struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	decodeInto(t, rec, &quotation)
	if quotation.Status != domain.QuotationStatusPending {
		t.Errorf("quotation status = %s, want pending", quotation.Status)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/quotations/"+itoa(quotation.ID)+"/approve", `{"project_id":`+itoa(project.ID)+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", rec.Code, rec.Body.String())
	}
	var approval struct {
		Quotation struct {
			Status string `json:"status"`
		} `json:"quotation"`
		Category struct {
			Name   string `json:"name"`
			Budget string `json:"budget"`
		} `json:"category"`
		Lines []struct {
			ItemDescription string `json:"item_description"`
			Cost            string `json:"cost"`
		} `json:"lines"`
	}
	decodeInto(t, rec, &approval)
	if approval.Quotation.Status != domain.QuotationStatusApproved {
		t.Errorf("approved status = %s", approval.Quotation.Status)
	}
	if approval.Category.Name != domain.ProcurementCategoryName || approval.Category.Budget != "90" {
		t.Errorf("category = %+v, want Procurement/90", approval.Category)
	}
	if len(approval.Lines) != 1 || approval.Lines[0].Cost != "90" {
		t.Errorf("lines = %+v, want one line of 90", approval.Lines)
	}

	// Approval is terminal over the API as well.
	rec = doJSON(t, h, http.MethodPost, "/v1/quotations/"+itoa(quotation.ID)+"/approve", `{"project_id":`+itoa(project.ID)+`}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second approve status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/projects/"+itoa(project.ID)+"/transactions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list transactions status = %d", rec.Code)
	}
	var transactions struct {
		Items []struct {
			Status string `json:"status"`
		} `json:"items"`
	}
	decodeInto(t, rec, &transactions)
	if len(transactions.Items) != 1 || transactions.Items[0].Status != domain.TransactionStatusCompleted {
		t.Errorf("transactions = %+v", transactions.Items)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/changelog?table=quotations&action=UPDATE", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("changelog status = %d, body %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Entries []struct {
			TableName string `json:"table_name"`
			Action    string `json:"action"`
			ActorID   *int64 `json:"actor_id"`
			Actor     *struct {
				FirstName string `json:"first_name"`
			} `json:"actor"`
		} `json:"entries"`
		TotalCount int64 `json:"total_count"`
	}
	decodeInto(t, rec, &page)
	if page.TotalCount != 1 || len(page.Entries) != 1 {
		t.Fatalf("changelog page = %+v, want single quotation update", page)
	}
	entry := page.Entries[0]
	if entry.ActorID == nil || *entry.ActorID != userID {
		t.Errorf("entry actor_id = %v, want %d", entry.ActorID, userID)
	}
	if entry.Actor == nil || entry.Actor.FirstName != "Greta" {
		t.Errorf("entry actor = %+v, want enriched profile", entry.Actor)
	}
}

func TestChangeLogRejectsBadAction(t *testing.T) {
	h, _ := testStack(t)
	rec := doJSON(t, h, http.MethodGet, "/v1/changelog?action=TRUNCATE", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
