package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/usecase"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	actorCtxKey     ctxKey = "actor"
	keyNameCtxKey   ctxKey = "api_key_name"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	authService      *usecase.AuthService
	catalogService   *usecase.CatalogService
	quotationService *usecase.QuotationService
	approvalService  *usecase.ApprovalService
	budgetService    *usecase.BudgetService
	changeLogService *usecase.ChangeLogService
}

func NewHandler(
	authService *usecase.AuthService,
	catalogService *usecase.CatalogService,
	quotationService *usecase.QuotationService,
	approvalService *usecase.ApprovalService,
	budgetService *usecase.BudgetService,
	changeLogService *usecase.ChangeLogService,
) *Handler {
	return &Handler{
		authService:      authService,
		catalogService:   catalogService,
		quotationService: quotationService,
		approvalService:  approvalService,
		budgetService:    budgetService,
		changeLogService: changeLogService,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)

		pr.Post("/v1/projects", h.createProject)
		pr.Get("/v1/projects", h.listProjects)
		pr.Get("/v1/projects/{id}", h.getProject)
		pr.Get("/v1/projects/{id}/categories", h.listCategories)
		pr.Get("/v1/projects/{id}/transactions", h.listTransactions)

		pr.Post("/v1/products", h.createProduct)
		pr.Get("/v1/products", h.listProducts)

		pr.Post("/v1/quotations", h.submitQuotation)
		pr.Get("/v1/quotations/{id}", h.getQuotation)
		pr.Post("/v1/quotations/{id}/approve", h.approveQuotation)

		pr.Get("/v1/changelog", h.queryChangeLog)
	})

	return r
}

type createProjectRequest struct {
	Name    string `json:"name"`
	Company string `json:"company"`
}

type projectResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Company   string `json:"company"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type createProductRequest struct {
	Name          string `json:"name"`
	UnitOfMeasure string `json:"unit_of_measure"`
	InternalPrice string `json:"internal_price"`
}

type productResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	UnitOfMeasure string `json:"unit_of_measure"`
	InternalPrice string `json:"internal_price"`
	CreatedAt     string `json:"created_at"`
}

type categoryResponse struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Budget    string `json:"budget"`
	Color     string `json:"color"`
	Type      string `json:"type,omitempty"`
}

type transactionResponse struct {
	ID              int64  `json:"id"`
	ProjectID       int64  `json:"project_id"`
	CategoryID      int64  `json:"category_id"`
	ItemDescription string `json:"item_description"`
	Cost            string `json:"cost"`
	DatePurchased   string `json:"date_purchased"`
	Status          string `json:"status"`
}

type quotationItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Product   string `json:"product"`
	Quantity  string `json:"quantity,omitempty"`
}

type quotationResponse struct {
	ID         int64                   `json:"id"`
	ProjectID  int64                   `json:"project_id"`
	Supplier   string                  `json:"supplier"`
	TotalCost  string                  `json:"total_cost"`
	Status     string                  `json:"status"`
	ApprovedAt string                  `json:"approved_at,omitempty"`
	Items      []quotationItemResponse `json:"items"`
	CreatedAt  string                  `json:"created_at"`
}

type approveQuotationRequest struct {
	ProjectID int64 `json:"project_id"`
}

type approvalResponse struct {
	Quotation quotationResponse     `json:"quotation"`
	Category  categoryResponse      `json:"category"`
	Lines     []transactionResponse `json:"lines"`
}

type changeLogEntryResponse struct {
	EntryID    string               `json:"entry_id"`
	TableName  string               `json:"table_name"`
	RecordID   string               `json:"record_id"`
	Action     string               `json:"action"`
	Before     json.RawMessage      `json:"before,omitempty"`
	After      json.RawMessage      `json:"after,omitempty"`
	ActorID    *int64               `json:"actor_id"`
	Actor      *domain.ActorProfile `json:"actor"`
	OccurredAt string               `json:"occurred_at"`
}

type changeLogPageResponse struct {
	Entries    []changeLogEntryResponse `json:"entries"`
	TotalCount int64                    `json:"total_count"`
	Limit      int                      `json:"limit"`
	Offset     int                      `json:"offset"`
	HasMore    bool                     `json:"has_more"`
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := h.catalogService.CreateProject(r.Context(), domain.Project{
		Name:    req.Name,
		Company: req.Company,
	}, actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	project, err := h.catalogService.GetProject(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	projects, err := h.catalogService.ListProjects(r.Context(), limit)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]projectResponse, 0, len(projects))
	for _, project := range projects {
		result = append(result, toProjectResponse(project))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	price, err := parseDecimal(req.InternalPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "internal_price must be a decimal number")
		return
	}

	product, err := h.catalogService.CreateProduct(r.Context(), domain.Product{
		Name:          req.Name,
		UnitOfMeasure: req.UnitOfMeasure,
		InternalPrice: price,
	}, actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	products, err := h.catalogService.ListProducts(r.Context(), limit)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]productResponse, 0, len(products))
	for _, product := range products {
		result = append(result, toProductResponse(product))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) submitQuotation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quotation, err := h.quotationService.Submit(r.Context(), raw, actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toQuotationResponse(quotation))
}

func (h *Handler) getQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	quotation, err := h.quotationService.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toQuotationResponse(quotation))
}

func (h *Handler) approveQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req approveQuotationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.approvalService.Approve(r.Context(), id, req.ProjectID, actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	lines := make([]transactionResponse, 0, len(result.Lines))
	for _, line := range result.Lines {
		lines = append(lines, toTransactionResponse(line))
	}
	writeJSON(w, http.StatusOK, approvalResponse{
		Quotation: toQuotationResponse(result.Quotation),
		Category:  toCategoryResponse(result.Category),
		Lines:     lines,
	})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	categories, err := h.budgetService.Categories(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		result = append(result, toCategoryResponse(category))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	lines, err := h.budgetService.Transactions(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]transactionResponse, 0, len(lines))
	for _, line := range lines {
		result = append(result, toTransactionResponse(line))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) queryChangeLog(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseChangeLogFilter(w, r)
	if !ok {
		return
	}

	page, err := h.changeLogService.Query(r.Context(), filter)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	entries := make([]changeLogEntryResponse, 0, len(page.Entries))
	for _, entry := range page.Entries {
		entries = append(entries, changeLogEntryResponse{
			EntryID:    entry.EntryID,
			TableName:  entry.TableName,
			RecordID:   entry.RecordID,
			Action:     string(entry.Action),
			Before:     entry.Before,
			After:      entry.After,
			ActorID:    entry.ActorID,
			Actor:      entry.Actor,
			OccurredAt: entry.OccurredAt.UTC().Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, changeLogPageResponse{
		Entries:    entries,
		TotalCount: page.TotalCount,
		Limit:      page.Limit,
		Offset:     page.Offset,
		HasMore:    page.HasMore,
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		actor := domain.SystemActor()
		if apiKey.UserID != nil {
			actor = domain.Actor(*apiKey.UserID)
		}

		ctx := context.WithValue(r.Context(), actorCtxKey, actor)
		ctx = context.WithValue(ctx, keyNameCtxKey, apiKey.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) domain.ActorContext {
	actor, _ := ctx.Value(actorCtxKey).(domain.ActorContext)
	return actor
}

func toProjectResponse(project domain.Project) projectResponse {
	return projectResponse{
		ID:        project.ID,
		Name:      project.Name,
		Company:   project.Company,
		CreatedAt: project.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: project.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toProductResponse(product domain.Product) productResponse {
	return productResponse{
		ID:            product.ID,
		Name:          product.Name,
		UnitOfMeasure: product.UnitOfMeasure,
		InternalPrice: product.InternalPrice.String(),
		CreatedAt:     product.CreatedAt.UTC().Format(timeFormat),
	}
}

func toCategoryResponse(category domain.BudgetCategory) categoryResponse {
	return categoryResponse{
		ID:        category.ID,
		ProjectID: category.ProjectID,
		Name:      category.Name,
		Budget:    category.Budget.String(),
		Color:     category.Color,
		Type:      category.Type,
	}
}

func toTransactionResponse(line domain.LedgerTransaction) transactionResponse {
	return transactionResponse{
		ID:              line.ID,
		ProjectID:       line.ProjectID,
		CategoryID:      line.CategoryID,
		ItemDescription: line.ItemDescription,
		Cost:            line.Cost.String(),
		DatePurchased:   line.DatePurchased.UTC().Format(timeFormat),
		Status:          line.Status,
	}
}

func toQuotationResponse(quotation domain.Quotation) quotationResponse {
	items := make([]quotationItemResponse, 0, len(quotation.Items))
	for _, item := range quotation.Items {
		itemResp := quotationItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Product:   item.Product.Name,
		}
		if item.Quantity != nil {
			itemResp.Quantity = item.Quantity.String()
		}
		items = append(items, itemResp)
	}

	resp := quotationResponse{
		ID:        quotation.ID,
		ProjectID: quotation.ProjectID,
		Supplier:  quotation.Supplier,
		TotalCost: quotation.TotalCost.String(),
		Status:    quotation.Status,
		Items:     items,
		CreatedAt: quotation.CreatedAt.UTC().Format(timeFormat),
	}
	if quotation.ApprovedAt != nil {
		resp.ApprovedAt = quotation.ApprovedAt.UTC().Format(timeFormat)
	}
	return resp
}

func parseChangeLogFilter(w http.ResponseWriter, r *http.Request) (domain.ChangeLogFilter, bool) {
	query := r.URL.Query()
	filter := domain.ChangeLogFilter{
		TableName: query.Get("table"),
		RecordID:  query.Get("record_id"),
		Action:    domain.ChangeAction(query.Get("action")),
	}

	if raw := query.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "actor_id must be integer")
			return domain.ChangeLogFilter{}, false
		}
		filter.ActorID = &id
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339 timestamp")
			return domain.ChangeLogFilter{}, false
		}
		filter.OccurredAt.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC3339 timestamp")
			return domain.ChangeLogFilter{}, false
		}
		filter.OccurredAt.To = to
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return domain.ChangeLogFilter{}, false
	}
	filter.Limit = limit

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "offset must be non-negative integer")
			return domain.ChangeLogFilter{}, false
		}
		filter.Offset = offset
	}

	return filter, true
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(raw))
}

func parseID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, name+" must be positive integer")
		return 0, false
	}
	return id, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyApproved):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
