package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/ports"
	"gorm.io/gorm"
)

// AuditedExecutor is the unit-of-work implementation. It binds the actor to
// the transaction context, runs the closure on the single writer connection,
// and lets the change-capture callbacks record every mutation. The binding is
// context-scoped, so it cannot leak past the transaction and needs no
// explicit clearing.
type AuditedExecutor struct {
	db *gormsqlite.DB
}

func NewAuditedExecutor(db *gormsqlite.DB) *AuditedExecutor {
	return &AuditedExecutor{db: db}
}

func (e *AuditedExecutor) RunAudited(ctx context.Context, actor domain.ActorContext, fn func(ports.Session) error) error {
	// Refusing up front beats silently running un-audited mutations.
	if !ChangeCaptureInstalled(e.db.W) {
		return fmt.Errorf("run audited unit of work: change capture not installed: %w", domain.ErrAuditBinding)
	}

	ctx = domain.WithActor(ctx, actor)
	return e.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return fn(&txSession{tx: tx.DB})
	})
}

var _ ports.UnitOfWork = (*AuditedExecutor)(nil)

type txSession struct {
	tx *gorm.DB
}

func (s *txSession) Projects() ports.ProjectStore     { return &txProjectStore{tx: s.tx} }
func (s *txSession) Products() ports.ProductStore     { return &txProductStore{tx: s.tx} }
func (s *txSession) Budget() ports.BudgetStore        { return &txBudgetStore{tx: s.tx} }
func (s *txSession) Quotations() ports.QuotationStore { return &txQuotationStore{tx: s.tx} }
func (s *txSession) Outbox() ports.OutboxStore        { return &txOutboxStore{tx: s.tx} }

type txProjectStore struct {
	tx *gorm.DB
}

func (s *txProjectStore) Create(project domain.Project) (domain.Project, error) {
	now := time.Now().UTC()
	model := projectModel{
		Name:      project.Name,
		Company:   project.Company,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tx.Create(&model).Error; err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	return model.toDomain(), nil
}

func (s *txProjectStore) Get(id int64) (domain.Project, error) {
	var model projectModel
	if err := s.tx.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Project{}, domain.ErrNotFound
		}
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return model.toDomain(), nil
}

type txProductStore struct {
	tx *gorm.DB
}

func (s *txProductStore) Create(product domain.Product) (domain.Product, error) {
	model := productModel{
		Name:          product.Name,
		UnitOfMeasure: product.UnitOfMeasure,
		InternalPrice: product.InternalPrice,
		CreatedAt:     time.Now().UTC(),
	}
	if model.UnitOfMeasure == "" {
		model.UnitOfMeasure = "pcs"
	}
	if err := s.tx.Create(&model).Error; err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return model.toDomain(), nil
}

type txBudgetStore struct {
	tx *gorm.DB
}

func (s *txBudgetStore) FindCategory(projectID int64, name string) (domain.BudgetCategory, error) {
	var model budgetCategoryModel
	err := s.tx.Where("project_id = ? AND name = ?", projectID, name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BudgetCategory{}, domain.ErrNotFound
		}
		return domain.BudgetCategory{}, fmt.Errorf("find budget category: %w", err)
	}
	return model.toDomain(), nil
}

// UpsertCategory overwrites the budget of the (project, name) category or
// creates it. The branch runs inside the serialized writer transaction and the
// unique index on (project_id, name) backstops it, so concurrent approvals
// cannot produce duplicate categories. The explicit branch, rather than an
// ON CONFLICT clause, keeps the captured action accurate: an overwrite is
// logged as UPDATE, a lazy creation as CREATE.
func (s *txBudgetStore) UpsertCategory(category domain.BudgetCategory) error {
	now := time.Now().UTC()

	var existing budgetCategoryModel
	err := s.tx.Where("project_id = ? AND name = ?", category.ProjectID, category.Name).First(&existing).Error
	switch {
	case err == nil:
		err = s.tx.Model(&budgetCategoryModel{ID: existing.ID}).Updates(map[string]any{
			"budget":     category.Budget,
			"updated_at": now,
		}).Error
		if err != nil {
			return fmt.Errorf("overwrite budget category: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		model := budgetCategoryModel{
			ProjectID: category.ProjectID,
			Name:      category.Name,
			Budget:    category.Budget,
			Color:     category.Color,
			Type:      category.Type,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if model.Color == "" {
			model.Color = domain.DefaultCategoryColor
		}
		if err := s.tx.Create(&model).Error; err != nil {
			return fmt.Errorf("create budget category: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("lookup budget category: %w", err)
	}
}

func (s *txBudgetStore) AppendTransactions(lines []domain.LedgerTransaction) ([]domain.LedgerTransaction, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	models := make([]transactionModel, 0, len(lines))
	for _, line := range lines {
		models = append(models, transactionModel{
			ProjectID:       line.ProjectID,
			CategoryID:      line.CategoryID,
			ItemDescription: line.ItemDescription,
			Cost:            line.Cost,
			DatePurchased:   line.DatePurchased,
			Status:          line.Status,
			CreatedAt:       now,
		})
	}
	if err := s.tx.Create(&models).Error; err != nil {
		return nil, fmt.Errorf("append ledger transactions: %w", err)
	}

	result := make([]domain.LedgerTransaction, 0, len(models))
	for _, model := range models {
		result = append(result, model.toDomain())
	}
	return result, nil
}

type txQuotationStore struct {
	tx *gorm.DB
}

func (s *txQuotationStore) Create(quotation domain.Quotation) (domain.Quotation, error) {
	now := time.Now().UTC()
	model := quotationModel{
		ProjectID: quotation.ProjectID,
		Supplier:  quotation.Supplier,
		TotalCost: quotation.TotalCost,
		Status:    domain.QuotationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tx.Create(&model).Error; err != nil {
		return domain.Quotation{}, fmt.Errorf("create quotation: %w", err)
	}

	items := make([]quotationItemModel, 0, len(quotation.Items))
	for _, item := range quotation.Items {
		itemModel := quotationItemModel{
			QuotationID: model.ID,
			ProductID:   item.ProductID,
			CreatedAt:   now,
		}
		if item.Quantity != nil {
			itemModel.Quantity.Decimal = *item.Quantity
			itemModel.Quantity.Valid = true
		}
		items = append(items, itemModel)
	}
	if len(items) > 0 {
		if err := s.tx.Create(&items).Error; err != nil {
			return domain.Quotation{}, fmt.Errorf("create quotation items: %w", err)
		}
	}

	return s.Get(model.ID)
}

func (s *txQuotationStore) Get(id int64) (domain.Quotation, error) {
	return loadQuotation(s.tx, id)
}

func (s *txQuotationStore) MarkApproved(id int64, at time.Time) error {
	res := s.tx.Model(&quotationModel{ID: id}).Updates(map[string]any{
		"status":      domain.QuotationStatusApproved,
		"approved_at": at,
		"updated_at":  at,
	})
	if res.Error != nil {
		return fmt.Errorf("mark quotation approved: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type txOutboxStore struct {
	tx *gorm.DB
}

func (s *txOutboxStore) Enqueue(event domain.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	model := outboxEventModel{
		EventID:       event.EventID,
		Topic:         "events." + event.EventType,
		PayloadJSON:   string(payload),
		Status:        "pending",
		Attempts:      0,
		NextAttemptAt: event.OccurredAt,
		LastError:     "",
		CreatedAt:     event.OccurredAt,
	}
	if err := s.tx.Create(&model).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// loadQuotation assembles a quotation with its items and their products.
func loadQuotation(tx *gorm.DB, id int64) (domain.Quotation, error) {
	var model quotationModel
	if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Quotation{}, domain.ErrNotFound
		}
		return domain.Quotation{}, fmt.Errorf("get quotation: %w", err)
	}

	var itemModels []quotationItemModel
	if err := tx.Where("quotation_id = ?", id).Order("id ASC").Find(&itemModels).Error; err != nil {
		return domain.Quotation{}, fmt.Errorf("load quotation items: %w", err)
	}

	productIDs := make([]int64, 0, len(itemModels))
	for _, item := range itemModels {
		productIDs = append(productIDs, item.ProductID)
	}

	productsByID := make(map[int64]productModel, len(productIDs))
	if len(productIDs) > 0 {
		var productModels []productModel
		if err := tx.Where("id IN ?", productIDs).Find(&productModels).Error; err != nil {
			return domain.Quotation{}, fmt.Errorf("load quotation products: %w", err)
		}
		for _, p := range productModels {
			productsByID[p.ID] = p
		}
	}

	quotation := model.toDomain()
	quotation.Items = make([]domain.QuotationItem, 0, len(itemModels))
	for _, item := range itemModels {
		product, ok := productsByID[item.ProductID]
		if !ok {
			return domain.Quotation{}, fmt.Errorf("quotation %d references missing product %d: %w", id, item.ProductID, domain.ErrNotFound)
		}
		quotation.Items = append(quotation.Items, item.toDomain(product))
	}
	return quotation, nil
}
