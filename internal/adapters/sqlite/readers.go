package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/opsledger/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"gorm.io/gorm"
)

// Read-side repositories over the reader pool. These never mutate and are not
// subject to change capture.

type ProjectReader struct {
	db *gormsqlite.DB
}

func NewProjectReader(db *gormsqlite.DB) *ProjectReader {
	return &ProjectReader{db: db}
}

func (r *ProjectReader) Get(ctx context.Context, id int64) (domain.Project, error) {
	var model projectModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Project{}, domain.ErrNotFound
		}
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return model.toDomain(), nil
}

func (r *ProjectReader) List(ctx context.Context, limit int) ([]domain.Project, error) {
	var models []projectModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&projectModel{}).Order("id ASC").Limit(limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]domain.Project, 0, len(models))
	for _, model := range models {
		projects = append(projects, model.toDomain())
	}
	return projects, nil
}

type ProductReader struct {
	db *gormsqlite.DB
}

func NewProductReader(db *gormsqlite.DB) *ProductReader {
	return &ProductReader{db: db}
}

func (r *ProductReader) List(ctx context.Context, limit int) ([]domain.Product, error) {
	var models []productModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&productModel{}).Order("id ASC").Limit(limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products := make([]domain.Product, 0, len(models))
	for _, model := range models {
		products = append(products, model.toDomain())
	}
	return products, nil
}

type BudgetReader struct {
	db *gormsqlite.DB
}

func NewBudgetReader(db *gormsqlite.DB) *BudgetReader {
	return &BudgetReader{db: db}
}

func (r *BudgetReader) CategoriesByProject(ctx context.Context, projectID int64) ([]domain.BudgetCategory, error) {
	var models []budgetCategoryModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("project_id = ?", projectID).Order("name ASC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list budget categories: %w", err)
	}

	categories := make([]domain.BudgetCategory, 0, len(models))
	for _, model := range models {
		categories = append(categories, model.toDomain())
	}
	return categories, nil
}

func (r *BudgetReader) TransactionsByProject(ctx context.Context, projectID int64) ([]domain.LedgerTransaction, error) {
	var models []transactionModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("project_id = ?", projectID).Order("id ASC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list ledger transactions: %w", err)
	}

	lines := make([]domain.LedgerTransaction, 0, len(models))
	for _, model := range models {
		lines = append(lines, model.toDomain())
	}
	return lines, nil
}

type QuotationReader struct {
	db *gormsqlite.DB
}

func NewQuotationReader(db *gormsqlite.DB) *QuotationReader {
	return &QuotationReader{db: db}
}

func (r *QuotationReader) Get(ctx context.Context, id int64) (domain.Quotation, error) {
	var quotation domain.Quotation
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		loaded, err := loadQuotation(tx.DB, id)
		if err != nil {
			return err
		}
		quotation = loaded
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Quotation{}, domain.ErrNotFound
		}
		return domain.Quotation{}, err
	}
	return quotation, nil
}
