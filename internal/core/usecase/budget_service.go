package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/ports"
)

// BudgetService is the read surface over categories and ledger lines. All
// mutation of these tables happens inside the approval unit of work.
type BudgetService struct {
	reader ports.BudgetReader
}

func NewBudgetService(reader ports.BudgetReader) *BudgetService {
	return &BudgetService{reader: reader}
}

func (s *BudgetService) Categories(ctx context.Context, projectID int64) ([]domain.BudgetCategory, error) {
	if projectID <= 0 {
		return nil, domain.ErrInvalidInput
	}
	return s.reader.CategoriesByProject(ctx, projectID)
}

func (s *BudgetService) Transactions(ctx context.Context, projectID int64) ([]domain.LedgerTransaction, error) {
	if projectID <= 0 {
		return nil, domain.ErrInvalidInput
	}
	return s.reader.TransactionsByProject(ctx, projectID)
}
