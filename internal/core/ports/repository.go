package ports

import (
	"context"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
)

// Read-side repositories. These run outside any unit of work and are never
// subject to change capture.

type ProjectReader interface {
	Get(ctx context.Context, id int64) (domain.Project, error)
	List(ctx context.Context, limit int) ([]domain.Project, error)
}

type ProductReader interface {
	List(ctx context.Context, limit int) ([]domain.Product, error)
}

type BudgetReader interface {
	CategoriesByProject(ctx context.Context, projectID int64) ([]domain.BudgetCategory, error)
	TransactionsByProject(ctx context.Context, projectID int64) ([]domain.LedgerTransaction, error)
}

type QuotationReader interface {
	Get(ctx context.Context, id int64) (domain.Quotation, error)
}

type UserRepository interface {
	Profile(ctx context.Context, id int64) (domain.ActorProfile, error)
	Upsert(ctx context.Context, user domain.User) (domain.User, error)
}
