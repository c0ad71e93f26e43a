package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
)

// UnitOfWork runs fn inside one atomic write transaction with the actor bound
// for change capture. An error from fn rolls the whole transaction back,
// including any change-log entries it produced, and is returned unchanged.
// There are no retries; the caller owns retry policy and must start a fresh
// unit of work.
type UnitOfWork interface {
	RunAudited(ctx context.Context, actor domain.ActorContext, fn func(Session) error) error
}

// Session is the transaction-scoped handle passed to the unit-of-work closure.
// Store methods deliberately take no context: the transaction already carries
// the context the actor was bound to, and re-binding a caller context would
// detach the attribution from subsequent statements.
type Session interface {
	Projects() ProjectStore
	Products() ProductStore
	Budget() BudgetStore
	Quotations() QuotationStore
	Outbox() OutboxStore
}

type ProjectStore interface {
	Create(project domain.Project) (domain.Project, error)
	Get(id int64) (domain.Project, error)
}

type ProductStore interface {
	Create(product domain.Product) (domain.Product, error)
}

type BudgetStore interface {
	FindCategory(projectID int64, name string) (domain.BudgetCategory, error)
	// UpsertCategory atomically creates the (project, name) category or
	// overwrites its budget when it already exists.
	UpsertCategory(category domain.BudgetCategory) error
	AppendTransactions(lines []domain.LedgerTransaction) ([]domain.LedgerTransaction, error)
}

type QuotationStore interface {
	Create(quotation domain.Quotation) (domain.Quotation, error)
	// Get loads the quotation with its items and their products.
	Get(id int64) (domain.Quotation, error)
	MarkApproved(id int64, at time.Time) error
}

type OutboxStore interface {
	Enqueue(event domain.EventEnvelope) error
}
