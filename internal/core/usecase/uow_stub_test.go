package usecase

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/ports"
)

// In-memory unit of work for service tests. It runs the closure directly and
// remembers the actor it was invoked with; storage behavior comes from the
// per-store function fields.

type stubUOW struct {
	session   ports.Session
	lastActor domain.ActorContext
	calls     int
}

func (u *stubUOW) RunAudited(_ context.Context, actor domain.ActorContext, fn func(ports.Session) error) error {
	u.lastActor = actor
	u.calls++
	return fn(u.session)
}

type stubSession struct {
	projects   ports.ProjectStore
	products   ports.ProductStore
	budget     ports.BudgetStore
	quotations ports.QuotationStore
	outbox     ports.OutboxStore
}

func (s *stubSession) Projects() ports.ProjectStore     { return s.projects }
func (s *stubSession) Products() ports.ProductStore     { return s.products }
func (s *stubSession) Budget() ports.BudgetStore        { return s.budget }
func (s *stubSession) Quotations() ports.QuotationStore { return s.quotations }
func (s *stubSession) Outbox() ports.OutboxStore        { return s.outbox }

type stubProjectStore struct {
	createFn func(project domain.Project) (domain.Project, error)
	getFn    func(id int64) (domain.Project, error)
}

func (s *stubProjectStore) Create(project domain.Project) (domain.Project, error) {
	return s.createFn(project)
}

func (s *stubProjectStore) Get(id int64) (domain.Project, error) {
	return s.getFn(id)
}

type stubProductStore struct {
	createFn func(product domain.Product) (domain.Product, error)
}

func (s *stubProductStore) Create(product domain.Product) (domain.Product, error) {
	return s.createFn(product)
}

type stubBudgetStore struct {
	findFn   func(projectID int64, name string) (domain.BudgetCategory, error)
	upsertFn func(category domain.BudgetCategory) error
	appendFn func(lines []domain.LedgerTransaction) ([]domain.LedgerTransaction, error)
}

func (s *stubBudgetStore) FindCategory(projectID int64, name string) (domain.BudgetCategory, error) {
	return s.findFn(projectID, name)
}

func (s *stubBudgetStore) UpsertCategory(category domain.BudgetCategory) error {
	return s.upsertFn(category)
}

func (s *stubBudgetStore) AppendTransactions(lines []domain.LedgerTransaction) ([]domain.LedgerTransaction, error) {
	return s.appendFn(lines)
}

type stubQuotationStore struct {
	createFn  func(quotation domain.Quotation) (domain.Quotation, error)
	getFn     func(id int64) (domain.Quotation, error)
	approveFn func(id int64, at time.Time) error
}

func (s *stubQuotationStore) Create(quotation domain.Quotation) (domain.Quotation, error) {
	return s.createFn(quotation)
}

func (s *stubQuotationStore) Get(id int64) (domain.Quotation, error) {
	return s.getFn(id)
}

func (s *stubQuotationStore) MarkApproved(id int64, at time.Time) error {
	return s.approveFn(id, at)
}

type stubOutboxStore struct {
	enqueueFn func(event domain.EventEnvelope) error
}

func (s *stubOutboxStore) Enqueue(event domain.EventEnvelope) error {
	return s.enqueueFn(event)
}
