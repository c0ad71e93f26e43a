package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProcurementCategoryName is the canonical budget bucket a project's approved
// quotation total is written into. Lookup is exact and case-sensitive.
const ProcurementCategoryName = "Procurement"

const DefaultCategoryColor = "#4A90D9"

type BudgetCategory struct {
	ID        int64
	ProjectID int64
	Name      string
	Budget    decimal.Decimal
	Color     string
	Type      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c BudgetCategory) Validate() error {
	if c.ProjectID <= 0 || c.Name == "" {
		return ErrInvalidInput
	}
	return nil
}

const TransactionStatusCompleted = "completed"

// LedgerTransaction is one itemized cost line posted against a budget category.
// Lines are appended on approval and never reconciled by the recalculator.
type LedgerTransaction struct {
	ID              int64
	ProjectID       int64
	CategoryID      int64
	ItemDescription string
	Cost            decimal.Decimal
	DatePurchased   time.Time
	Status          string
	CreatedAt       time.Time
}
