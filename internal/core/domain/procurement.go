package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Project struct {
	ID        int64
	Name      string
	Company   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Project) Validate() error {
	if p.Name == "" {
		return ErrInvalidInput
	}
	return nil
}

type Product struct {
	ID            int64
	Name          string
	UnitOfMeasure string
	InternalPrice decimal.Decimal
	CreatedAt     time.Time
}

func (p Product) Validate() error {
	if p.Name == "" || p.InternalPrice.IsNegative() {
		return ErrInvalidInput
	}
	return nil
}

const (
	QuotationStatusPending  = "pending"
	QuotationStatusApproved = "approved"
)

type Quotation struct {
	ID         int64
	ProjectID  int64
	Supplier   string
	TotalCost  decimal.Decimal
	Status     string
	ApprovedAt *time.Time
	Items      []QuotationItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (q Quotation) Validate() error {
	if q.ProjectID <= 0 || q.TotalCost.IsNegative() || len(q.Items) == 0 {
		return ErrInvalidInput
	}
	for _, item := range q.Items {
		if item.ProductID <= 0 {
			return ErrInvalidInput
		}
		if item.Quantity != nil && !item.Quantity.IsPositive() {
			return ErrInvalidInput
		}
	}
	return nil
}

// QuotationItem is one line of a procurement document. Quantity is optional
// and treated as 1 by the recalculator when absent.
type QuotationItem struct {
	ID          int64
	QuotationID int64
	ProductID   int64
	Quantity    *decimal.Decimal
	Product     Product
}

// LedgerQuantity is the effective quantity used for ledger fan-out.
func (i QuotationItem) LedgerQuantity() decimal.Decimal {
	if i.Quantity == nil {
		return decimal.NewFromInt(1)
	}
	return *i.Quantity
}
