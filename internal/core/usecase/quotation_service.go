package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/ports"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

//go:embed quotation_schema.json
var quotationSchemaJSON string

var (
	quotationSchemaOnce sync.Once
	quotationSchema     *santhosh.Schema
	quotationSchemaErr  error
)

func compiledQuotationSchema() (*santhosh.Schema, error) {
	quotationSchemaOnce.Do(func() {
		quotationSchema, quotationSchemaErr = santhosh.CompileString("quotation.json", quotationSchemaJSON)
	})
	return quotationSchema, quotationSchemaErr
}

// QuotationService accepts and serves procurement quotations. Submissions are
// validated against the embedded JSON schema before they are decoded, then
// written through the audited unit of work.
type QuotationService struct {
	uow    ports.UnitOfWork
	reader ports.QuotationReader
}

func NewQuotationService(uow ports.UnitOfWork, reader ports.QuotationReader) *QuotationService {
	return &QuotationService{uow: uow, reader: reader}
}

type submitQuotationRequest struct {
	ProjectID int64                 `json:"project_id"`
	Supplier  string                `json:"supplier"`
	TotalCost decimal.Decimal       `json:"total_cost"`
	Items     []submitQuotationItem `json:"items"`
}

type submitQuotationItem struct {
	ProductID int64            `json:"product_id"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
}

func (s *QuotationService) Submit(ctx context.Context, raw json.RawMessage, actor domain.ActorContext) (domain.Quotation, error) {
	schema, err := compiledQuotationSchema()
	if err != nil {
		return domain.Quotation{}, fmt.Errorf("compile quotation schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return domain.Quotation{}, fmt.Errorf("quotation payload is not valid json: %w", domain.ErrInvalidInput)
	}
	if err := schema.Validate(instance); err != nil {
		return domain.Quotation{}, fmt.Errorf("quotation payload: %v: %w", err, domain.ErrInvalidInput)
	}

	var req submitQuotationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return domain.Quotation{}, fmt.Errorf("decode quotation payload: %w", domain.ErrInvalidInput)
	}

	quotation := domain.Quotation{
		ProjectID: req.ProjectID,
		Supplier:  req.Supplier,
		TotalCost: req.TotalCost,
	}
	for _, item := range req.Items {
		quotation.Items = append(quotation.Items, domain.QuotationItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	if err := quotation.Validate(); err != nil {
		return domain.Quotation{}, err
	}

	var created domain.Quotation
	err = s.uow.RunAudited(ctx, actor, func(sess ports.Session) error {
		if _, err := sess.Projects().Get(quotation.ProjectID); err != nil {
			return err
		}
		var err error
		created, err = sess.Quotations().Create(quotation)
		return err
	})
	if err != nil {
		return domain.Quotation{}, err
	}
	return created, nil
}

func (s *QuotationService) Get(ctx context.Context, id int64) (domain.Quotation, error) {
	if id <= 0 {
		return domain.Quotation{}, domain.ErrInvalidInput
	}
	return s.reader.Get(ctx, id)
}
