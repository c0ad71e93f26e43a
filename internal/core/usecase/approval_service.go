package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/ports"
	"github.com/google/uuid"
)

// ApprovalService derives a project's procurement budget from an approved
// quotation: it overwrites (or lazily creates) the project's Procurement
// category with the quotation total and posts one ledger line per item. The
// whole recomputation runs inside a single audited unit of work, so the
// category upsert, the ledger batch, the status flip and the outbox event
// commit or roll back together, each mutation captured with the acting user.
type ApprovalService struct {
	uow ports.UnitOfWork
}

func NewApprovalService(uow ports.UnitOfWork) *ApprovalService {
	return &ApprovalService{uow: uow}
}

type ApprovalResult struct {
	Quotation domain.Quotation
	Category  domain.BudgetCategory
	Lines     []domain.LedgerTransaction
}

func (s *ApprovalService) Approve(ctx context.Context, quotationID, projectID int64, actor domain.ActorContext) (ApprovalResult, error) {
	if quotationID <= 0 || projectID <= 0 {
		return ApprovalResult{}, domain.ErrInvalidInput
	}

	var result ApprovalResult
	err := s.uow.RunAudited(ctx, actor, func(sess ports.Session) error {
		quotation, err := sess.Quotations().Get(quotationID)
		if err != nil {
			return err
		}
		if quotation.ProjectID != projectID {
			return fmt.Errorf("quotation %d does not belong to project %d: %w", quotationID, projectID, domain.ErrInvalidInput)
		}
		if quotation.Status == domain.QuotationStatusApproved {
			return domain.ErrAlreadyApproved
		}

		err = sess.Budget().UpsertCategory(domain.BudgetCategory{
			ProjectID: projectID,
			Name:      domain.ProcurementCategoryName,
			Budget:    quotation.TotalCost,
			Color:     domain.DefaultCategoryColor,
		})
		if err != nil {
			return err
		}

		category, err := sess.Budget().FindCategory(projectID, domain.ProcurementCategoryName)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrCategoryMissing
			}
			return err
		}

		now := time.Now().UTC()
		lines := make([]domain.LedgerTransaction, 0, len(quotation.Items))
		for _, item := range quotation.Items {
			qty := item.LedgerQuantity()
			lines = append(lines, domain.LedgerTransaction{
				ProjectID:       projectID,
				CategoryID:      category.ID,
				ItemDescription: fmt.Sprintf("%s - %s %s", item.Product.Name, qty.String(), item.Product.UnitOfMeasure),
				Cost:            item.Product.InternalPrice.Mul(qty),
				DatePurchased:   now,
				Status:          domain.TransactionStatusCompleted,
			})
		}

		posted, err := sess.Budget().AppendTransactions(lines)
		if err != nil {
			return err
		}

		if err := sess.Quotations().MarkApproved(quotationID, now); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]any{
			"quotation_id": quotationID,
			"project_id":   projectID,
			"total_cost":   quotation.TotalCost,
			"line_count":   len(posted),
		})
		if err != nil {
			return fmt.Errorf("marshal approval payload: %w", err)
		}
		err = sess.Outbox().Enqueue(domain.EventEnvelope{
			EventID:    uuid.NewString(),
			EventType:  domain.EventTypeQuotationApproved,
			ProjectID:  projectID,
			ActorID:    actor.ID,
			OccurredAt: now,
			Payload:    payload,
		})
		if err != nil {
			return err
		}

		approved, err := sess.Quotations().Get(quotationID)
		if err != nil {
			return err
		}

		result = ApprovalResult{
			Quotation: approved,
			Category:  category,
			Lines:     posted,
		}
		return nil
	})
	if err != nil {
		return ApprovalResult{}, err
	}
	return result, nil
}
