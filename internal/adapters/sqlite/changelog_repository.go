package sqlite

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/opsledger/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"gorm.io/gorm"
)

type ChangeLogRepository struct {
	db *gormsqlite.DB
}

func NewChangeLogRepository(db *gormsqlite.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

func (r *ChangeLogRepository) List(ctx context.Context, filter domain.ChangeLogFilter) ([]domain.ChangeLogEntry, int64, error) {
	var rows []changeLogModel
	var total int64

	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := applyChangeLogFilter(tx.Model(&changeLogModel{}), filter)
		if err := query.Count(&total).Error; err != nil {
			return fmt.Errorf("count change log: %w", err)
		}
		return query.
			Order("occurred_at DESC, id DESC").
			Limit(filter.Limit).
			Offset(filter.Offset).
			Find(&rows).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list change log: %w", err)
	}

	entries := make([]domain.ChangeLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, total, nil
}

func applyChangeLogFilter(query *gorm.DB, filter domain.ChangeLogFilter) *gorm.DB {
	if filter.TableName != "" {
		query = query.Where("table_name = ?", filter.TableName)
	}
	if filter.RecordID != "" {
		query = query.Where("record_id = ?", filter.RecordID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", string(filter.Action))
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if !filter.OccurredAt.From.IsZero() {
		query = query.Where("occurred_at >= ?", filter.OccurredAt.From)
	}
	if !filter.OccurredAt.To.IsZero() {
		query = query.Where("occurred_at <= ?", filter.OccurredAt.To)
	}
	return query
}
