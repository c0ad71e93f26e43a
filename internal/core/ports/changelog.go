package ports

import (
	"context"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
)

type ChangeLogRepository interface {
	// List returns the matching page ordered by occurrence time descending,
	// along with the total number of entries matching the filter.
	List(ctx context.Context, filter domain.ChangeLogFilter) ([]domain.ChangeLogEntry, int64, error)
}
