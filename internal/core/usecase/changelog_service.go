package usecase

import (
	"context"
	"log"

	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"github.com/atvirokodosprendimai/opsledger/internal/core/ports"
)

// ChangeLogService is the read side of the captured change log: filtered,
// paginated queries enriched with the acting user's profile.
type ChangeLogService struct {
	repo  ports.ChangeLogRepository
	users ports.UserRepository
}

func NewChangeLogService(repo ports.ChangeLogRepository, users ports.UserRepository) *ChangeLogService {
	return &ChangeLogService{repo: repo, users: users}
}

func (s *ChangeLogService) Query(ctx context.Context, filter domain.ChangeLogFilter) (domain.ChangeLogPage, error) {
	if filter.Action != "" {
		if err := domain.ValidateAction(filter.Action); err != nil {
			return domain.ChangeLogPage{}, err
		}
	}
	if filter.Offset < 0 {
		return domain.ChangeLogPage{}, domain.ErrInvalidFilter
	}
	if !filter.OccurredAt.From.IsZero() && !filter.OccurredAt.To.IsZero() && filter.OccurredAt.To.Before(filter.OccurredAt.From) {
		return domain.ChangeLogPage{}, domain.ErrInvalidFilter
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.ChangeLogPage{}, err
	}

	// One profile lookup per distinct actor; a failed lookup degrades that
	// entry's profile to nil instead of failing the query.
	profiles := make(map[int64]*domain.ActorProfile)
	enriched := make([]domain.EnrichedChangeLogEntry, 0, len(entries))
	for _, entry := range entries {
		item := domain.EnrichedChangeLogEntry{ChangeLogEntry: entry}
		if entry.ActorID != nil {
			id := *entry.ActorID
			profile, seen := profiles[id]
			if !seen {
				loaded, err := s.users.Profile(ctx, id)
				if err != nil {
					log.Printf("enrich change log entry %s: actor %d: %v", entry.EntryID, id, err)
					profile = nil
				} else {
					profile = &loaded
				}
				profiles[id] = profile
			}
			item.Actor = profile
		}
		enriched = append(enriched, item)
	}

	return domain.ChangeLogPage{
		Entries:    enriched,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		HasMore:    int64(filter.Offset+filter.Limit) < total,
	}, nil
}
