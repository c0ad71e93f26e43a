package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/opsledger/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/opsledger/internal/core/domain"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gormsqlite.DB
}

func NewUserRepository(db *gormsqlite.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Profile(ctx context.Context, id int64) (domain.ActorProfile, error) {
	var model userModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ActorProfile{}, domain.ErrNotFound
		}
		return domain.ActorProfile{}, fmt.Errorf("load actor profile: %w", err)
	}

	return domain.ActorProfile{
		ID:        model.ID,
		FirstName: model.FirstName,
		LastName:  model.LastName,
		Email:     model.Email,
	}, nil
}

// Upsert matches on email. Used for startup bootstrap; the explicit branch
// keeps the captured action accurate, same as the budget category upsert.
func (r *UserRepository) Upsert(ctx context.Context, user domain.User) (domain.User, error) {
	var result domain.User
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var existing userModel
		err := tx.Where("email = ?", user.Email).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&userModel{ID: existing.ID}).Updates(map[string]any{
				"first_name": user.FirstName,
				"last_name":  user.LastName,
			}).Error; err != nil {
				return fmt.Errorf("update user: %w", err)
			}
			existing.FirstName = user.FirstName
			existing.LastName = user.LastName
			result = domain.User{
				ID:        existing.ID,
				FirstName: existing.FirstName,
				LastName:  existing.LastName,
				Email:     existing.Email,
				CreatedAt: existing.CreatedAt,
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			model := userModel{
				FirstName: user.FirstName,
				LastName:  user.LastName,
				Email:     user.Email,
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			result = domain.User{
				ID:        model.ID,
				FirstName: model.FirstName,
				LastName:  model.LastName,
				Email:     model.Email,
				CreatedAt: model.CreatedAt,
			}
			return nil
		default:
			return fmt.Errorf("lookup user: %w", err)
		}
	})
	if err != nil {
		return domain.User{}, err
	}
	return result, nil
}
