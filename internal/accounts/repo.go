package accounts

import (
	"context"

	"github.com/angelmondragon/bizledger-backend/internal/repo"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the accounts slice of the ledger store.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds an accounts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if err := r.base.DB(ctx).Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return repo.FindByID[models.Account](ctx, r.base, id)
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*models.Account, error) {
	return repo.UpdateByID[models.Account](ctx, r.base, id, patch)
}

func (r *repository) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := r.base.DB(ctx).Order("name ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
