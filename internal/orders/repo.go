package orders

import (
	"context"

	"github.com/angelmondragon/bizledger-backend/internal/repo"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the orders slice of the ledger store. Every write touches a
// single row.
type Repository interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
}

// ListFilter narrows an order listing. Zero values are ignored.
type ListFilter struct {
	Dates      repo.DateRange
	Status     *enums.OrderStatus
	CustomerID *uuid.UUID
}

type repository struct {
	base repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.base.DB(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return repo.FindByID[models.Order](ctx, r.base, id)
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*models.Order, error) {
	return repo.UpdateByID[models.Order](ctx, r.base, id, patch)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	q := filter.Dates.Apply(r.base.DB(ctx).Model(&models.Order{}), "date")
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}

	var orders []models.Order
	if err := q.Order("date ASC").Order("number ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
