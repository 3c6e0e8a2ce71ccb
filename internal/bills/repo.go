package bills

import (
	"context"

	"github.com/angelmondragon/bizledger-backend/internal/repo"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the bills slice of the ledger store. Every write touches a
// single row.
type Repository interface {
	Create(ctx context.Context, bill *models.Bill) (*models.Bill, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Bill, error)
	Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*models.Bill, error)
	List(ctx context.Context, filter ListFilter) ([]models.Bill, error)
}

// ListFilter narrows a bill listing. Zero values are ignored.
type ListFilter struct {
	Dates    repo.DateRange
	Status   *enums.BillStatus
	VendorID *uuid.UUID
}

type repository struct {
	base repo.Base
}

// NewRepository builds a bills repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) Create(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	if err := r.base.DB(ctx).Create(bill).Error; err != nil {
		return nil, err
	}
	return bill, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	return repo.FindByID[models.Bill](ctx, r.base, id)
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*models.Bill, error) {
	return repo.UpdateByID[models.Bill](ctx, r.base, id, patch)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Bill, error) {
	q := filter.Dates.Apply(r.base.DB(ctx).Model(&models.Bill{}), "date")
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.VendorID != nil {
		q = q.Where("vendor_id = ?", *filter.VendorID)
	}

	var bills []models.Bill
	if err := q.Order("date ASC").Order("number ASC").Find(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}
