package transactions

import (
	"context"

	"github.com/angelmondragon/bizledger-backend/internal/repo"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	"github.com/angelmondragon/bizledger-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the insert-only transaction log.
type Repository interface {
	Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]models.Transaction, error)
}

// ListFilter narrows a transaction listing. Zero values are ignored. A
// positive Limit pages the result newest first, starting after After.
type ListFilter struct {
	Dates     repo.DateRange
	Type      *enums.TransactionType
	AccountID *uuid.UUID
	Limit     int
	After     *pagination.Cursor
}

type repository struct {
	base repo.Base
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if err := r.base.DB(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Transaction, error) {
	q := filter.Dates.Apply(r.base.DB(ctx).Model(&models.Transaction{}), "date")
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	if filter.AccountID != nil {
		q = q.Where("(account_id = ? OR to_account_id = ?)", *filter.AccountID, *filter.AccountID)
	}
	if filter.After != nil {
		q = q.Where("(date < ?) OR (date = ? AND id < ?)", filter.After.Date.UTC(), filter.After.Date.UTC(), filter.After.ID)
	}
	q = q.Order("date DESC").Order("id DESC")
	if filter.Limit > 0 {
		q = q.Limit(pagination.LimitWithBuffer(filter.Limit))
	}

	var rows []models.Transaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
