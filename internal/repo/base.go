package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// FindByID loads one row. Returns gorm.ErrRecordNotFound when absent.
func FindByID[T any](ctx context.Context, b Base, id uuid.UUID) (*T, error) {
	var row T
	if err := b.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateByID applies a single-row column patch and returns the row as re-read
// from the store, so callers see what actually persisted.
func UpdateByID[T any](ctx context.Context, b Base, id uuid.UUID, patch map[string]any) (*T, error) {
	var model T
	res := b.DB(ctx).Model(&model).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return FindByID[T](ctx, b, id)
}

// DateRange bounds a date column. Both ends are inclusive; nil is unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Apply adds the range predicates for column to the query.
func (r DateRange) Apply(q *gorm.DB, column string) *gorm.DB {
	if r.From != nil {
		q = q.Where(column+" >= ?", r.From.UTC())
	}
	if r.To != nil {
		q = q.Where(column+" <= ?", r.To.UTC())
	}
	return q
}
