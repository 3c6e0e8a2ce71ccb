package bills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/bizledger-backend/internal/cache"
	"github.com/angelmondragon/bizledger-backend/pkg/db"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service exposes bill creation, item edits and manual status actions.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Bill, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Bill, error)
	UpdateItems(ctx context.Context, input UpdateItemsInput) (*models.Bill, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Bill, error)
}

// CreateInput carries a new purchase bill. Totals are always derived.
type CreateInput struct {
	Number   string
	Date     *time.Time
	VendorID uuid.UUID
	Items    []types.LineItem
	Discount decimal.Decimal
	Shipping decimal.Decimal
}

// UpdateItemsInput replaces the priced fields of an on-hold bill.
type UpdateItemsInput struct {
	BillID   uuid.UUID
	Items    []types.LineItem
	Discount decimal.Decimal
	Shipping decimal.Decimal
}

// TransitionInput requests a manual status action.
type TransitionInput struct {
	BillID  uuid.UUID
	Action  enums.BillAction
	Note    string
	ActorID uuid.UUID
}

type service struct {
	repo  Repository
	cache cache.Cache
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds a bill service with the required dependencies.
func NewService(repo Repository, c cache.Cache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bills repository required")
	}
	if c == nil {
		return nil, fmt.Errorf("cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, cache: c, logg: logg, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Bill, error) {
	number := strings.TrimSpace(input.Number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill number required")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if err := types.ValidateAmounts(input.Items, input.Discount, input.Shipping); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	date := s.now().UTC()
	if input.Date != nil {
		date = input.Date.UTC()
	}
	totals := types.ComputeTotals(input.Items, input.Discount, input.Shipping)

	bill := &models.Bill{
		Number:     number,
		Date:       date,
		VendorID:   input.VendorID,
		Status:     enums.BillStatusOnHold,
		Items:      totals.Items,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		Shipping:   totals.Shipping,
		Total:      totals.Total,
		PaidAmount: decimal.Zero,
		History:    types.History{},
	}

	created, err := s.repo.Create(ctx, bill)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "bill number already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bill")
	}
	s.patchCache(ctx, created)
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bill id required")
	}
	bill, err := cache.Fetch(ctx, s.cache, cache.BillKey(id), func(ctx context.Context) (*models.Bill, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return nil, MapLoadError(err)
	}
	return bill, nil
}

func (s *service) UpdateItems(ctx context.Context, input UpdateItemsInput) (*models.Bill, error) {
	if err := types.ValidateAmounts(input.Items, input.Discount, input.Shipping); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	bill, err := s.Get(ctx, input.BillID)
	if err != nil {
		return nil, err
	}
	if bill.Status != enums.BillStatusOnHold {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "items can only change while the bill is on hold").
			WithDetails(map[string]any{"status": bill.Status})
	}

	return s.write(ctx, bill.ID, ItemsPatch(input.Items, input.Discount, input.Shipping), "update bill items")
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Bill, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid bill action")
	}
	bill, err := s.Get(ctx, input.BillID)
	if err != nil {
		return nil, err
	}

	patch, changed, err := Transition(*bill, input.Action, input.ActorID, input.Note, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !changed {
		return bill, nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"bill_id": bill.ID.String(), "action": input.Action.String()})
	updated, err := s.write(ctx, bill.ID, patch, "update bill status")
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "bill status changed")
	return updated, nil
}

func (s *service) write(ctx context.Context, id uuid.UUID, patch map[string]any, op string) (*models.Bill, error) {
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		s.invalidateCache(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "bill not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
	}
	s.patchCache(ctx, updated)
	return updated, nil
}

func (s *service) patchCache(ctx context.Context, bill *models.Bill) {
	if err := s.cache.Patch(ctx, cache.BillKey(bill.ID), bill); err != nil {
		s.logg.Warn(ctx, "bill cache patch failed: "+err.Error())
	}
}

func (s *service) invalidateCache(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx, cache.BillKey(id)); err != nil {
		s.logg.Warn(ctx, "bill cache invalidate failed: "+err.Error())
	}
}

// MapLoadError converts a store read failure into the API taxonomy.
func MapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "bill not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bill")
}
