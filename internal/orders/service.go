package orders

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

// Service exposes order creation, item edits and manual status actions.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateItems(ctx context.Context, input UpdateItemsInput) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
}

// CreateInput carries a new sales order. Totals are always derived.
type CreateInput struct {
	Number     string
	Date       *time.Time
	CustomerID uuid.UUID
	Items      []types.LineItem
	Discount   decimal.Decimal
	Shipping   decimal.Decimal
}

// UpdateItemsInput replaces the priced fields of an on-hold order.
type UpdateItemsInput struct {
	OrderID  uuid.UUID
	Items    []types.LineItem
	Discount decimal.Decimal
	Shipping decimal.Decimal
}

// TransitionInput requests a manual status action.
type TransitionInput struct {
	OrderID uuid.UUID
	Action  enums.OrderAction
	Note    string
	ActorID uuid.UUID
}

type service struct {
	repo  Repository
	cache cache.Cache
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, c cache.Cache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if c == nil {
		return nil, fmt.Errorf("cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, cache: c, logg: logg, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	number := strings.TrimSpace(input.Number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if err := types.ValidateAmounts(input.Items, input.Discount, input.Shipping); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	date := s.now().UTC()
	if input.Date != nil {
		date = input.Date.UTC()
	}
	totals := types.ComputeTotals(input.Items, input.Discount, input.Shipping)

	order := &models.Order{
		Number:     number,
		Date:       date,
		CustomerID: input.CustomerID,
		Status:     enums.OrderStatusOnHold,
		Items:      totals.Items,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		Shipping:   totals.Shipping,
		Total:      totals.Total,
		PaidAmount: decimal.Zero,
		History:    types.History{},
	}

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	s.patchCache(ctx, created)
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := cache.Fetch(ctx, s.cache, cache.OrderKey(id), func(ctx context.Context) (*models.Order, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return nil, MapLoadError(err)
	}
	return order, nil
}

func (s *service) UpdateItems(ctx context.Context, input UpdateItemsInput) (*models.Order, error) {
	if err := types.ValidateAmounts(input.Items, input.Discount, input.Shipping); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	order, err := s.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusOnHold {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "items can only change while the order is on hold").
			WithDetails(map[string]any{"status": order.Status})
	}

	return s.write(ctx, order.ID, ItemsPatch(input.Items, input.Discount, input.Shipping), "update order items")
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order action")
	}
	order, err := s.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	patch, changed, err := Transition(*order, input.Action, input.ActorID, input.Note, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "action": input.Action.String()})
	updated, err := s.write(ctx, order.ID, patch, "update order status")
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "order status changed")
	return updated, nil
}

func (s *service) write(ctx context.Context, id uuid.UUID, patch map[string]any, op string) (*models.Order, error) {
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		s.invalidateCache(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
	}
	s.patchCache(ctx, updated)
	return updated, nil
}

func (s *service) patchCache(ctx context.Context, order *models.Order) {
	if err := s.cache.Patch(ctx, cache.OrderKey(order.ID), order); err != nil {
		s.logg.Warn(ctx, "order cache patch failed: "+err.Error())
	}
}

func (s *service) invalidateCache(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx, cache.OrderKey(id)); err != nil {
		s.logg.Warn(ctx, "order cache invalidate failed: "+err.Error())
	}
}

// MapLoadError converts a store read failure into the API taxonomy.
func MapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
