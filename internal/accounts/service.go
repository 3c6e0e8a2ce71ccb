package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/bizledger-backend/internal/cache"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service reads accounts and moves their running balance.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	// ApplyDelta writes account.CurrentBalance + delta and returns the row as
	// re-read from the store together with the balance that was written.
	ApplyDelta(ctx context.Context, account *models.Account, delta decimal.Decimal) (*models.Account, decimal.Decimal, error)
}

// CreateInput opens a new account; the current balance starts at the opening balance.
type CreateInput struct {
	Name           string
	Type           enums.AccountType
	OpeningBalance decimal.Decimal
}

type service struct {
	repo  Repository
	cache cache.Cache
	logg  *logger.Logger
}

// NewService builds an account service with the required dependencies.
func NewService(repo Repository, c cache.Cache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if c == nil {
		return nil, fmt.Errorf("cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, cache: c, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Account, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account name required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid account type")
	}
	opening := input.OpeningBalance.Round(2)
	created, err := s.repo.Create(ctx, &models.Account{
		Name:           name,
		Type:           input.Type,
		OpeningBalance: opening,
		CurrentBalance: opening,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}
	s.patchCache(ctx, created)
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	account, err := cache.Fetch(ctx, s.cache, cache.AccountKey(id), func(ctx context.Context) (*models.Account, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return account, nil
}

func (s *service) List(ctx context.Context) ([]models.Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts")
	}
	return accounts, nil
}

func (s *service) ApplyDelta(ctx context.Context, account *models.Account, delta decimal.Decimal) (*models.Account, decimal.Decimal, error) {
	if account == nil {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "account required")
	}
	target := account.CurrentBalance.Add(delta)
	updated, err := s.repo.Update(ctx, account.ID, map[string]any{"current_balance": target})
	if err != nil {
		s.invalidateCache(ctx, account.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, target, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "account not found")
		}
		return nil, target, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update account balance")
	}
	s.patchCache(ctx, updated)
	return updated, target, nil
}

func (s *service) patchCache(ctx context.Context, account *models.Account) {
	if err := s.cache.Patch(ctx, cache.AccountKey(account.ID), account); err != nil {
		s.logg.Warn(ctx, "account cache patch failed: "+err.Error())
	}
}

func (s *service) invalidateCache(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx, cache.AccountKey(id)); err != nil {
		s.logg.Warn(ctx, "account cache invalidate failed: "+err.Error())
	}
}
