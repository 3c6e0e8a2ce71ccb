package payments

import (
	"fmt"

	"github.com/angelmondragon/bizledger-backend/pkg/config"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	"github.com/google/uuid"
)

// Settings are the ledger constants the protocol files payments under.
type Settings struct {
	SettlementCategoryID uuid.UUID
	SaleCategoryID       uuid.UUID
	DefaultAccountID     uuid.UUID
	DefaultPaymentMethod enums.PaymentMethod
}

// SettingsFromConfig builds Settings once at startup.
func SettingsFromConfig(cfg config.LedgerConfig) (Settings, error) {
	method, err := enums.ParsePaymentMethod(cfg.DefaultPaymentMethod)
	if err != nil {
		return Settings{}, fmt.Errorf("default payment method: %w", err)
	}
	return Settings{
		SettlementCategoryID: cfg.SettlementCategoryID,
		SaleCategoryID:       cfg.SaleCategoryID,
		DefaultAccountID:     cfg.DefaultAccountID,
		DefaultPaymentMethod: method,
	}, nil
}

func (s Settings) validate() error {
	if s.SettlementCategoryID == uuid.Nil {
		return fmt.Errorf("settlement category id required")
	}
	if s.SaleCategoryID == uuid.Nil {
		return fmt.Errorf("sale category id required")
	}
	if !s.DefaultPaymentMethod.IsValid() {
		return fmt.Errorf("invalid default payment method %q", s.DefaultPaymentMethod)
	}
	return nil
}
