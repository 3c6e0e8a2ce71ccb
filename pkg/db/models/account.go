package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bizledger-backend/pkg/enums"
)

// Account is a bank account or cash drawer. CurrentBalance changes by one
// delta per transaction leg and is never recomputed on read.
type Account struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name           string            `gorm:"column:name;not null" json:"name"`
	Type           enums.AccountType `gorm:"column:type;type:text;not null" json:"type"`
	OpeningBalance decimal.Decimal   `gorm:"column:opening_balance;type:numeric(14,2);not null" json:"opening_balance"`
	CurrentBalance decimal.Decimal   `gorm:"column:current_balance;type:numeric(14,2);not null" json:"current_balance"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
