package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bizledger-backend/pkg/enums"
)

// Transaction is an insert-only money movement. Payments reference the order
// or bill they settle; manual entries carry no reference.
type Transaction struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Date          time.Time             `gorm:"column:date;not null" json:"date"`
	Type          enums.TransactionType `gorm:"column:type;type:text;not null" json:"type"`
	CategoryID    *uuid.UUID            `gorm:"column:category_id;type:uuid" json:"category_id"`
	AccountID     uuid.UUID             `gorm:"column:account_id;type:uuid;not null" json:"account_id"`
	ToAccountID   *uuid.UUID            `gorm:"column:to_account_id;type:uuid" json:"to_account_id"`
	Amount        decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	ReferenceID   *uuid.UUID            `gorm:"column:reference_id;type:uuid" json:"reference_id"`
	ReferenceKind *enums.EntityKind     `gorm:"column:reference_kind;type:text" json:"reference_kind"`
	ContactID     *uuid.UUID            `gorm:"column:contact_id;type:uuid" json:"contact_id"`
	PaymentMethod enums.PaymentMethod   `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	Memo          string                `gorm:"column:memo" json:"memo"`
	CreatedBy     uuid.UUID             `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// InCategory reports whether the transaction is filed under the category.
func (t Transaction) InCategory(id uuid.UUID) bool {
	return t.CategoryID != nil && *t.CategoryID == id
}
