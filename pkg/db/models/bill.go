package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	"github.com/angelmondragon/bizledger-backend/pkg/types"
)

// Bill is a purchase bill from a vendor.
type Bill struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Number       string           `gorm:"column:number;not null;uniqueIndex:idx_bills_number" json:"number"`
	Date         time.Time        `gorm:"column:date;not null" json:"date"`
	VendorID     uuid.UUID        `gorm:"column:vendor_id;type:uuid;not null" json:"vendor_id"`
	Status       enums.BillStatus `gorm:"column:status;type:text;not null;default:'on_hold'" json:"status"`
	Items        types.LineItems  `gorm:"column:items;type:jsonb" json:"items"`
	Subtotal     decimal.Decimal  `gorm:"column:subtotal;type:numeric(14,2);not null" json:"subtotal"`
	Discount     decimal.Decimal  `gorm:"column:discount;type:numeric(14,2);not null" json:"discount"`
	Shipping     decimal.Decimal  `gorm:"column:shipping;type:numeric(14,2);not null" json:"shipping"`
	Total        decimal.Decimal  `gorm:"column:total;type:numeric(14,2);not null" json:"total"`
	PaidAmount   decimal.Decimal  `gorm:"column:paid_amount;type:numeric(14,2);not null" json:"paid_amount"`
	History      types.History    `gorm:"column:history;type:jsonb" json:"history"`
	ProcessingAt *time.Time       `gorm:"column:processing_at" json:"processing_at"`
	ReceivedAt   *time.Time       `gorm:"column:received_at" json:"received_at"`
	PaidAt       *time.Time       `gorm:"column:paid_at" json:"paid_at"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (b *Bill) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Outstanding is what is still owed to the vendor.
func (b Bill) Outstanding() decimal.Decimal {
	return b.Total.Sub(b.PaidAmount)
}
