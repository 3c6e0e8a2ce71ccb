package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	"github.com/angelmondragon/bizledger-backend/pkg/types"
)

// Order is a sales order. PaidAmount only moves through recorded payments.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Number       string            `gorm:"column:number;not null;uniqueIndex:idx_orders_number" json:"number"`
	Date         time.Time         `gorm:"column:date;not null" json:"date"`
	CustomerID   uuid.UUID         `gorm:"column:customer_id;type:uuid;not null" json:"customer_id"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:'on_hold'" json:"status"`
	Items        types.LineItems   `gorm:"column:items;type:jsonb" json:"items"`
	Subtotal     decimal.Decimal   `gorm:"column:subtotal;type:numeric(14,2);not null" json:"subtotal"`
	Discount     decimal.Decimal   `gorm:"column:discount;type:numeric(14,2);not null" json:"discount"`
	Shipping     decimal.Decimal   `gorm:"column:shipping;type:numeric(14,2);not null" json:"shipping"`
	Total        decimal.Decimal   `gorm:"column:total;type:numeric(14,2);not null" json:"total"`
	PaidAmount   decimal.Decimal   `gorm:"column:paid_amount;type:numeric(14,2);not null" json:"paid_amount"`
	History      types.History     `gorm:"column:history;type:jsonb" json:"history"`
	ProcessingAt *time.Time        `gorm:"column:processing_at" json:"processing_at"`
	PickedAt     *time.Time        `gorm:"column:picked_at" json:"picked_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at" json:"completed_at"`
	CancelledAt  *time.Time        `gorm:"column:cancelled_at" json:"cancelled_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Outstanding is what the customer still owes. Negative when overpaid.
func (o Order) Outstanding() decimal.Decimal {
	return o.Total.Sub(o.PaidAmount)
}
