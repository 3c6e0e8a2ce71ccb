package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one priced row on an order or bill. Amount is always derived.
type LineItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Rate      decimal.Decimal `json:"rate"`
	Qty       decimal.Decimal `json:"qty"`
	Amount    decimal.Decimal `json:"amount"`
}

// LineItems is stored as a jsonb column.
type LineItems []LineItem

// Totals are the computed money fields of an order or bill.
type Totals struct {
	Items    LineItems
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals derives every line amount, the subtotal and the total.
// amount = rate * qty, subtotal = sum(amount), total = subtotal - discount + shipping.
// Money is rounded to cents.
func ComputeTotals(items []LineItem, discount, shipping decimal.Decimal) Totals {
	out := make(LineItems, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		item.Amount = item.Rate.Mul(item.Qty).Round(2)
		subtotal = subtotal.Add(item.Amount)
		out = append(out, item)
	}

	discount = discount.Round(2)
	shipping = shipping.Round(2)
	return Totals{
		Items:    out,
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    subtotal.Sub(discount).Add(shipping),
	}
}

// ValidateAmounts checks the caller-supplied money fields before totals are
// derived from them. The discount may not exceed the subtotal, so a derived
// total is never negative.
func ValidateAmounts(items []LineItem, discount, shipping decimal.Decimal) error {
	subtotal := decimal.Zero
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("items[%d].product_id required", i)
		}
		if !item.Qty.IsPositive() {
			return fmt.Errorf("items[%d].qty must be positive", i)
		}
		if item.Rate.IsNegative() {
			return fmt.Errorf("items[%d].rate must not be negative", i)
		}
		subtotal = subtotal.Add(item.Rate.Mul(item.Qty).Round(2))
	}
	if discount.IsNegative() {
		return fmt.Errorf("discount must not be negative")
	}
	if discount.Round(2).GreaterThan(subtotal) {
		return fmt.Errorf("discount must not exceed subtotal %s", subtotal.StringFixed(2))
	}
	if shipping.IsNegative() {
		return fmt.Errorf("shipping must not be negative")
	}
	return nil
}

// HistoryEntry records who stamped a milestone and when.
type HistoryEntry struct {
	Note    string    `json:"note,omitempty"`
	ActorID uuid.UUID `json:"actor_id"`
	At      time.Time `json:"at"`
}

// History is keyed by milestone so a milestone can never be stamped twice.
type History map[string]HistoryEntry

// Clone returns a copy safe to mutate.
func (h History) Clone() History {
	out := make(History, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Has reports whether the milestone has been stamped.
func (h History) Has(milestone string) bool {
	_, ok := h[milestone]
	return ok
}
