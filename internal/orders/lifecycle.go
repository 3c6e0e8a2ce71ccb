package orders

import (
	"time"

	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMilestone is the history slot holding the latest payment.
const PaymentMilestone = "payment"

// Forward order of the fulfillment milestones. Cancelled sits outside it.
var statusRank = map[enums.OrderStatus]int{
	enums.OrderStatusOnHold:     0,
	enums.OrderStatusProcessing: 1,
	enums.OrderStatusPicked:     2,
	enums.OrderStatusCompleted:  3,
}

var actionTarget = map[enums.OrderAction]enums.OrderStatus{
	enums.OrderActionProcess:  enums.OrderStatusProcessing,
	enums.OrderActionPick:     enums.OrderStatusPicked,
	enums.OrderActionComplete: enums.OrderStatusCompleted,
	enums.OrderActionCancel:   enums.OrderStatusCancelled,
}

var milestoneColumn = map[enums.OrderStatus]string{
	enums.OrderStatusProcessing: "processing_at",
	enums.OrderStatusPicked:     "picked_at",
	enums.OrderStatusCompleted:  "completed_at",
	enums.OrderStatusCancelled:  "cancelled_at",
}

// IsTerminal reports whether no manual action can move the order further.
func IsTerminal(status enums.OrderStatus) bool {
	return status == enums.OrderStatusCompleted || status == enums.OrderStatusCancelled
}

// Transition plans the patch for applying action to order. changed is false
// when the action re-invokes the current status; the caller must not write.
// Forward jumps skip unstamped milestones. Backward moves and any move out of
// a terminal status are state conflicts.
func Transition(order models.Order, action enums.OrderAction, actorID uuid.UUID, note string, at time.Time) (map[string]any, bool, error) {
	target, ok := actionTarget[action]
	if !ok {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "unknown order action")
	}
	if target == order.Status {
		return nil, false, nil
	}
	if IsTerminal(order.Status) {
		return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict, "order is "+order.Status.String()).
			WithDetails(map[string]any{"status": order.Status, "action": action})
	}
	if target != enums.OrderStatusCancelled && statusRank[target] < statusRank[order.Status] {
		return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot move back to "+target.String()).
			WithDetails(map[string]any{"status": order.Status, "action": action})
	}

	history := order.History.Clone()
	history[target.String()] = types.HistoryEntry{Note: note, ActorID: actorID, At: at}

	return map[string]any{
		"status":                target,
		milestoneColumn[target]: at,
		"history":               history,
	}, true, nil
}

// ApplyPayment plans the patch for a payment of amount. Order status never
// changes on payment.
func ApplyPayment(order models.Order, amount decimal.Decimal, entry types.HistoryEntry) (map[string]any, decimal.Decimal) {
	newPaid := order.PaidAmount.Add(amount)
	history := order.History.Clone()
	history[PaymentMilestone] = entry
	return map[string]any{
		"paid_amount": newPaid,
		"history":     history,
	}, newPaid
}

// ItemsPatch recomputes totals for an item edit.
func ItemsPatch(items []types.LineItem, discount, shipping decimal.Decimal) map[string]any {
	totals := types.ComputeTotals(items, discount, shipping)
	return map[string]any{
		"items":    totals.Items,
		"subtotal": totals.Subtotal,
		"discount": totals.Discount,
		"shipping": totals.Shipping,
		"total":    totals.Total,
	}
}
