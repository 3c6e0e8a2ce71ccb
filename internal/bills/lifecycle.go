package bills

import (
	"strings"
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

var statusRank = map[enums.BillStatus]int{
	enums.BillStatusOnHold:     0,
	enums.BillStatusProcessing: 1,
	enums.BillStatusReceived:   2,
	enums.BillStatusPaid:       3,
}

var actionTarget = map[enums.BillAction]enums.BillStatus{
	enums.BillActionProcess: enums.BillStatusProcessing,
	enums.BillActionReceive: enums.BillStatusReceived,
}

var milestoneColumn = map[enums.BillStatus]string{
	enums.BillStatusProcessing: "processing_at",
	enums.BillStatusReceived:   "received_at",
	enums.BillStatusPaid:       "paid_at",
}

// ParseAction converts a requested action. Paid is never a manual action.
func ParseAction(raw string) (enums.BillAction, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == string(enums.BillStatusPaid) || value == "pay" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "bills become paid by recording payments")
	}
	action, err := enums.ParseBillAction(value)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bill action")
	}
	return action, nil
}

// Transition plans the patch for applying action to bill. changed is false
// when the action re-invokes the current status. Paid is terminal for manual
// actions and backward moves are state conflicts.
func Transition(bill models.Bill, action enums.BillAction, actorID uuid.UUID, note string, at time.Time) (map[string]any, bool, error) {
	target, ok := actionTarget[action]
	if !ok {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "unknown bill action")
	}
	if target == bill.Status {
		return nil, false, nil
	}
	if bill.Status == enums.BillStatusPaid {
		return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict, "bill is paid").
			WithDetails(map[string]any{"status": bill.Status, "action": action})
	}
	if statusRank[target] < statusRank[bill.Status] {
		return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict, "bill cannot move back to "+target.String()).
			WithDetails(map[string]any{"status": bill.Status, "action": action})
	}

	history := bill.History.Clone()
	history[target.String()] = types.HistoryEntry{Note: note, ActorID: actorID, At: at}

	return map[string]any{
		"status":                target,
		milestoneColumn[target]: at,
		"history":               history,
	}, true, nil
}

// PaymentPlan is the write a payment makes to a bill.
type PaymentPlan struct {
	Patch   map[string]any
	NewPaid decimal.Decimal
	Status  enums.BillStatus
}

// ApplyPayment plans the patch for a payment of amount. The bill becomes paid
// once the paid amount reaches the total; overpayment is kept as is.
func ApplyPayment(bill models.Bill, amount decimal.Decimal, entry types.HistoryEntry) PaymentPlan {
	newPaid := bill.PaidAmount.Add(amount)
	history := bill.History.Clone()
	history[PaymentMilestone] = entry

	patch := map[string]any{
		"paid_amount": newPaid,
		"history":     history,
	}
	status := bill.Status
	if newPaid.GreaterThanOrEqual(bill.Total) && bill.Status != enums.BillStatusPaid {
		status = enums.BillStatusPaid
		history[enums.BillStatusPaid.String()] = entry
		patch["status"] = status
		patch["paid_at"] = entry.At
	}
	return PaymentPlan{Patch: patch, NewPaid: newPaid, Status: status}
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
