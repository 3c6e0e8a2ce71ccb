package payments

import (
	"encoding/json"

	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	"github.com/angelmondragon/bizledger-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Step names used in logs, warnings and partial write details.
const (
	StepEntity      = "entity"
	StepTransaction = "transaction"
	StepAccount     = "account"
)

// Step is the result of one write. A step that was never attempted has
// neither a value nor an error.
type Step[T any] struct {
	Value     *T
	Err       error
	Attempted bool
}

func succeeded[T any](value *T) Step[T] { return Step[T]{Value: value, Attempted: true} }
func failed[T any](err error) Step[T]   { return Step[T]{Err: err, Attempted: true} }

// OK reports whether the write was attempted and succeeded.
func (s Step[T]) OK() bool {
	return s.Attempted && s.Err == nil
}

func (s Step[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		Status string `json:"status"`
		Value  *T     `json:"value,omitempty"`
		Error  string `json:"error,omitempty"`
	}{Value: s.Value}
	switch {
	case !s.Attempted:
		out.Status = "skipped"
	case s.Err != nil:
		out.Status = "failed"
		out.Error = s.Err.Error()
	default:
		out.Status = "success"
	}
	return json.Marshal(out)
}

// Entity is the order or bill a payment settles, as re-read after the write.
type Entity struct {
	Kind  enums.EntityKind `json:"kind"`
	Order *models.Order    `json:"order,omitempty"`
	Bill  *models.Bill     `json:"bill,omitempty"`
}

// PaidAmount returns the paid amount of whichever row is set.
func (e Entity) PaidAmount() decimal.Decimal {
	switch {
	case e.Order != nil:
		return e.Order.PaidAmount
	case e.Bill != nil:
		return e.Bill.PaidAmount
	}
	return decimal.Zero
}

// Outcome reports every write of one payment independently so callers can
// tell what happened even when the protocol failed part way.
type Outcome struct {
	Kind        enums.EntityKind         `json:"kind"`
	TargetID    uuid.UUID                `json:"target_id"`
	Amount      decimal.Decimal          `json:"amount"`
	NewPaid     decimal.Decimal          `json:"new_paid"`
	NewBalance  decimal.Decimal          `json:"new_balance"`
	Entity      Step[Entity]             `json:"entity"`
	Transaction Step[models.Transaction] `json:"transaction"`
	Account     Step[models.Account]     `json:"account"`
	Warnings    []types.Warning          `json:"warnings,omitempty"`
}

func (o *Outcome) warn(code, step, msg string) {
	o.Warnings = append(o.Warnings, types.Warning{Code: code, Step: step, Message: msg})
}

// stepSummary splits the attempted steps into failed and succeeded names.
func (o *Outcome) stepSummary() (failedSteps, succeededSteps []string) {
	add := func(name string, attempted, ok bool) {
		if !attempted {
			return
		}
		if ok {
			succeededSteps = append(succeededSteps, name)
			return
		}
		failedSteps = append(failedSteps, name)
	}
	add(StepTransaction, o.Transaction.Attempted, o.Transaction.OK())
	add(StepEntity, o.Entity.Attempted, o.Entity.OK())
	add(StepAccount, o.Account.Attempted, o.Account.OK())
	return failedSteps, succeededSteps
}
