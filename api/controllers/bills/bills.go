package bills

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bizledger-backend/api/middleware"
	"github.com/angelmondragon/bizledger-backend/api/responses"
	"github.com/angelmondragon/bizledger-backend/api/validators"
	internalbills "github.com/angelmondragon/bizledger-backend/internal/bills"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/types"
)

type createRequest struct {
	Number     string           `json:"number" validate:"max=64"`
	Date       *time.Time       `json:"date"`
	VendorID   uuid.UUID        `json:"vendor_id" validate:"required"`
	Items      []types.LineItem `json:"items"`
	Discount   decimal.Decimal  `json:"discount"`
	Shipping   decimal.Decimal  `json:"shipping"`
}

type itemsRequest struct {
	Items    []types.LineItem `json:"items"`
	Discount decimal.Decimal  `json:"discount"`
	Shipping decimal.Decimal  `json:"shipping"`
}

type statusRequest struct {
	Action string `json:"action" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

// Create stores a new bill with derived totals.
func Create(svc internalbills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bills service unavailable"))
			return
		}

		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bill, err := svc.Create(r.Context(), internalbills.CreateInput{
			Number:     validators.SanitizeString(req.Number, 64),
			Date:       req.Date,
			VendorID:   req.VendorID,
			Items:      req.Items,
			Discount:   req.Discount,
			Shipping:   req.Shipping,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bill)
	}
}

// Detail returns one bill.
func Detail(svc internalbills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bills service unavailable"))
			return
		}

		billID, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bill, err := svc.Get(r.Context(), billID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bill)
	}
}

// UpdateItems replaces the line items and recomputes totals.
func UpdateItems(svc internalbills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bills service unavailable"))
			return
		}

		billID, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req itemsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bill, err := svc.UpdateItems(r.Context(), internalbills.UpdateItemsInput{
			BillID:   billID,
			Items:    req.Items,
			Discount: req.Discount,
			Shipping: req.Shipping,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bill)
	}
}

// Transition applies a receiving action. Paid is reached only through
// payments, so asking for it is rejected.
func Transition(svc internalbills.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bills service unavailable"))
			return
		}

		billID, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := internalbills.ParseAction(req.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bill, err := svc.Transition(r.Context(), internalbills.TransitionInput{
			BillID:  billID,
			Action:  action,
			Note:    validators.SanitizeString(req.Note, 500),
			ActorID: middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bill)
	}
}
