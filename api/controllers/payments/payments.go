package payments

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bizledger-backend/api/middleware"
	"github.com/angelmondragon/bizledger-backend/api/responses"
	"github.com/angelmondragon/bizledger-backend/api/validators"
	internalpayments "github.com/angelmondragon/bizledger-backend/internal/payments"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
)

type recordRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	AccountID     *uuid.UUID      `json:"account_id"`
	Date          *time.Time      `json:"date"`
	PaymentMethod string          `json:"payment_method" validate:"max=32"`
	Memo          string          `json:"memo" validate:"max=500"`
}

// Record applies a payment against the order or bill named by the {id} path
// parameter. A partial write answers with the error envelope and the outcome
// of every step in data.
func Record(svc internalpayments.Service, kind enums.EntityKind, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		targetID, err := validators.URLParamUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req recordRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalpayments.PaymentInput{
			Kind:          kind,
			TargetID:      targetID,
			Amount:        req.Amount,
			Date:          req.Date,
			PaymentMethod: enums.PaymentMethod(validators.SanitizeString(req.PaymentMethod, 32)),
			Memo:          validators.SanitizeString(req.Memo, 500),
			ActorID:       middleware.ActorIDFromContext(r.Context()),
		}
		if req.AccountID != nil {
			input.AccountID = *req.AccountID
		}

		outcome, err := svc.RecordPayment(r.Context(), input)
		if err != nil {
			if outcome != nil {
				responses.WriteErrorWithData(r.Context(), logg, w, err, outcome)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, outcome)
	}
}
