package transactions

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bizledger-backend/api/middleware"
	"github.com/angelmondragon/bizledger-backend/api/responses"
	"github.com/angelmondragon/bizledger-backend/api/validators"
	internaltransactions "github.com/angelmondragon/bizledger-backend/internal/transactions"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/pagination"
)

type recordRequest struct {
	Date          *time.Time      `json:"date"`
	Type          string          `json:"type" validate:"required"`
	CategoryID    *uuid.UUID      `json:"category_id"`
	AccountID     uuid.UUID       `json:"account_id" validate:"required"`
	ToAccountID   *uuid.UUID      `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	ContactID     *uuid.UUID      `json:"contact_id"`
	PaymentMethod string          `json:"payment_method" validate:"max=32"`
	Memo          string          `json:"memo" validate:"max=500"`
}

// Record enters a manual income, expense or transfer.
func Record(svc internaltransactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		var req recordRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Record(r.Context(), internaltransactions.RecordInput{
			Date:          req.Date,
			Type:          enums.TransactionType(validators.SanitizeString(req.Type, 32)),
			CategoryID:    req.CategoryID,
			AccountID:     req.AccountID,
			ToAccountID:   req.ToAccountID,
			Amount:        req.Amount,
			ContactID:     req.ContactID,
			PaymentMethod: enums.PaymentMethod(validators.SanitizeString(req.PaymentMethod, 32)),
			Memo:          validators.SanitizeString(req.Memo, 500),
			ActorID:       middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			if result != nil {
				responses.WriteErrorWithData(r.Context(), logg, w, err, result)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// List pages the transaction log newest first. Filters: from, to, type,
// account_id, limit, cursor.
func List(svc internaltransactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transactions service unavailable"))
			return
		}

		input, err := parseListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func parseListInput(r *http.Request) (internaltransactions.ListInput, error) {
	var input internaltransactions.ListInput

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return input, err
	}
	input.Page = pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	if input.From, err = validators.ParseQueryDate(r, "from"); err != nil {
		return input, err
	}
	if input.To, err = validators.ParseQueryDateEnd(r, "to"); err != nil {
		return input, err
	}
	if input.AccountID, err = validators.ParseQueryUUID(r, "account_id"); err != nil {
		return input, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		txType, err := enums.ParseTransactionType(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type").WithDetails(map[string]any{"field": "type"})
		}
		input.Type = &txType
	}
	return input, nil
}
