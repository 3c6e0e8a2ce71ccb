package reports

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/bizledger-backend/api/responses"
	"github.com/angelmondragon/bizledger-backend/api/validators"
	internalreports "github.com/angelmondragon/bizledger-backend/internal/reports"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
)

// Report runs the aggregator named by {kind} over ?range=, with ?from= and
// ?to= for custom ranges and ?year= for cash flow.
func Report(svc internalreports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}

		input, err := parseReportInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Report(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func parseReportInput(r *http.Request) (internalreports.ReportInput, error) {
	var input internalreports.ReportInput

	kind, err := enums.ParseReportKind(strings.TrimSpace(chi.URLParam(r, "kind")))
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown report").WithDetails(map[string]any{"field": "kind"})
	}
	input.Kind = kind

	if raw := strings.TrimSpace(r.URL.Query().Get("range")); raw != "" {
		rangeKind, err := enums.ParseRangeKind(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown range").WithDetails(map[string]any{"field": "range"})
		}
		input.Range.Kind = rangeKind
	}

	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return input, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return input, err
	}
	if from != nil {
		input.Range.From = *from
	}
	if to != nil {
		input.Range.To = *to
	}

	year, err := validators.ParseQueryInt(r, "year", 0, 1970, 9999)
	if err != nil {
		return input, err
	}
	input.Year = year
	return input, nil
}
