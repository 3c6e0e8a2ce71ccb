package enums

import "fmt"

// ReportKind selects which summary the report aggregator produces.
type ReportKind string

const (
	ReportKindCashFlow          ReportKind = "cash_flow"
	ReportKindExpenseByCategory ReportKind = "expense_by_category"
	ReportKindProfitAndLoss     ReportKind = "profit_and_loss"
	ReportKindReceivables       ReportKind = "receivables"
	ReportKindPayables          ReportKind = "payables"
)

var validReportKinds = []ReportKind{
	ReportKindCashFlow,
	ReportKindExpenseByCategory,
	ReportKindProfitAndLoss,
	ReportKindReceivables,
	ReportKindPayables,
}

// String implements fmt.Stringer.
func (r ReportKind) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReportKind.
func (r ReportKind) IsValid() bool {
	for _, candidate := range validReportKinds {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReportKind converts raw input into a ReportKind.
func ParseReportKind(value string) (ReportKind, error) {
	for _, candidate := range validReportKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report kind %q", value)
}
