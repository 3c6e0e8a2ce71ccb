package types

// Warning codes attached to a write that succeeded with caveats.
const (
	WarningTransactionLogFailure = "transaction_log_failure"
	WarningStaleRead             = "stale_read"
)

// Warning is a non-fatal problem observed while recording a write.
type Warning struct {
	Code    string `json:"code"`
	Step    string `json:"step"`
	Message string `json:"message"`
}
