package enums

import "fmt"

// BillStatus tracks the receiving lifecycle of a purchase bill. Paid is only ever set by a payment.
type BillStatus string

const (
	BillStatusOnHold     BillStatus = "on_hold"
	BillStatusProcessing BillStatus = "processing"
	BillStatusReceived   BillStatus = "received"
	BillStatusPaid       BillStatus = "paid"
)

var validBillStatuses = []BillStatus{
	BillStatusOnHold,
	BillStatusProcessing,
	BillStatusReceived,
	BillStatusPaid,
}

// String implements fmt.Stringer.
func (b BillStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillStatus.
func (b BillStatus) IsValid() bool {
	for _, candidate := range validBillStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillStatus converts raw input into a BillStatus.
func ParseBillStatus(value string) (BillStatus, error) {
	for _, candidate := range validBillStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bill status %q", value)
}
