package enums

import "fmt"

// BillAction is a manual status action requested on a bill.
type BillAction string

const (
	BillActionProcess BillAction = "process"
	BillActionReceive BillAction = "receive"
)

var validBillActions = []BillAction{
	BillActionProcess,
	BillActionReceive,
}

// String implements fmt.Stringer.
func (b BillAction) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillAction.
func (b BillAction) IsValid() bool {
	for _, candidate := range validBillActions {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillAction converts raw input into a BillAction.
func ParseBillAction(value string) (BillAction, error) {
	for _, candidate := range validBillActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bill action %q", value)
}
