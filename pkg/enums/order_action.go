package enums

import "fmt"

// OrderAction is a manual status action requested on an order.
type OrderAction string

const (
	OrderActionProcess  OrderAction = "process"
	OrderActionPick     OrderAction = "pick"
	OrderActionComplete OrderAction = "complete"
	OrderActionCancel   OrderAction = "cancel"
)

var validOrderActions = []OrderAction{
	OrderActionProcess,
	OrderActionPick,
	OrderActionComplete,
	OrderActionCancel,
}

// String implements fmt.Stringer.
func (o OrderAction) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderAction.
func (o OrderAction) IsValid() bool {
	for _, candidate := range validOrderActions {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderAction converts raw input into an OrderAction.
func ParseOrderAction(value string) (OrderAction, error) {
	for _, candidate := range validOrderActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order action %q", value)
}
