package enums

import "fmt"

// RangeKind selects the date window a report covers.
type RangeKind string

const (
	RangeKindAllTime   RangeKind = "all_time"
	RangeKindToday     RangeKind = "today"
	RangeKindThisWeek  RangeKind = "this_week"
	RangeKindThisMonth RangeKind = "this_month"
	RangeKindThisYear  RangeKind = "this_year"
	RangeKindCustom    RangeKind = "custom"
)

var validRangeKinds = []RangeKind{
	RangeKindAllTime,
	RangeKindToday,
	RangeKindThisWeek,
	RangeKindThisMonth,
	RangeKindThisYear,
	RangeKindCustom,
}

// String implements fmt.Stringer.
func (r RangeKind) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RangeKind.
func (r RangeKind) IsValid() bool {
	for _, candidate := range validRangeKinds {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRangeKind converts raw input into a RangeKind.
func ParseRangeKind(value string) (RangeKind, error) {
	for _, candidate := range validRangeKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid range kind %q", value)
}
