package enums

import "fmt"

// ChangeKind is the row operation carried by a change notification.
type ChangeKind string

const (
	ChangeKindInsert ChangeKind = "insert"
	ChangeKindUpdate ChangeKind = "update"
	ChangeKindDelete ChangeKind = "delete"
)

var validChangeKinds = []ChangeKind{
	ChangeKindInsert,
	ChangeKindUpdate,
	ChangeKindDelete,
}

// String implements fmt.Stringer.
func (c ChangeKind) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ChangeKind.
func (c ChangeKind) IsValid() bool {
	for _, candidate := range validChangeKinds {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChangeKind converts raw input into a ChangeKind.
func ParseChangeKind(value string) (ChangeKind, error) {
	for _, candidate := range validChangeKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid change kind %q", value)
}
