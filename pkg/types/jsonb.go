package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Value marshals the items into JSON for the jsonb column.
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes the jsonb column into the items.
func (l *LineItems) Scan(value interface{}) error {
	raw, err := jsonBytes("line items", value)
	if err != nil || raw == nil {
		*l = nil
		return err
	}
	result := LineItems{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*l = result
	return nil
}

// Value marshals the history into JSON for the jsonb column.
func (h History) Value() (driver.Value, error) {
	if h == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes the jsonb column into the history.
func (h *History) Scan(value interface{}) error {
	raw, err := jsonBytes("history", value)
	if err != nil || raw == nil {
		*h = nil
		return err
	}
	result := make(History)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*h = result
	return nil
}

func jsonBytes(name string, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%s: unsupported scan type %T", name, value)
	}
}
