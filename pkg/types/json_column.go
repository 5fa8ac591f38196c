package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList persists a list of strings as a JSON text column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return marshalColumn(s)
}

func (s *StringList) Scan(value any) error {
	return scanColumn(value, s, "string list")
}

// TimeList persists a list of timestamps as a JSON text column.
type TimeList []time.Time

func (t TimeList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	return marshalColumn(t)
}

func (t *TimeList) Scan(value any) error {
	return scanColumn(value, t, "time list")
}

func marshalColumn(v any) (driver.Value, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

func scanColumn(value any, dest any, name string) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("%s: unsupported scan type %T", name, value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
