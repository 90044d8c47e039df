package sqltypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Format is the layout go-sqlite3 uses when it binds a time.Time parameter.
const Format = "2006-01-02 15:04:05.999999999-07:00"

var fallbackFormats = []string{
	Format,
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseTime(s string) (time.Time, error) {
	var lastErr error

	for _, layout := range fallbackFormats {
		v, err := time.Parse(layout, s)
		if err == nil {
			return v.UTC(), nil
		}

		lastErr = err
	}

	return time.Time{}, lastErr
}

// TimeScanner reads a time column from a view, where the driver may hand back
// either a parsed time.Time or the raw stored text.
type TimeScanner struct {
	Value *time.Time
}

func (t *TimeScanner) Scan(src interface{}) error {
	switch src := src.(type) {
	case time.Time:
		*t.Value = src.UTC()
		return nil
	case string:
		v, err := parseTime(src)
		if err != nil {
			return fmt.Errorf("sqltypes.TimeScanner: could not parse input value %q: %w", src, err)
		}
		*t.Value = v
		return nil
	case []byte:
		v, err := parseTime(string(src))
		if err != nil {
			return fmt.Errorf("sqltypes.TimeScanner: could not parse input value %q: %w", src, err)
		}
		*t.Value = v
		return nil
	default:
		return fmt.Errorf("sqltypes.TimeScanner: could not scan input type of %T", src)
	}
}

type TimePointerScanner struct {
	Value **time.Time
}

func (t *TimePointerScanner) Scan(src interface{}) error {
	if src == nil {
		*t.Value = nil
		return nil
	}

	var v time.Time
	if err := (&TimeScanner{Value: &v}).Scan(src); err != nil {
		return fmt.Errorf("sqltypes.TimePointerScanner: %w", err)
	}

	*t.Value = &v

	return nil
}

type JSONStringSlice []string

func (s JSONStringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}

	d, err := json.Marshal([]string(s))
	if err != nil {
		return nil, fmt.Errorf("sqltypes.JSONStringSlice: could not encode value: %w", err)
	}

	return string(d), nil
}

func (s *JSONStringSlice) Scan(src interface{}) error {
	switch src := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		if err := json.Unmarshal(src, s); err != nil {
			return fmt.Errorf("sqltypes.JSONStringSlice: could not decode input (%T) as JSON: %w", src, err)
		}
		return nil
	case string:
		if err := json.Unmarshal([]byte(src), s); err != nil {
			return fmt.Errorf("sqltypes.JSONStringSlice: could not decode input (%T) as JSON: %w", src, err)
		}
		return nil
	default:
		return fmt.Errorf("sqltypes.JSONStringSlice: could not scan input type of %T", src)
	}
}
