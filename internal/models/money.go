package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Money is a currency amount. The backend serialises decimal columns as
// strings ("150.00") on some endpoints and as numbers on others; both decode.
type Money float64

// UnmarshalJSON accepts a JSON number, a numeric string, or null (zero).
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", s, err)
		}
		*m = Money(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid amount %s: %w", data, err)
	}
	*m = Money(f)
	return nil
}

// Float returns the amount as a float64.
func (m Money) Float() float64 {
	return float64(m)
}
