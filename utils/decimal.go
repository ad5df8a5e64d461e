package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount accepts user- or plugin-formatted money strings like:
// - "20,000"
// - "₪ 1,234.50"
// - "ILS -20,000"
// - "1234.5 NIS"
//
// Keep digits, '.', and a leading '-' only.
func ParseAmount(v string) (decimal.Decimal, error) {
	s := strings.TrimSpace(v)
	if s != "" {
		s = strings.ReplaceAll(s, ",", "")
		for _, sym := range []string{"₪", "ILS", "ils", "NIS", "nis", "$", "USD", "usd"} {
			s = strings.ReplaceAll(s, sym, "")
		}
		s = strings.TrimSpace(s)
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	// Strip everything except digits and '.'.
	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, fmt.Errorf("invalid amount %q", v)
	}
	if neg {
		clean = "-" + clean
	}
	return decimal.NewFromString(clean)
}

// DecimalFromJSON decodes a JSON number or string into a decimal. null, a
// missing field and "" all decode to zero.
func DecimalFromJSON(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
		if strings.TrimSpace(s) == "" {
			return decimal.Zero, nil
		}
		return ParseAmount(s)
	}
	return decimal.NewFromString(string(raw))
}
