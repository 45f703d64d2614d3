package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// AmountDecimals is the fixed-point scale for all value amounts. Amounts are
// int64 micros: 1.0 units == 1_000_000.
const AmountDecimals = 6

// amountScale is 10^AmountDecimals.
const amountScale int64 = 1_000_000

// Amount is a value quantity in micros. Pools, shares, fees, and custody
// balances all use the same scale so floor division behaves uniformly.
type Amount int64

// ParseAmount parses a decimal string such as "1.5" or "0.01" into micros
// without going through float64. Excess fractional digits are truncated
// toward zero. Negative amounts are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("domain: empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("domain: negative amount %q", s)
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("domain: malformed amount %q", s)
	}

	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}

	var intVal int64
	if intPart != "" {
		v, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("domain: malformed amount %q: %w", s, err)
		}
		intVal = v
	}

	if len(fracPart) > AmountDecimals {
		fracPart = fracPart[:AmountDecimals]
	} else {
		fracPart += strings.Repeat("0", AmountDecimals-len(fracPart))
	}

	var fracVal int64
	if fracPart != "" {
		v, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("domain: malformed amount %q: %w", s, err)
		}
		fracVal = v
	}

	if intVal > (1<<63-1)/amountScale || intVal*amountScale > (1<<63-1)-fracVal {
		return 0, fmt.Errorf("domain: amount %q overflows", s)
	}
	return Amount(intVal*amountScale + fracVal), nil
}

// String renders the amount as a decimal with trailing fractional zeros
// trimmed, e.g. 990000 -> "0.99".
func (a Amount) String() string {
	neg := a < 0
	v := int64(a)
	if neg {
		v = -v
	}
	intPart := v / amountScale
	fracPart := v % amountScale

	out := strconv.FormatInt(intPart, 10)
	if fracPart != 0 {
		frac := fmt.Sprintf("%06d", fracPart)
		frac = strings.TrimRight(frac, "0")
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// MarshalJSON renders the amount as a JSON string so API clients never see
// raw micros.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
