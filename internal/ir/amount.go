package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits an Amount carries.
const AmountScale = 2

// MaxAmount is the largest representable amount. Its value in cents stays
// below 2^53, so SQLite can compare stored amounts as exact cents.
var MaxAmount = Amount{d: decimal.New(99999999999999, -AmountScale)}

// Amount is a non-negative fixed-point currency value with at most two
// fractional digits. Its canonical text is the fixed two-digit string
// ("100.00"), which is what enters the value hash.
type Amount struct {
	d decimal.Decimal
}

// NewAmount validates d and wraps it.
func NewAmount(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, &Error{Code: CodeInvalidAmount, Message: fmt.Sprintf("amount %s is negative", d.String())}
	}
	if d.GreaterThan(MaxAmount.d) {
		return Amount{}, &Error{Code: CodeInvalidAmount, Message: fmt.Sprintf("amount %s exceeds maximum %s", d.String(), MaxAmount)}
	}
	if !d.Equal(d.Round(AmountScale)) {
		return Amount{}, &Error{Code: CodeInvalidAmount, Message: fmt.Sprintf("amount %s has more than %d decimal places", d.String(), AmountScale)}
	}
	return Amount{d: d}, nil
}

// ParseAmount parses a decimal string such as "15000.50".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, &Error{Code: CodeInvalidAmount, Message: fmt.Sprintf("amount %q is not numeric", s)}
	}
	return NewAmount(d)
}

// MustAmount is like ParseAmount but panics on error.
// Use only in tests or for literal seed data.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// String returns the canonical fixed two-digit form.
func (a Amount) String() string {
	return a.d.StringFixed(AmountScale)
}

// IsZero reports whether the amount is 0.00.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// Equal compares by numeric value.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// Cmp returns -1, 0 or +1 like decimal.Decimal.Cmp.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Add returns a+b, or InvalidAmount when the result would exceed MaxAmount.
func (a Amount) Add(b Amount) (Amount, error) {
	return NewAmount(a.d.Add(b.d))
}

// Sub returns a-b, or InvalidAmount when the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.d.LessThan(b.d) {
		return Amount{}, &Error{Code: CodeInvalidAmount, Message: fmt.Sprintf("insufficient funds: %s exceeds balance %s", b, a)}
	}
	return Amount{d: a.d.Sub(b.d)}, nil
}

// MarshalJSON writes the amount as an unquoted number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return &Error{Code: CodeInvalidAmount, Message: "amount is required"}
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return &Error{Code: CodeInvalidAmount, Message: "amount is not a string or number"}
		}
	}
	parsed, err := ParseAmount(text)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
