// Package money converts between decimal-comma amount text and integer cents.
//
// Everything past the input boundary works on int64 cents. Decimal values
// exist only while parsing and while rendering.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyAmount is the cause of a FormatError for blank input.
	ErrEmptyAmount = errors.New("empty amount")
	// ErrOutOfRange is the cause of a FormatError for amounts beyond int64 cents.
	ErrOutOfRange = errors.New("amount out of range")
)

// FormatError reports amount text that is not a decimal-comma number.
type FormatError struct {
	Text string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid amount %q: %v", e.Text, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ParseAmount converts text such as "-625,7" into signed cents (-62570).
// Sub-cent digits are rounded half to even.
func ParseAmount(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, &FormatError{Text: text, Err: ErrEmptyAmount}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(trimmed, ",", "."))
	if err != nil {
		return 0, &FormatError{Text: text, Err: err}
	}
	cents := d.Shift(2).RoundBank(0)
	if cents.Abs().GreaterThan(maxCents) {
		return 0, &FormatError{Text: text, Err: ErrOutOfRange}
	}
	return cents.IntPart(), nil
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// FormatAmount renders cents with two fractional digits and a '.' separator.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Sum parses and adds every text, failing on the first malformed one.
func Sum(texts ...string) (int64, error) {
	var total int64
	for _, t := range texts {
		c, err := ParseAmount(t)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

// Abs returns the absolute value of cents.
func Abs(cents int64) int64 {
	if cents < 0 {
		return -cents
	}
	return cents
}

// Display renders cents for humans in the given ISO currency, e.g. "€1,234.56".
// Output only; never parse it back.
func Display(cents int64, currency string) string {
	return gomoney.New(cents, currency).Display()
}
