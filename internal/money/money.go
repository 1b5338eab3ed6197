// Package money carries amounts as integer minor units so totals frozen at
// creation time stay exact for the life of a transaction. Decimal strings at
// the API boundary are parsed and rendered through shopspring/decimal; binary
// floating point never touches an amount.
package money

import (
	"bytes"

	"github.com/shopspring/decimal"

	"github.com/farmlink/marketplace/internal/market"
)

// Cents is an amount in minor currency units.
type Cents int64

var hundred = decimal.NewFromInt(100)

// Parse converts a fixed-precision decimal string ("17.97") to minor units.
func Parse(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, market.E(market.KindAmountMismatch, "malformed amount %q", s)
	}
	if d.Exponent() < -2 {
		return 0, market.E(market.KindAmountMismatch, "amount %q has more than two decimal places", s)
	}
	return Cents(d.Mul(hundred).IntPart()), nil
}

func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(hundred)
}

// String renders the amount as a fixed two-decimal string.
func (c Cents) String() string { return c.Decimal().StringFixed(2) }

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON accepts either a quoted fixed-precision string or a bare
// decimal literal; both go through exact decimal parsing.
func (c *Cents) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "null" {
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Total computes rate x count. Quantities and rental days are whole numbers,
// so the product is exact.
func Total(rate Cents, count int64) Cents { return rate * Cents(count) }

// Epsilon is the tolerated divergence between a caller-submitted total and
// the server-recomputed one: a single minor unit.
const Epsilon Cents = 1

// VerifyTotal compares a caller-submitted total against the recomputed value.
// Clients recompute totals independently for display; anything beyond Epsilon
// means tampering or drift and the request is rejected.
func VerifyTotal(expected, submitted Cents) error {
	diff := expected - submitted
	if diff < 0 {
		diff = -diff
	}
	if diff > Epsilon {
		return market.E(market.KindAmountMismatch, "submitted total %s, expected %s", submitted, expected)
	}
	return nil
}
