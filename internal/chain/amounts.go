package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// The contract stores monetary values as 18-decimal fixed-point integers.
// Conversions in both directions must be exact: silent rounding here would
// drift the mirror away from the ledger one investment at a time.
const fixedPointDecimals = 18

// ToFixedPoint converts a ledger amount into the contract's fixed-point
// representation. Amounts with more than 18 fractional digits are rejected
// rather than rounded.
func ToFixedPoint(amount float64) (*big.Int, error) {
	d := decimal.NewFromFloat(amount)
	shifted := d.Shift(fixedPointDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %v cannot be represented in %d decimals without rounding", amount, fixedPointDecimals)
	}
	return shifted.BigInt(), nil
}

// FromFixedPoint converts a contract fixed-point value back into a ledger
// amount, failing if the value does not round-trip exactly through float64.
func FromFixedPoint(value *big.Int) (float64, error) {
	if value == nil {
		return 0, fmt.Errorf("nil fixed-point value")
	}
	d := decimal.NewFromBigInt(value, -fixedPointDecimals)
	f, exact := d.Float64()
	if !exact {
		return 0, fmt.Errorf("fixed-point value %s does not convert exactly", value.String())
	}
	return f, nil
}
