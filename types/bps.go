package types

import "math/big"

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10_000

// Bps is a fee rate in basis points. Valid rates are bounded by
// BpsDenominator; a rate of 250 means 2.5%.
type Bps uint32

// Valid reports whether the rate is within the 0..10000 bound.
func (b Bps) Valid() bool { return b <= BpsDenominator }

// ApplyTo returns amount * b / 10000, rounding toward zero.
func (b Bps) ApplyTo(amount Amount) Amount {
	p := new(big.Int).Mul(amount.ref(), big.NewInt(int64(b)))
	return Amount{i: p.Quo(p, big.NewInt(BpsDenominator))}
}
