// Package math provides exact fixed-point helpers for base-unit amounts
package math

import (
	gomath "math"
	"math/big"
	"strconv"
)

// fractionRat converts a float fraction to the exact rational of its shortest
// decimal form, so 0.0009 becomes 9/10000 rather than its binary approximation.
func fractionRat(frac float64) (*big.Rat, bool) {
	if gomath.IsNaN(frac) || gomath.IsInf(frac, 0) || frac <= 0 {
		return nil, false
	}
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(frac, 'g', -1, 64))
	return r, ok
}

func toUint64(r *big.Rat, ceil bool) uint64 {
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if ceil && m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsUint64() {
		return gomath.MaxUint64
	}
	return q.Uint64()
}

// MulFraction returns floor(amount * frac). Non-positive fractions yield 0.
func MulFraction(amount uint64, frac float64) uint64 {
	r, ok := fractionRat(frac)
	if !ok {
		return 0
	}
	r.Mul(r, new(big.Rat).SetInt(new(big.Int).SetUint64(amount)))
	return toUint64(r, false)
}

// MulFractionCeil returns ceil(amount * frac). Non-positive fractions yield 0.
func MulFractionCeil(amount uint64, frac float64) uint64 {
	r, ok := fractionRat(frac)
	if !ok {
		return 0
	}
	r.Mul(r, new(big.Rat).SetInt(new(big.Int).SetUint64(amount)))
	return toUint64(r, true)
}

// Haircut deducts a proportional fee from amount and returns what is left
// together with the fee taken.
func Haircut(amount uint64, fee float64) (out, feeAmount uint64) {
	feeAmount = MulFraction(amount, fee)
	if feeAmount > amount {
		feeAmount = amount
	}
	return amount - feeAmount, feeAmount
}

// Diff returns a - b as a signed value, saturating at the int64 range
func Diff(a, b uint64) int64 {
	return saturate(new(big.Int).Sub(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b)))
}

func saturate(d *big.Int) int64 {
	switch {
	case d.IsInt64():
		return d.Int64()
	case d.Sign() > 0:
		return gomath.MaxInt64
	default:
		return gomath.MinInt64
	}
}

// Net returns gain minus every cost, saturating at the int64 range
func Net(gain uint64, costs ...uint64) int64 {
	d := new(big.Int).SetUint64(gain)
	for _, c := range costs {
		d.Sub(d, new(big.Int).SetUint64(c))
	}
	return saturate(d)
}

// Clamp bounds v to [lo, hi]. When lo > hi, hi wins.
func Clamp(v, lo, hi uint64) uint64 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

// FloorFloat converts a non-negative float to base units, saturating at
// MaxUint64. NaN and negatives yield 0.
func FloorFloat(v float64) uint64 {
	if gomath.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= gomath.MaxUint64 {
		return gomath.MaxUint64
	}
	return uint64(gomath.Floor(v))
}
