package poolmath

import (
	"math/big"
	"sync"
)

// Precision constants. Member-facing APIs use basis points; all internal
// weighted math runs at lib precision.
const (
	LibPrecision int64 = 1_000_000_000_000_000_000 // 1e18
	BasisPoints  int64 = 10_000

	// Weight bounds at lib precision: [1%, 99%]. Weights outside this band
	// produce degenerate pools.
	MinWeight = LibPrecision / 100
	MaxWeight = LibPrecision / 100 * 99
)

// bigIntPool recycles big.Ints used for 128-bit intermediates
var bigIntPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigIntPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigIntPool.Put(v)
}

// MulDiv computes a * b / den with truncating (floor) division, widening the
// intermediate product to avoid int64 overflow. Truncation is deliberate:
// every ratio in this package is a pessimistic lower bound.
func MulDiv(a, b, den int64) int64 {
	if den == 0 {
		return 0
	}

	prod := getBig()
	prod.Mul(big.NewInt(a), big.NewInt(b))
	prod.Quo(prod, big.NewInt(den))

	result := prod.Int64()
	putBig(prod)

	return result
}

// ToLibWeight converts a basis-points weight to lib precision.
// libWeight = bpsWeight * 1e18 / 10000, truncating.
func ToLibWeight(bps int64) int64 {
	return MulDiv(bps, LibPrecision, BasisPoints)
}

// ToBpsWeight converts a lib-precision value back to basis points, truncating.
func ToBpsWeight(lib int64) int64 {
	return lib / (LibPrecision / BasisPoints)
}
