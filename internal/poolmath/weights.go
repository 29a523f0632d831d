package poolmath

// ValidateWeights checks a lib-precision weight array: every weight must lie
// in [MinWeight, MaxWeight] and the sum must equal LibPrecision exactly.
// No tolerance band — callers pre-round their weights so that successive
// divisions cannot drift the sum off the whole.
func ValidateWeights(weights []int64) bool {
	if len(weights) == 0 {
		return false
	}

	var sum int64
	for _, w := range weights {
		if w < MinWeight || w > MaxWeight {
			return false
		}
		sum += w
	}

	return sum == LibPrecision
}

// CalculateHealthFactor returns the worst-preserved weighted asset ratio:
// for each asset with initial > 0,
//
//	ratio_i    = current_i * P / initial_i
//	weighted_i = ratio_i * weight_i / P
//
// and the result is min(weighted_i). Assets with a zero initial amount are
// skipped — they contribute nothing and do not count toward the minimum.
// If every initial amount is zero there is nothing to measure and the pool
// is treated as perfectly preserved (LibPrecision).
//
// All divisions truncate, making the health factor a conservative estimate.
// Callers must verify array-length equality before invoking.
func CalculateHealthFactor(initial, current, weights []int64) int64 {
	if len(initial) == 0 || len(initial) != len(current) || len(initial) != len(weights) {
		return 0
	}

	minWeighted := int64(-1)

	for i := range initial {
		if initial[i] <= 0 {
			continue
		}

		ratio := MulDiv(current[i], LibPrecision, initial[i])
		weighted := MulDiv(ratio, weights[i], LibPrecision)

		if minWeighted < 0 || weighted < minWeighted {
			minWeighted = weighted
		}
	}

	if minWeighted < 0 {
		return LibPrecision
	}

	return minWeighted
}

// CalculateRatioChange returns current * P / initial, or 0 when initial is
// zero. Truncating.
func CalculateRatioChange(initial, current int64) int64 {
	if initial <= 0 {
		return 0
	}
	return MulDiv(current, LibPrecision, initial)
}
