package poolmath

// Balancer-style pool-composition helpers. These back composition queries
// only; the penalty path never touches them.

// CalculateSpotPrice returns the spot price of the "out" asset in units of
// the "in" asset for a weighted pool:
//
//	spot = (balanceIn / weightIn) / (balanceOut / weightOut)
//
// at lib precision. Returns 0 on any zero balance or weight.
func CalculateSpotPrice(balanceIn, weightIn, balanceOut, weightOut int64) int64 {
	if balanceIn <= 0 || weightIn <= 0 || balanceOut <= 0 || weightOut <= 0 {
		return 0
	}

	numer := MulDiv(balanceIn, LibPrecision, weightIn)
	denom := MulDiv(balanceOut, LibPrecision, weightOut)
	if denom == 0 {
		return 0
	}

	return MulDiv(numer, LibPrecision, denom)
}

// CalculateInvariant computes the weighted-product invariant
//
//	V = Π balance_i ^ (weight_i / P)
//
// with balances interpreted as lib-precision fixed-point values. The power is
// approximated by powApprox at 1% exponent granularity; the result is an
// estimate, not an exact value — do not replace with a higher-precision
// algorithm without flagging the behavior change, since downstream consumers
// compare invariants computed the same way.
//
// Returns 0 on empty or mismatched inputs.
func CalculateInvariant(balances, weights []int64) int64 {
	if len(balances) == 0 || len(balances) != len(weights) {
		return 0
	}

	invariant := LibPrecision
	for i := range balances {
		if balances[i] <= 0 {
			return 0
		}
		term := powApprox(balances[i], weights[i])
		invariant = MulDiv(invariant, term, LibPrecision)
	}

	return invariant
}

// powApprox estimates base^(weight/P) for a fixed-point base by repeated
// multiplication in 1% exponent steps. Each step multiplies by an estimated
// hundredth root of base (first-order approximation root ≈ 1 + (base-1)/100).
// Known imprecision grows with |base - 1|; acceptable for composition
// queries.
func powApprox(base, weight int64) int64 {
	steps := MulDiv(weight, 100, LibPrecision)
	if steps <= 0 {
		return LibPrecision
	}

	root := LibPrecision + (base-LibPrecision)/100

	result := LibPrecision
	for i := int64(0); i < steps; i++ {
		result = MulDiv(result, root, LibPrecision)
	}

	return result
}
