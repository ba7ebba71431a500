package scoring

import "math"

// Weight returns the exponential time-decay weight for a feedback entry
// of the given age: 2^(-ageDays/halfLifeDays). Ages at or below zero
// (future-dated timestamps included) weigh 1.
func Weight(ageDays, halfLifeDays float64) float64 {
	if ageDays <= 0 {
		return 1
	}
	return math.Exp2(-ageDays / halfLifeDays)
}

// EffectiveWindow returns the age in days past which the decay weight
// drops below minWeight. Diagnostic only; old feedback is never filtered
// out, it just contributes less.
func EffectiveWindow(minWeight, halfLifeDays float64) float64 {
	return -halfLifeDays * math.Log2(minWeight)
}
