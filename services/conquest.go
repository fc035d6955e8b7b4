package services

// CalculateConquestIndex computes the attacker's win probability as a
// percentage in [0,100]. The index is computed once at invasion start and
// frozen into the record; it is never recomputed.
//
// A shielded city always yields 0. defenderPower must be positive — callers
// reject zero-population cities before getting here.
func CalculateConquestIndex(attackerPower, defenderPower float64, cityLevel int, hasShield bool) float64 {
	if hasShield {
		return 0
	}

	index := (attackerPower / defenderPower) * 100
	index -= float64(cityLevel) * 5
	index -= 10

	if index < 0 {
		return 0
	}
	if index > 100 {
		return 100
	}
	return index
}
