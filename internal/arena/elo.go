package arena

import "math"

const eloK = 32.0

// eloDelta computes the symmetric Elo update for a decisive result (spec
// §4.7 "Elo update with K=32"): expW is the winner's win expectation against
// loserElo, and both deltas are derived from the same expectation so they
// stay antisymmetric.
func eloDelta(winnerElo, loserElo int) (winnerDelta, loserDelta int) {
	expW := 1.0 / (1.0 + math.Pow(10, float64(loserElo-winnerElo)/400.0))
	winnerDelta = int(math.Round(eloK * (1.0 - expW)))
	loserDelta = int(math.Round(eloK * (0.0 - (1.0 - expW))))
	return winnerDelta, loserDelta
}

const eloFloor = 100

func applyEloFloor(elo int) int {
	if elo < eloFloor {
		return eloFloor
	}
	return elo
}
