package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEloDelta_EqualRatingsSplitsKEvenly(t *testing.T) {
	winnerDelta, loserDelta := eloDelta(1500, 1500)
	assert.Equal(t, 16, winnerDelta)
	assert.Equal(t, -16, loserDelta)
}

func TestEloDelta_UnderdogWinGetsLargerDelta(t *testing.T) {
	upsetDelta, _ := eloDelta(1400, 1600)
	favoriteDelta, _ := eloDelta(1600, 1400)
	assert.Greater(t, upsetDelta, favoriteDelta)
}

func TestEloDelta_DeltasAreAntisymmetric(t *testing.T) {
	winnerDelta, loserDelta := eloDelta(1550, 1450)
	assert.Equal(t, -loserDelta, winnerDelta)
}

func TestApplyEloFloor_ClampsBelowFloor(t *testing.T) {
	assert.Equal(t, eloFloor, applyEloFloor(50))
	assert.Equal(t, 1500, applyEloFloor(1500))
}
