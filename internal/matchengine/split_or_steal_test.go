package matchengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitOrSteal_BothSplitSharesPot(t *testing.T) {
	e := splitOrStealEngine{}
	state, first, err := e.Init("p1", "p2")
	require.NoError(t, err)
	assert.Equal(t, "p1", first)

	state, err = e.ProcessAction(state, "p1", Action{Type: "split"})
	require.NoError(t, err)
	state, err = e.ProcessAction(state, "p2", Action{Type: "split"})
	require.NoError(t, err)

	s, err := decodeSplitOrSteal(state)
	require.NoError(t, err)
	assert.Equal(t, s.Pot/2, s.Payout1)
	assert.Equal(t, s.Pot/2, s.Payout2)

	winner, err := e.GetWinner(state)
	require.NoError(t, err)
	assert.Nil(t, winner) // even split has no winner
}

func TestSplitOrSteal_StealBeatsSplit(t *testing.T) {
	e := splitOrStealEngine{}
	state, _, _ := e.Init("p1", "p2")
	state, _ = e.ProcessAction(state, "p1", Action{Type: "steal"})
	state, _ = e.ProcessAction(state, "p2", Action{Type: "split"})

	s, err := decodeSplitOrSteal(state)
	require.NoError(t, err)
	assert.Equal(t, s.Pot, s.Payout1)
	assert.Equal(t, int64(0), s.Payout2)

	winner, err := e.GetWinner(state)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, "p1", *winner)
}

func TestSplitOrSteal_BothStealNobodyWins(t *testing.T) {
	e := splitOrStealEngine{}
	state, _, _ := e.Init("p1", "p2")
	state, _ = e.ProcessAction(state, "p1", Action{Type: "steal"})
	state, _ = e.ProcessAction(state, "p2", Action{Type: "steal"})

	s, err := decodeSplitOrSteal(state)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Payout1)
	assert.Equal(t, int64(0), s.Payout2)
}

func TestSplitOrSteal_InvalidDecisionRejected(t *testing.T) {
	e := splitOrStealEngine{}
	state, _, _ := e.Init("p1", "p2")
	_, err := e.ProcessAction(state, "p1", Action{Type: "cooperate"})
	require.Error(t, err)
}

func TestSplitOrSteal_CurrentTurnAdvancesThenClearsOnComplete(t *testing.T) {
	e := splitOrStealEngine{}
	state, _, _ := e.Init("p1", "p2")
	turn, err := e.GetCurrentTurn(state)
	require.NoError(t, err)
	assert.Equal(t, "p1", *turn)

	state, _ = e.ProcessAction(state, "p1", Action{Type: "split"})
	turn, err = e.GetCurrentTurn(state)
	require.NoError(t, err)
	assert.Equal(t, "p2", *turn)

	state, _ = e.ProcessAction(state, "p2", Action{Type: "split"})
	turn, err = e.GetCurrentTurn(state)
	require.NoError(t, err)
	assert.Nil(t, turn)
}

func TestSplitOrSteal_PlayerViewHidesOpponentDecisionBeforeReveal(t *testing.T) {
	e := splitOrStealEngine{}
	state, _, _ := e.Init("p1", "p2")
	state, _ = e.ProcessAction(state, "p1", Action{Type: "steal"})

	view, err := e.PlayerView(state, "p2")
	require.NoError(t, err)
	s, err := decodeSplitOrSteal(view)
	require.NoError(t, err)
	assert.Equal(t, "", s.Decision1)
}
