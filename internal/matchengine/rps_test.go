package matchengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townforge/arena/internal/store"
)

func TestRPS_InitStartsWithPlayer1(t *testing.T) {
	state, firstTurn, err := rpsEngine{}.Init("p1", "p2")
	require.NoError(t, err)
	assert.Equal(t, "p1", firstTurn)
	assert.NotEmpty(t, state)
}

func TestRPS_RoundResolvesOnceBothSubmit(t *testing.T) {
	e := rpsEngine{}
	state, _, err := e.Init("p1", "p2")
	require.NoError(t, err)

	state, err = e.ProcessAction(state, "p1", Action{Type: "rock"})
	require.NoError(t, err)
	turn, err := e.GetCurrentTurn(state)
	require.NoError(t, err)
	assert.Equal(t, "p2", *turn)

	state, err = e.ProcessAction(state, "p2", Action{Type: "scissors"})
	require.NoError(t, err)
	s, err := decodeRPS(state)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Score1) // rock beats scissors
	assert.Equal(t, 0, s.Score2)
	assert.Equal(t, "", s.Pending1)
	assert.Equal(t, "", s.Pending2)
}

func TestRPS_IsGameCompleteAtWinScore(t *testing.T) {
	e := rpsEngine{}
	state, _, _ := e.Init("p1", "p2")
	for i := 0; i < rpsWinScore; i++ {
		state, _ = e.ProcessAction(state, "p1", Action{Type: "rock"})
		state, _ = e.ProcessAction(state, "p2", Action{Type: "scissors"})
	}
	done, err := e.IsGameComplete(state)
	require.NoError(t, err)
	assert.True(t, done)

	winner, err := e.GetWinner(state)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, "p1", *winner)
}

func TestRPS_DrawHasNoWinner(t *testing.T) {
	e := rpsEngine{}
	state, _, _ := e.Init("p1", "p2")
	for i := 0; i < rpsSafetyCap; i++ {
		state, _ = e.ProcessAction(state, "p1", Action{Type: "rock"})
		state, _ = e.ProcessAction(state, "p2", Action{Type: "rock"})
	}
	done, err := e.IsGameComplete(state)
	require.NoError(t, err)
	assert.True(t, done) // safety cap reached even though nobody scored

	winner, err := e.GetWinner(state)
	require.NoError(t, err)
	assert.Nil(t, winner)
}

func TestRPS_UnknownPlayerRejected(t *testing.T) {
	e := rpsEngine{}
	state, _, _ := e.Init("p1", "p2")
	_, err := e.ProcessAction(state, "intruder", Action{Type: "rock"})
	require.Error(t, err)
}

func TestRPS_PlayerViewHidesOpponentPending(t *testing.T) {
	e := rpsEngine{}
	state, _, _ := e.Init("p1", "p2")
	state, err := e.ProcessAction(state, "p1", Action{Type: "rock"})
	require.NoError(t, err)

	view, err := e.PlayerView(state, "p2")
	require.NoError(t, err)
	s, err := decodeRPS(view)
	require.NoError(t, err)
	assert.Equal(t, "", s.Pending1) // p2 cannot see p1's pending move
}

func TestRPS_SpectatorViewHidesBothPending(t *testing.T) {
	e := rpsEngine{}
	state, _, _ := e.Init("p1", "p2")
	state, err := e.ProcessAction(state, "p1", Action{Type: "rock"})
	require.NoError(t, err)

	view, err := e.SpectatorView(state)
	require.NoError(t, err)
	s, err := decodeRPS(view)
	require.NoError(t, err)
	assert.Equal(t, "", s.Pending1)
	assert.Equal(t, "", s.Pending2)
}

func TestRpsBeats_AllOutcomes(t *testing.T) {
	assert.Equal(t, 0, rpsBeats("rock", "rock"))
	assert.Equal(t, 1, rpsBeats("rock", "scissors"))
	assert.Equal(t, 2, rpsBeats("scissors", "rock"))
	assert.Equal(t, 1, rpsBeats("paper", "rock"))
	assert.Equal(t, 1, rpsBeats("scissors", "paper"))
}

func TestGet_DispatchesKnownGameTypes(t *testing.T) {
	for _, gt := range []store.GameType{store.GameRPS, store.GamePoker, store.GameBattleship, store.GameSplitOrSteal} {
		e, err := Get(gt)
		require.NoError(t, err)
		assert.NotNil(t, e)
	}
}

func TestGet_UnknownGameTypeRejected(t *testing.T) {
	_, err := Get(store.GameType("CHECKERS"))
	require.Error(t, err)
}
