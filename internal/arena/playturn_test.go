package arena

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townforge/arena/internal/matchengine"
	"github.com/townforge/arena/internal/store"
)

func insertMove(t *testing.T, st *store.Store, matchID, agentID, action string) {
	t.Helper()
	require.NoError(t, st.Transaction(context.Background(), func(tx *store.Tx) error {
		return tx.InsertMove(&store.Move{
			MatchID: matchID, AgentID: agentID, Action: `{"action":"` + action + `"}`,
		})
	}))
}

func TestApplyArchetypeBias_ChameleonMirrorsOpponentRaise(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := &store.Match{ID: "m1", GameType: store.GamePoker}
	insertMove(t, st, "m1", "opp", "raise")

	action := matchengine.Action{Type: "check"}
	biased := applyArchetypeBias(ctx, st, store.ArchetypeChameleon, action, []string{"check", "raise", "fold"}, m, "opp")
	assert.Equal(t, "raise", biased.Type)
}

func TestApplyArchetypeBias_ChameleonMirrorsOpponentFold(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := &store.Match{ID: "m2", GameType: store.GamePoker}
	insertMove(t, st, "m2", "opp", "fold")

	action := matchengine.Action{Type: "check"}
	biased := applyArchetypeBias(ctx, st, store.ArchetypeChameleon, action, []string{"check", "raise", "fold"}, m, "opp")
	assert.Equal(t, "fold", biased.Type)
}

func TestApplyArchetypeBias_ChameleonNoOpponentHistoryLeavesActionUnchanged(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := &store.Match{ID: "m3", GameType: store.GamePoker}

	action := matchengine.Action{Type: "check"}
	biased := applyArchetypeBias(ctx, st, store.ArchetypeChameleon, action, []string{"check", "raise", "fold"}, m, "opp")
	assert.Equal(t, "check", biased.Type)
}

func TestApplyArchetypeBias_OnlyFiresForPoker(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	m := &store.Match{ID: "m4", GameType: store.GameRPS}
	insertMove(t, st, "m4", "opp", "raise")

	action := matchengine.Action{Type: "check"}
	biased := applyArchetypeBias(ctx, st, store.ArchetypeChameleon, action, []string{"check"}, m, "opp")
	assert.Equal(t, "check", biased.Type)
}
