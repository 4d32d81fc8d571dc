package arena

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townforge/arena/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedAgent(t *testing.T, st *store.Store, id string, bankroll int64) {
	t.Helper()
	require.NoError(t, st.CreateAgent(context.Background(), &store.Agent{ID: id, Name: id, Bankroll: bankroll}))
}

func TestCreateMatch_DebitsTotalWageredForSoloCreator(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedAgent(t, st, "a1", 1000)

	svc := New(st)
	_, err := svc.CreateMatch(ctx, "a1", store.GameRPS, 100, nil)
	require.NoError(t, err)

	got, err := st.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.TotalWagered)
	assert.Equal(t, int64(900), got.Bankroll)
}

func TestCreateMatch_DebitsTotalWageredForBothPlayersWhenOpponentSupplied(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedAgent(t, st, "a1", 1000)
	seedAgent(t, st, "a2", 1000)

	svc := New(st)
	opponent := "a2"
	_, err := svc.CreateMatch(ctx, "a1", store.GameRPS, 100, &opponent)
	require.NoError(t, err)

	creator, err := st.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), creator.TotalWagered)

	opp, err := st.GetAgent(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, int64(100), opp.TotalWagered)
}

func TestJoinMatch_DebitsJoinerTotalWagered(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedAgent(t, st, "a1", 1000)
	seedAgent(t, st, "a2", 1000)

	svc := New(st)
	m, err := svc.CreateMatch(ctx, "a1", store.GameRPS, 100, nil)
	require.NoError(t, err)

	_, err = svc.JoinMatch(ctx, m.ID, "a2")
	require.NoError(t, err)

	joiner, err := st.GetAgent(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, int64(100), joiner.TotalWagered)
}
