package amm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestQuote_BuyArena(t *testing.T) {
	pool := &store.EconomyPool{ReserveBalance: 100000, ArenaBalance: 100000, FeeBps: 100}
	q, err := quote(pool, SideBuyArena, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(10), q.Fee) // 1% of 1000
	assert.Greater(t, q.AmountOut, int64(0))
	assert.Less(t, q.AmountOut, int64(1000)) // constant-product slippage
}

func TestQuote_SellArena(t *testing.T) {
	pool := &store.EconomyPool{ReserveBalance: 100000, ArenaBalance: 100000, FeeBps: 100}
	q, err := quote(pool, SideSellArena, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(10), q.Fee)
	assert.Greater(t, q.AmountOut, int64(0))
}

func TestQuote_NonPositiveAmount(t *testing.T) {
	pool := &store.EconomyPool{ReserveBalance: 100000, ArenaBalance: 100000, FeeBps: 100}
	_, err := quote(pool, SideBuyArena, 0)
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestQuote_EmptyPool(t *testing.T) {
	pool := &store.EconomyPool{ReserveBalance: 0, ArenaBalance: 100000, FeeBps: 100}
	_, err := quote(pool, SideBuyArena, 1000)
	assert.Equal(t, corefail.External, corefail.KindOf(err))
}

func TestQuote_UnknownSide(t *testing.T) {
	pool := &store.EconomyPool{ReserveBalance: 100000, ArenaBalance: 100000, FeeBps: 100}
	_, err := quote(pool, Side("sideways"), 1000)
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestSwap_BuyArenaMovesBalances(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InitPool(ctx, 1_000_000, 1_000_000, 100))
	agent := &store.Agent{ID: "a1", Name: "shark-01", ReserveBalance: 5000, Bankroll: 0}
	require.NoError(t, st.CreateAgent(ctx, agent))

	svc := New(st)
	q, err := svc.Swap(ctx, "a1", SideBuyArena, 1000, nil)
	require.NoError(t, err)
	assert.Greater(t, q.AmountOut, int64(0))

	pool, err := st.GetPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000+1000-q.Fee), pool.ReserveBalance)
	assert.Equal(t, int64(1_000_000-q.AmountOut), pool.ArenaBalance)
}

func TestSwap_SlippageRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InitPool(ctx, 1_000_000, 1_000_000, 100))
	agent := &store.Agent{ID: "a1", Name: "shark-01", ReserveBalance: 5000}
	require.NoError(t, st.CreateAgent(ctx, agent))

	svc := New(st)
	impossible := int64(1_000_000)
	_, err := svc.Swap(ctx, "a1", SideBuyArena, 1000, &impossible)
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestSwap_InsufficientReserve(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InitPool(ctx, 1_000_000, 1_000_000, 100))
	agent := &store.Agent{ID: "a1", Name: "shark-01", ReserveBalance: 10}
	require.NoError(t, st.CreateAgent(ctx, agent))

	svc := New(st)
	_, err := svc.Swap(ctx, "a1", SideBuyArena, 1000, nil)
	assert.Equal(t, corefail.Precondition, corefail.KindOf(err))
}

func TestContributeBudgets_SplitsFourWays(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InitPool(ctx, 1_000_000, 1_000_000, 100))

	svc := New(st)
	require.NoError(t, svc.ContributeBudgets(ctx, 1000, 5000, 2500, 1500, 1000, "town claim"))

	pool, err := st.GetPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000+500), pool.ReserveBalance)
	assert.Equal(t, int64(250), pool.BudgetOps)
	assert.Equal(t, int64(150), pool.BudgetPvp)
	assert.Equal(t, int64(100), pool.BudgetInsurance)
}

func TestContributeBudgets_NonPositiveRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InitPool(ctx, 1_000_000, 1_000_000, 100))

	svc := New(st)
	err := svc.ContributeBudgets(ctx, 0, 5000, 2500, 1500, 1000, "noop")
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestAudit_ReportsDriftAndBudgetHealth(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.InitPool(ctx, 1_000_000, 1_000_000, 100))

	svc := New(st)
	baselineK := int64(1_000_000) * int64(1_000_000)
	report, err := svc.Audit(ctx, baselineK)
	require.NoError(t, err)
	assert.True(t, report.BudgetsNonNegative)
	assert.Equal(t, int64(0), report.DriftSinceBaseline)
	assert.Equal(t, "1,000,000", report.FormattedReserve)
}
