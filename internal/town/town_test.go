package town

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

func TestSeedFor_DeterministicAcrossCalls(t *testing.T) {
	assert.Equal(t, seedFor("main"), seedFor("main"))
	assert.NotEqual(t, seedFor("main"), seedFor("other"))
}

func TestCreateTown_RejectsNonPositivePlotCount(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	err := svc.CreateTown(context.Background(), "main", 0)
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestCreateTown_GeneratesRequestedPlotCount(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()
	require.NoError(t, svc.CreateTown(ctx, "main", 20))

	plots, err := svc.ListPlots(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, plots, 20)
	for _, p := range plots {
		assert.Equal(t, store.PlotEmpty, p.Status)
	}
}

func TestCreateTown_DeterministicAcrossRuns(t *testing.T) {
	ctx := context.Background()
	st1 := newTestStore(t)
	require.NoError(t, New(st1).CreateTown(ctx, "main", 10))
	plots1, err := st1.ListPlots(ctx, "main")
	require.NoError(t, err)

	st2 := newTestStore(t)
	require.NoError(t, New(st2).CreateTown(ctx, "main", 10))
	plots2, err := st2.ListPlots(ctx, "main")
	require.NoError(t, err)

	for i := range plots1 {
		assert.Equal(t, plots1[i].Zone, plots2[i].Zone)
		assert.InDelta(t, plots1[i].QualityScore, plots2[i].QualityScore, 1e-9)
	}
}

func TestFullPlotLifecycle_ClaimBuildWorkComplete(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()
	require.NoError(t, svc.CreateTown(ctx, "main", 5))

	plot, err := svc.GetPlot(ctx, "main", 0)
	require.NoError(t, err)
	buildingType := buildingTypesByZone[plot.Zone][0]

	require.NoError(t, svc.ClaimPlot(ctx, "main", 0, "agent-1"))
	plot, err = svc.GetPlot(ctx, "main", 0)
	require.NoError(t, err)
	assert.Equal(t, store.PlotClaimed, plot.Status)
	require.NotNil(t, plot.OwnerID)
	assert.Equal(t, "agent-1", *plot.OwnerID)

	require.NoError(t, svc.StartBuild(ctx, "main", 0, "agent-1", buildingType, "Agent One's Place"))
	plot, err = svc.GetPlot(ctx, "main", 0)
	require.NoError(t, err)
	assert.Equal(t, store.PlotUnderConstruction, plot.Status)

	minCalls := store.MinCallsForZone(plot.Zone)
	for i := 0; i < minCalls; i++ {
		require.NoError(t, svc.DoWork(ctx, "main", 0, "agent-1", 100))
	}

	require.NoError(t, svc.CompleteBuild(ctx, "main", 0, "agent-1"))
	plot, err = svc.GetPlot(ctx, "main", 0)
	require.NoError(t, err)
	assert.Equal(t, store.PlotBuilt, plot.Status)
}

func TestCompleteBuild_RejectsBeforeMinCalls(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()
	require.NoError(t, svc.CreateTown(ctx, "main", 5))

	plot, err := svc.GetPlot(ctx, "main", 0)
	require.NoError(t, err)
	buildingType := buildingTypesByZone[plot.Zone][0]

	require.NoError(t, svc.ClaimPlot(ctx, "main", 0, "agent-1"))
	require.NoError(t, svc.StartBuild(ctx, "main", 0, "agent-1", buildingType, "Unfinished"))

	err = svc.CompleteBuild(ctx, "main", 0, "agent-1")
	assert.Equal(t, corefail.Precondition, corefail.KindOf(err))
}

func TestStartBuild_RejectsWrongZoneBuildingType(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()
	require.NoError(t, svc.CreateTown(ctx, "main", 5))

	plot, err := svc.GetPlot(ctx, "main", 0)
	require.NoError(t, err)
	wrongType := "NOT_A_REAL_BUILDING_TYPE"
	for _, z := range zoneCycle {
		if z != plot.Zone {
			wrongType = buildingTypesByZone[z][0]
			break
		}
	}

	require.NoError(t, svc.ClaimPlot(ctx, "main", 0, "agent-1"))
	err = svc.StartBuild(ctx, "main", 0, "agent-1", wrongType, "Mismatched")
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestStartBuild_RejectsNonOwner(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()
	require.NoError(t, svc.CreateTown(ctx, "main", 5))

	plot, err := svc.GetPlot(ctx, "main", 0)
	require.NoError(t, err)
	buildingType := buildingTypesByZone[plot.Zone][0]

	require.NoError(t, svc.ClaimPlot(ctx, "main", 0, "agent-1"))
	err = svc.StartBuild(ctx, "main", 0, "agent-2", buildingType, "Intruder")
	assert.Equal(t, corefail.Precondition, corefail.KindOf(err))
}

func TestGetSummary_TracksCompletionPercent(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()
	require.NoError(t, svc.CreateTown(ctx, "main", 4))

	summary, err := svc.GetSummary(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "NEW", summary.Status)
	assert.Equal(t, 0.0, summary.CompletionPct)

	require.NoError(t, svc.ClaimPlot(ctx, "main", 0, "agent-1"))
	summary, err = svc.GetSummary(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", summary.Status)
	assert.Equal(t, 1, summary.ClaimedPlots)
}
