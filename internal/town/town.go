// Package town implements the plot lifecycle: deterministic zone/quality
// generation at town creation, and the four build operations the agent
// loop drives an agent through (claim, start build, do work, complete).
package town

import (
	"context"
	"fmt"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"
	"lukechampine.com/blake3"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

// buildingTypesByZone lists the building types StartBuild accepts in each
// zone; the per-zone minimum call counts live in store.MinCallsForZone.
var buildingTypesByZone = map[store.Zone][]string{
	store.ZoneResidential:   {"HOUSE"},
	store.ZoneCommercial:    {"SHOP"},
	store.ZoneIndustrial:    {"WORKSHOP"},
	store.ZoneEntertainment: {"PARK"},
	store.ZoneCivic:         {"HALL"},
}

var zoneCycle = []store.Zone{
	store.ZoneResidential, store.ZoneCommercial, store.ZoneIndustrial,
	store.ZoneEntertainment, store.ZoneCivic,
}

// Service wires plot generation and mutation to the Store.
type Service struct {
	store *store.Store
}

func New(s *store.Store) *Service { return &Service{store: s} }

// seedFor derives a deterministic 64-bit seed from a town id so that plot
// generation is reproducible across restarts without persisting noise
// parameters (spec §9 "Determinism").
func seedFor(townID string) int64 {
	h := blake3.Sum256([]byte("town-gen:" + townID))
	var v int64
	for i := 0; i < 8; i++ {
		v = v<<8 | int64(h[i])
	}
	if v < 0 {
		v = -v
	}
	return v
}

// CreateTown generates numPlots plots for a new town: zone assigned by a
// deterministic round-robin-with-noise-jitter, quality score taken from a
// single simplex-noise sample seeded from the town id. Emits TOWN_CREATED.
func (svc *Service) CreateTown(ctx context.Context, townID string, numPlots int) error {
	if numPlots <= 0 {
		return corefail.New(corefail.Validation, "numPlots must be positive, got %d", numPlots)
	}
	seed := seedFor(townID)
	qualityNoise := opensimplex.NewNormalized(seed)
	zoneNoise := opensimplex.NewNormalized(seed + 1)

	return svc.store.Transaction(ctx, func(tx *store.Tx) error {
		for i := 0; i < numPlots; i++ {
			x := float64(i) * 0.37
			zone := pickZone(zoneNoise, x, i)
			quality := qualityNoise.Eval2(x, float64(i)*0.11)
			plot := &store.Plot{
				TownID:    townID,
				PlotIndex: i,
				Zone:      zone,
				Status:    store.PlotEmpty,
				QualityScore: quality,
			}
			if err := tx.CreatePlot(plot); err != nil {
				return err
			}
		}
		return tx.InsertTownEvent(&store.TownEvent{
			TownID:   townID,
			Kind:     "TOWN_CREATED",
			Metadata: fmt.Sprintf(`{"numPlots":%d}`, numPlots),
		})
	})
}

// pickZone blends the fractional noise sample into the fixed five-zone
// cycle so adjacent plots rarely repeat a zone while staying deterministic.
func pickZone(n opensimplex.Noise, x float64, i int) store.Zone {
	jitter := int(n.Eval2(x, 0) * 2.49)
	idx := (i + jitter) % len(zoneCycle)
	if idx < 0 {
		idx += len(zoneCycle)
	}
	return zoneCycle[idx]
}

// ClaimPlot assigns an EMPTY plot to an agent. CAS-guarded by the Store.
func (svc *Service) ClaimPlot(ctx context.Context, townID string, plotIndex int, agentID string) error {
	return svc.store.Transaction(ctx, func(tx *store.Tx) error {
		if err := tx.ClaimPlot(townID, plotIndex, agentID); err != nil {
			return err
		}
		return tx.InsertTownEvent(&store.TownEvent{
			TownID:   townID,
			Kind:     "PLOT_CLAIMED",
			Metadata: fmt.Sprintf(`{"plotIndex":%d,"agentId":%q}`, plotIndex, agentID),
		})
	})
}

// StartBuild transitions a CLAIMED plot owned by agentID into
// UNDER_CONSTRUCTION with the given building type, validated against the
// plot's zone (spec §3 Plot invariant: UNDER_CONSTRUCTION ⇒ builderId set
// and ownerId = builderId).
func (svc *Service) StartBuild(ctx context.Context, townID string, plotIndex int, agentID, buildingType, buildingName string) error {
	return svc.store.Transaction(ctx, func(tx *store.Tx) error {
		plot, err := tx.GetPlot(townID, plotIndex)
		if err != nil {
			return err
		}
		if plot.Status != store.PlotClaimed {
			return corefail.New(corefail.Precondition, "plot %d is not CLAIMED", plotIndex)
		}
		if plot.OwnerID == nil || *plot.OwnerID != agentID {
			return corefail.New(corefail.Precondition, "agent %s does not own plot %d", agentID, plotIndex)
		}
		if !validBuildingType(plot.Zone, buildingType) {
			return corefail.New(corefail.Validation, "building type %s invalid for zone %s", buildingType, plot.Zone)
		}
		plot.Status = store.PlotUnderConstruction
		plot.BuilderID = &agentID
		plot.BuildingType = &buildingType
		plot.BuildingName = &buildingName
		plot.APICallsUsed = 0
		if err := tx.UpdatePlot(plot); err != nil {
			return err
		}
		return tx.InsertTownEvent(&store.TownEvent{
			TownID:   townID,
			Kind:     "BUILD_STARTED",
			Metadata: fmt.Sprintf(`{"plotIndex":%d,"agentId":%q,"buildingType":%q}`, plotIndex, agentID, buildingType),
		})
	})
}

func validBuildingType(zone store.Zone, buildingType string) bool {
	for _, bt := range buildingTypesByZone[zone] {
		if strings.EqualFold(bt, buildingType) {
			return true
		}
	}
	return false
}

// DoWork records one unit of inference-backed construction effort against
// an UNDER_CONSTRUCTION plot, advancing apiCallsUsed and totalInvested and
// nudging qualityScore. Does not itself complete the build — CompleteBuild
// is a distinct, explicit operation (spec §3 Plot lifecycle).
func (svc *Service) DoWork(ctx context.Context, townID string, plotIndex int, agentID string, costCents int64) error {
	return svc.store.Transaction(ctx, func(tx *store.Tx) error {
		plot, err := tx.GetPlot(townID, plotIndex)
		if err != nil {
			return err
		}
		if plot.Status != store.PlotUnderConstruction {
			return corefail.New(corefail.Precondition, "plot %d is not under construction", plotIndex)
		}
		if plot.BuilderID == nil || *plot.BuilderID != agentID {
			return corefail.New(corefail.Precondition, "agent %s is not building plot %d", agentID, plotIndex)
		}
		plot.APICallsUsed++
		plot.TotalInvested += costCents
		plot.QualityScore += 0.01
		if plot.QualityScore > 1 {
			plot.QualityScore = 1
		}
		return tx.UpdatePlot(plot)
	})
}

// CompleteBuild transitions an UNDER_CONSTRUCTION plot to BUILT once
// apiCallsUsed ≥ minCalls(zone) (spec §3 invariant), emitting
// BUILD_COMPLETED and, when it is the town's last unbuilt plot,
// TOWN_COMPLETED.
func (svc *Service) CompleteBuild(ctx context.Context, townID string, plotIndex int, agentID string) error {
	return svc.store.Transaction(ctx, func(tx *store.Tx) error {
		plot, err := tx.GetPlot(townID, plotIndex)
		if err != nil {
			return err
		}
		if plot.Status != store.PlotUnderConstruction {
			return corefail.New(corefail.Precondition, "plot %d is not under construction", plotIndex)
		}
		if plot.BuilderID == nil || *plot.BuilderID != agentID {
			return corefail.New(corefail.Precondition, "agent %s is not building plot %d", agentID, plotIndex)
		}
		minCalls := store.MinCallsForZone(plot.Zone)
		if plot.APICallsUsed < minCalls {
			return corefail.New(corefail.Precondition, "plot %d needs %d more calls", plotIndex, minCalls-plot.APICallsUsed)
		}
		plot.Status = store.PlotBuilt
		if err := tx.UpdatePlot(plot); err != nil {
			return err
		}
		if err := tx.InsertTownEvent(&store.TownEvent{
			TownID:   townID,
			Kind:     "BUILD_COMPLETED",
			Metadata: fmt.Sprintf(`{"plotIndex":%d,"agentId":%q}`, plotIndex, agentID),
		}); err != nil {
			return err
		}
		plots, err := tx.ListPlots(townID)
		if err != nil {
			return err
		}
		allBuilt := true
		for _, p := range plots {
			if p.Status != store.PlotBuilt {
				allBuilt = false
				break
			}
		}
		if allBuilt {
			return tx.InsertTownEvent(&store.TownEvent{
				TownID:   townID,
				Kind:     "TOWN_COMPLETED",
				Metadata: `{}`,
			})
		}
		return nil
	})
}

// Summary is the computed town-level view requested by observation and the
// external Observe contract: status/completionPct/builtPlots are derived
// from plot rows, never persisted redundantly.
type Summary struct {
	TownID        string
	TotalPlots    int
	BuiltPlots    int
	ClaimedPlots  int
	CompletionPct float64
	Status        string
}

func (svc *Service) GetSummary(ctx context.Context, townID string) (*Summary, error) {
	plots, err := svc.store.ListPlots(ctx, townID)
	if err != nil {
		return nil, err
	}
	s := &Summary{TownID: townID, TotalPlots: len(plots)}
	for _, p := range plots {
		if p.Status == store.PlotBuilt {
			s.BuiltPlots++
		}
		if p.Status != store.PlotEmpty {
			s.ClaimedPlots++
		}
	}
	if s.TotalPlots > 0 {
		s.CompletionPct = 100 * float64(s.BuiltPlots) / float64(s.TotalPlots)
	}
	switch {
	case s.TotalPlots > 0 && s.BuiltPlots == s.TotalPlots:
		s.Status = "COMPLETE"
	case s.ClaimedPlots > 0:
		s.Status = "IN_PROGRESS"
	default:
		s.Status = "NEW"
	}
	return s, nil
}

func (svc *Service) ListPlots(ctx context.Context, townID string) ([]*store.Plot, error) {
	return svc.store.ListPlots(ctx, townID)
}

func (svc *Service) GetPlot(ctx context.Context, townID string, plotIndex int) (*store.Plot, error) {
	return svc.store.GetPlot(ctx, townID, plotIndex)
}
