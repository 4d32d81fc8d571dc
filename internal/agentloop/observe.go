package agentloop

import (
	"context"

	"github.com/townforge/arena/internal/goals"
	"github.com/townforge/arena/internal/store"
)

// peerLimit bounds how many other agents' summaries enter the prompt
// (spec §4.10 step 1 "peer list (limited)").
const peerLimit = 8

// recentEventLimit bounds the town-event tail surfaced to the prompt.
const recentEventLimit = 10

// Observation is the immutable snapshot C10 builds once per tick and
// threads through goal refresh, intent, validate, and execute (spec §4.10
// step 1). Built under a single transaction so every field reflects the
// same instant.
type Observation struct {
	Tick           uint64
	TownID         string
	Agent          *store.Agent
	OwnPlots       []*store.Plot
	AvailablePlots []*store.Plot
	Peers          []*store.Agent
	RecentEvents   []*store.TownEvent
	Pool           *store.EconomyPool
	CommandHead    *store.AgentCommand
	CrewOrderHead  *store.CrewOrder
}

// buildObservation fetches everything step 1 needs under one transaction
// (spec §4.10 step 1). ListTownEventsSince has no Tx-scoped counterpart
// (it is a tail-scan convenience added for external pollers, not part of
// the write path any other transactional method touches), so it is read
// just outside the transaction; a town event appended concurrently between
// the two reads only means the tail is one event fresher, never stale.
func (svc *Service) buildObservation(ctx context.Context, agentID, townID string, tick uint64) (*Observation, error) {
	obs := &Observation{Tick: tick, TownID: townID}
	err := svc.store.Transaction(ctx, func(tx *store.Tx) error {
		agent, err := tx.GetAgent(agentID)
		if err != nil {
			return err
		}
		obs.Agent = agent

		plots, err := tx.ListPlots(townID)
		if err != nil {
			return err
		}
		for _, p := range plots {
			switch {
			case p.OwnerID != nil && *p.OwnerID == agentID:
				obs.OwnPlots = append(obs.OwnPlots, p)
			case p.Status == store.PlotEmpty:
				obs.AvailablePlots = append(obs.AvailablePlots, p)
			}
		}

		peers, err := tx.ListAgents(true, peerLimit+1)
		if err != nil {
			return err
		}
		for _, p := range peers {
			if p.ID != agentID {
				obs.Peers = append(obs.Peers, p)
			}
		}
		if len(obs.Peers) > peerLimit {
			obs.Peers = obs.Peers[:peerLimit]
		}

		pool, err := tx.GetPool()
		if err != nil {
			return err
		}
		obs.Pool = pool

		cmdHead, err := tx.PickHighestPriorityQueued(agentID)
		if err != nil {
			return err
		}
		obs.CommandHead = cmdHead

		crewHead, err := tx.PickQueuedCrewOrder(agentID)
		if err != nil {
			return err
		}
		obs.CrewOrderHead = crewHead
		return nil
	})
	if err != nil {
		return nil, err
	}

	// ListTownEventsSince pages forward from the oldest id; walk every page
	// and keep only the newest recentEventLimit events.
	var events []*store.TownEvent
	for sinceID := int64(0); ; {
		page, err := svc.store.ListTownEventsSince(ctx, townID, sinceID, 500)
		if err != nil {
			return nil, err
		}
		events = append(events, page...)
		if len(events) > recentEventLimit {
			events = events[len(events)-recentEventLimit:]
		}
		if len(page) < 500 {
			break
		}
		sinceID = page[len(page)-1].ID
	}
	obs.RecentEvents = events
	return obs, nil
}

// goalObservation reduces the full Observation to the metric inputs the
// goal tracker needs (spec §4.4's Observation shape), computed from the
// plots already fetched rather than re-querying.
func (o *Observation) goalObservation() goals.Observation {
	g := goals.Observation{
		TownID:            o.TownID,
		Bankroll:          o.Agent.Bankroll,
		WinsTotal:         int64(o.Agent.Wins),
		BuiltInZoneCounts: map[store.Zone]int64{},
	}
	var apiCalls int64
	var bestZone store.Zone
	var bestCount int64
	for _, p := range o.OwnPlots {
		apiCalls += int64(p.APICallsUsed)
		if p.Status == store.PlotClaimed || p.Status == store.PlotUnderConstruction {
			g.ClaimedOrUCPlots++
		}
		if p.Status == store.PlotBuilt {
			g.BuiltTotal++
			g.BuiltInZoneCounts[p.Zone]++
			if g.BuiltInZoneCounts[p.Zone] > bestCount {
				bestCount = g.BuiltInZoneCounts[p.Zone]
				bestZone = p.Zone
			}
		}
	}
	g.APICallsTotal = apiCalls
	g.PrimaryBuiltZone = bestZone
	return g
}
