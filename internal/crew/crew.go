// Package crew implements the crew-orders overlay: deterministic crew
// assignment by a hash of the agent id (the archetype is not an input),
// strategic orders that surface as agent commands,
// and periodic epoch battle resolution between crews (spec §4.9).
package crew

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/townforge/arena/internal/commands"
	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

// crewRoster is the fixed three-crew pool every active agent is partitioned
// across (spec §4.9 "exactly one of three crews").
var crewRoster = []string{"RAIDERS", "WARDENS", "MERCHANTS"}

const (
	epochTicks        = 12
	warScoreDecay     = 0.55
	treasuryMaxSwing  = 180
	treasurySwingFrac = 0.08
)

type Service struct {
	store    *store.Store
	commands *commands.Service
}

func New(st *store.Store, cmdSvc *commands.Service) *Service {
	return &Service{store: st, commands: cmdSvc}
}

// AssignCrew deterministically hashes an agent id into one of the three
// crews (spec §4.9 "each active agent is deterministically assigned").
func AssignCrew(agentID string) string {
	h := blake3.Sum256([]byte(agentID))
	idx := int(h[0]) % len(crewRoster)
	return crewRoster[idx]
}

// EnsureCrews seeds the three-crew roster if absent (idempotent).
func (svc *Service) EnsureCrews(ctx context.Context) error {
	for _, name := range crewRoster {
		existing, err := svc.store.GetCrew(ctx, name)
		if err != nil && corefail.KindOf(err) != corefail.NotFound {
			return err
		}
		if existing != nil {
			continue
		}
		if err := svc.store.UpsertCrew(ctx, &store.Crew{ID: name, Name: name}); err != nil {
			return err
		}
	}
	return nil
}

// QueueOrder inserts a QUEUED CrewOrder plus a matching AgentCommand so the
// agent loop's command-pickup step can surface it (spec §4.9 queueOrder).
func (svc *Service) QueueOrder(ctx context.Context, agentID string, strategy store.CrewStrategy, intensity int, createdTick uint64) (*store.CrewOrder, error) {
	if intensity < 1 || intensity > 3 {
		return nil, corefail.New(corefail.Validation, "intensity must be 1..3, got %d", intensity)
	}
	crewID := AssignCrew(agentID)
	order := &store.CrewOrder{
		ID: uuid.NewString(), CrewID: crewID, AgentID: agentID,
		Strategy: strategy, Intensity: intensity, Status: store.CommandQueued,
	}
	if err := svc.store.CreateCrewOrder(ctx, order); err != nil {
		return nil, err
	}
	intent, err := intentForStrategy(strategy)
	if err != nil {
		return nil, err
	}
	_, err = svc.commands.CreateCommand(ctx, commands.CreateCommandRequest{
		AgentID: agentID, IssuerType: "CREW", Mode: store.ModeSuggest,
		Intent: intent, Params: fmt.Sprintf(`{"strategy":%q,"intensity":%d}`, strategy, intensity),
		CreatedTick: createdTick,
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func intentForStrategy(s store.CrewStrategy) (store.Intent, error) {
	switch s {
	case store.StrategyRaid:
		return store.IntentCrewRaid, nil
	case store.StrategyDefend:
		return store.IntentCrewDefend, nil
	case store.StrategyFarm:
		return store.IntentCrewFarm, nil
	case store.StrategyTrade:
		return store.IntentCrewTrade, nil
	default:
		return "", corefail.New(corefail.Validation, "unknown crew strategy %q", s)
	}
}

// MarkOrderExecuted flips an agent's oldest QUEUED crew order to EXECUTED.
// The agent loop does not call it; its crew_* branch goes through
// RecordOrderExecution instead.
func (svc *Service) MarkOrderExecuted(ctx context.Context, agentID string) error {
	order, err := svc.store.PickQueuedCrewOrder(ctx, agentID)
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}
	return svc.store.SetCrewOrderStatus(ctx, order.ID, store.CommandExecuted)
}

// warScorePerIntensity is how much an executed crew_{raid,defend,farm,trade}
// action contributes to the agent's crew's warScore, scaled by the order's
// intensity (spec §4.9 does not specify the accrual rate — the epoch decay
// and swing formulas are the only warScore mechanics given, so this fills
// that gap deterministically rather than leaving warScore static).
const warScorePerIntensity = 5.0

// RecordOrderExecution credits the executing agent's crew with warScore
// proportional to intensity (default 1 when no queued order informs the
// multiplier) and flags the agent's queued order consumed, if any.
func (svc *Service) RecordOrderExecution(ctx context.Context, agentID string, tick uint64) error {
	crewID := AssignCrew(agentID)
	order, err := svc.store.PickQueuedCrewOrder(ctx, agentID)
	if err != nil {
		return err
	}
	intensity := 1
	if order != nil {
		intensity = order.Intensity
		if err := svc.store.SetCrewOrderStatus(ctx, order.ID, store.CommandExecuted); err != nil {
			return err
		}
	}
	crew, err := svc.store.GetCrew(ctx, crewID)
	if err != nil {
		return err
	}
	crew.WarScore += warScorePerIntensity * float64(intensity)
	crew.EpochTick = tick
	return svc.store.UpsertCrew(ctx, crew)
}

// ResolveEpoch runs the every-Nth-tick crew battle (spec §4.9): the highest
// warScore crew beats the lowest, territory/treasury swing from loser to
// winner, all warScores decay, one CrewBattleEvent is emitted. No-ops
// outside an epoch boundary.
func (svc *Service) ResolveEpoch(ctx context.Context, tick uint64) (*store.CrewBattleEvent, error) {
	if tick == 0 || tick%epochTicks != 0 {
		return nil, nil
	}
	crews, err := svc.store.ListCrews(ctx)
	if err != nil {
		return nil, err
	}
	if len(crews) < 2 {
		return nil, nil
	}
	sort.Slice(crews, func(i, j int) bool { return crews[i].WarScore > crews[j].WarScore })
	winner, loser := crews[0], crews[len(crews)-1]

	scoreGap := winner.WarScore - loser.WarScore
	territorySwing := clampInt(int(scoreGap/10), 1, 4)
	treasurySwing := minI64(int64(float64(loser.Treasury)*treasurySwingFrac), loser.Treasury)
	treasurySwing = minI64(treasurySwing, treasuryMaxSwing)

	winner.Territory += territorySwing
	loser.Territory -= territorySwing
	winner.Treasury += treasurySwing
	loser.Treasury -= treasurySwing

	for _, c := range crews {
		c.WarScore *= warScoreDecay
		if err := svc.store.UpsertCrew(ctx, c); err != nil {
			return nil, err
		}
	}

	event := &store.CrewBattleEvent{
		EpochTick: tick, WinnerCrewID: winner.ID, LoserCrewID: loser.ID,
		TerritorySwing: territorySwing, TreasurySwing: treasurySwing,
	}
	if err := svc.store.InsertCrewBattleEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
