// Package goals implements the per-agent persistent short/mid/long goal
// stack: deterministic template selection, progress recomputation, and
// reward/penalty settlement on transition.
package goals

import (
	"encoding/json"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/townforge/arena/internal/store"
)

// template is one entry in the fixed per-horizon catalog.
type template struct {
	key            string
	metric         store.GoalMetric
	minTarget      int64
	targetDelta    int64
	deadlineTicks  *uint64
	rewardProfile  string
	penaltyProfile string
}

func u64(v uint64) *uint64 { return &v }

var catalog = map[store.Horizon][]template{
	store.HorizonShort: {
		{key: "claim_two_plots", metric: store.MetricClaimedOrUCTotal, minTarget: 2, targetDelta: 2, deadlineTicks: u64(50),
			rewardProfile: `{"arenaBonus":20,"healthBonus":5}`, penaltyProfile: `{"arenaPenalty":5,"healthPenalty":2}`},
		{key: "win_a_match", metric: store.MetricWinsTotal, minTarget: 1, targetDelta: 1, deadlineTicks: u64(50),
			rewardProfile: `{"arenaBonus":30,"healthBonus":0}`, penaltyProfile: `{"arenaPenalty":0,"healthPenalty":3}`},
	},
	store.HorizonMid: {
		{key: "build_residential", metric: store.MetricBuiltInZone, minTarget: 1, targetDelta: 1, deadlineTicks: u64(200),
			rewardProfile: `{"arenaBonus":60,"healthBonus":10}`, penaltyProfile: `{"arenaPenalty":10,"healthPenalty":5}`},
		{key: "grow_bankroll", metric: store.MetricBankroll, minTarget: 500, targetDelta: 300, deadlineTicks: u64(200),
			rewardProfile: `{"arenaBonus":40,"healthBonus":0}`, penaltyProfile: `{"arenaPenalty":0,"healthPenalty":0}`},
	},
	store.HorizonLong: {
		{key: "build_out_town", metric: store.MetricBuiltTotal, minTarget: 3, targetDelta: 3, deadlineTicks: nil,
			rewardProfile: `{"arenaBonus":150,"healthBonus":15}`, penaltyProfile: `{"arenaPenalty":0,"healthPenalty":0}`},
		{key: "inference_veteran", metric: store.MetricAPICallsTotal, minTarget: 40, targetDelta: 25, deadlineTicks: nil,
			rewardProfile: `{"arenaBonus":100,"healthBonus":10}`, penaltyProfile: `{"arenaPenalty":0,"healthPenalty":0}`},
	},
}

// selectTemplate deterministically picks a catalog entry for
// (townId, agentId, horizon, archetype) — spec §4.4 and §9 "Determinism".
func selectTemplate(townID, agentID string, horizon store.Horizon, archetype store.Archetype) template {
	tmpls := catalog[horizon]
	h := blake3.Sum256([]byte(fmt.Sprintf("goal:%s:%s:%s:%s", townID, agentID, horizon, archetype)))
	idx := int(h[0]) % len(tmpls)
	return tmpls[idx]
}

// Profile is the parsed shape of reward/penalty opaque JSON.
type Profile struct {
	ArenaBonus    int64 `json:"arenaBonus"`
	HealthBonus   int   `json:"healthBonus"`
	ArenaPenalty  int64 `json:"arenaPenalty"`
	HealthPenalty int   `json:"healthPenalty"`
}

func parseProfile(raw string) Profile {
	var p Profile
	_ = json.Unmarshal([]byte(raw), &p)
	return p
}

// Observation is the subset of the C10 observation goals needs to compute
// metric progress without re-querying the Store itself.
type Observation struct {
	TownID            string
	ClaimedOrUCPlots  int64
	BuiltInZoneCounts map[store.Zone]int64
	BuiltTotal        int64
	Bankroll          int64
	WinsTotal         int64
	APICallsTotal     int64
	PrimaryBuiltZone  store.Zone
}

func (o Observation) metricValue(m store.GoalMetric) int64 {
	switch m {
	case store.MetricClaimedOrUCTotal:
		return o.ClaimedOrUCPlots
	case store.MetricBuiltInZone:
		return o.BuiltInZoneCounts[o.PrimaryBuiltZone]
	case store.MetricBuiltTotal:
		return o.BuiltTotal
	case store.MetricBankroll:
		return o.Bankroll
	case store.MetricWinsTotal:
		return o.WinsTotal
	case store.MetricAPICallsTotal:
		return o.APICallsTotal
	default:
		return 0
	}
}

// Service wires goal-stack mutation to the Store.
type Service struct {
	store *store.Store
}

func New(s *store.Store) *Service { return &Service{store: s} }

// PromptLine is one row of the prompt block returned to C10 for the LLM
// request (spec §4.4 step 4).
type PromptLine struct {
	Horizon        store.Horizon
	TemplateKey    string
	Progress       int64
	Target         int64
	DeadlineTick   *uint64
	RewardProfile  string
	PenaltyProfile string
}

// RefreshResult bundles the prompt block with any reward/penalty deltas;
// RefreshGoalStack has already applied them to the agent's bankroll and
// health inside the caller's transaction.
type RefreshResult struct {
	Prompt      []PromptLine
	ArenaDelta  int64
	HealthDelta int
	Transitions []string // e.g. "SHORT:claim_two_plots:COMPLETED"
}

// RefreshGoalStack ensures all three horizons have an ACTIVE goal, recomputes
// progress for each, applies reward/penalty on transition, and returns the
// prompt block (spec §4.4).
func (svc *Service) RefreshGoalStack(tx *store.Tx, agent *store.Agent, obs Observation, currentTick uint64) (*RefreshResult, error) {
	result := &RefreshResult{}

	for _, horizon := range []store.Horizon{store.HorizonShort, store.HorizonMid, store.HorizonLong} {
		goal, err := tx.GetActiveGoal(agent.ID, horizon)
		if err != nil {
			return nil, err
		}
		if goal == nil {
			goal, err = svc.startGoal(tx, agent, horizon, obs, currentTick)
			if err != nil {
				return nil, err
			}
		}

		progress := obs.metricValue(goal.Metric)
		status := store.GoalActive
		switch {
		case progress >= goal.TargetValue:
			status = store.GoalCompleted
		case goal.DeadlineTick != nil && currentTick > *goal.DeadlineTick:
			status = store.GoalFailed
		}

		if status != store.GoalActive {
			if err := tx.UpdateGoalProgress(agent.ID, horizon, goal.StartedTick, progress, status); err != nil {
				return nil, err
			}
			result.Transitions = append(result.Transitions, fmt.Sprintf("%s:%s:%s", horizon, goal.TemplateKey, status))
			if status == store.GoalCompleted {
				p := parseProfile(goal.RewardProfile)
				result.ArenaDelta += p.ArenaBonus
				result.HealthDelta += p.HealthBonus
			} else {
				p := parseProfile(goal.PenaltyProfile)
				result.ArenaDelta -= p.ArenaPenalty
				result.HealthDelta -= p.HealthPenalty
			}
			replacement, err := svc.startGoal(tx, agent, horizon, obs, currentTick)
			if err != nil {
				return nil, err
			}
			goal = replacement
			progress = 0
		}

		result.Prompt = append(result.Prompt, PromptLine{
			Horizon: horizon, TemplateKey: goal.TemplateKey, Progress: progress,
			Target: goal.TargetValue, DeadlineTick: goal.DeadlineTick,
			RewardProfile: goal.RewardProfile, PenaltyProfile: goal.PenaltyProfile,
		})
	}

	if result.ArenaDelta != 0 {
		if err := tx.AdjustBankroll(agent.ID, result.ArenaDelta); err != nil {
			return nil, err
		}
	}
	if result.HealthDelta != 0 {
		if err := tx.AdjustHealth(agent.ID, result.HealthDelta); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// startGoal creates a fresh ACTIVE goal for (agent, horizon) from the
// deterministically selected template; baseline is read once at creation
// (spec §4.4: targetValue = max(minTarget, baseline + targetDelta)).
func (svc *Service) startGoal(tx *store.Tx, agent *store.Agent, horizon store.Horizon, obs Observation, currentTick uint64) (*store.PersistentGoal, error) {
	tmpl := selectTemplate(obs.TownID, agent.ID, horizon, agent.Archetype)
	var deadline *uint64
	if tmpl.deadlineTicks != nil {
		d := currentTick + *tmpl.deadlineTicks
		deadline = &d
	}
	baseline := obs.metricValue(tmpl.metric)
	target := tmpl.minTarget
	if adjusted := baseline + tmpl.targetDelta; adjusted > target {
		target = adjusted
	}
	goal := &store.PersistentGoal{
		AgentID: agent.ID, Horizon: horizon, TemplateKey: tmpl.key, Metric: tmpl.metric,
		TargetValue: target, StartedTick: currentTick, DeadlineTick: deadline,
		RewardProfile: tmpl.rewardProfile, PenaltyProfile: tmpl.penaltyProfile,
	}
	if err := tx.CreateGoal(goal); err != nil {
		return nil, err
	}
	return goal, nil
}
