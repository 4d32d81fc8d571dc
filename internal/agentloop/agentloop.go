// Package agentloop implements the central per-agent tick pipeline: observe,
// refresh goals, accept an operator command, decide an intent, validate it,
// execute it, then record memory and emit one town event (spec §4.10).
package agentloop

import (
	"context"
	"encoding/json"
	"time"

	"github.com/townforge/arena/internal/amm"
	"github.com/townforge/arena/internal/arena"
	"github.com/townforge/arena/internal/commands"
	"github.com/townforge/arena/internal/conversation"
	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/crew"
	"github.com/townforge/arena/internal/goals"
	"github.com/townforge/arena/internal/llmport"
	"github.com/townforge/arena/internal/store"
	"github.com/townforge/arena/internal/town"
)

// Default 50/25/15/10 budget split a do_work contribution is routed through
// (spec §4.2 "Budget accounting: claim/build contributions ... split
// 50/25/15/10"). Town claim contributions have no inference cost to split
// from (claim_plot is free), so only do_work — the only town operation with
// a per-call inference cost attached — feeds this split.
const (
	townBudgetBps      = 5000
	opsBudgetBps       = 2500
	pvpBudgetBps       = 1500
	insuranceBudgetBps = 1000
)

// scratchpadLines bounds the agent's rolling memory (spec §4.10 step 7
// "keep last 20 trimmed lines").
const scratchpadLines = 20

// Service wires every domain package C10 can route an action to.
type Service struct {
	store        *store.Store
	town         *town.Service
	amm          *amm.Service
	goals        *goals.Service
	conversation *conversation.Service
	arena        *arena.Service
	commands     *commands.Service
	crew         *crew.Service
	llm          *llmport.Client
	voices       *VoiceCatalog
}

func New(
	st *store.Store, townSvc *town.Service, ammSvc *amm.Service,
	goalsSvc *goals.Service, convoSvc *conversation.Service, arenaSvc *arena.Service,
	cmdSvc *commands.Service, crewSvc *crew.Service, llm *llmport.Client,
) *Service {
	return &Service{
		store: st, town: townSvc, amm: ammSvc, goals: goalsSvc,
		conversation: convoSvc, arena: arenaSvc, commands: cmdSvc, crew: crewSvc, llm: llm,
		voices: NewVoiceCatalog(),
	}
}

// LoadVoiceCatalogYAML overlays archetype personality lines from an
// operator-supplied YAML file onto the built-in defaults (spec §4.10 step 3).
func (svc *Service) LoadVoiceCatalogYAML(data []byte) error {
	return svc.voices.LoadYAML(data)
}

// TickResult is what the tick driver records per agent per tick (spec
// §4.10 step 8).
type TickResult struct {
	Tick            uint64
	AgentID         string
	Action          string
	Success         bool
	Narrative       string
	CommandReceipt  *string
	GoalTransitions []string
}

// decision struct for emitted metadata.
type decisionMeta struct {
	ChosenAction      string `json:"chosenAction"`
	ExecutedAction    string `json:"executedAction"`
	ExecutedReasoning string `json:"executedReasoning"`
	Success           bool   `json:"success"`
}

// Tick runs one full iteration of the pipeline for a single agent. The
// driver (C11) is responsible for never calling two ticks for the same
// agent concurrently (spec §4.10 "the driver guarantees per-agent
// serialization").
func (svc *Service) Tick(ctx context.Context, townID, agentID string, tick uint64) (*TickResult, error) {
	// Step 1: Observe.
	obs, err := svc.buildObservation(ctx, agentID, townID, tick)
	if err != nil {
		return nil, err
	}

	// Step 2: Goal refresh.
	var refresh *goals.RefreshResult
	err = svc.store.Transaction(ctx, func(tx *store.Tx) error {
		r, rErr := svc.goals.RefreshGoalStack(tx, obs.Agent, obs.goalObservation(), tick)
		refresh = r
		return rErr
	})
	if err != nil {
		return nil, err
	}
	if refresh.ArenaDelta != 0 || refresh.HealthDelta != 0 {
		obs.Agent, err = svc.store.GetAgent(ctx, agentID)
		if err != nil {
			return nil, err
		}
	}

	// Step 3: Command pickup.
	accepted, err := svc.commands.AcceptNextCommand(ctx, agentID, tick)
	if err != nil {
		return nil, err
	}

	// Step 4: Intent.
	decision, cost := svc.decideIntent(ctx, obs, refresh.Prompt, accepted)

	result, err := svc.finishDecision(ctx, townID, agentID, tick, obs, decision.ActionType, decision.Reasoning, decision.Params, int64(cost.CostCents))
	if err != nil {
		return nil, err
	}
	result.GoalTransitions = refresh.Transitions

	if accepted != nil {
		auditResult := result.Narrative
		if result.Success {
			err = svc.commands.MarkExecuted(ctx, accepted.ID, auditResult)
		} else {
			err = svc.commands.MarkRejected(ctx, accepted.ID, store.CommandAccepted, auditResult)
		}
		if err != nil {
			return nil, err
		}
		r := accepted.ID
		result.CommandReceipt = &r
	}

	return result, nil
}

// finishDecision runs steps 5-7 of the pipeline (validate, execute,
// memory/emit) given an already-chosen action (spec §4.10 steps 5-7; also
// the "identical" shared tail §4.13 requires for external-agent actions).
func (svc *Service) finishDecision(ctx context.Context, townID, agentID string, tick uint64, obs *Observation, actionType, reasoning string, params json.RawMessage, costCents int64) (*TickResult, error) {
	// Step 5: Validate.
	ok, reason := validate(obs, actionType, params)

	result := &TickResult{Tick: tick, AgentID: agentID, Action: actionType}
	executedAction := actionType
	executedReasoning := reasoning
	success := false
	narrative := ""
	var targetPlot *int

	// Step 6: Execute.
	if !ok {
		executedAction = "blocked"
		executedReasoning = reason
		narrative = obs.Agent.Name + " is blocked: " + reason
	} else {
		execRes, execErr := svc.execute(ctx, obs, costCents, actionType, params)
		if execErr != nil {
			executedAction = "rejected"
			executedReasoning = string(corefail.KindOf(execErr)) + ": " + execErr.Error()
			narrative = obs.Agent.Name + " attempted " + actionType + " and failed"
		} else {
			success = true
			narrative = execRes.Narrative
			targetPlot = execRes.TargetPlot
			if obs.Agent.IsExternal && actionType != string(store.IntentRest) {
				_ = svc.store.Transaction(ctx, func(tx *store.Tx) error {
					return tx.AdjustBankroll(agentID, -externalInferenceCost)
				})
			}
		}
	}

	// Step 7: Memory/emit.
	err := svc.store.Transaction(ctx, func(tx *store.Tx) error {
		agent, aErr := tx.GetAgent(agentID)
		if aErr != nil {
			return aErr
		}
		agent.Scratchpad = appendScratchpad(agent.Scratchpad, narrative)
		agent.LastActionType = executedAction
		agent.LastReasoning = executedReasoning
		agent.LastNarrative = narrative
		agent.LastTargetPlot = targetPlot
		agent.LastTickAt = time.Now().UnixMilli()
		if uErr := tx.UpdateAgent(agent); uErr != nil {
			return uErr
		}

		meta, mErr := json.Marshal(map[string]any{
			"decision": decisionMeta{
				ChosenAction: actionType, ExecutedAction: executedAction,
				ExecutedReasoning: executedReasoning, Success: success,
			},
		})
		if mErr != nil {
			return corefail.Wrap(corefail.Internal, mErr, "marshal decision metadata")
		}
		if eErr := tx.InsertTownEvent(&store.TownEvent{
			TownID: townID, Tick: tick, Kind: "AGENT_DECISION", Metadata: string(meta),
		}); eErr != nil {
			return eErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Success = success
	result.Narrative = narrative
	return result, nil
}

// appendScratchpad keeps the trailing scratchpadLines lines (spec §4.10
// step 7).
func appendScratchpad(existing, line string) string {
	if line == "" {
		return existing
	}
	lines := splitNonEmpty(existing)
	lines = append(lines, line)
	if len(lines) > scratchpadLines {
		lines = lines[len(lines)-scratchpadLines:]
	}
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
