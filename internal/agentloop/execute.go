package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/townforge/arena/internal/amm"
	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

// executeResult carries what step 7 (memory/emit) needs back from whichever
// domain operation step 6 routed to (spec §4.10 step 6).
type executeResult struct {
	Narrative  string
	TargetPlot *int
}

// execute routes a validated action to its owning domain operation, each of
// which is atomic on its own (spec §4.10 step 6 "Each operation is atomic
// in C1"). Returns the error from the underlying operation unchanged so the
// caller can distinguish a corefail.Precondition rejection from a hard
// failure.
func (svc *Service) execute(ctx context.Context, obs *Observation, costCents int64, actionType string, params json.RawMessage) (executeResult, error) {
	agent := obs.Agent

	switch actionType {
	case string(store.IntentClaimPlot):
		var p claimPlotParams
		_ = json.Unmarshal(params, &p)
		if err := svc.town.ClaimPlot(ctx, obs.TownID, p.PlotIndex, agent.ID); err != nil {
			return executeResult{}, err
		}
		idx := p.PlotIndex
		return executeResult{Narrative: fmt.Sprintf("%s claims plot %d", agent.Name, p.PlotIndex), TargetPlot: &idx}, nil

	case string(store.IntentStartBuild):
		var p startBuildParams
		_ = json.Unmarshal(params, &p)
		if err := svc.town.StartBuild(ctx, obs.TownID, p.PlotIndex, agent.ID, p.BuildingType, p.BuildingName); err != nil {
			return executeResult{}, err
		}
		idx := p.PlotIndex
		return executeResult{Narrative: fmt.Sprintf("%s breaks ground on plot %d", agent.Name, p.PlotIndex), TargetPlot: &idx}, nil

	case string(store.IntentDoWork):
		var p plotIndexParams
		_ = json.Unmarshal(params, &p)
		if err := svc.town.DoWork(ctx, obs.TownID, p.PlotIndex, agent.ID, costCents); err != nil {
			return executeResult{}, err
		}
		// A zero inference cost (fallback, external, or sub-cent call) has nothing to split.
		if costCents > 0 {
			if err := svc.amm.ContributeBudgets(ctx, costCents, townBudgetBps, opsBudgetBps, pvpBudgetBps, insuranceBudgetBps, "do_work contribution"); err != nil {
				return executeResult{}, err
			}
		}
		idx := p.PlotIndex
		return executeResult{Narrative: fmt.Sprintf("%s puts in work on plot %d", agent.Name, p.PlotIndex), TargetPlot: &idx}, nil

	case string(store.IntentCompleteBuild):
		var p plotIndexParams
		_ = json.Unmarshal(params, &p)
		if err := svc.town.CompleteBuild(ctx, obs.TownID, p.PlotIndex, agent.ID); err != nil {
			return executeResult{}, err
		}
		idx := p.PlotIndex
		return executeResult{Narrative: fmt.Sprintf("%s completes the build on plot %d", agent.Name, p.PlotIndex), TargetPlot: &idx}, nil

	case string(store.IntentBuyArena):
		var p swapParams
		_ = json.Unmarshal(params, &p)
		q, err := svc.amm.Swap(ctx, agent.ID, amm.SideBuyArena, p.AmountIn, p.MinAmountOut)
		if err != nil {
			return executeResult{}, err
		}
		return executeResult{Narrative: fmt.Sprintf("%s buys %d ARENA", agent.Name, q.AmountOut)}, nil

	case string(store.IntentSellArena):
		var p swapParams
		_ = json.Unmarshal(params, &p)
		q, err := svc.amm.Swap(ctx, agent.ID, amm.SideSellArena, p.AmountIn, p.MinAmountOut)
		if err != nil {
			return executeResult{}, err
		}
		return executeResult{Narrative: fmt.Sprintf("%s sells %d ARENA for %d reserve", agent.Name, p.AmountIn, q.AmountOut)}, nil

	case string(store.IntentPlayArena):
		var p playArenaParams
		_ = json.Unmarshal(params, &p)
		wager := p.WagerAmount
		if wager < minPlayWager {
			wager = minPlayWager
		}
		gameType := p.GameType
		if gameType == "" {
			gameType = store.GameRPS
		}
		m, err := svc.arena.CreateMatch(ctx, agent.ID, gameType, wager, p.OpponentID)
		if err != nil {
			return executeResult{}, err
		}
		return executeResult{Narrative: fmt.Sprintf("%s opens a %s match wagering %d", agent.Name, gameType, m.WagerAmount)}, nil

	case string(store.IntentTransferArena):
		var p transferParams
		_ = json.Unmarshal(params, &p)
		err := svc.store.Transaction(ctx, func(tx *store.Tx) error {
			if err := tx.AdjustBankroll(agent.ID, -p.Amount); err != nil {
				return err
			}
			return tx.AdjustBankroll(p.ToAgentID, p.Amount)
		})
		if err != nil {
			return executeResult{}, err
		}
		return executeResult{Narrative: fmt.Sprintf("%s transfers %d ARENA to %s", agent.Name, p.Amount, p.ToAgentID)}, nil

	case string(store.IntentBuySkill):
		err := svc.store.Transaction(ctx, func(tx *store.Tx) error {
			if err := tx.AdjustBankroll(agent.ID, -buySkillCost); err != nil {
				return err
			}
			return tx.AdjustHealth(agent.ID, 10)
		})
		if err != nil {
			return executeResult{}, err
		}
		return executeResult{Narrative: fmt.Sprintf("%s trains a new skill", agent.Name)}, nil

	case string(store.IntentRest):
		if err := svc.store.Transaction(ctx, func(tx *store.Tx) error {
			return tx.AdjustHealth(agent.ID, 5)
		}); err != nil {
			return executeResult{}, err
		}
		return executeResult{Narrative: fmt.Sprintf("%s rests", agent.Name)}, nil

	case store.IntentTrade.ExpectedActionType():
		var p tradeParams
		_ = json.Unmarshal(params, &p)
		res, err := svc.conversation.RunConversation(ctx, obs.TownID, agent.ID, p.TargetAgentID, time.Now().Unix())
		if err != nil {
			return executeResult{}, err
		}
		return executeResult{Narrative: fmt.Sprintf("%s trades words with %s (%s)", agent.Name, p.TargetAgentID, res.Eval.Outcome)}, nil

	case string(store.IntentCrewRaid), string(store.IntentCrewDefend), string(store.IntentCrewFarm), string(store.IntentCrewTrade):
		if err := svc.crew.RecordOrderExecution(ctx, agent.ID, obs.Tick); err != nil {
			return executeResult{}, err
		}
		return executeResult{Narrative: fmt.Sprintf("%s rallies their crew (%s)", agent.Name, actionType)}, nil

	default:
		return executeResult{}, corefail.New(corefail.Validation, "unroutable action type %q", actionType)
	}
}
