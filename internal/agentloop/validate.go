package agentloop

import (
	"encoding/json"

	"github.com/townforge/arena/internal/store"
)

const (
	minPlayWager  = 10
	buySkillCost  = 20
	externalInferenceCost = 1
)

type claimPlotParams struct {
	PlotIndex int `json:"plotIndex"`
}
type startBuildParams struct {
	PlotIndex    int    `json:"plotIndex"`
	BuildingType string `json:"buildingType"`
	BuildingName string `json:"buildingName"`
}
type plotIndexParams struct {
	PlotIndex int `json:"plotIndex"`
}
type swapParams struct {
	AmountIn     int64  `json:"amountIn"`
	MinAmountOut *int64 `json:"minAmountOut"`
}
type playArenaParams struct {
	GameType    store.GameType `json:"gameType"`
	WagerAmount int64          `json:"wagerAmount"`
	OpponentID  *string        `json:"opponentId"`
}
type transferParams struct {
	ToAgentID string `json:"toAgentId"`
	Amount    int64  `json:"amount"`
}
type tradeParams struct {
	TargetAgentID string `json:"targetAgentId"`
}

// validate applies the static preconditions named in spec §4.10 step 5
// against the already-fetched observation, with no further reads. It never
// mutates state — the domain operation in execute re-validates atomically,
// so a pass here is advisory, not authoritative.
func validate(obs *Observation, actionType string, params json.RawMessage) (bool, string) {
	agent := obs.Agent

	if agent.IsExternal && actionType != string(store.IntentRest) && agent.Bankroll < externalInferenceCost {
		return false, "external agent lacks bankroll for inference cost"
	}

	switch actionType {
	case string(store.IntentClaimPlot):
		var p claimPlotParams
		if err := json.Unmarshal(params, &p); err != nil {
			return false, "malformed claim_plot params"
		}
		for _, pl := range obs.AvailablePlots {
			if pl.PlotIndex == p.PlotIndex {
				return true, ""
			}
		}
		return false, "plot is not available to claim"

	case string(store.IntentStartBuild):
		var p startBuildParams
		if err := json.Unmarshal(params, &p); err != nil {
			return false, "malformed start_build params"
		}
		for _, pl := range obs.OwnPlots {
			if pl.PlotIndex == p.PlotIndex && pl.Status == store.PlotClaimed {
				return true, ""
			}
		}
		return false, "start_build requires a claimed plot owned by agent"

	case string(store.IntentDoWork):
		var p plotIndexParams
		if err := json.Unmarshal(params, &p); err != nil {
			return false, "malformed do_work params"
		}
		for _, pl := range obs.OwnPlots {
			if pl.PlotIndex == p.PlotIndex && pl.Status == store.PlotUnderConstruction {
				return true, ""
			}
		}
		return false, "do_work requires a plot the agent is building"

	case string(store.IntentCompleteBuild):
		var p plotIndexParams
		if err := json.Unmarshal(params, &p); err != nil {
			return false, "malformed complete_build params"
		}
		for _, pl := range obs.OwnPlots {
			if pl.PlotIndex == p.PlotIndex && pl.Status == store.PlotUnderConstruction {
				if pl.APICallsUsed < store.MinCallsForZone(pl.Zone) {
					return false, "plot has not accumulated enough work yet"
				}
				return true, ""
			}
		}
		return false, "complete_build requires a plot the agent is building"

	case string(store.IntentBuyArena):
		var p swapParams
		if err := json.Unmarshal(params, &p); err != nil {
			return false, "malformed buy_arena params"
		}
		if obs.Agent.ReserveBalance < p.AmountIn {
			return false, "buy_arena requires reserve >= requested amount"
		}
		return true, ""

	case string(store.IntentSellArena):
		var p swapParams
		if err := json.Unmarshal(params, &p); err != nil {
			return false, "malformed sell_arena params"
		}
		if obs.Agent.Bankroll < p.AmountIn {
			return false, "sell_arena requires bankroll >= requested amount"
		}
		return true, ""

	case string(store.IntentPlayArena):
		var p playArenaParams
		if err := json.Unmarshal(params, &p); err != nil {
			return false, "malformed play_arena params"
		}
		if agent.IsInMatch {
			return false, "play_arena requires not already in a match"
		}
		wager := p.WagerAmount
		if wager < minPlayWager {
			wager = minPlayWager
		}
		if agent.Bankroll < wager {
			return false, "play_arena requires bankroll >= wager (min 10)"
		}
		return true, ""

	case string(store.IntentTransferArena):
		var p transferParams
		if err := json.Unmarshal(params, &p); err != nil {
			return false, "malformed transfer_arena params"
		}
		if p.ToAgentID == "" || p.ToAgentID == agent.ID {
			return false, "transfer_arena requires a distinct recipient"
		}
		if agent.Bankroll < p.Amount || p.Amount <= 0 {
			return false, "transfer_arena requires sufficient bankroll"
		}
		return true, ""

	case string(store.IntentBuySkill):
		if agent.Bankroll < buySkillCost {
			return false, "buy_skill requires sufficient bankroll"
		}
		return true, ""

	case string(store.IntentRest):
		return true, ""

	case store.IntentTrade.ExpectedActionType():
		var p tradeParams
		if err := json.Unmarshal(params, &p); err != nil || p.TargetAgentID == "" {
			return false, "trade requires a target agent"
		}
		return true, ""

	case string(store.IntentCrewRaid), string(store.IntentCrewDefend), string(store.IntentCrewFarm), string(store.IntentCrewTrade):
		return true, ""

	default:
		return false, "unknown action type"
	}
}
