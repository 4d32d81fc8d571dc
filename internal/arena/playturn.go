package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/townforge/arena/internal/llmport"
	"github.com/townforge/arena/internal/matchengine"
	"github.com/townforge/arena/internal/store"
)

// llmAction is the structured response shape the LLM port returns for one
// in-match decision (spec §4.7 playAITurn).
type llmAction struct {
	ActionType string          `json:"actionType"`
	Params     json.RawMessage `json:"params"`
	Reasoning  string          `json:"reasoning"`
}

type moveParams struct {
	Amount int64           `json:"amount"`
	Data   json.RawMessage `json:"data"`
}

// PlayAITurn builds the LLM request for agentID's move in matchID, applies
// the archetype action bias, normalizes illegal moves, and submits the
// resulting action (spec §4.7 playAITurn).
func (svc *Service) PlayAITurn(ctx context.Context, llm *llmport.Client, matchID, agentID string) (*store.Match, error) {
	m, err := svc.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	eng, err := matchengine.Get(m.GameType)
	if err != nil {
		return nil, err
	}
	agent, err := svc.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	oppID := otherPlayer(m, agentID)
	record, err := svc.store.GetOpponentRecord(ctx, agentID, oppID)
	if err != nil {
		return nil, err
	}
	view, err := eng.PlayerView(m.GameState, agentID)
	if err != nil {
		return nil, err
	}
	valid, err := eng.GetValidActions(m.GameState, agentID)
	if err != nil {
		return nil, err
	}

	messages := []llmport.Message{
		{Role: "system", Content: archetypeSystemPrompt(agent.Archetype)},
		{Role: "user", Content: fmt.Sprintf(
			"Match state:\n%s\n\nYour valid actions: %s\n\nHead-to-head vs this opponent: %d wins, %d losses, %d draws.\n\nRespond with JSON: {\"actionType\":..,\"params\":{\"amount\":..},\"reasoning\":\"<=500 chars\"}",
			view, strings.Join(valid, ", "), record.Wins, record.Losses, record.Draws,
		)},
	}

	raw, cost, _, err := llm.StructuredCall(ctx, agent.Model, messages, 0.7, string(agent.Archetype))
	if err != nil {
		return nil, err
	}

	var decision llmAction
	if jErr := json.Unmarshal([]byte(raw), &decision); jErr != nil {
		decision = llmAction{ActionType: valid[0], Reasoning: "fallback: unparseable response"}
	}
	var p moveParams
	_ = json.Unmarshal(decision.Params, &p)

	action := matchengine.Action{Type: decision.ActionType, Amount: p.Amount, Data: p.Data}
	action = applyArchetypeBias(ctx, svc.store, agent.Archetype, action, valid, m, oppID)
	action = normalizeIllegal(action, valid)

	return svc.SubmitMove(ctx, matchID, agentID, action, decision.Reasoning, int64(cost.CostCents), cost.LatencyMs)
}

func otherPlayer(m *store.Match, agentID string) string {
	if m.Player2ID == nil {
		return ""
	}
	if m.Player1ID == agentID {
		return *m.Player2ID
	}
	return m.Player1ID
}

func archetypeSystemPrompt(a store.Archetype) string {
	switch a {
	case store.ArchetypeShark:
		return "You are a SHARK: aggressive, confident, presses every edge. Favor raises and high-variance plays."
	case store.ArchetypeRock:
		return "You are a ROCK: conservative, risk-averse, folds marginal spots rather than gambling."
	case store.ArchetypeChameleon:
		return "You are a CHAMELEON: adaptive, mirrors whatever the opponent has been doing."
	case store.ArchetypeDegen:
		return "You are a DEGEN: impulsive, loves going all-in, chases variance."
	case store.ArchetypeGrinder:
		return "You are a GRINDER: disciplined, value-oriented, sizes bets to the pot rather than swinging wide."
	default:
		return "You are a balanced player weighing pot odds and position."
	}
}

// applyArchetypeBias perturbs the LLM's raw decision per archetype (spec
// §4.7 playAITurn bias list). Only fires for POKER, since the other engines
// don't have a check/raise/fold vocabulary for these biases to act on.
func applyArchetypeBias(ctx context.Context, st *store.Store, a store.Archetype, action matchengine.Action, valid []string, m *store.Match, oppID string) matchengine.Action {
	if m.GameType != store.GamePoker {
		return action
	}
	switch a {
	case store.ArchetypeShark:
		if action.Type == "check" && rand.Float64() < 0.40 && containsAction(valid, "raise") {
			action.Type = "raise"
		}
	case store.ArchetypeRock:
		if action.Type == "raise" && rand.Float64() < 0.30 && containsAction(valid, "fold") {
			action.Type = "fold"
		}
	case store.ArchetypeDegen:
		if rand.Float64() < 0.15 && containsAction(valid, "all-in") {
			action.Type = "all-in"
		}
	case store.ArchetypeGrinder:
		if action.Type == "raise" {
			// snap raise size to 60-75% pot via the Amount field; the
			// orchestrator's pot figure isn't visible here, so this biases
			// the raw requested amount rather than an absolute pot fraction.
			action.Amount = action.Amount * 65 / 100
			if action.Amount <= 0 {
				action.Amount = 1
			}
		}
	case store.ArchetypeChameleon:
		if opp := lastOpponentAction(ctx, st, m.ID, oppID); opp != "" {
			switch {
			case isAggressiveAction(opp) && containsAction(valid, "raise"):
				action.Type = "raise"
			case opp == "fold" && containsAction(valid, "fold"):
				action.Type = "fold"
			}
		}
	}
	return action
}

// lastOpponentAction returns the action type of oppID's most recent move in
// matchID, or "" if the opponent hasn't moved yet this match (spec §4.7
// "CHAMELEON mirrors last opponent aggression").
func lastOpponentAction(ctx context.Context, st *store.Store, matchID, oppID string) string {
	if oppID == "" {
		return ""
	}
	moves, err := st.ListMoves(ctx, matchID)
	if err != nil {
		return ""
	}
	for i := len(moves) - 1; i >= 0; i-- {
		if moves[i].AgentID != oppID {
			continue
		}
		var tagged struct {
			Action string `json:"action"`
		}
		_ = json.Unmarshal([]byte(moves[i].Action), &tagged)
		return tagged.Action
	}
	return ""
}

// isAggressiveAction reports whether a POKER action type counts as
// aggression for the CHAMELEON mirroring bias (spec §4.7).
func isAggressiveAction(actionType string) bool {
	return actionType == "raise" || actionType == "all-in" || actionType == "bet"
}

// normalizeIllegal substitutes the first legal action when the biased or
// raw decision isn't in the engine's valid set, so a move is always safe to
// submit (spec §4.7 "normalize illegal POKER actions to a safe legal action").
func normalizeIllegal(action matchengine.Action, valid []string) matchengine.Action {
	if containsAction(valid, action.Type) || len(valid) == 0 {
		return action
	}
	action.Type = valid[0]
	return action
}
