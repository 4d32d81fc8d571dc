package agentloop

import (
	"context"
	"encoding/json"
)

// SubmitExternalAction runs the execution path an external agent's action
// shares with C10: build a fresh observation, then validate/execute/
// memory-emit exactly as steps 5-7 of the tick pipeline (spec §4.13 "The
// execution path for an external agent's action is identical to C10 steps
// 5-7"). The external caller supplies actionType and reasoning directly
// instead of going through an LLM call.
func (svc *Service) SubmitExternalAction(ctx context.Context, townID, agentID string, tick uint64, actionType string, params json.RawMessage, reasoning string) (*TickResult, error) {
	obs, err := svc.buildObservation(ctx, agentID, townID, tick)
	if err != nil {
		return nil, err
	}
	if len(reasoning) > maxReasoningChars {
		reasoning = reasoning[:maxReasoningChars]
	}
	return svc.finishDecision(ctx, townID, agentID, tick, obs, actionType, reasoning, params, 0)
}
