// Package commands implements the operator command queue overlay: an
// out-of-band intent channel a human operator or crew order can inject
// into an agent's next tick (spec §4.8).
package commands

import (
	"context"

	"github.com/google/uuid"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

// Intent is the closed set of command intents C10 knows how to route to a
// domain operation (spec §4.8).
var validIntents = map[store.Intent]bool{
	store.IntentClaimPlot:     true,
	store.IntentStartBuild:    true,
	store.IntentDoWork:        true,
	store.IntentCompleteBuild: true,
	store.IntentBuyArena:      true,
	store.IntentSellArena:     true,
	store.IntentPlayArena:     true,
	store.IntentTransferArena: true,
	store.IntentBuySkill:      true,
	store.IntentRest:          true,
	store.IntentTrade:         true,
	store.IntentCrewRaid:      true,
	store.IntentCrewDefend:    true,
	store.IntentCrewFarm:      true,
	store.IntentCrewTrade:     true,
}

type Service struct {
	store *store.Store
}

func New(st *store.Store) *Service { return &Service{store: st} }

// CreateCommandRequest mirrors spec §4.8 createCommand's parameter set.
type CreateCommandRequest struct {
	AgentID              string
	IssuerType           string
	IssuerTelegramUserID *string
	Mode                 store.CommandMode
	Intent               store.Intent
	Params               string
	Constraints          string
	Priority             *int
	CreatedTick          uint64
	ExpiresInTicks       *uint64
	ExpiresAtTick        *uint64
}

// CreateCommand verifies the agent exists, requires a verified issuer for
// delegated modes, and defaults priority from the mode's base (spec §4.8).
func (svc *Service) CreateCommand(ctx context.Context, req CreateCommandRequest) (*store.AgentCommand, error) {
	if !validIntents[req.Intent] {
		return nil, corefail.New(corefail.Validation, "unknown intent %q", req.Intent)
	}
	if _, err := svc.store.GetAgent(ctx, req.AgentID); err != nil {
		return nil, err
	}
	if (req.Mode == store.ModeStrong || req.Mode == store.ModeOverride) && req.IssuerTelegramUserID == nil {
		return nil, corefail.New(corefail.Validation, "mode %s requires a verified issuer identity", req.Mode)
	}

	priority := store.BasePriority(req.Mode)
	if req.Priority != nil {
		priority = *req.Priority
	}
	if priority < 0 {
		priority = 0
	}
	if priority > 100 {
		priority = 100
	}

	expiresAt := req.ExpiresAtTick
	if expiresAt == nil && req.ExpiresInTicks != nil {
		v := req.CreatedTick + *req.ExpiresInTicks
		expiresAt = &v
	}

	cmd := &store.AgentCommand{
		ID: uuid.NewString(), AgentID: req.AgentID, IssuerType: req.IssuerType,
		IssuerTelegramUserID: req.IssuerTelegramUserID, Mode: req.Mode, Intent: req.Intent,
		Params: req.Params, Constraints: req.Constraints, Priority: priority,
		CreatedTick: req.CreatedTick, ExpiresAtTick: expiresAt, Status: store.CommandQueued,
	}
	if err := svc.store.CreateCommand(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// AcceptNextCommand expires stale QUEUED commands, then CAS-transitions the
// highest-priority remaining QUEUED command to ACCEPTED (spec §4.8
// acceptNextCommand). Returns nil, nil if no command is eligible.
func (svc *Service) AcceptNextCommand(ctx context.Context, agentID string, currentTick uint64) (*store.AgentCommand, error) {
	var accepted *store.AgentCommand
	err := svc.store.Transaction(ctx, func(tx *store.Tx) error {
		if err := tx.ExpireQueuedCommands(agentID, currentTick); err != nil {
			return err
		}
		next, err := tx.PickHighestPriorityQueued(agentID)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		if err := tx.CASTransition(next.ID, store.CommandQueued, store.CommandAccepted, ""); err != nil {
			return err
		}
		next.Status = store.CommandAccepted
		accepted = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// MarkExecuted transitions an ACCEPTED command to EXECUTED with an audit
// result (spec §4.8 markExecuted).
func (svc *Service) MarkExecuted(ctx context.Context, commandID, auditResult string) error {
	return svc.store.CASTransition(ctx, commandID, store.CommandAccepted, store.CommandExecuted, auditResult)
}

// MarkRejected transitions an ACCEPTED or QUEUED command to REJECTED with an
// audit result (spec §4.8 markRejected).
func (svc *Service) MarkRejected(ctx context.Context, commandID string, from store.CommandStatus, auditResult string) error {
	return svc.store.CASTransition(ctx, commandID, from, store.CommandRejected, auditResult)
}

// CancelCommand cancels a QUEUED/ACCEPTED command. When both the recorded
// issuer id and requesterTelegramUserID are set and differ, it fails with
// Precondition; there is no authority check that lets a non-issuer cancel.
func (svc *Service) CancelCommand(ctx context.Context, commandID string, requesterTelegramUserID *string, reason string) error {
	cmd, err := svc.store.GetCommand(ctx, commandID)
	if err != nil {
		return err
	}
	if cmd.Status != store.CommandQueued && cmd.Status != store.CommandAccepted {
		return corefail.New(corefail.Precondition, "command %s is not cancelable in status %s", commandID, cmd.Status)
	}
	if cmd.IssuerTelegramUserID != nil && requesterTelegramUserID != nil && *cmd.IssuerTelegramUserID != *requesterTelegramUserID {
		return corefail.New(corefail.Precondition, "requester is not the original issuer of command %s", commandID)
	}
	return svc.store.CASTransition(ctx, commandID, cmd.Status, store.CommandCancelled, reason)
}

// ExpireQueuedCommands sweeps QUEUED commands with a passed TTL for one
// agent (spec §4.8 expireQueuedCommands, used by the tick-entry sweep).
func (svc *Service) ExpireQueuedCommands(ctx context.Context, agentID string, tick uint64) error {
	return svc.store.Transaction(ctx, func(tx *store.Tx) error {
		return tx.ExpireQueuedCommands(agentID, tick)
	})
}

// CancelQueuedCommands mass-cancels an agent's QUEUED/ACCEPTED commands
// (spec §4.8 cancelQueuedCommands).
func (svc *Service) CancelQueuedCommands(ctx context.Context, agentID, reason string) error {
	return svc.store.CancelQueuedCommands(ctx, agentID, reason)
}
