package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/townforge/arena/internal/corefail"
)

func (t *Tx) CreateCommand(c *AgentCommand) error {
	_, err := t.q.Exec(`
		INSERT INTO agent_commands (id, agent_id, issuer_type, issuer_telegram_user_id,
			mode, intent, params, constraints, audit_meta, priority, created_tick,
			expires_at_tick, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'QUEUED')`,
		c.ID, c.AgentID, c.IssuerType, c.IssuerTelegramUserID, c.Mode, c.Intent,
		c.Params, c.Constraints, c.AuditMeta, c.Priority, c.CreatedTick, c.ExpiresAtTick)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "create command")
	}
	return nil
}

func (s *Store) CreateCommand(ctx context.Context, c *AgentCommand) error {
	return s.Transaction(ctx, func(tx *Tx) error { return tx.CreateCommand(c) })
}

func (s *Store) GetCommand(_ context.Context, id string) (*AgentCommand, error) {
	var c AgentCommand
	err := s.db.Get(&c, `SELECT * FROM agent_commands WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corefail.New(corefail.NotFound, "command %s not found", id)
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get command")
	}
	return &c, nil
}

// ExpireQueuedCommands marks every QUEUED command past its TTL as EXPIRED
// (spec §4.8 "First, mark every QUEUED command with expiresAtTick < currentTick").
func (t *Tx) ExpireQueuedCommands(agentID string, currentTick uint64) error {
	_, err := t.q.Exec(`
		UPDATE agent_commands SET status = 'EXPIRED'
		WHERE agent_id = ? AND status = 'QUEUED' AND expires_at_tick IS NOT NULL AND expires_at_tick < ?`,
		agentID, currentTick)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "expire queued commands")
	}
	return nil
}

// PickHighestPriorityQueued returns the highest-priority QUEUED command for
// an agent, tiebreaker createdAt ascending (spec §4.8).
func (t *Tx) PickHighestPriorityQueued(agentID string) (*AgentCommand, error) {
	var c AgentCommand
	err := t.q.Get(&c, `
		SELECT * FROM agent_commands
		WHERE agent_id = ? AND status = 'QUEUED'
		ORDER BY priority DESC, created_at ASC LIMIT 1`, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "pick queued command")
	}
	return &c, nil
}

// CASTransition moves a command from `from` to `to`, failing with Conflict
// if another writer already moved it (spec §4.8 "CAS-transition").
func (t *Tx) CASTransition(id string, from, to CommandStatus, auditResult string) error {
	res, err := t.q.Exec(`
		UPDATE agent_commands SET status = ?, audit_result = COALESCE(NULLIF(?, ''), audit_result)
		WHERE id = ? AND status = ?`, to, auditResult, id, from)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "cas transition")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return corefail.New(corefail.Conflict, "command %s not in expected status %s", id, from)
	}
	return nil
}

func (s *Store) CASTransition(ctx context.Context, id string, from, to CommandStatus, auditResult string) error {
	return s.Transaction(ctx, func(tx *Tx) error { return tx.CASTransition(id, from, to, auditResult) })
}

// CancelQueuedCommands mass-cancels QUEUED/ACCEPTED commands for an agent.
func (s *Store) CancelQueuedCommands(_ context.Context, agentID, reason string) error {
	_, err := s.db.Exec(`
		UPDATE agent_commands SET status = 'CANCELLED', audit_result = ?
		WHERE agent_id = ? AND status IN ('QUEUED','ACCEPTED')`, reason, agentID)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "cancel queued commands")
	}
	return nil
}
