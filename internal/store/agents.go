package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/townforge/arena/internal/corefail"
)

func getAgent(q querier, id string) (*Agent, error) {
	var a Agent
	err := q.Get(&a, `SELECT * FROM agents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corefail.New(corefail.NotFound, "agent %s not found", id)
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get agent")
	}
	return &a, nil
}

// GetAgent reads one agent outside any transaction.
func (s *Store) GetAgent(_ context.Context, id string) (*Agent, error) {
	return getAgent(s.asQuerier(), id)
}

// GetAgent reads one agent inside the current transaction.
func (t *Tx) GetAgent(id string) (*Agent, error) { return getAgent(t.q, id) }

func getAgentByName(q querier, name string) (*Agent, error) {
	var a Agent
	err := q.Get(&a, `SELECT * FROM agents WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corefail.New(corefail.NotFound, "agent %q not found", name)
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get agent by name")
	}
	return &a, nil
}

func (s *Store) GetAgentByName(_ context.Context, name string) (*Agent, error) {
	return getAgentByName(s.asQuerier(), name)
}

func getAgentByAPIKey(q querier, key string) (*Agent, error) {
	var a Agent
	err := q.Get(&a, `SELECT * FROM agents WHERE api_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corefail.New(corefail.NotFound, "no agent for api key")
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get agent by api key")
	}
	return &a, nil
}

func (s *Store) GetAgentByAPIKey(_ context.Context, key string) (*Agent, error) {
	return getAgentByAPIKey(s.asQuerier(), key)
}

// GetAgentByAccessToken looks an agent up by its opaque access token — the
// primary external-agent auth scheme (spec §4.13), with api_key kept as the
// explicitly-gated legacy fallback.
func getAgentByAccessToken(q querier, token string) (*Agent, error) {
	var a Agent
	err := q.Get(&a, `SELECT * FROM agents WHERE access_token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corefail.New(corefail.NotFound, "no agent for access token")
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get agent by access token")
	}
	return &a, nil
}

func (s *Store) GetAgentByAccessToken(_ context.Context, token string) (*Agent, error) {
	return getAgentByAccessToken(s.asQuerier(), token)
}

func listAgents(q querier, activeOnly bool, limit int) ([]*Agent, error) {
	query := `SELECT * FROM agents`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY elo DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	var out []*Agent
	if err := q.Select(&out, query); err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "list agents")
	}
	return out, nil
}

func (s *Store) ListAgents(_ context.Context, activeOnly bool, limit int) ([]*Agent, error) {
	return listAgents(s.asQuerier(), activeOnly, limit)
}
func (t *Tx) ListAgents(activeOnly bool, limit int) ([]*Agent, error) {
	return listAgents(t.q, activeOnly, limit)
}

func createAgent(q querier, a *Agent) error {
	_, err := q.Exec(`
		INSERT INTO agents (id, name, owner_wallet, api_key, access_token, archetype, model,
			bankroll, reserve_balance, health, elo, risk_tolerance, max_wager_percent,
			is_active, is_external)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.OwnerWallet, a.APIKey, a.AccessToken, a.Archetype, a.Model,
		a.Bankroll, a.ReserveBalance, a.Health, a.Elo, a.RiskTolerance, a.MaxWagerPercent,
		a.IsActive, a.IsExternal)
	if err != nil {
		if isConflict(err) {
			return corefail.Wrap(corefail.Conflict, err, "agent name, api key, or access token already exists")
		}
		return corefail.Wrap(corefail.Internal, err, "create agent")
	}
	return nil
}

func (s *Store) CreateAgent(_ context.Context, a *Agent) error { return createAgent(s.asQuerier(), a) }
func (t *Tx) CreateAgent(a *Agent) error                       { return createAgent(t.q, a) }

// UpdateAgent persists every mutable field on the row. Callers read-then-
// write inside a Transaction for anything touching more than one entity
// (spec §4.1).
func updateAgent(q querier, a *Agent) error {
	_, err := q.Exec(`
		UPDATE agents SET
			bankroll = ?, reserve_balance = ?, health = ?, elo = ?,
			wins = ?, losses = ?, draws = ?, total_won = ?, total_wagered = ?,
			is_active = ?, is_in_match = ?, current_match_id = ?,
			scratchpad = ?, last_action_type = ?, last_reasoning = ?,
			last_narrative = ?, last_target_plot = ?, last_tick_at = ?
		WHERE id = ?`,
		a.Bankroll, a.ReserveBalance, a.Health, a.Elo,
		a.Wins, a.Losses, a.Draws, a.TotalWon, a.TotalWagered,
		a.IsActive, a.IsInMatch, a.CurrentMatchID,
		a.Scratchpad, a.LastActionType, a.LastReasoning,
		a.LastNarrative, a.LastTargetPlot, a.LastTickAt,
		a.ID)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "update agent")
	}
	return nil
}

func (s *Store) UpdateAgent(_ context.Context, a *Agent) error { return updateAgent(s.asQuerier(), a) }
func (t *Tx) UpdateAgent(a *Agent) error                       { return updateAgent(t.q, a) }

// AdjustBankroll applies a signed delta atomically and enforces the
// balance non-negativity invariant (spec §8).
func adjustBankroll(q querier, agentID string, delta int64) error {
	res, err := q.Exec(`UPDATE agents SET bankroll = bankroll + ? WHERE id = ? AND bankroll + ? >= 0`, delta, agentID, delta)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "adjust bankroll")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return corefail.New(corefail.Precondition, "insufficient bankroll for agent %s", agentID)
	}
	return nil
}

func (t *Tx) AdjustBankroll(agentID string, delta int64) error {
	return adjustBankroll(t.q, agentID, delta)
}

// AdjustReserve applies a signed delta to reserveBalance with the same
// non-negativity guard.
func adjustReserve(q querier, agentID string, delta int64) error {
	res, err := q.Exec(`UPDATE agents SET reserve_balance = reserve_balance + ? WHERE id = ? AND reserve_balance + ? >= 0`, delta, agentID, delta)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "adjust reserve")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return corefail.New(corefail.Precondition, "insufficient reserve for agent %s", agentID)
	}
	return nil
}

func (t *Tx) AdjustReserve(agentID string, delta int64) error {
	return adjustReserve(t.q, agentID, delta)
}

// AdjustTotalWagered accumulates the lifetime wager total used by the
// profit identity profit = totalWon - totalWagered (spec §8).
func adjustTotalWagered(q querier, agentID string, delta int64) error {
	_, err := q.Exec(`UPDATE agents SET total_wagered = total_wagered + ? WHERE id = ?`, delta, agentID)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "adjust total wagered")
	}
	return nil
}

func (t *Tx) AdjustTotalWagered(agentID string, delta int64) error {
	return adjustTotalWagered(t.q, agentID, delta)
}

// SetMatchState updates the in-match flags transactionally (spec §3 "Match invariant").
func setMatchState(q querier, agentID string, inMatch bool, matchID *string) error {
	_, err := q.Exec(`UPDATE agents SET is_in_match = ?, current_match_id = ? WHERE id = ?`, inMatch, matchID, agentID)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "set match state")
	}
	return nil
}

func (t *Tx) SetMatchState(agentID string, inMatch bool, matchID *string) error {
	return setMatchState(t.q, agentID, inMatch, matchID)
}

// AdjustHealth applies a signed delta clamped to [0,100] (spec §3 invariant).
func adjustHealth(q querier, agentID string, delta int) error {
	var h int
	if err := q.Get(&h, `SELECT health FROM agents WHERE id = ?`, agentID); err != nil {
		return corefail.Wrap(corefail.Internal, err, "read health")
	}
	h += delta
	if h < 0 {
		h = 0
	}
	if h > 100 {
		h = 100
	}
	if _, err := q.Exec(`UPDATE agents SET health = ? WHERE id = ?`, h, agentID); err != nil {
		return corefail.Wrap(corefail.Internal, err, "adjust health")
	}
	return nil
}

func (t *Tx) AdjustHealth(agentID string, delta int) error { return adjustHealth(t.q, agentID, delta) }
