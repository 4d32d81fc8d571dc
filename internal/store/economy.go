package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/townforge/arena/internal/corefail"
)

func getPool(q querier) (*EconomyPool, error) {
	var p EconomyPool
	err := q.Get(&p, `SELECT * FROM economy_pool WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corefail.New(corefail.NotFound, "economy pool not initialized")
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get economy pool")
	}
	return &p, nil
}

func (s *Store) GetPool(_ context.Context) (*EconomyPool, error) { return getPool(s.asQuerier()) }
func (t *Tx) GetPool() (*EconomyPool, error)                     { return getPool(t.q) }

// InitPool seeds the singleton pool row if absent (idempotent).
func (s *Store) InitPool(_ context.Context, reserve, arena int64, feeBps int) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO economy_pool (id, reserve_balance, arena_balance, fee_bps)
		VALUES (1, ?, ?, ?)`, reserve, arena, feeBps)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "init economy pool")
	}
	return nil
}

// UpdatePool persists the whole mutable row (called inside Transaction by amm.swap).
func (t *Tx) UpdatePool(p *EconomyPool) error {
	_, err := t.q.Exec(`
		UPDATE economy_pool SET reserve_balance = ?, arena_balance = ?,
			budget_ops = ?, budget_pvp = ?, budget_rescue = ?, budget_insurance = ?,
			cumulative_fees_arena = ?
		WHERE id = 1`,
		p.ReserveBalance, p.ArenaBalance, p.BudgetOps, p.BudgetPvp,
		p.BudgetRescue, p.BudgetInsurance, p.CumulativeFeesArena)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "update economy pool")
	}
	return nil
}

func (t *Tx) InsertSwap(sw *EconomySwap) error {
	_, err := t.q.Exec(`
		INSERT INTO economy_swaps (agent_id, side, amount_in, amount_out, fee, price_before, price_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sw.AgentID, sw.Side, sw.AmountIn, sw.AmountOut, sw.Fee, sw.PriceBefore, sw.PriceAfter)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "insert swap")
	}
	return nil
}

func (t *Tx) InsertLedgerRow(bucket string, delta int64, reason string) error {
	_, err := t.q.Exec(`INSERT INTO economy_ledger (bucket, delta, reason) VALUES (?, ?, ?)`, bucket, delta, reason)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "insert ledger row")
	}
	return nil
}

// SumLedger returns the running total credited to a bucket in the ledger.
// amm.Service.Audit does not call it; the audit reads the pool row.
func (s *Store) SumLedger(_ context.Context, bucket string) (int64, error) {
	var total sql.NullInt64
	if err := s.db.Get(&total, `SELECT SUM(delta) FROM economy_ledger WHERE bucket = ?`, bucket); err != nil {
		return 0, corefail.Wrap(corefail.Internal, err, "sum ledger")
	}
	return total.Int64, nil
}

func (s *Store) CreateStake(_ context.Context, backerID, agentID string, amount int64) error {
	_, err := s.db.Exec(`
		INSERT INTO agent_stakes (backer_id, agent_id, amount, is_active) VALUES (?, ?, ?, 1)`,
		backerID, agentID, amount)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "create stake")
	}
	return nil
}

func listActiveStakes(q querier, agentID string) ([]*AgentStake, error) {
	var out []*AgentStake
	err := q.Select(&out, `SELECT * FROM agent_stakes WHERE agent_id = ? AND is_active = 1`, agentID)
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "list active stakes")
	}
	return out, nil
}

func (t *Tx) ListActiveStakes(agentID string) ([]*AgentStake, error) { return listActiveStakes(t.q, agentID) }

func (t *Tx) CreditStakeYield(stakeID int64, amount int64) error {
	_, err := t.q.Exec(`UPDATE agent_stakes SET total_yield_earned = total_yield_earned + ? WHERE id = ?`, amount, stakeID)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "credit stake yield")
	}
	return nil
}
