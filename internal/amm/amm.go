// Package amm implements the off-chain constant-product market between the
// reserve asset and the ARENA token, plus its fee-budget accounting.
package amm

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

// Side selects which asset flows in on a swap.
type Side string

const (
	SideBuyArena  Side = "BUY_ARENA"
	SideSellArena Side = "SELL_ARENA"
)

// Quote is the pure-function result of pricing a swap against a pool
// snapshot, with no side effects.
type Quote struct {
	AmountOut   int64
	Fee         int64
	PriceBefore float64
	PriceAfter  float64
}

// Service wires the pool singleton to the Store.
type Service struct {
	store *store.Store
}

func New(s *store.Store) *Service { return &Service{store: s} }

// quote is the shared pricing function used by both the read-only Quote
// operation and swap's transactional re-read (spec §4.2).
func quote(pool *store.EconomyPool, side Side, amountIn int64) (*Quote, error) {
	if amountIn <= 0 {
		return nil, corefail.New(corefail.Validation, "amountIn must be positive")
	}
	R, A := pool.ReserveBalance, pool.ArenaBalance
	if R <= 0 || A <= 0 {
		return nil, corefail.New(corefail.External, "pool unavailable")
	}
	fee := amountIn * int64(pool.FeeBps) / 10000
	inAfter := amountIn - fee
	priceBefore := float64(R) / float64(A)

	var amountOut int64
	var priceAfter float64
	switch side {
	case SideBuyArena:
		amountOut = A * inAfter / (R + inAfter)
		priceAfter = float64(R+inAfter) / float64(A-amountOut)
	case SideSellArena:
		amountOut = R * inAfter / (A + inAfter)
		priceAfter = float64(R-amountOut) / float64(A+inAfter)
	default:
		return nil, corefail.New(corefail.Validation, "unknown side %q", side)
	}
	return &Quote{AmountOut: amountOut, Fee: fee, PriceBefore: priceBefore, PriceAfter: priceAfter}, nil
}

// Quote prices a hypothetical swap against the current pool state without
// mutating anything.
func (svc *Service) Quote(ctx context.Context, side Side, amountIn int64) (*Quote, error) {
	pool, err := svc.store.GetPool(ctx)
	if err != nil {
		return nil, err
	}
	return quote(pool, side, amountIn)
}

// Swap executes a transactional reserve↔token exchange for agentID,
// enforcing minAmountOut when set (spec §4.2 operation "swap").
func (svc *Service) Swap(ctx context.Context, agentID string, side Side, amountIn int64, minAmountOut *int64) (*Quote, error) {
	var result *Quote
	err := svc.store.Transaction(ctx, func(tx *store.Tx) error {
		pool, err := tx.GetPool()
		if err != nil {
			return err
		}
		q, err := quote(pool, side, amountIn)
		if err != nil {
			return err
		}
		if minAmountOut != nil && q.AmountOut < *minAmountOut {
			return corefail.New(corefail.Validation, "slippage: got %d, wanted at least %d", q.AmountOut, *minAmountOut)
		}

		switch side {
		case SideBuyArena:
			if err := tx.AdjustReserve(agentID, -amountIn); err != nil {
				return corefail.Wrap(corefail.Precondition, err, "insufficient reserve")
			}
			if err := tx.AdjustBankroll(agentID, q.AmountOut); err != nil {
				return err
			}
			pool.ReserveBalance += amountIn - q.Fee
			pool.ArenaBalance -= q.AmountOut
		case SideSellArena:
			if err := tx.AdjustBankroll(agentID, -amountIn); err != nil {
				return corefail.Wrap(corefail.Precondition, err, "insufficient bankroll")
			}
			if err := tx.AdjustReserve(agentID, q.AmountOut); err != nil {
				return err
			}
			pool.ArenaBalance += amountIn - q.Fee
			pool.ReserveBalance -= q.AmountOut
		}

		pool.CumulativeFeesArena += q.Fee
		insuranceCut, opsCut := splitArenaFeeToBudgets(q.Fee, insuranceBps, opsBps)
		pool.BudgetInsurance += insuranceCut
		pool.BudgetOps += opsCut

		if err := tx.UpdatePool(pool); err != nil {
			return err
		}
		if err := tx.InsertSwap(&store.EconomySwap{
			AgentID: agentID, Side: string(side), AmountIn: amountIn,
			AmountOut: q.AmountOut, Fee: q.Fee,
			PriceBefore: q.PriceBefore, PriceAfter: q.PriceAfter,
		}); err != nil {
			return err
		}
		if err := tx.InsertLedgerRow("insurance", insuranceCut, fmt.Sprintf("swap fee from %s", agentID)); err != nil {
			return err
		}
		if err := tx.InsertLedgerRow("ops", opsCut, fmt.Sprintf("swap fee from %s", agentID)); err != nil {
			return err
		}
		result = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// splitArenaFeeToBudgets routes a swap fee to {insurance, ops} only, per
// spec §9 open-question resolution: other budgets are credited elsewhere
// (town claim/build contributions), and this split's bps are configured
// independently of those.
func splitArenaFeeToBudgets(fee int64, insuranceBps, opsBps int) (insurance, ops int64) {
	insurance = fee * int64(insuranceBps) / 10000
	ops = fee - insurance
	return
}

// Default insurance/ops split for swap fees; overridable via SetBudgetSplit.
var insuranceBps, opsBps = 5000, 5000

// SetBudgetSplit configures the swap-fee insurance/ops split (bps, must sum
// to 10000); called once at startup from config.
func SetBudgetSplit(insurance, ops int) {
	insuranceBps, opsBps = insurance, ops
}

// ContributeBudgets splits a town claim/build contribution across
// town/ops/pvp/insurance using the four bps values the caller passes. Its
// only caller, the agent loop's do_work branch, passes fixed 50/25/15/10
// constants; the Claim*/Build* bps values in config are not read.
func (svc *Service) ContributeBudgets(ctx context.Context, amount int64, townBps, opsBps, pvpBps, insuranceBps int, reason string) error {
	if amount <= 0 {
		return corefail.New(corefail.Validation, "contribution amount must be positive")
	}
	return svc.store.Transaction(ctx, func(tx *store.Tx) error {
		pool, err := tx.GetPool()
		if err != nil {
			return err
		}
		townCut := amount * int64(townBps) / 10000
		opsCut := amount * int64(opsBps) / 10000
		pvpCut := amount * int64(pvpBps) / 10000
		insuranceCut := amount - townCut - opsCut - pvpCut

		pool.ReserveBalance += townCut
		pool.BudgetOps += opsCut
		pool.BudgetPvp += pvpCut
		pool.BudgetInsurance += insuranceCut
		if err := tx.UpdatePool(pool); err != nil {
			return err
		}
		for bucket, delta := range map[string]int64{
			"town": townCut, "ops": opsCut, "pvp": pvpCut, "insurance": insuranceCut,
		} {
			if err := tx.InsertLedgerRow(bucket, delta, reason); err != nil {
				return err
			}
		}
		return nil
	})
}

// AuditReport is the result of the economy-audit operation (spec §8
// scenario 6): confirms budgets stay non-negative and tracks drift from a
// caller-supplied baseline k value.
type AuditReport struct {
	Reserve             int64
	Arena               int64
	K                    int64
	DriftSinceBaseline  int64
	BudgetsNonNegative  bool
	FormattedReserve    string
	FormattedArena      string
}

// Audit runs the NON_NEGATIVE_POOL_BUDGETS check and reports drift in the
// constant-product invariant k = R·A relative to baselineK.
func (svc *Service) Audit(ctx context.Context, baselineK int64) (*AuditReport, error) {
	pool, err := svc.store.GetPool(ctx)
	if err != nil {
		return nil, err
	}
	k := pool.ReserveBalance * pool.ArenaBalance
	nonNegative := pool.BudgetOps >= 0 && pool.BudgetPvp >= 0 && pool.BudgetRescue >= 0 && pool.BudgetInsurance >= 0
	return &AuditReport{
		Reserve:            pool.ReserveBalance,
		Arena:              pool.ArenaBalance,
		K:                  k,
		DriftSinceBaseline: k - baselineK,
		BudgetsNonNegative: nonNegative,
		FormattedReserve:   humanize.Comma(pool.ReserveBalance),
		FormattedArena:     humanize.Comma(pool.ArenaBalance),
	}, nil
}
