package arena

import (
	"time"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

const backerShareBps = 3000 // 30% of payout (spec §4.7 "backerShare = floor(payout*0.3)")

// resolveMatch runs the synchronous post-completion contract: payouts, Elo,
// opponent records, and backer yield (spec §4.7 "Resolve contract"). No
// on-chain record or prediction settlement runs after the transaction
// commits: neither this function nor SubmitMove invokes a post-resolve hook.
func resolveMatch(tx *store.Tx, m *store.Match) error {
	if m.Player2ID == nil {
		// Never reached in practice (2-player matches only reach here once
		// joined), but guards against resolving a still-WAITING match.
		return corefail.New(corefail.Internal, "cannot resolve match %s with no second player", m.ID)
	}
	p1, p2 := m.Player1ID, *m.Player2ID
	rake := m.RakeAmount
	payout := m.TotalPot - rake

	if err := tx.InsertLedgerRow("cumulativeFeesArena", rake, "match rake "+m.ID); err != nil {
		return err
	}
	pool, err := tx.GetPool()
	if err != nil {
		return err
	}
	pool.CumulativeFeesArena += rake
	if err := tx.UpdatePool(pool); err != nil {
		return err
	}

	switch {
	case m.WinnerID == nil:
		return resolveDraw(tx, p1, p2, m.WagerAmount, rake)
	default:
		winner, loser := *m.WinnerID, p1
		if winner == p1 {
			loser = p2
		}
		return resolveDecisive(tx, winner, loser, payout, m.ID)
	}
}

func resolveDraw(tx *store.Tx, p1, p2 string, wagerAmount, rake int64) error {
	refund := wagerAmount - rake/2
	for _, id := range []string{p1, p2} {
		if err := tx.AdjustBankroll(id, refund); err != nil {
			return err
		}
		if err := bumpRecord(tx, id, 0, 0, 1, refund); err != nil {
			return err
		}
		if err := tx.SetMatchState(id, false, nil); err != nil {
			return err
		}
	}
	if err := tx.UpsertOpponentRecord(p1, p2, false, false, true, nowUnix()); err != nil {
		return err
	}
	return tx.UpsertOpponentRecord(p2, p1, false, false, true, nowUnix())
}

func resolveDecisive(tx *store.Tx, winner, loser string, payout int64, matchID string) error {
	winnerAgent, err := tx.GetAgent(winner)
	if err != nil {
		return err
	}
	loserAgent, err := tx.GetAgent(loser)
	if err != nil {
		return err
	}

	winnerDelta, loserDelta := eloDelta(winnerAgent.Elo, loserAgent.Elo)
	winnerAgent.Elo = applyEloFloor(winnerAgent.Elo + winnerDelta)
	loserAgent.Elo = applyEloFloor(loserAgent.Elo + loserDelta)

	winnerAgent.Bankroll += payout
	winnerAgent.TotalWon += payout
	winnerAgent.Wins++
	winnerAgent.IsInMatch = false
	winnerAgent.CurrentMatchID = nil

	loserAgent.Losses++
	loserAgent.IsInMatch = false
	loserAgent.CurrentMatchID = nil

	if err := tx.UpdateAgent(winnerAgent); err != nil {
		return err
	}
	if err := tx.UpdateAgent(loserAgent); err != nil {
		return err
	}
	if err := tx.UpsertOpponentRecord(winner, loser, true, false, false, nowUnix()); err != nil {
		return err
	}
	if err := tx.UpsertOpponentRecord(loser, winner, false, true, false, nowUnix()); err != nil {
		return err
	}
	return distributeBackerYield(tx, winner, payout)
}

// distributeBackerYield splits backerShareBps of the payout across the
// winner's active stakes proportionally to stake amount, flooring per stake
// (spec §4.7 "distribute backer yield").
func distributeBackerYield(tx *store.Tx, winner string, payout int64) error {
	stakes, err := tx.ListActiveStakes(winner)
	if err != nil {
		return err
	}
	if len(stakes) == 0 {
		return nil
	}
	backerShare := payout * backerShareBps / 10000
	var totalStaked int64
	for _, st := range stakes {
		totalStaked += st.Amount
	}
	if totalStaked == 0 {
		return nil
	}
	for _, st := range stakes {
		share := backerShare * st.Amount / totalStaked
		if share <= 0 {
			continue
		}
		if err := tx.AdjustBankroll(st.BackerID, share); err != nil {
			return err
		}
		if err := tx.CreditStakeYield(st.ID, share); err != nil {
			return err
		}
	}
	return nil
}

func nowUnix() int64 { return time.Now().UnixMilli() }

func bumpRecord(tx *store.Tx, agentID string, winDelta, lossDelta, drawDelta int, totalWonDelta int64) error {
	agent, err := tx.GetAgent(agentID)
	if err != nil {
		return err
	}
	agent.Wins += winDelta
	agent.Losses += lossDelta
	agent.Draws += drawDelta
	agent.TotalWon += totalWonDelta
	agent.IsInMatch = false
	agent.CurrentMatchID = nil
	return tx.UpdateAgent(agent)
}
