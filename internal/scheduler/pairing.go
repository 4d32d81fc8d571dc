package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/townforge/arena/internal/store"
)

// runPairingLoop implements the match-pairing scheduler (spec §4.11 "Match
// pairing"). It is single-flight: a cycle that is still draining turns from
// a prior match is never overlapped by the next ticker fire.
func (d *Driver) runPairingLoop(ctx context.Context) {
	ticker := time.NewTicker(d.PairingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !atomic.CompareAndSwapInt32(&d.pairingBusy, 0, 1) {
				continue
			}
			d.runPairingCycle(ctx)
			atomic.StoreInt32(&d.pairingBusy, 0)
		}
	}
}

// runPairingCycle finds eligible agents, pairs the first two, opens an RPS
// match, and drives it to completion (spec §4.11).
func (d *Driver) runPairingCycle(ctx context.Context) {
	all, err := d.store.ListAgents(ctx, true, 0)
	if err != nil {
		slog.Error("pairing: list agents failed", "error", err)
		return
	}

	var eligible []*store.Agent
	for _, a := range all {
		if a.IsActive && !a.IsInMatch && a.Bankroll >= pairingMinBank {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) < 2 {
		return
	}

	rand.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
	p1, p2 := eligible[0], eligible[1]

	opp := p2.ID
	m, err := d.arenaSvc.CreateMatch(ctx, p1.ID, store.GameRPS, pairingWager, &opp)
	if err != nil {
		slog.Warn("pairing: create match failed", "p1", p1.ID, "p2", p2.ID, "error", err)
		return
	}

	d.driveMatch(ctx, m.ID)
}

// driveMatch repeatedly calls playAITurn every ~300ms until the match
// completes or the safety cap is hit, at which point it cancels the match
// (spec §4.11, Failure semantics "Pairing scheduler | per-turn failure").
func (d *Driver) driveMatch(ctx context.Context, matchID string) {
	var participant string
	turns := 0
	for turns < pairingMaxTurns {
		m, err := d.store.GetMatch(ctx, matchID)
		if err != nil {
			slog.Error("pairing: get match failed", "match", matchID, "error", err)
			return
		}
		if m.Status == store.MatchCompleted || m.Status == store.MatchCancelled {
			return
		}
		participant = m.Player1ID
		if m.CurrentTurnID == nil {
			return
		}

		_, err = d.arenaSvc.PlayAITurn(ctx, d.llm, matchID, *m.CurrentTurnID)
		if err != nil {
			slog.Warn("pairing: turn failed, continuing", "match", matchID, "error", err)
		}
		turns++

		select {
		case <-ctx.Done():
			return
		case <-time.After(pairingTurnWait):
		}
	}

	if err := d.arenaSvc.CancelMatch(ctx, matchID, participant); err != nil {
		slog.Warn("pairing: cancel on turn cap exceeded failed", "match", matchID, "error", err)
	}
}
