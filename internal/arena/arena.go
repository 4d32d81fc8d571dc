// Package arena is the uniform match lifecycle orchestrator around the
// engines in internal/matchengine (spec §4.7).
package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/matchengine"
	"github.com/townforge/arena/internal/store"
)

const minWager = 10

// rakeBps is the fraction of totalPot taken as rake on match completion
// (spec §3 Match "rakeAmount = floor(2*wager*0.05)").
const rakeBps = 500

func rakeFor(totalPot int64) int64 { return totalPot * rakeBps / 10000 }

type Service struct {
	store *store.Store
	locks *matchLocks
}

func New(st *store.Store) *Service {
	return &Service{store: st, locks: newMatchLocks()}
}

// CreateMatch debits the creator's wager and opens a WAITING match, or an
// ACTIVE one if opponentId is supplied up front (spec §4.7 createMatch).
func (svc *Service) CreateMatch(ctx context.Context, agentID string, gameType store.GameType, wagerAmount int64, opponentID *string) (*store.Match, error) {
	if wagerAmount < minWager {
		return nil, corefail.New(corefail.Validation, "wagerAmount must be >= %d", minWager)
	}
	if _, err := matchengine.Get(gameType); err != nil {
		return nil, err
	}

	var match *store.Match
	err := svc.store.Transaction(ctx, func(tx *store.Tx) error {
		creator, err := tx.GetAgent(agentID)
		if err != nil {
			return err
		}
		if creator.IsInMatch {
			return corefail.New(corefail.Precondition, "agent %s is already in a match", agentID)
		}
		if creator.Bankroll < wagerAmount {
			return corefail.New(corefail.Precondition, "agent %s has insufficient bankroll", agentID)
		}

		m := &store.Match{
			ID:          uuid.NewString(),
			GameType:    gameType,
			Player1ID:   agentID,
			WagerAmount: wagerAmount,
			TotalPot:    wagerAmount,
			Status:      store.MatchWaiting,
		}

		if opponentID != nil {
			opp, oErr := tx.GetAgent(*opponentID)
			if oErr != nil || opp.IsInMatch || opp.Bankroll < wagerAmount {
				// Opponent invalid: roll back the creator's debit entirely by
				// returning before any mutation (spec §4.7 "fully roll back").
				return corefail.New(corefail.Precondition, "opponent %s is not eligible to join", *opponentID)
			}
			if err := tx.AdjustBankroll(*opponentID, -wagerAmount); err != nil {
				return err
			}
			if err := tx.AdjustTotalWagered(*opponentID, wagerAmount); err != nil {
				return err
			}
			if err := tx.SetMatchState(*opponentID, true, &m.ID); err != nil {
				return err
			}
			m.Player2ID = opponentID
			m.TotalPot = wagerAmount * 2
			m.RakeAmount = rakeFor(m.TotalPot)
			m.Status = store.MatchActive
			state, firstTurn, iErr := matchengine.Registry[gameType].Init(agentID, *opponentID)
			if iErr != nil {
				return iErr
			}
			m.GameState = state
			m.CurrentTurnID = &firstTurn
		}

		if err := tx.AdjustBankroll(agentID, -wagerAmount); err != nil {
			return err
		}
		if err := tx.AdjustTotalWagered(agentID, wagerAmount); err != nil {
			return err
		}
		if err := tx.SetMatchState(agentID, true, &m.ID); err != nil {
			return err
		}
		if err := tx.CreateMatch(m); err != nil {
			return err
		}
		match = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// JoinMatch moves a WAITING match to ACTIVE, debiting the joiner's wager and
// initializing engine state (spec §4.7 joinMatch).
func (svc *Service) JoinMatch(ctx context.Context, matchID, agentID string) (*store.Match, error) {
	var match *store.Match
	err := svc.locks.withLock(matchID, func() error {
		return svc.store.Transaction(ctx, func(tx *store.Tx) error {
			m, err := tx.GetMatch(matchID)
			if err != nil {
				return err
			}
			if m.Status != store.MatchWaiting {
				return corefail.New(corefail.Precondition, "match %s is not WAITING", matchID)
			}
			if m.Player1ID == agentID {
				return corefail.New(corefail.Validation, "creator may not self-join")
			}
			joiner, err := tx.GetAgent(agentID)
			if err != nil {
				return err
			}
			if joiner.IsInMatch {
				return corefail.New(corefail.Precondition, "agent %s is already in a match", agentID)
			}
			if joiner.Bankroll < m.WagerAmount {
				return corefail.New(corefail.Precondition, "agent %s has insufficient bankroll", agentID)
			}
			if err := tx.AdjustBankroll(agentID, -m.WagerAmount); err != nil {
				return err
			}
			if err := tx.AdjustTotalWagered(agentID, m.WagerAmount); err != nil {
				return err
			}
			if err := tx.SetMatchState(agentID, true, &m.ID); err != nil {
				return err
			}

			state, firstTurn, err := matchengine.Registry[m.GameType].Init(m.Player1ID, agentID)
			if err != nil {
				return err
			}
			m.Player2ID = &agentID
			m.TotalPot = m.WagerAmount * 2
			m.RakeAmount = rakeFor(m.TotalPot)
			m.Status = store.MatchActive
			m.GameState = state
			m.CurrentTurnID = &firstTurn
			if err := tx.UpdateMatch(m); err != nil {
				return err
			}
			match = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// GetMatchState returns the match filtered by the viewer's information
// policy (spec §4.7 getMatchState).
func (svc *Service) GetMatchState(ctx context.Context, matchID string, viewerID *string) (string, error) {
	m, err := svc.store.GetMatch(ctx, matchID)
	if err != nil {
		return "", err
	}
	eng, err := matchengine.Get(m.GameType)
	if err != nil {
		return "", err
	}
	if m.Status == store.MatchCompleted || m.Status == store.MatchCancelled {
		return m.GameState, nil
	}
	if viewerID != nil && (m.Player1ID == *viewerID || (m.Player2ID != nil && *m.Player2ID == *viewerID)) {
		return eng.PlayerView(m.GameState, *viewerID)
	}
	return eng.SpectatorView(m.GameState)
}

// SubmitMove validates and applies one move under the match's lock, then
// runs the resolve contract if the move completed the game (spec §4.7
// submitMove).
func (svc *Service) SubmitMove(ctx context.Context, matchID, agentID string, action matchengine.Action, reasoning string, costCents, latencyMs int64) (*store.Match, error) {
	var result *store.Match
	err := svc.locks.withLock(matchID, func() error {
		return svc.store.Transaction(ctx, func(tx *store.Tx) error {
			m, err := tx.GetMatch(matchID)
			if err != nil {
				return err
			}
			if m.Status != store.MatchActive {
				return corefail.New(corefail.Precondition, "match %s is not ACTIVE", matchID)
			}
			if m.CurrentTurnID == nil || *m.CurrentTurnID != agentID {
				return corefail.New(corefail.Precondition, "it is not %s's turn", agentID)
			}
			eng, err := matchengine.Get(m.GameType)
			if err != nil {
				return err
			}
			valid, err := eng.GetValidActions(m.GameState, agentID)
			if err != nil {
				return err
			}
			if !containsAction(valid, action.Type) {
				return corefail.New(corefail.Validation, "action %q is not valid for agent %s", action.Type, agentID)
			}
			before := m.GameState
			next, err := eng.ProcessAction(m.GameState, agentID, action)
			if err != nil {
				return err
			}
			m.GameState = next
			m.TurnNumber++

			if err := tx.InsertMove(&store.Move{
				MatchID: matchID, TurnNumber: m.TurnNumber, AgentID: agentID,
				Action: marshalAction(action), Reasoning: reasoning,
				CostCents: costCents, LatencyMs: latencyMs, GameStateBefore: []byte(before),
			}); err != nil {
				return err
			}

			done, err := eng.IsGameComplete(m.GameState)
			if err != nil {
				return err
			}
			if done {
				winner, wErr := eng.GetWinner(m.GameState)
				if wErr != nil {
					return wErr
				}
				now := time.Now()
				m.Status = store.MatchCompleted
				m.WinnerID = winner
				m.CompletedAt = &now
				m.CurrentTurnID = nil
				if err := tx.UpdateMatch(m); err != nil {
					return err
				}
				if err := resolveMatch(tx, m); err != nil {
					return err
				}
			} else {
				turn, tErr := eng.GetCurrentTurn(m.GameState)
				if tErr != nil {
					return tErr
				}
				m.CurrentTurnID = turn
				if err := tx.UpdateMatch(m); err != nil {
					return err
				}
			}
			result = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func containsAction(valid []string, actionType string) bool {
	for _, v := range valid {
		if v == actionType {
			return true
		}
	}
	return false
}

func marshalAction(a matchengine.Action) string {
	b, err := json.Marshal(a)
	if err != nil {
		return `{"action":"` + a.Type + `"}`
	}
	return string(b)
}

// CancelMatch refunds both wagers and clears participation on a non-terminal
// match; only a participant may cancel (spec §4.7 cancelMatch).
func (svc *Service) CancelMatch(ctx context.Context, matchID, agentID string) error {
	return svc.locks.withLock(matchID, func() error {
		return svc.store.Transaction(ctx, func(tx *store.Tx) error {
			m, err := tx.GetMatch(matchID)
			if err != nil {
				return err
			}
			if m.Status == store.MatchCompleted || m.Status == store.MatchCancelled {
				return corefail.New(corefail.Precondition, "match %s is already terminal", matchID)
			}
			if m.Player1ID != agentID && (m.Player2ID == nil || *m.Player2ID != agentID) {
				return corefail.New(corefail.Precondition, "agent %s is not a participant in match %s", agentID, matchID)
			}
			return cancelAndRefund(tx, m)
		})
	})
}

func cancelAndRefund(tx *store.Tx, m *store.Match) error {
	if err := tx.AdjustBankroll(m.Player1ID, m.WagerAmount); err != nil {
		return err
	}
	if err := tx.SetMatchState(m.Player1ID, false, nil); err != nil {
		return err
	}
	if m.Player2ID != nil {
		if err := tx.AdjustBankroll(*m.Player2ID, m.WagerAmount); err != nil {
			return err
		}
		if err := tx.SetMatchState(*m.Player2ID, false, nil); err != nil {
			return err
		}
	}
	m.Status = store.MatchCancelled
	m.CurrentTurnID = nil
	return tx.UpdateMatch(m)
}

// CleanupStaleMatches cancels and refunds any ACTIVE/WAITING match older
// than maxAge (spec §4.7 cleanupStaleMatches, default 30m).
func (svc *Service) CleanupStaleMatches(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := svc.store.ListStaleMatches(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range stale {
		id := m.ID
		cErr := svc.locks.withLock(id, func() error {
			return svc.store.Transaction(ctx, func(tx *store.Tx) error {
				fresh, err := tx.GetMatch(id)
				if err != nil {
					return err
				}
				if fresh.Status != store.MatchActive && fresh.Status != store.MatchWaiting {
					return nil
				}
				return cancelAndRefund(tx, fresh)
			})
		})
		if cErr != nil {
			return n, fmt.Errorf("cleanup match %s: %w", id, cErr)
		}
		n++
	}
	svc.locks.evict(func(matchID string) bool {
		m, err := svc.store.GetMatch(ctx, matchID)
		return err == nil && m.Status == store.MatchActive
	})
	return n, nil
}
