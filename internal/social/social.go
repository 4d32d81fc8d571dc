// Package social implements the symmetric pairwise relationship graph:
// bounded score, interaction cooldown, and FRIEND/RIVAL status transitions.
package social

import (
	"context"
	"time"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

const (
	cooldown          = 45 * time.Second
	maxFriendsPerAgent = 2
	scoreMin          = -30
	scoreMax          = 30
	deltaMin          = -7
	deltaMax          = 7
)

// Outcome classifies the triggering interaction (spec §4.3).
type Outcome string

const (
	OutcomeNeutral Outcome = "NEUTRAL"
	OutcomeBond    Outcome = "BOND"
	OutcomeBeef    Outcome = "BEEF"
)

// Service wires relationship mutation to the Store.
type Service struct {
	store *store.Store
}

func New(s *store.Store) *Service { return &Service{store: s} }

// Result is returned by UpsertInteraction (spec §4.3 "Persist and return").
type Result struct {
	Relationship  *store.Relationship
	StatusChanged bool
	FriendCapHit  bool
}

// UpsertInteraction applies one scored interaction between a and b,
// enforcing the 45s cooldown and the score-driven status-transition rules.
func (svc *Service) UpsertInteraction(ctx context.Context, a, b string, outcome Outcome, delta int) (*Result, error) {
	var result *Result
	err := svc.store.Transaction(ctx, func(tx *store.Tx) error {
		r, err := ApplyTx(tx, a, b, outcome, delta)
		result = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyTx runs the same logic as UpsertInteraction against a caller-owned
// transaction, so callers that must combine it with other writes in one
// atomic unit (e.g. the conversation engine's tip/tax side effects) can do
// so without nesting transactions.
func ApplyTx(tx *store.Tx, a, b string, outcome Outcome, delta int) (*Result, error) {
	if a == b {
		return nil, corefail.New(corefail.Validation, "cannot interact with self")
	}
	if delta > deltaMax {
		delta = deltaMax
	}
	if delta < deltaMin {
		delta = deltaMin
	}

	rel, err := tx.GetRelationship(a, b)
	if corefail.KindOf(err) == corefail.NotFound {
		lo, hi := store.NormalizePair(a, b)
		rel = &store.Relationship{AgentA: lo, AgentB: hi, Status: store.RelNeutral}
	} else if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	if rel.Interactions > 0 && now-rel.LastInteractionAt < cooldown.Milliseconds() {
		return nil, corefail.New(corefail.Cooldown, "interaction cooldown active between %s and %s", a, b)
	}

	nextScore := clamp(rel.Score+delta, scoreMin, scoreMax)
	prevStatus := rel.Status
	friendCapHit := false

	switch {
	case rel.Status == store.RelNeutral && outcome == OutcomeBond && nextScore >= 10:
		capped, err := friendCapHitCheck(tx, a, b)
		if err != nil {
			return nil, err
		}
		if capped {
			friendCapHit = true
		} else {
			rel.Status = store.RelFriend
			rel.FriendSince = &now
		}
	case rel.Status == store.RelNeutral && outcome == OutcomeBeef && nextScore <= -10:
		rel.Status = store.RelRival
		rel.RivalSince = &now
	case rel.Status == store.RelFriend && outcome == OutcomeBeef && nextScore < 4:
		rel.Status = store.RelNeutral
		rel.FriendSince = nil
	case rel.Status == store.RelRival && outcome == OutcomeBond && nextScore > -4:
		rel.Status = store.RelNeutral
		rel.RivalSince = nil
	}

	rel.Score = nextScore
	rel.Interactions++
	rel.LastInteractionAt = now
	if err := tx.UpsertRelationship(rel); err != nil {
		return nil, err
	}
	return &Result{Relationship: rel, StatusChanged: rel.Status != prevStatus, FriendCapHit: friendCapHit}, nil
}

// friendCapHitCheck checks MAX_FRIENDS_PER_AGENT = 2 for either party before
// a NEUTRAL→FRIEND transition is allowed (spec §4.3).
func friendCapHitCheck(tx *store.Tx, a, b string) (bool, error) {
	na, err := tx.CountFriends(a)
	if err != nil {
		return false, err
	}
	if na >= maxFriendsPerAgent {
		return true, nil
	}
	nb, err := tx.CountFriends(b)
	if err != nil {
		return false, err
	}
	return nb >= maxFriendsPerAgent, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ListFriends returns the agent ids of every FRIEND-status relationship
// involving agentID.
func (svc *Service) ListFriends(ctx context.Context, agentID string) ([]string, error) {
	return svc.store.ListFriends(ctx, agentID)
}

// GetRelationship returns the pair row, or nil if the two agents have never
// interacted.
func (svc *Service) GetRelationship(ctx context.Context, a, b string) (*store.Relationship, error) {
	rel, err := svc.store.GetRelationship(ctx, a, b)
	if corefail.KindOf(err) == corefail.NotFound {
		return nil, nil
	}
	return rel, err
}
