package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/townforge/arena/internal/corefail"
)

// NormalizePair returns (a,b) with a < b, the spec §9 ordering convention.
func NormalizePair(x, y string) (string, string) {
	if x < y {
		return x, y
	}
	return y, x
}

func getRelationship(q querier, a, b string) (*Relationship, error) {
	lo, hi := NormalizePair(a, b)
	var r Relationship
	err := q.Get(&r, `SELECT * FROM relationships WHERE agent_a = ? AND agent_b = ?`, lo, hi)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corefail.New(corefail.NotFound, "no relationship between %s and %s", a, b)
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get relationship")
	}
	return &r, nil
}

func (s *Store) GetRelationship(_ context.Context, a, b string) (*Relationship, error) {
	return getRelationship(s.asQuerier(), a, b)
}
func (t *Tx) GetRelationship(a, b string) (*Relationship, error) { return getRelationship(t.q, a, b) }

// UpsertRelationship creates or replaces the pair row inside a transaction.
func (t *Tx) UpsertRelationship(r *Relationship) error {
	lo, hi := NormalizePair(r.AgentA, r.AgentB)
	_, err := t.q.Exec(`
		INSERT INTO relationships (agent_a, agent_b, status, score, interactions,
			last_interaction_at, friend_since, rival_since)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_a, agent_b) DO UPDATE SET
			status = excluded.status, score = excluded.score,
			interactions = excluded.interactions, last_interaction_at = excluded.last_interaction_at,
			friend_since = excluded.friend_since, rival_since = excluded.rival_since`,
		lo, hi, r.Status, r.Score, r.Interactions, r.LastInteractionAt, r.FriendSince, r.RivalSince)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "upsert relationship")
	}
	return nil
}

// CountFriends returns |{rows where status=FRIEND and agent is a party}| (spec §8 friend cap).
func countFriends(q querier, agentID string) (int, error) {
	var n int
	err := q.Get(&n, `
		SELECT COUNT(*) FROM relationships
		WHERE status = 'FRIEND' AND (agent_a = ? OR agent_b = ?)`, agentID, agentID)
	if err != nil {
		return 0, corefail.Wrap(corefail.Internal, err, "count friends")
	}
	return n, nil
}

func (s *Store) CountFriends(_ context.Context, agentID string) (int, error) {
	return countFriends(s.asQuerier(), agentID)
}
func (t *Tx) CountFriends(agentID string) (int, error) { return countFriends(t.q, agentID) }

func listFriends(q querier, agentID string) ([]string, error) {
	var a, b []string
	if err := q.Select(&a, `SELECT agent_b FROM relationships WHERE status='FRIEND' AND agent_a = ?`, agentID); err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "list friends (a)")
	}
	if err := q.Select(&b, `SELECT agent_a FROM relationships WHERE status='FRIEND' AND agent_b = ?`, agentID); err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "list friends (b)")
	}
	return append(a, b...), nil
}

func (s *Store) ListFriends(_ context.Context, agentID string) ([]string, error) {
	return listFriends(s.asQuerier(), agentID)
}
