package store

import (
	"database/sql"
	"errors"

	"github.com/townforge/arena/internal/corefail"
)

// GetActiveGoal returns the ACTIVE goal for (agent, horizon), or nil.
func (t *Tx) GetActiveGoal(agentID string, horizon Horizon) (*PersistentGoal, error) {
	var g PersistentGoal
	err := t.q.Get(&g, `
		SELECT * FROM persistent_goals
		WHERE agent_id = ? AND horizon = ? AND status = 'ACTIVE'
		ORDER BY started_tick DESC LIMIT 1`, agentID, horizon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get active goal")
	}
	return &g, nil
}

func (t *Tx) CreateGoal(g *PersistentGoal) error {
	_, err := t.q.Exec(`
		INSERT INTO persistent_goals (agent_id, horizon, template_key, metric,
			target_value, progress_value, started_tick, deadline_tick, status,
			reward_profile, penalty_profile)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, 'ACTIVE', ?, ?)`,
		g.AgentID, g.Horizon, g.TemplateKey, g.Metric, g.TargetValue,
		g.StartedTick, g.DeadlineTick, g.RewardProfile, g.PenaltyProfile)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "create goal")
	}
	return nil
}

// UpdateGoalProgress sets progress and optionally transitions to a terminal
// status; terminal goals never transition again (spec §3 invariant).
func (t *Tx) UpdateGoalProgress(agentID string, horizon Horizon, startedTick uint64, progress int64, status GoalStatus) error {
	_, err := t.q.Exec(`
		UPDATE persistent_goals SET progress_value = ?, status = ?
		WHERE agent_id = ? AND horizon = ? AND started_tick = ? AND status = 'ACTIVE'`,
		progress, status, agentID, horizon, startedTick)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "update goal progress")
	}
	return nil
}

func (t *Tx) ListGoals(agentID string) ([]*PersistentGoal, error) {
	var out []*PersistentGoal
	err := t.q.Select(&out, `
		SELECT * FROM persistent_goals WHERE agent_id = ? AND status = 'ACTIVE'
		ORDER BY horizon`, agentID)
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "list goals")
	}
	return out, nil
}
