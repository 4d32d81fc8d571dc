package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/townforge/arena/internal/corefail"
)

func getCrew(q querier, id string) (*Crew, error) {
	var c Crew
	err := q.Get(&c, `SELECT * FROM crews WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corefail.New(corefail.NotFound, "crew %s not found", id)
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get crew")
	}
	return &c, nil
}

func (s *Store) GetCrew(_ context.Context, id string) (*Crew, error) { return getCrew(s.asQuerier(), id) }
func (t *Tx) GetCrew(id string) (*Crew, error)                       { return getCrew(t.q, id) }

func listCrews(q querier) ([]*Crew, error) {
	var out []*Crew
	if err := q.Select(&out, `SELECT * FROM crews ORDER BY id`); err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "list crews")
	}
	return out, nil
}

func (s *Store) ListCrews(_ context.Context) ([]*Crew, error) { return listCrews(s.asQuerier()) }
func (t *Tx) ListCrews() ([]*Crew, error)                     { return listCrews(t.q) }

func upsertCrew(q querier, c *Crew) error {
	_, err := q.Exec(`
		INSERT INTO crews (id, name, territory, treasury, momentum, war_score, epoch_tick)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, territory = excluded.territory,
			treasury = excluded.treasury, momentum = excluded.momentum,
			war_score = excluded.war_score, epoch_tick = excluded.epoch_tick`,
		c.ID, c.Name, c.Territory, c.Treasury, c.Momentum, c.WarScore, c.EpochTick)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "upsert crew")
	}
	return nil
}

func (s *Store) UpsertCrew(_ context.Context, c *Crew) error { return upsertCrew(s.asQuerier(), c) }
func (t *Tx) UpsertCrew(c *Crew) error                       { return upsertCrew(t.q, c) }

func createCrewOrder(q querier, o *CrewOrder) error {
	_, err := q.Exec(`
		INSERT INTO crew_orders (id, crew_id, agent_id, strategy, intensity, status)
		VALUES (?, ?, ?, ?, ?, 'QUEUED')`, o.ID, o.CrewID, o.AgentID, o.Strategy, o.Intensity)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "create crew order")
	}
	return nil
}

func (s *Store) CreateCrewOrder(_ context.Context, o *CrewOrder) error { return createCrewOrder(s.asQuerier(), o) }
func (t *Tx) CreateCrewOrder(o *CrewOrder) error                       { return createCrewOrder(t.q, o) }

// PickQueuedCrewOrder returns the oldest QUEUED order for an agent, or nil
// if none is pending (spec §4.9 queueOrder / consumption by C10 step 7).
func pickQueuedCrewOrder(q querier, agentID string) (*CrewOrder, error) {
	var o CrewOrder
	err := q.Get(&o, `SELECT * FROM crew_orders WHERE agent_id = ? AND status = 'QUEUED' ORDER BY created_at ASC LIMIT 1`, agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "pick queued crew order")
	}
	return &o, nil
}

func (s *Store) PickQueuedCrewOrder(_ context.Context, agentID string) (*CrewOrder, error) {
	return pickQueuedCrewOrder(s.asQuerier(), agentID)
}
func (t *Tx) PickQueuedCrewOrder(agentID string) (*CrewOrder, error) { return pickQueuedCrewOrder(t.q, agentID) }

func setCrewOrderStatus(q querier, id string, status CommandStatus) error {
	_, err := q.Exec(`UPDATE crew_orders SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "set crew order status")
	}
	return nil
}

func (s *Store) SetCrewOrderStatus(_ context.Context, id string, status CommandStatus) error {
	return setCrewOrderStatus(s.asQuerier(), id, status)
}
func (t *Tx) SetCrewOrderStatus(id string, status CommandStatus) error { return setCrewOrderStatus(t.q, id, status) }

func insertCrewBattleEvent(q querier, e *CrewBattleEvent) error {
	_, err := q.Exec(`
		INSERT INTO crew_battle_events (epoch_tick, winner_crew_id, loser_crew_id, territory_swing, treasury_swing)
		VALUES (?, ?, ?, ?, ?)`, e.EpochTick, e.WinnerCrewID, e.LoserCrewID, e.TerritorySwing, e.TreasurySwing)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "insert crew battle event")
	}
	return nil
}

func (s *Store) InsertCrewBattleEvent(_ context.Context, e *CrewBattleEvent) error {
	return insertCrewBattleEvent(s.asQuerier(), e)
}
func (t *Tx) InsertCrewBattleEvent(e *CrewBattleEvent) error { return insertCrewBattleEvent(t.q, e) }

func insertTownEvent(q querier, e *TownEvent) error {
	_, err := q.Exec(`
		INSERT INTO town_events (town_id, tick, kind, metadata) VALUES (?, ?, ?, ?)`,
		e.TownID, e.Tick, e.Kind, e.Metadata)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "insert town event")
	}
	return nil
}

func (s *Store) InsertTownEvent(_ context.Context, e *TownEvent) error { return insertTownEvent(s.asQuerier(), e) }
func (t *Tx) InsertTownEvent(e *TownEvent) error                       { return insertTownEvent(t.q, e) }

func (s *Store) ListTownEventsSince(_ context.Context, townID string, sinceID int64, limit int) ([]*TownEvent, error) {
	var out []*TownEvent
	err := s.db.Select(&out, `
		SELECT * FROM town_events WHERE town_id = ? AND id > ? ORDER BY id LIMIT ?`,
		townID, sinceID, limit)
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "list town events")
	}
	return out, nil
}
