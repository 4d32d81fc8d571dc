package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/townforge/arena/internal/corefail"
)

func getPlot(q querier, townID string, idx int) (*Plot, error) {
	var p Plot
	err := q.Get(&p, `SELECT * FROM plots WHERE town_id = ? AND plot_index = ?`, townID, idx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corefail.New(corefail.NotFound, "plot %s/%d not found", townID, idx)
	}
	if err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "get plot")
	}
	return &p, nil
}

func (s *Store) GetPlot(_ context.Context, townID string, idx int) (*Plot, error) {
	return getPlot(s.asQuerier(), townID, idx)
}
func (t *Tx) GetPlot(townID string, idx int) (*Plot, error) { return getPlot(t.q, townID, idx) }

func listPlots(q querier, townID string) ([]*Plot, error) {
	var out []*Plot
	if err := q.Select(&out, `SELECT * FROM plots WHERE town_id = ? ORDER BY plot_index`, townID); err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "list plots")
	}
	return out, nil
}

func (s *Store) ListPlots(_ context.Context, townID string) ([]*Plot, error) {
	return listPlots(s.asQuerier(), townID)
}
func (t *Tx) ListPlots(townID string) ([]*Plot, error) { return listPlots(t.q, townID) }

func createPlot(q querier, p *Plot) error {
	_, err := q.Exec(`
		INSERT INTO plots (town_id, plot_index, zone, status, quality_score)
		VALUES (?, ?, ?, ?, ?)`,
		p.TownID, p.PlotIndex, p.Zone, PlotEmpty, p.QualityScore)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "create plot")
	}
	return nil
}

func (s *Store) CreatePlot(_ context.Context, p *Plot) error { return createPlot(s.asQuerier(), p) }
func (t *Tx) CreatePlot(p *Plot) error                        { return createPlot(t.q, p) }

func updatePlot(q querier, p *Plot) error {
	_, err := q.Exec(`
		UPDATE plots SET status = ?, owner_id = ?, builder_id = ?, building_type = ?,
			building_name = ?, api_calls_used = ?, total_invested = ?, quality_score = ?
		WHERE town_id = ? AND plot_index = ?`,
		p.Status, p.OwnerID, p.BuilderID, p.BuildingType, p.BuildingName,
		p.APICallsUsed, p.TotalInvested, p.QualityScore, p.TownID, p.PlotIndex)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "update plot")
	}
	return nil
}

func (t *Tx) UpdatePlot(p *Plot) error { return updatePlot(t.q, p) }

// ClaimPlot atomically transitions an EMPTY plot to CLAIMED, failing with
// Conflict if another writer claimed it first (unique read-then-write race).
func (t *Tx) ClaimPlot(townID string, idx int, ownerID string) error {
	res, err := t.q.Exec(`
		UPDATE plots SET status = 'CLAIMED', owner_id = ?
		WHERE town_id = ? AND plot_index = ? AND status = 'EMPTY'`,
		ownerID, townID, idx)
	if err != nil {
		return corefail.Wrap(corefail.Internal, err, "claim plot")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return corefail.New(corefail.Conflict, "plot %s/%d is no longer available", townID, idx)
	}
	return nil
}
