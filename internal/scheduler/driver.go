// Package scheduler drives the autonomous background loops named in spec
// §4.11: the fixed-cadence per-agent tick driver and the match-pairing
// scheduler, plus the periodic cleanup/expiry/epoch sweeps the tick driver
// and pairing loop lean on. Grounded on the teacher's
// internal/engine.Engine tick loop (fixed-interval Run/step with OnTick
// callbacks and a Running flag toggled by Stop), generalized from the
// teacher's single in-process sim-minute callback to parallel per-agent
// goroutines with per-agent serialization.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/townforge/arena/internal/agentloop"
	"github.com/townforge/arena/internal/arena"
	"github.com/townforge/arena/internal/commands"
	"github.com/townforge/arena/internal/crew"
	"github.com/townforge/arena/internal/llmport"
	"github.com/townforge/arena/internal/store"
)

// Default cadences (spec §4.11).
const (
	DefaultTickInterval    = 20 * time.Second
	DefaultPairingInterval = 75 * time.Second
	DefaultCleanupInterval = 5 * time.Minute
	DefaultStaleMatchAge   = 30 * time.Minute

	pairingWager    = 200
	pairingMinBank  = 200
	pairingTurnWait = 300 * time.Millisecond
	pairingMaxTurns = 20
)

// Driver owns the three autonomous loops (spec §4.11 "Three autonomous
// loops"): the per-agent tick driver, the match-pairing scheduler, and the
// stale-match cleanup sweep. Queued-command expiry and crew epoch
// resolution run inside the tick driver.
type Driver struct {
	store    *store.Store
	loop     *agentloop.Service
	arenaSvc *arena.Service
	cmds     *commands.Service
	crewSvc  *crew.Service
	llm      *llmport.Client

	townID string

	TickInterval    time.Duration
	PairingInterval time.Duration
	CleanupInterval time.Duration
	StaleMatchAge   time.Duration

	tick uint64

	tickingMu sync.Mutex
	ticking   map[string]bool

	pairingBusy int32 // single-flight guard (spec §4.11 "ticks are non-overlapping")
}

// New builds a Driver wired to every C10/C7/C8/C9 service it fans out to,
// for one town.
func New(st *store.Store, loop *agentloop.Service, arenaSvc *arena.Service, cmdSvc *commands.Service, crewSvc *crew.Service, llm *llmport.Client, townID string) *Driver {
	return &Driver{
		store: st, loop: loop, arenaSvc: arenaSvc, cmds: cmdSvc, crewSvc: crewSvc, llm: llm,
		townID:          townID,
		TickInterval:    DefaultTickInterval,
		PairingInterval: DefaultPairingInterval,
		CleanupInterval: DefaultCleanupInterval,
		StaleMatchAge:   DefaultStaleMatchAge,
		ticking:         make(map[string]bool),
	}
}

// Run blocks, advancing all three loops until ctx is cancelled. Cancellation
// lets an in-flight tick finish before returning (spec §5 "it lets the
// current agent finish ... and then stops").
func (d *Driver) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); d.runTickLoop(ctx) }()
	go func() { defer wg.Done(); d.runPairingLoop(ctx) }()
	go func() { defer wg.Done(); d.runCleanupLoop(ctx) }()
	wg.Wait()
	slog.Info("scheduler stopped")
}

func (d *Driver) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(d.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick++
			d.runOneTick(ctx, d.tick)
		}
	}
}

// runOneTick fans out to every eligible agent in parallel; each agent's own
// tick is serialized against itself by the ticking set (spec §5 "the tick
// driver may process distinct agents in parallel; a given agent's tick is
// serialized against itself").
func (d *Driver) runOneTick(ctx context.Context, tick uint64) {
	agents, err := d.store.ListAgents(ctx, true, 0)
	if err != nil {
		slog.Error("tick: list agents failed", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, a := range agents {
		if !a.IsActive {
			continue
		}
		if !d.beginTick(a.ID) {
			continue
		}
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			defer d.endTick(agentID)
			if err := d.cmds.ExpireQueuedCommands(ctx, agentID, tick); err != nil {
				slog.Warn("tick: expire queued commands failed", "agent", agentID, "error", err)
			}
			res, err := d.loop.Tick(ctx, d.townID, agentID, tick)
			if err != nil {
				slog.Error("tick failed", "agent", agentID, "tick", tick, "error", err)
				return
			}
			slog.Debug("tick", "agent", agentID, "tick", tick, "action", res.Action, "success", res.Success)
		}(a.ID)
	}
	wg.Wait()

	if event, err := d.crewSvc.ResolveEpoch(ctx, tick); err != nil {
		slog.Error("epoch resolution failed", "tick", tick, "error", err)
	} else if event != nil {
		slog.Info("crew epoch resolved", "tick", tick, "winner", event.WinnerCrewID, "loser", event.LoserCrewID)
	}
}

func (d *Driver) beginTick(agentID string) bool {
	d.tickingMu.Lock()
	defer d.tickingMu.Unlock()
	if d.ticking[agentID] {
		return false
	}
	d.ticking[agentID] = true
	return true
}

func (d *Driver) endTick(agentID string) {
	d.tickingMu.Lock()
	delete(d.ticking, agentID)
	d.tickingMu.Unlock()
}

func (d *Driver) runCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(d.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.arenaSvc.CleanupStaleMatches(ctx, d.StaleMatchAge)
			if err != nil {
				slog.Error("stale match cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("cleaned up stale matches", "count", n)
			}
		}
	}
}
