// Command townsim runs the AI Town + Arena autonomous core: one town of
// LLM-backed agents advanced by the tick driver and the background match
// pairing / cleanup / epoch schedulers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/townforge/arena/internal/agentloop"
	"github.com/townforge/arena/internal/amm"
	"github.com/townforge/arena/internal/arena"
	"github.com/townforge/arena/internal/commands"
	"github.com/townforge/arena/internal/config"
	"github.com/townforge/arena/internal/conversation"
	"github.com/townforge/arena/internal/crew"
	"github.com/townforge/arena/internal/external"
	"github.com/townforge/arena/internal/goals"
	"github.com/townforge/arena/internal/llmport"
	"github.com/townforge/arena/internal/scheduler"
	"github.com/townforge/arena/internal/social"
	"github.com/townforge/arena/internal/store"
	"github.com/townforge/arena/internal/town"
)

const (
	defaultTownID    = "main"
	defaultNumPlots  = 60
	defaultNumAgents = 12
)

var seedArchetypes = []store.Archetype{
	store.ArchetypeShark, store.ArchetypeRock, store.ArchetypeChameleon,
	store.ArchetypeDegen, store.ArchetypeGrinder,
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("AI Town + Arena — autonomous core starting")
	cfg := config.Load()

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll("data", 0755)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	ctx := context.Background()

	if err := st.InitPool(ctx, cfg.EconomyInitReserve, cfg.EconomyInitArena, cfg.EconomyFeeBps); err != nil {
		slog.Error("failed to seed economy pool", "error", err)
		os.Exit(1)
	}

	// ── Services ──────────────────────────────────────────────────────
	townSvc := town.New(st)
	ammSvc := amm.New(st)
	feeInsuranceBps := min(max(cfg.FeeInsuranceBps, 0), 10000)
	amm.SetBudgetSplit(feeInsuranceBps, 10000-feeInsuranceBps)
	socialSvc := social.New(st)
	goalsSvc := goals.New(st)
	cmdSvc := commands.New(st)
	crewSvc := crew.New(st, cmdSvc)
	arenaSvc := arena.New(st)

	var port llmport.Port
	if anthropicPort := llmport.NewAnthropicPort(cfg.AnthropicAPIKey, 20); anthropicPort != nil {
		port = anthropicPort
		slog.Info("LLM port enabled (Anthropic)")
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set — LLM features disabled, agents fall back to canned lines")
	}
	registry := llmport.NewRegistry()
	if cfg.ModelRegistryYAMLPath != "" {
		if data, rErr := os.ReadFile(cfg.ModelRegistryYAMLPath); rErr != nil {
			slog.Warn("failed to read model registry YAML, using defaults", "path", cfg.ModelRegistryYAMLPath, "error", rErr)
		} else if lErr := registry.LoadRegistryYAML(data); lErr != nil {
			slog.Warn("failed to parse model registry YAML, using defaults", "path", cfg.ModelRegistryYAMLPath, "error", lErr)
		} else {
			slog.Info("model registry loaded from YAML", "path", cfg.ModelRegistryYAMLPath)
		}
	}
	llm := llmport.New(port, registry)

	convoSvc := conversation.New(st, socialSvc, llm)
	loop := agentloop.New(st, townSvc, ammSvc, goalsSvc, convoSvc, arenaSvc, cmdSvc, crewSvc, llm)
	if cfg.VoiceCatalogYAMLPath != "" {
		if data, rErr := os.ReadFile(cfg.VoiceCatalogYAMLPath); rErr != nil {
			slog.Warn("failed to read archetype voice catalog YAML, using defaults", "path", cfg.VoiceCatalogYAMLPath, "error", rErr)
		} else if lErr := loop.LoadVoiceCatalogYAML(data); lErr != nil {
			slog.Warn("failed to parse archetype voice catalog YAML, using defaults", "path", cfg.VoiceCatalogYAMLPath, "error", lErr)
		} else {
			slog.Info("archetype voice catalog loaded from YAML", "path", cfg.VoiceCatalogYAMLPath)
		}
	}

	// ── World bootstrap ──────────────────────────────────────────────
	plots, err := townSvc.ListPlots(ctx, defaultTownID)
	if err != nil {
		slog.Error("failed to list plots", "error", err)
		os.Exit(1)
	}
	if len(plots) == 0 {
		slog.Info("no existing town found, generating one", "town", defaultTownID, "plots", defaultNumPlots)
		if err := townSvc.CreateTown(ctx, defaultTownID, defaultNumPlots); err != nil {
			slog.Error("failed to create town", "error", err)
			os.Exit(1)
		}
	}

	agents, err := st.ListAgents(ctx, false, 0)
	if err != nil {
		slog.Error("failed to list agents", "error", err)
		os.Exit(1)
	}
	if len(agents) == 0 {
		slog.Info("no existing agents found, spawning seed population", "count", defaultNumAgents)
		agents, err = seedAgents(ctx, st, defaultNumAgents)
		if err != nil {
			slog.Error("failed to seed agents", "error", err)
			os.Exit(1)
		}
	}

	if err := crewSvc.EnsureCrews(ctx); err != nil {
		slog.Error("failed to seed crews", "error", err)
		os.Exit(1)
	}

	slog.Info("world ready", "town", defaultTownID, "agents", len(agents))

	// ── Scheduler ─────────────────────────────────────────────────────
	driver := scheduler.New(st, loop, arenaSvc, cmdSvc, crewSvc, llm, defaultTownID)

	runCtx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	// External-agent adapter is wired but its API surface (HTTP handlers
	// for bearer-token submission) is out of scope (spec §1 Non-goals).
	_ = external.New(st, loop, defaultTownID)

	fmt.Printf("\nTown %q is alive: %d agents on %d plots.\n", defaultTownID, len(agents), defaultNumPlots)
	fmt.Println("Starting scheduler... (Ctrl+C to stop)")

	driver.Run(runCtx)

	fmt.Println("Scheduler stopped.")
}

// seedAgents creates the initial system-agent population (spec §3 Agent
// "Lifecycle": "initial reserve=10000, bankroll=0 for system agents"),
// cycling through the five archetypes.
func seedAgents(ctx context.Context, st *store.Store, count int) ([]*store.Agent, error) {
	out := make([]*store.Agent, 0, count)
	for i := 0; i < count; i++ {
		archetype := seedArchetypes[i%len(seedArchetypes)]
		a := &store.Agent{
			ID:              uuid.NewString(),
			Name:            fmt.Sprintf("%s-%02d", archetype, i+1),
			APIKey:          uuid.NewString(),
			Archetype:       archetype,
			Model:           "haiku",
			Bankroll:        0,
			ReserveBalance:  10000,
			Health:          100,
			Elo:             1500,
			RiskTolerance:   0.05 + rand.Float64()*0.9,
			MaxWagerPercent: 0.05 + rand.Float64()*0.55,
			IsActive:        true,
		}
		if err := st.CreateAgent(ctx, a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
