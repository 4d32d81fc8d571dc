// Command townctl is the operator's read-only inspection CLI: a
// leaderboard of agents, a crew war-score standings table, and an economy
// pool audit, each rendered with tablewriter the way polybot's
// internal/adapters/notify.Console renders its opportunity scan table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/townforge/arena/internal/amm"
	"github.com/townforge/arena/internal/config"
	"github.com/townforge/arena/internal/store"
	"github.com/townforge/arena/internal/town"
)

func main() {
	report := flag.String("report", "leaderboard", "report to print: leaderboard|crews|economy|town")
	townID := flag.String("town", "main", "town id")
	limit := flag.Int("limit", 20, "max rows for leaderboard")
	flag.Parse()

	cfg := config.Load()
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	switch *report {
	case "leaderboard":
		printLeaderboard(ctx, st, *limit)
	case "crews":
		printCrews(ctx, st)
	case "economy":
		printEconomy(ctx, st)
	case "town":
		printTown(ctx, st, *townID)
	default:
		fmt.Fprintf(os.Stderr, "unknown report %q (want leaderboard|crews|economy|town)\n", *report)
		os.Exit(1)
	}
}

// printLeaderboard ranks active agents by elo (spec §3 Agent "elo").
func printLeaderboard(ctx context.Context, st *store.Store, limit int) {
	agents, err := st.ListAgents(ctx, true, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list agents: %v\n", err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Name", "Archetype", "Elo", "W-L-D", "Bankroll", "Reserve", "Health", "Last action")
	for i, a := range agents {
		table.Append(
			fmt.Sprintf("%d", i+1),
			a.Name,
			string(a.Archetype),
			fmt.Sprintf("%d", a.Elo),
			fmt.Sprintf("%d-%d-%d", a.Wins, a.Losses, a.Draws),
			humanizeInt(a.Bankroll),
			humanizeInt(a.ReserveBalance),
			fmt.Sprintf("%d", a.Health),
			a.LastActionType,
		)
	}
	table.Render()
}

// printCrews ranks the three crews by warScore (spec §4.9 epoch resolution
// input).
func printCrews(ctx context.Context, st *store.Store) {
	crews, err := st.ListCrews(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list crews: %v\n", err)
		os.Exit(1)
	}
	sort.Slice(crews, func(i, j int) bool { return crews[i].WarScore > crews[j].WarScore })

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Crew", "Territory", "Treasury", "Momentum", "WarScore", "EpochTick")
	for _, c := range crews {
		table.Append(
			c.Name,
			fmt.Sprintf("%d", c.Territory),
			humanizeInt(c.Treasury),
			fmt.Sprintf("%.2f", c.Momentum),
			fmt.Sprintf("%.2f", c.WarScore),
			fmt.Sprintf("%d", c.EpochTick),
		)
	}
	table.Render()
}

// printEconomy runs the AMM audit (spec §8 scenario 6 "Economy audit").
func printEconomy(ctx context.Context, st *store.Store) {
	ammSvc := amm.New(st)
	pool, err := st.GetPool(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get pool: %v\n", err)
		os.Exit(1)
	}
	baselineK := pool.ReserveBalance * pool.ArenaBalance
	report, err := ammSvc.Audit(ctx, baselineK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: %v\n", err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Reserve", "Arena", "K", "Drift since baseline", "Budgets non-negative")
	table.Append(
		report.FormattedReserve,
		report.FormattedArena,
		fmt.Sprintf("%d", report.K),
		fmt.Sprintf("%d", report.DriftSinceBaseline),
		fmt.Sprintf("%v", report.BudgetsNonNegative),
	)
	table.Render()
}

func humanizeInt(v int64) string { return humanize.Comma(v) }

// printTown reports the plot completion summary (spec §4.10 step 1
// observation's town-level view).
func printTown(ctx context.Context, st *store.Store, townID string) {
	townSvc := town.New(st)
	summary, err := townSvc.GetSummary(ctx, townID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get town summary: %v\n", err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Town", "Total plots", "Built", "Claimed", "Completion", "Status")
	table.Append(
		summary.TownID,
		fmt.Sprintf("%d", summary.TotalPlots),
		fmt.Sprintf("%d", summary.BuiltPlots),
		fmt.Sprintf("%d", summary.ClaimedPlots),
		fmt.Sprintf("%.1f%%", summary.CompletionPct),
		summary.Status,
	)
	table.Render()
}
