package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/townforge/arena/internal/corefail"
)

// Store wraps a SQLite connection and exposes typed, transactional access
// to every entity in spec §3. Grounded on the teacher's
// internal/persistence/db.go (sqlx.Open("sqlite", ...) + WAL pragma).
type Store struct {
	db *sqlx.DB
}

// Open opens or creates a SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// querier is satisfied by both *sqlx.DB and *sqlx.Tx, letting every
// entity-operation method work identically inside or outside a transaction.
type querier interface {
	sqlx.Ext
	Get(dest any, query string, args ...any) error
	Select(dest any, query string, args ...any) error
}

// Tx is a handle bound to one transaction; most operation methods on Store
// have a matching method on Tx with identical semantics (a few, such as
// ListTownEventsSince, GetCommand and SumLedger, exist only on Store).
type Tx struct {
	q  querier
	tx *sqlx.Tx
}

// Transaction runs fn under an all-or-nothing SQLite transaction (spec
// §4.1 "the core uses only transactions for any mutation that touches
// more than one entity"). A conflict or deadlock is surfaced as
// corefail.Conflict / corefail.Aborted per §4.1's failure policy; the
// caller may retry once.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return corefail.Wrap(corefail.Aborted, err, "begin transaction")
	}
	t := &Tx{q: sqlTx, tx: sqlTx}
	if err := fn(t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		if isConflict(err) {
			return corefail.Wrap(corefail.Conflict, err, "commit conflict")
		}
		return corefail.Wrap(corefail.Aborted, err, "commit failed")
	}
	return nil
}

func isConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// asQuerier lets plain Store calls reuse the same SQL against the raw *sqlx.DB.
func (s *Store) asQuerier() querier { return s.db }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		owner_wallet TEXT,
		api_key TEXT NOT NULL UNIQUE,
		access_token TEXT UNIQUE,
		archetype TEXT NOT NULL,
		model TEXT NOT NULL,
		bankroll INTEGER NOT NULL DEFAULT 0,
		reserve_balance INTEGER NOT NULL DEFAULT 0,
		health INTEGER NOT NULL DEFAULT 100,
		elo INTEGER NOT NULL DEFAULT 1500,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		draws INTEGER NOT NULL DEFAULT 0,
		total_won INTEGER NOT NULL DEFAULT 0,
		total_wagered INTEGER NOT NULL DEFAULT 0,
		risk_tolerance REAL NOT NULL DEFAULT 0.3,
		max_wager_percent REAL NOT NULL DEFAULT 0.2,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_in_match INTEGER NOT NULL DEFAULT 0,
		current_match_id TEXT,
		scratchpad TEXT NOT NULL DEFAULT '',
		last_action_type TEXT NOT NULL DEFAULT '',
		last_reasoning TEXT NOT NULL DEFAULT '',
		last_narrative TEXT NOT NULL DEFAULT '',
		last_target_plot INTEGER,
		last_tick_at INTEGER NOT NULL DEFAULT 0,
		is_external INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS plots (
		town_id TEXT NOT NULL,
		plot_index INTEGER NOT NULL,
		zone TEXT NOT NULL,
		status TEXT NOT NULL,
		owner_id TEXT,
		builder_id TEXT,
		building_type TEXT,
		building_name TEXT,
		api_calls_used INTEGER NOT NULL DEFAULT 0,
		total_invested INTEGER NOT NULL DEFAULT 0,
		quality_score REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (town_id, plot_index)
	);

	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		game_type TEXT NOT NULL,
		player1_id TEXT NOT NULL,
		player2_id TEXT,
		wager_amount INTEGER NOT NULL,
		total_pot INTEGER NOT NULL,
		rake_amount INTEGER NOT NULL,
		status TEXT NOT NULL,
		current_turn_id TEXT,
		turn_number INTEGER NOT NULL DEFAULT 0,
		game_state TEXT NOT NULL DEFAULT '{}',
		winner_id TEXT,
		on_chain_recorded INTEGER NOT NULL DEFAULT 0,
		prediction_settled INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS moves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		action TEXT NOT NULL,
		reasoning TEXT NOT NULL DEFAULT '',
		cost_cents INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		game_state_before BLOB,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS relationships (
		agent_a TEXT NOT NULL,
		agent_b TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'NEUTRAL',
		score INTEGER NOT NULL DEFAULT 0,
		interactions INTEGER NOT NULL DEFAULT 0,
		last_interaction_at INTEGER NOT NULL DEFAULT 0,
		friend_since INTEGER,
		rival_since INTEGER,
		PRIMARY KEY (agent_a, agent_b)
	);

	CREATE TABLE IF NOT EXISTS persistent_goals (
		agent_id TEXT NOT NULL,
		horizon TEXT NOT NULL,
		template_key TEXT NOT NULL,
		metric TEXT NOT NULL,
		target_value INTEGER NOT NULL,
		progress_value INTEGER NOT NULL DEFAULT 0,
		started_tick INTEGER NOT NULL,
		deadline_tick INTEGER,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		reward_profile TEXT NOT NULL DEFAULT '{}',
		penalty_profile TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (agent_id, horizon, started_tick)
	);

	CREATE TABLE IF NOT EXISTS economy_pool (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		reserve_balance INTEGER NOT NULL,
		arena_balance INTEGER NOT NULL,
		fee_bps INTEGER NOT NULL,
		budget_ops INTEGER NOT NULL DEFAULT 0,
		budget_pvp INTEGER NOT NULL DEFAULT 0,
		budget_rescue INTEGER NOT NULL DEFAULT 0,
		budget_insurance INTEGER NOT NULL DEFAULT 0,
		cumulative_fees_arena INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS economy_swaps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		side TEXT NOT NULL,
		amount_in INTEGER NOT NULL,
		amount_out INTEGER NOT NULL,
		fee INTEGER NOT NULL,
		price_before REAL NOT NULL,
		price_after REAL NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS economy_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bucket TEXT NOT NULL,
		delta INTEGER NOT NULL,
		reason TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS opponent_records (
		agent_id TEXT NOT NULL,
		opponent_id TEXT NOT NULL,
		matches_played INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		draws INTEGER NOT NULL DEFAULT 0,
		last_played_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (agent_id, opponent_id)
	);

	CREATE TABLE IF NOT EXISTS agent_stakes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		backer_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		total_yield_earned INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS agent_commands (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		issuer_type TEXT NOT NULL,
		issuer_telegram_user_id TEXT,
		mode TEXT NOT NULL,
		intent TEXT NOT NULL,
		params TEXT NOT NULL DEFAULT '{}',
		constraints TEXT NOT NULL DEFAULT '{}',
		audit_meta TEXT NOT NULL DEFAULT '{}',
		priority INTEGER NOT NULL,
		created_tick INTEGER NOT NULL,
		expires_at_tick INTEGER,
		status TEXT NOT NULL DEFAULT 'QUEUED',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		audit_result TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS crews (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		territory INTEGER NOT NULL DEFAULT 0,
		treasury INTEGER NOT NULL DEFAULT 0,
		momentum REAL NOT NULL DEFAULT 0,
		war_score REAL NOT NULL DEFAULT 0,
		epoch_tick INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS crew_orders (
		id TEXT PRIMARY KEY,
		crew_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		strategy TEXT NOT NULL,
		intensity INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'QUEUED',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS crew_battle_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		epoch_tick INTEGER NOT NULL,
		winner_crew_id TEXT NOT NULL,
		loser_crew_id TEXT NOT NULL,
		territory_swing INTEGER NOT NULL,
		treasury_swing INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS town_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		town_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
