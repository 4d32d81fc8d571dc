// Package store provides transactional SQLite persistence for every
// entity in spec §3. It is the sole owner of entity persistence; every
// mutation that touches more than one entity goes through Transaction.
//
// Grounded on tobyjaguar-mini-world's internal/persistence/db.go
// (schema-as-string migration, sqlx.Open("sqlite", ...) with WAL).
package store

import "time"

// Archetype biases action selection and fallback dialogue (spec §3, GLOSSARY).
type Archetype string

const (
	ArchetypeShark     Archetype = "SHARK"
	ArchetypeRock      Archetype = "ROCK"
	ArchetypeChameleon Archetype = "CHAMELEON"
	ArchetypeDegen     Archetype = "DEGEN"
	ArchetypeGrinder   Archetype = "GRINDER"
)

// Agent is the core actor entity (spec §3 "Agent").
type Agent struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	OwnerWallet     *string   `db:"owner_wallet" json:"ownerWallet,omitempty"`
	APIKey          string    `db:"api_key" json:"-"`
	AccessToken     *string   `db:"access_token" json:"-"`
	Archetype       Archetype `db:"archetype" json:"archetype"`
	Model           string    `db:"model" json:"model"`
	Bankroll        int64     `db:"bankroll" json:"bankroll"`
	ReserveBalance  int64     `db:"reserve_balance" json:"reserveBalance"`
	Health          int       `db:"health" json:"health"`
	Elo             int       `db:"elo" json:"elo"`
	Wins            int       `db:"wins" json:"wins"`
	Losses          int       `db:"losses" json:"losses"`
	Draws           int       `db:"draws" json:"draws"`
	TotalWon        int64     `db:"total_won" json:"totalWon"`
	TotalWagered    int64     `db:"total_wagered" json:"totalWagered"`
	RiskTolerance   float64   `db:"risk_tolerance" json:"riskTolerance"`
	MaxWagerPercent float64   `db:"max_wager_percent" json:"maxWagerPercent"`
	IsActive        bool      `db:"is_active" json:"isActive"`
	IsInMatch       bool      `db:"is_in_match" json:"isInMatch"`
	CurrentMatchID  *string   `db:"current_match_id" json:"currentMatchId,omitempty"`
	Scratchpad      string    `db:"scratchpad" json:"scratchpad"`
	LastActionType  string    `db:"last_action_type" json:"lastActionType"`
	LastReasoning   string    `db:"last_reasoning" json:"lastReasoning"`
	LastNarrative   string    `db:"last_narrative" json:"lastNarrative"`
	LastTargetPlot  *int      `db:"last_target_plot" json:"lastTargetPlot,omitempty"`
	LastTickAt      int64     `db:"last_tick_at" json:"lastTickAt"`
	IsExternal      bool      `db:"is_external" json:"isExternal"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// Zone and Status enumerations for Plot (spec §3 "Plot").
type Zone string

const (
	ZoneResidential   Zone = "RESIDENTIAL"
	ZoneCommercial    Zone = "COMMERCIAL"
	ZoneCivic         Zone = "CIVIC"
	ZoneIndustrial    Zone = "INDUSTRIAL"
	ZoneEntertainment Zone = "ENTERTAINMENT"
)

type PlotStatus string

const (
	PlotEmpty             PlotStatus = "EMPTY"
	PlotClaimed           PlotStatus = "CLAIMED"
	PlotUnderConstruction PlotStatus = "UNDER_CONSTRUCTION"
	PlotBuilt             PlotStatus = "BUILT"
)

// MinCallsForZone returns the build-completion invariant minCalls(zone).
func MinCallsForZone(z Zone) int {
	switch z {
	case ZoneResidential:
		return 3
	case ZoneCommercial:
		return 4
	case ZoneCivic:
		return 5
	case ZoneIndustrial:
		return 4
	case ZoneEntertainment:
		return 4
	default:
		return 4
	}
}

// Plot is one cell in a town (spec §3 "Plot").
type Plot struct {
	TownID        string     `db:"town_id" json:"townId"`
	PlotIndex     int        `db:"plot_index" json:"plotIndex"`
	Zone          Zone       `db:"zone" json:"zone"`
	Status        PlotStatus `db:"status" json:"status"`
	OwnerID       *string    `db:"owner_id" json:"ownerId,omitempty"`
	BuilderID     *string    `db:"builder_id" json:"builderId,omitempty"`
	BuildingType  *string    `db:"building_type" json:"buildingType,omitempty"`
	BuildingName  *string    `db:"building_name" json:"buildingName,omitempty"`
	APICallsUsed  int        `db:"api_calls_used" json:"apiCallsUsed"`
	TotalInvested int64      `db:"total_invested" json:"totalInvested"`
	QualityScore  float64    `db:"quality_score" json:"qualityScore"`
}

// GameType enumerates the supported match engines (spec §3 "Match").
type GameType string

const (
	GamePoker        GameType = "POKER"
	GameRPS          GameType = "RPS"
	GameBattleship   GameType = "BATTLESHIP"
	GameSplitOrSteal GameType = "SPLIT_OR_STEAL"
)

type MatchStatus string

const (
	MatchWaiting   MatchStatus = "WAITING"
	MatchActive    MatchStatus = "ACTIVE"
	MatchCompleted MatchStatus = "COMPLETED"
	MatchCancelled MatchStatus = "CANCELLED"
)

// Match is a 1v1 wagered game (spec §3 "Match").
type Match struct {
	ID                string      `db:"id" json:"id"`
	GameType          GameType    `db:"game_type" json:"gameType"`
	Player1ID         string      `db:"player1_id" json:"player1Id"`
	Player2ID         *string     `db:"player2_id" json:"player2Id,omitempty"`
	WagerAmount       int64       `db:"wager_amount" json:"wagerAmount"`
	TotalPot          int64       `db:"total_pot" json:"totalPot"`
	RakeAmount        int64       `db:"rake_amount" json:"rakeAmount"`
	Status            MatchStatus `db:"status" json:"status"`
	CurrentTurnID     *string     `db:"current_turn_id" json:"currentTurnId,omitempty"`
	TurnNumber        int         `db:"turn_number" json:"turnNumber"`
	GameState         string      `db:"game_state" json:"gameState"` // opaque JSON
	WinnerID          *string     `db:"winner_id" json:"winnerId,omitempty"`
	OnChainRecorded   bool        `db:"on_chain_recorded" json:"-"`
	PredictionSettled bool        `db:"prediction_settled" json:"-"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
	CompletedAt       *time.Time  `db:"completed_at" json:"completedAt,omitempty"`
}

// Move is an append-only per-(match,turn,agent) record (spec §3 "Move").
type Move struct {
	ID              int64     `db:"id" json:"id"`
	MatchID         string    `db:"match_id" json:"matchId"`
	TurnNumber      int       `db:"turn_number" json:"turnNumber"`
	AgentID         string    `db:"agent_id" json:"agentId"`
	Action          string    `db:"action" json:"action"` // opaque JSON
	Reasoning       string    `db:"reasoning" json:"reasoning"`
	CostCents       int64     `db:"cost_cents" json:"costCents"`
	LatencyMs       int64     `db:"latency_ms" json:"latencyMs"`
	GameStateBefore []byte    `db:"game_state_before" json:"-"` // lz4-compressed opaque blob
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// RelationshipStatus enumerates the derived social states (spec §3/§4.3).
type RelationshipStatus string

const (
	RelNeutral RelationshipStatus = "NEUTRAL"
	RelFriend  RelationshipStatus = "FRIEND"
	RelRival   RelationshipStatus = "RIVAL"
)

// Relationship is the symmetric pair row (spec §3 "Relationship").
// Stored with AgentA < AgentB, no back-pointers (spec §9).
type Relationship struct {
	AgentA            string             `db:"agent_a" json:"agentA"`
	AgentB            string             `db:"agent_b" json:"agentB"`
	Status            RelationshipStatus `db:"status" json:"status"`
	Score             int                `db:"score" json:"score"`
	Interactions      int                `db:"interactions" json:"interactions"`
	LastInteractionAt int64              `db:"last_interaction_at" json:"lastInteractionAt"`
	FriendSince       *int64             `db:"friend_since" json:"friendSince,omitempty"`
	RivalSince        *int64             `db:"rival_since" json:"rivalSince,omitempty"`
}

// Horizon and goal status for PersistentGoal (spec §3).
type Horizon string

const (
	HorizonShort Horizon = "SHORT"
	HorizonMid   Horizon = "MID"
	HorizonLong  Horizon = "LONG"
)

type GoalMetric string

const (
	MetricClaimedOrUCTotal GoalMetric = "CLAIMED_OR_UC_TOTAL"
	MetricBuiltInZone      GoalMetric = "BUILT_IN_ZONE"
	MetricBuiltTotal       GoalMetric = "BUILT_TOTAL"
	MetricBankroll         GoalMetric = "BANKROLL"
	MetricWinsTotal        GoalMetric = "WINS_TOTAL"
	MetricAPICallsTotal    GoalMetric = "API_CALLS_TOTAL"
)

type GoalStatus string

const (
	GoalActive    GoalStatus = "ACTIVE"
	GoalCompleted GoalStatus = "COMPLETED"
	GoalFailed    GoalStatus = "FAILED"
)

// PersistentGoal is a per-(agent,horizon) goal (spec §3 "PersistentGoal").
type PersistentGoal struct {
	AgentID        string     `db:"agent_id" json:"agentId"`
	Horizon        Horizon    `db:"horizon" json:"horizon"`
	TemplateKey    string     `db:"template_key" json:"templateKey"`
	Metric         GoalMetric `db:"metric" json:"metric"`
	TargetValue    int64      `db:"target_value" json:"targetValue"`
	ProgressValue  int64      `db:"progress_value" json:"progressValue"`
	StartedTick    uint64     `db:"started_tick" json:"startedTick"`
	DeadlineTick   *uint64    `db:"deadline_tick" json:"deadlineTick,omitempty"`
	Status         GoalStatus `db:"status" json:"status"`
	RewardProfile  string     `db:"reward_profile" json:"rewardProfile"`   // opaque JSON
	PenaltyProfile string     `db:"penalty_profile" json:"penaltyProfile"` // opaque JSON
}

// EconomyPool is the singleton AMM state (spec §3 "EconomyPool").
type EconomyPool struct {
	ID                  int64 `db:"id" json:"-"`
	ReserveBalance      int64 `db:"reserve_balance" json:"reserveBalance"`
	ArenaBalance        int64 `db:"arena_balance" json:"arenaBalance"`
	FeeBps              int   `db:"fee_bps" json:"feeBps"`
	BudgetOps           int64 `db:"budget_ops" json:"budgetOps"`
	BudgetPvp           int64 `db:"budget_pvp" json:"budgetPvp"`
	BudgetRescue        int64 `db:"budget_rescue" json:"budgetRescue"`
	BudgetInsurance     int64 `db:"budget_insurance" json:"budgetInsurance"`
	CumulativeFeesArena int64 `db:"cumulative_fees_arena" json:"cumulativeFeesArena"`
}

// EconomySwap is an append-only swap log row (spec §3).
type EconomySwap struct {
	ID          int64     `db:"id" json:"id"`
	AgentID     string    `db:"agent_id" json:"agentId"`
	Side        string    `db:"side" json:"side"`
	AmountIn    int64     `db:"amount_in" json:"amountIn"`
	AmountOut   int64     `db:"amount_out" json:"amountOut"`
	Fee         int64     `db:"fee" json:"fee"`
	PriceBefore float64   `db:"price_before" json:"priceBefore"`
	PriceAfter  float64   `db:"price_after" json:"priceAfter"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// EconomyLedger is a double-entry credit/debit row against pool budgets.
type EconomyLedger struct {
	ID        int64     `db:"id" json:"id"`
	Bucket    string    `db:"bucket" json:"bucket"`
	Delta     int64     `db:"delta" json:"delta"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// OpponentRecord tracks head-to-head history between two agents (C7).
type OpponentRecord struct {
	AgentID       string `db:"agent_id" json:"agentId"`
	OpponentID    string `db:"opponent_id" json:"opponentId"`
	MatchesPlayed int    `db:"matches_played" json:"matchesPlayed"`
	Wins          int    `db:"wins" json:"wins"`
	Losses        int    `db:"losses" json:"losses"`
	Draws         int    `db:"draws" json:"draws"`
	LastPlayedAt  int64  `db:"last_played_at" json:"lastPlayedAt"`
}

// AgentStake is the external staking/prediction contract (spec §3).
type AgentStake struct {
	ID               int64  `db:"id" json:"id"`
	BackerID         string `db:"backer_id" json:"backerId"`
	AgentID          string `db:"agent_id" json:"agentId"`
	Amount           int64  `db:"amount" json:"amount"`
	TotalYieldEarned int64  `db:"total_yield_earned" json:"totalYieldEarned"`
	IsActive         bool   `db:"is_active" json:"isActive"`
}

// Command mode/intent/status for AgentCommand (spec §3).
type CommandMode string

const (
	ModeSuggest  CommandMode = "SUGGEST"
	ModeStrong   CommandMode = "STRONG"
	ModeOverride CommandMode = "OVERRIDE"
)

// BasePriority returns the default priority for a mode (spec §4.8).
func BasePriority(m CommandMode) int {
	switch m {
	case ModeSuggest:
		return 50
	case ModeStrong:
		return 80
	case ModeOverride:
		return 95
	default:
		return 50
	}
}

type CommandStatus string

const (
	CommandQueued    CommandStatus = "QUEUED"
	CommandAccepted  CommandStatus = "ACCEPTED"
	CommandExecuted  CommandStatus = "EXECUTED"
	CommandRejected  CommandStatus = "REJECTED"
	CommandExpired   CommandStatus = "EXPIRED"
	CommandCancelled CommandStatus = "CANCELLED"
)

// IsTerminal reports whether the status never transitions again (spec §3 invariant).
func (s CommandStatus) IsTerminal() bool {
	switch s {
	case CommandExecuted, CommandRejected, CommandExpired, CommandCancelled:
		return true
	default:
		return false
	}
}

// Intent is the closed set of operator-command intents (spec §4.8).
type Intent string

const (
	IntentClaimPlot     Intent = "claim_plot"
	IntentStartBuild    Intent = "start_build"
	IntentDoWork        Intent = "do_work"
	IntentCompleteBuild Intent = "complete_build"
	IntentBuyArena      Intent = "buy_arena"
	IntentSellArena     Intent = "sell_arena"
	IntentPlayArena     Intent = "play_arena"
	IntentTransferArena Intent = "transfer_arena"
	IntentBuySkill      Intent = "buy_skill"
	IntentRest          Intent = "rest"
	IntentTrade         Intent = "trade"
	IntentCrewRaid      Intent = "crew_raid"
	IntentCrewDefend    Intent = "crew_defend"
	IntentCrewFarm      Intent = "crew_farm"
	IntentCrewTrade     Intent = "crew_trade"
)

// ExpectedActionType maps an intent to the action type C10 executes (spec §4.8).
func (i Intent) ExpectedActionType() string { return string(i) }

// AgentCommand is a queued operator intent (spec §3 "AgentCommand").
type AgentCommand struct {
	ID                   string        `db:"id" json:"id"`
	AgentID              string        `db:"agent_id" json:"agentId"`
	IssuerType           string        `db:"issuer_type" json:"issuerType"`
	IssuerTelegramUserID *string       `db:"issuer_telegram_user_id" json:"issuerTelegramUserId,omitempty"`
	Mode                 CommandMode   `db:"mode" json:"mode"`
	Intent               Intent        `db:"intent" json:"intent"`
	Params               string        `db:"params" json:"params"`           // opaque JSON
	Constraints          string        `db:"constraints" json:"constraints"` // opaque JSON
	AuditMeta            string        `db:"audit_meta" json:"auditMeta"`    // opaque JSON
	Priority             int           `db:"priority" json:"priority"`
	CreatedTick          uint64        `db:"created_tick" json:"createdTick"`
	ExpiresAtTick        *uint64       `db:"expires_at_tick" json:"expiresAtTick,omitempty"`
	Status               CommandStatus `db:"status" json:"status"`
	CreatedAt            time.Time     `db:"created_at" json:"createdAt"`
	AuditResult          string        `db:"audit_result" json:"auditResult"` // opaque JSON
}

// CrewStrategy enumerates crew-order strategies (spec §3/§4.9).
type CrewStrategy string

const (
	StrategyRaid   CrewStrategy = "RAID"
	StrategyDefend CrewStrategy = "DEFEND"
	StrategyFarm   CrewStrategy = "FARM"
	StrategyTrade  CrewStrategy = "TRADE"
)

// Crew tracks territory/treasury/momentum/warScore (spec §3 "Crew").
type Crew struct {
	ID        string  `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Territory int     `db:"territory" json:"territory"`
	Treasury  int64   `db:"treasury" json:"treasury"`
	Momentum  float64 `db:"momentum" json:"momentum"`
	WarScore  float64 `db:"war_score" json:"warScore"`
	EpochTick uint64  `db:"epoch_tick" json:"epochTick"`
}

// CrewOrder is a coarse strategic request (spec §3 "CrewOrder").
type CrewOrder struct {
	ID        string        `db:"id" json:"id"`
	CrewID    string        `db:"crew_id" json:"crewId"`
	AgentID   string        `db:"agent_id" json:"agentId"`
	Strategy  CrewStrategy  `db:"strategy" json:"strategy"`
	Intensity int           `db:"intensity" json:"intensity"`
	Status    CommandStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}

// CrewBattleEvent records one epoch's resolution (spec §3 "CrewBattleEvent").
type CrewBattleEvent struct {
	ID             int64     `db:"id" json:"id"`
	EpochTick      uint64    `db:"epoch_tick" json:"epochTick"`
	WinnerCrewID   string    `db:"winner_crew_id" json:"winnerCrewId"`
	LoserCrewID    string    `db:"loser_crew_id" json:"loserCrewId"`
	TerritorySwing int       `db:"territory_swing" json:"territorySwing"`
	TreasurySwing  int64     `db:"treasury_swing" json:"treasurySwing"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// TownEvent is an append-only event-log row.
type TownEvent struct {
	ID        int64     `db:"id" json:"id"`
	TownID    string    `db:"town_id" json:"townId"`
	Tick      uint64    `db:"tick" json:"tick"`
	Kind      string    `db:"kind" json:"kind"`
	Metadata  string    `db:"metadata" json:"metadata"` // opaque JSON
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
