// Package matchengine implements the four pure per-game rule engines behind
// a uniform dispatch table (spec §4.6, §9 "polymorphism over game kinds":
// tagged variants, not inheritance).
package matchengine

import (
	"encoding/json"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

// Action is the opaque per-move payload the orchestrator passes through.
type Action struct {
	Type   string          `json:"action"`
	Amount int64           `json:"amount,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Engine is the uniform contract every game implements (spec §9).
type Engine interface {
	// Init returns the opaque starting gameState and the player to move first.
	Init(player1, player2 string) (state string, firstTurn string, err error)
	ProcessAction(state string, playerID string, action Action) (nextState string, err error)
	GetValidActions(state string, playerID string) ([]string, error)
	IsGameComplete(state string) (bool, error)
	GetWinner(state string) (winner *string, err error)
	GetCurrentTurn(state string) (playerID *string, err error)
	// PlayerView and SpectatorView implement the information-hiding contract
	// (spec §4.7 getMatchState).
	PlayerView(state string, viewerID string) (string, error)
	SpectatorView(state string) (string, error)
}

// Registry dispatches by GameType (spec §9 "dispatch table, not inheritance").
var Registry = map[store.GameType]Engine{
	store.GameRPS:          rpsEngine{},
	store.GamePoker:        pokerEngine{},
	store.GameBattleship:   battleshipEngine{},
	store.GameSplitOrSteal: splitOrStealEngine{},
}

func Get(gameType store.GameType) (Engine, error) {
	e, ok := Registry[gameType]
	if !ok {
		return nil, corefail.New(corefail.Validation, "unknown game type %q", gameType)
	}
	return e, nil
}

// otherOf returns whichever of p1/p2 is not playerID — the two-player
// complement used by every engine's turn/opponent logic.
func otherOf(p1, p2, playerID string) string {
	if playerID == p1 {
		return p2
	}
	return p1
}
