package matchengine

import (
	"encoding/json"
	"math/rand"

	"github.com/townforge/arena/internal/corefail"
)

const (
	rpsMaxRounds  = 3
	rpsSafetyCap  = 5
	rpsWinScore   = 2
)

var rpsMoves = map[string]bool{"rock": true, "paper": true, "scissors": true}

type rpsState struct {
	Player1, Player2 string
	Round            int
	TotalRounds      int
	Score1, Score2   int
	Pending1         string
	Pending2         string
	CurrentTurn      string
	History          []string
}

type rpsEngine struct{}

func (rpsEngine) Init(p1, p2 string) (string, string, error) {
	s := rpsState{Player1: p1, Player2: p2, Round: 1, CurrentTurn: p1}
	b, err := json.Marshal(s)
	return string(b), p1, err
}

func decodeRPS(state string) (*rpsState, error) {
	var s rpsState
	if err := json.Unmarshal([]byte(state), &s); err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "decode rps state")
	}
	return &s, nil
}

// RPS has no real alternating-turn concept — both players submit a pending
// move for the round and the round resolves once both are present. The
// orchestrator still calls submitMove once per player; CurrentTurn simply
// names whichever player hasn't submitted the current round's move yet so
// getCurrentTurn has a stable answer between submissions.
func (rpsEngine) ProcessAction(state, playerID string, action Action) (string, error) {
	s, err := decodeRPS(state)
	if err != nil {
		return "", err
	}
	move := action.Type
	if !rpsMoves[move] {
		// invalid move is randomized as a penalty (spec §4.6 RPS).
		choices := []string{"rock", "paper", "scissors"}
		move = choices[rand.Intn(len(choices))]
	}
	switch playerID {
	case s.Player1:
		s.Pending1 = move
	case s.Player2:
		s.Pending2 = move
	default:
		return "", corefail.New(corefail.Validation, "player %s is not in this match", playerID)
	}

	if s.Pending1 != "" && s.Pending2 != "" {
		winner := rpsBeats(s.Pending1, s.Pending2)
		switch winner {
		case 1:
			s.Score1++
		case 2:
			s.Score2++
		}
		s.History = append(s.History, s.Pending1+" vs "+s.Pending2)
		s.Pending1, s.Pending2 = "", ""
		s.Round++
		s.TotalRounds++
		s.CurrentTurn = s.Player1
	} else if s.Pending1 != "" {
		s.CurrentTurn = s.Player2
	} else {
		s.CurrentTurn = s.Player1
	}

	b, err := json.Marshal(s)
	return string(b), err
}

// rpsBeats returns 1 if a beats b, 2 if b beats a, 0 on a draw.
func rpsBeats(a, b string) int {
	if a == b {
		return 0
	}
	wins := map[string]string{"rock": "scissors", "paper": "rock", "scissors": "paper"}
	if wins[a] == b {
		return 1
	}
	return 2
}

func (rpsEngine) GetValidActions(state, playerID string) ([]string, error) {
	return []string{"rock", "paper", "scissors"}, nil
}

func (rpsEngine) IsGameComplete(state string) (bool, error) {
	s, err := decodeRPS(state)
	if err != nil {
		return false, err
	}
	return s.Score1 >= rpsWinScore || s.Score2 >= rpsWinScore || s.TotalRounds >= rpsSafetyCap, nil
}

func (rpsEngine) GetWinner(state string) (*string, error) {
	s, err := decodeRPS(state)
	if err != nil {
		return nil, err
	}
	done, err := rpsEngine{}.IsGameComplete(state)
	if err != nil || !done {
		return nil, err
	}
	switch {
	case s.Score1 > s.Score2:
		return &s.Player1, nil
	case s.Score2 > s.Score1:
		return &s.Player2, nil
	default:
		return nil, nil
	}
}

func (rpsEngine) GetCurrentTurn(state string) (*string, error) {
	s, err := decodeRPS(state)
	if err != nil {
		return nil, err
	}
	t := s.CurrentTurn
	return &t, nil
}

// PlayerView hides the opponent's pending move for the current round.
func (rpsEngine) PlayerView(state, viewerID string) (string, error) {
	s, err := decodeRPS(state)
	if err != nil {
		return "", err
	}
	if viewerID == s.Player1 {
		s.Pending2 = ""
	} else if viewerID == s.Player2 {
		s.Pending1 = ""
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func (rpsEngine) SpectatorView(state string) (string, error) {
	s, err := decodeRPS(state)
	if err != nil {
		return "", err
	}
	s.Pending1, s.Pending2 = "", ""
	b, err := json.Marshal(s)
	return string(b), err
}
