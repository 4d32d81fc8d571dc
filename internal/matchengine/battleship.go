package matchengine

import (
	"encoding/json"
	"fmt"

	"github.com/townforge/arena/internal/corefail"
)

const battleshipSize = 10

var battleshipFleet = []int{5, 4, 3, 3, 2}

type battleshipBoard struct {
	Ships          [][2]int   // {ship index, flattened cell index} per occupied cell
	Hits           map[int]bool
	Misses         map[int]bool
	ShipsRemaining int
}

type battleshipState struct {
	Player1, Player2 string
	Boards           map[string]*battleshipBoard
	CurrentTurn      string
	Winner           string
}

type battleshipEngine struct{}

// Init places each player's fleet deterministically, ship k on row k from
// column 0 at the left edge of the board — ship placement strategy is out of scope for
// this simulation core; what matters is a complete, inspectable board.
func (battleshipEngine) Init(p1, p2 string) (string, string, error) {
	s := &battleshipState{
		Player1: p1, Player2: p2, CurrentTurn: p1,
		Boards: map[string]*battleshipBoard{
			p1: placeFleet(),
			p2: placeFleet(),
		},
	}
	b, err := json.Marshal(s)
	return string(b), p1, err
}

func placeFleet() *battleshipBoard {
	board := &battleshipBoard{Hits: map[int]bool{}, Misses: map[int]bool{}, ShipsRemaining: len(battleshipFleet)}
	row := 0
	col := 0
	for shipIdx, length := range battleshipFleet {
		for i := 0; i < length; i++ {
			cell := (row+shipIdx)*battleshipSize + (col + i)
			board.Ships = append(board.Ships, [2]int{shipIdx, cell})
		}
	}
	return board
}

func decodeBattleship(state string) (*battleshipState, error) {
	var s battleshipState
	if err := json.Unmarshal([]byte(state), &s); err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "decode battleship state")
	}
	return &s, nil
}

// ProcessAction: action.Amount carries the target cell index (row*10+col).
// Duplicate or out-of-range ⇒ turn forfeited (spec §4.6 BATTLESHIP).
func (battleshipEngine) ProcessAction(state, playerID string, action Action) (string, error) {
	s, err := decodeBattleship(state)
	if err != nil {
		return "", err
	}
	if s.CurrentTurn != playerID {
		return "", corefail.New(corefail.Validation, "not %s's turn", playerID)
	}
	opp := otherOf(s.Player1, s.Player2, playerID)
	cell := int(action.Amount)

	forfeit := cell < 0 || cell >= battleshipSize*battleshipSize
	board := s.Boards[opp]
	if !forfeit {
		if board.Hits[cell] || board.Misses[cell] {
			forfeit = true
		}
	}
	if !forfeit {
		shipIdx, hit := shipAt(board, cell)
		if hit {
			board.Hits[cell] = true
			if shipSunk(board, shipIdx) {
				board.ShipsRemaining--
			}
		} else {
			board.Misses[cell] = true
		}
	}

	if board.ShipsRemaining <= 0 {
		s.Winner = playerID
		s.CurrentTurn = ""
	} else {
		s.CurrentTurn = opp
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func shipAt(board *battleshipBoard, cell int) (shipIdx int, hit bool) {
	for _, sc := range board.Ships {
		if sc[1] == cell {
			return sc[0], true
		}
	}
	return -1, false
}

func shipSunk(board *battleshipBoard, shipIdx int) bool {
	for _, sc := range board.Ships {
		if sc[0] == shipIdx && !board.Hits[sc[1]] {
			return false
		}
	}
	return true
}

func (battleshipEngine) GetValidActions(state, playerID string) ([]string, error) {
	s, err := decodeBattleship(state)
	if err != nil {
		return nil, err
	}
	if s.CurrentTurn != playerID {
		return nil, nil
	}
	actions := make([]string, 0, battleshipSize*battleshipSize)
	for i := 0; i < battleshipSize*battleshipSize; i++ {
		actions = append(actions, fmt.Sprintf("fire:%d", i))
	}
	return actions, nil
}

func (battleshipEngine) IsGameComplete(state string) (bool, error) {
	s, err := decodeBattleship(state)
	if err != nil {
		return false, err
	}
	return s.Winner != "", nil
}

func (battleshipEngine) GetWinner(state string) (*string, error) {
	s, err := decodeBattleship(state)
	if err != nil {
		return nil, err
	}
	if s.Winner == "" {
		return nil, nil
	}
	w := s.Winner
	return &w, nil
}

func (battleshipEngine) GetCurrentTurn(state string) (*string, error) {
	s, err := decodeBattleship(state)
	if err != nil {
		return nil, err
	}
	if s.CurrentTurn == "" {
		return nil, nil
	}
	t := s.CurrentTurn
	return &t, nil
}

// PlayerView hides the opponent's ship placements; hits/misses against them
// remain visible (that's the point of the view).
func (battleshipEngine) PlayerView(state, viewerID string) (string, error) {
	s, err := decodeBattleship(state)
	if err != nil {
		return "", err
	}
	opp := otherOf(s.Player1, s.Player2, viewerID)
	if b, ok := s.Boards[opp]; ok {
		b.Ships = nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func (battleshipEngine) SpectatorView(state string) (string, error) {
	s, err := decodeBattleship(state)
	if err != nil {
		return "", err
	}
	for _, b := range s.Boards {
		b.Ships = nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}
