package matchengine

import (
	"encoding/json"

	"github.com/townforge/arena/internal/corefail"
)

type splitOrStealState struct {
	Player1, Player2 string
	Decision1        string // "", "split", "steal"
	Decision2        string
	Pot              int64
	Payout1          int64
	Payout2          int64
	Complete         bool
}

type splitOrStealEngine struct{}

func (splitOrStealEngine) Init(p1, p2 string) (string, string, error) {
	s := &splitOrStealState{Player1: p1, Player2: p2, Pot: 400}
	b, err := json.Marshal(s)
	return string(b), p1, err
}

func decodeSplitOrSteal(state string) (*splitOrStealState, error) {
	var s splitOrStealState
	if err := json.Unmarshal([]byte(state), &s); err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "decode split-or-steal state")
	}
	return &s, nil
}

func (splitOrStealEngine) ProcessAction(state, playerID string, action Action) (string, error) {
	s, err := decodeSplitOrSteal(state)
	if err != nil {
		return "", err
	}
	decision := action.Type
	if decision != "split" && decision != "steal" {
		return "", corefail.New(corefail.Validation, "decision must be split or steal")
	}
	switch playerID {
	case s.Player1:
		s.Decision1 = decision
	case s.Player2:
		s.Decision2 = decision
	default:
		return "", corefail.New(corefail.Validation, "player %s is not in this match", playerID)
	}

	if s.Decision1 != "" && s.Decision2 != "" {
		applyPayoffTable(s)
	}
	b, err := json.Marshal(s)
	return string(b), err
}

// applyPayoffTable is the classic split/steal matrix: both split → even
// share; one steals → stealer takes all; both steal → both get nothing
// (spec §4.6 "payoff table applied at reveal").
func applyPayoffTable(s *splitOrStealState) {
	switch {
	case s.Decision1 == "split" && s.Decision2 == "split":
		s.Payout1, s.Payout2 = s.Pot/2, s.Pot/2
	case s.Decision1 == "steal" && s.Decision2 == "split":
		s.Payout1, s.Payout2 = s.Pot, 0
	case s.Decision1 == "split" && s.Decision2 == "steal":
		s.Payout1, s.Payout2 = 0, s.Pot
	default: // both steal
		s.Payout1, s.Payout2 = 0, 0
	}
	s.Complete = true
}

func (splitOrStealEngine) GetValidActions(state, playerID string) ([]string, error) {
	return []string{"split", "steal"}, nil
}

func (splitOrStealEngine) IsGameComplete(state string) (bool, error) {
	s, err := decodeSplitOrSteal(state)
	if err != nil {
		return false, err
	}
	return s.Complete, nil
}

func (splitOrStealEngine) GetWinner(state string) (*string, error) {
	s, err := decodeSplitOrSteal(state)
	if err != nil {
		return nil, err
	}
	if !s.Complete {
		return nil, nil
	}
	switch {
	case s.Payout1 > s.Payout2:
		return &s.Player1, nil
	case s.Payout2 > s.Payout1:
		return &s.Player2, nil
	default:
		return nil, nil
	}
}

func (splitOrStealEngine) GetCurrentTurn(state string) (*string, error) {
	s, err := decodeSplitOrSteal(state)
	if err != nil {
		return nil, err
	}
	if s.Complete {
		return nil, nil
	}
	switch {
	case s.Decision1 == "":
		p := s.Player1
		return &p, nil
	case s.Decision2 == "":
		p := s.Player2
		return &p, nil
	default:
		return nil, nil
	}
}

// PlayerView hides the opponent's decision before reveal (spec §4.7).
func (splitOrStealEngine) PlayerView(state, viewerID string) (string, error) {
	s, err := decodeSplitOrSteal(state)
	if err != nil {
		return "", err
	}
	if !s.Complete {
		opp := otherOf(s.Player1, s.Player2, viewerID)
		if opp == s.Player1 {
			s.Decision1 = ""
		} else {
			s.Decision2 = ""
		}
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func (splitOrStealEngine) SpectatorView(state string) (string, error) {
	s, err := decodeSplitOrSteal(state)
	if err != nil {
		return "", err
	}
	if !s.Complete {
		s.Decision1, s.Decision2 = "", ""
	}
	b, err := json.Marshal(s)
	return string(b), err
}
