package matchengine

import (
	"encoding/json"
	"math/rand"
	"strings"

	"github.com/townforge/arena/internal/corefail"
)

const (
	pokerStartingChips = 1000
	pokerMaxHandsDefault = 5
)

// blindsSchedule maps hand number (1-indexed) to {small, big}; the schedule
// holds at its last entry for any later hand (spec §4.6 "blinds schedule").
var blindsSchedule = []struct{ Hand int; Small, Big int64 }{
	{1, 10, 20}, {3, 25, 50}, {5, 50, 100},
}

func blindsForHand(hand int) (int64, int64) {
	small, big := blindsSchedule[0].Small, blindsSchedule[0].Big
	for _, b := range blindsSchedule {
		if hand >= b.Hand {
			small, big = b.Small, b.Big
		}
	}
	return small, big
}

type pokerPlayer struct {
	ID       string
	Chips    int64
	Hole     []string
	Folded   bool
	AllIn    bool
	Committed int64 // committed to the pot this street
}

type pokerState struct {
	Player1, Player2 string
	Hand             int // 1-indexed hand number
	MaxHands         int
	Street           string // preflop, flop, turn, river, showdown, handOver
	Pot              int64
	CurrentBet       int64
	Players          map[string]*pokerPlayer
	Dealer           string
	CurrentTurn      string
	Community        []string
	Deck             []string
	Complete         bool
}

type pokerEngine struct{}

func newDeck(seed int64) []string {
	suits := []string{"S", "H", "D", "C"}
	ranks := []string{"2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A"}
	var deck []string
	for _, s := range suits {
		for _, r := range ranks {
			deck = append(deck, r+s)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}

func (pokerEngine) Init(p1, p2 string) (string, string, error) {
	s := &pokerState{
		Player1: p1, Player2: p2, Hand: 1, MaxHands: pokerMaxHandsDefault,
		Players: map[string]*pokerPlayer{
			p1: {ID: p1, Chips: pokerStartingChips},
			p2: {ID: p2, Chips: pokerStartingChips},
		},
		Dealer: p1,
	}
	startHand(s)
	b, err := json.Marshal(s)
	return string(b), s.CurrentTurn, err
}

// startHand deals hole cards, posts blinds, and sets preflop action on the
// dealer (heads-up: dealer posts small blind and acts first preflop).
func startHand(s *pokerState) {
	s.Street = "preflop"
	s.Community = nil
	s.Pot = 0
	s.Deck = newDeck(int64(s.Hand) * 7919)
	for _, p := range []string{s.Player1, s.Player2} {
		pl := s.Players[p]
		pl.Hole = []string{drawCard(s), drawCard(s)}
		pl.Folded = false
		pl.AllIn = pl.Chips <= 0
		pl.Committed = 0
	}
	small, big := blindsForHand(s.Hand)
	sbPlayer, bbPlayer := s.Dealer, other(s, s.Dealer)
	postBlind(s, sbPlayer, small)
	postBlind(s, bbPlayer, big)
	s.CurrentBet = big
	s.CurrentTurn = sbPlayer
}

func drawCard(s *pokerState) string {
	if len(s.Deck) == 0 {
		return "2S"
	}
	c := s.Deck[0]
	s.Deck = s.Deck[1:]
	return c
}

func postBlind(s *pokerState, playerID string, amount int64) {
	p := s.Players[playerID]
	if amount > p.Chips {
		amount = p.Chips
		p.AllIn = true
	}
	p.Chips -= amount
	p.Committed += amount
	s.Pot += amount
}

func other(s *pokerState, playerID string) string {
	return otherOf(s.Player1, s.Player2, playerID)
}

func decodePoker(state string) (*pokerState, error) {
	var s pokerState
	if err := json.Unmarshal([]byte(state), &s); err != nil {
		return nil, corefail.Wrap(corefail.Internal, err, "decode poker state")
	}
	return &s, nil
}

// normalizePokerAlias applies the spec §4.7 submitMove auto-correction:
// allin→all-in, bet→raise, call→check when nothing to call.
func normalizePokerAlias(s *pokerState, action Action) Action {
	t := strings.ToLower(action.Type)
	switch t {
	case "allin":
		t = "all-in"
	case "bet":
		t = "raise"
	}
	if t == "call" {
		toCall := s.CurrentBet - s.Players[s.CurrentTurn].Committed
		if toCall <= 0 {
			t = "check"
		}
	}
	action.Type = t
	return action
}

func (pokerEngine) ProcessAction(state, playerID string, action Action) (string, error) {
	s, err := decodePoker(state)
	if err != nil {
		return "", err
	}
	if s.CurrentTurn != playerID {
		return "", corefail.New(corefail.Validation, "not %s's turn", playerID)
	}
	action = normalizePokerAlias(s, action)
	p := s.Players[playerID]
	opp := s.Players[other(s, playerID)]

	switch action.Type {
	case "fold":
		p.Folded = true
	case "check":
		toCall := s.CurrentBet - p.Committed
		if toCall > 0 {
			return "", corefail.New(corefail.Validation, "cannot check, %d owed", toCall)
		}
	case "call":
		toCall := s.CurrentBet - p.Committed
		pay := minI64(toCall, p.Chips)
		p.Chips -= pay
		p.Committed += pay
		s.Pot += pay
		if p.Chips == 0 {
			p.AllIn = true
		}
	case "raise":
		target := s.CurrentBet + maxI64(action.Amount, minRaiseAmount(s))
		delta := target - p.Committed
		if delta > p.Chips {
			delta = p.Chips
		}
		p.Chips -= delta
		p.Committed += delta
		s.Pot += delta
		if p.Committed > s.CurrentBet {
			s.CurrentBet = p.Committed
		}
		if p.Chips == 0 {
			p.AllIn = true
		}
	case "all-in":
		delta := p.Chips
		p.Chips = 0
		p.Committed += delta
		s.Pot += delta
		p.AllIn = true
		if p.Committed > s.CurrentBet {
			s.CurrentBet = p.Committed
		}
	default:
		return "", corefail.New(corefail.Validation, "illegal poker action %q", action.Type)
	}

	if p.Folded {
		settleHand(s, other(s, playerID))
		return marshalPoker(s)
	}

	bothActed := p.Committed == s.CurrentBet && opp.Committed == s.CurrentBet
	if bothActed || p.AllIn || opp.AllIn {
		advanceStreet(s)
	} else {
		s.CurrentTurn = other(s, playerID)
	}
	return marshalPoker(s)
}

func minRaiseAmount(s *pokerState) int64 {
	_, big := blindsForHand(s.Hand)
	return big
}

func minI64(a, b int64) int64 { if a < b { return a }; return b }
func maxI64(a, b int64) int64 { if a > b { return a }; return b }

func advanceStreet(s *pokerState) {
	for _, p := range s.Players {
		p.Committed = 0
	}
	switch s.Street {
	case "preflop":
		s.Street = "flop"
		s.Community = append(s.Community, drawCard(s), drawCard(s), drawCard(s))
	case "flop":
		s.Street = "turn"
		s.Community = append(s.Community, drawCard(s))
	case "turn":
		s.Street = "river"
		s.Community = append(s.Community, drawCard(s))
	case "river":
		showdown(s)
		return
	}
	s.CurrentBet = 0
	s.CurrentTurn = other(s, s.Dealer) // non-dealer acts first postflop, heads-up convention
}

// showdown resolves by simplified hand strength: highest sum of rank values
// across hole+community cards. Real hand categorization is out of scope for
// this simulation core.
func showdown(s *pokerState) {
	r1 := handStrength(s.Players[s.Player1].Hole, s.Community)
	r2 := handStrength(s.Players[s.Player2].Hole, s.Community)
	switch {
	case r1 > r2:
		settleHand(s, s.Player1)
	case r2 > r1:
		settleHand(s, s.Player2)
	default:
		settleHand(s, "")
	}
}

var rankValue = map[byte]int{
	'2': 2, '3': 3, '4': 4, '5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
	'T': 10, 'J': 11, 'Q': 12, 'K': 13, 'A': 14,
}

func handStrength(hole, community []string) int {
	total := 0
	for _, c := range append(append([]string{}, hole...), community...) {
		total += rankValue[c[0]]
	}
	return total
}

// settleHand awards the pot to winner (or splits on a tie when winner=="")
// and ends the hand. It advances the hand counter and deals a new hand
// unless MaxHands has been reached or one player is out of chips.
func settleHand(s *pokerState, winner string) {
	if winner == "" {
		half := s.Pot / 2
		s.Players[s.Player1].Chips += half
		s.Players[s.Player2].Chips += s.Pot - half
	} else {
		s.Players[winner].Chips += s.Pot
	}
	s.Pot = 0
	s.Street = "handOver"

	if s.Hand >= s.MaxHands || s.Players[s.Player1].Chips <= 0 || s.Players[s.Player2].Chips <= 0 {
		s.Complete = true
		return
	}
	s.Hand++
	s.Dealer = other(s, s.Dealer)
	startHand(s)
}

func marshalPoker(s *pokerState) (string, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

func (pokerEngine) GetValidActions(state, playerID string) ([]string, error) {
	s, err := decodePoker(state)
	if err != nil {
		return nil, err
	}
	if s.CurrentTurn != playerID {
		return nil, nil
	}
	p := s.Players[playerID]
	toCall := s.CurrentBet - p.Committed
	actions := []string{"fold", "all-in"}
	if toCall <= 0 {
		actions = append(actions, "check", "raise")
	} else {
		actions = append(actions, "call", "raise")
	}
	return actions, nil
}

func (pokerEngine) IsGameComplete(state string) (bool, error) {
	s, err := decodePoker(state)
	if err != nil {
		return false, err
	}
	return s.Complete, nil
}

func (pokerEngine) GetWinner(state string) (*string, error) {
	s, err := decodePoker(state)
	if err != nil {
		return nil, err
	}
	if !s.Complete {
		return nil, nil
	}
	c1, c2 := s.Players[s.Player1].Chips, s.Players[s.Player2].Chips
	switch {
	case c1 > c2:
		return &s.Player1, nil
	case c2 > c1:
		return &s.Player2, nil
	default:
		return nil, nil
	}
}

func (pokerEngine) GetCurrentTurn(state string) (*string, error) {
	s, err := decodePoker(state)
	if err != nil {
		return nil, err
	}
	if s.Complete {
		return nil, nil
	}
	t := s.CurrentTurn
	return &t, nil
}

func (pokerEngine) PlayerView(state, viewerID string) (string, error) {
	s, err := decodePoker(state)
	if err != nil {
		return "", err
	}
	opp := other(s, viewerID)
	if oppPlayer, ok := s.Players[opp]; ok && s.Street != "handOver" {
		oppPlayer.Hole = nil
	}
	return marshalPoker(s)
}

func (pokerEngine) SpectatorView(state string) (string, error) {
	s, err := decodePoker(state)
	if err != nil {
		return "", err
	}
	for id, p := range s.Players {
		_ = id
		if s.Street != "handOver" {
			p.Hole = nil
		}
	}
	return marshalPoker(s)
}
