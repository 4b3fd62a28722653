package engine

import (
	"time"

	"github.com/lox/holdemtable/internal/cards"
)

// Hand is one complete cycle from shuffle to award at a table. It
// refers to players by id only; the Table owns the Player structs.
// Every field is exported so the replay reducer can rebuild a hand
// from its event stream alone.
type Hand struct {
	ID      string
	TableID string
	Number  int
	Phase   Phase

	ButtonSeat     int
	SmallBlindSeat int
	BigBlindSeat   int
	SmallBlind     int64
	BigBlind       int64

	// PlayerIDs are the dealt-in players in seat order
	PlayerIDs []string

	Board       []cards.Card
	SecondBoard []cards.Card

	Pots    []Pot
	Betting *BettingRound

	CurrentPlayerID string

	BombPot     bool
	DoubleBoard bool
	Ante        int64

	// Shown marks players whose hole cards were revealed at showdown
	Shown map[string]bool

	StartedAt time.Time
	EndedAt   time.Time
}

// resetStreet clears per-street betting state when a new street opens
func (h *Hand) resetStreet() {
	if h.Betting != nil {
		h.Betting.Reset()
	}
}

// CurrentBet returns the bet level to match on the current street
func (h *Hand) CurrentBet() int64 {
	if h.Betting == nil {
		return 0
	}
	return h.Betting.CurrentBet
}

// TotalPot returns all chips committed to the hand so far: the closed
// pots plus the open street's bets.
func (h *Hand) TotalPot() int64 {
	total := PotTotal(h.Pots)
	if h.Betting != nil {
		for _, bet := range h.Betting.Bets {
			total += bet
		}
	}
	return total
}

// Active reports whether the hand is in progress and accepting intents
func (h *Hand) Active() bool {
	return h != nil && h.Phase != Waiting && h.Phase != Showdown && h.Phase != Complete
}

// HasPlayer reports whether the player was dealt into this hand
func (h *Hand) HasPlayer(playerID string) bool {
	for _, id := range h.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}
