package engine

import "github.com/lox/holdemtable/internal/cards"

// PlayerStatus represents a player's standing in the current hand
type PlayerStatus int

const (
	// StatusWaiting players are seated but not dealt into the hand
	StatusWaiting PlayerStatus = iota
	// StatusActive players are contesting the hand and may act
	StatusActive
	// StatusFolded players have given up their claim to every pot
	StatusFolded
	// StatusAllIn players have no chips behind but still contest pots
	StatusAllIn
	// StatusAway players are seated but sitting out
	StatusAway
)

func (s PlayerStatus) String() string {
	return [...]string{"waiting", "active", "folded", "allin", "away"}[s]
}

// Player is a seated participant as seen by the table core.
// Seating and identity are owned by the lobby; the core only mutates
// stack, status, bets and hole cards during a hand.
type Player struct {
	ID        string
	Name      string
	Seat      int // 1..10, unique at the table
	Chips     int64
	Status    PlayerStatus
	HoleCards []cards.Card // nil, or exactly two once dealt

	// RoundBet is the amount committed on the current street, TotalBet
	// across the whole hand. Both mirror the betting round ledger.
	RoundBet int64
	TotalBet int64

	TimeBankSeconds int

	// Missed-blind bookkeeping for players returning from Away. The
	// core records but does not enforce; enforcement is a lobby rule.
	HandsSatOut      int
	OwesMissedBlinds bool
}

// InHand reports whether the player still contests at least one pot
func (p *Player) InHand() bool {
	return p.Status == StatusActive || p.Status == StatusAllIn
}

// CanAct reports whether the player may take betting actions
func (p *Player) CanAct() bool {
	return p.Status == StatusActive
}

// commit moves up to amount chips from the stack into the current
// street's bet, flipping to AllIn when the stack empties
func (p *Player) commit(amount int64) int64 {
	if amount > p.Chips {
		amount = p.Chips
	}
	p.Chips -= amount
	p.RoundBet += amount
	p.TotalBet += amount
	if p.Chips == 0 && p.Status == StatusActive {
		p.Status = StatusAllIn
	}
	return amount
}
