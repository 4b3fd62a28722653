package engine

import "sort"

// TimeBankPolicy configures the per-player overflow clock
type TimeBankPolicy struct {
	Enabled bool
	Seconds int
}

// Table is the aggregate the core operates on. The lobby populates
// seats and configuration; the core owns the current Hand and the
// players' in-hand state.
type Table struct {
	ID            string
	Name          string
	SmallBlind    int64
	BigBlind      int64
	MinBuyIn      int64
	MaxBuyIn      int64
	ActionSeconds int
	TimeBank      TimeBankPolicy
	ButtonSeat    int
	Seats         map[int]*Player
	Hand          *Hand
	HandCount     int
}

// SeatedPlayers returns all seated players in ascending seat order
func (t *Table) SeatedPlayers() []*Player {
	out := make([]*Player, 0, len(t.Seats))
	for _, p := range t.Seats {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

// Player finds a seated player by id
func (t *Table) Player(id string) *Player {
	for _, p := range t.Seats {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerAtSeat returns the player at the given seat, or nil
func (t *Table) PlayerAtSeat(seat int) *Player {
	return t.Seats[seat]
}

// ActiveCount counts players able to be dealt a hand: seated, not
// away, with chips behind
func (t *Table) ActiveCount() int {
	n := 0
	for _, p := range t.Seats {
		if p.Status != StatusAway && p.Chips > 0 {
			n++
		}
	}
	return n
}

// NextOccupiedSeat walks clockwise (ascending seats, wrapping) from
// the seat after `from` to the next seat holding a player. Returns 0
// when the table is empty.
func (t *Table) NextOccupiedSeat(from int) int {
	players := t.SeatedPlayers()
	if len(players) == 0 {
		return 0
	}
	for _, p := range players {
		if p.Seat > from {
			return p.Seat
		}
	}
	return players[0].Seat
}

// NextEligibleSeat walks clockwise from the seat after `from` to the
// next seat whose player satisfies the predicate. Returns 0 when none.
func (t *Table) NextEligibleSeat(from int, ok func(*Player) bool) int {
	players := t.SeatedPlayers()
	if len(players) == 0 {
		return 0
	}
	// seats after `from`, then wrap to the start
	for _, p := range players {
		if p.Seat > from && ok(p) {
			return p.Seat
		}
	}
	for _, p := range players {
		if p.Seat <= from && ok(p) {
			return p.Seat
		}
	}
	return 0
}

// TotalChips sums all stacks plus all chips committed to the current
// hand. Constant for the duration of a hand (chip conservation).
func (t *Table) TotalChips() int64 {
	var total int64
	for _, p := range t.Seats {
		total += p.Chips + p.TotalBet
	}
	return total
}
