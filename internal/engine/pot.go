package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lox/holdemtable/internal/errkind"
)

// ErrNoEligibleHands marks a pot none of whose eligible players hold a
// ranked hand. The pot cannot be awarded but the hand is otherwise
// sound, so the caller may skip it rather than abort.
var ErrNoEligibleHands = errors.New("no eligible ranked hand")

// PotKind distinguishes the main pot from side pots
type PotKind int

const (
	MainPot PotKind = iota
	SidePot
)

func (k PotKind) String() string {
	if k == MainPot {
		return "main"
	}
	return "side"
}

// Pot is a pool of committed chips with the set of players who can
// win it. Side pots exist because an all-in player can only win chips
// they were able to match.
type Pot struct {
	ID       string
	Kind     PotKind
	Amount   int64
	Eligible []string
	Order    int
}

// IsEligible reports whether the player can win this pot
func (p Pot) IsEligible(playerID string) bool {
	for _, id := range p.Eligible {
		if id == playerID {
			return true
		}
	}
	return false
}

// BuildPots constructs main and side pots from per-player total
// contributions. Pots split at each all-in player's contribution
// level; folded players' chips stay in the pots they were committed
// to but the folders are never eligible. seatOrder fixes eligibility
// ordering so output is deterministic.
func BuildPots(contributions map[string]int64, folded map[string]bool, allIn map[string]bool, seatOrder []string) []Pot {
	// Contribution levels where a pot must seal: each distinct all-in
	// total from a player still in the hand.
	levelSet := make(map[int64]bool)
	for id, amount := range contributions {
		if allIn[id] && !folded[id] && amount > 0 {
			levelSet[amount] = true
		}
	}
	levels := make([]int64, 0, len(levelSet))
	for lvl := range levelSet {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	// The final level is the largest contribution from anyone; chips
	// above the top all-in flow into one last pot.
	var top int64
	for _, amount := range contributions {
		if amount > top {
			top = amount
		}
	}
	if top == 0 {
		return nil
	}
	if len(levels) == 0 || levels[len(levels)-1] < top {
		levels = append(levels, top)
	}

	pots := make([]Pot, 0, len(levels))
	var prev int64
	for _, lvl := range levels {
		pot := Pot{Order: len(pots)}
		for _, id := range seatOrder {
			amount := contributions[id]
			slice := min64(amount, lvl) - min64(amount, prev)
			if slice > 0 {
				pot.Amount += slice
			}
			if !folded[id] && amount >= lvl {
				pot.Eligible = append(pot.Eligible, id)
			}
		}
		if pot.Amount == 0 {
			continue
		}
		if len(pots) == 0 {
			pot.Kind = MainPot
		} else {
			pot.Kind = SidePot
		}
		pot.Order = len(pots)
		pot.ID = fmt.Sprintf("pot-%d", pot.Order)
		pots = append(pots, pot)
		prev = lvl
	}
	return pots
}

// PotTotal sums a set of pots
func PotTotal(pots []Pot) int64 {
	var total int64
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

// PotAward is the outcome of awarding a single pot
type PotAward struct {
	Pot         Pot
	Winners     []string
	Shares      map[string]int64
	Description string
	WonByFold   bool
	// BoardIndex is non-zero only for the second board of a
	// double-board hand
	BoardIndex int
}

// AwardPot selects winners for one pot among its eligible players
// with a known ranking (lower is stronger) and splits the amount.
// Ties split evenly with each winner taking the floor share; odd
// chips go to the winners closest clockwise from the button, one
// each. clockwiseOrder lists player ids starting left of the button.
func AwardPot(pot Pot, rankings map[string]int32, descriptions map[string]string, clockwiseOrder []string) (PotAward, error) {
	award := PotAward{Pot: pot, Shares: make(map[string]int64)}

	var best int32
	found := false
	for _, id := range pot.Eligible {
		r, ok := rankings[id]
		if !ok {
			continue
		}
		if !found || r < best {
			best = r
			found = true
		}
	}
	if !found {
		return award, errkind.Wrap(errkind.InvalidState, ErrNoEligibleHands, "pot %s has no eligible ranked hand", pot.ID)
	}

	// Winners in clockwise-from-button order so odd chips land on the
	// earliest seats
	for _, id := range clockwiseOrder {
		if !pot.IsEligible(id) {
			continue
		}
		if r, ok := rankings[id]; ok && r == best {
			award.Winners = append(award.Winners, id)
		}
	}

	share := pot.Amount / int64(len(award.Winners))
	remainder := pot.Amount % int64(len(award.Winners))
	for i, id := range award.Winners {
		award.Shares[id] = share
		if int64(i) < remainder {
			award.Shares[id]++
		}
	}
	award.Description = descriptions[award.Winners[0]]

	var total int64
	for _, amount := range award.Shares {
		total += amount
	}
	if total != pot.Amount {
		return award, errkind.New(errkind.InvalidState, "pot %s award %d does not match pot amount %d", pot.ID, total, pot.Amount)
	}
	return award, nil
}
