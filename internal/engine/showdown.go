package engine

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/lox/holdemtable/internal/cards"
	"github.com/lox/holdemtable/internal/eval"
)

// EvalFunc evaluates 5-7 cards; the core only relies on the ranking
// being a total order where lower is stronger
type EvalFunc func([]cards.Card) (eval.Result, error)

// ShowdownDecision records what one player did at showdown
type ShowdownDecision struct {
	PlayerID string
	Showed   bool
	// Auto marks a muck applied by the engine rather than requested
	Auto bool
	// Results holds the player's evaluation per board: one entry
	// normally, two for a double-board hand
	Results []eval.Result
	Order   int
}

// ShowdownOutcome is the full resolution of a showdown: who showed or
// mucked, and every pot award. The orchestrator applies it to stacks
// and turns it into events.
type ShowdownOutcome struct {
	Decisions   []ShowdownDecision
	Awards      []PotAward
	SkippedPots []string
}

// ShowOrder returns the dealt-in, non-folded players in the order they
// must reveal: the last aggressor first when one exists, otherwise the
// first seat clockwise from the button, then clockwise.
func ShowOrder(t *Table, h *Hand) []string {
	order := clockwiseFromButton(t, h)

	inHand := make([]string, 0, len(order))
	for _, id := range order {
		if p := t.Player(id); p != nil && p.InHand() {
			inHand = append(inHand, id)
		}
	}

	aggressor := ""
	if h.Betting != nil {
		aggressor = h.Betting.LastAggressor
	}
	if aggressor == "" {
		return inHand
	}
	for i, id := range inHand {
		if id == aggressor {
			return append(inHand[i:], inHand[:i]...)
		}
	}
	return inHand
}

// clockwiseFromButton returns the hand's players rotated to start at
// the first seat after the button
func clockwiseFromButton(t *Table, h *Hand) []string {
	ordered := make([]string, len(h.PlayerIDs))
	copy(ordered, h.PlayerIDs)
	// PlayerIDs are already in ascending seat order; rotate past the
	// button
	for i, id := range ordered {
		p := t.Player(id)
		if p != nil && p.Seat > h.ButtonSeat {
			return append(ordered[i:], ordered[:i]...)
		}
	}
	return ordered
}

// ResolveShowdown walks the show order, applies the muck rules, and
// awards every pot. muckRequests are explicit muck elections from
// players; they are honoured only when the player's hand is strictly
// worse than the best hand shown so far. It does not mutate the table.
func ResolveShowdown(t *Table, h *Hand, muckRequests map[string]bool, evaluate EvalFunc, logger *log.Logger) (*ShowdownOutcome, error) {
	outcome := &ShowdownOutcome{}
	boards := [][]cards.Card{h.Board}
	if h.DoubleBoard && len(h.SecondBoard) > 0 {
		boards = append(boards, h.SecondBoard)
	}

	// bestShown[boardIdx] is the strongest ranking revealed so far
	type best struct {
		ranking int32
		ok      bool
	}
	bestShown := make([]best, len(boards))

	// shown[playerID][boardIdx] for per-pot winner selection
	shown := make(map[string][]eval.Result)

	order := ShowOrder(t, h)
	for i, id := range order {
		p := t.Player(id)
		decision := ShowdownDecision{PlayerID: id, Order: i + 1}

		if p == nil || len(p.HoleCards) != 2 {
			logger.Error("player in hand has no hole cards, skipping at showdown",
				"hand", h.ID, "player", id)
			decision.Auto = true
			outcome.Decisions = append(outcome.Decisions, decision)
			continue
		}

		results := make([]eval.Result, len(boards))
		for b, board := range boards {
			r, err := evaluate(append(append([]cards.Card{}, p.HoleCards...), board...))
			if err != nil {
				return nil, err
			}
			results[b] = r
		}
		decision.Results = results

		// A hand can still win when, on some board, no shown hand in a
		// pot the player is eligible for beats it
		canWin := false
		for _, pot := range h.Pots {
			if !pot.IsEligible(id) {
				continue
			}
			for b := range boards {
				potBest, potBestOK := int32(0), false
				for other, otherResults := range shown {
					if pot.IsEligible(other) && (!potBestOK || otherResults[b].Ranking < potBest) {
						potBest = otherResults[b].Ranking
						potBestOK = true
					}
				}
				if !potBestOK || results[b].Ranking <= potBest {
					canWin = true
				}
			}
		}

		strictlyWorse := true
		for b := range boards {
			if !bestShown[b].ok || results[b].Ranking <= bestShown[b].ranking {
				strictlyWorse = false
			}
		}

		firstToShow := len(shown) == 0
		switch {
		case firstToShow:
			decision.Showed = true
		case muckRequests[id] && strictlyWorse && !canWin:
			decision.Showed = false
		case !canWin:
			decision.Showed = false
			decision.Auto = true
		default:
			decision.Showed = true
		}

		if decision.Showed {
			shown[id] = results
			for b := range boards {
				if !bestShown[b].ok || results[b].Ranking < bestShown[b].ranking {
					bestShown[b] = best{ranking: results[b].Ranking, ok: true}
				}
			}
		}
		outcome.Decisions = append(outcome.Decisions, decision)
	}

	// Award pots in creation order; each board of a double-board hand
	// awards its half independently
	clockwise := clockwiseFromButton(t, h)
	for _, pot := range h.Pots {
		amounts := []int64{pot.Amount}
		if len(boards) == 2 {
			amounts = []int64{pot.Amount - pot.Amount/2, pot.Amount / 2}
		}
		for b, amount := range amounts {
			rankings := make(map[string]int32)
			descriptions := make(map[string]string)
			for id, results := range shown {
				rankings[id] = results[b].Ranking
				descriptions[id] = results[b].Description
			}
			part := pot
			part.Amount = amount
			award, err := AwardPot(part, rankings, descriptions, clockwise)
			if errors.Is(err, ErrNoEligibleHands) {
				logger.Warn("pot has no eligible shown hand, skipping",
					"hand", h.ID, "pot", pot.ID, "board", b)
				outcome.SkippedPots = append(outcome.SkippedPots, pot.ID)
				continue
			}
			if err != nil {
				return nil, err
			}
			award.BoardIndex = b
			outcome.Awards = append(outcome.Awards, award)
		}
	}
	return outcome, nil
}
