// Package eval adapts a third-party hand evaluator to the table core.
//
// The core only relies on Ranking being a total order where lower is
// stronger; equal rankings split pots.
package eval

import (
	"github.com/chehsunliu/poker"

	"github.com/lox/holdemtable/internal/cards"
	"github.com/lox/holdemtable/internal/errkind"
)

// Category is the standard hand class, weakest first
type Category int

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Result is a complete evaluation of 5-7 cards
type Result struct {
	// Ranking orders hands; lower is stronger. Equal rankings tie.
	Ranking     int32
	Category    Category
	Description string
	BestFive    []cards.Card
}

// Beats reports whether r is strictly stronger than other
func (r Result) Beats(other Result) bool {
	return r.Ranking < other.Ranking
}

// Ties reports whether r and other are exactly equal in strength
func (r Result) Ties(other Result) bool {
	return r.Ranking == other.Ranking
}

// Evaluate returns the best five-card hand makeable from 5-7 cards
func Evaluate(cs []cards.Card) (Result, error) {
	if len(cs) < 5 || len(cs) > 7 {
		return Result{}, errkind.New(errkind.InvalidInput, "evaluator requires 5-7 cards, got %d", len(cs))
	}

	converted := make([]poker.Card, len(cs))
	for i, c := range cs {
		converted[i] = poker.NewCard(c.Code())
	}

	ranking := poker.Evaluate(converted)
	best := bestFive(cs, converted, ranking)

	category := categoryFor(ranking)
	return Result{
		Ranking:     ranking,
		Category:    category,
		Description: describe(category, best),
		BestFive:    best,
	}, nil
}

// bestFive finds a five-card subset achieving the overall ranking
func bestFive(cs []cards.Card, converted []poker.Card, target int32) []cards.Card {
	if len(cs) == 5 {
		out := make([]cards.Card, 5)
		copy(out, cs)
		return out
	}

	var best []cards.Card
	combo := make([]poker.Card, 5)
	pick := make([]int, 5)

	var walk func(start, depth int)
	walk = func(start, depth int) {
		if best != nil {
			return
		}
		if depth == 5 {
			for i, idx := range pick {
				combo[i] = converted[idx]
			}
			if poker.Evaluate(combo) == target {
				best = make([]cards.Card, 5)
				for i, idx := range pick {
					best[i] = cs[idx]
				}
			}
			return
		}
		for i := start; i <= len(cs)-(5-depth); i++ {
			pick[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
	return best
}

func categoryFor(ranking int32) Category {
	// chehsunliu ranks the royal flush as the single strongest hand
	if ranking == 1 {
		return RoyalFlush
	}
	switch poker.RankString(ranking) {
	case "Straight Flush":
		return StraightFlush
	case "Four of a Kind":
		return FourOfAKind
	case "Full House":
		return FullHouse
	case "Flush":
		return Flush
	case "Straight":
		return Straight
	case "Three of a Kind":
		return ThreeOfAKind
	case "Two Pair":
		return TwoPair
	case "Pair":
		return Pair
	default:
		return HighCard
	}
}

func describe(category Category, best []cards.Card) string {
	high := cards.Card{}
	for _, c := range best {
		if c.Rank > high.Rank {
			high = c
		}
	}
	switch category {
	case RoyalFlush:
		return "Royal Flush"
	case HighCard, Flush, Straight, StraightFlush:
		return category.String() + ", " + high.Rank.String() + " high"
	default:
		return category.String()
	}
}
