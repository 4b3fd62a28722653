package eval

import (
	"testing"

	"github.com/lox/holdemtable/internal/cards"
)

func mustCards(t *testing.T, codes ...string) []cards.Card {
	t.Helper()
	cs, err := cards.ParseAll(codes...)
	if err != nil {
		t.Fatalf("ParseAll failed: %v", err)
	}
	return cs
}

func TestEvaluateCategories(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  Category
	}{
		{"royal flush", []string{"As", "Ks", "Qs", "Js", "Ts"}, RoyalFlush},
		{"straight flush", []string{"9h", "8h", "7h", "6h", "5h"}, StraightFlush},
		{"four of a kind", []string{"Ac", "Ad", "Ah", "As", "2c"}, FourOfAKind},
		{"full house", []string{"Kc", "Kd", "Kh", "2s", "2c"}, FullHouse},
		{"flush", []string{"Ad", "Jd", "9d", "6d", "2d"}, Flush},
		{"straight", []string{"9c", "8d", "7h", "6s", "5c"}, Straight},
		{"three of a kind", []string{"Qc", "Qd", "Qh", "7s", "2c"}, ThreeOfAKind},
		{"two pair", []string{"Jc", "Jd", "8h", "8s", "2c"}, TwoPair},
		{"pair", []string{"Tc", "Td", "8h", "5s", "2c"}, Pair},
		{"high card", []string{"Ac", "Jd", "8h", "5s", "2c"}, HighCard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Evaluate(mustCards(t, tt.codes...))
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if result.Category != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, result.Category)
			}
		})
	}
}

func TestEvaluateOrdering(t *testing.T) {
	pair, err := Evaluate(mustCards(t, "Tc", "Td", "8h", "5s", "2c"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	high, err := Evaluate(mustCards(t, "Ac", "Jd", "8h", "5s", "2c"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if !pair.Beats(high) {
		t.Error("A pair should beat high card")
	}
	if high.Beats(pair) {
		t.Error("High card should not beat a pair")
	}
	if !pair.Ties(pair) {
		t.Error("A hand should tie itself")
	}
}

func TestEvaluateSevenCardsPicksBestFive(t *testing.T) {
	// Hole cards Ah Kh plus a board giving a heart flush
	result, err := Evaluate(mustCards(t, "Ah", "Kh", "7h", "4h", "2h", "9c", "3d"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Category != Flush {
		t.Fatalf("Expected Flush, got %v", result.Category)
	}
	if len(result.BestFive) != 5 {
		t.Fatalf("Expected 5 best cards, got %d", len(result.BestFive))
	}
	for _, c := range result.BestFive {
		if c.Suit != cards.Hearts {
			t.Errorf("Best five contains non-heart %v", c)
		}
	}
}

func TestEvaluateTieAcrossSuits(t *testing.T) {
	a, err := Evaluate(mustCards(t, "Ah", "Kd", "Qc", "Js", "9h"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	b, err := Evaluate(mustCards(t, "As", "Kh", "Qd", "Jc", "9s"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !a.Ties(b) {
		t.Error("Identical ranks in different suits should tie")
	}
}

func TestEvaluateRejectsBadCardCounts(t *testing.T) {
	if _, err := Evaluate(mustCards(t, "Ah", "Kd")); err == nil {
		t.Error("Expected error for 2 cards")
	}
	if _, err := Evaluate(mustCards(t, "Ah", "Kd", "Qc", "Js", "9h", "8c", "7d", "6s")); err == nil {
		t.Error("Expected error for 8 cards")
	}
}
