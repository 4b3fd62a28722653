package cards

import (
	"testing"
)

func TestNewDeckHasAllCards(t *testing.T) {
	d := NewDeck()
	if d.Remaining() != DeckSize {
		t.Fatalf("Expected %d cards, got %d", DeckSize, d.Remaining())
	}
	if !d.IsStandardPermutation() {
		t.Error("New deck is not a standard permutation")
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	d := NewDeck()
	if err := d.Shuffle(); err != nil {
		t.Fatalf("Shuffle failed: %v", err)
	}
	if !d.IsStandardPermutation() {
		t.Error("Shuffled deck is not a permutation of the standard deck")
	}

	// Shuffling again keeps the same multiset
	if err := d.Shuffle(); err != nil {
		t.Fatalf("Second shuffle failed: %v", err)
	}
	if !d.IsStandardPermutation() {
		t.Error("Double-shuffled deck lost cards")
	}
}

func TestDealAdvancesCursor(t *testing.T) {
	d := NewDeck()
	first, err := d.Deal()
	if err != nil {
		t.Fatalf("Deal failed: %v", err)
	}
	second, err := d.Deal()
	if err != nil {
		t.Fatalf("Deal failed: %v", err)
	}
	if first == second {
		t.Error("Deal returned the same card twice")
	}
	if d.Remaining() != DeckSize-2 {
		t.Errorf("Expected %d remaining, got %d", DeckSize-2, d.Remaining())
	}
}

func TestDeckExhaustion(t *testing.T) {
	d := NewDeck()
	for i := 0; i < DeckSize; i++ {
		if _, err := d.Deal(); err != nil {
			t.Fatalf("Deal %d failed: %v", i, err)
		}
	}
	if _, err := d.Deal(); err == nil {
		t.Error("Expected error dealing from exhausted deck")
	}
	if err := d.Burn(); err == nil {
		t.Error("Expected error burning from exhausted deck")
	}
}

func TestDealN(t *testing.T) {
	d := NewDeck()
	flop, err := d.DealN(3)
	if err != nil {
		t.Fatalf("DealN failed: %v", err)
	}
	if len(flop) != 3 {
		t.Fatalf("Expected 3 cards, got %d", len(flop))
	}
	if d.Remaining() != DeckSize-3 {
		t.Errorf("Expected %d remaining, got %d", DeckSize-3, d.Remaining())
	}

	if _, err := d.DealN(50); err == nil {
		t.Error("Expected error requesting more cards than remain")
	}
}

func TestStackedDeckDealsInOrder(t *testing.T) {
	stack, err := ParseAll("As", "Kd", "Qh")
	if err != nil {
		t.Fatalf("ParseAll failed: %v", err)
	}
	d := NewStackedDeck(stack...)

	for i, want := range stack {
		got, err := d.Deal()
		if err != nil {
			t.Fatalf("Deal %d failed: %v", i, err)
		}
		if got != want {
			t.Errorf("Card %d: want %v, got %v", i, want, got)
		}
	}
}

func TestBurnDiscardsOne(t *testing.T) {
	stack, _ := ParseAll("As", "Kd", "Qh")
	d := NewStackedDeck(stack...)

	if err := d.Burn(); err != nil {
		t.Fatalf("Burn failed: %v", err)
	}
	got, err := d.Deal()
	if err != nil {
		t.Fatalf("Deal failed: %v", err)
	}
	if got.Code() != "Kd" {
		t.Errorf("Expected Kd after burn, got %s", got.Code())
	}
}
