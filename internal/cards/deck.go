package cards

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/lox/holdemtable/internal/errkind"
)

// DeckSize is the number of cards in a standard deck
const DeckSize = 52

// Deck is an ordered 52-card deck with a deal cursor. A deck is built
// per hand: construct, shuffle, deal until the hand is done.
type Deck struct {
	cards  []Card
	cursor int
	rand   io.Reader
}

// NewDeck creates a new deck in canonical order, drawing shuffle
// randomness from crypto/rand
func NewDeck() *Deck {
	return NewDeckWithRand(rand.Reader)
}

// NewDeckWithRand creates a deck whose shuffle randomness comes from r.
// Tests inject a deterministic reader here.
func NewDeckWithRand(r io.Reader) *Deck {
	d := &Deck{
		cards: make([]Card, 0, DeckSize),
		rand:  r,
	}
	for _, suit := range Suits {
		for _, rank := range Ranks {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
	return d
}

// NewStackedDeck creates a deck that deals the given cards in order.
// For deterministic tests only; the cards need not cover a full deck.
func NewStackedDeck(cs ...Card) *Deck {
	d := &Deck{cards: make([]Card, len(cs)), rand: rand.Reader}
	copy(d.cards, cs)
	return d
}

// Shuffle permutes the undealt deck with a Fisher-Yates pass. Each swap
// index is drawn uniformly via crypto/rand.Int, which rejection-samples
// so there is no modulo bias.
func (d *Deck) Shuffle() error {
	for i := len(d.cards) - 1; i > 0; i-- {
		j, err := rand.Int(d.rand, big.NewInt(int64(i+1)))
		if err != nil {
			return errkind.Wrap(errkind.InvalidState, err, "shuffle randomness failed")
		}
		d.cards[i], d.cards[int(j.Int64())] = d.cards[int(j.Int64())], d.cards[i]
	}
	return nil
}

// Deal returns the next card and advances the cursor
func (d *Deck) Deal() (Card, error) {
	if d.cursor >= len(d.cards) {
		return Card{}, errkind.New(errkind.InvalidState, "deck exhausted: dealt all %d cards", len(d.cards))
	}
	c := d.cards[d.cursor]
	d.cursor++
	return c, nil
}

// DealN deals n cards
func (d *Deck) DealN(n int) ([]Card, error) {
	if d.cursor+n > len(d.cards) {
		return nil, errkind.New(errkind.InvalidState, "deck exhausted: %d cards requested, %d remain", n, d.Remaining())
	}
	out := make([]Card, n)
	for i := 0; i < n; i++ {
		c, err := d.Deal()
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Burn deals one card face down and discards it
func (d *Deck) Burn() error {
	_, err := d.Deal()
	return err
}

// Remaining returns the number of undealt cards
func (d *Deck) Remaining() int {
	return len(d.cards) - d.cursor
}

// Cards returns a copy of the full deck contents, dealt and undealt
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// IsStandardPermutation reports whether the deck holds exactly the 52
// distinct cards of a standard deck. Used to verify shuffles.
func (d *Deck) IsStandardPermutation() bool {
	if len(d.cards) != DeckSize {
		return false
	}
	seen := make(map[Card]bool, DeckSize)
	for _, c := range d.cards {
		if seen[c] {
			return false
		}
		seen[c] = true
	}
	return len(seen) == DeckSize
}
