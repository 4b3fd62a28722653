package cards

import "fmt"

// Suit represents a card suit
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// String returns the display symbol for a suit
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "♣"
	case Diamonds:
		return "♦"
	case Hearts:
		return "♥"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// Letter returns the single-letter code for a suit ("c", "d", "h", "s")
func (s Suit) Letter() string {
	switch s {
	case Clubs:
		return "c"
	case Diamonds:
		return "d"
	case Hearts:
		return "h"
	case Spades:
		return "s"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Suits lists the four suits in canonical order
var Suits = []Suit{Clubs, Diamonds, Hearts, Spades}

// Rank represents a card rank. Ace is high (14).
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the single-character code for a rank
func (r Rank) String() string {
	switch r {
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		if r >= Two && r <= Nine {
			return fmt.Sprintf("%d", int(r))
		}
		return "?"
	}
}

// Ranks lists the thirteen ranks in ascending order
var Ranks = []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// Card is an immutable playing card
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// NewCard creates a card with the given suit and rank
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// String returns the display form, e.g. "A♠"
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Code returns the compact two-character form, e.g. "As", "Td"
func (c Card) Code() string {
	return c.Rank.String() + c.Suit.Letter()
}

// Parse converts a two-character code like "As" or "Td" into a Card
func Parse(code string) (Card, error) {
	if len(code) != 2 {
		return Card{}, fmt.Errorf("card code must be 2 characters, got %q", code)
	}

	var rank Rank
	switch code[0] {
	case '2', '3', '4', '5', '6', '7', '8', '9':
		rank = Rank(code[0] - '0')
	case 'T', 't':
		rank = Ten
	case 'J', 'j':
		rank = Jack
	case 'Q', 'q':
		rank = Queen
	case 'K', 'k':
		rank = King
	case 'A', 'a':
		rank = Ace
	default:
		return Card{}, fmt.Errorf("invalid rank character %q", code[0])
	}

	var suit Suit
	switch code[1] {
	case 'c', 'C':
		suit = Clubs
	case 'd', 'D':
		suit = Diamonds
	case 'h', 'H':
		suit = Hearts
	case 's', 'S':
		suit = Spades
	default:
		return Card{}, fmt.Errorf("invalid suit character %q", code[1])
	}

	return Card{Suit: suit, Rank: rank}, nil
}

// MustParse is Parse that panics on error, for tests and literals
func MustParse(code string) Card {
	c, err := Parse(code)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseAll converts a list of two-character codes into cards
func ParseAll(codes ...string) ([]Card, error) {
	result := make([]Card, 0, len(codes))
	for _, code := range codes {
		c, err := Parse(code)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}
