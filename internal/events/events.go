// Package events defines the typed, append-only hand event log. The
// log observes the hand but never mutates it; replay folds a hand's
// events back into state, so every event carries the full payload a
// reducer needs.
package events

import (
	"time"

	"github.com/lox/holdemtable/internal/cards"
)

// Type tags each event variant
type Type string

const (
	TypeHandStarted           Type = "hand_started"
	TypeBlindsPosted          Type = "blinds_posted"
	TypeAntePosted            Type = "ante_posted"
	TypeHoleCardsDealt        Type = "hole_cards_dealt"
	TypePlayerActed           Type = "player_acted"
	TypeBettingRoundCompleted Type = "betting_round_completed"
	TypeCommunityCardsDealt   Type = "community_cards_dealt"
	TypePlayerShowedCards     Type = "player_showed_cards"
	TypePlayerMuckedCards     Type = "player_mucked_cards"
	TypePotAwarded            Type = "pot_awarded"
	TypeHandCompleted         Type = "hand_completed"
)

// Header is shared by every event: which hand, where in that hand's
// sequence (1-based, no gaps), and when.
type Header struct {
	HandID string    `json:"handId"`
	Seq    uint64    `json:"seq"`
	At     time.Time `json:"at"`
}

// Head returns the event header
func (h Header) Head() Header { return h }

func (h *Header) setHead(hdr Header) { *h = hdr }

// Event is the interface every hand event implements by embedding
// Header
type Event interface {
	Type() Type
	Head() Header
	setHead(Header)
}

// Stamp writes the header onto an event before it is appended
func Stamp(e Event, handID string, seq uint64, at time.Time) {
	e.setHead(Header{HandID: handID, Seq: seq, At: at})
}

// HandStarted opens a hand's event stream
type HandStarted struct {
	Header
	TableID        string   `json:"tableId"`
	HandNumber     int      `json:"handNumber"`
	ButtonSeat     int      `json:"buttonSeat"`
	SmallBlindSeat int      `json:"smallBlindSeat"`
	BigBlindSeat   int      `json:"bigBlindSeat"`
	SmallBlind     int64    `json:"smallBlind"`
	BigBlind       int64    `json:"bigBlind"`
	PlayerIDs      []string `json:"playerIds"`
	BombPot        bool     `json:"bombPot"`
	DoubleBoard    bool     `json:"doubleBoard"`
	Ante           int64    `json:"ante"`
}

func (HandStarted) Type() Type { return TypeHandStarted }

// BlindsPosted records the forced preflop bets. The stack fields let
// replay notice a blind that put its poster all-in.
type BlindsPosted struct {
	Header
	SmallBlindPlayerID string `json:"smallBlindPlayerId"`
	SmallBlindAmount   int64  `json:"smallBlindAmount"`
	SmallBlindStack    int64  `json:"smallBlindStack"`
	BigBlindPlayerID   string `json:"bigBlindPlayerId"`
	BigBlindAmount     int64  `json:"bigBlindAmount"`
	BigBlindStack      int64  `json:"bigBlindStack"`
	PotTotal           int64  `json:"potTotal"`
}

func (BlindsPosted) Type() Type { return TypeBlindsPosted }

// AntePosted records one player's ante in a bomb pot
type AntePosted struct {
	Header
	PlayerID       string `json:"playerId"`
	Amount         int64  `json:"amount"`
	RemainingStack int64  `json:"remainingStack"`
	PotTotal       int64  `json:"potTotal"`
}

func (AntePosted) Type() Type { return TypeAntePosted }

// HoleCardsDealt records every player's two cards
type HoleCardsDealt struct {
	Header
	Cards map[string][]cards.Card `json:"cards"`
}

func (HoleCardsDealt) Type() Type { return TypeHoleCardsDealt }

// PlayerActed records a validated betting action
type PlayerActed struct {
	Header
	PlayerID       string `json:"playerId"`
	Action         string `json:"action"`
	Amount         int64  `json:"amount"`
	Phase          string `json:"phase"`
	RemainingStack int64  `json:"remainingStack"`
	PotTotal       int64  `json:"potTotal"`
	CurrentBet     int64  `json:"currentBet"`
	TimedOut       bool   `json:"timedOut,omitempty"`
}

func (PlayerActed) Type() Type { return TypePlayerActed }

// BettingRoundCompleted closes a street
type BettingRoundCompleted struct {
	Header
	Phase         string `json:"phase"`
	PotTotal      int64  `json:"potTotal"`
	ActivePlayers int    `json:"activePlayers"`
}

func (BettingRoundCompleted) Type() Type { return TypeBettingRoundCompleted }

// CommunityCardsDealt records a flop, turn or river deal. BoardIndex
// is 1 for the second board of a double-board hand.
type CommunityCardsDealt struct {
	Header
	Phase      string       `json:"phase"`
	Cards      []cards.Card `json:"cards"`
	Board      []cards.Card `json:"board"`
	BoardIndex int          `json:"boardIndex"`
}

func (CommunityCardsDealt) Type() Type { return TypeCommunityCardsDealt }

// PlayerShowedCards records a revealed hand at showdown
type PlayerShowedCards struct {
	Header
	PlayerID    string       `json:"playerId"`
	HoleCards   []cards.Card `json:"holeCards"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	Ranking     int32        `json:"ranking"`
	BestFive    []cards.Card `json:"bestFive"`
	ShowOrder   int          `json:"showOrder"`
}

func (PlayerShowedCards) Type() Type { return TypePlayerShowedCards }

// PlayerMuckedCards records a mucked hand at showdown
type PlayerMuckedCards struct {
	Header
	PlayerID  string `json:"playerId"`
	Auto      bool   `json:"auto"`
	ShowOrder int    `json:"showOrder"`
}

func (PlayerMuckedCards) Type() Type { return TypePlayerMuckedCards }

// PotAwarded records the award of one pot (or one board's half of it)
type PotAwarded struct {
	Header
	PotID       string           `json:"potId"`
	Kind        string           `json:"kind"`
	Amount      int64            `json:"amount"`
	Winners     []string         `json:"winners"`
	Shares      map[string]int64 `json:"shares"`
	Description string           `json:"description"`
	WonByFold   bool             `json:"wonByFold"`
	BoardIndex  int              `json:"boardIndex"`
}

func (PotAwarded) Type() Type { return TypePotAwarded }

// HandCompleted closes a hand's event stream
type HandCompleted struct {
	Header
	TotalPot       int64            `json:"totalPot"`
	DurationMs     int64            `json:"durationMs"`
	PlayerCount    int              `json:"playerCount"`
	WentToShowdown bool             `json:"wentToShowdown"`
	FinalPhase     string           `json:"finalPhase"`
	Net            map[string]int64 `json:"net"`
	Winners        []string         `json:"winners"`
}

func (HandCompleted) Type() Type { return TypeHandCompleted }
