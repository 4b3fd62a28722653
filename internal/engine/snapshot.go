package engine

import (
	"github.com/lox/holdemtable/internal/cards"
)

// Snapshot is the sanitised table state sent to one viewer. Hole cards
// belonging to other players are present only when revealed at
// showdown; the deck never appears.
type Snapshot struct {
	TableID    string `json:"tableId"`
	TableName  string `json:"tableName"`
	ViewerID   string `json:"viewerId,omitempty"`
	SmallBlind int64  `json:"smallBlind"`
	BigBlind   int64  `json:"bigBlind"`
	ButtonSeat int    `json:"buttonSeat"`

	HandID     string `json:"handId,omitempty"`
	HandNumber int    `json:"handNumber,omitempty"`
	Phase      string `json:"phase"`

	Board       []cards.Card `json:"board,omitempty"`
	SecondBoard []cards.Card `json:"secondBoard,omitempty"`

	Pots     []PotView `json:"pots,omitempty"`
	TotalPot int64     `json:"totalPot"`

	CurrentBet      int64  `json:"currentBet"`
	MinRaiseTo      int64  `json:"minRaiseTo,omitempty"`
	CurrentPlayerID string `json:"currentPlayerId,omitempty"`

	BombPot     bool  `json:"bombPot,omitempty"`
	DoubleBoard bool  `json:"doubleBoard,omitempty"`
	Ante        int64 `json:"ante,omitempty"`

	Players []PlayerView `json:"players"`

	// Actions is non-nil only when the viewer is the player to act
	Actions *AvailableActions `json:"actions,omitempty"`
}

// PlayerView is one seat as the viewer is allowed to see it
type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Seat     int    `json:"seat"`
	Chips    int64  `json:"chips"`
	Status   string `json:"status"`
	RoundBet int64  `json:"roundBet"`
	TotalBet int64  `json:"totalBet"`

	// HoleCards is set for the viewer's own seat and for hands revealed
	// at showdown
	HoleCards []cards.Card `json:"holeCards,omitempty"`
	// HasCards lets viewers render face-down cards for live opponents
	HasCards bool `json:"hasCards"`

	TimeBankSeconds int  `json:"timeBankSeconds"`
	IsButton        bool `json:"isButton"`
	IsCurrent       bool `json:"isCurrent"`
}

// PotView is a pot as shown to viewers
type PotView struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Amount   int64    `json:"amount"`
	Eligible []string `json:"eligible"`
}

// BuildSnapshot renders the table for one viewer. viewerID "" builds
// the spectator view: no hole cards except showdown reveals.
func BuildSnapshot(t *Table, viewerID string) Snapshot {
	snap := Snapshot{
		TableID:    t.ID,
		TableName:  t.Name,
		ViewerID:   viewerID,
		SmallBlind: t.SmallBlind,
		BigBlind:   t.BigBlind,
		ButtonSeat: t.ButtonSeat,
		Phase:      Waiting.String(),
	}

	h := t.Hand
	if h != nil {
		snap.HandID = h.ID
		snap.HandNumber = h.Number
		snap.Phase = h.Phase.String()
		snap.Board = append([]cards.Card{}, h.Board...)
		snap.SecondBoard = append([]cards.Card{}, h.SecondBoard...)
		snap.TotalPot = h.TotalPot()
		snap.CurrentBet = h.CurrentBet()
		snap.CurrentPlayerID = h.CurrentPlayerID
		snap.BombPot = h.BombPot
		snap.DoubleBoard = h.DoubleBoard
		snap.Ante = h.Ante
		if h.Betting != nil {
			snap.MinRaiseTo = h.Betting.MinRaiseTo()
		}
		for _, pot := range h.Pots {
			snap.Pots = append(snap.Pots, PotView{
				ID:       pot.ID,
				Kind:     pot.Kind.String(),
				Amount:   pot.Amount,
				Eligible: append([]string{}, pot.Eligible...),
			})
		}
	}

	for _, p := range t.SeatedPlayers() {
		pv := PlayerView{
			ID:              p.ID,
			Name:            p.Name,
			Seat:            p.Seat,
			Chips:           p.Chips,
			Status:          p.Status.String(),
			RoundBet:        p.RoundBet,
			TotalBet:        p.TotalBet,
			HasCards:        len(p.HoleCards) > 0,
			TimeBankSeconds: p.TimeBankSeconds,
			IsButton:        p.Seat == t.ButtonSeat,
		}
		if h != nil {
			pv.IsCurrent = p.ID == h.CurrentPlayerID
			if p.ID == viewerID || (h.Shown != nil && h.Shown[p.ID]) {
				pv.HoleCards = append([]cards.Card{}, p.HoleCards...)
			}
		} else if p.ID == viewerID {
			pv.HoleCards = append([]cards.Card{}, p.HoleCards...)
		}
		snap.Players = append(snap.Players, pv)
	}

	if h != nil && viewerID != "" && viewerID == h.CurrentPlayerID && h.Active() {
		if p := t.Player(viewerID); p != nil {
			aa := Available(p, h.Betting, true)
			snap.Actions = &aa
		}
	}
	return snap
}
