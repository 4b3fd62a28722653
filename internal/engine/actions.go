package engine

import (
	"github.com/lox/holdemtable/internal/errkind"
)

// ActionType represents a betting intent
type ActionType int

const (
	Fold ActionType = iota
	Check
	Call
	Raise
	AllIn
)

func (a ActionType) String() string {
	return [...]string{"fold", "check", "call", "raise", "allin"}[a]
}

// ParseActionType converts the wire form of an action
func ParseActionType(s string) (ActionType, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise":
		return Raise, nil
	case "allin", "all-in":
		return AllIn, nil
	default:
		return 0, errkind.New(errkind.InvalidInput, "unknown action %q", s)
	}
}

// ValidatedAction is the outcome of validating an intent. It describes
// exactly how the action mutates the round and the player's stack; the
// validator itself never mutates anything.
type ValidatedAction struct {
	PlayerID string
	Type     ActionType
	// Amount is the chips newly added to the pot by this action
	Amount int64
	// NewRoundBet is the player's total committed this street afterwards
	NewRoundBet int64
	// IsRaise marks a full raise that re-opens betting
	IsRaise        bool
	RemainingStack int64
	TimedOut       bool
}

// AvailableActions is the legal action set for the player to act
type AvailableActions struct {
	PlayerID    string `json:"playerId"`
	CanFold     bool   `json:"canFold"`
	CanCheck    bool   `json:"canCheck"`
	CanCall     bool   `json:"canCall"`
	CallAmount  int64  `json:"callAmount,omitempty"`
	CanRaise    bool   `json:"canRaise"`
	MinRaiseTo  int64  `json:"minRaiseTo,omitempty"`
	MaxRaiseTo  int64  `json:"maxRaiseTo,omitempty"`
	CanAllIn    bool   `json:"canAllIn"`
	AllInAmount int64  `json:"allInAmount,omitempty"`
}

// Available derives the legal action set for (player, round). A player
// out of turn, folded, or all-in has no actions.
func Available(p *Player, br *BettingRound, isTurn bool) AvailableActions {
	aa := AvailableActions{PlayerID: p.ID}
	if !isTurn || !p.CanAct() {
		return aa
	}

	toCall := br.ToCall(p.ID)
	maxTo := p.Chips + br.Bets[p.ID]

	aa.CanFold = true
	aa.CanCheck = toCall == 0
	if toCall > 0 {
		aa.CanCall = true
		aa.CallAmount = min64(toCall, p.Chips)
	}
	if p.Chips > 0 {
		aa.CanAllIn = true
		aa.AllInAmount = p.Chips
	}
	// A raise is available when the player can at least put in a short
	// all-in above the current bet
	if maxTo > br.CurrentBet {
		aa.CanRaise = true
		aa.MinRaiseTo = min64(br.MinRaiseTo(), maxTo)
		aa.MaxRaiseTo = maxTo
	}
	return aa
}

// Validate checks an intent against the round and returns the exact
// mutation it implies. Failures carry a human-readable reason and
// never change state.
func Validate(p *Player, br *BettingRound, isTurn bool, action ActionType, amount int64) (ValidatedAction, error) {
	va := ValidatedAction{PlayerID: p.ID, Type: action}

	if amount < 0 {
		return va, errkind.New(errkind.InvalidInput, "negative amount %d", amount)
	}
	if !isTurn {
		return va, errkind.New(errkind.ValidationRejected, "not your turn")
	}
	if !p.CanAct() {
		return va, errkind.New(errkind.ValidationRejected, "cannot act while %s", p.Status)
	}

	toCall := br.ToCall(p.ID)
	maxTo := p.Chips + br.Bets[p.ID]

	switch action {
	case Fold:
		va.NewRoundBet = br.Bets[p.ID]
		va.RemainingStack = p.Chips
		return va, nil

	case Check:
		if toCall != 0 {
			return va, errkind.New(errkind.ValidationRejected, "cannot check, %d to call", toCall)
		}
		va.NewRoundBet = br.Bets[p.ID]
		va.RemainingStack = p.Chips
		return va, nil

	case Call:
		if toCall == 0 {
			return va, errkind.New(errkind.ValidationRejected, "nothing to call, check instead")
		}
		if toCall >= p.Chips {
			// Calling for the whole stack collapses to all-in
			va.Type = AllIn
			va.Amount = p.Chips
			va.NewRoundBet = br.Bets[p.ID] + p.Chips
			va.RemainingStack = 0
			return va, nil
		}
		va.Amount = toCall
		va.NewRoundBet = br.CurrentBet
		va.RemainingStack = p.Chips - toCall
		return va, nil

	case Raise:
		if amount <= br.CurrentBet {
			return va, errkind.New(errkind.ValidationRejected, "raise to %d must exceed current bet %d", amount, br.CurrentBet)
		}
		if amount > maxTo {
			return va, errkind.New(errkind.ValidationRejected, "insufficient chips: raise to %d with %d behind", amount, p.Chips)
		}
		if amount < br.MinRaiseTo() && amount != maxTo {
			return va, errkind.New(errkind.ValidationRejected, "raise to %d below minimum %d", amount, br.MinRaiseTo())
		}
		va.Amount = amount - br.Bets[p.ID]
		va.NewRoundBet = amount
		va.IsRaise = amount >= br.MinRaiseTo()
		va.RemainingStack = p.Chips - va.Amount
		if va.RemainingStack == 0 {
			va.Type = AllIn
		}
		return va, nil

	case AllIn:
		if p.Chips <= 0 {
			return va, errkind.New(errkind.ValidationRejected, "no chips to go all-in with")
		}
		va.Amount = p.Chips
		va.NewRoundBet = maxTo
		va.IsRaise = maxTo >= br.MinRaiseTo()
		va.RemainingStack = 0
		return va, nil

	default:
		return va, errkind.New(errkind.InvalidInput, "unknown action %d", action)
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
