// Package replay folds a hand's event stream back into hand state.
// Replaying a completed hand's full stream produces a Hand equal to
// the one the live table finished with, which is the property the
// event log exists to guarantee.
package replay

import (
	"context"

	"github.com/lox/holdemtable/internal/cards"
	"github.com/lox/holdemtable/internal/engine"
	"github.com/lox/holdemtable/internal/errkind"
	"github.com/lox/holdemtable/internal/events"
)

// reducer accumulates hand state plus the bookkeeping the pots need
type reducer struct {
	hand *engine.Hand

	contributions map[string]int64
	folded        map[string]bool
	allIn         map[string]bool
}

// Reduce folds an ordered event stream into a Hand. The stream may be
// a prefix of a hand; the result is the hand as of the last event.
func Reduce(evs []events.Event) (*engine.Hand, error) {
	if len(evs) == 0 {
		return nil, errkind.New(errkind.InvalidInput, "cannot replay an empty stream")
	}

	r := &reducer{
		contributions: make(map[string]int64),
		folded:        make(map[string]bool),
		allIn:         make(map[string]bool),
	}
	for i, e := range evs {
		if want := uint64(i + 1); e.Head().Seq != want {
			return nil, errkind.New(errkind.InvalidInput, "stream out of order: event %d has seq %d", i, e.Head().Seq)
		}
		if err := r.apply(e); err != nil {
			return nil, err
		}
	}
	return r.hand, nil
}

// ReplayHand loads a hand's stream from the log and reduces it
func ReplayHand(ctx context.Context, eventLog events.Log, handID string) (*engine.Hand, error) {
	evs, err := eventLog.Events(ctx, handID)
	if err != nil {
		return nil, err
	}
	return Reduce(evs)
}

func (r *reducer) apply(e events.Event) error {
	if r.hand == nil {
		started, ok := e.(*events.HandStarted)
		if !ok {
			return errkind.New(errkind.InvalidInput, "stream must open with hand_started, got %s", e.Type())
		}
		return r.start(started)
	}

	switch ev := e.(type) {
	case *events.HandStarted:
		return errkind.New(errkind.InvalidInput, "duplicate hand_started in stream")

	case *events.BlindsPosted:
		r.contributions[ev.SmallBlindPlayerID] += ev.SmallBlindAmount
		r.contributions[ev.BigBlindPlayerID] += ev.BigBlindAmount
		if ev.SmallBlindStack == 0 {
			r.allIn[ev.SmallBlindPlayerID] = true
		}
		if ev.BigBlindStack == 0 {
			r.allIn[ev.BigBlindPlayerID] = true
		}
		r.hand.Betting = engine.NewPreflopRound(
			r.hand.SmallBlind, r.hand.BigBlind,
			ev.SmallBlindPlayerID, ev.BigBlindPlayerID,
			ev.SmallBlindAmount, ev.BigBlindAmount,
		)

	case *events.AntePosted:
		r.contributions[ev.PlayerID] += ev.Amount
		if ev.RemainingStack == 0 {
			r.allIn[ev.PlayerID] = true
		}
		if r.hand.Betting == nil {
			r.hand.Betting = engine.NewBettingRound(r.hand.BigBlind)
		}
		r.hand.Betting.Bets[ev.PlayerID] = ev.Amount

	case *events.HoleCardsDealt:
		// Hole cards live on table players, not the hand; nothing to
		// fold in

	case *events.PlayerActed:
		r.playerActed(ev)

	case *events.BettingRoundCompleted:
		r.hand.Pots = engine.BuildPots(r.contributions, r.folded, r.allIn, r.hand.PlayerIDs)

	case *events.CommunityCardsDealt:
		phase, err := engine.ParsePhase(ev.Phase)
		if err != nil {
			return err
		}
		if r.hand.Phase != phase {
			r.hand.Phase = phase
			if r.hand.Betting != nil {
				r.hand.Betting.Reset()
			}
		}
		board := append([]cards.Card{}, ev.Board...)
		if ev.BoardIndex == 0 {
			r.hand.Board = board
		} else {
			r.hand.SecondBoard = board
		}

	case *events.PlayerShowedCards:
		r.hand.Phase = engine.Showdown
		r.hand.CurrentPlayerID = ""
		r.hand.Shown[ev.PlayerID] = true

	case *events.PlayerMuckedCards:
		r.hand.Phase = engine.Showdown
		r.hand.CurrentPlayerID = ""

	case *events.PotAwarded:
		if !ev.WonByFold {
			r.hand.Phase = engine.Showdown
			r.hand.CurrentPlayerID = ""
		}

	case *events.HandCompleted:
		r.hand.Phase = engine.Complete
		r.hand.CurrentPlayerID = ""
		r.hand.Pots = nil
		r.hand.Betting = nil
		r.hand.EndedAt = ev.Head().At

	default:
		return errkind.New(errkind.InvalidInput, "unknown event type %s", e.Type())
	}
	return nil
}

func (r *reducer) start(ev *events.HandStarted) error {
	r.hand = &engine.Hand{
		ID:             ev.Head().HandID,
		TableID:        ev.TableID,
		Number:         ev.HandNumber,
		Phase:          engine.Waiting,
		ButtonSeat:     ev.ButtonSeat,
		SmallBlindSeat: ev.SmallBlindSeat,
		BigBlindSeat:   ev.BigBlindSeat,
		SmallBlind:     ev.SmallBlind,
		BigBlind:       ev.BigBlind,
		PlayerIDs:      append([]string{}, ev.PlayerIDs...),
		BombPot:        ev.BombPot,
		DoubleBoard:    ev.DoubleBoard,
		Ante:           ev.Ante,
		Shown:          make(map[string]bool),
		StartedAt:      ev.Head().At,
	}
	return nil
}

// playerActed re-applies a betting action to the reconstructed ledger
func (r *reducer) playerActed(ev *events.PlayerActed) {
	phase, err := engine.ParsePhase(ev.Phase)
	if err == nil && r.hand.Phase != phase {
		r.hand.Phase = phase
	}
	r.contributions[ev.PlayerID] += ev.Amount

	action, err := engine.ParseActionType(ev.Action)
	if err != nil {
		return
	}
	if action == engine.Fold {
		r.folded[ev.PlayerID] = true
	}
	if ev.RemainingStack == 0 && action != engine.Fold && action != engine.Check {
		r.allIn[ev.PlayerID] = true
	}

	br := r.hand.Betting
	if br == nil {
		br = engine.NewBettingRound(r.hand.BigBlind)
		r.hand.Betting = br
	}
	newRoundBet := br.Bets[ev.PlayerID] + ev.Amount
	br.Apply(engine.ValidatedAction{
		PlayerID:       ev.PlayerID,
		Type:           action,
		Amount:         ev.Amount,
		NewRoundBet:    newRoundBet,
		IsRaise:        newRoundBet > br.CurrentBet && newRoundBet >= br.MinRaiseTo(),
		RemainingStack: ev.RemainingStack,
		TimedOut:       ev.TimedOut,
	})
}
