package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/lox/holdemtable/internal/cards"
	"github.com/lox/holdemtable/internal/errkind"
	"github.com/lox/holdemtable/internal/events"
)

func testTable(buttonSeat int, stacks map[int]int64) *Table {
	seats := make(map[int]*Player)
	for seat, chips := range stacks {
		id := fmt.Sprintf("p%d", seat)
		seats[seat] = &Player{ID: id, Name: id, Seat: seat, Chips: chips, Status: StatusWaiting}
	}
	return &Table{
		ID:         "t1",
		Name:       "t1",
		SmallBlind: 1,
		BigBlind:   2,
		ButtonSeat: buttonSeat,
		Seats:      seats,
	}
}

func stackedDeckFactory(t *testing.T, codes ...string) func() (*cards.Deck, error) {
	t.Helper()
	cs, err := cards.ParseAll(codes...)
	if err != nil {
		t.Fatalf("bad stacked deck: %v", err)
	}
	return func() (*cards.Deck, error) {
		return cards.NewStackedDeck(cs...), nil
	}
}

func newTestOrchestrator(t *testing.T, eventLog events.Log, deck func() (*cards.Deck, error)) *Orchestrator {
	t.Helper()
	return New(testLogger(), eventLog, WithDeckFactory(deck))
}

func act(t *testing.T, o *Orchestrator, tbl *Table, player string, action ActionType, amount int64) *ActionResult {
	t.Helper()
	res, err := o.ExecutePlayerAction(context.Background(), tbl, player, action, amount)
	if err != nil {
		t.Fatalf("%s %v %d failed: %v", player, action, amount, err)
	}
	return res
}

func eventsOfType(t *testing.T, eventLog events.Log, handID string, want events.Type) []events.Event {
	t.Helper()
	evs, err := eventLog.Events(context.Background(), handID)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	var out []events.Event
	for _, e := range evs {
		if e.Type() == want {
			out = append(out, e)
		}
	}
	return out
}

// Walkover: three players, everyone folds to the big blind, who takes
// the blinds without a showdown
func TestHandWalkover(t *testing.T) {
	tbl := testTable(3, map[int]int64{1: 100, 2: 100, 3: 100})
	eventLog := events.NewMemoryLog()
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"2h", "3h", "4h", "5h", "6h", "7h", "8h", "9h", "Th", "Jh", "Qh", "Kh"))

	res, err := o.StartNewHand(context.Background(), tbl)
	if err != nil {
		t.Fatalf("StartNewHand failed: %v", err)
	}
	h := res.Hand

	if h.ButtonSeat != 1 {
		t.Fatalf("Button should rotate to seat 1, got %d", h.ButtonSeat)
	}
	if h.SmallBlindSeat != 2 || h.BigBlindSeat != 3 {
		t.Fatalf("Blind seats wrong: sb=%d bb=%d", h.SmallBlindSeat, h.BigBlindSeat)
	}
	// Three-handed the button acts first preflop
	if h.CurrentPlayerID != "p1" {
		t.Fatalf("Expected p1 to act first, got %s", h.CurrentPlayerID)
	}

	act(t, o, tbl, "p1", Fold, 0)
	final := act(t, o, tbl, "p2", Fold, 0)

	if !final.HandComplete {
		t.Fatal("Hand should complete when one player remains")
	}
	if tbl.Player("p3").Chips != 101 {
		t.Errorf("BB should net +1, has %d", tbl.Player("p3").Chips)
	}
	if tbl.Player("p2").Chips != 99 {
		t.Errorf("SB should net -1, has %d", tbl.Player("p2").Chips)
	}

	completed := eventsOfType(t, eventLog, h.ID, events.TypeHandCompleted)
	if len(completed) != 1 {
		t.Fatalf("Expected 1 HandCompleted, got %d", len(completed))
	}
	done := completed[0].(*events.HandCompleted)
	if done.TotalPot != 3 {
		t.Errorf("Expected total pot 3, got %d", done.TotalPot)
	}
	if done.WentToShowdown {
		t.Error("A walkover never reaches showdown")
	}
	if len(done.Winners) != 1 || done.Winners[0] != "p3" {
		t.Errorf("Expected winner p3, got %v", done.Winners)
	}

	awards := eventsOfType(t, eventLog, h.ID, events.TypePotAwarded)
	if len(awards) != 1 || !awards[0].(*events.PotAwarded).WonByFold {
		t.Error("Expected one won-by-fold pot award")
	}
}

// Heads-up flat call to a checked-down showdown: the button posts the
// small blind and acts first preflop, the big blind first postflop
func TestHandHeadsUpCheckedToShowdown(t *testing.T) {
	tbl := testTable(2, map[int]int64{1: 100, 2: 100})
	eventLog := events.NewMemoryLog()
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"2h", "Ah", "7d", "As", // hole cards: bb, sb, bb, sb
		"3c", "Kd", "8s", "4c", // burn + flop
		"5h", "9d", // burn + turn
		"6c", "Jc")) // burn + river

	res, err := o.StartNewHand(context.Background(), tbl)
	if err != nil {
		t.Fatalf("StartNewHand failed: %v", err)
	}
	h := res.Hand

	if h.ButtonSeat != 1 || h.SmallBlindSeat != 1 || h.BigBlindSeat != 2 {
		t.Fatalf("Heads-up button must post the small blind: %+v", h)
	}
	if h.CurrentPlayerID != "p1" {
		t.Fatalf("Heads-up the button acts first preflop, got %s", h.CurrentPlayerID)
	}

	act(t, o, tbl, "p1", Call, 0)
	r := act(t, o, tbl, "p2", Check, 0)
	if r.Phase != Flop {
		t.Fatalf("Expected flop after BB option check, got %v", r.Phase)
	}
	if h.CurrentPlayerID != "p2" {
		t.Fatalf("Postflop the big blind acts first, got %s", h.CurrentPlayerID)
	}

	act(t, o, tbl, "p2", Check, 0)
	act(t, o, tbl, "p1", Check, 0) // turn
	act(t, o, tbl, "p2", Check, 0)
	act(t, o, tbl, "p1", Check, 0) // river
	act(t, o, tbl, "p2", Check, 0)
	final := act(t, o, tbl, "p1", Check, 0)

	if !final.HandComplete {
		t.Fatal("Hand should complete after river showdown")
	}
	if len(h.Board) != 5 {
		t.Fatalf("Expected 5 board cards, got %d", len(h.Board))
	}

	// p1 holds aces, p2 nothing: pot of 4 to p1
	if tbl.Player("p1").Chips != 102 {
		t.Errorf("Winner should have 102, has %d", tbl.Player("p1").Chips)
	}
	if tbl.Player("p2").Chips != 98 {
		t.Errorf("Loser should have 98, has %d", tbl.Player("p2").Chips)
	}

	completed := eventsOfType(t, eventLog, h.ID, events.TypeHandCompleted)
	done := completed[0].(*events.HandCompleted)
	if !done.WentToShowdown || done.TotalPot != 4 {
		t.Errorf("Showdown for pot 4 expected: %+v", done)
	}
	if done.Net["p1"] != 2 || done.Net["p2"] != -2 {
		t.Errorf("Net wrong: %v", done.Net)
	}
}

// Side pots from a three-way all-in: stacks 10/50/200 produce a main
// pot of 30, a side pot of 80, and C's unmatched 150 back to C
func TestHandThreeWayAllInSidePots(t *testing.T) {
	tbl := testTable(3, map[int]int64{1: 10, 2: 50, 3: 200})
	eventLog := events.NewMemoryLog()
	// a=p1 (button), b=p2 (sb), c=p3 (bb)
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"2h", "3d", "Kc", "Ks", "7d", "8c", // hole: p2, p3, p1 x2
		"4c", "9h", "Ts", "5s", // burn + flop
		"6d", "Qh", // burn + turn
		"2c", "Jd")) // burn + river

	_, err := o.StartNewHand(context.Background(), tbl)
	if err != nil {
		t.Fatalf("StartNewHand failed: %v", err)
	}
	h := tbl.Hand

	act(t, o, tbl, "p1", AllIn, 0)
	act(t, o, tbl, "p2", AllIn, 0)
	final := act(t, o, tbl, "p3", AllIn, 0)

	if !final.HandComplete {
		t.Fatal("All-in hand should run out to completion")
	}

	rounds := eventsOfType(t, eventLog, h.ID, events.TypeBettingRoundCompleted)
	if len(rounds) == 0 {
		t.Fatal("Expected a betting round completion")
	}
	if got := rounds[0].(*events.BettingRoundCompleted).PotTotal; got != 260 {
		t.Errorf("Expected 260 total chips in pots, got %d", got)
	}

	// Chip conservation across the whole table
	var total int64
	for _, p := range tbl.SeatedPlayers() {
		total += p.Chips
	}
	if total != 260 {
		t.Errorf("Chips not conserved: %d", total)
	}
}

// A raise below the legal minimum is rejected with the reason, and
// state does not move
func TestHandShortAllInMinRaiseEnforced(t *testing.T) {
	tbl := testTable(4, map[int]int64{1: 14, 2: 100, 3: 100, 4: 100})
	eventLog := events.NewMemoryLog()
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"Ah", "2c", "Kd", "Qs", "Ad", "7c", "Kc", "Qd", // hole: p2,p3,p4,p1 x2
		"3h", "9h", "8d", "4s", // burn + flop
		"5c", "Th", // burn + turn
		"6d", "Jd")) // burn + river

	_, err := o.StartNewHand(context.Background(), tbl)
	if err != nil {
		t.Fatalf("StartNewHand failed: %v", err)
	}
	h := tbl.Hand

	if h.CurrentPlayerID != "p4" {
		t.Fatalf("UTG (p4) acts first, got %s", h.CurrentPlayerID)
	}

	// UTG raises to 10: min raise becomes 8
	act(t, o, tbl, "p4", Raise, 10)
	// Button's all-in for 14 is a short raise: current bet 14, min
	// raise still 8
	act(t, o, tbl, "p1", AllIn, 0)

	if h.Betting.CurrentBet != 14 || h.Betting.MinRaise != 8 {
		t.Fatalf("Short all-in bookkeeping wrong: bet=%d minRaise=%d",
			h.Betting.CurrentBet, h.Betting.MinRaise)
	}

	act(t, o, tbl, "p2", Call, 0)
	act(t, o, tbl, "p3", Fold, 0)

	// UTG cannot re-raise below 14+8=22
	_, err = o.ExecutePlayerAction(context.Background(), tbl, "p4", Raise, 21)
	if !errkind.Is(err, errkind.ValidationRejected) {
		t.Fatalf("Expected ValidationRejected for raise to 21, got %v", err)
	}
	// The rejection left the hand untouched
	if h.CurrentPlayerID != "p4" || h.Betting.CurrentBet != 14 {
		t.Error("Rejected intent must not mutate the hand")
	}

	final := act(t, o, tbl, "p4", Fold, 0)
	if !final.HandComplete {
		t.Fatal("Hand should run out with one live stack remaining")
	}
}

// Intents out of turn or after completion are rejected as
// precondition failures
func TestHandIntentPreconditions(t *testing.T) {
	tbl := testTable(2, map[int]int64{1: 100, 2: 100})
	eventLog := events.NewMemoryLog()
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"2h", "Ah", "7d", "As", "3c", "Kd", "8s", "4c", "5h", "9d", "6c", "Jc"))

	_, err := o.ExecutePlayerAction(context.Background(), tbl, "p1", Fold, 0)
	if !errkind.Is(err, errkind.PreconditionFailed) {
		t.Errorf("Expected PreconditionFailed with no hand, got %v", err)
	}

	if _, err := o.StartNewHand(context.Background(), tbl); err != nil {
		t.Fatalf("StartNewHand failed: %v", err)
	}

	_, err = o.ExecutePlayerAction(context.Background(), tbl, "p2", Check, 0)
	if !errkind.Is(err, errkind.PreconditionFailed) {
		t.Errorf("Expected PreconditionFailed out of turn, got %v", err)
	}

	_, err = o.StartNewHand(context.Background(), tbl)
	if !errkind.Is(err, errkind.PreconditionFailed) {
		t.Errorf("Expected PreconditionFailed starting over a live hand, got %v", err)
	}
}

// A timed-out player is folded on their behalf and the fold is marked
// in the log
func TestHandTimeoutFold(t *testing.T) {
	tbl := testTable(2, map[int]int64{1: 100, 2: 100})
	tbl.Seats[1].TimeBankSeconds = 10
	eventLog := events.NewMemoryLog()
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"2h", "Ah", "7d", "As", "3c", "Kd", "8s", "4c", "5h", "9d", "6c", "Jc"))

	res, err := o.StartNewHand(context.Background(), tbl)
	if err != nil {
		t.Fatalf("StartNewHand failed: %v", err)
	}

	final, err := o.ForceTimeoutFold(context.Background(), tbl, 10)
	if err != nil {
		t.Fatalf("ForceTimeoutFold failed: %v", err)
	}
	if !final.HandComplete {
		t.Fatal("Heads-up fold should complete the hand")
	}
	if tbl.Seats[1].TimeBankSeconds != 0 {
		t.Errorf("Time bank should be consumed, has %d", tbl.Seats[1].TimeBankSeconds)
	}
	if tbl.Player("p2").Chips != 101 {
		t.Errorf("BB should win the blinds, has %d", tbl.Player("p2").Chips)
	}

	acted := eventsOfType(t, eventLog, res.Hand.ID, events.TypePlayerActed)
	if len(acted) != 1 {
		t.Fatalf("Expected 1 action, got %d", len(acted))
	}
	pa := acted[0].(*events.PlayerActed)
	if pa.Action != "fold" || !pa.TimedOut {
		t.Errorf("Expected timed-out fold, got %+v", pa)
	}
}

// Bomb pot with two boards: no button rotation, antes from everyone,
// betting opens on the flop, each board awards half of every pot
func TestHandBombPotDoubleBoard(t *testing.T) {
	tbl := testTable(1, map[int]int64{1: 100, 2: 100, 3: 100, 4: 100})
	eventLog := events.NewMemoryLog()
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"Ah", "Kd", "Qc", "Js", "Ad", "Kh", "Qd", "Jc", // hole: p2,p3,p4,p1 x2
		"2c", "9h", "8d", "4s", // burn + flop board 0
		"3c", "Th", "7s", "5d", // burn + flop board 1
		"2d", "6h", // burn + turn board 0
		"3d", "2s", // burn + turn board 1
		"4d", "5c", // burn + river board 0
		"6d", "7c")) // burn + river board 1

	res, err := o.StartBombPot(context.Background(), tbl, 5, true)
	if err != nil {
		t.Fatalf("StartBombPot failed: %v", err)
	}
	h := res.Hand

	if h.ButtonSeat != 1 {
		t.Error("Bomb pot must not rotate the button")
	}
	if !h.BombPot || !h.DoubleBoard || h.Ante != 5 {
		t.Errorf("Bomb pot flags wrong: %+v", h)
	}
	if h.Phase != Flop {
		t.Fatalf("Bomb pot opens on the flop, got %v", h.Phase)
	}
	if PotTotal(h.Pots) != 20 {
		t.Errorf("Expected 20 in antes, got %d", PotTotal(h.Pots))
	}
	if len(h.Board) != 3 || len(h.SecondBoard) != 3 {
		t.Fatalf("Both boards should have flops: %d/%d", len(h.Board), len(h.SecondBoard))
	}

	antes := eventsOfType(t, eventLog, h.ID, events.TypeAntePosted)
	if len(antes) != 4 {
		t.Errorf("Expected 4 ante events, got %d", len(antes))
	}

	// First to act is left of the button
	if h.CurrentPlayerID != "p2" {
		t.Fatalf("Expected p2 first, got %s", h.CurrentPlayerID)
	}

	for _, street := range []Phase{Turn, River, Complete} {
		act(t, o, tbl, "p2", Check, 0)
		act(t, o, tbl, "p3", Check, 0)
		act(t, o, tbl, "p4", Check, 0)
		r := act(t, o, tbl, "p1", Check, 0)
		if street == Complete {
			if !r.HandComplete {
				t.Fatal("Hand should complete after river checks")
			}
		} else if r.Phase != street {
			t.Fatalf("Expected %v, got %v", street, r.Phase)
		}
	}

	if len(h.Board) != 5 || len(h.SecondBoard) != 5 {
		t.Errorf("Both boards should run to five cards: %d/%d", len(h.Board), len(h.SecondBoard))
	}

	// p2 holds aces and wins both halves: 10 + 10 on a 20 pot
	awards := eventsOfType(t, eventLog, h.ID, events.TypePotAwarded)
	if len(awards) != 2 {
		t.Fatalf("Expected 2 awards (one per board), got %d", len(awards))
	}
	a0 := awards[0].(*events.PotAwarded)
	a1 := awards[1].(*events.PotAwarded)
	if a0.BoardIndex != 0 || a0.Amount != 10 || a1.BoardIndex != 1 || a1.Amount != 10 {
		t.Errorf("Each board awards half the pot: %+v %+v", a0, a1)
	}
	if tbl.Player("p2").Chips != 115 {
		t.Errorf("Winner should have 115, has %d", tbl.Player("p2").Chips)
	}

	var total int64
	for _, p := range tbl.SeatedPlayers() {
		total += p.Chips
	}
	if total != 400 {
		t.Errorf("Chips not conserved: %d", total)
	}
}

// A player quitting mid-hand out of turn is folded on the record: the
// fold lands in the event stream, the action stays where it was, and
// the street still closes cleanly with the folded player's chips in
// the pot
func TestHandOutOfTurnFoldKeepsActionInPlace(t *testing.T) {
	tbl := testTable(3, map[int]int64{1: 100, 2: 100, 3: 100})
	eventLog := events.NewMemoryLog()
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"2h", "3h", "4h", "5h", "6h", "7h", "8h", "9h", "Th", "Jh", "Qh", "Kh"))

	res, err := o.StartNewHand(context.Background(), tbl)
	if err != nil {
		t.Fatalf("StartNewHand failed: %v", err)
	}
	h := res.Hand
	if h.CurrentPlayerID != "p1" {
		t.Fatalf("Expected p1 to act first, got %s", h.CurrentPlayerID)
	}

	// The big blind quits while the button is still to act
	folded, err := o.FoldLeavingPlayer(context.Background(), tbl, "p3")
	if err != nil {
		t.Fatalf("FoldLeavingPlayer failed: %v", err)
	}
	if folded.HandComplete {
		t.Fatal("Two players remain, the hand must continue")
	}
	if h.CurrentPlayerID != "p1" {
		t.Fatalf("Out-of-turn fold must not move the action, got %s", h.CurrentPlayerID)
	}
	if p := tbl.Player("p3"); p.Status != StatusFolded || p.HoleCards != nil {
		t.Errorf("Leaver should be folded with no cards: %+v", p)
	}

	acted := eventsOfType(t, eventLog, h.ID, events.TypePlayerActed)
	if len(acted) != 1 {
		t.Fatalf("Expected the fold on the record, got %d actions", len(acted))
	}
	if pa := acted[0].(*events.PlayerActed); pa.PlayerID != "p3" || pa.Action != "fold" {
		t.Errorf("Expected a fold by p3, got %+v", pa)
	}

	// The remaining players close the street over the dead blind
	act(t, o, tbl, "p1", Call, 0)
	r := act(t, o, tbl, "p2", Call, 0)
	if r.Phase != Flop {
		t.Fatalf("Expected the flop, got %v", r.Phase)
	}

	final := act(t, o, tbl, "p2", Fold, 0)
	if !final.HandComplete {
		t.Fatal("Hand should complete when one player remains")
	}
	if tbl.Player("p1").Chips != 104 {
		t.Errorf("Winner should take the 6-chip pot, has %d", tbl.Player("p1").Chips)
	}

	var total int64
	for _, p := range tbl.SeatedPlayers() {
		total += p.Chips
	}
	if total != 300 {
		t.Errorf("Chips not conserved: %d", total)
	}

	// With the hand over there is nothing left to fold out of
	if _, err := o.FoldLeavingPlayer(context.Background(), tbl, "p2"); !errkind.Is(err, errkind.PreconditionFailed) {
		t.Errorf("Expected PreconditionFailed after completion, got %v", err)
	}
}

// An out-of-turn fold that leaves one player standing ends the hand
// with an uncontested award
func TestHandOutOfTurnFoldEndsHandWhenOneRemains(t *testing.T) {
	tbl := testTable(2, map[int]int64{1: 100, 2: 100})
	eventLog := events.NewMemoryLog()
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"2h", "Ah", "7d", "As", "3c", "Kd", "8s", "4c", "5h", "9d", "6c", "Jc"))

	res, err := o.StartNewHand(context.Background(), tbl)
	if err != nil {
		t.Fatalf("StartNewHand failed: %v", err)
	}
	h := res.Hand
	if h.CurrentPlayerID != "p1" {
		t.Fatalf("Heads-up the button acts first, got %s", h.CurrentPlayerID)
	}

	// The big blind quits with the action on the button
	folded, err := o.FoldLeavingPlayer(context.Background(), tbl, "p2")
	if err != nil {
		t.Fatalf("FoldLeavingPlayer failed: %v", err)
	}
	if !folded.HandComplete {
		t.Fatal("Folding down to one player must complete the hand")
	}
	if tbl.Player("p1").Chips != 102 || tbl.Player("p2").Chips != 98 {
		t.Errorf("Button should collect the blinds: %d/%d",
			tbl.Player("p1").Chips, tbl.Player("p2").Chips)
	}

	awards := eventsOfType(t, eventLog, h.ID, events.TypePotAwarded)
	if len(awards) != 1 || !awards[0].(*events.PotAwarded).WonByFold {
		t.Error("Expected one won-by-fold pot award")
	}
	completed := eventsOfType(t, eventLog, h.ID, events.TypeHandCompleted)
	if len(completed) != 1 {
		t.Fatalf("Expected 1 HandCompleted, got %d", len(completed))
	}
	done := completed[0].(*events.HandCompleted)
	if done.WentToShowdown || len(done.Winners) != 1 || done.Winners[0] != "p1" {
		t.Errorf("Expected p1 winning without showdown: %+v", done)
	}
}

// Sequence numbers in a hand's stream are 1..N with no gaps
func TestHandEventSequenceContiguous(t *testing.T) {
	tbl := testTable(2, map[int]int64{1: 100, 2: 100})
	eventLog := events.NewMemoryLog()
	o := newTestOrchestrator(t, eventLog, stackedDeckFactory(t,
		"2h", "Ah", "7d", "As", "3c", "Kd", "8s", "4c", "5h", "9d", "6c", "Jc"))

	res, err := o.StartNewHand(context.Background(), tbl)
	if err != nil {
		t.Fatalf("StartNewHand failed: %v", err)
	}
	act(t, o, tbl, "p1", Fold, 0)

	evs, err := eventLog.Events(context.Background(), res.Hand.ID)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	for i, e := range evs {
		if e.Head().Seq != uint64(i+1) {
			t.Fatalf("Event %d has seq %d", i, e.Head().Seq)
		}
	}
}
