package engine

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdemtable/internal/cards"
	"github.com/lox/holdemtable/internal/errkind"
	"github.com/lox/holdemtable/internal/eval"
	"github.com/lox/holdemtable/internal/events"
	"github.com/lox/holdemtable/internal/handid"
)

// Broadcaster fans sanitised state to connected viewers. A slow viewer
// must not block the table: implementations drop stale snapshots.
type Broadcaster interface {
	SnapshotForViewer(tableID, viewerID string, snap Snapshot)
}

// ActionTimer bounds each player's decision time. The orchestrator
// starts a timer when action moves and cancels it when a valid intent
// arrives; Cancel returns the time-bank seconds consumed.
type ActionTimer interface {
	Start(tableID, handID, playerID string, actionSeconds int, bankEnabled bool, bankSeconds int)
	Cancel(tableID, playerID string) int
	StopAll(tableID string)
}

// Orchestrator drives hands at tables: dealing, intent application,
// phase advancement, showdown and award. Calls for the same table must
// be serialised by the caller (the dispatcher runs one worker per
// table); distinct tables may progress in parallel.
type Orchestrator struct {
	logger      *log.Logger
	clock       quartz.Clock
	events      events.Log
	broadcaster Broadcaster
	timers      ActionTimer
	evaluate    EvalFunc
	newDeck     func() (*cards.Deck, error)
	ids         *handid.Generator

	mu      sync.Mutex
	running map[string]*handRuntime
}

// handRuntime is the orchestrator-private state of a live hand; it
// never appears in events or snapshots
type handRuntime struct {
	deck           *cards.Deck
	startingStacks map[string]int64
	muckRequests   map[string]bool
	seq            uint64
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock injects a quartz clock (mock clocks in tests)
func WithClock(c quartz.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithBroadcaster attaches the snapshot fan-out
func WithBroadcaster(b Broadcaster) Option {
	return func(o *Orchestrator) { o.broadcaster = b }
}

// WithTimers attaches the action-timer subsystem
func WithTimers(t ActionTimer) Option {
	return func(o *Orchestrator) { o.timers = t }
}

// WithEvaluator swaps the hand evaluator; any evaluator whose ranking
// is consistent with standard hold'em works
func WithEvaluator(fn EvalFunc) Option {
	return func(o *Orchestrator) { o.evaluate = fn }
}

// WithDeckFactory swaps deck construction; tests stack decks here
func WithDeckFactory(fn func() (*cards.Deck, error)) Option {
	return func(o *Orchestrator) { o.newDeck = fn }
}

// WithIDGenerator injects the hand id generator
func WithIDGenerator(g *handid.Generator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// New creates an orchestrator writing to the given event log
func New(logger *log.Logger, eventLog events.Log, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:   logger.WithPrefix("orchestrator"),
		clock:    quartz.NewReal(),
		events:   eventLog,
		evaluate: eval.Evaluate,
		ids:      handid.NewGenerator(nil, nil),
		running:  make(map[string]*handRuntime),
	}
	o.newDeck = func() (*cards.Deck, error) {
		d := cards.NewDeck()
		if err := d.Shuffle(); err != nil {
			return nil, err
		}
		return d, nil
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandStartResult is returned from StartNewHand and StartBombPot
type HandStartResult struct {
	Hand      *Hand
	HoleCards map[string][]cards.Card
}

// ActionResult describes the effect of an applied intent
type ActionResult struct {
	Action       ValidatedAction
	Phase        Phase
	HandComplete bool
}

// StartNewHand rotates the button, posts blinds, shuffles and deals,
// and opens preflop action. Requires at least two players able to
// play (seated, not away, chips behind).
func (o *Orchestrator) StartNewHand(ctx context.Context, t *Table) (*HandStartResult, error) {
	if t.Hand.Active() {
		return nil, errkind.New(errkind.PreconditionFailed, "table %s already has a hand in progress", t.ID)
	}
	if t.ActiveCount() < 2 {
		return nil, errkind.New(errkind.PreconditionFailed, "need at least 2 players, have %d", t.ActiveCount())
	}

	canPlay := func(p *Player) bool { return p.Status != StatusAway && p.Chips > 0 }
	t.ButtonSeat = t.NextEligibleSeat(t.ButtonSeat, canPlay)

	h, rt, err := o.openHand(t, canPlay)
	if err != nil {
		return nil, err
	}

	// Heads-up the button posts the small blind; otherwise the blinds
	// are the two seats clockwise from the button
	if len(h.PlayerIDs) == 2 {
		h.SmallBlindSeat = h.ButtonSeat
		h.BigBlindSeat = t.NextEligibleSeat(h.ButtonSeat, canPlay)
	} else {
		h.SmallBlindSeat = t.NextEligibleSeat(h.ButtonSeat, canPlay)
		h.BigBlindSeat = t.NextEligibleSeat(h.SmallBlindSeat, canPlay)
	}

	sb := t.PlayerAtSeat(h.SmallBlindSeat)
	bb := t.PlayerAtSeat(h.BigBlindSeat)
	sbPosted := sb.commit(t.SmallBlind)
	bbPosted := bb.commit(t.BigBlind)
	h.Betting = NewPreflopRound(t.SmallBlind, t.BigBlind, sb.ID, bb.ID, sbPosted, bbPosted)

	hdr, err := o.append(ctx, rt, h, &events.HandStarted{
		TableID:        t.ID,
		HandNumber:     h.Number,
		ButtonSeat:     h.ButtonSeat,
		SmallBlindSeat: h.SmallBlindSeat,
		BigBlindSeat:   h.BigBlindSeat,
		SmallBlind:     t.SmallBlind,
		BigBlind:       t.BigBlind,
		PlayerIDs:      h.PlayerIDs,
	})
	if err != nil {
		return nil, err
	}
	h.StartedAt = hdr.At

	if _, err := o.append(ctx, rt, h, &events.BlindsPosted{
		SmallBlindPlayerID: sb.ID,
		SmallBlindAmount:   sbPosted,
		SmallBlindStack:    sb.Chips,
		BigBlindPlayerID:   bb.ID,
		BigBlindAmount:     bbPosted,
		BigBlindStack:      bb.Chips,
		PotTotal:           h.TotalPot(),
	}); err != nil {
		return nil, err
	}

	dealt, err := o.dealHoleCards(ctx, t, h, rt)
	if err != nil {
		return nil, err
	}

	if err := h.Transition(Preflop); err != nil {
		return nil, err
	}

	// First to act: UTG multi-way, the small blind (button) heads-up
	if len(h.PlayerIDs) == 2 {
		h.CurrentPlayerID = sb.ID
	} else {
		h.CurrentPlayerID = o.nextToAct(t, h, h.BigBlindSeat)
	}

	o.logger.Info("hand started",
		"table", t.ID, "hand", h.ID, "number", h.Number,
		"players", len(h.PlayerIDs), "button", h.ButtonSeat)

	o.startTimer(t, h)
	o.broadcast(t)
	return &HandStartResult{Hand: h, HoleCards: dealt}, nil
}

// StartBombPot starts a hand where every player antes and betting
// begins on the flop. The button does not rotate. With doubleBoard two
// boards run and each awards half of every pot.
func (o *Orchestrator) StartBombPot(ctx context.Context, t *Table, ante int64, doubleBoard bool) (*HandStartResult, error) {
	if t.Hand.Active() {
		return nil, errkind.New(errkind.PreconditionFailed, "table %s already has a hand in progress", t.ID)
	}
	if ante <= 0 {
		return nil, errkind.New(errkind.InvalidInput, "bomb pot ante must be positive, got %d", ante)
	}
	if t.ActiveCount() < 2 {
		return nil, errkind.New(errkind.PreconditionFailed, "need at least 2 players, have %d", t.ActiveCount())
	}

	canPlay := func(p *Player) bool { return p.Status != StatusAway && p.Chips > 0 }
	h, rt, err := o.openHand(t, canPlay)
	if err != nil {
		return nil, err
	}
	h.BombPot = true
	h.DoubleBoard = doubleBoard
	h.Ante = ante
	h.Betting = NewBettingRound(t.BigBlind)

	hdr, err := o.append(ctx, rt, h, &events.HandStarted{
		TableID:     t.ID,
		HandNumber:  h.Number,
		ButtonSeat:  h.ButtonSeat,
		SmallBlind:  t.SmallBlind,
		BigBlind:    t.BigBlind,
		PlayerIDs:   h.PlayerIDs,
		BombPot:     true,
		DoubleBoard: doubleBoard,
		Ante:        ante,
	})
	if err != nil {
		return nil, err
	}
	h.StartedAt = hdr.At

	for _, id := range h.PlayerIDs {
		p := t.Player(id)
		posted := p.commit(ante)
		// Credit the ledger so pot totals are right before the antes
		// close into the pot; the flop transition resets it
		h.Betting.Bets[id] = posted
		if _, err := o.append(ctx, rt, h, &events.AntePosted{
			PlayerID:       id,
			Amount:         posted,
			RemainingStack: p.Chips,
			PotTotal:       h.TotalPot(),
		}); err != nil {
			return nil, err
		}
	}

	dealt, err := o.dealHoleCards(ctx, t, h, rt)
	if err != nil {
		return nil, err
	}

	// Antes close into the pot before any betting
	o.closeBets(t, h)

	if err := h.Transition(Flop); err != nil {
		return nil, err
	}
	if err := o.dealCommunity(ctx, t, h, rt); err != nil {
		return nil, err
	}

	h.CurrentPlayerID = o.nextToAct(t, h, h.ButtonSeat)
	if h.CurrentPlayerID == "" {
		// Every player ante'd all-in: run the board out
		if err := o.runOut(ctx, t, h, rt); err != nil {
			return nil, err
		}
		return &HandStartResult{Hand: h, HoleCards: dealt}, nil
	}

	o.logger.Info("bomb pot started",
		"table", t.ID, "hand", h.ID, "ante", ante, "doubleBoard", doubleBoard)

	o.startTimer(t, h)
	o.broadcast(t)
	return &HandStartResult{Hand: h, HoleCards: dealt}, nil
}

// openHand builds the Hand shell shared by normal and bomb-pot starts
func (o *Orchestrator) openHand(t *Table, canPlay func(*Player) bool) (*Hand, *handRuntime, error) {
	deck, err := o.newDeck()
	if err != nil {
		return nil, nil, err
	}

	t.HandCount++
	h := &Hand{
		ID:         o.ids.New(),
		TableID:    t.ID,
		Number:     t.HandCount,
		Phase:      Waiting,
		ButtonSeat: t.ButtonSeat,
		SmallBlind: t.SmallBlind,
		BigBlind:   t.BigBlind,
		Shown:      make(map[string]bool),
	}

	rt := &handRuntime{
		deck:           deck,
		startingStacks: make(map[string]int64),
		muckRequests:   make(map[string]bool),
	}

	for _, p := range t.SeatedPlayers() {
		if !canPlay(p) {
			if p.Status != StatusAway {
				p.Status = StatusWaiting
			}
			p.HoleCards = nil
			p.RoundBet = 0
			p.TotalBet = 0
			continue
		}
		p.Status = StatusActive
		p.HoleCards = nil
		p.RoundBet = 0
		p.TotalBet = 0
		h.PlayerIDs = append(h.PlayerIDs, p.ID)
		rt.startingStacks[p.ID] = p.Chips
	}

	t.Hand = h
	o.mu.Lock()
	o.running[t.ID] = rt
	o.mu.Unlock()
	return h, rt, nil
}

// ExecutePlayerAction validates and applies a betting intent from the
// player currently to act
func (o *Orchestrator) ExecutePlayerAction(ctx context.Context, t *Table, playerID string, action ActionType, amount int64) (*ActionResult, error) {
	h := t.Hand
	if !h.Active() {
		return nil, errkind.New(errkind.PreconditionFailed, "no active hand at table %s", t.ID)
	}
	if playerID != h.CurrentPlayerID {
		return nil, errkind.New(errkind.PreconditionFailed, "player %s is not the current player", playerID)
	}
	p := t.Player(playerID)
	if p == nil {
		return nil, errkind.New(errkind.PreconditionFailed, "player %s is not seated at table %s", playerID, t.ID)
	}

	va, err := Validate(p, h.Betting, true, action, amount)
	if err != nil {
		return nil, err
	}
	return o.applyAction(ctx, t, h, va)
}

// ForceTimeoutFold folds the current player on behalf of the expired
// action timer and charges the consumed time bank
func (o *Orchestrator) ForceTimeoutFold(ctx context.Context, t *Table, timeBankConsumed int) (*ActionResult, error) {
	h := t.Hand
	if !h.Active() || h.CurrentPlayerID == "" {
		return nil, errkind.New(errkind.PreconditionFailed, "no player to act at table %s", t.ID)
	}
	p := t.Player(h.CurrentPlayerID)

	p.TimeBankSeconds -= timeBankConsumed
	if p.TimeBankSeconds < 0 {
		p.TimeBankSeconds = 0
	}

	o.logger.Info("action timeout, folding",
		"table", t.ID, "hand", h.ID, "player", p.ID, "bankConsumed", timeBankConsumed)

	va := ValidatedAction{
		PlayerID:       p.ID,
		Type:           Fold,
		NewRoundBet:    h.Betting.Bets[p.ID],
		RemainingStack: p.Chips,
		TimedOut:       true,
	}
	return o.applyAction(ctx, t, h, va)
}

// FoldLeavingPlayer folds a dealt-in player who is quitting the table,
// whether or not the action is on them. The fold is recorded like any
// other, but an out-of-turn fold never moves the action: the player to
// act still owes their decision.
func (o *Orchestrator) FoldLeavingPlayer(ctx context.Context, t *Table, playerID string) (*ActionResult, error) {
	h := t.Hand
	if !h.Active() || !h.HasPlayer(playerID) {
		return nil, errkind.New(errkind.PreconditionFailed, "player %s is not contesting a hand", playerID)
	}
	if playerID == h.CurrentPlayerID {
		return o.ExecutePlayerAction(ctx, t, playerID, Fold, 0)
	}
	p := t.Player(playerID)
	if p == nil {
		return nil, errkind.New(errkind.PreconditionFailed, "player %s is not seated at table %s", playerID, t.ID)
	}
	if !p.CanAct() {
		return nil, errkind.New(errkind.PreconditionFailed, "player %s cannot fold while %s", playerID, p.Status)
	}
	rt := o.runtime(t.ID)
	if rt == nil {
		return nil, errkind.New(errkind.InvalidState, "no runtime for hand %s", h.ID)
	}

	va := ValidatedAction{
		PlayerID:       playerID,
		Type:           Fold,
		NewRoundBet:    h.Betting.Bets[playerID],
		RemainingStack: p.Chips,
	}
	p.Status = StatusFolded
	p.HoleCards = nil
	h.Betting.Apply(va)

	if _, err := o.append(ctx, rt, h, &events.PlayerActed{
		PlayerID:       playerID,
		Action:         Fold.String(),
		Phase:          h.Phase.String(),
		RemainingStack: p.Chips,
		PotTotal:       h.TotalPot(),
		CurrentBet:     h.Betting.CurrentBet,
	}); err != nil {
		return nil, err
	}

	// An out-of-turn fold cannot complete the betting round, but it can
	// leave one player standing, which ends the hand
	inHand := 0
	var lastInHand *Player
	for _, q := range o.handPlayers(t, h) {
		if q.InHand() {
			inHand++
			lastInHand = q
		}
	}
	if inHand == 1 {
		o.closeBets(t, h)
		err := o.emitRoundCompleted(ctx, rt, h, inHand)
		if err == nil {
			err = o.awardUncontested(ctx, t, h, rt, lastInHand)
		}
		if err != nil {
			if errkind.Is(err, errkind.InvalidState) {
				o.abortHand(ctx, t, h, rt, err)
			}
			return nil, err
		}
		return &ActionResult{Action: va, Phase: h.Phase, HandComplete: h.Phase == Complete}, nil
	}

	o.broadcast(t)
	return &ActionResult{Action: va, Phase: h.Phase, HandComplete: false}, nil
}

// GetAvailableActions returns the legal action set for the player to
// act, or nil when no hand is running or nobody is to act
func (o *Orchestrator) GetAvailableActions(t *Table) *AvailableActions {
	h := t.Hand
	if !h.Active() || h.CurrentPlayerID == "" {
		return nil
	}
	p := t.Player(h.CurrentPlayerID)
	if p == nil {
		return nil
	}
	aa := Available(p, h.Betting, true)
	return &aa
}

// RequestShowdownMuck registers the player's wish to muck rather than
// show at showdown. Honoured only when their hand is strictly beaten.
func (o *Orchestrator) RequestShowdownMuck(t *Table, playerID string) bool {
	h := t.Hand
	if h == nil || h.Phase == Complete || !h.HasPlayer(playerID) {
		return false
	}
	o.mu.Lock()
	rt := o.running[t.ID]
	o.mu.Unlock()
	if rt == nil {
		return false
	}
	rt.muckRequests[playerID] = true
	return true
}

// applyAction mutates the round and player, records the event, then
// advances turn order, street, or showdown as the action demands
func (o *Orchestrator) applyAction(ctx context.Context, t *Table, h *Hand, va ValidatedAction) (*ActionResult, error) {
	rt := o.runtime(t.ID)
	if rt == nil {
		return nil, errkind.New(errkind.InvalidState, "no runtime for hand %s", h.ID)
	}

	p := t.Player(va.PlayerID)
	if o.timers != nil {
		consumed := o.timers.Cancel(t.ID, va.PlayerID)
		if consumed > 0 {
			p.TimeBankSeconds -= consumed
			if p.TimeBankSeconds < 0 {
				p.TimeBankSeconds = 0
			}
		}
	}

	switch va.Type {
	case Fold:
		p.Status = StatusFolded
		p.HoleCards = nil
	case Check:
		// No chips move
	default:
		p.commit(va.Amount)
	}
	h.Betting.Apply(va)

	if _, err := o.append(ctx, rt, h, &events.PlayerActed{
		PlayerID:       va.PlayerID,
		Action:         va.Type.String(),
		Amount:         va.Amount,
		Phase:          h.Phase.String(),
		RemainingStack: p.Chips,
		PotTotal:       h.TotalPot(),
		CurrentBet:     h.Betting.CurrentBet,
		TimedOut:       va.TimedOut,
	}); err != nil {
		return nil, err
	}

	if err := o.advance(ctx, t, h, rt, va); err != nil {
		if errkind.Is(err, errkind.InvalidState) {
			o.abortHand(ctx, t, h, rt, err)
		}
		return nil, err
	}

	o.broadcast(t)
	return &ActionResult{Action: va, Phase: h.Phase, HandComplete: h.Phase == Complete}, nil
}

// advance moves the hand forward after an applied action
func (o *Orchestrator) advance(ctx context.Context, t *Table, h *Hand, rt *handRuntime, va ValidatedAction) error {
	players := o.handPlayers(t, h)

	inHand := 0
	var lastInHand *Player
	for _, p := range players {
		if p.InHand() {
			inHand++
			lastInHand = p
		}
	}

	// Everyone else folded: the last player standing takes every pot
	// without a showdown
	if inHand == 1 {
		o.closeBets(t, h)
		if err := o.emitRoundCompleted(ctx, rt, h, inHand); err != nil {
			return err
		}
		return o.awardUncontested(ctx, t, h, rt, lastInHand)
	}

	if !h.Betting.Complete(players) {
		p := t.Player(va.PlayerID)
		h.CurrentPlayerID = o.nextToAct(t, h, p.Seat)
		if h.CurrentPlayerID != "" {
			o.startTimer(t, h)
			return nil
		}
		// Nobody can act: fall through to close the street
	}

	o.closeBets(t, h)
	if err := o.emitRoundCompleted(ctx, rt, h, inHand); err != nil {
		return err
	}

	if h.Phase == River {
		return o.runShowdown(ctx, t, h, rt)
	}

	// When at most one player still has chips to bet, run the board
	// out with no further betting
	actable := 0
	for _, p := range players {
		if p.CanAct() {
			actable++
		}
	}
	if actable <= 1 {
		return o.runOut(ctx, t, h, rt)
	}

	if err := h.Transition(h.Phase + 1); err != nil {
		return err
	}
	if err := o.dealCommunity(ctx, t, h, rt); err != nil {
		return err
	}
	h.CurrentPlayerID = o.nextToAct(t, h, h.ButtonSeat)
	if h.CurrentPlayerID == "" {
		return o.runOut(ctx, t, h, rt)
	}
	o.startTimer(t, h)
	return nil
}

// runOut deals the remaining streets with no betting and goes to
// showdown
func (o *Orchestrator) runOut(ctx context.Context, t *Table, h *Hand, rt *handRuntime) error {
	for h.Phase != River {
		if err := h.Transition(h.Phase + 1); err != nil {
			return err
		}
		if err := o.dealCommunity(ctx, t, h, rt); err != nil {
			return err
		}
	}
	return o.runShowdown(ctx, t, h, rt)
}

// runShowdown resolves shows, mucks and awards, then completes the
// hand
func (o *Orchestrator) runShowdown(ctx context.Context, t *Table, h *Hand, rt *handRuntime) error {
	if err := h.Transition(Showdown); err != nil {
		return err
	}
	o.broadcast(t)

	outcome, err := ResolveShowdown(t, h, rt.muckRequests, o.evaluate, o.logger)
	if err != nil {
		return err
	}

	for _, d := range outcome.Decisions {
		if d.Showed {
			h.Shown[d.PlayerID] = true
			p := t.Player(d.PlayerID)
			r := d.Results[0]
			if _, err := o.append(ctx, rt, h, &events.PlayerShowedCards{
				PlayerID:    d.PlayerID,
				HoleCards:   p.HoleCards,
				Category:    r.Category.String(),
				Description: r.Description,
				Ranking:     r.Ranking,
				BestFive:    r.BestFive,
				ShowOrder:   d.Order,
			}); err != nil {
				return err
			}
		} else {
			if _, err := o.append(ctx, rt, h, &events.PlayerMuckedCards{
				PlayerID:  d.PlayerID,
				Auto:      d.Auto,
				ShowOrder: d.Order,
			}); err != nil {
				return err
			}
		}
	}

	var winners []string
	seen := make(map[string]bool)
	for _, award := range outcome.Awards {
		for id, share := range award.Shares {
			t.Player(id).Chips += share
		}
		for _, id := range award.Winners {
			if !seen[id] {
				seen[id] = true
				winners = append(winners, id)
			}
		}
		if _, err := o.append(ctx, rt, h, &events.PotAwarded{
			PotID:       award.Pot.ID,
			Kind:        award.Pot.Kind.String(),
			Amount:      award.Pot.Amount,
			Winners:     award.Winners,
			Shares:      award.Shares,
			Description: award.Description,
			BoardIndex:  award.BoardIndex,
		}); err != nil {
			return err
		}
	}

	return o.completeHand(ctx, t, h, rt, true, winners)
}

// awardUncontested pays every pot to the sole remaining player
func (o *Orchestrator) awardUncontested(ctx context.Context, t *Table, h *Hand, rt *handRuntime, winner *Player) error {
	for _, pot := range h.Pots {
		winner.Chips += pot.Amount
		if _, err := o.append(ctx, rt, h, &events.PotAwarded{
			PotID:     pot.ID,
			Kind:      pot.Kind.String(),
			Amount:    pot.Amount,
			Winners:   []string{winner.ID},
			Shares:    map[string]int64{winner.ID: pot.Amount},
			WonByFold: true,
		}); err != nil {
			return err
		}
	}
	return o.completeHand(ctx, t, h, rt, false, []string{winner.ID})
}

// completeHand emits HandCompleted, transitions to Complete and
// releases the hand's runtime
func (o *Orchestrator) completeHand(ctx context.Context, t *Table, h *Hand, rt *handRuntime, wentToShowdown bool, winners []string) error {
	totalPot := PotTotal(h.Pots)
	finalPhase := h.Phase

	net := make(map[string]int64, len(h.PlayerIDs))
	for _, id := range h.PlayerIDs {
		net[id] = t.Player(id).Chips - rt.startingStacks[id]
	}

	if err := h.Transition(Complete); err != nil {
		return err
	}
	h.Pots = nil
	h.Betting = nil

	hdr, err := o.append(ctx, rt, h, &events.HandCompleted{
		TotalPot:       totalPot,
		DurationMs:     o.clock.Now().Sub(h.StartedAt).Milliseconds(),
		PlayerCount:    len(h.PlayerIDs),
		WentToShowdown: wentToShowdown,
		FinalPhase:     finalPhase.String(),
		Net:            net,
		Winners:        winners,
	})
	if err != nil {
		return err
	}
	h.EndedAt = hdr.At

	for _, p := range t.SeatedPlayers() {
		p.RoundBet = 0
		p.TotalBet = 0
	}

	if o.timers != nil {
		o.timers.StopAll(t.ID)
	}
	o.mu.Lock()
	delete(o.running, t.ID)
	o.mu.Unlock()

	o.logger.Info("hand complete",
		"table", t.ID, "hand", h.ID, "pot", totalPot,
		"winners", winners, "showdown", wentToShowdown)
	o.broadcast(t)
	return nil
}

// abortHand unwinds a hand after an invariant violation: every player
// gets back exactly what they committed
func (o *Orchestrator) abortHand(ctx context.Context, t *Table, h *Hand, rt *handRuntime, cause error) {
	o.logger.Error("aborting hand after invariant violation",
		"table", t.ID, "hand", h.ID, "error", cause)

	net := make(map[string]int64, len(h.PlayerIDs))
	for _, id := range h.PlayerIDs {
		p := t.Player(id)
		p.Chips += p.TotalBet
		p.RoundBet = 0
		p.TotalBet = 0
		net[id] = 0
	}
	finalPhase := h.Phase
	h.Pots = nil
	h.Betting = nil
	h.Phase = Complete
	h.CurrentPlayerID = ""

	if _, err := o.append(ctx, rt, h, &events.HandCompleted{
		DurationMs:     o.clock.Now().Sub(h.StartedAt).Milliseconds(),
		PlayerCount:    len(h.PlayerIDs),
		WentToShowdown: false,
		FinalPhase:     finalPhase.String(),
		Net:            net,
	}); err != nil {
		o.logger.Error("failed to record aborted hand", "hand", h.ID, "error", err)
	}

	if o.timers != nil {
		o.timers.StopAll(t.ID)
	}
	o.mu.Lock()
	delete(o.running, t.ID)
	o.mu.Unlock()
	o.broadcast(t)
}

// closeBets folds the street's bets into the pots and clears the
// per-street ledgers
func (o *Orchestrator) closeBets(t *Table, h *Hand) {
	contributions := make(map[string]int64, len(h.PlayerIDs))
	folded := make(map[string]bool)
	allIn := make(map[string]bool)
	for _, id := range h.PlayerIDs {
		p := t.Player(id)
		contributions[id] = p.TotalBet
		if p.Status == StatusFolded {
			folded[id] = true
		}
		if p.Status == StatusAllIn {
			allIn[id] = true
		}
		p.RoundBet = 0
	}
	h.Pots = BuildPots(contributions, folded, allIn, h.PlayerIDs)
}

func (o *Orchestrator) emitRoundCompleted(ctx context.Context, rt *handRuntime, h *Hand, inHand int) error {
	_, err := o.append(ctx, rt, h, &events.BettingRoundCompleted{
		Phase:         h.Phase.String(),
		PotTotal:      PotTotal(h.Pots),
		ActivePlayers: inHand,
	})
	return err
}

// dealHoleCards deals two cards round-robin starting left of the
// button and records them
func (o *Orchestrator) dealHoleCards(ctx context.Context, t *Table, h *Hand, rt *handRuntime) (map[string][]cards.Card, error) {
	order := clockwiseFromButton(t, h)
	for pass := 0; pass < 2; pass++ {
		for _, id := range order {
			c, err := rt.deck.Deal()
			if err != nil {
				return nil, err
			}
			p := t.Player(id)
			p.HoleCards = append(p.HoleCards, c)
		}
	}

	dealt := make(map[string][]cards.Card, len(order))
	for _, id := range order {
		dealt[id] = append([]cards.Card{}, t.Player(id).HoleCards...)
	}
	_, err := o.append(ctx, rt, h, &events.HoleCardsDealt{Cards: dealt})
	if err != nil {
		return nil, err
	}
	return dealt, nil
}

// dealCommunity burns and deals the current street's cards to every
// board in play
func (o *Orchestrator) dealCommunity(ctx context.Context, t *Table, h *Hand, rt *handRuntime) error {
	count := 1
	if h.Phase == Flop {
		count = 3
	}

	boards := []*[]cards.Card{&h.Board}
	if h.DoubleBoard {
		boards = append(boards, &h.SecondBoard)
	}
	for i, board := range boards {
		if err := rt.deck.Burn(); err != nil {
			return err
		}
		dealt, err := rt.deck.DealN(count)
		if err != nil {
			return err
		}
		*board = append(*board, dealt...)

		if _, err := o.append(ctx, rt, h, &events.CommunityCardsDealt{
			Phase:      h.Phase.String(),
			Cards:      dealt,
			Board:      append([]cards.Card{}, *board...),
			BoardIndex: i,
		}); err != nil {
			return err
		}
	}
	return nil
}

// handPlayers returns the dealt-in players in seat order
func (o *Orchestrator) handPlayers(t *Table, h *Hand) []*Player {
	out := make([]*Player, 0, len(h.PlayerIDs))
	for _, id := range h.PlayerIDs {
		if p := t.Player(id); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// nextToAct finds the next player able to act clockwise from the seat
func (o *Orchestrator) nextToAct(t *Table, h *Hand, fromSeat int) string {
	seat := t.NextEligibleSeat(fromSeat, func(p *Player) bool {
		return h.HasPlayer(p.ID) && p.CanAct()
	})
	if seat == 0 {
		return ""
	}
	return t.PlayerAtSeat(seat).ID
}

func (o *Orchestrator) startTimer(t *Table, h *Hand) {
	if o.timers == nil || t.ActionSeconds <= 0 || h.CurrentPlayerID == "" {
		return
	}
	p := t.Player(h.CurrentPlayerID)
	bankEnabled := t.TimeBank.Enabled && p.TimeBankSeconds > 0
	o.timers.Start(t.ID, h.ID, p.ID, t.ActionSeconds, bankEnabled, p.TimeBankSeconds)
}

func (o *Orchestrator) broadcast(t *Table) {
	if o.broadcaster == nil {
		return
	}
	for _, p := range t.SeatedPlayers() {
		o.broadcaster.SnapshotForViewer(t.ID, p.ID, BuildSnapshot(t, p.ID))
	}
	// Spectator view: no hole cards beyond showdown reveals
	o.broadcaster.SnapshotForViewer(t.ID, "", BuildSnapshot(t, ""))
}

func (o *Orchestrator) runtime(tableID string) *handRuntime {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[tableID]
}

// append stamps the next sequence number onto the event and stores it
func (o *Orchestrator) append(ctx context.Context, rt *handRuntime, h *Hand, e events.Event) (events.Header, error) {
	rt.seq++
	events.Stamp(e, h.ID, rt.seq, o.clock.Now())
	if err := o.events.Append(ctx, e); err != nil {
		return events.Header{}, err
	}
	return e.Head(), nil
}
