package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdemtable/internal/engine"
	"github.com/lox/holdemtable/internal/errkind"
	"github.com/lox/holdemtable/internal/events"
	"github.com/lox/holdemtable/internal/timer"
)

// interHandDelay is the pause between a hand completing and the next
// one being dealt
const interHandDelay = 2 * time.Second

// tableState pairs an engine table with its configuration and the
// lobby bookkeeping the core does not own
type tableState struct {
	table *engine.Table
	cfg   TableConfig
	// pendingLeave holds players who asked to leave mid-hand; their
	// seats are released when the hand completes
	pendingLeave map[string]bool
}

// TableService owns every table and routes all mutations through the
// per-table dispatcher, so the engine never sees concurrent intents
// for one table.
type TableService struct {
	logger     *log.Logger
	clock      quartz.Clock
	cfg        *Config
	eventLog   events.Log
	hub        *Hub
	dispatcher *Dispatcher
	timers     *timer.Scheduler
	orch       *engine.Orchestrator

	tables map[string]*tableState
}

// NewTableService builds the service and wires the orchestrator,
// timer scheduler and hub together
func NewTableService(logger *log.Logger, clock quartz.Clock, cfg *Config, eventLog events.Log, hub *Hub, opts ...engine.Option) *TableService {
	s := &TableService{
		logger:     logger.WithPrefix("tables"),
		clock:      clock,
		cfg:        cfg,
		eventLog:   eventLog,
		hub:        hub,
		dispatcher: NewDispatcher(logger),
		tables:     make(map[string]*tableState),
	}
	s.timers = timer.NewScheduler(logger, clock, hub, s)

	orchOpts := append([]engine.Option{
		engine.WithClock(clock),
		engine.WithBroadcaster(hub),
		engine.WithTimers(s.timers),
	}, opts...)
	s.orch = engine.New(logger, eventLog, orchOpts...)

	for _, tc := range cfg.Tables {
		t := &engine.Table{
			ID:            tc.Name,
			Name:          tc.Name,
			SmallBlind:    tc.SmallBlind,
			BigBlind:      tc.BigBlind,
			MinBuyIn:      tc.BuyInMin,
			MaxBuyIn:      tc.BuyInMax,
			ActionSeconds: tc.ActionSeconds,
			Seats:         make(map[int]*engine.Player),
		}
		if tc.TimeBank != nil {
			t.TimeBank = engine.TimeBankPolicy{Enabled: tc.TimeBank.Enabled, Seconds: tc.TimeBank.Seconds}
		}
		s.tables[tc.Name] = &tableState{
			table:        t,
			cfg:          tc,
			pendingLeave: make(map[string]bool),
		}
	}
	return s
}

// Run starts the per-table workers and the timer scheduler, blocking
// until the context is cancelled
func (s *TableService) Run(ctx context.Context) error {
	for id := range s.tables {
		s.dispatcher.Register(ctx, id)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.timers.Run(ctx) })
	return g.Wait()
}

// Hub returns the snapshot fan-out
func (s *TableService) Hub() *Hub { return s.hub }

// TableIDs lists the configured tables
func (s *TableService) TableIDs() []string {
	out := make([]string, 0, len(s.tables))
	for _, tc := range s.cfg.Tables {
		out = append(out, tc.Name)
	}
	return out
}

// JoinTable seats a player with a buy-in. A nil seat request takes the
// first free seat. New players wait until the next hand is dealt.
func (s *TableService) JoinTable(ctx context.Context, tableID, playerID, name string, seat *int, buyIn int64) (*JoinedData, error) {
	ts, ok := s.tables[tableID]
	if !ok {
		return nil, errkind.New(errkind.InvalidInput, "unknown table %s", tableID)
	}

	var joined *JoinedData
	var joinErr error
	err := s.dispatcher.Do(ctx, tableID, func() {
		t := ts.table
		if buyIn < t.MinBuyIn || buyIn > t.MaxBuyIn {
			joinErr = errkind.New(errkind.ValidationRejected, "buy-in %d outside range %d-%d", buyIn, t.MinBuyIn, t.MaxBuyIn)
			return
		}
		if t.Player(playerID) != nil {
			joinErr = errkind.New(errkind.Conflict, "player %s already seated", playerID)
			return
		}
		if len(t.Seats) >= ts.cfg.MaxPlayers {
			joinErr = errkind.New(errkind.PreconditionFailed, "table %s is full", tableID)
			return
		}

		seatNo := 0
		if seat != nil {
			if *seat < 1 || *seat > 10 {
				joinErr = errkind.New(errkind.InvalidInput, "seat %d out of range", *seat)
				return
			}
			if t.Seats[*seat] != nil {
				joinErr = errkind.New(errkind.Conflict, "seat %d is taken", *seat)
				return
			}
			seatNo = *seat
		} else {
			for i := 1; i <= 10; i++ {
				if t.Seats[i] == nil {
					seatNo = i
					break
				}
			}
		}

		p := &engine.Player{
			ID:     playerID,
			Name:   name,
			Seat:   seatNo,
			Chips:  buyIn,
			Status: engine.StatusWaiting,
		}
		if t.TimeBank.Enabled {
			p.TimeBankSeconds = t.TimeBank.Seconds
		}
		t.Seats[seatNo] = p
		joined = &JoinedData{TableID: tableID, PlayerID: playerID, Seat: seatNo, Chips: buyIn}

		s.logger.Info("player joined", "table", tableID, "player", playerID, "seat", seatNo, "buyIn", buyIn)
		s.maybeStartHand(ctx, ts)
	})
	if err != nil {
		return nil, err
	}
	return joined, joinErr
}

// LeaveTable removes a player. A player still contesting a hand is
// folded on their behalf and their seat is held until the hand
// completes; the live hand references them for pots and turn order.
func (s *TableService) LeaveTable(ctx context.Context, tableID, playerID string) (*LeftData, error) {
	ts, ok := s.tables[tableID]
	if !ok {
		return nil, errkind.New(errkind.InvalidInput, "unknown table %s", tableID)
	}

	var left *LeftData
	var leaveErr error
	err := s.dispatcher.Do(ctx, tableID, func() {
		t := ts.table
		p := t.Player(playerID)
		if p == nil {
			leaveErr = errkind.New(errkind.InvalidInput, "player %s not seated", playerID)
			return
		}

		h := t.Hand
		if h.Active() && h.HasPlayer(playerID) && p.InHand() {
			ts.pendingLeave[playerID] = true
			left = &LeftData{TableID: tableID, PlayerID: playerID, Chips: p.Chips}

			// All-in players keep their claim on the pots they funded;
			// anyone else is folded, and the fold can end the hand
			if p.CanAct() {
				res, err := s.orch.FoldLeavingPlayer(ctx, t, playerID)
				if err != nil {
					s.logger.Error("failed to fold leaving player", "table", tableID, "player", playerID, "error", err)
				} else if res.HandComplete {
					s.finishHand(ctx, ts)
				}
			}
			return
		}

		delete(t.Seats, p.Seat)
		left = &LeftData{TableID: tableID, PlayerID: playerID, Chips: p.Chips}
		s.logger.Info("player left", "table", tableID, "player", playerID, "chips", p.Chips)
	})
	if err != nil {
		return nil, err
	}
	return left, leaveErr
}

// SitOut marks a player away; they are skipped when hands are dealt
// and accrue missed-blind debt
func (s *TableService) SitOut(ctx context.Context, tableID, playerID string) error {
	ts, ok := s.tables[tableID]
	if !ok {
		return errkind.New(errkind.InvalidInput, "unknown table %s", tableID)
	}
	var opErr error
	err := s.dispatcher.Do(ctx, tableID, func() {
		t := ts.table
		p := t.Player(playerID)
		if p == nil {
			opErr = errkind.New(errkind.InvalidInput, "player %s not seated", playerID)
			return
		}
		if t.Hand.Active() && t.Hand.HasPlayer(playerID) && p.InHand() {
			opErr = errkind.New(errkind.PreconditionFailed, "cannot sit out while contesting a hand")
			return
		}
		p.Status = engine.StatusAway
	})
	if err != nil {
		return err
	}
	return opErr
}

// Return brings a sitting-out player back. With postBlind the owed
// missed blind is acknowledged and the debt cleared; otherwise the
// debt stands until the big blind reaches them naturally.
func (s *TableService) Return(ctx context.Context, tableID, playerID string, postBlind bool) error {
	ts, ok := s.tables[tableID]
	if !ok {
		return errkind.New(errkind.InvalidInput, "unknown table %s", tableID)
	}
	var opErr error
	err := s.dispatcher.Do(ctx, tableID, func() {
		t := ts.table
		p := t.Player(playerID)
		if p == nil {
			opErr = errkind.New(errkind.InvalidInput, "player %s not seated", playerID)
			return
		}
		if p.Status != engine.StatusAway {
			opErr = errkind.New(errkind.PreconditionFailed, "player %s is not sitting out", playerID)
			return
		}
		p.Status = engine.StatusWaiting
		p.HandsSatOut = 0
		if postBlind {
			p.OwesMissedBlinds = false
		}
		s.maybeStartHand(ctx, ts)
	})
	if err != nil {
		return err
	}
	return opErr
}

// HandleAction applies a betting intent from a player
func (s *TableService) HandleAction(ctx context.Context, tableID, playerID, action string, amount int64) error {
	ts, ok := s.tables[tableID]
	if !ok {
		return errkind.New(errkind.InvalidInput, "unknown table %s", tableID)
	}
	at, err := engine.ParseActionType(action)
	if err != nil {
		return err
	}

	var opErr error
	doErr := s.dispatcher.Do(ctx, tableID, func() {
		res, err := s.orch.ExecutePlayerAction(ctx, ts.table, playerID, at, amount)
		if err != nil {
			opErr = err
			return
		}
		if res.HandComplete {
			s.finishHand(ctx, ts)
		}
	})
	if doErr != nil {
		return doErr
	}
	return opErr
}

// RequestMuck registers a player's wish to muck at showdown
func (s *TableService) RequestMuck(ctx context.Context, tableID, playerID string) error {
	ts, ok := s.tables[tableID]
	if !ok {
		return errkind.New(errkind.InvalidInput, "unknown table %s", tableID)
	}
	return s.dispatcher.Do(ctx, tableID, func() {
		s.orch.RequestShowdownMuck(ts.table, playerID)
	})
}

// History returns the table's completed-hand summaries, newest first
func (s *TableService) History(ctx context.Context, tableID string, limit int) ([]events.HandSummary, error) {
	if _, ok := s.tables[tableID]; !ok {
		return nil, errkind.New(errkind.InvalidInput, "unknown table %s", tableID)
	}
	return s.eventLog.TableHistory(ctx, tableID, limit)
}

// FoldOnTimeout implements the timer scheduler's Folder: the expiry is
// applied on the table's worker so it serialises with player intents
func (s *TableService) FoldOnTimeout(tableID string, bankConsumed int) {
	ts, ok := s.tables[tableID]
	if !ok {
		return
	}
	s.dispatcher.Enqueue(tableID, func() {
		ctx := context.Background()
		res, err := s.orch.ForceTimeoutFold(ctx, ts.table, bankConsumed)
		if err != nil {
			// A racing intent may have already moved the action on
			s.logger.Debug("timeout fold not applied", "table", tableID, "error", err)
			return
		}
		if res.HandComplete {
			s.finishHand(ctx, ts)
		}
	})
}

// finishHand runs post-hand housekeeping on the table's worker:
// pending leaves release their seats, sat-out players accrue blind
// debt, and the next hand is scheduled
func (s *TableService) finishHand(ctx context.Context, ts *tableState) {
	t := ts.table
	for playerID := range ts.pendingLeave {
		if p := t.Player(playerID); p != nil {
			delete(t.Seats, p.Seat)
			s.logger.Info("released seat for departed player", "table", t.ID, "player", playerID, "chips", p.Chips)
		}
		delete(ts.pendingLeave, playerID)
	}
	for _, p := range t.SeatedPlayers() {
		if p.Status == engine.StatusAway {
			p.HandsSatOut++
			p.OwesMissedBlinds = true
		}
	}
	s.scheduleNextHand(ts)
}

// scheduleNextHand deals the next hand after a short pause
func (s *TableService) scheduleNextHand(ts *tableState) {
	if !ts.cfg.AutoStart {
		return
	}
	s.clock.AfterFunc(interHandDelay, func() {
		s.dispatcher.Enqueue(ts.table.ID, func() {
			s.maybeStartHand(context.Background(), ts)
		})
	})
}

// maybeStartHand deals a hand when the table is idle and has enough
// players. Runs on the table's worker.
func (s *TableService) maybeStartHand(ctx context.Context, ts *tableState) {
	t := ts.table
	if !ts.cfg.AutoStart || t.Hand.Active() || t.ActiveCount() < 2 {
		return
	}

	var res *engine.HandStartResult
	var err error
	if bp := ts.cfg.BombPot; bp != nil && (t.HandCount+1)%bp.EveryHands == 0 {
		res, err = s.orch.StartBombPot(ctx, t, bp.Ante, bp.DoubleBoard)
	} else {
		res, err = s.orch.StartNewHand(ctx, t)
	}
	if err != nil {
		s.logger.Error("failed to start hand", "table", t.ID, "error", err)
		return
	}
	if res.Hand.Phase == engine.Complete {
		// A bomb pot can resolve immediately when every ante was all-in
		s.finishHand(ctx, ts)
	}
}
