// Package timer bounds each player's decision time. A scheduler ticks
// once a second across every table's live countdown; when the base
// allowance runs out the player's time bank takes over, and when that
// runs out too the player is folded on their behalf.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// warningSeconds is how far before expiry the warning fires
const warningSeconds = 10

// EventType tags timer lifecycle events
type EventType string

const (
	EventStarted           EventType = "timer_started"
	EventTick              EventType = "timer_tick"
	EventWarning           EventType = "timer_warning"
	EventTimeBankActivated EventType = "time_bank_activated"
	EventExpired           EventType = "timer_expired"
	EventCancelled         EventType = "timer_cancelled"
)

// Event is published to viewers as a countdown changes
type Event struct {
	Type      EventType `json:"type"`
	TableID   string    `json:"tableId"`
	HandID    string    `json:"handId"`
	PlayerID  string    `json:"playerId"`
	Remaining int       `json:"remaining"`
	// BankActive is true once the countdown is running on time bank
	BankActive bool `json:"bankActive"`
	// BankRemaining is the unconsumed time bank in seconds
	BankRemaining int `json:"bankRemaining"`
}

// Publisher receives timer events for fan-out to viewers
type Publisher interface {
	PublishTimerEvent(ev Event)
}

// Folder folds the current player when their time fully expires. The
// scheduler calls it outside its own lock.
type Folder interface {
	FoldOnTimeout(tableID string, bankConsumed int)
}

// state is one table's live countdown. A table has at most one: action
// is on exactly one player at a time.
type state struct {
	tableID   string
	handID    string
	playerID  string
	remaining int

	bankEnabled bool
	bankSeconds int
	bankActive  bool

	warned bool
	paused bool
}

// Scheduler runs every table's action countdown off a single ticker
type Scheduler struct {
	logger    *log.Logger
	clock     quartz.Clock
	publisher Publisher
	folder    Folder

	mu     sync.Mutex
	states map[string]*state
}

// NewScheduler creates a scheduler; Run must be called to start the
// tick loop
func NewScheduler(logger *log.Logger, clock quartz.Clock, publisher Publisher, folder Folder) *Scheduler {
	return &Scheduler{
		logger:    logger.WithPrefix("timer"),
		clock:     clock,
		publisher: publisher,
		folder:    folder,
		states:    make(map[string]*state),
	}
}

// Run ticks until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.TickerFunc(ctx, time.Second, func() error {
		s.tick()
		return nil
	}, "timer")
	err := ticker.Wait()
	if err == context.Canceled || err == context.DeadlineExceeded {
		return nil
	}
	return err
}

// Start begins a countdown for the player to act, superseding any
// countdown already running at the table
func (s *Scheduler) Start(tableID, handID, playerID string, actionSeconds int, bankEnabled bool, bankSeconds int) {
	s.mu.Lock()
	s.states[tableID] = &state{
		tableID:     tableID,
		handID:      handID,
		playerID:    playerID,
		remaining:   actionSeconds,
		bankEnabled: bankEnabled,
		bankSeconds: bankSeconds,
	}
	s.mu.Unlock()

	s.publish(Event{
		Type: EventStarted, TableID: tableID, HandID: handID, PlayerID: playerID,
		Remaining: actionSeconds, BankRemaining: bankSeconds,
	})
}

// Cancel stops the countdown for the player and returns the time-bank
// seconds consumed. Idempotent: a missing or mismatched countdown
// returns 0.
func (s *Scheduler) Cancel(tableID, playerID string) int {
	s.mu.Lock()
	st, ok := s.states[tableID]
	if !ok || st.playerID != playerID {
		s.mu.Unlock()
		return 0
	}
	delete(s.states, tableID)
	consumed := 0
	if st.bankActive {
		consumed = st.bankSeconds - st.remaining
	}
	ev := Event{
		Type: EventCancelled, TableID: tableID, HandID: st.handID, PlayerID: playerID,
		Remaining: st.remaining, BankActive: st.bankActive, BankRemaining: s.bankLeft(st),
	}
	s.mu.Unlock()

	s.publish(ev)
	return consumed
}

// Pause freezes the table's countdown (for example while the hand is
// interrupted); Resume unfreezes it
func (s *Scheduler) Pause(tableID string) {
	s.mu.Lock()
	if st, ok := s.states[tableID]; ok {
		st.paused = true
	}
	s.mu.Unlock()
}

// Resume continues a paused countdown
func (s *Scheduler) Resume(tableID string) {
	s.mu.Lock()
	if st, ok := s.states[tableID]; ok {
		st.paused = false
	}
	s.mu.Unlock()
}

// StopAll removes the table's countdown without publishing; used when
// a hand completes
func (s *Scheduler) StopAll(tableID string) {
	s.mu.Lock()
	delete(s.states, tableID)
	s.mu.Unlock()
}

// Remaining reports the current countdown for a table, if any
func (s *Scheduler) Remaining(tableID string) (playerID string, remaining int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, found := s.states[tableID]
	if !found {
		return "", 0, false
	}
	return st.playerID, st.remaining, true
}

// expiry is a fold decision carried out of the tick lock
type expiry struct {
	tableID      string
	bankConsumed int
}

// tick advances every live countdown by one second. State mutates
// under the lock; events and fold callbacks happen after release so a
// fold re-entering Start or Cancel cannot deadlock.
func (s *Scheduler) tick() {
	var events []Event
	var expiries []expiry

	s.mu.Lock()
	for tableID, st := range s.states {
		if st.paused {
			continue
		}
		st.remaining--

		if st.remaining > 0 {
			if st.remaining == warningSeconds && !st.warned && !st.bankActive {
				st.warned = true
				events = append(events, Event{
					Type: EventWarning, TableID: tableID, HandID: st.handID,
					PlayerID: st.playerID, Remaining: st.remaining,
					BankRemaining: st.bankSeconds,
				})
			} else {
				events = append(events, Event{
					Type: EventTick, TableID: tableID, HandID: st.handID,
					PlayerID: st.playerID, Remaining: st.remaining,
					BankActive: st.bankActive, BankRemaining: s.bankLeft(st),
				})
			}
			continue
		}

		// Base allowance exhausted: roll onto the time bank once
		if st.bankEnabled && !st.bankActive && st.bankSeconds > 0 {
			st.bankActive = true
			st.remaining = st.bankSeconds
			events = append(events, Event{
				Type: EventTimeBankActivated, TableID: tableID, HandID: st.handID,
				PlayerID: st.playerID, Remaining: st.remaining,
				BankActive: true, BankRemaining: st.bankSeconds,
			})
			continue
		}

		// Fully expired
		consumed := 0
		if st.bankActive {
			consumed = st.bankSeconds
		}
		events = append(events, Event{
			Type: EventExpired, TableID: tableID, HandID: st.handID,
			PlayerID: st.playerID, BankActive: st.bankActive,
		})
		expiries = append(expiries, expiry{tableID: tableID, bankConsumed: consumed})
		delete(s.states, tableID)
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.publish(ev)
	}
	for _, e := range expiries {
		s.logger.Info("action timer expired, forcing fold",
			"table", e.tableID, "bankConsumed", e.bankConsumed)
		if s.folder != nil {
			s.folder.FoldOnTimeout(e.tableID, e.bankConsumed)
		}
	}
}

func (s *Scheduler) bankLeft(st *state) int {
	if st.bankActive {
		return st.remaining
	}
	return st.bankSeconds
}

func (s *Scheduler) publish(ev Event) {
	if s.publisher != nil {
		s.publisher.PublishTimerEvent(ev)
	}
}
