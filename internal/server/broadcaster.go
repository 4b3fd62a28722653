package server

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/holdemtable/internal/engine"
	"github.com/lox/holdemtable/internal/timer"
)

// Subscription is one viewer's feed from a table. Snapshots use a
// single latest-value slot: a slow consumer sees the newest state, not
// a backlog of stale ones. Timer events queue shallowly and drop when
// the consumer falls too far behind.
type Subscription struct {
	tableID  string
	viewerID string

	mu     sync.Mutex
	latest *engine.Snapshot
	notify chan struct{}

	timerCh chan timer.Event
	done    chan struct{}
	once    sync.Once
}

// Ready signals when a fresh snapshot is waiting
func (s *Subscription) Ready() <-chan struct{} {
	return s.notify
}

// Latest takes the newest undelivered snapshot, if any
func (s *Subscription) Latest() (engine.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return engine.Snapshot{}, false
	}
	snap := *s.latest
	s.latest = nil
	return snap, true
}

// TimerEvents is the subscription's countdown event feed
func (s *Subscription) TimerEvents() <-chan timer.Event {
	return s.timerCh
}

// Done closes when the subscription is cancelled
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// push stores the newest snapshot, replacing any undelivered one
func (s *Subscription) push(snap engine.Snapshot) {
	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Hub fans table state out to subscribed viewers. It implements the
// engine's Broadcaster and the timer scheduler's Publisher.
type Hub struct {
	logger *log.Logger

	mu   sync.RWMutex
	subs map[string][]*Subscription // by table id
}

// NewHub creates an empty hub
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger: logger.WithPrefix("hub"),
		subs:   make(map[string][]*Subscription),
	}
}

// Subscribe attaches a viewer to a table's feed. viewerID "" is a
// spectator and receives the sanitised spectator view.
func (h *Hub) Subscribe(tableID, viewerID string) *Subscription {
	sub := &Subscription{
		tableID:  tableID,
		viewerID: viewerID,
		notify:   make(chan struct{}, 1),
		timerCh:  make(chan timer.Event, 16),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[tableID] = append(h.subs[tableID], sub)
	h.mu.Unlock()
	return sub
}

// Unsubscribe detaches a subscription and closes it
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	list := h.subs[sub.tableID]
	for i, s := range list {
		if s == sub {
			h.subs[sub.tableID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	sub.close()
}

// SnapshotForViewer delivers a snapshot to every subscription the
// viewer holds at the table. Never blocks on a slow viewer.
func (h *Hub) SnapshotForViewer(tableID, viewerID string, snap engine.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs[tableID] {
		if sub.viewerID == viewerID {
			sub.push(snap)
		}
	}
}

// PublishTimerEvent fans a countdown event to every viewer at the
// table. Events are dropped for viewers whose queue is full.
func (h *Hub) PublishTimerEvent(ev timer.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs[ev.TableID] {
		select {
		case sub.timerCh <- ev:
		default:
			h.logger.Debug("dropping timer event for slow viewer",
				"table", ev.TableID, "viewer", sub.viewerID)
		}
	}
}
