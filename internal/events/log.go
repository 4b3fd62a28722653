package events

import (
	"context"
	"sync"
	"time"

	"github.com/lox/holdemtable/internal/errkind"
)

// HandSummary is the per-hand projection materialised when a
// HandCompleted event is appended
type HandSummary struct {
	HandID         string        `json:"handId"`
	TableID        string        `json:"tableId"`
	HandNumber     int           `json:"handNumber"`
	Winners        []string      `json:"winners"`
	TotalPot       int64         `json:"totalPot"`
	Duration       time.Duration `json:"duration"`
	PlayerCount    int           `json:"playerCount"`
	WentToShowdown bool          `json:"wentToShowdown"`
	CompletedAt    time.Time     `json:"completedAt"`
}

// Log is the append-only hand event store. Appends must be observed
// before the orchestrator treats round or pot completion as durable.
type Log interface {
	// Append stores one event. The event's sequence number must be
	// exactly one past the hand's last; a duplicate fails with
	// Conflict and is abandoned.
	Append(ctx context.Context, e Event) error
	// AppendRange stores a batch atomically: either every event lands
	// or none do.
	AppendRange(ctx context.Context, evs []Event) error
	// Events returns a hand's full ordered stream
	Events(ctx context.Context, handID string) ([]Event, error)
	// EventsFrom returns the ordered events with Seq >= seq
	EventsFrom(ctx context.Context, handID string, seq uint64) ([]Event, error)
	// TableHistory returns completed-hand summaries for a table,
	// newest first, at most limit (0 = no limit)
	TableHistory(ctx context.Context, tableID string, limit int) ([]HandSummary, error)
	// LastSequence returns the hand's highest sequence number, 0 when
	// the hand has no events
	LastSequence(ctx context.Context, handID string) (uint64, error)
	// Summary returns the materialised summary of a completed hand
	Summary(ctx context.Context, handID string) (*HandSummary, error)
}

// MemoryLog is the in-memory reference Log. Safe for concurrent use;
// streams are partitioned by hand id.
type MemoryLog struct {
	mu        sync.RWMutex
	streams   map[string][]Event
	summaries map[string]*HandSummary
	// byTable holds completed hand ids per table in completion order
	byTable map[string][]string
}

// NewMemoryLog creates an empty in-memory event log
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		streams:   make(map[string][]Event),
		summaries: make(map[string]*HandSummary),
		byTable:   make(map[string][]string),
	}
}

func (l *MemoryLog) Append(ctx context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(e)
}

func (l *MemoryLog) AppendRange(ctx context.Context, evs []Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Validate the whole batch before touching the streams so the
	// append stays atomic
	next := make(map[string]uint64)
	for _, e := range evs {
		hdr := e.Head()
		want, ok := next[hdr.HandID]
		if !ok {
			want = uint64(len(l.streams[hdr.HandID])) + 1
		}
		if hdr.Seq != want {
			return seqError(hdr.HandID, hdr.Seq, want)
		}
		next[hdr.HandID] = want + 1
	}
	for _, e := range evs {
		if err := l.append(e); err != nil {
			return err
		}
	}
	return nil
}

func (l *MemoryLog) append(e Event) error {
	hdr := e.Head()
	stream := l.streams[hdr.HandID]
	want := uint64(len(stream)) + 1
	if hdr.Seq != want {
		return seqError(hdr.HandID, hdr.Seq, want)
	}
	l.streams[hdr.HandID] = append(stream, e)

	if done, ok := e.(*HandCompleted); ok {
		l.materialise(hdr, stream, done)
	}
	return nil
}

func seqError(handID string, got, want uint64) error {
	if got < want {
		return errkind.New(errkind.Conflict, "hand %s already has event %d", handID, got)
	}
	return errkind.New(errkind.InvalidInput, "hand %s sequence gap: got %d, want %d", handID, got, want)
}

// materialise builds the HandSummary projection from the stream's
// opening event and the completion payload
func (l *MemoryLog) materialise(hdr Header, stream []Event, done *HandCompleted) {
	summary := &HandSummary{
		HandID:         hdr.HandID,
		Winners:        done.Winners,
		TotalPot:       done.TotalPot,
		Duration:       time.Duration(done.DurationMs) * time.Millisecond,
		PlayerCount:    done.PlayerCount,
		WentToShowdown: done.WentToShowdown,
		CompletedAt:    hdr.At,
	}
	if len(stream) > 0 {
		if started, ok := stream[0].(*HandStarted); ok {
			summary.TableID = started.TableID
			summary.HandNumber = started.HandNumber
		}
	}
	l.summaries[hdr.HandID] = summary
	if summary.TableID != "" {
		l.byTable[summary.TableID] = append(l.byTable[summary.TableID], hdr.HandID)
	}
}

func (l *MemoryLog) Events(ctx context.Context, handID string) ([]Event, error) {
	return l.EventsFrom(ctx, handID, 0)
}

func (l *MemoryLog) EventsFrom(ctx context.Context, handID string, seq uint64) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stream := l.streams[handID]
	out := make([]Event, 0, len(stream))
	for _, e := range stream {
		if e.Head().Seq >= seq {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *MemoryLog) TableHistory(ctx context.Context, tableID string, limit int) ([]HandSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.byTable[tableID]
	out := make([]HandSummary, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if s := l.summaries[ids[i]]; s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (l *MemoryLog) LastSequence(ctx context.Context, handID string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.streams[handID])), nil
}

func (l *MemoryLog) Summary(ctx context.Context, handID string) (*HandSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.summaries[handID]
	if !ok {
		return nil, errkind.New(errkind.PreconditionFailed, "hand %s has no summary", handID)
	}
	copied := *s
	return &copied, nil
}
