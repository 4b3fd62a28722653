package server

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/lox/holdemtable/internal/errkind"
)

// Dispatcher runs one worker goroutine per table so every mutation of
// a table's state is serialised, while distinct tables progress
// independently.
type Dispatcher struct {
	logger  *log.Logger
	workers map[string]*tableWorker
}

type tableWorker struct {
	tableID string
	intents chan func()
	done    chan struct{}
}

// NewDispatcher creates a dispatcher with no workers
func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		logger:  logger.WithPrefix("dispatcher"),
		workers: make(map[string]*tableWorker),
	}
}

// Register starts the worker for a table. Workers are registered once
// at startup, before any intents flow.
func (d *Dispatcher) Register(ctx context.Context, tableID string) {
	w := &tableWorker{
		tableID: tableID,
		intents: make(chan func(), 64),
		done:    make(chan struct{}),
	}
	d.workers[tableID] = w
	go w.run(ctx)
}

func (w *tableWorker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case fn := <-w.intents:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// Do runs fn on the table's worker and waits for it to finish, so the
// caller observes the mutation's result synchronously
func (d *Dispatcher) Do(ctx context.Context, tableID string, fn func()) error {
	w, ok := d.workers[tableID]
	if !ok {
		return errkind.New(errkind.InvalidInput, "unknown table %s", tableID)
	}

	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn()
	}

	select {
	case w.intents <- job:
	case <-w.done:
		return errkind.New(errkind.InvalidState, "table %s worker stopped", tableID)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue runs fn on the table's worker without waiting. Used by the
// timer scheduler so an expiry cannot block the tick loop.
func (d *Dispatcher) Enqueue(tableID string, fn func()) {
	w, ok := d.workers[tableID]
	if !ok {
		return
	}
	select {
	case w.intents <- fn:
	case <-w.done:
	default:
		d.logger.Warn("table worker queue full, dropping job", "table", tableID)
	}
}
