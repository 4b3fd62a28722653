package engine

import "github.com/lox/holdemtable/internal/errkind"

// Phase is a stage of the hand lifecycle
type Phase int

const (
	Waiting Phase = iota
	Preflop
	Flop
	Turn
	River
	Showdown
	Complete
)

func (p Phase) String() string {
	return [...]string{"waiting", "preflop", "flop", "turn", "river", "showdown", "complete"}[p]
}

// ParsePhase converts the wire form of a phase
func ParsePhase(s string) (Phase, error) {
	for p := Waiting; p <= Complete; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, errkind.New(errkind.InvalidInput, "unknown phase %q", s)
}

// IsBettingPhase reports whether betting action happens in this phase
func (p Phase) IsBettingPhase() bool {
	return p >= Preflop && p <= River
}

// phaseTransitions is the only permitted edge set. Bomb pots enter at
// Flop directly; any betting street can short-circuit to Complete when
// one player remains.
var phaseTransitions = map[Phase][]Phase{
	Waiting:  {Preflop, Flop},
	Preflop:  {Flop, Complete},
	Flop:     {Turn, Complete},
	Turn:     {River, Complete},
	River:    {Showdown, Complete},
	Showdown: {Complete},
	Complete: {},
}

// enterHooks validate entry conditions and reset per-street state
var enterHooks = map[Phase]func(h *Hand) error{
	Flop: func(h *Hand) error {
		h.resetStreet()
		return nil
	},
	Turn: func(h *Hand) error {
		if len(h.Board) < 3 {
			return errkind.New(errkind.InvalidState, "cannot enter turn with %d board cards", len(h.Board))
		}
		h.resetStreet()
		return nil
	},
	River: func(h *Hand) error {
		if len(h.Board) < 4 {
			return errkind.New(errkind.InvalidState, "cannot enter river with %d board cards", len(h.Board))
		}
		h.resetStreet()
		return nil
	},
	Showdown: func(h *Hand) error {
		h.CurrentPlayerID = ""
		return nil
	},
	Complete: func(h *Hand) error {
		h.CurrentPlayerID = ""
		return nil
	},
}

// Transition moves the hand to the target phase, validating the edge
// and running the entry hook. Complete is terminal.
func (h *Hand) Transition(to Phase) error {
	allowed := false
	for _, next := range phaseTransitions[h.Phase] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return errkind.New(errkind.InvalidState, "illegal phase transition %s -> %s", h.Phase, to)
	}
	if hook := enterHooks[to]; hook != nil {
		if err := hook(h); err != nil {
			return err
		}
	}
	h.Phase = to
	return nil
}
