package engine

// BettingRound is the per-street bet ledger. It records what each
// player has committed this street, the bet level to match, and the
// raise bookkeeping that drives the minimum-raise rule.
type BettingRound struct {
	Bets  map[string]int64
	Acted map[string]bool

	CurrentBet int64
	// LastRaise is the size of the last full raise; MinRaise is the
	// smallest legal raise increment. They track together except after
	// a short all-in, which moves CurrentBet but not MinRaise.
	LastRaise  int64
	MinRaise   int64
	RaiseCount int

	// LastAggressor is preserved across street resets so showdown
	// order stays stable.
	LastAggressor string

	BigBlind int64
}

// NewBettingRound creates an empty round with the given minimum raise
func NewBettingRound(bigBlind int64) *BettingRound {
	return &BettingRound{
		Bets:     make(map[string]int64),
		Acted:    make(map[string]bool),
		MinRaise: bigBlind,
		BigBlind: bigBlind,
	}
}

// NewPreflopRound creates a round with the blinds pre-credited.
// Posting a blind does not count as acting, so the big blind keeps
// their option when action folds or flat-calls around.
func NewPreflopRound(smallBlind, bigBlind int64, sbPlayerID, bbPlayerID string, sbPosted, bbPosted int64) *BettingRound {
	br := NewBettingRound(bigBlind)
	br.Bets[sbPlayerID] = sbPosted
	br.Bets[bbPlayerID] = bbPosted
	br.CurrentBet = bigBlind
	br.LastRaise = bigBlind
	return br
}

// ToCall returns the amount the player must add to match the bet
func (br *BettingRound) ToCall(playerID string) int64 {
	toCall := br.CurrentBet - br.Bets[playerID]
	if toCall < 0 {
		return 0
	}
	return toCall
}

// MinRaiseTo returns the smallest legal total to raise to
func (br *BettingRound) MinRaiseTo() int64 {
	return br.CurrentBet + br.MinRaise
}

// Apply records a validated action against the ledger. A full raise
// re-opens betting by clearing everyone else's acted flag; a short
// all-in moves the bet level without re-opening.
func (br *BettingRound) Apply(va ValidatedAction) {
	br.Acted[va.PlayerID] = true
	if va.NewRoundBet > 0 {
		br.Bets[va.PlayerID] = va.NewRoundBet
	}

	if va.NewRoundBet <= br.CurrentBet {
		return
	}

	if va.IsRaise {
		br.LastRaise = va.NewRoundBet - br.CurrentBet
		br.MinRaise = br.LastRaise
		br.CurrentBet = va.NewRoundBet
		br.RaiseCount++
		br.LastAggressor = va.PlayerID
		for id := range br.Acted {
			if id != va.PlayerID {
				br.Acted[id] = false
			}
		}
		return
	}

	// Short all-in: the bet level rises, the min-raise does not, and
	// players who already acted are not given a new option.
	br.CurrentBet = va.NewRoundBet
	br.LastAggressor = va.PlayerID
}

// Complete reports whether the round is finished: every player still
// able to act has acted at least once and matched the current bet.
func (br *BettingRound) Complete(players []*Player) bool {
	for _, p := range players {
		if !p.CanAct() {
			continue
		}
		if !br.Acted[p.ID] {
			return false
		}
		if br.Bets[p.ID] != br.CurrentBet {
			return false
		}
	}
	return true
}

// Reset clears the ledger for a new street. The last aggressor
// carries over so showdown order is stable.
func (br *BettingRound) Reset() {
	br.Bets = make(map[string]int64)
	br.Acted = make(map[string]bool)
	br.CurrentBet = 0
	br.LastRaise = 0
	br.MinRaise = br.BigBlind
	br.RaiseCount = 0
}
