package models

import "time"

// SignalState is one state in a signal chain's lifecycle
type SignalState string

const (
	SignalPending          SignalState = "PENDING"
	SignalActiveEdge       SignalState = "ACTIVE_EDGE"
	SignalActiveMonitoring SignalState = "ACTIVE_MONITORING"
	SignalWeakened         SignalState = "WEAKENED"
	SignalInvalidated      SignalState = "INVALIDATED"
	SignalSettled          SignalState = "SETTLED"
)

// Terminal reports whether no further transitions are allowed from this state
func (s SignalState) Terminal() bool {
	return s == SignalSettled
}

// allowedTransitions encodes the legal state machine edges. A fresh chain
// always begins at PENDING.
var allowedTransitions = map[SignalState][]SignalState{
	SignalPending:          {SignalActiveEdge, SignalActiveMonitoring, SignalInvalidated, SignalSettled},
	SignalActiveEdge:       {SignalActiveMonitoring, SignalWeakened, SignalInvalidated, SignalSettled},
	SignalActiveMonitoring: {SignalActiveEdge, SignalWeakened, SignalInvalidated, SignalSettled},
	SignalWeakened:         {SignalActiveEdge, SignalActiveMonitoring, SignalInvalidated, SignalSettled},
	SignalInvalidated:      {SignalSettled},
	SignalSettled:          {},
}

// CanTransition reports whether from -> to is a legal lifecycle edge
func CanTransition(from, to SignalState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Signal is one append-only record in a signal chain. New states are new
// records referencing the prior signal_id; the prior is never mutated.
type Signal struct {
	SignalID         string         `json:"signal_id"`
	PreviousSignalID *string        `json:"previous_signal_id,omitempty"`
	GameID           string         `json:"game_id"`
	Sport            Sport          `json:"sport"`
	MarketType       MarketType     `json:"market_type"`
	SelectionID      string         `json:"selection_id"`
	State            SignalState    `json:"state"`
	Classification   Classification `json:"classification"`
	MarketLine       *float64       `json:"market_line,omitempty"` // for snap detection
	ContextHash      string         `json:"context_hash"`
	Reason           string         `json:"reason,omitempty"` // required for INVALIDATED
	CreatedAt        time.Time      `json:"created_at"`
}

// FoldChain reconstructs the current signal from an append-only chain,
// ordered oldest first. Returns nil for an empty chain.
func FoldChain(chain []Signal) *Signal {
	if len(chain) == 0 {
		return nil
	}
	current := chain[len(chain)-1]
	return &current
}
