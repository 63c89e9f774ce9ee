package types

// StreamInfo holds the parameters curried into a streaming puzzle.
type StreamInfo struct {
	Recipient       Bytes32
	ClawbackPh      *Bytes32
	EndTime         int64
	LastPaymentTime int64
}

// WithLastPaymentTime returns a copy advanced to t.
func (i StreamInfo) WithLastPaymentTime(t int64) StreamInfo {
	i.LastPaymentTime = t
	return i
}

// LineageProof lets the token wrapper verify the coin's parent was a coin of
// the same asset.
type LineageProof struct {
	ParentParentCoinInfo  Bytes32
	ParentInnerPuzzleHash Bytes32
	ParentAmount          uint64
}

// StreamState describes one streaming coin. States are never mutated; every
// spend produces a new state referencing a new coin.
type StreamState struct {
	Coin    Coin
	AssetID Bytes32
	Info    StreamInfo
	// StartTime is the genesis' last payment time.
	StartTime int64
	// Proof is nil when it was not recoverable, in which case the coin cannot
	// be spent by this SDK.
	Proof *LineageProof
}

// FullyVested reports whether no further value accrues.
func (s *StreamState) FullyVested() bool {
	return s.Info.LastPaymentTime >= s.Info.EndTime
}

type EventKind int

const (
	EventClaim EventKind = iota
	EventClawback
	EventUnspent
)

func (k EventKind) String() string {
	switch k {
	case EventClaim:
		return "claim"
	case EventClawback:
		return "clawback"
	case EventUnspent:
		return "unspent"
	default:
		return "unknown"
	}
}

// StreamEvent is one step of a stream's history.
type StreamEvent struct {
	Height uint32
	Kind   EventKind
	// Amount is the claimed value for a claim and the final vested payment
	// for a clawback. It is zero for the unspent tip.
	Amount uint64
	// State is the state produced by the event: the child for a claim, the
	// tip itself for an unspent event, nil for a clawback.
	State *StreamState
}

type ClaimMode int

const (
	ModeClaim ClaimMode = iota
	ModeClawback
)

func (m ClaimMode) String() string {
	if m == ModeClawback {
		return "clawback"
	}
	return "claim"
}

// ClaimIntent is a user request to claim or claw back; fee is in mojos.
type ClaimIntent struct {
	Mode      ClaimMode
	FeeBudget uint64
}
