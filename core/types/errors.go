package types

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound: the identifier or coin does not exist on the ledger.
	ErrNotFound = errors.New("coin not found")
	// ErrDecode: a spend has an unexpected puzzle or solution shape.
	ErrDecode = errors.New("cannot decode spend")
	// ErrUnrecognizedPuzzle is a DecodeError for puzzles that are not streams.
	ErrUnrecognizedPuzzle = errors.Wrap(ErrDecode, "not a streaming puzzle")
	ErrCorruptLineage     = errors.New("stream lineage is corrupt")
	// ErrKeyNotFound: the wallet holds no key for the required party.
	ErrKeyNotFound       = errors.New("could not find public key associated with the puzzle hash in the connected wallet")
	ErrInsufficientFunds = errors.New("fee coins did not reach the required amount")
	ErrBroadcastRejected = errors.New("ledger rejected the spend bundle")
	// ErrTransientNetwork marks failures that are safe to retry for the same query.
	ErrTransientNetwork   = errors.New("transient network error")
	ErrGatewayUnavailable = errors.New("signing gateway unavailable")
	ErrClaimInProgress    = errors.New("a claim for this stream coin is already in progress")
	ErrNoClawback         = errors.New("stream has no clawback party")
	ErrStreamClosed       = errors.New("stream has no unspent coin left to claim from")
)

// CorruptLineageError reports where a lineage walk had to stop. The history
// built up to that point is still returned to the caller.
type CorruptLineageError struct {
	CoinID Bytes32
	Height uint32
	Cause  error
}

func (e *CorruptLineageError) Error() string {
	return fmt.Sprintf("%s: coin %s at height %d: %v", ErrCorruptLineage, e.CoinID, e.Height, e.Cause)
}

func (e *CorruptLineageError) Unwrap() error { return ErrCorruptLineage }

// Is also matches the underlying cause so callers can test for ErrDecode.
func (e *CorruptLineageError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// BroadcastRejectedError carries the ledger's status and error verbatim.
type BroadcastRejectedError struct {
	Status string
	Reason string
}

func (e *BroadcastRejectedError) Error() string {
	return fmt.Sprintf("failed to submit bundle with status: %s and error: %s", e.Status, e.Reason)
}

func (e *BroadcastRejectedError) Unwrap() error { return ErrBroadcastRejected }

// Transient wraps err so that errors.Is(err, ErrTransientNetwork) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }
func (e *transientError) Is(target error) bool {
	return target == ErrTransientNetwork
}

// IsTransient reports whether err may be retried for the same query.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}
