package streamapi

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/logging"
	"github.com/yakuhito/streaming-sdk-go/core/poll"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"github.com/yakuhito/streaming-sdk-go/core/util"
	"go.uber.org/zap"
)

// DefaultRetry retries a transient ledger failure for the same query.
var DefaultRetry = poll.Task{Interval: time.Second, Attempts: 3}

// History is the chronological list of a stream's events. The last event is
// an Unspent event for a live or fully vested stream, or a Clawback event
// for a clawed back one.
type History struct {
	StreamID util.StreamId
	Genesis  *types.StreamState
	Events   []types.StreamEvent
	// Warning is set when the walk stopped at an undecodable spend. Events
	// then end at the last good state.
	Warning *types.CorruptLineageError
}

// Terminal returns the last event, or nil for an empty history.
func (h *History) Terminal() *types.StreamEvent {
	if len(h.Events) == 0 {
		return nil
	}
	return &h.Events[len(h.Events)-1]
}

// Tip returns the unspent stream coin, or nil when there is none.
func (h *History) Tip() *types.StreamState {
	last := h.Terminal()
	if last == nil || last.Kind != types.EventUnspent {
		return nil
	}
	return last.State
}

// ClawedBack reports whether the stream ended with a clawback.
func (h *History) ClawedBack() bool {
	last := h.Terminal()
	return last != nil && last.Kind == types.EventClawback
}

// FullyVested reports an unspent tip that accrues nothing more.
func (h *History) FullyVested() bool {
	tip := h.Tip()
	return tip != nil && tip.FullyVested()
}

// Claims returns the claim events only.
func (h *History) Claims() []types.StreamEvent {
	var out []types.StreamEvent
	for _, ev := range h.Events {
		if ev.Kind == types.EventClaim {
			out = append(out, ev)
		}
	}
	return out
}

// Reconstructor rebuilds stream histories from the ledger.
type Reconstructor struct {
	ledger types.LedgerClient
	codec  *Codec
	retry  poll.Task
	logger *zap.Logger
}

type ReconstructorOption func(*Reconstructor)

// WithRetry sets the loop used to retry transient ledger failures.
func WithRetry(task poll.Task) ReconstructorOption {
	return func(r *Reconstructor) { r.retry = task }
}

func WithReconstructorLogger(l *zap.Logger) ReconstructorOption {
	return func(r *Reconstructor) { r.logger = l }
}

func NewReconstructor(ledger types.LedgerClient, codec *Codec, opts ...ReconstructorOption) *Reconstructor {
	r := &Reconstructor{
		ledger: ledger,
		codec:  codec,
		retry:  DefaultRetry,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDefault(r.logger)
	return r
}

func (r *Reconstructor) coinRecord(ctx context.Context, id types.Bytes32) (*types.CoinRecord, error) {
	var rec *types.CoinRecord
	err := r.retry.Retry(ctx, func(ctx context.Context) error {
		var err error
		rec, err = r.ledger.GetCoinRecordByName(ctx, id)
		return err
	})
	return rec, err
}

func (r *Reconstructor) spend(ctx context.Context, id types.Bytes32, height uint32) (*types.CoinSpend, error) {
	var spend *types.CoinSpend
	err := r.retry.Retry(ctx, func(ctx context.Context) error {
		var err error
		spend, err = r.ledger.GetPuzzleAndSolution(ctx, id, height)
		return err
	})
	return spend, err
}

// genesis decodes the spend that created the stream coin rec.
func (r *Reconstructor) genesis(ctx context.Context, rec *types.CoinRecord) (*types.StreamState, error) {
	parentSpend, err := r.spend(ctx, rec.Coin.ParentCoinInfo, rec.ConfirmedBlockIndex)
	if err != nil {
		return nil, errors.Wrap(err, "fetching launch spend")
	}
	return r.codec.DecodeLaunch(*parentSpend, rec.Coin.ID())
}

// FromGenesis rebuilds the history of the stream whose first coin is
// streamID. ErrNotFound means the id is unknown to the ledger.
func (r *Reconstructor) FromGenesis(ctx context.Context, streamID util.StreamId) (*History, error) {
	id := streamID.CoinID()
	rec, err := r.coinRecord(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "stream %s", streamID)
	}
	genesis, err := r.genesis(ctx, rec)
	if err != nil {
		return nil, errors.Wrapf(err, "stream %s", streamID)
	}
	return r.forward(ctx, genesis, rec)
}

// FromCoin rebuilds the history of the stream that coinID belongs to. It
// walks parent links back to the genesis and then forward again, so the
// result is the same as FromGenesis on that genesis.
func (r *Reconstructor) FromCoin(ctx context.Context, coinID types.Bytes32) (*History, error) {
	rec, err := r.coinRecord(ctx, coinID)
	if err != nil {
		return nil, errors.Wrapf(err, "coin %s", coinID)
	}
	for {
		parentSpend, err := r.spend(ctx, rec.Coin.ParentCoinInfo, rec.ConfirmedBlockIndex)
		if err != nil {
			return nil, errors.Wrapf(err, "parent of coin %s", rec.Coin.ID())
		}
		_, err = r.codec.Decode(*parentSpend)
		if errors.Is(err, types.ErrUnrecognizedPuzzle) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parent of coin %s", rec.Coin.ID())
		}
		parent, err := r.coinRecord(ctx, rec.Coin.ParentCoinInfo)
		if err != nil {
			return nil, errors.Wrapf(err, "parent of coin %s", rec.Coin.ID())
		}
		rec = parent
	}
	r.logger.Debug("found stream genesis", zap.Stringer("coin", coinID), zap.Stringer("genesis", rec.Coin.ID()))

	genesis, err := r.genesis(ctx, rec)
	if err != nil {
		return nil, errors.Wrapf(err, "genesis %s", rec.Coin.ID())
	}
	return r.forward(ctx, genesis, rec)
}

// forward walks spends from the genesis to the tip. A spend that cannot be
// decoded ends the walk; the events so far are returned together with a
// *CorruptLineageError, which is also kept in History.Warning.
func (r *Reconstructor) forward(ctx context.Context, genesis *types.StreamState, rec *types.CoinRecord) (*History, error) {
	h := &History{StreamID: util.NewStreamId(genesis.Coin.ID()), Genesis: genesis}
	state := genesis

	corrupt := func(height uint32, cause error) (*History, error) {
		h.Warning = &types.CorruptLineageError{CoinID: state.Coin.ID(), Height: height, Cause: cause}
		r.logger.Warn("stream lineage truncated",
			zap.Stringer("stream", h.StreamID),
			zap.Stringer("coin", h.Warning.CoinID),
			zap.Uint32("height", height),
			zap.Error(cause))
		return h, h.Warning
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rec == nil {
			var err error
			rec, err = r.coinRecord(ctx, state.Coin.ID())
			if errors.Is(err, types.ErrNotFound) {
				return corrupt(0, errors.Wrap(err, "child coin missing from ledger"))
			}
			if err != nil {
				return nil, err
			}
		}
		if !rec.Spent {
			h.Events = append(h.Events, types.StreamEvent{
				Height: rec.ConfirmedBlockIndex,
				Kind:   types.EventUnspent,
				State:  state,
			})
			return h, nil
		}

		height := rec.SpentBlockIndex
		spend, err := r.spend(ctx, state.Coin.ID(), height)
		if errors.Is(err, types.ErrNotFound) {
			return corrupt(height, err)
		}
		if err != nil {
			return nil, err
		}
		dec, err := r.codec.Decode(*spend)
		if err != nil {
			return corrupt(height, err)
		}

		if dec.Kind == SpendClawback {
			h.Events = append(h.Events, types.StreamEvent{
				Height: height,
				Kind:   types.EventClawback,
				Amount: dec.Payment,
			})
			return h, nil
		}

		dec.Child.StartTime = genesis.StartTime
		h.Events = append(h.Events, types.StreamEvent{
			Height: height,
			Kind:   types.EventClaim,
			Amount: state.Coin.Amount - dec.Child.Coin.Amount,
			State:  dec.Child,
		})
		state = dec.Child
		rec = nil
	}
}

// DiscoveredStream is a stream found through its recipient hint.
type DiscoveredStream struct {
	ID      util.StreamId
	Genesis *types.StreamState
	Height  uint32
}

// Discover lists the streams launched to recipient, oldest first. Hinted
// coins that are not stream launches are skipped.
func (r *Reconstructor) Discover(ctx context.Context, recipient types.Bytes32) ([]DiscoveredStream, error) {
	var records []types.CoinRecord
	err := r.retry.Retry(ctx, func(ctx context.Context) error {
		var err error
		records, err = r.ledger.GetCoinRecordsByHint(ctx, recipient, true)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "coins hinted to %s", recipient)
	}

	var out []DiscoveredStream
	for i := range records {
		rec := &records[i]
		genesis, err := r.genesis(ctx, rec)
		if errors.Is(err, types.ErrDecode) || errors.Is(err, types.ErrNotFound) {
			r.logger.Debug("hinted coin is not a stream", zap.Stringer("coin", rec.Coin.ID()), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		if genesis.Info.Recipient != recipient {
			continue
		}
		out = append(out, DiscoveredStream{ID: util.NewStreamId(genesis.Coin.ID()), Genesis: genesis, Height: rec.ConfirmedBlockIndex})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out, nil
}

// Locate lists the coins sitting at the puzzle hash the given parameters
// produce. A payer can use it before the stream id is known.
func (r *Reconstructor) Locate(ctx context.Context, assetID types.Bytes32, info types.StreamInfo) ([]types.CoinRecord, error) {
	ph := r.codec.Library().StreamPuzzleHash(assetID, info)
	var records []types.CoinRecord
	err := r.retry.Retry(ctx, func(ctx context.Context) error {
		var err error
		records, err = r.ledger.GetCoinRecordsByPuzzleHash(ctx, ph, true)
		return err
	})
	return records, errors.Wrapf(err, "coins at %s", ph)
}
