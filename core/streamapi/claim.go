package streamapi

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/logging"
	"github.com/yakuhito/streaming-sdk-go/core/poll"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"github.com/yakuhito/streaming-sdk-go/core/util"
	"go.uber.org/zap"
)

const (
	DefaultKeyPageSize    = 500
	DefaultKeySearchLimit = 100000
	// DefaultClaimTimeLag keeps claims behind the latest block timestamp.
	DefaultClaimTimeLag = 120 * time.Second
	// DefaultClawbackOffset leaves a clawback room to settle before the
	// puzzle's own deadline check.
	DefaultClawbackOffset = 300 * time.Second
	DefaultPollInterval   = 10 * time.Second
	// DefaultPollAttempts bounds funding and inclusion waits to about an hour.
	DefaultPollAttempts = 360
)

// Claimer builds, signs and submits claims and clawbacks.
type Claimer struct {
	lib     *puzzles.Library
	ledger  types.LedgerClient
	gateway types.SigningGateway
	logger  *zap.Logger

	keyPageSize    int
	keySearchLimit int
	claimTimeLag   time.Duration
	clawbackOffset time.Duration
	addressPrefix  string
	funding        poll.Task
	inclusion      poll.Task
	retry          poll.Task
	now            func() time.Time

	mu       sync.Mutex
	inFlight map[types.Bytes32]struct{}
}

type ClaimerOption func(*Claimer)

func WithClaimerLogger(l *zap.Logger) ClaimerOption {
	return func(c *Claimer) { c.logger = l }
}

// WithKeySearch sets the wallet key page size and the index the search
// stops at. Non-positive values keep the defaults.
func WithKeySearch(pageSize, limit int) ClaimerOption {
	return func(c *Claimer) {
		if pageSize > 0 {
			c.keyPageSize = pageSize
		}
		if limit > 0 {
			c.keySearchLimit = limit
		}
	}
}

// WithTiming sets the claim lag behind now and the clawback lead ahead of now.
func WithTiming(claimLag, clawbackOffset time.Duration) ClaimerOption {
	return func(c *Claimer) {
		c.claimTimeLag = claimLag
		c.clawbackOffset = clawbackOffset
	}
}

// WithPolling sets the funding and inclusion wait loops.
func WithPolling(funding, inclusion poll.Task) ClaimerOption {
	return func(c *Claimer) {
		c.funding = funding
		c.inclusion = inclusion
	}
}

func WithClaimerRetry(task poll.Task) ClaimerOption {
	return func(c *Claimer) { c.retry = task }
}

// WithAddressPrefix sets the network prefix of addresses sent to the wallet.
func WithAddressPrefix(prefix string) ClaimerOption {
	return func(c *Claimer) { c.addressPrefix = prefix }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ClaimerOption {
	return func(c *Claimer) { c.now = now }
}

func NewClaimer(lib *puzzles.Library, ledger types.LedgerClient, gateway types.SigningGateway, opts ...ClaimerOption) *Claimer {
	pollTask := poll.Task{Interval: DefaultPollInterval, Attempts: DefaultPollAttempts}
	c := &Claimer{
		lib:            lib,
		ledger:         ledger,
		gateway:        gateway,
		keyPageSize:    DefaultKeyPageSize,
		keySearchLimit: DefaultKeySearchLimit,
		claimTimeLag:   DefaultClaimTimeLag,
		clawbackOffset: DefaultClawbackOffset,
		addressPrefix:  util.MainnetPrefix,
		funding:        pollTask,
		inclusion:      pollTask,
		retry:          DefaultRetry,
		now:            time.Now,
		inFlight:       make(map[types.Bytes32]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDefault(c.logger)
	return c
}

// ClaimResult describes a confirmed claim or clawback.
type ClaimResult struct {
	Bundle      types.SpendBundle
	PaymentTime int64
	Payment     uint64
	Fee         uint64
	// Child is the recreated stream coin; nil after a clawback.
	Child *types.StreamState
}

// ClaimPlan is the unsigned output of Build.
type ClaimPlan struct {
	Spends      []types.CoinSpend
	PaymentTime int64
	Payment     uint64
	Fee         uint64
	Child       *types.StreamState
}

// PaymentTime is the timestamp a claim made at now commits to: now minus the
// claim lag, or now plus the clawback offset, kept within the stream's
// [last payment, end] window.
func (c *Claimer) PaymentTime(info types.StreamInfo, mode types.ClaimMode, now time.Time) int64 {
	t := now.Add(-c.claimTimeLag).Unix()
	if mode == types.ModeClawback {
		t = now.Add(c.clawbackOffset).Unix()
	}
	if t > info.EndTime {
		t = info.EndTime
	}
	if t < info.LastPaymentTime {
		t = info.LastPaymentTime
	}
	return t
}

// Build assembles the spends of a claim without any I/O. feeCoins are spent
// in order with the first one leading: it authorizes the stream spend by
// message, reserves the fee and returns change to its own puzzle hash.
// The others only assert they are spent together with it.
func (c *Claimer) Build(state *types.StreamState, mode types.ClaimMode, pk []byte, feeCoins []types.Coin, fee uint64, paymentTime int64) (*ClaimPlan, error) {
	if state.Proof == nil {
		return nil, errors.Errorf("stream coin %s has no lineage proof", state.Coin.ID())
	}
	if len(feeCoins) == 0 {
		return nil, errors.Wrap(types.ErrInsufficientFunds, "no fee coins")
	}
	var total uint64
	for _, coin := range feeCoins {
		total += coin.Amount
	}
	if total < fee {
		return nil, errors.Wrapf(types.ErrInsufficientFunds, "fee coins hold %d, need %d", total, fee)
	}
	standard, err := c.lib.StandardPuzzle(pk)
	if err != nil {
		return nil, err
	}

	streamID := state.Coin.ID()
	lead := feeCoins[0]
	leadConds := []*clvm.Program{
		puzzles.SendMessageCondition(puzzles.MessageModePuzzleToCoin, clvm.Int(paymentTime).MustAtom(), streamID),
		puzzles.ReserveFeeCondition(fee),
	}
	if total > fee {
		leadConds = append(leadConds, puzzles.CreateCoinCondition(lead.PuzzleHash, total-fee, nil))
	}

	spends := make([]types.CoinSpend, 0, len(feeCoins)+1)
	spends = append(spends, types.NewCoinSpend(lead, standard, puzzles.StandardSolution(leadConds...)))
	leadID := lead.ID()
	for _, coin := range feeCoins[1:] {
		spends = append(spends, types.NewCoinSpend(coin, standard,
			puzzles.StandardSolution(puzzles.AssertConcurrentSpendCondition(leadID))))
	}

	toPay := AmountClaimable(state.Info, state.Coin.Amount, paymentTime)
	sol := puzzles.StreamSolution{
		MyAmount:    state.Coin.Amount,
		PaymentTime: paymentTime,
		ToPay:       toPay,
		Clawback:    mode == types.ModeClawback,
	}
	innerPH := c.lib.StreamInnerPuzzleHash(state.Info)
	spends = append(spends, types.NewCoinSpend(
		state.Coin,
		c.lib.StreamPuzzle(state.AssetID, state.Info),
		puzzles.CatSolution(sol.Program(), state.Proof, state.Coin, innerPH),
	))

	plan := &ClaimPlan{Spends: spends, PaymentTime: paymentTime, Payment: toPay, Fee: fee}
	if mode == types.ModeClaim {
		plan.Child = NewCodec(c.lib).child(state, paymentTime, state.Coin.Amount-toPay)
	}
	return plan, nil
}

func (c *Claimer) acquire(id types.Bytes32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[id]; busy {
		return false
	}
	c.inFlight[id] = struct{}{}
	return true
}

func (c *Claimer) release(id types.Bytes32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, id)
}

// Claim runs a claim or clawback against the unspent stream coin state and
// returns once the coin is seen spent. A second call for the same coin while
// one is running fails with ErrClaimInProgress.
func (c *Claimer) Claim(ctx context.Context, state *types.StreamState, intent types.ClaimIntent, observe ProgressObserver) (*ClaimResult, error) {
	if state == nil || state.Coin.Amount == 0 || state.FullyVested() {
		return nil, types.ErrStreamClosed
	}
	party := state.Info.Recipient
	if intent.Mode == types.ModeClawback {
		if state.Info.ClawbackPh == nil {
			return nil, types.ErrNoClawback
		}
		party = *state.Info.ClawbackPh
	}

	streamID := state.Coin.ID()
	if !c.acquire(streamID) {
		return nil, errors.Wrapf(types.ErrClaimInProgress, "coin %s", streamID)
	}
	defer c.release(streamID)

	logger := c.logger.With(zap.Stringer("coin", streamID), zap.Stringer("mode", intent.Mode))

	observe.notify(StepFindKey)
	pk, err := c.findKey(ctx, party)
	if err != nil {
		return nil, err
	}

	observe.notify(StepFindFeeCoins)
	fee := NeededFee(intent.FeeBudget)
	feePH, err := c.lib.StandardPuzzleHash(pk)
	if err != nil {
		return nil, err
	}
	coins, _, ok, err := c.feeCoins(ctx, feePH, fee)
	if err != nil {
		return nil, err
	}
	if !ok {
		if coins, err = c.fund(ctx, feePH, fee, observe); err != nil {
			return nil, err
		}
	}

	observe.notify(StepPrepare)
	paymentTime := c.PaymentTime(state.Info, intent.Mode, c.now())
	plan, err := c.Build(state, intent.Mode, pk, coins, fee, paymentTime)
	if err != nil {
		return nil, err
	}
	logger.Info("claim prepared",
		zap.Int64("payment_time", plan.PaymentTime),
		zap.Uint64("payment", plan.Payment),
		zap.Uint64("fee", fee),
		zap.Int("fee_coins", len(coins)))

	observe.notify(StepAwaitSignature)
	sig, err := c.gateway.SignSpends(ctx, plan.Spends)
	if err != nil {
		return nil, errors.Wrap(err, "signing claim")
	}
	bundle := types.SpendBundle{CoinSpends: plan.Spends, AggregatedSignature: sig}

	observe.notify(StepSubmit)
	status, err := c.ledger.PushTx(ctx, bundle)
	if err != nil {
		return nil, errors.Wrap(err, "submitting claim")
	}
	if !status.Accepted {
		logger.Warn("claim rejected", zap.String("status", status.Status), zap.String("error", status.Error))
		return nil, &types.BroadcastRejectedError{Status: status.Status, Reason: status.Error}
	}

	observe.notify(StepAwaitInclusion)
	err = c.inclusion.Run(ctx, func(ctx context.Context) (bool, error) {
		rec, err := c.ledger.GetCoinRecordByName(ctx, streamID)
		if err != nil {
			if types.IsTransient(err) {
				return false, nil
			}
			return false, err
		}
		return rec.Spent, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "awaiting block inclusion")
	}
	logger.Info("claim included")

	observe.notify(StepDone)
	return &ClaimResult{
		Bundle:      bundle,
		PaymentTime: plan.PaymentTime,
		Payment:     plan.Payment,
		Fee:         fee,
		Child:       plan.Child,
	}, nil
}

// fund asks the wallet to send fee coins to feePH and waits for them.
func (c *Claimer) fund(ctx context.Context, feePH types.Bytes32, fee uint64, observe ProgressObserver) ([]types.Coin, error) {
	address, err := util.EncodeAddress(feePH, c.addressPrefix)
	if err != nil {
		return nil, err
	}
	observe.notify(StepFundFeeAddress)
	if err := c.gateway.RequestTransfer(ctx, types.TransferRequest{Address: address, Amount: fee, Fee: fee}); err != nil {
		return nil, errors.Wrap(err, "requesting fee coins")
	}

	observe.notify(StepAwaitFunding)
	var coins []types.Coin
	err = c.funding.Run(ctx, func(ctx context.Context) (bool, error) {
		var ok bool
		var err error
		coins, _, ok, err = c.feeCoins(ctx, feePH, fee)
		if types.IsTransient(err) {
			return false, nil
		}
		return ok, err
	})
	if errors.Is(err, poll.ErrExhausted) {
		return nil, errors.Wrapf(types.ErrInsufficientFunds, "no fee coins of %d at %s", fee, address)
	}
	return coins, err
}
