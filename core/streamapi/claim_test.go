package streamapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/poll"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles/puzzletest"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"github.com/yakuhito/streaming-sdk-go/core/util"
)

var fastPoll = poll.Task{Interval: time.Millisecond, Attempts: 20}

// walletKeys puts the keys of the given seeds after a few unrelated ones.
func walletKeys(seeds ...int64) [][]byte {
	var keys [][]byte
	for i := int64(0); i < 5; i++ {
		keys = append(keys, puzzletest.PublicKey(100+i))
	}
	for _, s := range seeds {
		keys = append(keys, puzzletest.PublicKey(s))
	}
	return keys
}

func newTestClaimer(c *chain, gw *fakeGateway, now int64) *Claimer {
	return NewClaimer(c.lib, c.ledger, gw,
		WithKeySearch(4, 40),
		WithPolling(fastPoll, fastPoll),
		WithClaimerRetry(testRetry),
		WithClock(func() time.Time { return time.Unix(now, 0) }),
	)
}

func (c *chain) fund(ph types.Bytes32, height uint32, amount uint64) types.Coin {
	coin := types.Coin{ParentCoinInfo: b32(byte(height)), PuzzleHash: ph, Amount: amount}
	c.ledger.addCoin(coin, height, nil)
	return coin
}

func conditionsOf(t *testing.T, spend types.CoinSpend) []*clvm.Program {
	sol, err := clvm.Deserialize(spend.Solution)
	require.NoError(t, err)
	conds, ok := puzzles.DelegatedConditions(sol)
	require.True(t, ok)
	return conds
}

func TestClaim(t *testing.T) {
	c := newChain(t, 1000, 0, 1000, true)
	recipient := c.genesis.Info.Recipient
	second := c.fund(recipient, 50, 3)
	lead := c.fund(recipient, 40, 4)

	gw := &fakeGateway{keys: walletKeys(1), signature: []byte{0xaa, 0xbb}}
	claimer := newTestClaimer(c, gw, 920)

	var steps []Step
	res, err := claimer.Claim(ctx(t), c.genesis, types.ClaimIntent{Mode: types.ModeClaim, FeeBudget: 5}, func(s Step) {
		steps = append(steps, s)
	})
	require.NoError(t, err)
	assert.Equal(t, []Step{StepFindKey, StepFindFeeCoins, StepPrepare, StepAwaitSignature, StepSubmit, StepAwaitInclusion, StepDone}, steps)

	assert.Equal(t, int64(800), res.PaymentTime)
	assert.Equal(t, uint64(800), res.Payment)
	assert.Equal(t, uint64(5), res.Fee)
	require.NotNil(t, res.Child)
	assert.Equal(t, uint64(200), res.Child.Coin.Amount)

	require.Len(t, c.ledger.pushed, 1)
	bundle := c.ledger.pushed[0]
	assert.Equal(t, types.HexBytes{0xaa, 0xbb}, bundle.AggregatedSignature)
	require.Len(t, bundle.CoinSpends, 3)

	assert.Equal(t, lead, bundle.CoinSpends[0].Coin)
	leadConds := conditionsOf(t, bundle.CoinSpends[0])
	require.Len(t, leadConds, 3)
	assert.True(t, puzzles.SendMessageCondition(puzzles.MessageModePuzzleToCoin, clvm.Int(800).MustAtom(), c.genesis.Coin.ID()).Equal(leadConds[0]))
	assert.True(t, puzzles.ReserveFeeCondition(5).Equal(leadConds[1]))
	assert.True(t, puzzles.CreateCoinCondition(recipient, 2, nil).Equal(leadConds[2]))

	assert.Equal(t, second, bundle.CoinSpends[1].Coin)
	otherConds := conditionsOf(t, bundle.CoinSpends[1])
	require.Len(t, otherConds, 1)
	assert.True(t, puzzles.AssertConcurrentSpendCondition(lead.ID()).Equal(otherConds[0]))

	dec, err := c.codec.Decode(bundle.CoinSpends[2])
	require.NoError(t, err)
	assert.Equal(t, SpendClaim, dec.Kind)
	assert.Equal(t, uint64(800), dec.Payment)
	assert.Equal(t, res.Child, dec.Child)

	h, err := c.reconstructor().FromGenesis(ctx(t), streamID(c))
	require.NoError(t, err)
	assert.Equal(t, res.Child, h.Tip())
}

func TestClawback(t *testing.T) {
	c := newChain(t, 1000, 0, 1000, true)
	c.fund(*c.genesis.Info.ClawbackPh, 40, 10)

	gw := &fakeGateway{keys: walletKeys(2)}
	res, err := newTestClaimer(c, gw, 100).Claim(ctx(t), c.genesis, types.ClaimIntent{Mode: types.ModeClawback, FeeBudget: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(400), res.PaymentTime)
	assert.Equal(t, uint64(400), res.Payment)
	assert.Nil(t, res.Child)

	dec, err := c.codec.Decode(c.ledger.pushed[0].CoinSpends[1])
	require.NoError(t, err)
	assert.Equal(t, SpendClawback, dec.Kind)

	h, err := c.reconstructor().FromGenesis(ctx(t), streamID(c))
	require.NoError(t, err)
	assert.True(t, h.ClawedBack())
	assert.Equal(t, uint64(400), Summarize(h, time.Unix(900, 0)).DisplayClaimable())
}

func TestClaimRejections(t *testing.T) {
	t.Run("no clawback party", func(t *testing.T) {
		c := newChain(t, 1000, 0, 1000, false)
		_, err := newTestClaimer(c, &fakeGateway{}, 500).Claim(ctx(t), c.genesis, types.ClaimIntent{Mode: types.ModeClawback}, nil)
		assert.ErrorIs(t, err, types.ErrNoClawback)
	})

	t.Run("closed stream", func(t *testing.T) {
		c := newChain(t, 1000, 0, 1000, false)
		_, err := newTestClaimer(c, &fakeGateway{}, 500).Claim(ctx(t), nil, types.ClaimIntent{}, nil)
		assert.ErrorIs(t, err, types.ErrStreamClosed)

		vested := *c.genesis
		vested.Info.LastPaymentTime = vested.Info.EndTime
		_, err = newTestClaimer(c, &fakeGateway{}, 500).Claim(ctx(t), &vested, types.ClaimIntent{}, nil)
		assert.ErrorIs(t, err, types.ErrStreamClosed)
	})

	t.Run("key not found", func(t *testing.T) {
		c := newChain(t, 1000, 0, 1000, false)
		gw := &fakeGateway{keys: walletKeys()}
		_, err := newTestClaimer(c, gw, 500).Claim(ctx(t), c.genesis, types.ClaimIntent{}, nil)
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
		assert.Equal(t, 2, gw.pages)
	})

	t.Run("key search is bounded", func(t *testing.T) {
		c := newChain(t, 1000, 0, 1000, false)
		var keys [][]byte
		for i := int64(0); i < 60; i++ {
			keys = append(keys, puzzletest.PublicKey(200+i))
		}
		gw := &fakeGateway{keys: append(keys, puzzletest.PublicKey(1))}
		_, err := newTestClaimer(c, gw, 500).Claim(ctx(t), c.genesis, types.ClaimIntent{}, nil)
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
		assert.Equal(t, 10, gw.pages)
	})

	t.Run("non-positive key search keeps defaults", func(t *testing.T) {
		c := newChain(t, 1000, 0, 1000, false)
		gw := &fakeGateway{}
		claimer := NewClaimer(c.lib, c.ledger, gw, WithKeySearch(0, -1))
		assert.Equal(t, DefaultKeyPageSize, claimer.keyPageSize)
		assert.Equal(t, DefaultKeySearchLimit, claimer.keySearchLimit)

		_, err := claimer.findKey(ctx(t), c.genesis.Info.Recipient)
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
		assert.Equal(t, 1, gw.pages)
	})

	t.Run("key search stops on cancel", func(t *testing.T) {
		c := newChain(t, 1000, 0, 1000, false)
		gw := &fakeGateway{keys: walletKeys(3)}
		cctx, cancel := context.WithCancel(ctx(t))
		cancel()
		_, err := newTestClaimer(c, gw, 500).findKey(cctx, c.genesis.Info.Recipient)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, gw.pages)
	})

	t.Run("broadcast rejected", func(t *testing.T) {
		c := newChain(t, 1000, 0, 1000, false)
		c.fund(c.genesis.Info.Recipient, 40, 10)
		c.ledger.reject = &types.TxStatus{Status: "FAILED", Error: "DOUBLE_SPEND"}

		_, err := newTestClaimer(c, &fakeGateway{keys: walletKeys(1)}, 500).Claim(ctx(t), c.genesis, types.ClaimIntent{FeeBudget: 1}, nil)
		assert.ErrorIs(t, err, types.ErrBroadcastRejected)
		var rejected *types.BroadcastRejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "failed to submit bundle with status: FAILED and error: DOUBLE_SPEND", err.Error())
	})
}

func TestClaimFundsFeeAddress(t *testing.T) {
	c := newChain(t, 1000, 0, 1000, false)
	recipient := c.genesis.Info.Recipient
	gw := &fakeGateway{keys: walletKeys(1)}
	gw.onTransfer = func(req types.TransferRequest) {
		ph, err := util.DecodeAddress(req.Address, util.MainnetPrefix)
		require.NoError(t, err)
		c.fund(ph, 60, req.Amount)
	}

	var steps []Step
	res, err := newTestClaimer(c, gw, 620).Claim(ctx(t), c.genesis, types.ClaimIntent{FeeBudget: 0}, func(s Step) {
		steps = append(steps, s)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Fee)
	assert.Contains(t, steps, StepFundFeeAddress)
	assert.Contains(t, steps, StepAwaitFunding)

	require.Len(t, gw.transfers, 1)
	assert.Equal(t, types.TransferRequest{
		Address: util.MustEncodeAddress(recipient, util.MainnetPrefix),
		Amount:  1,
		Fee:     1,
	}, gw.transfers[0])
}

func TestClaimInsufficientFunds(t *testing.T) {
	c := newChain(t, 1000, 0, 1000, false)
	gw := &fakeGateway{keys: walletKeys(1)}
	_, err := newTestClaimer(c, gw, 620).Claim(ctx(t), c.genesis, types.ClaimIntent{FeeBudget: 50}, nil)
	assert.ErrorIs(t, err, types.ErrInsufficientFunds)
	assert.Len(t, gw.transfers, 1)
	assert.Empty(t, c.ledger.pushed)
}

func TestConcurrentClaimRejected(t *testing.T) {
	c := newChain(t, 1000, 0, 1000, false)
	c.fund(c.genesis.Info.Recipient, 40, 10)
	gw := &fakeGateway{
		keys:     walletKeys(1),
		signGate: make(chan struct{}),
		signing:  make(chan struct{}),
	}
	claimer := newTestClaimer(c, gw, 620)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = claimer.Claim(ctx(t), c.genesis, types.ClaimIntent{FeeBudget: 1}, nil)
	}()

	<-gw.signing
	_, err := claimer.Claim(ctx(t), c.genesis, types.ClaimIntent{FeeBudget: 1}, nil)
	assert.ErrorIs(t, err, types.ErrClaimInProgress)

	close(gw.signGate)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Len(t, c.ledger.pushed, 1)
}

func TestPaymentTime(t *testing.T) {
	c := newChain(t, 1000, 0, 1000, true)
	claimer := newTestClaimer(c, &fakeGateway{}, 0)
	info := types.StreamInfo{LastPaymentTime: 200, EndTime: 1000}

	assert.Equal(t, int64(380), claimer.PaymentTime(info, types.ModeClaim, time.Unix(500, 0)))
	assert.Equal(t, int64(800), claimer.PaymentTime(info, types.ModeClawback, time.Unix(500, 0)))
	assert.Equal(t, int64(1000), claimer.PaymentTime(info, types.ModeClawback, time.Unix(900, 0)))
	assert.Equal(t, int64(1000), claimer.PaymentTime(info, types.ModeClaim, time.Unix(5000, 0)))
	assert.Equal(t, int64(200), claimer.PaymentTime(info, types.ModeClaim, time.Unix(250, 0)))
}

func TestFeeSelection(t *testing.T) {
	assert.Equal(t, uint64(1), NeededFee(0))
	assert.Equal(t, uint64(7), NeededFee(7))

	ph := b32(1)
	rec := func(parent byte, height uint32, amount uint64, spent bool) types.CoinRecord {
		return types.CoinRecord{
			Coin:                types.Coin{ParentCoinInfo: b32(parent), PuzzleHash: ph, Amount: amount},
			ConfirmedBlockIndex: height,
			Spent:               spent,
		}
	}
	records := []types.CoinRecord{
		rec(1, 30, 5, false),
		rec(2, 10, 100, true),
		rec(3, 10, 2, false),
		rec(4, 20, 2, false),
		rec(5, 10, 1, false),
	}

	coins, total, ok := SelectFeeCoins(records, 4)
	require.True(t, ok)
	assert.Equal(t, uint64(5), total)
	require.Len(t, coins, 3)
	assert.Equal(t, []types.Bytes32{b32(3), b32(5), b32(4)},
		[]types.Bytes32{coins[0].ParentCoinInfo, coins[1].ParentCoinInfo, coins[2].ParentCoinInfo})

	_, total, ok = SelectFeeCoins(records, 11)
	assert.False(t, ok)
	assert.Equal(t, uint64(10), total)

	_, _, ok = SelectFeeCoins(nil, NeededFee(0))
	assert.False(t, ok)
}

func TestStepText(t *testing.T) {
	assert.Equal(t, "Searching for public key...", StepFindKey.String())
	assert.Equal(t, "Awaiting block inclusion...", StepAwaitInclusion.String())
	assert.Equal(t, "unknown step", Step(99).String())
}
