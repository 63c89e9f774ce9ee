package streamapi

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles/puzzletest"
	"github.com/yakuhito/streaming-sdk-go/core/types"
)

func b32(b byte) types.Bytes32 {
	var out types.Bytes32
	copy(out[:], bytes.Repeat([]byte{b}, 32))
	return out
}

// fakeLedger is an in-memory LedgerClient.
type fakeLedger struct {
	mu       sync.Mutex
	records  map[types.Bytes32]*types.CoinRecord
	spends   map[types.Bytes32]types.CoinSpend
	hints    map[types.Bytes32][]types.Bytes32
	order    []types.Bytes32
	height   uint32
	failNext int
	calls    int
	reject   *types.TxStatus
	pushed   []types.SpendBundle
	onPush   func(types.SpendBundle)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		records: map[types.Bytes32]*types.CoinRecord{},
		spends:  map[types.Bytes32]types.CoinSpend{},
		hints:   map[types.Bytes32][]types.Bytes32{},
		height:  100,
	}
}

func (l *fakeLedger) addCoin(coin types.Coin, height uint32, hint *types.Bytes32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := coin.ID()
	l.records[id] = &types.CoinRecord{Coin: coin, ConfirmedBlockIndex: height}
	l.order = append(l.order, id)
	if hint != nil {
		l.hints[*hint] = append(l.hints[*hint], id)
	}
}

func (l *fakeLedger) addSpend(spend types.CoinSpend, height uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := spend.Coin.ID()
	l.spends[id] = spend
	if rec, ok := l.records[id]; ok {
		rec.Spent = true
		rec.SpentBlockIndex = height
	}
}

func (l *fakeLedger) transient() error {
	l.calls++
	if l.failNext > 0 {
		l.failNext--
		return types.Transient(errors.New("connection reset by peer"))
	}
	return nil
}

func (l *fakeLedger) GetCoinRecordByName(_ context.Context, id types.Bytes32) (*types.CoinRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.transient(); err != nil {
		return nil, err
	}
	rec, ok := l.records[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (l *fakeLedger) GetPuzzleAndSolution(_ context.Context, id types.Bytes32, height uint32) (*types.CoinSpend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.transient(); err != nil {
		return nil, err
	}
	spend, ok := l.spends[id]
	if !ok || l.records[id] == nil || l.records[id].SpentBlockIndex != height {
		return nil, types.ErrNotFound
	}
	return &spend, nil
}

func (l *fakeLedger) GetCoinRecordsByHint(_ context.Context, hint types.Bytes32, includeSpent bool) ([]types.CoinRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.CoinRecord
	for _, id := range l.hints[hint] {
		if rec := l.records[id]; includeSpent || !rec.Spent {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (l *fakeLedger) GetCoinRecordsByPuzzleHash(_ context.Context, ph types.Bytes32, includeSpent bool) ([]types.CoinRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.CoinRecord
	for _, id := range l.order {
		rec := l.records[id]
		if rec.Coin.PuzzleHash == ph && (includeSpent || !rec.Spent) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (l *fakeLedger) PushTx(_ context.Context, bundle types.SpendBundle) (*types.TxStatus, error) {
	l.mu.Lock()
	l.pushed = append(l.pushed, bundle)
	reject := l.reject
	l.mu.Unlock()
	if reject != nil {
		return reject, nil
	}
	l.mu.Lock()
	l.height++
	height := l.height
	l.mu.Unlock()
	for _, spend := range bundle.CoinSpends {
		l.addSpend(spend, height)
	}
	if l.onPush != nil {
		l.onPush(bundle)
	}
	return &types.TxStatus{Accepted: true, Status: "SUCCESS"}, nil
}

// fakeGateway is an in-memory SigningGateway.
type fakeGateway struct {
	mu         sync.Mutex
	keys       [][]byte
	pages      int
	signature  []byte
	signGate   chan struct{}
	signing    chan struct{}
	transfers  []types.TransferRequest
	onTransfer func(types.TransferRequest)
}

func (g *fakeGateway) ListPublicKeys(_ context.Context, limit, offset int) ([][]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pages++
	if offset >= len(g.keys) {
		return nil, nil
	}
	end := offset + limit
	if end > len(g.keys) {
		end = len(g.keys)
	}
	return g.keys[offset:end], nil
}

func (g *fakeGateway) SignSpends(ctx context.Context, _ []types.CoinSpend) ([]byte, error) {
	if g.signing != nil {
		close(g.signing)
	}
	if g.signGate != nil {
		select {
		case <-g.signGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.signature, nil
}

func (g *fakeGateway) RequestTransfer(_ context.Context, req types.TransferRequest) error {
	g.mu.Lock()
	g.transfers = append(g.transfers, req)
	g.mu.Unlock()
	if g.onTransfer != nil {
		g.onTransfer(req)
	}
	return nil
}

// chain launches a stream on a fake ledger and spends it step by step.
type chain struct {
	t      *testing.T
	lib    *puzzles.Library
	codec  *Codec
	ledger *fakeLedger
	asset  types.Bytes32

	launchParent types.Coin
	genesis      *types.StreamState
	tip          *types.StreamState
	height       uint32
}

func newChain(t *testing.T, total uint64, start, end int64, withClawback bool) *chain {
	lib := puzzletest.Library()
	c := &chain{
		t:      t,
		lib:    lib,
		codec:  NewCodec(lib),
		ledger: newFakeLedger(),
		asset:  b32(0xaa),
		height: 10,
	}
	info := types.StreamInfo{Recipient: recipientPH(t, lib), EndTime: end, LastPaymentTime: start}
	if withClawback {
		claw := clawbackPH(t, lib)
		info.ClawbackPh = &claw
	}

	payer, err := lib.StandardPuzzle(puzzletest.PublicKey(99))
	require.NoError(t, err)
	payerInnerPH := types.Bytes32(payer.TreeHash())
	c.launchParent = types.Coin{
		ParentCoinInfo: b32(0x01),
		PuzzleHash:     lib.CatPuzzleHash(c.asset, payerInnerPH),
		Amount:         total + 5,
	}
	proof := &types.LineageProof{ParentParentCoinInfo: b32(0x02), ParentInnerPuzzleHash: b32(0x03), ParentAmount: total + 5}
	innerPH := lib.StreamInnerPuzzleHash(info)
	launch := types.NewCoinSpend(
		c.launchParent,
		lib.CatPuzzle(c.asset, payer),
		puzzles.CatSolution(
			puzzles.StandardSolution(
				puzzles.CreateCoinCondition(innerPH, total, puzzles.LaunchHints(info)),
				puzzles.CreateCoinCondition(payerInnerPH, 5, nil),
			),
			proof, c.launchParent, payerInnerPH,
		),
	)
	c.ledger.addCoin(c.launchParent, 5, nil)
	c.ledger.addSpend(launch, c.height)

	genesisCoin := types.Coin{
		ParentCoinInfo: c.launchParent.ID(),
		PuzzleHash:     lib.StreamPuzzleHash(c.asset, info),
		Amount:         total,
	}
	c.ledger.addCoin(genesisCoin, c.height, &info.Recipient)
	c.genesis = &types.StreamState{
		Coin:      genesisCoin,
		AssetID:   c.asset,
		Info:      info,
		StartTime: start,
		Proof: &types.LineageProof{
			ParentParentCoinInfo:  c.launchParent.ParentCoinInfo,
			ParentInnerPuzzleHash: payerInnerPH,
			ParentAmount:          c.launchParent.Amount,
		},
	}
	c.tip = c.genesis

	// Claims pushed through the ledger recreate the stream coin.
	c.ledger.onPush = func(bundle types.SpendBundle) {
		for _, spend := range bundle.CoinSpends {
			if dec, err := c.codec.Decode(spend); err == nil && dec.Child != nil {
				c.ledger.addCoin(dec.Child.Coin, c.ledger.height, nil)
			}
		}
	}
	return c
}

func recipientPH(t *testing.T, lib *puzzles.Library) types.Bytes32 {
	ph, err := lib.StandardPuzzleHash(puzzletest.PublicKey(1))
	require.NoError(t, err)
	return ph
}

func clawbackPH(t *testing.T, lib *puzzles.Library) types.Bytes32 {
	ph, err := lib.StandardPuzzleHash(puzzletest.PublicKey(2))
	require.NoError(t, err)
	return ph
}

// streamSpend spends the current tip at paymentTime.
func (c *chain) streamSpend(paymentTime int64, clawback bool) types.CoinSpend {
	tip := c.tip
	sol := puzzles.StreamSolution{
		MyAmount:    tip.Coin.Amount,
		PaymentTime: paymentTime,
		ToPay:       AmountClaimable(tip.Info, tip.Coin.Amount, paymentTime),
		Clawback:    clawback,
	}
	return types.NewCoinSpend(
		tip.Coin,
		c.lib.StreamPuzzle(tip.AssetID, tip.Info),
		puzzles.CatSolution(sol.Program(), tip.Proof, tip.Coin, c.lib.StreamInnerPuzzleHash(tip.Info)),
	)
}

func (c *chain) claim(paymentTime int64) *types.StreamState {
	spend := c.streamSpend(paymentTime, false)
	dec, err := c.codec.Decode(spend)
	require.NoError(c.t, err)
	c.height += 10
	c.ledger.addSpend(spend, c.height)
	dec.Child.StartTime = c.genesis.StartTime
	c.ledger.addCoin(dec.Child.Coin, c.height, nil)
	c.tip = dec.Child
	return dec.Child
}

func (c *chain) clawback(paymentTime int64) {
	spend := c.streamSpend(paymentTime, true)
	c.height += 10
	c.ledger.addSpend(spend, c.height)
	c.tip = nil
}

func (c *chain) reconstructor() *Reconstructor {
	return NewReconstructor(c.ledger, c.codec, WithRetry(testRetry))
}
