// Package streamapi decodes stream coin spends, rebuilds stream histories
// from the ledger, computes vested amounts and builds claims.
package streamapi

import (
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
	"github.com/yakuhito/streaming-sdk-go/core/types"
)

// SpendKind is the closed set of outcomes of decoding a stream coin's spend.
type SpendKind int

const (
	// SpendClaim paid the recipient and recreated the stream with a later
	// last payment time. The final claim recreates it with a zero amount.
	SpendClaim SpendKind = iota
	// SpendClawback paid the vested amount to the recipient and returned
	// the rest to the clawback party. No stream coin follows it.
	SpendClawback
)

func (k SpendKind) String() string {
	if k == SpendClawback {
		return "clawback"
	}
	return "claim"
}

// DecodedSpend is the result of Codec.Decode.
type DecodedSpend struct {
	Kind SpendKind
	// Spent is the state of the coin that was spent.
	Spent *types.StreamState
	// Child is the recreated stream coin for a claim, possibly with a zero
	// amount. It is nil for a clawback.
	Child *types.StreamState
	// Payment is what the recipient received in this spend.
	Payment     uint64
	PaymentTime int64
}

// Codec recognizes stream coin spends. It is pure and safe for concurrent use.
type Codec struct {
	lib *puzzles.Library
}

func NewCodec(lib *puzzles.Library) *Codec {
	return &Codec{lib: lib}
}

// Library returns the puzzle library the codec matches against.
func (c *Codec) Library() *puzzles.Library { return c.lib }

func decodeErr(format string, args ...any) error {
	return errors.Wrapf(types.ErrDecode, format, args...)
}

// Decode parses the spend of a stream coin. Puzzles that are not token
// wrapped streams fail with ErrUnrecognizedPuzzle; anything malformed fails
// with ErrDecode.
func (c *Codec) Decode(spend types.CoinSpend) (*DecodedSpend, error) {
	puzzle, err := clvm.Deserialize(spend.PuzzleReveal)
	if err != nil {
		return nil, errors.Wrap(types.ErrDecode, err.Error())
	}
	if types.Bytes32(puzzle.TreeHash()) != spend.Coin.PuzzleHash {
		return nil, decodeErr("puzzle reveal does not hash to %s", spend.Coin.PuzzleHash)
	}
	assetID, inner, ok := c.lib.ParseCat(puzzle)
	if !ok {
		return nil, types.ErrUnrecognizedPuzzle
	}
	info, ok, err := c.lib.ParseStreamInner(inner)
	if err != nil {
		return nil, errors.Wrap(types.ErrDecode, err.Error())
	}
	if !ok {
		return nil, types.ErrUnrecognizedPuzzle
	}

	solution, err := clvm.Deserialize(spend.Solution)
	if err != nil {
		return nil, errors.Wrap(types.ErrDecode, err.Error())
	}
	innerSolution, ok := puzzles.CatInnerSolution(solution)
	if !ok {
		return nil, decodeErr("token solution is not a list")
	}
	sol, err := puzzles.ParseStreamSolution(innerSolution)
	if err != nil {
		return nil, errors.Wrap(types.ErrDecode, err.Error())
	}

	coin := spend.Coin
	if sol.MyAmount != coin.Amount {
		return nil, decodeErr("solution amount %d does not match coin amount %d", sol.MyAmount, coin.Amount)
	}
	if sol.PaymentTime < info.LastPaymentTime || sol.PaymentTime > info.EndTime {
		return nil, decodeErr("payment time %d outside [%d, %d]", sol.PaymentTime, info.LastPaymentTime, info.EndTime)
	}
	if expected := AmountClaimable(info, coin.Amount, sol.PaymentTime); sol.ToPay != expected {
		return nil, decodeErr("solution pays %d, puzzle allows %d", sol.ToPay, expected)
	}

	spent := &types.StreamState{
		Coin:      coin,
		AssetID:   assetID,
		Info:      info,
		StartTime: info.LastPaymentTime,
		Proof:     lineageProof(solution),
	}
	out := &DecodedSpend{
		Kind:        SpendClaim,
		Spent:       spent,
		Payment:     sol.ToPay,
		PaymentTime: sol.PaymentTime,
	}
	if sol.Clawback {
		if info.ClawbackPh == nil {
			return nil, decodeErr("clawback spend of a stream without clawback party")
		}
		out.Kind = SpendClawback
		return out, nil
	}
	out.Child = c.child(spent, sol.PaymentTime, coin.Amount-sol.ToPay)
	return out, nil
}

// child derives the stream coin a claim recreates.
func (c *Codec) child(parent *types.StreamState, paymentTime int64, amount uint64) *types.StreamState {
	info := parent.Info.WithLastPaymentTime(paymentTime)
	return &types.StreamState{
		Coin: types.Coin{
			ParentCoinInfo: parent.Coin.ID(),
			PuzzleHash:     c.lib.StreamPuzzleHash(parent.AssetID, info),
			Amount:         amount,
		},
		AssetID:   parent.AssetID,
		Info:      info,
		StartTime: parent.StartTime,
		Proof: &types.LineageProof{
			ParentParentCoinInfo:  parent.Coin.ParentCoinInfo,
			ParentInnerPuzzleHash: c.lib.StreamInnerPuzzleHash(parent.Info),
			ParentAmount:          parent.Coin.Amount,
		},
	}
}

// lineageProof reads the proof the spender supplied for its own coin.
func lineageProof(solution *clvm.Program) *types.LineageProof {
	parts, err := solution.ToList()
	if err != nil || len(parts) < 2 {
		return nil
	}
	fields, err := parts[1].ToList()
	if err != nil || len(fields) != 3 {
		return nil
	}
	parent, err1 := fields[0].Bytes32()
	innerPH, err2 := fields[1].Bytes32()
	amount, err3 := fields[2].Uint64()
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	return &types.LineageProof{ParentParentCoinInfo: parent, ParentInnerPuzzleHash: innerPH, ParentAmount: amount}
}

// DecodeLaunch finds the stream coin childID among the outputs of
// parentSpend. The parent must be a token coin spent through a standard
// delegated spend, and the child's memos must carry its stream parameters.
func (c *Codec) DecodeLaunch(parentSpend types.CoinSpend, childID types.Bytes32) (*types.StreamState, error) {
	puzzle, err := clvm.Deserialize(parentSpend.PuzzleReveal)
	if err != nil {
		return nil, errors.Wrap(types.ErrDecode, err.Error())
	}
	assetID, inner, ok := c.lib.ParseCat(puzzle)
	if !ok {
		return nil, errors.Wrap(types.ErrUnrecognizedPuzzle, "launch parent is not a token coin")
	}
	solution, err := clvm.Deserialize(parentSpend.Solution)
	if err != nil {
		return nil, errors.Wrap(types.ErrDecode, err.Error())
	}
	innerSolution, ok := puzzles.CatInnerSolution(solution)
	if !ok {
		return nil, decodeErr("launch solution is not a list")
	}
	conds, ok := puzzles.DelegatedConditions(innerSolution)
	if !ok {
		return nil, errors.Wrap(types.ErrUnrecognizedPuzzle, "launch parent is not a delegated spend")
	}

	parent := parentSpend.Coin
	parentID := parent.ID()
	for _, cond := range conds {
		cc, ok, err := puzzles.ParseCreateCoin(cond)
		if err != nil {
			return nil, errors.Wrap(types.ErrDecode, err.Error())
		}
		if !ok {
			continue
		}
		coin := types.Coin{
			ParentCoinInfo: parentID,
			PuzzleHash:     c.lib.CatPuzzleHash(assetID, cc.PuzzleHash),
			Amount:         cc.Amount,
		}
		if coin.ID() != childID {
			continue
		}
		info, err := puzzles.ParseLaunchHints(cc.Memos)
		if err != nil {
			return nil, errors.Wrap(types.ErrDecode, err.Error())
		}
		if c.lib.StreamInnerPuzzleHash(info) != cc.PuzzleHash {
			return nil, decodeErr("launch memos do not reproduce puzzle hash %s", cc.PuzzleHash)
		}
		return &types.StreamState{
			Coin:      coin,
			AssetID:   assetID,
			Info:      info,
			StartTime: info.LastPaymentTime,
			Proof: &types.LineageProof{
				ParentParentCoinInfo:  parent.ParentCoinInfo,
				ParentInnerPuzzleHash: inner.TreeHash(),
				ParentAmount:          parent.Amount,
			},
		}, nil
	}
	return nil, decodeErr("launch spend does not create %s", childID)
}
