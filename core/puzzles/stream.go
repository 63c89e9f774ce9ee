package puzzles

import (
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/types"
)

// streamArgs curries (SELF_HASH RECIPIENT CLAWBACK_PH END_TIME LAST_PAYMENT_TIME).
func (l *Library) streamArgs(info types.StreamInfo) []*clvm.Program {
	clawback := clvm.Nil()
	if info.ClawbackPh != nil {
		clawback = clvm.Atom(info.ClawbackPh[:])
	}
	return []*clvm.Program{
		clvm.Atom(l.StreamModHash[:]),
		clvm.Atom(info.Recipient[:]),
		clawback,
		clvm.Int(info.EndTime),
		clvm.Int(info.LastPaymentTime),
	}
}

// StreamInnerPuzzle curries info into the streaming module.
func (l *Library) StreamInnerPuzzle(info types.StreamInfo) *clvm.Program {
	return clvm.Curry(l.streamMod, l.streamArgs(info)...)
}

// StreamInnerPuzzleHash is computed from hashes only; no coin has to exist.
func (l *Library) StreamInnerPuzzleHash(info types.StreamInfo) types.Bytes32 {
	args := l.streamArgs(info)
	hashes := make([][32]byte, len(args))
	for i, a := range args {
		hashes[i] = a.TreeHash()
	}
	return clvm.CurryTreeHash(l.StreamModHash, hashes...)
}

// StreamPuzzleHash is the full token-wrapped puzzle hash of a stream coin.
func (l *Library) StreamPuzzleHash(assetID types.Bytes32, info types.StreamInfo) types.Bytes32 {
	return l.CatPuzzleHash(assetID, l.StreamInnerPuzzleHash(info))
}

// StreamPuzzle is the full token-wrapped stream puzzle.
func (l *Library) StreamPuzzle(assetID types.Bytes32, info types.StreamInfo) *clvm.Program {
	return l.CatPuzzle(assetID, l.StreamInnerPuzzle(info))
}

// ParseStreamInner reads the curried parameters back. ok is false when inner
// is not the streaming module.
func (l *Library) ParseStreamInner(inner *clvm.Program) (info types.StreamInfo, ok bool, err error) {
	mod, args, curried := clvm.Uncurry(inner)
	if !curried || types.Bytes32(mod.TreeHash()) != l.StreamModHash {
		return info, false, nil
	}
	if len(args) != 5 {
		return info, true, errors.Errorf("streaming puzzle has %d curried arguments", len(args))
	}
	if info.Recipient, err = args[1].Bytes32(); err != nil {
		return info, true, errors.Wrap(err, "recipient")
	}
	if !args[2].IsNil() {
		ph, err := args[2].Bytes32()
		if err != nil {
			return info, true, errors.Wrap(err, "clawback puzzle hash")
		}
		claw := types.Bytes32(ph)
		info.ClawbackPh = &claw
	}
	if info.EndTime, err = args[3].Int64(); err != nil {
		return info, true, errors.Wrap(err, "end time")
	}
	if info.LastPaymentTime, err = args[4].Int64(); err != nil {
		return info, true, errors.Wrap(err, "last payment time")
	}
	return info, true, nil
}

// StreamSolution is the inner solution (my_amount payment_time to_pay clawback).
type StreamSolution struct {
	MyAmount    uint64
	PaymentTime int64
	ToPay       uint64
	Clawback    bool
}

func (s StreamSolution) Program() *clvm.Program {
	return clvm.List(clvm.Uint(s.MyAmount), clvm.Int(s.PaymentTime), clvm.Uint(s.ToPay), clvm.Bool(s.Clawback))
}

// ParseStreamSolution decodes an inner stream solution.
func ParseStreamSolution(p *clvm.Program) (StreamSolution, error) {
	var s StreamSolution
	parts, err := p.ToList()
	if err != nil {
		return s, errors.Wrap(err, "stream solution")
	}
	if len(parts) != 4 {
		return s, errors.Errorf("stream solution has %d elements", len(parts))
	}
	if s.MyAmount, err = parts[0].Uint64(); err != nil {
		return s, errors.Wrap(err, "my_amount")
	}
	if s.PaymentTime, err = parts[1].Int64(); err != nil {
		return s, errors.Wrap(err, "payment_time")
	}
	if s.ToPay, err = parts[2].Uint64(); err != nil {
		return s, errors.Wrap(err, "to_pay")
	}
	s.Clawback = !parts[3].IsNil()
	return s, nil
}

// LaunchHints are the memos attached to the coin that creates a stream:
// (recipient clawback_ph|() start_time end_time). The recipient comes first so
// the ledger indexes the coin under it as a hint.
func LaunchHints(info types.StreamInfo) []types.HexBytes {
	clawback := types.HexBytes{}
	if info.ClawbackPh != nil {
		clawback = info.ClawbackPh[:]
	}
	return []types.HexBytes{
		info.Recipient[:],
		clawback,
		clvm.Int(info.LastPaymentTime).MustAtom(),
		clvm.Int(info.EndTime).MustAtom(),
	}
}

// ParseLaunchHints reverses LaunchHints.
func ParseLaunchHints(memos []*clvm.Program) (types.StreamInfo, error) {
	var info types.StreamInfo
	if len(memos) != 4 {
		return info, errors.Errorf("expected 4 launch memos, got %d", len(memos))
	}
	recipient, err := memos[0].Bytes32()
	if err != nil {
		return info, errors.Wrap(err, "recipient memo")
	}
	info.Recipient = recipient
	if !memos[1].IsNil() {
		ph, err := memos[1].Bytes32()
		if err != nil {
			return info, errors.Wrap(err, "clawback memo")
		}
		claw := types.Bytes32(ph)
		info.ClawbackPh = &claw
	}
	if info.LastPaymentTime, err = memos[2].Int64(); err != nil {
		return info, errors.Wrap(err, "start time memo")
	}
	if info.EndTime, err = memos[3].Int64(); err != nil {
		return info, errors.Wrap(err, "end time memo")
	}
	return info, nil
}
