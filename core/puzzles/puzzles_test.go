package puzzles_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles/puzzletest"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"github.com/yakuhito/streaming-sdk-go/core/util"
)

func b32(b byte) types.Bytes32 {
	var out types.Bytes32
	copy(out[:], bytes.Repeat([]byte{b}, 32))
	return out
}

func sampleInfo(withClawback bool) types.StreamInfo {
	info := types.StreamInfo{
		Recipient:       b32(0x11),
		EndTime:         1_800_000_000,
		LastPaymentTime: 1_700_000_000,
	}
	if withClawback {
		claw := b32(0x22)
		info.ClawbackPh = &claw
	}
	return info
}

func TestStreamPuzzleHashing(t *testing.T) {
	lib := puzzletest.Library()
	asset := b32(0xaa)

	for _, withClawback := range []bool{false, true} {
		info := sampleInfo(withClawback)

		inner := lib.StreamInnerPuzzle(info)
		assert.Equal(t, types.Bytes32(inner.TreeHash()), lib.StreamInnerPuzzleHash(info))

		full := lib.StreamPuzzle(asset, info)
		assert.Equal(t, types.Bytes32(full.TreeHash()), lib.StreamPuzzleHash(asset, info))

		gotAsset, gotInner, ok := lib.ParseCat(full)
		require.True(t, ok)
		assert.Equal(t, asset, gotAsset)

		parsed, ok, err := lib.ParseStreamInner(gotInner)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, info, parsed)
	}
}

func TestPuzzleHashDependsOnEveryParameter(t *testing.T) {
	lib := puzzletest.Library()
	base := sampleInfo(true)
	h := lib.StreamInnerPuzzleHash(base)

	assert.NotEqual(t, h, lib.StreamInnerPuzzleHash(base.WithLastPaymentTime(base.LastPaymentTime+1)))
	assert.NotEqual(t, h, lib.StreamInnerPuzzleHash(sampleInfo(false)))

	other := base
	other.EndTime++
	assert.NotEqual(t, h, lib.StreamInnerPuzzleHash(other))
}

func TestParseRejectsForeignPuzzles(t *testing.T) {
	lib := puzzletest.Library()

	_, _, ok := lib.ParseCat(clvm.Curry(clvm.Uint(9), clvm.Uint(1), clvm.Uint(2), clvm.Uint(3)))
	assert.False(t, ok)

	_, ok, err := lib.ParseStreamInner(clvm.Curry(clvm.Uint(9)))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestLaunchHintsRoundTrip(t *testing.T) {
	for _, withClawback := range []bool{false, true} {
		info := sampleInfo(withClawback)
		hints := puzzles.LaunchHints(info)
		require.Len(t, hints, 4)
		assert.Equal(t, info.Recipient[:], []byte(hints[0]))

		memos := make([]*clvm.Program, len(hints))
		for i, h := range hints {
			memos[i] = clvm.Atom(h)
		}
		back, err := puzzles.ParseLaunchHints(memos)
		require.NoError(t, err)
		assert.Equal(t, info, back)
	}

	_, err := puzzles.ParseLaunchHints([]*clvm.Program{clvm.Nil()})
	assert.Error(t, err)
}

func TestStreamSolutionRoundTrip(t *testing.T) {
	s := puzzles.StreamSolution{MyAmount: 1000, PaymentTime: 1_700_000_500, ToPay: 5, Clawback: true}
	back, err := puzzles.ParseStreamSolution(s.Program())
	require.NoError(t, err)
	assert.Equal(t, s, back)

	_, err = puzzles.ParseStreamSolution(clvm.List(clvm.Uint(1)))
	assert.Error(t, err)
}

func TestSyntheticPublicKey(t *testing.T) {
	pk := puzzletest.PublicKey(42)

	a, err := puzzles.SyntheticPublicKey(pk, puzzles.DefaultHiddenPuzzleHash)
	require.NoError(t, err)
	b, err := puzzles.SyntheticPublicKey(pk, puzzles.DefaultHiddenPuzzleHash)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, puzzles.PublicKeySize)
	assert.NotEqual(t, pk, a)

	c, err := puzzles.SyntheticPublicKey(puzzletest.PublicKey(43), puzzles.DefaultHiddenPuzzleHash)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = puzzles.SyntheticPublicKey(pk[:10], puzzles.DefaultHiddenPuzzleHash)
	assert.ErrorIs(t, err, puzzles.ErrInvalidPublicKey)
}

func TestStandardAddressKnownAnswer(t *testing.T) {
	// The G1 generator as a wallet key.
	pk := puzzletest.PublicKey(1)
	require.Equal(t, "97f1d3a73197d7942695638c4fa9ac0fc3688c4f9774b905a14e3a3f171bac586c55e83ff97a1aeffb3af00adb22c6bb", hex.EncodeToString(pk))

	synthetic, err := puzzles.SyntheticPublicKey(pk, puzzles.DefaultHiddenPuzzleHash)
	require.NoError(t, err)
	assert.Equal(t, "a6207f5173ec41491d9f2c1b8fff5579e13703077e0eaca8fe587669dcccf51e9209a6b65576845ece5f7c2f3229e7e3", hex.EncodeToString(synthetic))

	lib := puzzletest.Library()
	lib.StandardModHash = puzzles.KnownStandardModHash
	ph, err := lib.StandardPuzzleHash(pk)
	require.NoError(t, err)
	assert.Equal(t, "48068eb6150f738fe90a001c562f0c4b769b7d64a59915aa8c0886b978e38137", hex.EncodeToString(ph[:]))
	assert.Equal(t, types.Bytes32(clvm.CurryTreeHash(puzzles.KnownStandardModHash, clvm.HashAtom(synthetic))), ph)
	assert.Equal(t, "xch1fqrgads4paecl6g2qqw9vtcvfdmfklty5kv3t25vpzrtj78rsyms8nhzrc", util.MustEncodeAddress(ph, util.MainnetPrefix))

	ph, err = lib.StandardPuzzleHash(puzzletest.PublicKey(42))
	require.NoError(t, err)
	assert.Equal(t, "xch16pxdaq6d64fraeg8mgq7a3kdz5npmhuthcqydv7ud5qvl6y59cxsjty7le", util.MustEncodeAddress(ph, util.MainnetPrefix))
}

func TestStandardPuzzle(t *testing.T) {
	lib := puzzletest.Library()
	pk := puzzletest.PublicKey(7)

	puzzle, err := lib.StandardPuzzle(pk)
	require.NoError(t, err)
	ph, err := lib.StandardPuzzleHash(pk)
	require.NoError(t, err)
	assert.Equal(t, types.Bytes32(puzzle.TreeHash()), ph)

	conds := []*clvm.Program{
		puzzles.ReserveFeeCondition(10),
		puzzles.CreateCoinCondition(b32(1), 5, []types.HexBytes{{0x01}}),
	}
	got, ok := puzzles.DelegatedConditions(puzzles.StandardSolution(conds...))
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.True(t, conds[1].Equal(got[1]))

	_, ok = puzzles.DelegatedConditions(clvm.List(clvm.Nil(), clvm.Uint(5), clvm.Nil()))
	assert.False(t, ok)
}

func TestParseCreateCoin(t *testing.T) {
	cc, ok, err := puzzles.ParseCreateCoin(puzzles.CreateCoinCondition(b32(3), 77, []types.HexBytes{b32(4).Bytes(), {}}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b32(3), cc.PuzzleHash)
	assert.Equal(t, uint64(77), cc.Amount)
	require.Len(t, cc.Memos, 2)
	assert.True(t, cc.Memos[1].IsNil())

	_, ok, err = puzzles.ParseCreateCoin(puzzles.ReserveFeeCondition(1))
	assert.NoError(t, err)
	assert.False(t, ok)
}
