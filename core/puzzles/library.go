// Package puzzles derives and builds the three puzzles a streamed payment
// touches: the fungible token wrapper, the streaming inner puzzle and the
// standard transaction puzzle that guards fee coins.
package puzzles

import (
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/logging"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"go.uber.org/zap"
)

var (
	// KnownCatModHash is the tree hash of the deployed token wrapper (v2).
	KnownCatModHash = mustHex("37bef360ee858133b69d595a906dc45d01af50379dad515eb9518abb7c1d2a7a")
	// KnownStandardModHash is the tree hash of p2_delegated_puzzle_or_hidden_puzzle.
	KnownStandardModHash = mustHex("e9aaa49f45bad5c889b86ee3341550c155cfdd10c3a6757de618d20612fffd52")
	// DefaultHiddenPuzzleHash is the hash of (=) used by every standard wallet.
	DefaultHiddenPuzzleHash = mustHex("711d6c4e32c92e53179b199484cf8c897542bc57f2b22582799f9d657eec4699")
)

func mustHex(s string) types.Bytes32 {
	b, err := types.Bytes32FromHex(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Library holds the uncurried puzzle modules together with their hashes.
// It is immutable and safe to share.
type Library struct {
	catMod      *clvm.Program
	streamMod   *clvm.Program
	standardMod *clvm.Program

	CatModHash       types.Bytes32
	StreamModHash    types.Bytes32
	StandardModHash  types.Bytes32
	HiddenPuzzleHash types.Bytes32
}

// NewLibrary hashes the given modules.
func NewLibrary(catMod, streamMod, standardMod *clvm.Program) *Library {
	return &Library{
		catMod:           catMod,
		streamMod:        streamMod,
		standardMod:      standardMod,
		CatModHash:       catMod.TreeHash(),
		StreamModHash:    streamMod.TreeHash(),
		StandardModHash:  standardMod.TreeHash(),
		HiddenPuzzleHash: DefaultHiddenPuzzleHash,
	}
}

// LoadLibrary parses hex serialized modules. Unexpected hashes for the
// well-known modules are logged, not rejected, so test networks can use
// their own builds.
func LoadLibrary(catHex, streamHex, standardHex string) (*Library, error) {
	cat, err := clvm.DeserializeHex(catHex)
	if err != nil {
		return nil, errors.Wrap(err, "cat module")
	}
	stream, err := clvm.DeserializeHex(streamHex)
	if err != nil {
		return nil, errors.Wrap(err, "stream module")
	}
	standard, err := clvm.DeserializeHex(standardHex)
	if err != nil {
		return nil, errors.Wrap(err, "standard module")
	}
	lib := NewLibrary(cat, stream, standard)
	if lib.CatModHash != KnownCatModHash {
		logging.Logger.Warn("cat module hash differs from the deployed one", zap.Stringer("hash", lib.CatModHash))
	}
	if lib.StandardModHash != KnownStandardModHash {
		logging.Logger.Warn("standard module hash differs from the deployed one", zap.Stringer("hash", lib.StandardModHash))
	}
	return lib, nil
}
