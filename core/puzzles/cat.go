package puzzles

import (
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/types"
)

// CatPuzzleHash wraps an inner puzzle hash for the given asset.
func (l *Library) CatPuzzleHash(assetID, innerPuzzleHash types.Bytes32) types.Bytes32 {
	return clvm.CurryTreeHash(l.CatModHash,
		clvm.HashAtom(l.CatModHash[:]),
		clvm.HashAtom(assetID[:]),
		innerPuzzleHash,
	)
}

// CatPuzzle wraps inner for the given asset.
func (l *Library) CatPuzzle(assetID types.Bytes32, inner *clvm.Program) *clvm.Program {
	return clvm.Curry(l.catMod, clvm.Atom(l.CatModHash[:]), clvm.Atom(assetID[:]), inner)
}

// ParseCat unwraps a token puzzle. ok is false for anything else.
func (l *Library) ParseCat(puzzle *clvm.Program) (assetID types.Bytes32, inner *clvm.Program, ok bool) {
	mod, args, ok := clvm.Uncurry(puzzle)
	if !ok || len(args) != 3 || types.Bytes32(mod.TreeHash()) != l.CatModHash {
		return assetID, nil, false
	}
	id, err := args[1].Bytes32()
	if err != nil {
		return assetID, nil, false
	}
	return id, args[2], true
}

// CatSolution spends coin alone (a ring of one): it is its own previous and
// next coin, and the subtotal and extra delta are zero.
func CatSolution(innerSolution *clvm.Program, proof *types.LineageProof, coin types.Coin, innerPuzzleHash types.Bytes32) *clvm.Program {
	lineage := clvm.Nil()
	if proof != nil {
		lineage = clvm.List(
			clvm.Atom(proof.ParentParentCoinInfo[:]),
			clvm.Atom(proof.ParentInnerPuzzleHash[:]),
			clvm.Uint(proof.ParentAmount),
		)
	}
	id := coin.ID()
	return clvm.List(
		innerSolution,
		lineage,
		clvm.Atom(id[:]),
		clvm.List(clvm.Atom(coin.ParentCoinInfo[:]), clvm.Atom(coin.PuzzleHash[:]), clvm.Uint(coin.Amount)),
		clvm.List(clvm.Atom(coin.ParentCoinInfo[:]), clvm.Atom(innerPuzzleHash[:]), clvm.Uint(coin.Amount)),
		clvm.Uint(0),
		clvm.Uint(0),
	)
}

// CatInnerSolution returns the inner solution of a token solution.
func CatInnerSolution(solution *clvm.Program) (*clvm.Program, bool) {
	if !solution.IsPair() {
		return nil, false
	}
	inner, _ := solution.First()
	return inner, true
}
