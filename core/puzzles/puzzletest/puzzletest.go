// Package puzzletest provides stand-in puzzle modules and keys for tests.
package puzzletest

import (
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
)

// Library returns a library whose modules are small distinct programs. The
// hashing and currying rules are the same as for the deployed modules.
func Library() *puzzles.Library {
	return puzzles.NewLibrary(
		clvm.List(clvm.Atom([]byte("cat")), clvm.Uint(2)),
		clvm.List(clvm.Atom([]byte("stream")), clvm.Uint(1)),
		clvm.List(clvm.Atom([]byte("standard")), clvm.Uint(3)),
	)
}

// PublicKey returns the compressed G1 point g1*seed.
func PublicKey(seed int64) []byte {
	_, _, g1, _ := bls12381.Generators()
	var p bls12381.G1Affine
	p.ScalarMultiplication(&g1, big.NewInt(seed))
	b := p.Bytes()
	return b[:]
}
