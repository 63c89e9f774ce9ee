package puzzles

import (
	"crypto/sha256"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/types"
)

// PublicKeySize is the length of a compressed G1 point.
const PublicKeySize = bls12381.SizeOfG1AffineCompressed

var ErrInvalidPublicKey = errors.New("invalid public key")

// SyntheticPublicKey returns pk + g1 * (sha256(pk || hidden) mod r), where
// the hash is read as a signed big-endian integer.
func SyntheticPublicKey(pk []byte, hiddenPuzzleHash types.Bytes32) ([]byte, error) {
	if len(pk) != PublicKeySize {
		return nil, errors.Wrapf(ErrInvalidPublicKey, "expected %d bytes, got %d", PublicKeySize, len(pk))
	}
	var point bls12381.G1Affine
	if _, err := point.SetBytes(pk); err != nil {
		return nil, errors.Wrap(ErrInvalidPublicKey, err.Error())
	}

	digest := sha256.Sum256(append(append([]byte{}, pk...), hiddenPuzzleHash[:]...))
	offset := new(big.Int).SetBytes(digest[:])
	if digest[0]&0x80 != 0 {
		offset.Sub(offset, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	offset.Mod(offset, fr.Modulus())

	g1, _, _, _ := bls12381.Generators()
	var shift bls12381.G1Jac
	shift.ScalarMultiplication(&g1, offset)

	var sum bls12381.G1Jac
	sum.FromAffine(&point)
	sum.AddAssign(&shift)

	var res bls12381.G1Affine
	res.FromJacobian(&sum)
	out := res.Bytes()
	return out[:], nil
}

// StandardPuzzle curries the synthetic key of pk into the standard module.
func (l *Library) StandardPuzzle(pk []byte) (*clvm.Program, error) {
	synthetic, err := SyntheticPublicKey(pk, l.HiddenPuzzleHash)
	if err != nil {
		return nil, err
	}
	return clvm.Curry(l.standardMod, clvm.Atom(synthetic)), nil
}

// StandardPuzzleHash is the address a wallet derives for pk.
func (l *Library) StandardPuzzleHash(pk []byte) (types.Bytes32, error) {
	synthetic, err := SyntheticPublicKey(pk, l.HiddenPuzzleHash)
	if err != nil {
		return types.Bytes32{}, err
	}
	return clvm.CurryTreeHash(l.StandardModHash, clvm.HashAtom(synthetic)), nil
}

// StandardSolution spends a standard coin with a delegated puzzle that simply
// returns conditions: (() (q . conditions) ()).
func StandardSolution(conditions ...*clvm.Program) *clvm.Program {
	return clvm.List(clvm.Nil(), clvm.Quote(clvm.List(conditions...)), clvm.Nil())
}

// DelegatedConditions extracts the quoted condition list from a standard
// solution. ok is false for any other spend shape.
func DelegatedConditions(solution *clvm.Program) (conds []*clvm.Program, ok bool) {
	parts, err := solution.ToList()
	if err != nil || len(parts) < 2 {
		return nil, false
	}
	delegated := parts[1]
	if !delegated.IsPair() {
		return nil, false
	}
	op, _ := delegated.First()
	if b, err := op.AtomBytes(); err != nil || len(b) != 1 || b[0] != 1 {
		return nil, false
	}
	body, _ := delegated.Rest()
	conds, err = body.ToList()
	if err != nil {
		return nil, false
	}
	return conds, true
}
