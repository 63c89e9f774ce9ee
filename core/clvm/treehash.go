package clvm

import "crypto/sha256"

// HashAtom is the tree hash of an atom: sha256(1 || atom).
func HashAtom(atom []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{1})
	h.Write(atom)
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// HashPair is the tree hash of a pair: sha256(2 || first || rest).
func HashPair(first, rest [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{2})
	h.Write(first[:])
	h.Write(rest[:])
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// TreeHash is the structural hash that identifies a puzzle on chain.
func (p *Program) TreeHash() [32]byte {
	if !p.pair {
		return HashAtom(p.atom)
	}
	return HashPair(p.first.TreeHash(), p.rest.TreeHash())
}
