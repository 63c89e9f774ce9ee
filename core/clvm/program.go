// Package clvm holds the value model of the ledger's contract language:
// binary trees of byte-string atoms, their canonical serialization, tree
// hashing and the currying convention used to parameterize puzzles.
package clvm

import (
	"bytes"
	"encoding/hex"
	"math/big"

	"github.com/pkg/errors"
)

// Program is an immutable CLVM value: either an atom or a pair.
type Program struct {
	atom  []byte
	first *Program
	rest  *Program
	pair  bool
}

var nilProgram = &Program{atom: []byte{}}

// Nil returns the empty atom, which doubles as the empty list and false.
func Nil() *Program { return nilProgram }

// Atom wraps b. The slice is copied.
func Atom(b []byte) *Program {
	if len(b) == 0 {
		return nilProgram
	}
	return &Program{atom: bytes.Clone(b)}
}

// Cons builds the pair (first . rest).
func Cons(first, rest *Program) *Program {
	return &Program{first: first, rest: rest, pair: true}
}

// List builds a proper nil-terminated list.
func List(items ...*Program) *Program {
	l := Nil()
	for i := len(items) - 1; i >= 0; i-- {
		l = Cons(items[i], l)
	}
	return l
}

// Uint encodes v as a minimal signed big-endian atom.
func Uint(v uint64) *Program {
	return &Program{atom: IntToBytes(new(big.Int).SetUint64(v))}
}

// Int encodes v as a minimal signed big-endian atom.
func Int(v int64) *Program {
	return &Program{atom: IntToBytes(big.NewInt(v))}
}

// Bool encodes true as 1 and false as nil.
func Bool(v bool) *Program {
	if v {
		return Uint(1)
	}
	return Nil()
}

func (p *Program) IsPair() bool { return p.pair }
func (p *Program) IsAtom() bool { return !p.pair }
func (p *Program) IsNil() bool  { return !p.pair && len(p.atom) == 0 }

// AtomBytes returns the atom content, or an error for a pair.
func (p *Program) AtomBytes() ([]byte, error) {
	if p.pair {
		return nil, errors.New("expected atom, got pair")
	}
	return p.atom, nil
}

// MustAtom is AtomBytes for values built locally as atoms.
func (p *Program) MustAtom() []byte {
	b, err := p.AtomBytes()
	if err != nil {
		panic(err)
	}
	return b
}

// First returns the left element of a pair.
func (p *Program) First() (*Program, error) {
	if !p.pair {
		return nil, errors.New("first of atom")
	}
	return p.first, nil
}

// Rest returns the right element of a pair.
func (p *Program) Rest() (*Program, error) {
	if !p.pair {
		return nil, errors.New("rest of atom")
	}
	return p.rest, nil
}

// ToList flattens a proper list. A non-nil terminator is an error.
func (p *Program) ToList() ([]*Program, error) {
	var out []*Program
	cur := p
	for cur.pair {
		out = append(out, cur.first)
		cur = cur.rest
	}
	if len(cur.atom) != 0 {
		return nil, errors.New("improper list")
	}
	return out, nil
}

// BigInt interprets the atom as a signed big-endian integer.
func (p *Program) BigInt() (*big.Int, error) {
	b, err := p.AtomBytes()
	if err != nil {
		return nil, err
	}
	return BytesToInt(b), nil
}

// Uint64 interprets the atom as an unsigned 64 bit integer.
func (p *Program) Uint64() (uint64, error) {
	v, err := p.BigInt()
	if err != nil {
		return 0, err
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, errors.Errorf("integer %s out of uint64 range", v)
	}
	return v.Uint64(), nil
}

// Int64 interprets the atom as a signed 64 bit integer.
func (p *Program) Int64() (int64, error) {
	v, err := p.BigInt()
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, errors.Errorf("integer %s out of int64 range", v)
	}
	return v.Int64(), nil
}

// Bytes32 returns the atom when it is exactly 32 bytes long.
func (p *Program) Bytes32() ([32]byte, error) {
	var out [32]byte
	b, err := p.AtomBytes()
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, errors.Errorf("expected 32 byte atom, got %d bytes", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// Equal reports structural equality.
func (p *Program) Equal(o *Program) bool {
	if p.pair != o.pair {
		return false
	}
	if !p.pair {
		return bytes.Equal(p.atom, o.atom)
	}
	return p.first.Equal(o.first) && p.rest.Equal(o.rest)
}

// Hex returns the hex encoded serialization.
func (p *Program) Hex() string {
	return hex.EncodeToString(Serialize(p))
}

// IntToBytes encodes v in the minimal two's complement form CLVM uses.
func IntToBytes(v *big.Int) []byte {
	switch v.Sign() {
	case 0:
		return []byte{}
	case 1:
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return b
	}
	// negative: two's complement over the smallest width that keeps the sign bit
	n := (v.BitLen() + 8) / 8
	mod := new(big.Int).Lsh(big.NewInt(1), uint(n*8))
	b := new(big.Int).Add(mod, v).Bytes()
	for len(b) < n {
		b = append([]byte{0xff}, b...)
	}
	for len(b) > 1 && b[0] == 0xff && b[1]&0x80 != 0 {
		b = b[1:]
	}
	return b
}

// BytesToInt decodes a signed big-endian CLVM integer.
func BytesToInt(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return v
}
