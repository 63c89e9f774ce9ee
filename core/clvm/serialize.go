package clvm

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const (
	consBox   = 0xff
	backRef   = 0xfe
	maxSingle = 0x7f
	nilByte   = 0x80
)

var ErrTruncated = errors.New("clvm: unexpected end of input")

// Serialize writes p in the canonical binary format.
func Serialize(p *Program) []byte {
	var buf bytes.Buffer
	stack := []*Program{p}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.pair {
			buf.WriteByte(consBox)
			stack = append(stack, cur.rest, cur.first)
			continue
		}
		writeAtom(&buf, cur.atom)
	}
	return buf.Bytes()
}

func writeAtom(buf *bytes.Buffer, atom []byte) {
	size := len(atom)
	switch {
	case size == 0:
		buf.WriteByte(nilByte)
		return
	case size == 1 && atom[0] <= maxSingle:
		buf.WriteByte(atom[0])
		return
	case size < 0x40:
		buf.WriteByte(0x80 | byte(size))
	case size < 0x2000:
		buf.Write([]byte{0xc0 | byte(size>>8), byte(size)})
	case size < 0x100000:
		buf.Write([]byte{0xe0 | byte(size>>16), byte(size >> 8), byte(size)})
	case size < 0x8000000:
		buf.Write([]byte{0xf0 | byte(size>>24), byte(size >> 16), byte(size >> 8), byte(size)})
	default:
		buf.Write([]byte{0xf8 | byte(size>>32), byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size)})
	}
	buf.Write(atom)
}

type parseOp int

const (
	parseObj parseOp = iota
	parseCons
)

// Deserialize parses one program and rejects trailing bytes. Back references
// are not supported.
func Deserialize(b []byte) (*Program, error) {
	pos := 0
	ops := []parseOp{parseObj}
	var vals []*Program
	for len(ops) > 0 {
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if op == parseCons {
			rest := vals[len(vals)-1]
			first := vals[len(vals)-2]
			vals = append(vals[:len(vals)-2], Cons(first, rest))
			continue
		}
		if pos >= len(b) {
			return nil, ErrTruncated
		}
		c := b[pos]
		pos++
		switch {
		case c == consBox:
			ops = append(ops, parseCons, parseObj, parseObj)
		case c == backRef:
			return nil, errors.New("clvm: back references are not supported")
		case c == nilByte:
			vals = append(vals, Nil())
		case c <= maxSingle:
			vals = append(vals, &Program{atom: []byte{c}})
		default:
			size, n, err := atomSize(c, b[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			if uint64(len(b)-pos) < size {
				return nil, ErrTruncated
			}
			vals = append(vals, Atom(b[pos:pos+int(size)]))
			pos += int(size)
		}
	}
	if pos != len(b) {
		return nil, errors.Errorf("clvm: %d trailing bytes", len(b)-pos)
	}
	return vals[0], nil
}

// atomSize decodes a length prefix whose first byte is c; it returns the
// atom size and how many extra prefix bytes were consumed.
func atomSize(c byte, rest []byte) (uint64, int, error) {
	bitCount := 0
	for mask := byte(0x80); mask != 0 && c&mask != 0; mask >>= 1 {
		bitCount++
		c &^= mask
	}
	if bitCount >= 7 {
		return 0, 0, errors.New("clvm: invalid atom length prefix")
	}
	size := uint64(c)
	for i := 1; i < bitCount; i++ {
		if i-1 >= len(rest) {
			return 0, 0, ErrTruncated
		}
		size = size<<8 | uint64(rest[i-1])
	}
	return size, bitCount - 1, nil
}

// DeserializeHex accepts an optional 0x prefix.
func DeserializeHex(s string) (*Program, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "clvm: decode hex")
	}
	return Deserialize(raw)
}
