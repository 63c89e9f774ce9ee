package util

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/types"
)

const (
	// StreamPrefix is the human readable part of stream identifiers.
	StreamPrefix = "stream"
	MainnetPrefix = "xch"
	TestnetPrefix = "txch"
)

var ErrInvalidAddress = errors.New("invalid address")

// EncodeAddress renders a puzzle hash as a bech32m string with the given prefix.
func EncodeAddress(puzzleHash types.Bytes32, prefix string) (string, error) {
	conv, err := bech32.ConvertBits(puzzleHash[:], 8, 5, true)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return bech32.EncodeM(prefix, conv)
}

// MustEncodeAddress panics on failure, which only happens for an invalid prefix.
func MustEncodeAddress(puzzleHash types.Bytes32, prefix string) string {
	s, err := EncodeAddress(puzzleHash, prefix)
	if err != nil {
		panic(err)
	}
	return s
}

// DecodeAddress parses a bech32m string and checks its prefix.
func DecodeAddress(s string, prefix string) (types.Bytes32, error) {
	var out types.Bytes32
	hrp, data, version, err := bech32.DecodeGeneric(strings.TrimSpace(s))
	if err != nil {
		return out, errors.Wrap(ErrInvalidAddress, err.Error())
	}
	if version != bech32.VersionM {
		return out, errors.Wrap(ErrInvalidAddress, "not a bech32m string")
	}
	if hrp != prefix {
		return out, errors.Wrapf(ErrInvalidAddress, "expected prefix %q, got %q", prefix, hrp)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return out, errors.Wrap(ErrInvalidAddress, err.Error())
	}
	if len(raw) != len(out) {
		return out, errors.Wrapf(ErrInvalidAddress, "expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// StreamId is the bookmarkable identifier of a stream: the genesis coin id.
type StreamId struct {
	id types.Bytes32
}

func NewStreamId(genesis types.Bytes32) StreamId {
	return StreamId{id: genesis}
}

// NewStreamIdFromString decodes a "stream1..." identifier.
func NewStreamIdFromString(s string) (StreamId, error) {
	id, err := DecodeAddress(s, StreamPrefix)
	if err != nil {
		return StreamId{}, errors.Wrap(err, "invalid stream id")
	}
	return StreamId{id: id}, nil
}

func (s StreamId) CoinID() types.Bytes32 { return s.id }

func (s StreamId) String() string {
	return MustEncodeAddress(s.id, StreamPrefix)
}
