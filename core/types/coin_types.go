package types

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
)

// Bytes32 is a hash, coin id, puzzle hash or asset id.
type Bytes32 [32]byte

// Bytes32FromHex parses 64 hex digits, with or without 0x prefix.
func Bytes32FromHex(s string) (Bytes32, error) {
	var out Bytes32
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, errors.Wrap(err, "invalid hex")
	}
	if len(raw) != len(out) {
		return out, errors.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// Bytes32FromBytes copies b, which must be 32 bytes long.
func Bytes32FromBytes(b []byte) (Bytes32, error) {
	var out Bytes32
	if len(b) != len(out) {
		return out, errors.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func (b Bytes32) String() string { return "0x" + hex.EncodeToString(b[:]) }
func (b Bytes32) Bytes() []byte  { return b[:] }
func (b Bytes32) IsZero() bool   { return b == Bytes32{} }

// Short renders the 0x1234...abcd form used in logs and summaries.
func (b Bytes32) Short() string {
	h := hex.EncodeToString(b[:])
	return "0x" + h[:4] + "..." + h[len(h)-4:]
}

func (b Bytes32) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bytes32) UnmarshalText(text []byte) error {
	v, err := Bytes32FromHex(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// HexBytes is a byte string carried as 0x-prefixed hex on the wire.
type HexBytes []byte

func (h HexBytes) String() string               { return "0x" + hex.EncodeToString(h) }
func (h HexBytes) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *HexBytes) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(string(text), "0x"))
	if err != nil {
		return errors.Wrap(err, "invalid hex")
	}
	*h = raw
	return nil
}

// Coin is content addressed: its id is derived from the three fields.
type Coin struct {
	ParentCoinInfo Bytes32 `json:"parent_coin_info"`
	PuzzleHash     Bytes32 `json:"puzzle_hash"`
	Amount         uint64  `json:"amount"`
}

// ID returns sha256(parent || puzzle_hash || amount), the amount being
// encoded as a minimal signed integer.
func (c Coin) ID() Bytes32 {
	h := sha256.New()
	h.Write(c.ParentCoinInfo[:])
	h.Write(c.PuzzleHash[:])
	h.Write(clvm.IntToBytes(new(big.Int).SetUint64(c.Amount)))
	var out Bytes32
	h.Sum(out[:0])
	return out
}

// CoinRecord is the ledger's view of a coin.
type CoinRecord struct {
	Coin                Coin   `json:"coin"`
	ConfirmedBlockIndex uint32 `json:"confirmed_block_index"`
	SpentBlockIndex     uint32 `json:"spent_block_index"`
	Spent               bool   `json:"spent"`
	Coinbase            bool   `json:"coinbase"`
	Timestamp           int64  `json:"timestamp"`
}

// CoinSpend reveals the puzzle of a coin and the solution it was spent with.
type CoinSpend struct {
	Coin         Coin     `json:"coin"`
	PuzzleReveal HexBytes `json:"puzzle_reveal"`
	Solution     HexBytes `json:"solution"`
}

// NewCoinSpend serializes puzzle and solution.
func NewCoinSpend(coin Coin, puzzle, solution *clvm.Program) CoinSpend {
	return CoinSpend{
		Coin:         coin,
		PuzzleReveal: clvm.Serialize(puzzle),
		Solution:     clvm.Serialize(solution),
	}
}

// SpendBundle is the unit submitted to the mempool.
type SpendBundle struct {
	CoinSpends          []CoinSpend `json:"coin_spends"`
	AggregatedSignature HexBytes    `json:"aggregated_signature"`
}

// TxStatus is the ledger's verdict on a submitted bundle.
type TxStatus struct {
	Accepted bool
	Status   string
	Error    string
}
