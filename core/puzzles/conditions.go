package puzzles

import (
	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/clvm"
	"github.com/yakuhito/streaming-sdk-go/core/types"
)

// Condition opcodes.
const (
	CreateCoin            = 51
	ReserveFee            = 52
	AssertConcurrentSpend = 64
	SendMessage           = 66
	ReceiveMessage        = 67
)

// MessageModePuzzleToCoin: the sender commits to its puzzle hash, the
// receiver is identified by full coin id.
const MessageModePuzzleToCoin = 0b010111

func opcode(op uint64) *clvm.Program { return clvm.Uint(op) }

// CreateCoinCondition builds (51 puzzle_hash amount (memos...)). Memos are
// omitted when empty.
func CreateCoinCondition(puzzleHash types.Bytes32, amount uint64, memos []types.HexBytes) *clvm.Program {
	args := []*clvm.Program{opcode(CreateCoin), clvm.Atom(puzzleHash[:]), clvm.Uint(amount)}
	if len(memos) > 0 {
		items := make([]*clvm.Program, len(memos))
		for i, m := range memos {
			items[i] = clvm.Atom(m)
		}
		args = append(args, clvm.List(items...))
	}
	return clvm.List(args...)
}

func ReserveFeeCondition(amount uint64) *clvm.Program {
	return clvm.List(opcode(ReserveFee), clvm.Uint(amount))
}

func AssertConcurrentSpendCondition(coinID types.Bytes32) *clvm.Program {
	return clvm.List(opcode(AssertConcurrentSpend), clvm.Atom(coinID[:]))
}

func SendMessageCondition(mode uint64, message []byte, receiver types.Bytes32) *clvm.Program {
	return clvm.List(opcode(SendMessage), clvm.Uint(mode), clvm.Atom(message), clvm.Atom(receiver[:]))
}

// ParsedCreateCoin is a decoded CREATE_COIN condition.
type ParsedCreateCoin struct {
	PuzzleHash types.Bytes32
	Amount     uint64
	Memos      []*clvm.Program
}

// ParseCreateCoin returns ok=false for other conditions.
func ParseCreateCoin(cond *clvm.Program) (*ParsedCreateCoin, bool, error) {
	parts, err := cond.ToList()
	if err != nil || len(parts) < 3 {
		return nil, false, nil
	}
	op, err := parts[0].Uint64()
	if err != nil || op != CreateCoin {
		return nil, false, nil
	}
	ph, err := parts[1].Bytes32()
	if err != nil {
		return nil, true, errors.Wrap(err, "create coin puzzle hash")
	}
	amount, err := parts[2].Uint64()
	if err != nil {
		return nil, true, errors.Wrap(err, "create coin amount")
	}
	out := &ParsedCreateCoin{PuzzleHash: ph, Amount: amount}
	if len(parts) > 3 && parts[3].IsPair() {
		memos, err := parts[3].ToList()
		if err != nil {
			return nil, true, errors.Wrap(err, "create coin memos")
		}
		out.Memos = memos
	}
	return out, true, nil
}
