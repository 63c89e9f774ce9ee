package streamapi

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/types"
)

// NeededFee floors a fee budget to one base unit; a zero fee would leave
// nothing to select coins against.
func NeededFee(budget uint64) uint64 {
	if budget == 0 {
		return 1
	}
	return budget
}

// SelectFeeCoins takes unspent coins in ledger order (confirmation height,
// then the order given) until their sum reaches needed. ok is false when
// all of them together are not enough.
func SelectFeeCoins(records []types.CoinRecord, needed uint64) (coins []types.Coin, total uint64, ok bool) {
	unspent := make([]types.CoinRecord, 0, len(records))
	for _, r := range records {
		if !r.Spent {
			unspent = append(unspent, r)
		}
	}
	sort.SliceStable(unspent, func(i, j int) bool {
		return unspent[i].ConfirmedBlockIndex < unspent[j].ConfirmedBlockIndex
	})
	for _, r := range unspent {
		if total >= needed {
			break
		}
		coins = append(coins, r.Coin)
		total += r.Coin.Amount
	}
	return coins, total, total >= needed && len(coins) > 0
}

func (c *Claimer) feeCoins(ctx context.Context, ph types.Bytes32, needed uint64) ([]types.Coin, uint64, bool, error) {
	var records []types.CoinRecord
	err := c.retry.Retry(ctx, func(ctx context.Context) error {
		var err error
		records, err = c.ledger.GetCoinRecordsByPuzzleHash(ctx, ph, false)
		return err
	})
	if err != nil {
		return nil, 0, false, errors.Wrapf(err, "fee coins at %s", ph)
	}
	coins, total, ok := SelectFeeCoins(records, needed)
	return coins, total, ok, nil
}
