package streamapi

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakuhito/streaming-sdk-go/core/puzzles"
	"github.com/yakuhito/streaming-sdk-go/core/types"
	"go.uber.org/zap"
)

// findKey pages through the wallet's keys until one whose standard puzzle
// hash is target, stopping at the search limit.
func (c *Claimer) findKey(ctx context.Context, target types.Bytes32) ([]byte, error) {
	for offset := 0; offset < c.keySearchLimit; offset += c.keyPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys, err := c.gateway.ListPublicKeys(ctx, c.keyPageSize, offset)
		if err != nil {
			return nil, errors.Wrap(err, "listing wallet keys")
		}
		for _, pk := range keys {
			ph, err := c.lib.StandardPuzzleHash(pk)
			if errors.Is(err, puzzles.ErrInvalidPublicKey) {
				c.logger.Debug("wallet returned an invalid key", zap.Int("offset", offset), zap.Error(err))
				continue
			}
			if err != nil {
				return nil, err
			}
			if ph == target {
				return pk, nil
			}
		}
		if len(keys) < c.keyPageSize {
			break
		}
	}
	return nil, errors.Wrapf(types.ErrKeyNotFound, "puzzle hash %s", target)
}
